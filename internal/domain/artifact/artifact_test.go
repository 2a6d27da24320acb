package artifact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestDial = errors.New("dial tcp: connection refused")

// TestParseCategory verifies both configuration and directory names are accepted.
func TestParseCategory(t *testing.T) {
	t.Parallel()

	cases := map[string]Category{
		"keys":           CategoryKeys,
		"gpu_driver":     CategoryGpuDriver,
		"GPU_DRIVERS":    CategoryGpuDriver,
		"firmware":       CategoryFirmware,
		"update_package": CategoryUpdatePackage,
		"downloads":      CategoryUpdatePackage,
	}
	for name, want := range cases {
		got, err := ParseCategory(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	_, err := ParseCategory("fonts")
	require.ErrorIs(t, err, ErrUnknownCategory)
}

// TestCategoryText checks the text marshalling used by YAML and JSON encoders.
func TestCategoryText(t *testing.T) {
	t.Parallel()

	text, err := CategoryGpuDriver.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "gpu_driver", string(text))

	var c Category
	require.NoError(t, c.UnmarshalText([]byte("keys")))
	require.Equal(t, CategoryKeys, c)

	_, err = CategoryUnknown.MarshalText()
	require.Error(t, err)
}

// TestNewDescriptor covers validation and digest normalisation.
func TestNewDescriptor(t *testing.T) {
	t.Parallel()

	d, err := NewDescriptor("prod.keys", "http://example.com/prod.keys", "/tmp/keys/prod.keys",
		" 4ED853D4A52E6B9B9E11954F155ECB8A ", CategoryKeys)
	require.NoError(t, err)
	require.Equal(t, "prod.keys", d.Identifier())
	require.Equal(t, "4ed853d4a52e6b9b9e11954f155ecb8a", d.ExpectedDigest())
	require.Equal(t, CategoryKeys, d.Category())
	require.True(t, d.Verified())

	_, err = NewDescriptor("", "http://x", "/tmp/x", "", CategoryKeys)
	require.Error(t, err)

	_, err = NewDescriptor("x", "", "/tmp/x", "", CategoryKeys)
	require.Error(t, err)

	_, err = NewDescriptor("x", "http://x", "", "", CategoryKeys)
	require.Error(t, err)

	_, err = NewDescriptor("x", "http://x", "/tmp/x", "", CategoryUnknown)
	require.ErrorIs(t, err, ErrUnknownCategory)
}

// TestNewDescriptor_DigestRequired allows a missing digest for firmware only.
func TestNewDescriptor_DigestRequired(t *testing.T) {
	t.Parallel()

	for _, category := range []Category{CategoryKeys, CategoryGpuDriver, CategoryUpdatePackage} {
		_, err := NewDescriptor("x", "http://x", "/tmp/x", "  ", category)
		require.ErrorIs(t, err, errDigestRequired, category.String())
	}

	d, err := NewDescriptor("firmware", "http://x/fw.zip", "/tmp/fw.zip", "", CategoryFirmware)
	require.NoError(t, err)
	require.False(t, d.Verified())
}

// TestOutcome verifies the outcome constructors and helpers.
func TestOutcome(t *testing.T) {
	t.Parallel()

	require.True(t, Success().OK())
	require.True(t, AlreadyValid().OK())
	require.Equal(t, "already_valid", AlreadyValid().Message())

	network := NetworkFailure(errTestDial)
	require.False(t, network.OK())
	require.ErrorIs(t, network.Err, ErrNetworkFailure)
	require.ErrorIs(t, network.Err, errTestDial)

	mismatch := DigestMismatch("aa", "bb")
	require.Equal(t, OutcomeDigestMismatch, mismatch.Kind)
	require.ErrorIs(t, mismatch.Err, ErrDigestMismatch)
	require.Contains(t, mismatch.Message(), "expected aa, got bb")

	require.ErrorIs(t, IOFailure(errTestDial).Err, ErrIO)
}
