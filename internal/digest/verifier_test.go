package digest

import (
	"crypto"
	"crypto/md5" //nolint:gosec // Test reproduces the published digest algorithm.
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates a file with the given contents in a temp dir.
func writeFile(t *testing.T, contents []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, contents, 0o600))

	return path
}

// TestDigestOf verifies streamed digests match one-shot digests and encoding rules.
func TestDigestOf(t *testing.T) {
	t.Parallel()

	// Larger than one chunk to exercise streaming.
	contents := []byte(strings.Repeat("artifact-keeper", 10_000))
	path := writeFile(t, contents)

	v, err := NewVerifier(crypto.MD5)
	require.NoError(t, err)

	sum := md5.Sum(contents) //nolint:gosec // See import.
	got, err := v.DigestOf(path)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), got)
	require.Len(t, got, 32)
	require.Equal(t, strings.ToLower(got), got)

	v, err = NewVerifier(crypto.SHA256)
	require.NoError(t, err)

	sha := sha256.Sum256(contents)
	got, err = v.DigestOf(path)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sha[:]), got)
}

// TestDigestOf_Missing verifies an unreadable file is reported as an error.
func TestDigestOf_Missing(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(DefaultAlgorithm)
	require.NoError(t, err)

	_, err = v.DigestOf(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

// TestIsValid covers missing files, matches in either case and mismatches.
func TestIsValid(t *testing.T) {
	t.Parallel()

	contents := []byte("prod keys")
	path := writeFile(t, contents)
	sum := md5.Sum(contents) //nolint:gosec // See import.
	expected := hex.EncodeToString(sum[:])

	v, err := NewVerifier(DefaultAlgorithm)
	require.NoError(t, err)

	require.True(t, v.IsValid(path, expected))
	require.True(t, v.IsValid(path, strings.ToUpper(expected)))
	require.False(t, v.IsValid(path, "00000000000000000000000000000000"))
	require.False(t, v.IsValid(path, ""))
	require.False(t, v.IsValid(filepath.Join(t.TempDir(), "missing"), expected))

	valid, err := v.Check(filepath.Join(t.TempDir(), "missing"), expected)
	require.NoError(t, err)
	require.False(t, valid)
}

// TestParseAlgorithm checks the supported names.
func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]crypto.Hash{
		"":       crypto.MD5,
		"MD5":    crypto.MD5,
		"sha1":   crypto.SHA1,
		"sha256": crypto.SHA256,
		"sha512": crypto.SHA512,
	} {
		got, err := ParseAlgorithm(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseAlgorithm("crc32")
	require.Error(t, err)
}

// TestDecode verifies hex decoding of digests.
func TestDecode(t *testing.T) {
	t.Parallel()

	raw, err := Decode("00ff")
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0xff}, raw)

	_, err = Decode("zz")
	require.Error(t, err)
}

// TestValidHex checks digest length per algorithm and the hex alphabet.
func TestValidHex(t *testing.T) {
	t.Parallel()

	require.True(t, ValidHex(crypto.MD5, "4ed853d4a52e6b9b9e11954f155ecb8a"))
	require.True(t, ValidHex(crypto.MD5, " DBDB8D8FE6D6A310BE79AD93B7D038EC "))
	require.True(t, ValidHex(crypto.SHA256, strings.Repeat("ab", 32)))

	require.False(t, ValidHex(crypto.MD5, ""))
	require.False(t, ValidHex(crypto.MD5, "not-hex-zz"))
	require.False(t, ValidHex(crypto.MD5, strings.Repeat("zz", 16)))
	// A sha256 digest under md5 can never match.
	require.False(t, ValidHex(crypto.MD5, strings.Repeat("ab", 32)))
}
