package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCompare covers ordering, missing components and non-numeric input.
func TestCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.4", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
		{"1", "1.0.0", 0},
		{"v1.4.0", "1.4.0", 0},
		{"1.10.0", "1.9.0", 1},
		{"1.beta.2", "1.0.2", 0},
		{"", "0.0.0", 0},
		{"0.0.1", "", 1},
	}

	for _, c := range cases {
		require.Equal(t, c.want, Compare(c.a, c.b), "%s vs %s", c.a, c.b)
	}
}

// TestIsNewer verifies the update-available decision.
func TestIsNewer(t *testing.T) {
	t.Parallel()

	require.True(t, IsNewer("1.4.0", "1.4.1"))
	require.False(t, IsNewer("1.4.0", "1.4.0"))
	require.False(t, IsNewer("1.4.1", "1.4.0"))
	require.True(t, IsNewer("1.4.0", "2"))
}

// TestParse checks the parsed triple and its string form.
func TestParse(t *testing.T) {
	t.Parallel()

	v := Parse("3.7")
	require.Equal(t, SemanticVersion{Major: 3, Minor: 7}, v)
	require.Equal(t, "3.7.0", v.String())
	require.Equal(t, SemanticVersion{}, Parse("-1.-2.x"))
}

// TestUpdateInfoIsEmpty verifies sentinel detection.
func TestUpdateInfoIsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, EmptyUpdateInfo.IsEmpty())
	require.True(t, UpdateInfo{}.IsEmpty())
	require.False(t, UpdateInfo{VersionName: "1.0.0"}.IsEmpty())
}
