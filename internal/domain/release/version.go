package release

import (
	"fmt"
	"strconv"
	"strings"
)

// SemanticVersion is an ordered (major, minor, patch) triple.
type SemanticVersion struct {
	Major int
	Minor int
	Patch int
}

// Parse derives a SemanticVersion from a dotted string.
// Missing or non-numeric components default to 0, so "1.0" equals "1.0.0"
// and "1.x.3" parses as 1.0.3. A leading "v" is ignored.
func Parse(s string) SemanticVersion {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(s, ".")

	return SemanticVersion{
		Major: component(parts, 0),
		Minor: component(parts, 1),
		Patch: component(parts, 2),
	}
}

// component returns the numeric value of parts[index] or 0.
func component(parts []string, index int) int {
	if index >= len(parts) {
		return 0
	}

	value, err := strconv.Atoi(strings.TrimSpace(parts[index]))
	if err != nil || value < 0 {
		return 0
	}

	return value
}

// String renders the version as "major.minor.patch".
func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v < other, 0 if equal and 1 if v > other.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

// Compare parses both dotted strings and compares them.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// IsNewer reports whether candidate is a newer release than current.
func IsNewer(current, candidate string) bool {
	return Compare(current, candidate) < 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
