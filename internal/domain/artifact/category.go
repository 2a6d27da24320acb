package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// Category groups artifacts that share a storage subdirectory.
type Category int

const (
	// CategoryUnknown is the zero value and never valid in a descriptor.
	CategoryUnknown Category = iota
	// CategoryKeys holds cryptographic key bundles.
	CategoryKeys
	// CategoryGpuDriver holds GPU driver packages.
	CategoryGpuDriver
	// CategoryFirmware holds firmware bundles.
	CategoryFirmware
	// CategoryUpdatePackage holds self-update application packages.
	CategoryUpdatePackage
)

// ErrUnknownCategory is returned when a category name cannot be parsed.
var ErrUnknownCategory = errors.New("unknown artifact category")

// Categories returns every valid category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryKeys,
		CategoryGpuDriver,
		CategoryFirmware,
		CategoryUpdatePackage,
	}
}

// String returns the configuration name of the category.
func (c Category) String() string {
	switch c {
	case CategoryKeys:
		return "keys"
	case CategoryGpuDriver:
		return "gpu_driver"
	case CategoryFirmware:
		return "firmware"
	case CategoryUpdatePackage:
		return "update_package"
	default:
		return "unknown"
	}
}

// Directory returns the storage subdirectory used for the category.
func (c Category) Directory() string {
	switch c {
	case CategoryKeys:
		return "keys"
	case CategoryGpuDriver:
		return "gpu_drivers"
	case CategoryFirmware:
		return "firmware"
	case CategoryUpdatePackage:
		return "downloads"
	default:
		return ""
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= CategoryKeys && c <= CategoryUpdatePackage
}

// ParseCategory converts a configuration name into a Category.
// Both the singular name and the directory name are accepted.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	for _, c := range Categories() {
		if name == c.String() || name == c.Directory() {
			return c, nil
		}
	}

	return CategoryUnknown, fmt.Errorf("%q: %w", s, ErrUnknownCategory)
}

// MarshalText implements encoding.TextMarshaler so categories read well in YAML and JSON.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%d: %w", int(c), ErrUnknownCategory)
	}

	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}
