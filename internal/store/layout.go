package store

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
)

const (
	// DefaultPackagePrefix is prepended to the version in update package names.
	DefaultPackagePrefix = "app-"

	// PackageExtension is used for update packages whose download URL has no extension.
	PackageExtension = ".pkg"

	// FirmwareMarkerDir is the directory, relative to the firmware root, that is
	// populated by a successful firmware extraction.
	FirmwareMarkerDir = "nand/system/Contents/registered"
)

// Layout resolves category directories under an application-private root.
type Layout struct {
	// Root is the storage root directory.
	Root string
	// PackagePrefix is prepended to update package file names.
	PackagePrefix string
}

// NewLayout returns a Layout rooted at root with the default package prefix.
func NewLayout(root string) Layout {
	return Layout{
		Root:          filepath.Clean(root),
		PackagePrefix: DefaultPackagePrefix,
	}
}

// Dir returns the storage directory of a category.
func (l Layout) Dir(category artifact.Category) string {
	return filepath.Join(l.Root, category.Directory())
}

// PathFor returns the deterministic path of a file within a category.
// Only the base name of fileName is used so names cannot escape the directory.
func (l Layout) PathFor(category artifact.Category, fileName string) string {
	return filepath.Join(l.Dir(category), filepath.Base(filepath.Clean("/"+fileName)))
}

// UpdatePackagePath returns the download path of the update package for a version.
// The extension is taken from the path of downloadURL, so the installer sees the
// published package type.
func (l Layout) UpdatePackagePath(versionName, downloadURL string) string {
	prefix := l.PackagePrefix
	if prefix == "" {
		prefix = DefaultPackagePrefix
	}

	name := prefix + sanitize(versionName) + packageExtension(downloadURL)

	return l.PathFor(artifact.CategoryUpdatePackage, name)
}

// packageExtension returns the sanitized extension of the URL path, or PackageExtension.
func packageExtension(downloadURL string) string {
	u, err := url.Parse(strings.TrimSpace(downloadURL))
	if err != nil {
		return PackageExtension
	}

	ext := path.Ext(u.Path)
	if len(ext) < 2 { //nolint:mnd // A dot followed by at least one character.
		return PackageExtension
	}

	return "." + sanitize(ext[1:])
}

// FirmwareRoot returns the directory firmware archives are extracted into.
func (l Layout) FirmwareRoot() string {
	return l.Dir(artifact.CategoryFirmware)
}

// FirmwareMarkerPath returns the directory whose contents prove a prior extraction.
func (l Layout) FirmwareMarkerPath() string {
	return filepath.Join(l.FirmwareRoot(), filepath.FromSlash(FirmwareMarkerDir))
}

// sanitize keeps version strings safe for use in file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
}
