package firmware

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// errIllegalPath is returned for archive entries escaping the destination.
var errIllegalPath = errors.New("illegal path in archive")

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destination string) error
}

// ZipExtractor extracts zip archives.
type ZipExtractor struct{}

// Extract unpacks every entry of archivePath below destination.
func (ZipExtractor) Extract(ctx context.Context, archivePath, destination string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(destination, filepath.FromSlash(entry.Name))
		if err = ensureWithinRoot(destination, target); err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}

		if entry.FileInfo().IsDir() {
			if err = os.MkdirAll(target, 0o755); err != nil { //nolint:mnd // Conventional directory mode.
				return fmt.Errorf("mkdir %s: %w", target, err)
			}

			continue
		}

		if err = extractFile(entry, target); err != nil {
			return err
		}
	}

	return nil
}

// extractFile writes one regular entry to target.
func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:mnd // Conventional directory mode.
		return fmt.Errorf("mkdir for file %s: %w", target, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}

	defer func() {
		_ = src.Close()
	}()

	mode := entry.Mode().Perm() | 0o600 //nolint:mnd // Owner must be able to rewrite the file.

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	//nolint:gosec // Archives come from a digest-verified or explicitly trusted source.
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return fmt.Errorf("copy file %s: %w", target, err)
	}

	return dst.Close()
}

// ensureWithinRoot rejects targets outside root.
func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if target == root {
		return nil
	}

	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return errIllegalPath
	}

	return nil
}
