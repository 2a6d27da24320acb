package installer

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/logger"
)

// DefaultTargetMode is the file mode of a replaced executable.
const DefaultTargetMode os.FileMode = 0o755

var errDigestRequired = errors.New("digest is required to apply an executable")

// BinaryApplier replaces an executable with a verified package in place.
// go-update re-checks the digest while applying and rolls back on failure.
type BinaryApplier struct {
	// targetPath is the executable to replace; empty means the running binary.
	targetPath string
	// hash is the algorithm the request digest was computed with.
	hash crypto.Hash
}

// NewBinaryApplier returns an applier for targetPath using hash for checksums.
func NewBinaryApplier(targetPath string, hash crypto.Hash) *BinaryApplier {
	return &BinaryApplier{
		targetPath: targetPath,
		hash:       hash,
	}
}

// Install applies req.Path over the target executable.
func (b *BinaryApplier) Install(ctx context.Context, req Request) error {
	if req.DigestHex == "" {
		return errDigestRequired
	}

	checksum, err := digest.Decode(req.DigestHex)
	if err != nil {
		return err
	}

	target := b.targetPath
	if target == "" {
		if target, err = os.Executable(); err != nil {
			return fmt.Errorf("locate running executable: %w", err)
		}
	}

	update, err := os.Open(filepath.Clean(req.Path))
	if err != nil {
		return fmt.Errorf("open package: %w", err)
	}

	defer func() {
		_ = update.Close()
	}()

	logger.InfoKV(ctx, "Applying executable update", "target", target, "package", req.Path)

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultTargetMode,
		Checksum:   checksum,
		Hash:       b.hash,
	}

	if err = goupdate.Apply(update, options); err != nil {
		return fmt.Errorf("apply update to %s: %w", target, err)
	}

	oldFileName := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}
