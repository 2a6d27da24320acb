package digest

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"

	// Register the hash implementations selectable through configuration.
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

const (
	// DefaultAlgorithm matches the md5Hash field published by the metadata endpoint.
	DefaultAlgorithm = crypto.MD5

	// chunkSize is the read buffer used while hashing.
	chunkSize = 32 * 1024
)

var (
	// errHashUnavailable is returned when the hash implementation is not linked in.
	errHashUnavailable = errors.New("hash function unavailable")
	// errUnknownAlgorithm is returned for unsupported algorithm names.
	errUnknownAlgorithm = errors.New("unknown digest algorithm")
)

// Verifier computes file digests with a single hash algorithm.
type Verifier struct {
	// hash is the algorithm used for every digest.
	hash crypto.Hash
}

// NewVerifier returns a Verifier for the given algorithm.
func NewVerifier(hash crypto.Hash) (*Verifier, error) {
	if !hash.Available() {
		return nil, fmt.Errorf("%s: %w", hash, errHashUnavailable)
	}

	return &Verifier{hash: hash}, nil
}

// ParseAlgorithm maps a configuration name to a hash algorithm.
// An empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (crypto.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md5":
		return crypto.MD5, nil
	case "sha1":
		return crypto.SHA1, nil
	case "sha256":
		return crypto.SHA256, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%q: %w", name, errUnknownAlgorithm)
	}
}

// Hash returns the algorithm used by the verifier.
func (v *Verifier) Hash() crypto.Hash {
	return v.hash
}

// DigestOf returns the lowercase hex digest of the file at path.
func (v *Verifier) DigestOf(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", artifact.ErrIO, path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := v.hash.New()
	buffer := make([]byte, chunkSize)

	if _, err = io.CopyBuffer(hasher, file, buffer); err != nil {
		return "", fmt.Errorf("%w: read %s: %w", artifact.ErrIO, path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Check reports whether the file at path exists and has the expected digest.
// A missing file is not an error; any other read failure is returned.
func (v *Verifier) Check(path, expectedHex string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("%w: stat %s: %w", artifact.ErrIO, path, err)
	}

	actual, err := v.DigestOf(path)
	if err != nil {
		return false, err
	}

	return Equal(actual, expectedHex), nil
}

// IsValid is Check with read errors treated as an invalid file.
func (v *Verifier) IsValid(path, expectedHex string) bool {
	valid, err := v.Check(path, expectedHex)

	return err == nil && valid
}

// Equal compares two hex digests case-insensitively. Empty digests never match.
func Equal(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)

	return a != "" && strings.EqualFold(a, b)
}

// ValidHex reports whether s is a hex digest of the length produced by hash.
// Surrounding spaces and letter case are ignored.
func ValidHex(hash crypto.Hash, s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != hash.Size()*2 {
		return false
	}

	for _, ch := range s {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}

	return true
}

// Decode converts a hex digest into raw bytes.
func Decode(hexDigest string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexDigest))
	if err != nil {
		return nil, fmt.Errorf("decode digest: %w", err)
	}

	return raw, nil
}
