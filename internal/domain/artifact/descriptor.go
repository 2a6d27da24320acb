package artifact

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// errIdentifierRequired is returned when a descriptor has no identifier.
	errIdentifierRequired = errors.New("artifact identifier must be provided")
	// errSourceRequired is returned when a descriptor has no source URL.
	errSourceRequired = errors.New("artifact source url must be provided")
	// errDestinationRequired is returned when a descriptor has no destination path.
	errDestinationRequired = errors.New("artifact destination path must be provided")
	// errDigestRequired is returned when a descriptor other than firmware has no expected digest.
	errDigestRequired = errors.New("artifact expected digest must be provided")
)

// Descriptor describes one artifact: where it comes from, where it lives
// locally and which digest the local copy must have.
// It is immutable once constructed; use NewDescriptor.
type Descriptor struct {
	// identifier is the unique artifact name.
	identifier string
	// sourceURL is the remote location the artifact is fetched from.
	sourceURL string
	// destinationPath is the local file the artifact is stored in.
	destinationPath string
	// expectedDigest is the lowercase hex digest of a valid local copy.
	expectedDigest string
	// category is the storage group of the artifact.
	category Category
}

// NewDescriptor validates the inputs and returns an immutable descriptor.
// The expected digest is normalised to lowercase hex; it may be empty only
// for firmware, which is published without a digest.
func NewDescriptor(identifier, sourceURL, destinationPath, expectedDigest string, category Category) (Descriptor, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Descriptor{}, errIdentifierRequired
	}

	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return Descriptor{}, fmt.Errorf("%s: %w", identifier, errSourceRequired)
	}

	if strings.TrimSpace(destinationPath) == "" {
		return Descriptor{}, fmt.Errorf("%s: %w", identifier, errDestinationRequired)
	}

	if !category.Valid() {
		return Descriptor{}, fmt.Errorf("%s: %w", identifier, ErrUnknownCategory)
	}

	expectedDigest = strings.ToLower(strings.TrimSpace(expectedDigest))
	if expectedDigest == "" && category != CategoryFirmware {
		return Descriptor{}, fmt.Errorf("%s: %w", identifier, errDigestRequired)
	}

	return Descriptor{
		identifier:      identifier,
		sourceURL:       sourceURL,
		destinationPath: destinationPath,
		expectedDigest:  expectedDigest,
		category:        category,
	}, nil
}

// Identifier returns the unique artifact name.
func (d Descriptor) Identifier() string { return d.identifier }

// SourceURL returns the remote location of the artifact.
func (d Descriptor) SourceURL() string { return d.sourceURL }

// DestinationPath returns the local file path of the artifact.
func (d Descriptor) DestinationPath() string { return d.destinationPath }

// ExpectedDigest returns the lowercase hex digest a valid local copy must have.
func (d Descriptor) ExpectedDigest() string { return d.expectedDigest }

// Category returns the storage group of the artifact.
func (d Descriptor) Category() Category { return d.category }

// Verified reports whether the descriptor carries an expected digest.
func (d Descriptor) Verified() bool { return d.expectedDigest != "" }
