package packager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/artifact-keeper/internal/config"
	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/domain/release"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/metadata"
)

const (
	// MetadataFilename is the metadata document served at metadata_url.
	MetadataFilename = "latest.json"
	// ManifestFilename lists background artifacts with their digests.
	ManifestFilename = "artifacts.yaml"

	// defaultFileMode is used for the produced files.
	defaultFileMode os.FileMode = 0o644
)

var (
	// errBaseURLRequired is returned when no download base URL is given.
	errBaseURLRequired = errors.New("base url must be provided")
	// errNothingToPackage is returned when neither a package nor artifacts are given.
	errNothingToPackage = errors.New("nothing to package: provide a package or artifacts")
	// errVersionRequired is returned when a package is given without a version.
	errVersionRequired = errors.New("version must be provided with a package")
	// errBadArtifactArgument is returned for artifact arguments not in category=path form.
	errBadArtifactArgument = errors.New("artifact must be given as category=path")
)

// Options contains inputs for the packager entry point.
type Options struct {
	// PackagePath is the update package to publish; optional.
	PackagePath string
	// VersionName is the version of the package.
	VersionName string
	// Title is the release title shown to users.
	Title string
	// NotesPath is an optional file with release notes.
	NotesPath string
	// BaseURL is where the files will be uploaded.
	BaseURL string
	// Artifacts are background artifacts in category=path form.
	Artifacts []string
	// Algorithm names the digest algorithm; empty means md5.
	Algorithm string
	// OutputDir receives the produced files; defaults to the working directory.
	OutputDir string
	// ConfigPath, if set, gets the manifest entries merged into its artifacts.
	ConfigPath string
}

// Result lists the produced files.
type Result struct {
	// Metadata is the written metadata document, if a package was given.
	Metadata string
	// Manifest is the written artifact manifest, if artifacts were given.
	Manifest string
	// Uploads are the local files that must be uploaded under BaseURL.
	Uploads []string
}

// packager prepares release files for distribution.
// It is unexported: callers should use Run, which encapsulates setup and validation.
type packager struct {
	opts     *Options
	verifier *digest.Verifier
	result   *Result
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "artifact-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	if err = pkg.Run(ctx); err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return pkg.result, nil
}

// newPackager validates the options.
func newPackager(opts *Options) (*packager, error) {
	if opts.PackagePath == "" && len(opts.Artifacts) == 0 {
		return nil, errNothingToPackage
	}

	if opts.PackagePath != "" && strings.TrimSpace(opts.VersionName) == "" {
		return nil, errVersionRequired
	}

	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: %w", errBaseURLRequired, err)
	}

	hash, err := digest.ParseAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	verifier, err := digest.NewVerifier(hash)
	if err != nil {
		return nil, err
	}

	return &packager{
		opts:     opts,
		verifier: verifier,
		result:   new(Result),
	}, nil
}

// Run writes the metadata document and the manifest.
func (p *packager) Run(ctx context.Context) error {
	if err := os.MkdirAll(p.outputDir(), 0o755); err != nil { //nolint:mnd // Conventional directory mode.
		return fmt.Errorf("create output directory: %w", err)
	}

	if p.opts.PackagePath != "" {
		if err := p.writeMetadata(ctx); err != nil {
			return err
		}
	}

	if len(p.opts.Artifacts) > 0 {
		if err := p.writeManifest(ctx); err != nil {
			return err
		}
	}

	p.printNextSteps(ctx)

	return nil
}

// writeMetadata hashes the package and writes the metadata document.
func (p *packager) writeMetadata(ctx context.Context) error {
	sum, err := p.verifier.DigestOf(p.opts.PackagePath)
	if err != nil {
		return err
	}

	notes := ""

	if p.opts.NotesPath != "" {
		raw, readErr := os.ReadFile(filepath.Clean(p.opts.NotesPath))
		if readErr != nil {
			return fmt.Errorf("read release notes: %w", readErr)
		}

		notes = strings.TrimSpace(string(raw))
	}

	title := p.opts.Title
	if title == "" {
		title = "Version " + p.opts.VersionName
	}

	document := metadata.NewDocument(release.UpdateInfo{
		Title:       title,
		Content:     notes,
		VersionName: p.opts.VersionName,
		DownloadURL: p.urlFor(filepath.Base(p.opts.PackagePath)),
		DigestHex:   sum,
	})

	contents, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	path := filepath.Join(p.outputDir(), MetadataFilename)
	if err = os.WriteFile(path, contents, defaultFileMode); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	logger.InfoKV(ctx, "Wrote update metadata", "path", path, "version", p.opts.VersionName, "digest", sum)

	p.result.Metadata = path
	p.result.Uploads = append(p.result.Uploads, p.opts.PackagePath, path)

	return nil
}

// writeManifest hashes every artifact, writes the manifest and optionally merges it into the settings.
func (p *packager) writeManifest(ctx context.Context) error {
	entries := make([]config.Artifact, 0, len(p.opts.Artifacts))

	for _, arg := range p.opts.Artifacts {
		entry, localPath, err := p.describe(arg)
		if err != nil {
			return err
		}

		entries = append(entries, entry)
		p.result.Uploads = append(p.result.Uploads, localPath)
	}

	contents, err := yaml.Marshal(map[string][]config.Artifact{"artifacts": entries})
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(p.outputDir(), ManifestFilename)
	if err = os.WriteFile(path, contents, defaultFileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Wrote artifact manifest", "path", path, "artifacts", len(entries))

	p.result.Manifest = path

	if p.opts.ConfigPath != "" {
		return mergeIntoConfig(ctx, p.opts.ConfigPath, entries)
	}

	return nil
}

// describe parses a category=path argument and hashes the file.
func (p *packager) describe(arg string) (config.Artifact, string, error) {
	name, localPath, ok := strings.Cut(arg, "=")
	if !ok || localPath == "" {
		return config.Artifact{}, "", fmt.Errorf("%q: %w", arg, errBadArtifactArgument)
	}

	category, err := artifact.ParseCategory(name)
	if err != nil {
		return config.Artifact{}, "", err
	}

	sum, err := p.verifier.DigestOf(localPath)
	if err != nil {
		return config.Artifact{}, "", err
	}

	fileName := filepath.Base(localPath)

	return config.Artifact{
		ID:       fileName,
		URL:      p.urlFor(category.Directory(), fileName),
		Category: category,
		FileName: fileName,
		Digest:   sum,
	}, localPath, nil
}

// mergeIntoConfig replaces or appends entries in the settings file at path.
func mergeIntoConfig(ctx context.Context, path string, entries []config.Artifact) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		i := slices.IndexFunc(cfg.Artifacts, func(a config.Artifact) bool { return a.ID == entry.ID })
		if i >= 0 {
			cfg.Artifacts[i] = entry
		} else {
			cfg.Artifacts = append(cfg.Artifacts, entry)
		}
	}

	if err = config.Save(path, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	logger.InfoKV(ctx, "Updated settings", "path", path, "artifacts", len(cfg.Artifacts))

	return nil
}

// urlFor joins segments onto the base URL.
func (p *packager) urlFor(segments ...string) string {
	joined, err := url.JoinPath(p.opts.BaseURL, segments...)
	if err != nil {
		return strings.TrimRight(p.opts.BaseURL, "/") + "/" + strings.Join(segments, "/")
	}

	return joined
}

// outputDir returns the configured output directory or the working directory.
func (p *packager) outputDir() string {
	if p.opts.OutputDir == "" {
		return "."
	}

	return p.opts.OutputDir
}

// printNextSteps logs human-readable guidance for the produced files.
func (p *packager) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("Upload the following files under ")
	builder.WriteString(p.opts.BaseURL)
	builder.WriteString(":")

	for _, name := range p.result.Uploads {
		builder.WriteString("\n  ")
		builder.WriteString(name)
	}

	if p.result.Metadata != "" {
		builder.WriteString("\nThen point metadata_url at ")
		builder.WriteString(p.urlFor(MetadataFilename))
	}

	logger.Info(ctx, builder.String())
}
