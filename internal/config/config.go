package config

import (
	"crypto"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/artifact-keeper/internal/digest"
	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/logger"
	"github.com/oshokin/artifact-keeper/internal/store"
)

// Config holds the settings shared by the artifact-keeper binaries.
type Config struct {
	// StorageRoot is the application-private directory artifacts are kept in.
	StorageRoot string `yaml:"storage_root"`
	// MetadataURL is the endpoint describing the latest self-update.
	MetadataURL string `yaml:"metadata_url,omitempty"`
	// ServerAddress is the gRPC address of the status server.
	ServerAddress string `yaml:"server_addr,omitempty"`
	// Timeout bounds connection setup and response headers of network calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"log_level,omitempty"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format,omitempty"`
	// LogFile additionally receives every log message as JSON.
	LogFile string `yaml:"log_file,omitempty"`
	// DigestAlgorithm names the hash used for every digest (md5 by default).
	DigestAlgorithm string `yaml:"digest_algorithm,omitempty"`
	// PackagePrefix is prepended to downloaded update package names.
	PackagePrefix string `yaml:"package_prefix,omitempty"`
	// MismatchRetries is how many extra fetches follow a digest mismatch.
	MismatchRetries int `yaml:"mismatch_retries"`
	// RefreshInterval is how often the status server re-checks artifacts.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
	// RefreshLogLevel, if set, overrides the log level of periodic refreshes.
	RefreshLogLevel string `yaml:"refresh_log_level,omitempty"`
	// LedgerFile stores the last outcome of each artifact.
	LedgerFile string `yaml:"ledger_file,omitempty"`
	// Retry bounds network retries.
	Retry Retry `yaml:"retry"`
	// Artifacts are the artifacts kept valid in the background.
	Artifacts []Artifact `yaml:"artifacts"`
	// Firmware describes the firmware bundle, if any.
	Firmware *Firmware `yaml:"firmware,omitempty"`
	// Install configures how verified update packages are installed.
	Install Install `yaml:"install"`
}

// Retry is the YAML form of fetcher.RetryPolicy.
type Retry struct {
	// MaxAttempts is the total number of attempts per fetch.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialBackoff is the delay after the first failure.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff caps any single delay.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Artifact describes one background artifact.
type Artifact struct {
	// ID is the unique artifact identifier.
	ID string `yaml:"id"`
	// URL is the remote source.
	URL string `yaml:"url"`
	// Category is one of keys, gpu_driver, firmware, update_package.
	Category artifact.Category `yaml:"category"`
	// FileName is the local file name; defaults to the last URL path segment.
	FileName string `yaml:"file_name,omitempty"`
	// Digest is the expected hex digest.
	Digest string `yaml:"digest"`
}

// Firmware describes the firmware bundle.
type Firmware struct {
	// URL is the remote archive.
	URL string `yaml:"url"`
	// FileName is the local archive name.
	FileName string `yaml:"file_name,omitempty"`
	// Digest is the optional expected hex digest of the archive.
	Digest string `yaml:"digest,omitempty"`
}

// Install selects the install trigger for update packages.
type Install struct {
	// Mode is "open" (platform handler), "command" or "replace".
	Mode string `yaml:"mode,omitempty"`
	// Command is the handler used by the "command" mode; "{path}" is substituted.
	Command []string `yaml:"command,omitempty"`
	// Target is the executable replaced by the "replace" mode; empty means self.
	Target string `yaml:"target,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "artifact-keeper.yaml"

	// DefaultLedgerFilename is the ledger file name inside the storage root.
	DefaultLedgerFilename = "ledger.json"

	// DefaultTimeout is the default duration for network setup.
	DefaultTimeout = 30 * time.Second

	// DefaultRefreshInterval is how often the status server re-checks artifacts.
	DefaultRefreshInterval = 15 * time.Minute

	// DefaultFirmwareFilename is the local name of the firmware archive.
	DefaultFirmwareFilename = "firmware.zip"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// Install modes.
	InstallModeOpen    = "open"
	InstallModeCommand = "command"
	InstallModeReplace = "replace"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errStorageRootRequired is returned when the storage root is missing.
	errStorageRootRequired = errors.New("storage root must be provided")
	// errBadLogging is returned for unknown log levels and formats.
	errBadLogging = errors.New("invalid logging settings")
	// errDigestRequired is returned for artifacts without an expected digest.
	errDigestRequired = errors.New("artifact digest must be provided")
	// errBadDigest is returned for digests that are not hex of the algorithm's length.
	errBadDigest = errors.New("malformed digest")
	// errDuplicateArtifact is returned when two artifacts share an identifier.
	errDuplicateArtifact = errors.New("duplicate artifact id")
	// errUnknownInstallMode is returned for unsupported install modes.
	errUnknownInstallMode = errors.New("unknown install mode")
	// errCommandRequired is returned when the command install mode has no command.
	errCommandRequired = errors.New("install command must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings for required fields and fills defaults.
//
//nolint:cyclop // A flat list of independent field checks.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(settings.StorageRoot) == "" {
		return errStorageRootRequired
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.RefreshInterval <= 0 {
		settings.RefreshInterval = DefaultRefreshInterval
	}

	if settings.LedgerFile == "" {
		settings.LedgerFile = filepath.Join(settings.StorageRoot, DefaultLedgerFilename)
	}

	if settings.MismatchRetries < 0 {
		settings.MismatchRetries = 0
	}

	hash, err := digest.ParseAlgorithm(settings.DigestAlgorithm)
	if err != nil {
		return err
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); settings.LogLevel != "" && !ok {
		return fmt.Errorf("%w: level %q", errBadLogging, settings.LogLevel)
	}

	if _, ok := logger.ParseLogLevel(settings.RefreshLogLevel); settings.RefreshLogLevel != "" && !ok {
		return fmt.Errorf("%w: refresh level %q", errBadLogging, settings.RefreshLogLevel)
	}

	switch settings.LogFormat {
	case "", logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: format %q", errBadLogging, settings.LogFormat)
	}

	if settings.ServerAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
			return fmt.Errorf("invalid server socket: %w", err)
		}
	}

	if settings.MetadataURL != "" {
		if _, err := url.ParseRequestURI(settings.MetadataURL); err != nil {
			return fmt.Errorf("invalid metadata URL: %w", err)
		}
	}

	if err := validateArtifacts(settings.Artifacts, hash); err != nil {
		return err
	}

	if settings.Firmware != nil {
		if _, err := url.ParseRequestURI(settings.Firmware.URL); err != nil {
			return fmt.Errorf("invalid firmware URL: %w", err)
		}

		// The firmware digest is optional; when given it must be usable.
		if settings.Firmware.Digest != "" && !digest.ValidHex(hash, settings.Firmware.Digest) {
			return fmt.Errorf("firmware: %w for %s", errBadDigest, hash)
		}
	}

	return validateInstall(&settings.Install)
}

// validateArtifacts checks identifiers, URLs, categories and digests.
func validateArtifacts(artifacts []Artifact, hash crypto.Hash) error {
	seen := make(map[string]struct{}, len(artifacts))

	for i, a := range artifacts {
		if _, ok := seen[a.ID]; ok {
			return fmt.Errorf("%s: %w", a.ID, errDuplicateArtifact)
		}

		seen[a.ID] = struct{}{}

		if _, err := url.ParseRequestURI(a.URL); err != nil {
			return fmt.Errorf("artifact %d (%s): invalid URL: %w", i, a.ID, err)
		}

		if !a.Category.Valid() {
			return fmt.Errorf("artifact %d (%s): %w", i, a.ID, artifact.ErrUnknownCategory)
		}

		if strings.TrimSpace(a.Digest) == "" {
			return fmt.Errorf("artifact %d (%s): %w", i, a.ID, errDigestRequired)
		}

		if !digest.ValidHex(hash, a.Digest) {
			return fmt.Errorf("artifact %d (%s): %w for %s", i, a.ID, errBadDigest, hash)
		}
	}

	return nil
}

// validateInstall fills the default install mode and checks its settings.
func validateInstall(install *Install) error {
	switch install.Mode {
	case "":
		install.Mode = InstallModeOpen
	case InstallModeOpen, InstallModeReplace:
	case InstallModeCommand:
		if len(install.Command) == 0 {
			return errCommandRequired
		}
	default:
		return fmt.Errorf("%q: %w", install.Mode, errUnknownInstallMode)
	}

	return nil
}

// RetryPolicy converts the YAML retry settings into a fetcher policy.
func (c *Config) RetryPolicy() fetcher.RetryPolicy {
	policy := fetcher.DefaultRetryPolicy()

	if c.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.Retry.MaxAttempts
	}

	if c.Retry.InitialBackoff > 0 {
		policy.InitialBackoff = c.Retry.InitialBackoff
	}

	if c.Retry.MaxBackoff > 0 {
		policy.MaxBackoff = c.Retry.MaxBackoff
	}

	return policy
}

// Hash returns the configured digest algorithm.
func (c *Config) Hash() (crypto.Hash, error) {
	return digest.ParseAlgorithm(c.DigestAlgorithm)
}

// Layout returns the storage layout rooted at StorageRoot.
func (c *Config) Layout() store.Layout {
	layout := store.NewLayout(c.StorageRoot)
	if c.PackagePrefix != "" {
		layout.PackagePrefix = c.PackagePrefix
	}

	return layout
}

// Descriptors builds artifact descriptors for every configured artifact.
func (c *Config) Descriptors() ([]artifact.Descriptor, error) {
	layout := c.Layout()
	result := make([]artifact.Descriptor, 0, len(c.Artifacts))

	for _, a := range c.Artifacts {
		fileName := a.FileName
		if fileName == "" {
			fileName = fileNameFromURL(a.URL, a.ID)
		}

		desc, err := artifact.NewDescriptor(a.ID, a.URL, layout.PathFor(a.Category, fileName), a.Digest, a.Category)
		if err != nil {
			return nil, err
		}

		result = append(result, desc)
	}

	return result, nil
}

// FirmwareDescriptor builds the firmware descriptor, or reports false if none is configured.
func (c *Config) FirmwareDescriptor() (artifact.Descriptor, bool, error) {
	if c.Firmware == nil {
		return artifact.Descriptor{}, false, nil
	}

	fileName := c.Firmware.FileName
	if fileName == "" {
		fileName = DefaultFirmwareFilename
	}

	layout := c.Layout()

	desc, err := artifact.NewDescriptor("firmware", c.Firmware.URL,
		layout.PathFor(artifact.CategoryFirmware, fileName), c.Firmware.Digest, artifact.CategoryFirmware)
	if err != nil {
		return artifact.Descriptor{}, false, err
	}

	return desc, true, nil
}

// fileNameFromURL returns the last path segment of rawURL, or fallback.
func fileNameFromURL(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}

	name := filepath.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return fallback
	}

	return name
}
