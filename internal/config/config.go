package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
)

// Config represents the importer configuration. It is built once by the CLI,
// validated, and then passed by value-pointer to every component; nothing
// mutates it after Validate returns.
type Config struct {
	Base           string     `yaml:"base"`
	Assets         string     `yaml:"assets"`
	AssetsURL      string     `yaml:"assets_url,omitempty"`
	PostsDir       string     `yaml:"posts_dir"`
	DownloadImages bool       `yaml:"download_images"`
	AddRedirects   bool       `yaml:"add_redirects"`
	AddUID         bool       `yaml:"add_uid"`
	AddFingerprint bool       `yaml:"add_fingerprint"`
	Strategy       Strategy   `yaml:"strategy"`
	StrictImages   bool       `yaml:"strict_images"`
	BodyFormat     BodyFormat `yaml:"body_format"`
	Extension      string     `yaml:"extension"`
	MaxTopics      int        `yaml:"max_topics,omitempty"`
	DryRun         bool       `yaml:"dry_run,omitempty"`

	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`

	// Manifest is an optional SQLite file receiving a record of each run.
	Manifest string `yaml:"manifest,omitempty"`
	// MetricsFile receives a Prometheus textfile snapshot when the run ends.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	baseURL *url.URL
}

// HTTPConfig controls the forum and image HTTP client.
type HTTPConfig struct {
	Timeout           time.Duration    `yaml:"timeout"`
	RequestsPerSecond float64          `yaml:"requests_per_second,omitempty"`
	UserAgent         string           `yaml:"user_agent,omitempty"`
	// Retries is the number of extra attempts after a transient failure
	// (connection error, 429 or 5xx). Zero disables retrying.
	Retries           int              `yaml:"retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay time.Duration    `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     time.Duration    `yaml:"retry_max_delay,omitempty"`
}

// LoggingConfig controls slog setup.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads a YAML configuration file on top of Default(). Environment
// variables (including those from .env files) are expanded in the file
// contents before decoding. An empty path returns the defaults.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	// #nosec G304 -- the config path is supplied by the operator
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, derrors.ConfigLoadFailed(configPath, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, derrors.ConfigLoadFailed(configPath, fmt.Errorf("failed to unmarshal config: %w", err))
	}
	return cfg, nil
}

// BaseURL returns the parsed instance URL. Only valid after Validate.
func (c *Config) BaseURL() *url.URL {
	if c.baseURL == nil {
		return nil
	}
	u := *c.baseURL
	return &u
}

// AssetsReference is the site-rooted prefix used for localized image
// references, e.g. "/assets".
func (c *Config) AssetsReference() string {
	if c.AssetsURL != "" {
		return strings.TrimSuffix(c.AssetsURL, "/")
	}
	return "/" + strings.TrimPrefix(filepath.ToSlash(filepath.Clean(c.Assets)), "/")
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Base = "https://meta.discourse.org/"
	example.Manifest = "import.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	header := "# discourse-import configuration\n# Values may reference environment variables, e.g. base: ${DISCOURSE_BASE}\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return derrors.FilesystemFailed("write", configPath, err)
	}
	return nil
}
