package config

import "time"

const (
	DefaultAssets    = "assets"
	DefaultPostsDir  = "_posts"
	DefaultExtension = ".html"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "discourse-import"
)

// Default returns a configuration with every optional field set. Flags the
// original importer exposed as opt-outs (image download, redirects) are on.
func Default() *Config {
	return &Config{
		Assets:         DefaultAssets,
		PostsDir:       DefaultPostsDir,
		DownloadImages: true,
		AddRedirects:   true,
		Strategy:       StrategyAuto,
		BodyFormat:     BodyFormatRaw,
		Extension:      DefaultExtension,
		HTTP: HTTPConfig{
			Timeout:   DefaultTimeout,
			UserAgent: DefaultUserAgent,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}
