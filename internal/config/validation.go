package config

import (
	"fmt"
	"net/url"
	"strings"

	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
)

// Validate checks the configuration and normalizes it in place: the base URL
// gains a trailing slash and enum fields take their canonical spelling.
// It must be called once before the config is handed to any component.
func (c *Config) Validate() error {
	validator := newConfigurationValidator(c)
	return validator.validate()
}

// configurationValidator coordinates validation across configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateBase(); err != nil {
		return err
	}
	if err := cv.validatePaths(); err != nil {
		return err
	}
	if err := cv.validateModes(); err != nil {
		return err
	}
	return cv.validateHTTP()
}

func (cv *configurationValidator) validateBase() error {
	raw := strings.TrimSpace(cv.config.Base)
	if raw == "" {
		return derrors.ConfigRequired("base")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return derrors.ValidationFailed("base", err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return derrors.ValidationFailed("base", fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return derrors.ValidationFailed("base", "missing host")
	}

	cv.config.Base = raw
	cv.config.baseURL = u
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	if strings.TrimSpace(cv.config.Assets) == "" {
		cv.config.Assets = DefaultAssets
	}
	if strings.TrimSpace(cv.config.PostsDir) == "" {
		cv.config.PostsDir = DefaultPostsDir
	}
	ext := strings.TrimSpace(cv.config.Extension)
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.ContainsAny(ext, `/\`) {
		return derrors.ValidationFailed("extension", "must not contain path separators")
	}
	cv.config.Extension = ext
	if cv.config.MaxTopics < 0 {
		return derrors.ValidationFailed("max_topics", "cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateModes() error {
	strategy := NormalizeStrategy(string(cv.config.Strategy))
	if strategy == "" {
		return derrors.ValidationFailed("strategy", fmt.Sprintf("unknown strategy %q (want auto, pattern or dom)", cv.config.Strategy))
	}
	cv.config.Strategy = strategy

	format := NormalizeBodyFormat(string(cv.config.BodyFormat))
	if format == "" {
		return derrors.ValidationFailed("body_format", fmt.Sprintf("unknown body format %q (want raw or html)", cv.config.BodyFormat))
	}
	cv.config.BodyFormat = format

	cv.config.Logging.Level = NormalizeLogLevel(string(cv.config.Logging.Level))
	cv.config.Logging.Format = NormalizeLogFormat(string(cv.config.Logging.Format))
	return nil
}

func (cv *configurationValidator) validateHTTP() error {
	if cv.config.HTTP.Timeout < 0 {
		return derrors.ValidationFailed("http.timeout", "cannot be negative")
	}
	if cv.config.HTTP.Timeout == 0 {
		cv.config.HTTP.Timeout = DefaultTimeout
	}
	if cv.config.HTTP.RequestsPerSecond < 0 {
		return derrors.ValidationFailed("http.requests_per_second", "cannot be negative")
	}
	if cv.config.HTTP.Retries < 0 {
		return derrors.ValidationFailed("http.retries", "cannot be negative")
	}
	if raw := cv.config.HTTP.RetryBackoff; raw != "" {
		mode := NormalizeRetryBackoff(string(raw))
		if mode == "" {
			return derrors.ValidationFailed("http.retry_backoff", fmt.Sprintf("unknown backoff %q (want fixed, linear or exponential)", raw))
		}
		cv.config.HTTP.RetryBackoff = mode
	}
	if cv.config.HTTP.UserAgent == "" {
		cv.config.HTTP.UserAgent = DefaultUserAgent
	}
	return nil
}
