package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// ValidateConfig validates a configuration with defaults already applied.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateRemote(); err != nil {
		return err
	}
	if err := cv.validateDurations(); err != nil {
		return err
	}
	if err := cv.validatePublish(); err != nil {
		return err
	}
	return cv.validateUpload()
}

func (cv *configurationValidator) validateRemote() error {
	r := cv.config.Remote
	if r.URL == "" {
		return errors.New("remote.url is required")
	}
	auth := r.Auth
	switch auth.Type {
	case AuthTypeNone:
	case AuthTypeToken:
		if auth.Token == "" {
			return errors.New("token authentication requires remote.auth.token")
		}
	case AuthTypeBasic:
		if auth.Username == "" || auth.Password == "" {
			return errors.New("basic authentication requires remote.auth.username and remote.auth.password")
		}
	case AuthTypeSSH:
	default:
		return fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
	return nil
}

func (cv *configurationValidator) validateDurations() error {
	c := cv.config
	fields := []struct {
		name string
		raw  string
	}{
		{"git.clone_timeout", c.Git.CloneTimeout},
		{"git.push_timeout", c.Git.PushTimeout},
		{"publish.retry_initial_delay", c.Publish.RetryInitialDelay},
		{"publish.retry_max_delay", c.Publish.RetryMaxDelay},
		{"publish.lock_timeout", c.Publish.LockTimeout},
		{"publish.staging_max_age", c.Publish.StagingMaxAge},
		{"publish.sweep_interval", c.Publish.SweepInterval},
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", f.name, f.raw)
		}
	}
	return nil
}

func (cv *configurationValidator) validatePublish() error {
	p := cv.config.Publish
	if NormalizeRetryBackoff(string(p.RetryBackoff)) == "" {
		return fmt.Errorf("invalid publish.retry_backoff: %s", p.RetryBackoff)
	}
	if p.PushAttempts > 10 {
		return fmt.Errorf("publish.push_attempts must be at most 10, got %d", p.PushAttempts)
	}
	return nil
}

// ValidateUpload checks an upload policy on its own; the watcher uses it for reloads.
func ValidateUpload(u UploadConfig) error {
	for _, ext := range u.AllowedExtensions {
		if !extensionPattern.MatchString(ext) {
			return fmt.Errorf("invalid allowed extension %q", ext)
		}
	}
	if u.MaxUploadBytes <= 0 {
		return errors.New("upload.max_upload_bytes must be positive")
	}
	return nil
}

func (cv *configurationValidator) validateUpload() error {
	return ValidateUpload(cv.config.Upload)
}
