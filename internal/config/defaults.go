package config

import (
	"strings"
	"time"
)

const (
	defaultNetworkTimeout = 2 * time.Minute
	defaultLockTimeout    = 5 * time.Minute
	defaultStagingMaxAge  = time.Hour
	defaultSweepInterval  = 15 * time.Minute
	defaultServerTimeout  = 5 * time.Minute
	defaultMaxUploadBytes = 64 << 20
	defaultEventsSubject  = "docpublish.published"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// RemoteDefaultApplier handles remote and git defaults.
type RemoteDefaultApplier struct{}

func (RemoteDefaultApplier) Domain() string { return "remote" }

func (RemoteDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Remote.Auth == nil {
		cfg.Remote.Auth = &AuthConfig{Type: AuthTypeNone}
	}
	if cfg.Remote.Auth.Type == "" {
		cfg.Remote.Auth.Type = AuthTypeNone
	}
	cfg.Remote.Auth.Type = AuthType(strings.ToLower(string(cfg.Remote.Auth.Type)))
	if cfg.Git.AuthorName == "" {
		cfg.Git.AuthorName = "docpublish"
	}
	if cfg.Git.AuthorEmail == "" {
		cfg.Git.AuthorEmail = "docpublish@localhost"
	}
	return nil
}

// PublishDefaultApplier handles publish transaction defaults.
type PublishDefaultApplier struct{}

func (PublishDefaultApplier) Domain() string { return "publish" }

func (PublishDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Publish.PushAttempts <= 0 {
		cfg.Publish.PushAttempts = 1
	}
	if cfg.Publish.RetryBackoff == "" {
		cfg.Publish.RetryBackoff = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(cfg.Publish.RetryBackoff)); m != "" {
		cfg.Publish.RetryBackoff = m
	}
	return nil
}

// UploadDefaultApplier handles upload policy defaults.
type UploadDefaultApplier struct{}

func (UploadDefaultApplier) Domain() string { return "upload" }

func (UploadDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{"pdf"}
	}
	for i, ext := range cfg.Upload.AllowedExtensions {
		cfg.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
	if cfg.Upload.MaxUploadBytes <= 0 {
		cfg.Upload.MaxUploadBytes = defaultMaxUploadBytes
	}
	return nil
}

// ServiceDefaultApplier handles server, events and history defaults.
type ServiceDefaultApplier struct{}

func (ServiceDefaultApplier) Domain() string { return "service" }

func (ServiceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		cfg.Events.Subject = defaultEventsSubject
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		RemoteDefaultApplier{},
		PublishDefaultApplier{},
		UploadDefaultApplier{},
		ServiceDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
