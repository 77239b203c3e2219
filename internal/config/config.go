package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Remote  RemoteConfig  `yaml:"remote"`
	Git     GitConfig     `yaml:"git"`
	Publish PublishConfig `yaml:"publish"`
	Upload  UploadConfig  `yaml:"upload"`
	Server  ServerConfig  `yaml:"server"`
	History HistoryConfig `yaml:"history"`
	Events  EventsConfig  `yaml:"events"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RemoteConfig identifies the content repository documents are published into.
type RemoteConfig struct {
	URL    string      `yaml:"url"`
	Branch string      `yaml:"branch,omitempty"` // empty: the remote's default branch
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// AuthType enumerates supported remote authentication methods.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
	AuthTypeSSH   AuthType = "ssh"
)

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Type     AuthType `yaml:"type"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// GitConfig holds commit identity and network limits for clone/push.
type GitConfig struct {
	AuthorName   string `yaml:"author_name"`
	AuthorEmail  string `yaml:"author_email"`
	CloneTimeout string `yaml:"clone_timeout"`
	PushTimeout  string `yaml:"push_timeout"`
}

// PublishConfig controls the publish transaction and its staging areas.
type PublishConfig struct {
	StagingDir        string           `yaml:"staging_dir,omitempty"`
	PushAttempts      int              `yaml:"push_attempts"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
	LockTimeout       string           `yaml:"lock_timeout"`
	StagingMaxAge     string           `yaml:"staging_max_age"`
	SweepInterval     string           `yaml:"sweep_interval"`
}

// UploadConfig is the reloadable upload acceptance policy.
type UploadConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address      string `yaml:"address"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// HistoryConfig locates the publish ledger. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// EventsConfig configures post-publish notifications. An empty URL disables them.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		// Missing .env is the common case.
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment references in data, decodes it, applies defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Remote: RemoteConfig{
			URL: "https://github.com/${GITHUB_USERNAME}/${GITHUB_REPO}.git",
			Auth: &AuthConfig{
				Type:     AuthTypeToken,
				Username: "${GITHUB_USERNAME}",
				Token:    "${GITHUB_TOKEN}",
			},
		},
		Git: GitConfig{
			AuthorName:   "docpublish",
			AuthorEmail:  "docpublish@localhost",
			CloneTimeout: "2m",
			PushTimeout:  "2m",
		},
		Publish: PublishConfig{
			PushAttempts:  1,
			RetryBackoff:  RetryBackoffLinear,
			LockTimeout:   "5m",
			StagingMaxAge: "1h",
			SweepInterval: "15m",
		},
		Upload: UploadConfig{
			AllowedExtensions: []string{"pdf"},
			MaxUploadBytes:    defaultMaxUploadBytes,
		},
		Server:  ServerConfig{Address: ":8080"},
		History: HistoryConfig{Path: "./docpublish.db"},
		Metrics: MetricsConfig{Enabled: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Duration accessors. Values are validated at load time, so parse failures
// cannot occur here for a loaded Config; the fallback only covers zero values.

func (g GitConfig) CloneTimeoutDuration() time.Duration {
	return durationOr(g.CloneTimeout, defaultNetworkTimeout)
}

func (g GitConfig) PushTimeoutDuration() time.Duration {
	return durationOr(g.PushTimeout, defaultNetworkTimeout)
}

func (p PublishConfig) LockTimeoutDuration() time.Duration {
	return durationOr(p.LockTimeout, defaultLockTimeout)
}

func (p PublishConfig) StagingMaxAgeDuration() time.Duration {
	return durationOr(p.StagingMaxAge, defaultStagingMaxAge)
}

func (p PublishConfig) SweepIntervalDuration() time.Duration {
	return durationOr(p.SweepInterval, defaultSweepInterval)
}

func (p PublishConfig) RetryInitialDelayDuration() time.Duration {
	return durationOr(p.RetryInitialDelay, 0)
}

func (p PublishConfig) RetryMaxDelayDuration() time.Duration {
	return durationOr(p.RetryMaxDelay, 0)
}

func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	return durationOr(s.ReadTimeout, defaultServerTimeout)
}

func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	return durationOr(s.WriteTimeout, defaultServerTimeout)
}

func durationOr(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
