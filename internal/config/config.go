package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/kylinctl/kylinctl/internal/apperrors"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.kylinctl/kylinctl.yaml"
)

// Service versions.
const (
	VersionKylin = "v1"
	VersionKE3   = "v2"
	VersionKE4   = "v4"
)

// Config is the top-level configuration.
type Config struct {
	Version   int              `yaml:"version" toml:"version"`
	Server    ServerConfig     `yaml:"server" toml:"server"`
	Logging   LogConfig        `yaml:"logging,omitempty" toml:"logging"`
	Serve     ServeConfig      `yaml:"serve,omitempty" toml:"serve"`
	Schedules []ScheduleConfig `yaml:"schedules,omitempty" toml:"schedules"`
	// TypeMapping is a YAML file of remote type overrides.
	TypeMapping string `yaml:"type_mapping,omitempty" toml:"type_mapping" env:"KYLINCTL_TYPE_MAPPING"`
}

// ServerConfig describes how to reach one project on a Kylin server.
type ServerConfig struct {
	Host     string `yaml:"host" toml:"host" env:"KYLIN_HOST"`
	Port     int    `yaml:"port,omitempty" toml:"port" env:"KYLIN_PORT"`
	Scheme   string `yaml:"scheme,omitempty" toml:"scheme" env:"KYLIN_SCHEME"`
	Prefix   string `yaml:"prefix,omitempty" toml:"prefix" env:"KYLIN_PREFIX"`
	Username string `yaml:"username,omitempty" toml:"username" env:"KYLIN_USERNAME"`
	Password string `yaml:"password,omitempty" toml:"password" env:"KYLIN_PASSWORD"`
	// Session is a raw Cookie header value used instead of a password.
	Session    string `yaml:"session,omitempty" toml:"session" env:"KYLIN_SESSION"`
	Project    string `yaml:"project,omitempty" toml:"project" env:"KYLIN_PROJECT"`
	APIVersion string `yaml:"version,omitempty" toml:"version" env:"KYLIN_VERSION"`
	// Timeout is in seconds.
	Timeout           int     `yaml:"timeout,omitempty" toml:"timeout" env:"KYLIN_TIMEOUT"`
	Unverified        bool    `yaml:"unverified,omitempty" toml:"unverified" env:"KYLIN_UNVERIFIED"`
	IsPushdown        bool    `yaml:"is_pushdown,omitempty" toml:"is_pushdown" env:"KYLIN_IS_PUSHDOWN"`
	RetryMax          int     `yaml:"retry_max,omitempty" toml:"retry_max" env:"KYLIN_RETRY_MAX"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" toml:"requests_per_second" env:"KYLIN_REQUESTS_PER_SECOND"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level     string `yaml:"level,omitempty" toml:"level" env:"KYLINCTL_LOG_LEVEL"`
	Directory string `yaml:"directory,omitempty" toml:"directory" env:"KYLINCTL_LOG_DIR"`
}

// ServeConfig defines the HTTP gateway settings.
type ServeConfig struct {
	Port           int      `yaml:"port,omitempty" toml:"port" env:"KYLINCTL_SERVE_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" toml:"allowed_origins"`
	// PollSeconds is the job snapshot interval of the websocket feed.
	PollSeconds int `yaml:"poll_seconds,omitempty" toml:"poll_seconds"`
}

// ScheduleConfig runs a datasource command on a cron spec.
type ScheduleConfig struct {
	Cron       string `yaml:"cron" toml:"cron"`
	Datasource string `yaml:"datasource" toml:"datasource"`
	// Kind is cube or model, defaulting to the server version's first
	// source type.
	Kind   string `yaml:"kind,omitempty" toml:"kind"`
	Action string `yaml:"action" toml:"action"`
}

// Load reads and parses the config file from the given path. Files ending
// in .toml are decoded as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Server.ResolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Server.validateAddress(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o600)
}

// Default returns a config with every default applied and no server.
func Default() *Config {
	c := &Config{Version: CurrentVersion}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	c.Server.ApplyDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.kylinctl/logs/")
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = 8470
	}
	if c.Serve.PollSeconds == 0 {
		c.Serve.PollSeconds = 10
	}
}

// ApplyDefaults fills unset server fields.
func (s *ServerConfig) ApplyDefaults() {
	if s.Port == 0 {
		s.Port = 7070
	}
	if s.Scheme == "" {
		s.Scheme = "http"
	}
	if s.Prefix == "" {
		s.Prefix = "/kylin/api"
	}
	if s.Project == "" {
		s.Project = "default"
	}
	if s.APIVersion == "" {
		s.APIVersion = VersionKylin
	}
	if s.Timeout == 0 {
		s.Timeout = 30
	}
	if s.RetryMax == 0 {
		s.RetryMax = 3
	}
}

// Validate checks that the server can be addressed and authenticated.
func (s *ServerConfig) Validate() error {
	if err := s.validateAddress(); err != nil {
		return err
	}
	if !s.HasCredentials() {
		return fmt.Errorf("need password or session: %w", apperrors.ErrKylin)
	}
	return nil
}

// HasCredentials reports whether a password or session is set.
func (s *ServerConfig) HasCredentials() bool {
	return s.Password != "" || s.Session != ""
}

func (s *ServerConfig) validateAddress() error {
	if s.Host == "" {
		return fmt.Errorf("server host is required: %w", apperrors.ErrKylin)
	}
	switch s.APIVersion {
	case VersionKylin, VersionKE3, VersionKE4:
	default:
		return fmt.Errorf("unsupported service version %q: %w", s.APIVersion, apperrors.ErrKylin)
	}
	return nil
}

// BaseURL returns scheme://host:port/prefix without a trailing slash.
func (s *ServerConfig) BaseURL() string {
	prefix := strings.Trim(s.Prefix, "/")
	base := fmt.Sprintf("%s://%s:%d", s.Scheme, s.Host, s.Port)
	if prefix == "" {
		return base
	}
	return base + "/" + prefix
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

// ResolveSecrets replaces secret references in the password and session.
func (s *ServerConfig) ResolveSecrets() error {
	var err error
	s.Password, err = ResolveValue(s.Password)
	if err != nil {
		return fmt.Errorf("server password: %w", err)
	}
	s.Session, err = ResolveValue(s.Session)
	if err != nil {
		return fmt.Errorf("server session: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
