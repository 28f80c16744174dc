// Package config loads the socks5d daemon configuration using koanf/v2,
// layering a YAML file and environment variable overrides on top of
// built-in defaults, and loads the separate credential file consumed by
// the authenticator.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/socks5d/socks5d/internal/socks5"
)

// -------------------------------------------------------------------------
// Configuration structures
// -------------------------------------------------------------------------

// Config holds the complete socks5d configuration.
type Config struct {
	Listen  ListenConfig  `koanf:"listen"`
	Auth    AuthConfig    `koanf:"auth"`
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ListenConfig is the bind address of the SOCKS5 listener.
type ListenConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// AuthConfig selects enabled methods and the credential source.
type AuthConfig struct {
	// Methods lists enabled method names: "noauth", "userpass".
	Methods []string `koanf:"methods"`

	// CredentialsFile is a path to a YAML file of {username, password}
	// entries, required when "userpass" is enabled.
	CredentialsFile string `koanf:"credentials_file"`
}

// ServerConfig tunes the ambient behavior around the core state machine.
type ServerConfig struct {
	// MaxSessions bounds concurrently active sessions; 0 uses the
	// built-in default.
	MaxSessions int `koanf:"max_sessions"`

	// HandshakeTimeout bounds the greeting/auth/request phases. Zero
	// disables the deadline, matching the core's "no timeout mandated"
	// default.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// DialTimeout bounds the upstream connect attempt.
	DialTimeout time.Duration `koanf:"dial_timeout"`

	// OutboundIP pins every upstream dial to originate from this address,
	// for multi-homed deployments. Empty disables pinning.
	OutboundIP string `koanf:"outbound_ip"`

	// Interface, when set alongside OutboundIP, auto-provisions OutboundIP
	// on that network interface at startup if not already assigned
	// (Linux only).
	Interface string `koanf:"interface"`
}

// LogConfig selects the structured logging level and output format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig is the Prometheus HTTP exporter; an empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// DefaultConfig returns a Config populated with sensible defaults for
// local development: listen on all interfaces, NOAUTH only, JSON logs,
// metrics disabled.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Host: "0.0.0.0",
			Port: 1080,
		},
		Auth: AuthConfig{
			Methods: []string{"noauth"},
		},
		Server: ServerConfig{
			MaxSessions:      4096,
			HandshakeTimeout: 10 * time.Second,
			DialTimeout:      15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: "",
			Path: "/metrics",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for socks5d configuration.
// Variables are named SOCKS5D_<section>_<key>, e.g. SOCKS5D_LISTEN_PORT.
const envPrefix = "SOCKS5D_"

// Load reads configuration from a YAML file at path (if non-empty),
// overlays SOCKS5D_-prefixed environment variables, and merges on top of
// DefaultConfig(). A missing path is not an error: defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms SOCKS5D_LISTEN_PORT -> listen.port. Only the
// first underscore separates section from key, so
// SOCKS5D_SERVER_MAX_SESSIONS -> server.max_sessions.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen.host":              defaults.Listen.Host,
		"listen.port":              defaults.Listen.Port,
		"auth.methods":             defaults.Auth.Methods,
		"auth.credentials_file":    defaults.Auth.CredentialsFile,
		"server.max_sessions":      defaults.Server.MaxSessions,
		"server.handshake_timeout": defaults.Server.HandshakeTimeout.String(),
		"server.dial_timeout":      defaults.Server.DialTimeout.String(),
		"server.outbound_ip":       defaults.Server.OutboundIP,
		"server.interface":         defaults.Server.Interface,
		"log.level":                defaults.Log.Level,
		"log.format":               defaults.Log.Format,
		"metrics.addr":             defaults.Metrics.Addr,
		"metrics.path":             defaults.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	ErrEmptyListenHost     = errors.New("listen.host must not be empty")
	ErrInvalidListenPort   = errors.New("listen.port must be in 1..65535")
	ErrNoAuthMethods       = errors.New("auth.methods must list at least one method")
	ErrUnknownAuthMethod   = errors.New("auth.methods contains an unrecognized method")
	ErrMissingCredsFile    = errors.New("auth.credentials_file is required when userpass is enabled")
	ErrInvalidMaxSessions  = errors.New("server.max_sessions must be >= 0")
)

// Validate checks a loaded Config for internal consistency.
func Validate(cfg *Config) error {
	if cfg.Listen.Host == "" {
		return ErrEmptyListenHost
	}
	if cfg.Listen.Port < 1 || cfg.Listen.Port > 65535 {
		return ErrInvalidListenPort
	}
	if len(cfg.Auth.Methods) == 0 {
		return ErrNoAuthMethods
	}
	if cfg.Server.MaxSessions < 0 {
		return ErrInvalidMaxSessions
	}

	usesUserPass := false
	for _, m := range cfg.Auth.Methods {
		switch strings.ToLower(m) {
		case "noauth", "userpass":
			if strings.ToLower(m) == "userpass" {
				usesUserPass = true
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownAuthMethod, m)
		}
	}
	if usesUserPass && cfg.Auth.CredentialsFile == "" {
		return ErrMissingCredsFile
	}

	return nil
}

// -------------------------------------------------------------------------
// Translating config into core types
// -------------------------------------------------------------------------

// EnabledMethods maps the configured method names to the core MethodSet.
func EnabledMethods(cfg *Config) (socks5.MethodSet, error) {
	methods := make([]socks5.AuthMethod, 0, len(cfg.Auth.Methods))
	for _, m := range cfg.Auth.Methods {
		switch strings.ToLower(m) {
		case "noauth":
			methods = append(methods, socks5.NoAuth)
		case "userpass":
			methods = append(methods, socks5.UserPass)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownAuthMethod, m)
		}
	}
	return socks5.NewMethodSet(methods...), nil
}

// credentialEntry is the YAML shape of one line in the credentials file.
type credentialEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadCredentials reads a YAML list of username/password entries from
// path and builds the immutable credential table the core consumes. An
// empty path yields an empty store (valid when only "noauth" is enabled).
func LoadCredentials(path string) (*socks5.CredentialStore, error) {
	if path == "" {
		return socks5.NewCredentialStore(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var entries []credentialEntry
	if err := yamlv3.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	creds := make([]socks5.Credential, 0, len(entries))
	for i, e := range entries {
		if e.Username == "" || e.Password == "" {
			return nil, fmt.Errorf("credentials[%d]: username and password must be non-empty", i)
		}
		creds = append(creds, socks5.Credential{Username: e.Username, Password: e.Password})
	}

	return socks5.NewCredentialStore(creds), nil
}

// -------------------------------------------------------------------------
// Log level parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo. "trace" maps to
// socks5.LevelTrace, below slog.LevelDebug, to surface per-byte-group
// parse events.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return socks5.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
