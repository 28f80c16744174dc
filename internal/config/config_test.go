package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socks5d/socks5d/internal/socks5"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, Validate(cfg))
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Listen.Host)
	assert.Equal(t, 1080, cfg.Listen.Port)
	assert.Equal(t, []string{"noauth"}, cfg.Auth.Methods)
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "socks5d.yaml")
	contents := `
listen:
  host: 10.0.0.1
  port: 9050
auth:
  methods: [userpass]
  credentials_file: creds.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Listen.Host)
	assert.Equal(t, 9050, cfg.Listen.Port)
	assert.Equal(t, []string{"userpass"}, cfg.Auth.Methods)
}

func TestLoad_EnvOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "socks5d.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  port: 9050\n"), 0o600))

	t.Setenv("SOCKS5D_LISTEN_PORT", "1337")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1337, cfg.Listen.Port)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Listen.Host = "" },
			wantErr: ErrEmptyListenHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Listen.Port = 70000 },
			wantErr: ErrInvalidListenPort,
		},
		{
			name:    "no auth methods",
			mutate:  func(c *Config) { c.Auth.Methods = nil },
			wantErr: ErrNoAuthMethods,
		},
		{
			name: "userpass without credentials file",
			mutate: func(c *Config) {
				c.Auth.Methods = []string{"userpass"}
				c.Auth.CredentialsFile = ""
			},
			wantErr: ErrMissingCredsFile,
		},
		{
			name:    "negative max sessions",
			mutate:  func(c *Config) { c.Server.MaxSessions = -1 },
			wantErr: ErrInvalidMaxSessions,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestEnabledMethods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Methods = []string{"noauth", "userpass"}

	methods, err := EnabledMethods(cfg)
	require.NoError(t, err)

	auth := socks5.NewAuthenticator(methods, socks5.NewCredentialStore(nil))
	assert.Equal(t, socks5.UserPass, auth.Select([]socks5.AuthMethod{socks5.NoAuth, socks5.UserPass}))
}

func TestEnabledMethods_UnknownMethodRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Methods = []string{"bogus"}

	_, err := EnabledMethods(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAuthMethod)
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.yaml")
	contents := `
- username: alice
  password: s3cret
- username: bob
  password: hunter2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	store, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.True(t, store.Verify([]byte("alice"), []byte("s3cret")))
	assert.True(t, store.Verify([]byte("bob"), []byte("hunter2")))
	assert.False(t, store.Verify([]byte("alice"), []byte("wrong")))
}

func TestLoadCredentials_EmptyPathYieldsEmptyStore(t *testing.T) {
	store, err := LoadCredentials("")
	require.NoError(t, err)
	assert.False(t, store.Verify([]byte("anyone"), []byte("anything")))
}

func TestLoadCredentials_RejectsEmptyFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- username: \"\"\n  password: x\n"), 0o600))

	_, err := LoadCredentials(path)
	require.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, socks5.LevelTrace, ParseLogLevel("trace"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warn"))
}
