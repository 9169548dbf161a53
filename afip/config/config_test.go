package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"AFIP_CONFIG_FILE", "AFIP_CUIT_EMISOR", "AFIP_CERT_PATH", "AFIP_KEY_PATH", "AFIP_KEY_PASSWORD",
	"AFIP_ENV", "AFIP_HOMOLOGACION", "AFIP_CACHE_DIR", "AFIP_PORT", "AFIP_HTTP_TIMEOUT",
	"AFIP_SHUTDOWN_TIMEOUT", "AFIP_LOG_LEVEL", "AFIP_REPROCESS",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	for _, k := range allVars {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AFIP_CUIT_EMISOR", "20123456789")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "20123456789", cfg.Credentials.CUIT)
	assert.Equal(t, "/certs/afip.crt", cfg.Credentials.CertPath)
	assert.Equal(t, "/certs/afip.key", cfg.Credentials.KeyPath)
	assert.Empty(t, cfg.Credentials.KeyPassword)
	assert.Equal(t, afip.Homologation, cfg.Credentials.Environment)
	assert.Equal(t, "/tmp/afip_cache", cfg.CacheDir)
	assert.Equal(t, 8001, cfg.HTTP.Port)
	assert.Equal(t, ":8001", cfg.HTTP.Address())
	assert.Equal(t, 30*time.Second, cfg.HTTP.ClientTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Reprocess)
}

func TestLoad_MissingCUIT(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, afip.ErrConfiguration))

	var ce *afip.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "AFIP_CUIT_EMISOR", ce.Field)
}

func TestLoad_MalformedCUIT(t *testing.T) {
	clearEnv(t)
	t.Setenv("AFIP_CUIT_EMISOR", "20-12345678-9")

	_, err := Load()
	assert.True(t, errors.Is(err, afip.ErrConfiguration))
}

func TestLoad_Environment(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
		want afip.Environment
		err  bool
	}{
		{"explicit production", map[string]string{"AFIP_ENV": "produccion"}, afip.Production, false},
		{"legacy flag false", map[string]string{"AFIP_HOMOLOGACION": "false"}, afip.Production, false},
		{"legacy flag true", map[string]string{"AFIP_HOMOLOGACION": "true"}, afip.Homologation, false},
		{"AFIP_ENV wins over legacy flag", map[string]string{"AFIP_ENV": "homologacion", "AFIP_HOMOLOGACION": "false"}, afip.Homologation, false},
		{"unknown", map[string]string{"AFIP_ENV": "staging"}, 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("AFIP_CUIT_EMISOR", "20123456789")
			for k, v := range c.vars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if c.err {
				assert.True(t, errors.Is(err, afip.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, cfg.Credentials.Environment)
		})
	}
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "afip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cuit_emisor: "20111111112"
cert_path: /etc/afip/cert.pem
key_path: /etc/afip/key.pem
environment: produccion
port: 9000
http_timeout: 5s
reprocess: true
`), 0o600))
	t.Setenv("AFIP_CONFIG_FILE", path)
	t.Setenv("AFIP_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "20111111112", cfg.Credentials.CUIT)
	assert.Equal(t, "/etc/afip/cert.pem", cfg.Credentials.CertPath)
	assert.Equal(t, afip.Production, cfg.Credentials.Environment)
	assert.Equal(t, 9100, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ClientTimeout)
	assert.True(t, cfg.Reprocess)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "afip.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	t.Setenv("AFIP_CONFIG_FILE", path)

	_, err := Load()
	assert.True(t, errors.Is(err, afip.ErrConfiguration))
}
