// Package config reads the gateway settings from an optional YAML file, a .env file
// and the process environment, in increasing order of precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Credentials afip.Credentials
	CacheDir    string
	HTTP        HTTPSettings
	LogLevel    string
	Reprocess   bool
}

type HTTPSettings struct {
	Port            int
	ClientTimeout   time.Duration
	ShutdownTimeout time.Duration
}

func (h HTTPSettings) Address() string {
	return ":" + strconv.Itoa(h.Port)
}

// fileConfig mirrors the YAML layout. Empty fields fall through to defaults.
type fileConfig struct {
	CUIT        string `yaml:"cuit_emisor"`
	CertPath    string `yaml:"cert_path"`
	KeyPath     string `yaml:"key_path"`
	KeyPassword string `yaml:"key_password"`
	Environment string `yaml:"environment"`
	CacheDir    string `yaml:"cache_dir"`
	Port        int    `yaml:"port"`
	HTTPTimeout string `yaml:"http_timeout"`
	LogLevel    string `yaml:"log_level"`
	Reprocess   *bool  `yaml:"reprocess"`
}

// Load builds the configuration. A missing CUIT or an unknown environment name is a
// *afip.ConfigError; certificate files are checked later, when the signer is built.
func Load() (Config, error) {
	_ = godotenv.Load()

	var fc fileConfig
	if path := os.Getenv("AFIP_CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &afip.ConfigError{Field: "AFIP_CONFIG_FILE", Err: err}
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return Config{}, &afip.ConfigError{Field: "AFIP_CONFIG_FILE", Err: errors.Wrap(err, "parse yaml")}
		}
	}

	cfg := Config{
		Credentials: afip.Credentials{
			CUIT:        strings.TrimSpace(getEnv("AFIP_CUIT_EMISOR", fc.CUIT)),
			CertPath:    getEnv("AFIP_CERT_PATH", or(fc.CertPath, "/certs/afip.crt")),
			KeyPath:     getEnv("AFIP_KEY_PATH", or(fc.KeyPath, "/certs/afip.key")),
			KeyPassword: []byte(getEnv("AFIP_KEY_PASSWORD", fc.KeyPassword)),
		},
		CacheDir: getEnv("AFIP_CACHE_DIR", or(fc.CacheDir, "/tmp/afip_cache")),
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("AFIP_PORT", orInt(fc.Port, 8001)),
			ClientTimeout:   getEnvAsDuration("AFIP_HTTP_TIMEOUT", parseDuration(fc.HTTPTimeout, 30*time.Second)),
			ShutdownTimeout: getEnvAsDuration("AFIP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		LogLevel:  getEnv("AFIP_LOG_LEVEL", or(fc.LogLevel, "info")),
		Reprocess: getEnvAsBool("AFIP_REPROCESS", fc.Reprocess != nil && *fc.Reprocess),
	}

	env, err := environment(fc.Environment)
	if err != nil {
		return Config{}, err
	}
	cfg.Credentials.Environment = env

	if cfg.Credentials.CUIT == "" {
		return Config{}, &afip.ConfigError{Field: "AFIP_CUIT_EMISOR", Err: errors.New("is required")}
	}
	if len(cfg.Credentials.CUIT) != 11 || strings.Trim(cfg.Credentials.CUIT, "0123456789") != "" {
		return Config{}, &afip.ConfigError{Field: "AFIP_CUIT_EMISOR", Err: errors.New("must be 11 digits without dashes")}
	}
	return cfg, nil
}

// environment resolves AFIP_ENV, then the legacy AFIP_HOMOLOGACION flag, then the file.
// Homologation is the default so a misconfigured instance never invoices for real.
func environment(fromFile string) (afip.Environment, error) {
	var env afip.Environment
	name := getEnv("AFIP_ENV", "")
	if name == "" {
		if v, ok := os.LookupEnv("AFIP_HOMOLOGACION"); ok {
			if homo, err := strconv.ParseBool(v); err == nil && !homo {
				return afip.Production, nil
			}
			return afip.Homologation, nil
		}
		name = fromFile
	}
	if name == "" {
		return afip.Homologation, nil
	}
	if err := env.UnmarshalText([]byte(name)); err != nil {
		return env, &afip.ConfigError{Field: "AFIP_ENV", Err: err}
	}
	return env, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return parseDuration(value, fallback)
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
