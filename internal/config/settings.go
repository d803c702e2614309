package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the
// environment, e.g. MEMBERAPI_SERVER_PORT.
const EnvPrefix = "MEMBERAPI"

// EnvironmentDev turns on debug logging.
const EnvironmentDev = "DEV"

// Settings is the effective runtime configuration.
type Settings struct {
	Environment string
	Database    DatabaseSettings
	Schemas     SchemaSettings
	Server      ServerSettings
	Auth        AuthSettings
	RateLimit   RateLimitSettings
	Log         LogSettings
	MCP         MCPSettings

	// SecretGenerated is set when no secret key was configured and a random
	// one was drawn for this process.
	SecretGenerated bool
}

// DatabaseSettings locates the SQLite file.
type DatabaseSettings struct {
	Path string
}

// SchemaSettings names the table definition files. Only Admins is read by
// the store; the other two are written by `db init`.
type SchemaSettings struct {
	Admins      string
	Members     string
	Memberships string
}

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthSettings controls session tokens.
type AuthSettings struct {
	SecretKey string
	TokenTTL  time.Duration
}

// RateLimitSettings controls request limiting. Enabled and
// RequestsPerMinute govern the general per-IP limit. LoginAttempts caps
// password attempts per client IP and username each minute; 0 disables it.
type RateLimitSettings struct {
	Enabled           bool
	RequestsPerMinute int
	LoginAttempts     int
}

// LogSettings controls log output. Dir, when set, adds a timestamped log
// file outside debug mode.
type LogSettings struct {
	Format string
	Dir    string
}

// MCPSettings controls the MCP server.
type MCPSettings struct {
	Transport string
	Addr      string
}

// Debug reports whether the process runs in the development environment.
func (s *Settings) Debug() bool {
	return strings.EqualFold(s.Environment, EnvironmentDev)
}

// legacyEnv maps configuration keys to the unprefixed variable names that
// earlier deployments used. They are consulted after the prefixed name.
var legacyEnv = map[string]string{
	"environment":         "ENVIRONMENT",
	"database.path":       "DATABASE_URL",
	"schemas.admins":      "ADMIN_SQL_FILE",
	"schemas.members":     "MEMBERS_SQL_FILE",
	"schemas.memberships": "MEMBERSHIPS_SQL_FILE",
	"auth.secret_key":     "SECRET_KEY",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")
	v.SetDefault("database.path", filepath.Join("db", "memberapi.db"))
	v.SetDefault("schemas.admins", filepath.Join("db", "schemas", "admins.sql"))
	v.SetDefault("schemas.members", filepath.Join("db", "schemas", "members.sql"))
	v.SetDefault("schemas.memberships", filepath.Join("db", "schemas", "memberships.sql"))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})

	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.login_attempts", 30)

	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "")

	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.addr", ":8081")
}

// BindEnv wires the environment into v: every key under EnvPrefix, plus the
// legacy names in legacyEnv.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds Settings from v. Durations accept Go syntax ("30s", "1h").
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Environment: strings.ToUpper(v.GetString("environment")),
		Database: DatabaseSettings{
			Path: v.GetString("database.path"),
		},
		Schemas: SchemaSettings{
			Admins:      v.GetString("schemas.admins"),
			Members:     v.GetString("schemas.members"),
			Memberships: v.GetString("schemas.memberships"),
		},
		Server: ServerSettings{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			CORSOrigins: v.GetStringSlice("server.cors.allowed_origins"),
		},
		Auth: AuthSettings{
			SecretKey: v.GetString("auth.secret_key"),
		},
		RateLimit: RateLimitSettings{
			Enabled:           v.GetBool("rate_limit.enabled"),
			RequestsPerMinute: v.GetInt("rate_limit.requests_per_minute"),
			LoginAttempts:     v.GetInt("rate_limit.login_attempts"),
		},
		Log: LogSettings{
			Format: strings.ToLower(v.GetString("log.format")),
			Dir:    v.GetString("log.dir"),
		},
		MCP: MCPSettings{
			Transport: v.GetString("mcp.transport"),
			Addr:      v.GetString("mcp.addr"),
		},
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"server.read_timeout", &s.Server.ReadTimeout},
		{"server.write_timeout", &s.Server.WriteTimeout},
		{"server.shutdown_timeout", &s.Server.ShutdownTimeout},
		{"auth.token_ttl", &s.Auth.TokenTTL},
	}
	for _, d := range durations {
		val, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = val
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	if s.Auth.SecretKey == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		s.Auth.SecretKey = secret
		s.SecretGenerated = true
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", s.Server.Port)
	}
	if s.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", s.Auth.TokenTTL)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q (want text or json)", s.Log.Format)
	}
	switch s.MCP.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid mcp.transport %q (want stdio or http)", s.MCP.Transport)
	}
	if s.RateLimit.LoginAttempts < 0 {
		return fmt.Errorf("rate_limit.login_attempts must not be negative, got %d", s.RateLimit.LoginAttempts)
	}
	if s.RateLimit.Enabled && s.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate_limit.requests_per_minute must be positive when enabled")
	}
	return nil
}

// randomSecret returns 24 random bytes, hex encoded.
func randomSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
