package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working
// directory.
const DefaultFileName = "memberapi.yaml"

// defaultConfig is what `config init` writes.
const defaultConfig = `# Member API configuration
# Every key can be overridden with MEMBERAPI_<SECTION>_<KEY>, e.g.
# MEMBERAPI_SERVER_PORT=9090.

environment: PROD   # DEV enables debug logging

database:
  path: db/memberapi.db   # also DATABASE_URL

schemas:
  admins: db/schemas/admins.sql             # also ADMIN_SQL_FILE
  members: db/schemas/members.sql           # also MEMBERS_SQL_FILE
  memberships: db/schemas/memberships.sql   # also MEMBERSHIPS_SQL_FILE

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 15s
  write_timeout: 30s
  shutdown_timeout: 30s
  cors:
    allowed_origins:
      - "*"

# Session tokens
auth:
  secret_key: ""   # set via SECRET_KEY; random per process when empty
  token_ttl: 1h

# Rate limiting
rate_limit:
  enabled: false
  requests_per_minute: 120
  login_attempts: 30   # password attempts per IP and username a minute; 0 disables

# Logging
log:
  format: text   # text or json
  dir: ""        # e.g. logs; unused in DEV

# MCP server
mcp:
  transport: stdio   # stdio or http
  addr: ":8081"
`

// DefaultConfig returns the commented default configuration file.
func DefaultConfig() []byte {
	return []byte(defaultConfig)
}

// WriteDefaultConfig writes the default configuration to path. An existing
// file is an error unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, DefaultConfig(), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EffectiveYAML renders s as YAML. The secret key is masked.
func EffectiveYAML(s *Settings) ([]byte, error) {
	secret := "(generated)"
	if !s.SecretGenerated {
		secret = "********"
	}

	doc := map[string]interface{}{
		"environment": s.Environment,
		"database": map[string]interface{}{
			"path": s.Database.Path,
		},
		"schemas": map[string]interface{}{
			"admins":      s.Schemas.Admins,
			"members":     s.Schemas.Members,
			"memberships": s.Schemas.Memberships,
		},
		"server": map[string]interface{}{
			"host":             s.Server.Host,
			"port":             s.Server.Port,
			"read_timeout":     s.Server.ReadTimeout.String(),
			"write_timeout":    s.Server.WriteTimeout.String(),
			"shutdown_timeout": s.Server.ShutdownTimeout.String(),
			"cors": map[string]interface{}{
				"allowed_origins": s.Server.CORSOrigins,
			},
		},
		"auth": map[string]interface{}{
			"secret_key": secret,
			"token_ttl":  s.Auth.TokenTTL.String(),
		},
		"rate_limit": map[string]interface{}{
			"enabled":             s.RateLimit.Enabled,
			"requests_per_minute": s.RateLimit.RequestsPerMinute,
			"login_attempts":      s.RateLimit.LoginAttempts,
		},
		"log": map[string]interface{}{
			"format": s.Log.Format,
			"dir":    s.Log.Dir,
		},
		"mcp": map[string]interface{}{
			"transport": s.MCP.Transport,
			"addr":      s.MCP.Addr,
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
