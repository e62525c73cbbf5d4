package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig
	Voyage VoyageConfig
	DB     DBConfig
	Log    LogConfig
}

type ServerConfig struct {
	// Name is the MCP server name announced to clients.
	Name string
	// Domain is the public identity used in OAuth metadata documents
	// and the WWW-Authenticate challenge (no scheme, no trailing slash).
	Domain string
	Port   int
	// AuthToken is the one fixed bearer credential. Every gated request
	// is compared against it and the token endpoint always issues it.
	AuthToken string
}

type VoyageConfig struct {
	APIKey string
	Model  string
	// Dimension is the expected embedding vector length. Vectors of any
	// other length are rejected before reaching the database.
	Dimension int
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	MinConns int
	MaxConns int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Name:   "neron-mcp",
			Domain: "localhost:8000",
			Port:   8000,
		},
		Voyage: VoyageConfig{
			Model:     "voyage-3-large",
			Dimension: 1024,
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "postgres",
			User:     "neron_bot",
			MinConns: 2,
			MaxConns: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file (if present) and environment
// variables, environment taking precedence. It fails when any required
// value is missing.
func Load() (Config, error) {
	// A missing .env file is not an error; deployments may rely on real
	// environment variables only.
	_ = godotenv.Load()
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (Config, error) {
	cfg := defaults()

	applyString(getenv, "MCP_SERVER_NAME", &cfg.Server.Name)
	applyString(getenv, "SERVER_DOMAIN", &cfg.Server.Domain)
	applyInt(getenv, "PORT", &cfg.Server.Port)
	applyString(getenv, "MCP_AUTH_TOKEN", &cfg.Server.AuthToken)

	applyString(getenv, "VOYAGE_API_KEY", &cfg.Voyage.APIKey)
	applyString(getenv, "VOYAGE_MODEL", &cfg.Voyage.Model)
	applyInt(getenv, "EMBEDDING_DIMENSION", &cfg.Voyage.Dimension)

	applyString(getenv, "DB_HOST", &cfg.DB.Host)
	applyInt(getenv, "DB_PORT", &cfg.DB.Port)
	applyString(getenv, "DB_NAME", &cfg.DB.Name)
	applyString(getenv, "DB_USER", &cfg.DB.User)
	applyString(getenv, "DB_PASSWORD", &cfg.DB.Password)
	applyInt(getenv, "DB_MIN_CONNECTIONS", &cfg.DB.MinConns)
	applyInt(getenv, "DB_MAX_CONNECTIONS", &cfg.DB.MaxConns)

	applyString(getenv, "LOG_LEVEL", &cfg.Log.Level)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func applyInt(getenv func(string) string, key string, dst *int) {
	raw := getenv(key)
	if raw == "" {
		return
	}
	if i, err := strconv.Atoi(raw); err == nil {
		*dst = i
	} else {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", key, raw, err)
	}
}

func (c Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"MCP_AUTH_TOKEN", c.Server.AuthToken},
		{"VOYAGE_API_KEY", c.Voyage.APIKey},
		{"DB_PASSWORD", c.DB.Password},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.Voyage.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Voyage.Dimension)
	}
	if c.DB.MinConns < 0 || c.DB.MaxConns < 1 || c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("invalid pool bounds: min=%d max=%d", c.DB.MinConns, c.DB.MaxConns)
	}
	return nil
}

// ConnString returns a pgx-compatible connection URL for the configured
// database.
func (c DBConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	return u.String()
}

// Issuer returns the server's public base URL used as the OAuth issuer
// and in discovery documents.
func (c ServerConfig) Issuer() string {
	return "https://" + c.Domain
}

// ResourceMetadataURL is the discovery document advertised in the
// WWW-Authenticate challenge on rejected requests.
func (c ServerConfig) ResourceMetadataURL() string {
	return c.Issuer() + "/.well-known/oauth-protected-resource"
}
