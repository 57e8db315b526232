package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chatty/cmd/internal/storage/pgdb"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "CHATTY_"
	envConfigFile = "CHATTY_CONFIG_FILE"

	StoreMemory   = "memory"
	StorePostgres = "postgres"

	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// Config is the runtime configuration of the chatty binary.
// Token and password settings are loaded by their own packages.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`

	// Store is "postgres" or "memory". Empty picks postgres when a database URL is set.
	Store string `koanf:"store"`

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool `koanf:"readinessRequireDB"`

	// If true, CHATTY_TOKEN_HMAC_KEY must be set (>= 32 bytes) and refresh hashes are keyed.
	RequireTokenHMAC bool `koanf:"requireTokenHMAC"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"readHeaderTimeout"`
	ReadTimeout       time.Duration `koanf:"readTimeout"`
	WriteTimeout      time.Duration `koanf:"writeTimeout"`
	IdleTimeout       time.Duration `koanf:"idleTimeout"`
	MaxHeaderBytes    int           `koanf:"maxHeaderBytes"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	Schema         string `koanf:"schema"`
	MaxConns       int32  `koanf:"maxConns"`
	MinConns       int32  `koanf:"minConns"`
	MigrateOnStart bool   `koanf:"migrateOnStart"`
}

type AuthConfig struct {
	RevokeSessionsOnPasswordChange bool `koanf:"revokeSessionsOnPasswordChange"`
}

// DefaultConfig returns the values used when neither the file nor the environment sets a key.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              "0.0.0.0:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
		Database: DatabaseConfig{
			Schema:   pgdb.DefaultSchema,
			MaxConns: 10,
		},
	}
}

// envKeys maps CHATTY_* variables (prefix stripped) to config paths.
// Variables not listed here belong to other packages and are ignored.
var envKeys = map[string]string{
	"HTTP_ADDR":                "http.addr",
	"HTTP_READ_HEADER_TIMEOUT": "http.readHeaderTimeout",
	"HTTP_READ_TIMEOUT":        "http.readTimeout",
	"HTTP_WRITE_TIMEOUT":       "http.writeTimeout",
	"HTTP_IDLE_TIMEOUT":        "http.idleTimeout",
	"HTTP_MAX_HEADER_BYTES":    "http.maxHeaderBytes",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
	"DATABASE_URL":             "database.url",
	"DB_SCHEMA":                "database.schema",
	"DB_MAX_CONNS":             "database.maxConns",
	"DB_MIN_CONNS":             "database.minConns",
	"DB_MIGRATE_ON_START":      "database.migrateOnStart",
	"STORE":                    "store",
	"READINESS_REQUIRE_DB":     "readinessRequireDB",
	"REQUIRE_TOKEN_HMAC":       "requireTokenHMAC",
	"AUTH_REVOKE_SESSIONS_ON_PASSWORD_CHANGE": "auth.revokeSessionsOnPasswordChange",
}

func envTransform(k, v string) (string, any) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	path, ok := envKeys[strings.TrimPrefix(k, envPrefix)]
	if !ok {
		return "", nil
	}
	return path, v
}

// LoadConfig reads the optional YAML file at path (or CHATTY_CONFIG_FILE when
// path is empty), overlays CHATTY_* environment variables and validates the result.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(envConfigFile))
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envTransform,
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills derived defaults and rejects inconsistent values.
func (c *Config) normalize() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreMemory
		if strings.TrimSpace(c.Database.URL) != "" {
			c.Store = StorePostgres
		}
	}

	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			errs = append(errs, errors.New("config: store=postgres requires database.url (CHATTY_DATABASE_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store %q", c.Store))
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = LogFormatJSON
	case LogFormatJSON, LogFormatPretty:
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.Log.Format))
	}

	schema, err := pgdb.CheckSchema(c.Database.Schema)
	if err != nil {
		errs = append(errs, fmt.Errorf("config: database.schema: %w", err))
	}
	c.Database.Schema = schema

	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
		errs = append(errs, errors.New("config: database connection counts must not be negative"))
	}
	if c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("config: database.minConns(%d) > database.maxConns(%d)", c.Database.MinConns, c.Database.MaxConns))
	}

	return errors.Join(errs...)
}
