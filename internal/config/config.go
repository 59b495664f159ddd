// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory        = "memory"
	StorageMongoDB       = "mongodb"
	StorageRedisPostgres = "redis_postgres"

	AuditLog  = "log"
	AuditAMQP = "amqp"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
	Storage   Storage   `yaml:"storage"`
	Audit     Audit     `yaml:"audit"`
	Provider  Provider  `yaml:"provider"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

type Server struct {
	Addr                string        `yaml:"addr"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
}

type Log struct {
	Env    string `yaml:"env"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Storage struct {
	// Backend is one of memory, mongodb or redis_postgres.
	Backend       string `yaml:"backend"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	// RedisURL and PostgresDSN are used together. Sessions live in redis and
	// client authorizations in postgres. Clients and grants are kept in
	// memory.
	RedisURL        string        `yaml:"redis_url"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// MaxSessions bounds the in memory session store. Zero means unbounded.
	MaxSessions int `yaml:"max_sessions"`
}

type Audit struct {
	// Sink is either log or amqp.
	Sink      string `yaml:"sink"`
	AMQPURL   string `yaml:"amqp_url"`
	AMQPQueue string `yaml:"amqp_queue"`
}

type Provider struct {
	Issuer string `yaml:"issuer"`
	// JWKSFile points to the private JWKS of the server.
	JWKSFile string `yaml:"jwks_file"`
	// ClientsFile optionally points to a JSON array of clients registered at
	// startup.
	ClientsFile       string   `yaml:"clients_file"`
	PathPrefix        string   `yaml:"path_prefix"`
	AuthorizeEndpoint string   `yaml:"authorize_endpoint"`
	LoginPageEndpoint string   `yaml:"login_page_endpoint"`
	Scopes            []string `yaml:"scopes"`
	GrantTypes        []string `yaml:"grant_types"`
	IDTokenSigAlg     string   `yaml:"id_token_sig_alg"`

	IDTokenLifetime           time.Duration `yaml:"id_token_lifetime"`
	AccessTokenLifetime       time.Duration `yaml:"access_token_lifetime"`
	AuthorizationCodeLifetime time.Duration `yaml:"authorization_code_lifetime"`
	RefreshTokenLifetime      time.Duration `yaml:"refresh_token_lifetime"`
	LegacyIDTokenClaims       bool          `yaml:"legacy_id_token_claims"`

	JARLeeway time.Duration `yaml:"jar_leeway"`

	SessionCookieName   string        `yaml:"session_cookie_name"`
	SessionCookieSecure bool          `yaml:"session_cookie_secure"`
	SessionLifetime     time.Duration `yaml:"session_lifetime"`

	ACRLevels                 map[string]int `yaml:"acr_levels"`
	ACRChangeForcesReauthn    bool           `yaml:"acr_change_forces_reauthn"`
	DisableAuthnForMaxAgeZero bool           `yaml:"disable_authn_for_max_age_zero"`

	CustomParams          []string `yaml:"custom_params"`
	AllowedSessionParams  []string `yaml:"allowed_session_params"`
	CustomResponseHeaders bool     `yaml:"custom_response_headers"`
	CIBAIsEnabled         bool     `yaml:"ciba_enabled"`
}

type RateLimit struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
}

// Default returns the configuration used when nothing else is informed.
func Default() Config {
	return Config{
		Server: Server{
			Addr:                ":8080",
			ReadHeaderTimeout:   5 * time.Second,
			ShutdownGracePeriod: 10 * time.Second,
		},
		Log: Log{
			Env:    "dev",
			Level:  "info",
			Format: "json",
		},
		Storage: Storage{
			Backend:         StorageMemory,
			MongoDatabase:   "authorize",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Audit: Audit{
			Sink:      AuditLog,
			AMQPQueue: "authorize.audit",
		},
		Provider: Provider{
			AuthorizeEndpoint: "/authorize",
			LoginPageEndpoint: "/authorize.htm",
			GrantTypes:        []string{"authorization_code", "implicit", "refresh_token"},
			IDTokenSigAlg:     "RS256",
			SessionCookieName: "session_id",
			SessionLifetime:   24 * time.Hour,
		},
		RateLimit: RateLimit{
			Window: time.Minute,
		},
	}
}

// Load reads the YAML file at path, if any, over the defaults and then
// applies the environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("could not read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("could not parse the config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnvOrDefault("AUTHZ_ADDR", cfg.Server.Addr)
	cfg.Server.ShutdownGracePeriod = getEnvDurationOrDefault("AUTHZ_SHUTDOWN_GRACE_PERIOD", cfg.Server.ShutdownGracePeriod)

	cfg.Log.Env = getEnvOrDefault("ENV", cfg.Log.Env)
	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)

	cfg.Storage.Backend = getEnvOrDefault("AUTHZ_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.MongoURI = getEnvOrDefault("MONGO_URI", cfg.Storage.MongoURI)
	cfg.Storage.MongoDatabase = getEnvOrDefault("MONGO_DATABASE", cfg.Storage.MongoDatabase)
	cfg.Storage.RedisURL = getEnvOrDefault("REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.PostgresDSN = getEnvOrDefault("POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Audit.Sink = getEnvOrDefault("AUTHZ_AUDIT_SINK", cfg.Audit.Sink)
	cfg.Audit.AMQPURL = getEnvOrDefault("AMQP_URL", cfg.Audit.AMQPURL)
	cfg.Audit.AMQPQueue = getEnvOrDefault("AMQP_QUEUE", cfg.Audit.AMQPQueue)

	cfg.Provider.Issuer = getEnvOrDefault("AUTHZ_ISSUER", cfg.Provider.Issuer)
	cfg.Provider.JWKSFile = getEnvOrDefault("AUTHZ_JWKS_FILE", cfg.Provider.JWKSFile)
	cfg.Provider.ClientsFile = getEnvOrDefault("AUTHZ_CLIENTS_FILE", cfg.Provider.ClientsFile)
	cfg.Provider.SessionCookieSecure = getEnvBoolOrDefault("AUTHZ_SESSION_COOKIE_SECURE", cfg.Provider.SessionCookieSecure)
	cfg.Provider.CIBAIsEnabled = getEnvBoolOrDefault("AUTHZ_CIBA_ENABLED", cfg.Provider.CIBAIsEnabled)

	cfg.RateLimit.RequestsPerWindow = getEnvIntOrDefault("AUTHZ_RATE_LIMIT_REQUESTS", cfg.RateLimit.RequestsPerWindow)
	cfg.RateLimit.Window = getEnvDurationOrDefault("AUTHZ_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Burst = getEnvIntOrDefault("AUTHZ_RATE_LIMIT_BURST", cfg.RateLimit.Burst)
}

func (cfg Config) validate() error {
	if cfg.Provider.Issuer == "" {
		return errors.New("the issuer is required")
	}

	if cfg.Provider.JWKSFile == "" {
		return errors.New("the jwks file is required")
	}

	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageMongoDB:
		if cfg.Storage.MongoURI == "" {
			return errors.New("the mongodb backend requires a mongo uri")
		}
	case StorageRedisPostgres:
		if cfg.Storage.RedisURL == "" || cfg.Storage.PostgresDSN == "" {
			return errors.New("the redis_postgres backend requires a redis url and a postgres dsn")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if !slices.Contains([]string{AuditLog, AuditAMQP}, cfg.Audit.Sink) {
		return fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
	if cfg.Audit.Sink == AuditAMQP && cfg.Audit.AMQPURL == "" {
		return errors.New("the amqp audit sink requires an amqp url")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are read as seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
