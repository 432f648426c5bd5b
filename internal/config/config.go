package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the CLI and the development server.
type Config struct {
	App      AppConfig
	Client   ClientConfig
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// ClientConfig points the resource client at an API.
type ClientConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

// ServerConfig controls the development API server.
type ServerConfig struct {
	Host                  string
	Port                  string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects in-memory storage.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Output string
}

// AuthConfig defines the development server's token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	DevUserName           string
	DevUserID             string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "intranet"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Client: ClientConfig{
			BaseURL:        getEnv("INTRANET_API_URL", "http://127.0.0.1:8080/api"),
			Token:          os.Getenv("INTRANET_TOKEN"),
			TimeoutSeconds: getEnvAsInt("INTRANET_TIMEOUT_SECONDS", 15),
		},
		Server: ServerConfig{
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          os.Getenv("REDIS_ADDR"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "intranet.events"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			DevUserName:           getEnv("DEV_USER_NAME", "관리자"),
			DevUserID:             getEnv("DEV_USER_ID", "1"),
		},
	}

	return cfg, nil
}

// Timeout returns the per-request client timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued development tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
