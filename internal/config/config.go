package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Storage  StorageConfig  `yaml:"storage"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Intake   IntakeConfig   `yaml:"intake"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logger   LoggerConfig   `yaml:"logger"`
	Auth     AuthConfig     `yaml:"auth"`
	Tickets  TicketsConfig  `yaml:"tickets"`
}

// AppConfig controls the keep-alive/admin HTTP server.
type AppConfig struct {
	Name    string `yaml:"name"`
	Env     string `yaml:"env"`
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	Version string `yaml:"version"`
}

// GatewayConfig holds the bridge connection values.
type GatewayConfig struct {
	URL                   string `yaml:"url"`
	Token                 string `yaml:"token"`
	CommandPrefix         string `yaml:"command_prefix"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// StorageConfig selects and locates the ticket/settings stores.
type StorageConfig struct {
	Backend      string `yaml:"backend"` // file | postgres
	TicketsFile  string `yaml:"tickets_file"`
	SettingsFile string `yaml:"settings_file"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IntakeConfig selects the pending-intake buffer backend.
type IntakeConfig struct {
	Backend    string `yaml:"backend"` // memory | redis
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// KafkaConfig configures the optional lifecycle-event sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig defines admin-API authentication parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	AdminSecretHash       string `yaml:"admin_secret_hash"`
	BcryptCost            int    `yaml:"bcrypt_cost"`
}

// TicketsConfig tunes lifecycle behavior.
type TicketsConfig struct {
	DeleteDelaySeconds int `yaml:"delete_delay_seconds"`
	ArchivePageSize    int `yaml:"archive_page_size"`
	TranscriptLimit    int `yaml:"transcript_limit"`
}

// Load reads configuration from environment variables, applying
// defaults where possible. When BOT_CONFIG_FILE (default bot.yaml)
// exists its values override the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "support-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "3000"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Gateway: GatewayConfig{
			URL:                   getEnv("GATEWAY_URL", "ws://127.0.0.1:8090/gateway"),
			Token:                 os.Getenv("GATEWAY_TOKEN"),
			CommandPrefix:         getEnv("COMMAND_PREFIX", "!"),
			RequestTimeoutSeconds: getEnvAsInt("GATEWAY_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Storage: StorageConfig{
			Backend:      getEnv("STORAGE_BACKEND", "file"),
			TicketsFile:  getEnv("TICKETS_FILE", "tickets.json"),
			SettingsFile: getEnv("SETTINGS_FILE", "config.json"),
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
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Intake: IntakeConfig{
			Backend:    getEnv("INTAKE_BACKEND", "memory"),
			TTLMinutes: getEnvAsInt("INTAKE_TTL_MINUTES", 30),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "support-bot.tickets"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminSecretHash:       os.Getenv("AUTH_ADMIN_SECRET_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Tickets: TicketsConfig{
			DeleteDelaySeconds: getEnvAsInt("TICKET_DELETE_DELAY_SECONDS", 10),
			ArchivePageSize:    getEnvAsInt("ARCHIVE_PAGE_SIZE", 100),
			TranscriptLimit:    getEnvAsInt("TRANSCRIPT_LIMIT", 1000),
		},
	}

	if err := overlayFile(cfg, getEnv("BOT_CONFIG_FILE", "bot.yaml")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the bridge request timeout duration.
func (g GatewayConfig) RequestTimeout() time.Duration {
	if g.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// DeleteDelay returns the post-close channel deletion grace period.
func (t TicketsConfig) DeleteDelay() time.Duration {
	if t.DeleteDelaySeconds < 0 {
		return 0
	}
	return time.Duration(t.DeleteDelaySeconds) * time.Second
}

// IntakeTTL returns the redis intake entry lifetime.
func (i IntakeConfig) IntakeTTL() time.Duration {
	if i.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(i.TTLMinutes) * time.Minute
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

func splitNonEmpty(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
