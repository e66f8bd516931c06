package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env         string
	ServiceName string
	Port        int
	APIPrefix   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Discipline    DisciplineConfig
	Notifications NotificationConfig
	Exports       ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// StatementTimeout bounds every query server-side; zero leaves the server default.
	StatementTimeout time.Duration
	ConnMaxLifetime  time.Duration
	ApplicationName  string
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// JWTConfig holds verification settings. Tokens are issued by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DisciplineConfig tunes the case workflow policy.
type DisciplineConfig struct {
	RequireExplanationBeforeVerdict bool
	VerdictRoles                    []string
	PriorViolationLimit             int
	CategoryCacheTTL                time.Duration
	CacheEnabled                    bool
}

// NotificationConfig controls outbox delivery.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// MaxDeliveryAttempts is how many failed deliveries a row survives before it is marked dead.
	MaxDeliveryAttempts int
	RelayInterval       time.Duration
	RelayBatch          int
	KafkaBrokers        []string
	KafkaTopic          string
	WorkerPort          int
}

// ExportConfig gates case exports.
type ExportConfig struct {
	Enabled    bool
	MaxReports int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.ServiceName = v.GetString("SERVICE_NAME")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		StatementTimeout: parseDuration(v.GetString("DB_STATEMENT_TIMEOUT"), 0),
		ConnMaxLifetime:  parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ApplicationName:  cfg.ServiceName,
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),

		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 2*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
		Leeway: parseDuration(v.GetString("JWT_LEEWAY"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Discipline = DisciplineConfig{
		RequireExplanationBeforeVerdict: v.GetBool("DISCIPLINE_REQUIRE_EXPLANATION"),
		VerdictRoles:                    splitAndTrim(v.GetString("DISCIPLINE_VERDICT_ROLES")),
		PriorViolationLimit:             v.GetInt("DISCIPLINE_PRIOR_VIOLATION_LIMIT"),
		CategoryCacheTTL:                parseDuration(v.GetString("DISCIPLINE_CATEGORY_CACHE_TTL"), 10*time.Minute),
		CacheEnabled:                    v.GetBool("DISCIPLINE_CACHE_ENABLED"),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:             v.GetBool("NOTIFICATIONS_ENABLED"),
		Workers:             v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize:          v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
		MaxRetries:          v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay:          parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 2*time.Second),
		MaxDeliveryAttempts: v.GetInt("NOTIFICATIONS_MAX_DELIVERY_ATTEMPTS"),
		RelayInterval:       parseDuration(v.GetString("NOTIFICATIONS_RELAY_INTERVAL"), 15*time.Second),
		RelayBatch:          v.GetInt("NOTIFICATIONS_RELAY_BATCH"),
		KafkaBrokers:        splitAndTrim(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:          v.GetString("KAFKA_NOTIFICATION_TOPIC"),
		WorkerPort:          v.GetInt("WORKER_METRICS_PORT"),
	}

	cfg.Exports = ExportConfig{
		Enabled:    v.GetBool("ENABLE_EXPORTS"),
		MaxReports: v.GetInt("EXPORT_MAX_REPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("SERVICE_NAME", "hris-discipline-api")
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hris_discipline")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "15s")
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "2s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DISCIPLINE_REQUIRE_EXPLANATION", true)
	v.SetDefault("DISCIPLINE_VERDICT_ROLES", "HR_MANAGER,SUPERADMIN")
	v.SetDefault("DISCIPLINE_PRIOR_VIOLATION_LIMIT", 5)
	v.SetDefault("DISCIPLINE_CATEGORY_CACHE_TTL", "10m")
	v.SetDefault("DISCIPLINE_CACHE_ENABLED", true)

	v.SetDefault("NOTIFICATIONS_ENABLED", true)
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 256)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "2s")
	v.SetDefault("NOTIFICATIONS_MAX_DELIVERY_ATTEMPTS", 10)
	v.SetDefault("NOTIFICATIONS_RELAY_INTERVAL", "15s")
	v.SetDefault("NOTIFICATIONS_RELAY_BATCH", 100)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "hris.discipline.notifications")
	v.SetDefault("WORKER_METRICS_PORT", 9091)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORT_MAX_REPORTS", 1000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
