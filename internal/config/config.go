package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL builds the postgres:// URL used by the migration runner.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// RedisConfig holds the kvstore backend settings. An empty Addr selects the
// in-memory fallback store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SweeperConfig holds the stale-booking sweeper settings.
type SweeperConfig struct {
	Interval       time.Duration
	StaleThreshold time.Duration
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port    string
	AppEnv  string
	DB      DatabaseConfig
	JWT     JWTConfig
	Kafka   KafkaConfig
	Redis   RedisConfig
	Sweeper SweeperConfig
}

// Load reads configuration from the environment with the BOOKING_ prefix.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8084")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "booking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_ID", "service-booking")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SWEEPER_INTERVAL", "5m")
	v.SetDefault("SWEEPER_STALE_THRESHOLD", "1h")

	cfg := &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DB: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			AccessTTL:  v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTTL: v.GetDuration("JWT_REFRESH_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupID: v.GetString("KAFKA_GROUP_ID"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Sweeper: SweeperConfig{
			Interval:       v.GetDuration("SWEEPER_INTERVAL"),
			StaleThreshold: v.GetDuration("SWEEPER_STALE_THRESHOLD"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("BOOKING_JWT_SECRET is required")
	}
	if cfg.Sweeper.Interval <= 0 || cfg.Sweeper.StaleThreshold <= 0 {
		return nil, fmt.Errorf("sweeper interval and stale threshold must be positive")
	}

	return cfg, nil
}
