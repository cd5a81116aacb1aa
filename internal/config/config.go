package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EventModeSync  = "sync"
	EventModeKafka = "kafka"
)

type Config struct {
	Port           int
	AllowedOrigins []string

	DB    DBConfig
	Auth  AuthConfig
	Redis RedisConfig
	Kafka KafkaConfig

	// EventMode selects how domain events reach the notification dispatcher.
	EventMode string

	LogLevel  string
	LogFormat string
}

type DBConfig struct {
	Host        string
	Port        string
	Database    string
	Username    string
	Password    string
	Schema      string
	AutoMigrate bool
}

// DSN renders the keyword/value connection string the gorm postgres driver expects.
func (c DBConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.Username, c.Password, c.Database, c.Port)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads the configuration from the environment. A .env file is picked up
// by godotenv/autoload in main before this runs.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")
	v.SetDefault("BLUEPRINT_DB_HOST", "localhost")
	v.SetDefault("BLUEPRINT_DB_PORT", "5432")
	v.SetDefault("BLUEPRINT_DB_DATABASE", "todo_share")
	v.SetDefault("BLUEPRINT_DB_USERNAME", "postgres")
	v.SetDefault("BLUEPRINT_DB_PASSWORD", "")
	v.SetDefault("BLUEPRINT_DB_SCHEMA", "")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENT_MODE", EventModeSync)
	v.SetDefault("KAFKA_TOPIC", "todo.events")
	v.SetDefault("KAFKA_GROUP_ID", "todo-notifier")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	cfg := &Config{
		Port:           v.GetInt("PORT"),
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		DB: DBConfig{
			Host:        v.GetString("BLUEPRINT_DB_HOST"),
			Port:        v.GetString("BLUEPRINT_DB_PORT"),
			Database:    v.GetString("BLUEPRINT_DB_DATABASE"),
			Username:    v.GetString("BLUEPRINT_DB_USERNAME"),
			Password:    v.GetString("BLUEPRINT_DB_PASSWORD"),
			Schema:      v.GetString("BLUEPRINT_DB_SCHEMA"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			TokenTTL:  v.GetDuration("JWT_TTL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
			GroupID: v.GetString("KAFKA_GROUP_ID"),
		},
		EventMode: strings.ToLower(v.GetString("EVENT_MODE")),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	switch c.EventMode {
	case EventModeSync:
	case EventModeKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENT_MODE=kafka"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required when EVENT_MODE=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_MODE %q", c.EventMode))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
