package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Booking  BookingConfig  `yaml:"booking"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SSLMode     string `yaml:"ssl_mode"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

// MigrationURL is the URL form golang-migrate's pgx/v5 driver expects.
func (d DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

type BookingConfig struct {
	LockTimeoutMS           int    `yaml:"lock_timeout_ms"`
	OperationTimeoutSeconds int    `yaml:"operation_timeout_seconds"`
	IsolationLevel          string `yaml:"isolation_level"`
	MaxAttempts             int    `yaml:"max_attempts"`
	IdempotencyTTLMinutes   int    `yaml:"idempotency_ttl_minutes"`
	TrainCacheTTLSeconds    int    `yaml:"train_cache_ttl_seconds"`
}

func (b BookingConfig) LockTimeout() time.Duration {
	return time.Duration(b.LockTimeoutMS) * time.Millisecond
}

func (b BookingConfig) OperationTimeout() time.Duration {
	return time.Duration(b.OperationTimeoutSeconds) * time.Second
}

func (b BookingConfig) IdempotencyTTL() time.Duration {
	return time.Duration(b.IdempotencyTTLMinutes) * time.Minute
}

func (b BookingConfig) TrainCacheTTL() time.Duration {
	return time.Duration(b.TrainCacheTTLSeconds) * time.Second
}

type CatalogConfig struct {
	WindowDays int `yaml:"window_days"`
}

type WorkerConfig struct {
	WindowSweepMinutes int `yaml:"window_sweep_minutes"`
}

type LoggingConfig struct {
	Dir     string `yaml:"dir"`
	Service string `yaml:"service"`
	Color   bool   `yaml:"color"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for any field the file leaves out.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Address: ":8080"},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        5432,
			User:        "postgres",
			Name:        "trainbooking",
			SSLMode:     "disable",
			AutoMigrate: true,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			BookingTopic: "booking-events",
			GroupID:      "trainbooking-worker",
		},
		Booking: BookingConfig{
			LockTimeoutMS:           2000,
			OperationTimeoutSeconds: 5,
			IsolationLevel:          "read_committed",
			MaxAttempts:             2,
			IdempotencyTTLMinutes:   60,
			TrainCacheTTLSeconds:    60,
		},
		Catalog: CatalogConfig{WindowDays: 30},
		Worker:  WorkerConfig{WindowSweepMinutes: 60},
		Logging: LoggingConfig{Service: "trainbooking", Color: true},
	}
}

func (c *Config) Validate() error {
	switch c.Booking.IsolationLevel {
	case "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("invalid booking.isolation_level %q", c.Booking.IsolationLevel)
	}
	if c.Booking.MaxAttempts < 1 {
		return fmt.Errorf("booking.max_attempts must be at least 1")
	}
	if c.Catalog.WindowDays < 1 {
		return fmt.Errorf("catalog.window_days must be at least 1")
	}
	if c.Worker.WindowSweepMinutes < 1 {
		return fmt.Errorf("worker.window_sweep_minutes must be at least 1")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Auth.AdminAPIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
}
