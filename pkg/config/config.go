// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Contact, Publish, Postgres, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Contact  ContactConfig  `yaml:"contact"`
	Publish  PublishConfig  `yaml:"publish"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ContactConfig controls the public contact endpoint: rate limiting and
// challenge verification. An empty CaptchaSecret disables verification and
// a RateLimitMax of zero disables rate limiting.
type ContactConfig struct {
	RateLimitWindow    time.Duration `yaml:"rateLimitWindow"`
	RateLimitMax       int           `yaml:"rateLimitMax"`
	CaptchaSecret      string        `yaml:"captchaSecret"`
	CaptchaVerifyURL   string        `yaml:"captchaVerifyUrl"`
	CaptchaTimeout     time.Duration `yaml:"captchaTimeout"`
	CaptchaFailureMode string        `yaml:"captchaFailureMode"` // "closed" or "open"
}

// PublishConfig controls the authenticated publish endpoint. An empty Token
// leaves the endpoint open: an explicit deployment choice, not a default
// secret.
type PublishConfig struct {
	Token      string        `yaml:"token"`
	ContentDir string        `yaml:"contentDir"`
	Extension  string        `yaml:"extension"`
	ListTTL    time.Duration `yaml:"listTtl"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// contact submission archive.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the optional post
// listing cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds broker and topic settings for the optional contact
// notification events.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	ContactTopic string   `yaml:"contactTopic"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  20 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Contact: ContactConfig{
			RateLimitWindow:    60 * time.Second,
			RateLimitMax:       5,
			CaptchaVerifyURL:   "https://api.hcaptcha.com/siteverify",
			CaptchaTimeout:     8 * time.Second,
			CaptchaFailureMode: "closed",
		},
		Publish: PublishConfig{
			ContentDir: "content/posts",
			Extension:  ".mdx",
			ListTTL:    60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "siteapi",
			User:            "siteapi",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			ContactTopic: "contact-accepted",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// validate rejects configurations that cannot be acted on.
func (c *Config) validate() error {
	switch c.Contact.CaptchaFailureMode {
	case "closed", "open":
	default:
		return fmt.Errorf("contact.captchaFailureMode must be \"closed\" or \"open\", got %q", c.Contact.CaptchaFailureMode)
	}
	if c.Publish.ContentDir == "" {
		return fmt.Errorf("publish.contentDir must not be empty")
	}
	if !strings.HasPrefix(c.Publish.Extension, ".") {
		return fmt.Errorf("publish.extension must start with a dot, got %q", c.Publish.Extension)
	}
	return nil
}

// applyEnvOverrides reads SITE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SITE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SITE_RATE_LIMIT_WINDOW_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Contact.RateLimitWindow = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SITE_RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Contact.RateLimitMax = n
		}
	}
	if v := os.Getenv("SITE_CAPTCHA_SECRET"); v != "" {
		cfg.Contact.CaptchaSecret = v
	}
	if v := os.Getenv("SITE_CAPTCHA_VERIFY_URL"); v != "" {
		cfg.Contact.CaptchaVerifyURL = v
	}
	if v := os.Getenv("SITE_CAPTCHA_FAILURE_MODE"); v != "" {
		cfg.Contact.CaptchaFailureMode = v
	}
	if v := os.Getenv("SITE_PUBLISH_TOKEN"); v != "" {
		cfg.Publish.Token = v
	}
	if v := os.Getenv("SITE_CONTENT_DIR"); v != "" {
		cfg.Publish.ContentDir = v
	}
	if v := os.Getenv("SITE_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = isTrue(v)
	}
	if v := os.Getenv("SITE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SITE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SITE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SITE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SITE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SITE_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = isTrue(v)
	}
	if v := os.Getenv("SITE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SITE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SITE_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = isTrue(v)
	}
	if v := os.Getenv("SITE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SITE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SITE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SITE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}
