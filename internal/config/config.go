package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config хранит все параметры приложения
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Server   ServerConfig   `yaml:"server"`
	Terminal TerminalConfig `yaml:"terminal"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"tls"`
}

type ServerConfig struct {
	Port       int           `yaml:"port"`
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	Production bool          `yaml:"production"`
}

type TerminalConfig struct {
	Port           int           `yaml:"port"`
	APIBaseURL     string        `yaml:"api_base_url"`
	StorePath      string        `yaml:"store_path"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	CacheVersion   string        `yaml:"cache_version"`
	StaticAssets   []string      `yaml:"static_assets"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Database: "shawarma_pos", SSLMode: "disable", MaxConns: 10},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/"},
		Server:   ServerConfig{Port: 3000, TokenTTL: 12 * time.Hour},
		Terminal: TerminalConfig{
			Port:           5000,
			APIBaseURL:     "http://localhost:3000",
			StorePath:      "pos-terminal.db",
			RequestTimeout: 15 * time.Second,
			SettleDelay:    time.Second,
			ProbeInterval:  5 * time.Second,
			MaxAttempts:    5,
			CacheVersion:   "v1",
			StaticAssets:   []string{"/", "/index.html", "/manifest.json", "/icon-192.png", "/icon-512.png", "/logo.png"},
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load reads path over the defaults and then applies POS_* environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(c *Config) {
	c.Database.Host = getEnv("POS_DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("POS_DB_PORT", c.Database.Port)
	c.Database.User = getEnv("POS_DB_USER", c.Database.User)
	c.Database.Password = getEnv("POS_DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("POS_DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("POS_DB_SSLMODE", c.Database.SSLMode)

	c.RabbitMQ.Host = getEnv("POS_RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.Port = getEnvInt("POS_RABBITMQ_PORT", c.RabbitMQ.Port)
	c.RabbitMQ.User = getEnv("POS_RABBITMQ_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = getEnv("POS_RABBITMQ_PASSWORD", c.RabbitMQ.Password)

	c.Server.JWTSecret = getEnv("POS_JWT_SECRET", c.Server.JWTSecret)
	c.Server.Production = getEnv("POS_ENV", "") == "production" || c.Server.Production

	c.Terminal.APIBaseURL = getEnv("POS_API_BASE_URL", c.Terminal.APIBaseURL)
	c.Terminal.StorePath = getEnv("POS_STORE_PATH", c.Terminal.StorePath)
	c.Terminal.Username = getEnv("POS_TERMINAL_USER", c.Terminal.Username)
	c.Terminal.Password = getEnv("POS_TERMINAL_PASSWORD", c.Terminal.Password)

	c.Log.Level = getEnv("POS_LOG_LEVEL", c.Log.Level)
}

func (c *Config) ValidateServer() error {
	var errs []error
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		errs = append(errs, errors.New("database host, user and database are required"))
	}
	if c.RabbitMQ.Host == "" {
		errs = append(errs, errors.New("rabbitmq host is required"))
	}
	if len(c.Server.JWTSecret) < 16 {
		errs = append(errs, errors.New("server.jwt_secret must be at least 16 bytes"))
	}
	return errors.Join(errs...)
}

func (c *Config) ValidateTerminal() error {
	var errs []error
	if !strings.HasPrefix(c.Terminal.APIBaseURL, "http://") && !strings.HasPrefix(c.Terminal.APIBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("terminal.api_base_url must be an http(s) url, got %q", c.Terminal.APIBaseURL))
	}
	if c.Terminal.StorePath == "" {
		errs = append(errs, errors.New("terminal.store_path is required"))
	}
	if c.Terminal.RequestTimeout <= 0 {
		errs = append(errs, errors.New("terminal.request_timeout must be positive"))
	}
	if c.Terminal.MaxAttempts < 0 {
		errs = append(errs, errors.New("terminal.max_attempts must be >= 0"))
	}
	return errors.Join(errs...)
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
