package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rentalhub/rental-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Presence backends
const (
	PresenceMemory = "memory"
	PresenceRedis  = "redis"
)

// Config is the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	CORS      CORSConfig      `yaml:"cors"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Chat      ChatConfig      `yaml:"chat"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
	Env  string `yaml:"env"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN returns the MySQL DSN. clientFoundRows makes RowsAffected count
// matched rows, so an UPDATE that writes identical values still reports 1.
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

type WebSocketConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
	SendBuffer     int    `yaml:"send_buffer"`
	MaxMessageSize int64  `yaml:"max_message_size"`
}

type ChatConfig struct {
	MaxMessageLength int    `yaml:"max_message_length"`
	PresenceBackend  string `yaml:"presence_backend"`
	PresenceTTL      int    `yaml:"presence_ttl"` // seconds, redis backend only
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Default returns the configuration used when a key is absent from the file
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8090, Mode: "debug", Env: "local"},
		Database: DatabaseConfig{Host: "localhost", Port: 3306, User: "rental", DBName: "rental_platform", MaxIdleConns: 10, MaxOpenConns: 50, ConnMaxLifetime: 300},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		JWT:      JWTConfig{ExpiresIn: 86400},
		CORS:     CORSConfig{AllowOrigins: "http://localhost:3000"},
		WebSocket: WebSocketConfig{
			SendBuffer:     256,
			MaxMessageSize: 8192,
		},
		Chat:      ChatConfig{MaxMessageLength: 5000, PresenceBackend: PresenceMemory, PresenceTTL: 120},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60},
	}
}

// Load reads the YAML file at path on top of Default and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "APP_ENV")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&cfg.WebSocket.AllowedOrigins, "WS_ALLOWED_ORIGINS")
	setString(&cfg.Chat.PresenceBackend, "PRESENCE_BACKEND")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Validate checks settings that would otherwise fail at runtime
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWT.Secret == "" {
		return errors.New("jwt.secret is required in production")
	}
	switch c.Chat.PresenceBackend {
	case PresenceMemory:
	case PresenceRedis:
		if !c.Redis.Enabled {
			return errors.New("presence_backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown presence_backend %q", c.Chat.PresenceBackend)
	}
	if c.Chat.MaxMessageLength <= 0 {
		return errors.New("chat.max_message_length must be positive")
	}
	// The lease is refreshed on every pong, which arrives at most 60s apart
	if c.Chat.PresenceBackend == PresenceRedis && c.Chat.PresenceTTL <= 60 {
		return errors.New("chat.presence_ttl must exceed the 60s pong interval")
	}
	return nil
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Bool("redis_enabled", cfg.Redis.Enabled).
		Str("presence_backend", cfg.Chat.PresenceBackend).
		Bool("jwt_secret_set", cfg.JWT.Secret != "").
		Msg("config resolved")
}
