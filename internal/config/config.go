package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the GT06 listener and connection manager tunables
type ServerConfig struct {
	GatewayID      string        `yaml:"gateway_id"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxConnections int           `yaml:"max_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxIterations  int           `yaml:"max_iterations"`
	MaxBufferSize  int           `yaml:"max_buffer_size"`
	ReadBufferSize int           `yaml:"read_buffer_size"`
}

// Addr returns the TCP listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HTTPConfig configures the operations endpoint
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PostgresConfig configures the location store
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the cache and offline command queue
type RedisConfig struct {
	URL         string        `yaml:"url"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	LocationTTL time.Duration `yaml:"location_ttl"`
	CommandTTL  time.Duration `yaml:"command_ttl"`
}

// NATSConfig configures broadcast, notifications and the command downlink
type NATSConfig struct {
	URL               string        `yaml:"url"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	SubjectPrefix     string        `yaml:"subject_prefix"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when neither file nor environment set a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GatewayID:      "gt06-gateway",
			Host:           "0.0.0.0",
			Port:           5027,
			MaxConnections: 2000,
			IdleTimeout:    5 * time.Minute,
			SweepInterval:  5 * time.Minute,
			WriteTimeout:   10 * time.Second,
			MaxIterations:  50,
			MaxBufferSize:  8192,
			ReadBufferSize: 4096,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Mongo: MongoConfig{
			Database: "tracking",
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			SessionTTL:  time.Hour,
			LocationTTL: 5 * time.Minute,
			CommandTTL:  time.Hour,
		},
		NATS: NATSConfig{
			MaxReconnects:     -1,
			ReconnectInterval: 2 * time.Second,
			SubjectPrefix:     "gt06",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the optional YAML file at path, applies environment overrides and validates the result.
// An empty path means environment-only configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() error {
	c.Server.GatewayID = getEnv("GATEWAY_ID", c.Server.GatewayID)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Mongo.URI = getEnv("MONGODB_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGODB_DATABASE", c.Mongo.Database)
	c.Postgres.DSN = getEnv("DATABASE_URL", c.Postgres.DSN)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var err error
	if c.Server.Port, err = getEnvInt("GPS_PORT_GT06", c.Server.Port); err != nil {
		return err
	}
	if c.Server.MaxConnections, err = getEnvInt("MAX_GPS_CONNECTIONS", c.Server.MaxConnections); err != nil {
		return err
	}
	if c.Server.IdleTimeout, err = getEnvMillis("GPS_CONNECTION_TIMEOUT", c.Server.IdleTimeout); err != nil {
		return err
	}
	if c.Server.SweepInterval, err = getEnvMillis("GPS_SWEEP_INTERVAL", c.Server.SweepInterval); err != nil {
		return err
	}
	return nil
}

// Validate checks that the tunables are usable
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections))
	}
	if c.Server.IdleTimeout <= 0 {
		errs = append(errs, errors.New("server.idle_timeout must be positive"))
	}
	if c.Server.SweepInterval <= 0 {
		errs = append(errs, errors.New("server.sweep_interval must be positive"))
	}
	if c.Server.MaxIterations < 1 {
		errs = append(errs, errors.New("server.max_iterations must be positive"))
	}
	if c.Server.MaxBufferSize < c.Server.ReadBufferSize || c.Server.ReadBufferSize < 1 {
		errs = append(errs, errors.New("server.max_buffer_size must be at least server.read_buffer_size"))
	}
	if c.Server.GatewayID == "" {
		errs = append(errs, errors.New("server.gateway_id is required"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.TrimSpace(value)
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvMillis(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
