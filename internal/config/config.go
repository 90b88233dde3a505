package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Realtime    RealtimeConfig    `yaml:"realtime"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JWTConfig contains bearer credential settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// NegotiationConfig governs the booking negotiation lifecycle.
type NegotiationConfig struct {
	WindowMinutes     int   `yaml:"window_minutes"`
	CommissionRateBps int64 `yaml:"commission_rate_bps"`
	TaxRateBps        int64 `yaml:"tax_rate_bps"`
}

// Window returns the negotiation window as a duration.
func (n NegotiationConfig) Window() time.Duration {
	return time.Duration(n.WindowMinutes) * time.Minute
}

// RealtimeConfig governs the websocket broadcast layer.
type RealtimeConfig struct {
	FastIntervalSeconds  int `yaml:"fast_interval_seconds"`  // kpis, booking metrics
	SlowIntervalSeconds  int `yaml:"slow_interval_seconds"`  // geographic, heavy aggregates
	ThrottleFloorSeconds int `yaml:"throttle_floor_seconds"` // min spacing per (conn, metric)
	SendBufferSize       int `yaml:"send_buffer_size"`
}

func (r RealtimeConfig) FastInterval() time.Duration {
	return time.Duration(r.FastIntervalSeconds) * time.Second
}

func (r RealtimeConfig) SlowInterval() time.Duration {
	return time.Duration(r.SlowIntervalSeconds) * time.Second
}

func (r RealtimeConfig) ThrottleFloor() time.Duration {
	return time.Duration(r.ThrottleFloorSeconds) * time.Second
}

// SchedulerConfig holds cron expressions (with seconds field, UTC).
type SchedulerConfig struct {
	ExpirePendingBookings string `yaml:"expire_pending_bookings"`
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) overrideWithEnv() {
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
}

func (c *Config) applyDefaults() {
	if c.Negotiation.WindowMinutes == 0 {
		c.Negotiation.WindowMinutes = 24 * 60
	}
	if c.Realtime.FastIntervalSeconds == 0 {
		c.Realtime.FastIntervalSeconds = 30
	}
	if c.Realtime.SlowIntervalSeconds == 0 {
		c.Realtime.SlowIntervalSeconds = 300
	}
	if c.Realtime.ThrottleFloorSeconds == 0 {
		c.Realtime.ThrottleFloorSeconds = 30
	}
	if c.Realtime.SendBufferSize == 0 {
		c.Realtime.SendBufferSize = 64
	}
	if c.Scheduler.ExpirePendingBookings == "" {
		// Every 10 seconds, so bookings expire within seconds of their window.
		c.Scheduler.ExpirePendingBookings = "*/10 * * * * *"
	}
}

// Validate checks that required fields are present and ranges make sense.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Negotiation.CommissionRateBps < 0 || c.Negotiation.TaxRateBps < 0 {
		return fmt.Errorf("commission and tax rates must be non-negative")
	}
	if c.Negotiation.WindowMinutes <= 0 {
		return fmt.Errorf("negotiation window must be positive")
	}
	return nil
}

// GetServerAddress returns the host:port the HTTP server binds to.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabaseConnectionString builds the lib/pq connection string.
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
		c.Database.Database, c.Database.SSLMode)
}
