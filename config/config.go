package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for the capture service
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Rates    RatesConfig    `yaml:"rates"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Duration wraps time.Duration so YAML values like "30s" or "5m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	User            string   `yaml:"user"`
	Password        string   `yaml:"password"`
	Database        string   `yaml:"database"`
	SSLMode         string   `yaml:"ssl_mode"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration. The cache is optional: with Enabled
// false the service runs without a cache and the read endpoints always hit
// the database.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RatesConfig holds the platform fee rates as decimal strings.
type RatesConfig struct {
	Pix                  string `yaml:"pix"`
	CardBase             string `yaml:"card_base"`
	CardInstallmentBase  string `yaml:"card_installment_base"`
	CardInstallmentExtra string `yaml:"card_installment_extra"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Host                 string   `yaml:"host"`
	Port                 int      `yaml:"port"`
	CORSOrigins          []string `yaml:"cors_origins"`
	RateLimit            int      `yaml:"rate_limit"`
	RateBurst            int      `yaml:"rate_burst"`
	DistributedRateLimit bool     `yaml:"distributed_rate_limit"`
	Timeout              Duration `yaml:"timeout"`
	OpsAPIKeys           []string `yaml:"ops_api_keys"`
	JWTSecret            string   `yaml:"jwt_secret"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		fmt.Sscanf(dbPort, "%d", &c.Database.Port)
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		c.Database.User = dbUser
	}
	if dbPass := os.Getenv("DB_PASSWORD"); dbPass != "" {
		c.Database.Password = dbPass
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		c.Database.Database = dbName
	}
	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		c.Database.SSLMode = sslMode
	}

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		c.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		fmt.Sscanf(redisPort, "%d", &c.Redis.Port)
	}
	if redisPass := os.Getenv("REDIS_PASSWORD"); redisPass != "" {
		c.Redis.Password = redisPass
	}

	if apiPort := os.Getenv("API_PORT"); apiPort != "" {
		fmt.Sscanf(apiPort, "%d", &c.API.Port)
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.API.JWTSecret = jwtSecret
	}
	if opsKeys := os.Getenv("OPS_API_KEYS"); opsKeys != "" {
		c.API.OpsAPIKeys = splitAndTrim(opsKeys)
	}
}

// splitAndTrim splits a comma-separated list, dropping empty entries.
func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database port is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = Duration(5 * time.Minute)
	}

	// Redis validation
	if c.Redis.Enabled {
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required when redis is enabled")
		}
		if c.Redis.Port == 0 {
			return fmt.Errorf("redis port is required when redis is enabled")
		}
	}

	// Rates validation: missing values fall back to the platform defaults
	if c.Rates.Pix == "" {
		c.Rates.Pix = "0"
	}
	if c.Rates.CardBase == "" {
		c.Rates.CardBase = "0.0399"
	}
	if c.Rates.CardInstallmentBase == "" {
		c.Rates.CardInstallmentBase = "0.0499"
	}
	if c.Rates.CardInstallmentExtra == "" {
		c.Rates.CardInstallmentExtra = "0.02"
	}

	// API validation
	if c.API.Port == 0 {
		return fmt.Errorf("API port is required")
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 100
	}
	if c.API.RateBurst <= 0 {
		c.API.RateBurst = c.API.RateLimit * 2
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = Duration(30 * time.Second)
	}
	if c.API.DistributedRateLimit && !c.Redis.Enabled {
		return fmt.Errorf("distributed rate limiting requires redis to be enabled")
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		return fmt.Errorf("metrics port is required when metrics are enabled")
	}

	return nil
}

// GetConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// GetRedisAddr returns the Redis connection address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
