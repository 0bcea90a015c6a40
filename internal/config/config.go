package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Workflow    WorkflowConfig    `mapstructure:"workflow"`
	Rules       RulesConfig       `mapstructure:"rules"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// WorkflowConfig tunes transaction retries and the event bus
type WorkflowConfig struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax  time.Duration `mapstructure:"retry_backoff_max"`
	TxTimeout        time.Duration `mapstructure:"tx_timeout"`
	EventHistorySize int           `mapstructure:"event_history_size"`
}

// RulesConfig tunes the business rule engine
type RulesConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// PermissionsConfig holds the role permission matrix. An empty matrix
// falls back to the built-in default roles.
type PermissionsConfig struct {
	Matrix map[string][]string `mapstructure:"matrix"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// An empty configPath skips the file and uses defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APPROVAL")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/approval.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Workflow defaults
	v.SetDefault("workflow.max_retries", 3)
	v.SetDefault("workflow.retry_backoff", 50*time.Millisecond)
	v.SetDefault("workflow.retry_backoff_max", 2*time.Second)
	v.SetDefault("workflow.tx_timeout", 10*time.Second)
	v.SetDefault("workflow.event_history_size", 256)

	// Rule engine defaults
	v.SetDefault("rules.max_depth", 10)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.MaxRetries < 0 {
		return fmt.Errorf("workflow.max_retries must not be negative")
	}
	if c.Workflow.RetryBackoff <= 0 {
		return fmt.Errorf("workflow.retry_backoff must be positive")
	}
	if c.Workflow.RetryBackoffMax < c.Workflow.RetryBackoff {
		return fmt.Errorf("workflow.retry_backoff_max must be >= workflow.retry_backoff")
	}
	if c.Workflow.TxTimeout <= 0 {
		return fmt.Errorf("workflow.tx_timeout must be positive")
	}
	if c.Workflow.EventHistorySize < 0 {
		return fmt.Errorf("workflow.event_history_size must not be negative")
	}
	if c.Rules.MaxDepth <= 0 {
		return fmt.Errorf("rules.max_depth must be positive")
	}
	return nil
}
