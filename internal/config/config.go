// Package config handles configuration loading for the AS4 gateway.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like database credentials and API keys to be injected at runtime.
//
// # Configuration Sections
//
//   - server: admin HTTP server settings (port, TLS, admin key)
//   - storage: backend selection and connection settings
//   - pmode: optional PMode document uploaded when storage holds none
//   - pull: pull scheduling, queue and worker pool
//   - transport: outbound HTTPS client settings
//   - observability: metrics endpoint
//   - logging: level and format
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  adminKey: ${ADMIN_KEY}
//
//	storage:
//	  type: postgres
//	  postgres:
//	    url: ${DATABASE_URL}
//
//	pull:
//	  cron: "*/1 * * * *"
//	  workers: 4
//	  policyDir: /etc/as4-gateway/policies
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	PMode         PModeConfig         `yaml:"pmode"`
	Pull          PullConfig          `yaml:"pull"`
	Transport     TransportConfig     `yaml:"transport"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"adminKey"` // API key for admin endpoints
	TLS      struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	// Type is one of "memory", "mongodb" or "postgres"
	Type     string         `yaml:"type"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI          string `yaml:"uri"`
	Database     string `yaml:"database"`
	Transactions bool   `yaml:"transactions"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// PModeConfig holds PMode bootstrap settings
type PModeConfig struct {
	// File is uploaded at startup when storage holds no document
	File string `yaml:"file"`
}

// PullConfig holds pull workflow settings
type PullConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Cron                 string `yaml:"cron"`
	Workers              int    `yaml:"workers"`
	QueueSize            int    `yaml:"queueSize"`
	MaxDeliveries        int    `yaml:"maxDeliveries"`
	NotifyBackendOnError bool   `yaml:"notifyBackendOnError"`
	PolicyDir            string `yaml:"policyDir"`
}

// TransportConfig holds outbound HTTPS settings
type TransportConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MinTLS     string        `yaml:"minTLS"` // "1.2" or "1.3"
	UserAgent  string        `yaml:"userAgent"`
	RootCAFile string        `yaml:"rootCAFile"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration of an empty file
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "as4gateway"
	}
	if c.Pull.Cron == "" {
		c.Pull.Cron = "* * * * *"
	}
	if c.Pull.Workers == 0 {
		c.Pull.Workers = 4
	}
	if c.Pull.QueueSize == 0 {
		c.Pull.QueueSize = 100
	}
	if c.Pull.MaxDeliveries == 0 {
		c.Pull.MaxDeliveries = 3
	}
	if c.Pull.PolicyDir == "" {
		c.Pull.PolicyDir = "policies"
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 30 * time.Second
	}
	if c.Transport.MinTLS == "" {
		c.Transport.MinTLS = "1.2"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case "memory":
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required when type is 'mongodb'")
		}
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("storage.postgres.url is required when type is 'postgres'")
		}
	default:
		return fmt.Errorf("storage.type must be 'memory', 'mongodb', or 'postgres', got '%s'", c.Storage.Type)
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile are required when TLS is enabled")
	}

	if c.Pull.Workers < 0 || c.Pull.QueueSize < 0 || c.Pull.MaxDeliveries < 0 {
		return fmt.Errorf("pull.workers, pull.queueSize and pull.maxDeliveries must not be negative")
	}

	switch c.Transport.MinTLS {
	case "1.2", "1.3":
	default:
		return fmt.Errorf("transport.minTLS must be '1.2' or '1.3', got '%s'", c.Transport.MinTLS)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}

	return nil
}
