package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file path, mirroring the original
// rich-traceroute project's RICH_TRACEROUTE_CONFIG variable.
const ConfigPathEnvVar = "TRACEROUTE_ENRICHER_CONFIG"

// wellKnownPaths is searched, in order, when neither --config nor
// ConfigPathEnvVar names a file.
var wellKnownPaths = []string{
	"enrichmentd.yml",
	"/usr/local/etc/enrichmentd/config.yml",
	"/usr/local/etc/enrichmentd.yml",
	"/etc/enrichmentd/config.yml",
	"/etc/enrichmentd.yml",
}

type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	DB       DBConfig       `koanf:"db"`
	RabbitMQ RabbitMQConfig `koanf:"rabbitmq"`
	Workers  WorkersConfig  `koanf:"workers"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Web      WebConfig      `koanf:"web"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// DBConfig mirrors spec.md §6's db.type enum (sqlite|mysql) at the
// configuration-surface level; the store itself is implemented against
// Postgres (see DESIGN.md), so DSN is the value actually consumed and
// Type/Path/Schema/Host/Port/User/Passwd are retained for config-shape
// fidelity and for building a DSN when one isn't given directly.
type DBConfig struct {
	Type     string `koanf:"type"`
	DSN      string `koanf:"dsn"`
	Path     string `koanf:"path"`
	Schema   string `koanf:"schema"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Passwd   string `koanf:"passwd"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

type RabbitMQConfig struct {
	URL      string `koanf:"url"`
	Protocol string `koanf:"protocol"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Vhost    string `koanf:"vhost"`
}

// AMQPURL builds the broker endpoint, preferring a raw URL if one was
// supplied and otherwise assembling one from the discrete fields, matching
// the original config.py's get_rabbitmq_url().
func (r RabbitMQConfig) AMQPURL() string {
	if r.URL != "" {
		return r.URL
	}
	protocol := r.Protocol
	if protocol == "" {
		protocol = "amqp"
	}
	vhost := r.Vhost
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", protocol, r.Username, r.Password, r.Host, r.Port, vhost)
}

type WorkersConfig struct {
	Consumers int `koanf:"consumers"`
	Enrichers int `koanf:"enrichers"`
}

type IngestConfig struct {
	MaxRawBytes int `koanf:"max_raw_bytes"`
}

type WebConfig struct {
	StatsToken string `koanf:"stats_token"`
}

// FindConfigPath resolves the config file location: explicit path argument,
// then ConfigPathEnvVar, then the well-known search list.
func FindConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p, nil
	}
	for _, p := range wellKnownPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config: no config file found (set --config, %s, or place one of %v)", ConfigPathEnvVar, wellKnownPaths)
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	resolved, err := FindConfigPath(path)
	if err != nil {
		return nil, err
	}

	if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", resolved, err)
	}

	// Overlay environment variables: TRACEROUTE_ENRICHER_DB__DSN → db.dsn
	if err := k.Load(env.Provider("TRACEROUTE_ENRICHER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "TRACEROUTE_ENRICHER_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "enrichmentd-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		DB: DBConfig{
			Type:     "mysql",
			MaxConns: 20,
			MinConns: 2,
		},
		RabbitMQ: RabbitMQConfig{
			Protocol: "amqp",
			Port:     5672,
		},
		Workers: WorkersConfig{
			Consumers: 1,
			Enrichers: 4,
		},
		Ingest: IngestConfig{
			MaxRawBytes: 16 * 1024,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Type {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("config: db.path is required when db.type is sqlite")
		}
	case "mysql":
		if c.DB.DSN == "" {
			if c.DB.Schema == "" || c.DB.Host == "" || c.DB.User == "" {
				return fmt.Errorf("config: db.dsn, or db.{schema,host,user}, is required when db.type is mysql")
			}
		}
	default:
		return fmt.Errorf("config: db.type must be one of {sqlite, mysql} (got %q)", c.DB.Type)
	}

	if c.RabbitMQ.URL == "" {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("config: rabbitmq.url, or rabbitmq.host and friends, is required")
		}
		if c.RabbitMQ.Port <= 0 {
			return fmt.Errorf("config: rabbitmq.port must be > 0 (got %d)", c.RabbitMQ.Port)
		}
	}

	if c.Workers.Consumers < 0 {
		return fmt.Errorf("config: workers.consumers must be >= 0 (got %d)", c.Workers.Consumers)
	}
	if c.Workers.Enrichers < 0 {
		return fmt.Errorf("config: workers.enrichers must be >= 0 (got %d)", c.Workers.Enrichers)
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("config: db.max_conns must be > 0 (got %d)", c.DB.MaxConns)
	}
	if c.DB.MinConns < 0 {
		return fmt.Errorf("config: db.min_conns must be >= 0 (got %d)", c.DB.MinConns)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.Ingest.MaxRawBytes <= 0 {
		return fmt.Errorf("config: ingest.max_raw_bytes must be > 0 (got %d)", c.Ingest.MaxRawBytes)
	}

	return nil
}

// DSN returns the Postgres connection string backing the store, built from
// the discrete db.* fields when db.dsn was not given directly.
func (c *Config) DSN() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.DB.User, c.DB.Passwd, c.DB.Host, portOr(c.DB.Port, 5432), c.DB.Schema)
}

func portOr(p, def int) int {
	if p == 0 {
		return def
	}
	return p
}
