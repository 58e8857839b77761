// Package config provides configuration structures and loading logic for the
// realm-finder front door.
//
// A Config is built once at process start (defaults, then an optional YAML or
// TOML file, then environment overrides, then CLI flags) and is treated as
// read-only afterwards. It is safe to share a *Config across goroutines.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 9998
	DefaultPrefix     = "/a2a"
	DefaultHealthPath = "/health"
	DefaultBaseURL    = "http://localhost:9998/"
)

// Config holds the process-wide configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Routing RoutingConfig `yaml:"routing" toml:"routing"`
	Agent   AgentConfig   `yaml:"agent" toml:"agent"`
	Realms  []RealmConfig `yaml:"realms" toml:"realms"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// ServerConfig holds configuration for the public HTTP listener.
type ServerConfig struct {
	Host              string        `yaml:"host" toml:"host"`
	Port              int           `yaml:"port" toml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Address returns the host:port pair the server binds to.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RoutingConfig holds the front door path contract.
type RoutingConfig struct {
	// Prefix is stripped from delegate-bound paths (e.g. "/a2a").
	Prefix string `yaml:"prefix" toml:"prefix"`

	// HealthPath is answered locally and never reaches the delegate.
	HealthPath string `yaml:"health_path" toml:"health_path"`
}

// AgentConfig describes the agent the delegate application advertises.
type AgentConfig struct {
	// BaseURL is only used for the agent's self-description.
	BaseURL     string        `yaml:"base_url" toml:"base_url"`
	Name        string        `yaml:"name" toml:"name"`
	Description string        `yaml:"description" toml:"description"`
	Version     string        `yaml:"version" toml:"version"`
	Streaming   bool          `yaml:"streaming" toml:"streaming"`
	Skills      []SkillConfig `yaml:"skills" toml:"skills"`
}

// SkillConfig describes a single advertised agent skill.
type SkillConfig struct {
	ID          string   `yaml:"id" toml:"id"`
	Name        string   `yaml:"name" toml:"name"`
	Description string   `yaml:"description" toml:"description"`
	Tags        []string `yaml:"tags" toml:"tags"`
	Examples    []string `yaml:"examples" toml:"examples"`
}

// RealmConfig is one row of the realm table served by the reference executor.
type RealmConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Status string `yaml:"status" toml:"status"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

// MetricsConfig holds configuration for the Prometheus admin listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
	Path       string `yaml:"path" toml:"path"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// Default returns a configuration with the stock realm-finder settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Routing: RoutingConfig{
			Prefix:     DefaultPrefix,
			HealthPath: DefaultHealthPath,
		},
		Agent: AgentConfig{
			BaseURL:     DefaultBaseURL,
			Name:        "OCI Realm Finder Agent",
			Description: "Just a OCI realm finder agent",
			Version:     "1.0.0",
			Streaming:   true,
			Skills: []SkillConfig{
				{
					ID:          "oci_realm_finder",
					Name:        "Returns OCI functioning realms and their status",
					Description: "just returns OCI functioning realms and their status",
					Tags:        []string{"oci", "realm", "finder"},
					Examples: []string{
						"what are the functioning realms and their status?",
						"what is the status of the OCI-1 realm?",
					},
				},
			},
		},
		Realms: []RealmConfig{
			{Name: "OCI-1", Status: "operational"},
			{Name: "OCI-2", Status: "operational"},
			{Name: "OCI-3", Status: "degraded"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9464",
			Path:       "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "realm-finder",
		},
	}
}

// Load reads configuration from a file (if path is non-empty), applies
// environment variable overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	//nolint:gosec // Config file path is controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Lists from the file replace the defaults instead of merging into them.
	defaultSkills, defaultRealms := cfg.Agent.Skills, cfg.Realms
	cfg.Agent.Skills, cfg.Realms = nil, nil
	defer func() {
		if cfg.Agent.Skills == nil {
			cfg.Agent.Skills = defaultSkills
		}
		if cfg.Realms == nil {
			cfg.Realms = defaultRealms
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	return nil
}

// applyEnvOverrides applies environment variables on top of cfg. A2A_BASE_URL
// is the externally supplied base URL for the agent's self-description.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	if val, ok := lookup("A2A_BASE_URL"); ok && val != "" {
		cfg.Agent.BaseURL = val
	}
	if val, ok := lookup("HOST"); ok && val != "" {
		cfg.Server.Host = val
	}
	if val, ok := lookup("PORT"); ok && val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return invalid("port", fmt.Sprintf("PORT=%q is not a number", val))
		}
		cfg.Server.Port = port
	}
	if val, ok := lookup("A2A_PREFIX"); ok && val != "" {
		cfg.Routing.Prefix = val
	}
	if val, ok := lookup("HEALTH_PATH"); ok && val != "" {
		cfg.Routing.HealthPath = val
	}
	if val, ok := lookup("LOG_LEVEL"); ok && val != "" {
		cfg.Logging.Level = val
	}
	if val, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && val != "" {
		cfg.Tracing.Endpoint = val
	}
	return nil
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing configuration: %w", err)
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration: %w", err)
	}

	for i, realm := range c.Realms {
		if strings.TrimSpace(realm.Name) == "" {
			return fmt.Errorf("realm %d: %w", i, invalid("name", "cannot be empty"))
		}
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics configuration: %w", err)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing configuration: %w", invalid("endpoint", "cannot be empty when tracing is enabled"))
	}

	return nil
}

// Validate performs validation of server configuration.
func (s *ServerConfig) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		s.Host = DefaultHost
	}
	if s.Port < 0 || s.Port > 65535 {
		return invalid("port", fmt.Sprintf("%d is out of range", s.Port))
	}
	if s.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout", "must be positive")
	}
	return nil
}

// Validate checks the path contract: both paths are absolute, carry no
// trailing slash, and neither path lies beneath the other.
func (r *RoutingConfig) Validate() error {
	if err := validatePath("prefix", r.Prefix); err != nil {
		return err
	}
	if err := validatePath("health_path", r.HealthPath); err != nil {
		return err
	}
	if r.Prefix == r.HealthPath {
		return invalid("health_path", "must differ from prefix")
	}
	if strings.HasPrefix(r.HealthPath, r.Prefix+"/") {
		return invalid("health_path", fmt.Sprintf("%q is beneath prefix %q", r.HealthPath, r.Prefix))
	}
	if strings.HasPrefix(r.Prefix, r.HealthPath+"/") {
		return invalid("prefix", fmt.Sprintf("%q is beneath health path %q", r.Prefix, r.HealthPath))
	}
	return nil
}

func validatePath(field, p string) error {
	switch {
	case p == "":
		return invalid(field, "cannot be empty")
	case !strings.HasPrefix(p, "/"):
		return invalid(field, fmt.Sprintf("%q must start with /", p))
	case p == "/":
		return invalid(field, "cannot be the root path")
	case strings.HasSuffix(p, "/"):
		return invalid(field, fmt.Sprintf("%q must not end with /", p))
	}
	return nil
}

// Validate performs validation of the advertised agent.
func (a *AgentConfig) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "cannot be empty")
	}
	for i, skill := range a.Skills {
		if skill.ID == "" {
			return invalid(fmt.Sprintf("skills[%d].id", i), "cannot be empty")
		}
	}
	return nil
}

// Validate performs validation of metrics configuration.
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.ListenAddr == "" {
		return invalid("listen_addr", "cannot be empty when metrics are enabled")
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
	return nil
}
