// ABOUTME: Configuration loading and parsing for agentmesh nodes
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agentmesh node configuration
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	Server      ServerConfig      `yaml:"server"`
	Cluster     ClusterConfig     `yaml:"cluster"`
	Supervision SupervisionConfig `yaml:"supervision"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// NodeConfig identifies this node within the cluster
type NodeConfig struct {
	// Host is the logical host identifier used in directory entries.
	// It must be unique across the cluster.
	Host string `yaml:"host"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// PeerConfig describes one remote cluster member
type PeerConfig struct {
	Host string `yaml:"host"`
	URL  string `yaml:"url"`
}

// ClusterConfig holds cluster membership and remote-call timing configuration
type ClusterConfig struct {
	Peers []PeerConfig `yaml:"peers"`

	CallTimeout   time.Duration `yaml:"-"`
	FanoutTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CallTimeoutRaw   string `yaml:"call_timeout"`
	FanoutTimeoutRaw string `yaml:"fanout_timeout"`
}

// SupervisionConfig holds restart policy configuration
type SupervisionConfig struct {
	// Policy is one of "always", "never", "transient"
	Policy      string `yaml:"policy"`
	MaxRestarts *int   `yaml:"max_restarts"`

	RestartDelay time.Duration `yaml:"-"`
	OpTimeout    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RestartDelayRaw string `yaml:"restart_delay"`
	OpTimeoutRaw    string `yaml:"op_timeout"`
}

// DatabaseConfig holds the supervision event ledger location.
// An empty path disables the ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds cluster authentication configuration.
// When ClusterSecret is empty, cluster endpoints accept unauthenticated calls.
type AuthConfig struct {
	ClusterSecret string `yaml:"cluster_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied when the corresponding config values are absent.
const (
	DefaultCallTimeout   = 3 * time.Second
	DefaultFanoutTimeout = 5 * time.Second
	DefaultRestartDelay  = 100 * time.Millisecond
	DefaultOpTimeout     = 5 * time.Second
	DefaultMaxRestarts   = 3
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Node.Host == "" {
		return fmt.Errorf("node.host is required")
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Supervision.Policy {
	case "always", "never", "transient":
	default:
		return fmt.Errorf("supervision.policy must be one of always, never, transient (got %q)", c.Supervision.Policy)
	}

	if c.Supervision.MaxRestarts != nil && *c.Supervision.MaxRestarts < 0 {
		return fmt.Errorf("supervision.max_restarts must not be negative")
	}

	seen := make(map[string]bool)
	for _, p := range c.Cluster.Peers {
		if p.Host == "" || p.URL == "" {
			return fmt.Errorf("cluster.peers entries require both host and url")
		}
		if p.Host == c.Node.Host {
			return fmt.Errorf("cluster.peers must not contain this node (%s)", c.Node.Host)
		}
		if seen[p.Host] {
			return fmt.Errorf("cluster.peers contains duplicate host %q", p.Host)
		}
		seen[p.Host] = true
	}

	return nil
}

// MaxRestartsValue returns the configured restart budget, or the default when unset.
// A configured zero is respected: it means "never restart more than zero times".
func (c *SupervisionConfig) MaxRestartsValue() int {
	if c.MaxRestarts == nil {
		return DefaultMaxRestarts
	}
	return *c.MaxRestarts
}

// applyDefaults fills in zero-valued optional fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:8080"
	}
	if c.Supervision.Policy == "" {
		c.Supervision.Policy = "transient"
	}
	if c.Cluster.CallTimeout == 0 {
		c.Cluster.CallTimeout = DefaultCallTimeout
	}
	if c.Cluster.FanoutTimeout == 0 {
		c.Cluster.FanoutTimeout = DefaultFanoutTimeout
	}
	if c.Supervision.RestartDelay == 0 {
		c.Supervision.RestartDelay = DefaultRestartDelay
	}
	if c.Supervision.OpTimeout == 0 {
		c.Supervision.OpTimeout = DefaultOpTimeout
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cluster.CallTimeoutRaw != "" {
		cfg.Cluster.CallTimeout, err = time.ParseDuration(cfg.Cluster.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Cluster.CallTimeoutRaw, err)
		}
	}

	if cfg.Cluster.FanoutTimeoutRaw != "" {
		cfg.Cluster.FanoutTimeout, err = time.ParseDuration(cfg.Cluster.FanoutTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing fanout_timeout %q: %w", cfg.Cluster.FanoutTimeoutRaw, err)
		}
	}

	if cfg.Supervision.RestartDelayRaw != "" {
		cfg.Supervision.RestartDelay, err = time.ParseDuration(cfg.Supervision.RestartDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing restart_delay %q: %w", cfg.Supervision.RestartDelayRaw, err)
		}
	}

	if cfg.Supervision.OpTimeoutRaw != "" {
		cfg.Supervision.OpTimeout, err = time.ParseDuration(cfg.Supervision.OpTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing op_timeout %q: %w", cfg.Supervision.OpTimeoutRaw, err)
		}
	}

	return nil
}
