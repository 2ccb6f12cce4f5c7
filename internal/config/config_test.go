// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
node:
  host: "node-a"

server:
  http_addr: "0.0.0.0:8080"

cluster:
  call_timeout: "2s"
  fanout_timeout: "4s"
  peers:
    - host: "node-b"
      url: "http://node-b:8080"
    - host: "node-c"
      url: "http://node-c:8080"

supervision:
  policy: "always"
  max_restarts: 5
  restart_delay: "250ms"
  op_timeout: "10s"

database:
  path: "./events.db"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.Host != "node-a" {
		t.Errorf("Node.Host = %q, want %q", cfg.Node.Host, "node-a")
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}

	if len(cfg.Cluster.Peers) != 2 {
		t.Fatalf("len(Cluster.Peers) = %d, want 2", len(cfg.Cluster.Peers))
	}
	if cfg.Cluster.Peers[0].Host != "node-b" {
		t.Errorf("Peers[0].Host = %q, want %q", cfg.Cluster.Peers[0].Host, "node-b")
	}
	if cfg.Cluster.CallTimeout != 2*time.Second {
		t.Errorf("Cluster.CallTimeout = %v, want 2s", cfg.Cluster.CallTimeout)
	}
	if cfg.Cluster.FanoutTimeout != 4*time.Second {
		t.Errorf("Cluster.FanoutTimeout = %v, want 4s", cfg.Cluster.FanoutTimeout)
	}

	if cfg.Supervision.Policy != "always" {
		t.Errorf("Supervision.Policy = %q, want %q", cfg.Supervision.Policy, "always")
	}
	if got := cfg.Supervision.MaxRestartsValue(); got != 5 {
		t.Errorf("MaxRestartsValue() = %d, want 5", got)
	}
	if cfg.Supervision.RestartDelay != 250*time.Millisecond {
		t.Errorf("Supervision.RestartDelay = %v, want 250ms", cfg.Supervision.RestartDelay)
	}
	if cfg.Supervision.OpTimeout != 10*time.Second {
		t.Errorf("Supervision.OpTimeout = %v, want 10s", cfg.Supervision.OpTimeout)
	}

	if cfg.Database.Path != "./events.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./events.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
node:
  host: "node-a"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr == "" {
		t.Error("Server.HTTPAddr default not applied")
	}
	if cfg.Cluster.CallTimeout != DefaultCallTimeout {
		t.Errorf("Cluster.CallTimeout = %v, want %v", cfg.Cluster.CallTimeout, DefaultCallTimeout)
	}
	if cfg.Cluster.FanoutTimeout != DefaultFanoutTimeout {
		t.Errorf("Cluster.FanoutTimeout = %v, want %v", cfg.Cluster.FanoutTimeout, DefaultFanoutTimeout)
	}
	if cfg.Supervision.Policy != "transient" {
		t.Errorf("Supervision.Policy = %q, want %q", cfg.Supervision.Policy, "transient")
	}
	if got := cfg.Supervision.MaxRestartsValue(); got != DefaultMaxRestarts {
		t.Errorf("MaxRestartsValue() = %d, want %d", got, DefaultMaxRestarts)
	}
	if cfg.Supervision.RestartDelay != DefaultRestartDelay {
		t.Errorf("Supervision.RestartDelay = %v, want %v", cfg.Supervision.RestartDelay, DefaultRestartDelay)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_MaxRestartsZero(t *testing.T) {
	// An explicit zero must survive; it means "never restart twice",
	// not "use the default".
	configPath := writeConfig(t, `
node:
  host: "node-a"
supervision:
  max_restarts: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Supervision.MaxRestartsValue(); got != 0 {
		t.Errorf("MaxRestartsValue() = %d, want 0", got)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CLUSTER_SECRET", "sekrit")

	configPath := writeConfig(t, `
node:
  host: "node-a"
auth:
  cluster_secret: "${TEST_CLUSTER_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.ClusterSecret != "sekrit" {
		t.Errorf("Auth.ClusterSecret = %q, want %q", cfg.Auth.ClusterSecret, "sekrit")
	}
}

func TestLoad_MissingHost(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for missing node.host")
	}
	if !strings.Contains(err.Error(), "host") {
		t.Errorf("error %q does not mention host", err)
	}
}

func TestLoad_InvalidPolicy(t *testing.T) {
	configPath := writeConfig(t, `
node:
  host: "node-a"
supervision:
  policy: "sometimes"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid policy")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
node:
  host: "node-a"
cluster:
  call_timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_PeerMissingURL(t *testing.T) {
	configPath := writeConfig(t, `
node:
  host: "node-a"
cluster:
  peers:
    - host: "node-b"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for peer without url")
	}
}
