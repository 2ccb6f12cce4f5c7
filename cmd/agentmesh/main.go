// ABOUTME: Entry point for the agentmesh node server
// ABOUTME: Supervises local agents and federates lookups across the cluster

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/lyndonkl/agentmesh/internal/config"
	"github.com/lyndonkl/agentmesh/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                            _                       _
  __ _  __ _  ___ _ __ | |_ _ __ ___   ___  ___| |__
 / _' |/ _' |/ _ \ '_ \| __| '_ ' _ \ / _ \/ __| '_ \
| (_| | (_| |  __/ | | | |_| | | | | |  __/\__ \ | | |
 \__,_|\__, |\___|_| |_|\__|_| |_| |_|\___||___/_| |_|
       |___/
`

// getConfigPath returns the path to the node config file.
// Priority: AGENTMESH_CONFIG env var > XDG_CONFIG_HOME/agentmesh/node.yaml > ~/.config/agentmesh/node.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AGENTMESH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "node.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "agentmesh", "node.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: agentmesh <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the node server")
		fmt.Println("  health   Check node health")
		fmt.Println("  status   Show supervisor status")
		fmt.Println("  agents   List agents across the cluster")
		fmt.Println("  events   Show recent supervision events")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runGet(ctx, "/healthz")
	case "status":
		err = runGet(ctx, "/status")
	case "agents":
		err = runGet(ctx, "/api/agents")
	case "events":
		err = runGet(ctx, "/api/events")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Host:    %s\n", cfg.Node.Host)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	if len(cfg.Cluster.Peers) > 0 {
		green.Print("    ▶ ")
		fmt.Printf("Peers:   ")
		names := make([]string, 0, len(cfg.Cluster.Peers))
		for _, p := range cfg.Cluster.Peers {
			names = append(names, p.Host)
		}
		cyan.Print(strings.Join(names, ", "))
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting agentmesh node",
		"config", configPath,
		"host", cfg.Node.Host,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Create and run node
	node, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	return node.Run(ctx)
}

// runGet fetches a node endpoint and prints the response body.
func runGet(ctx context.Context, path string) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
