// Package node implements the Kratos full node lifecycle, wiring together
// the chain engine, mempool, sync, governance, and RPC subsystems.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all configuration for a Kratos node.
type Config struct {
	// DataDir is the root directory for all data storage.
	DataDir string

	// Name is a human-readable node identifier (used in logs).
	Name string

	// GenesisPath points at the genesis manifest YAML file (chain/genesis.go).
	GenesisPath string

	// P2PPort is the TCP port for peer connections.
	P2PPort int

	// RPCPort is the HTTP port for the JSON-RPC server.
	RPCPort int

	// MaxPeers is the maximum number of peer connections.
	MaxPeers int

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string

	// LogFormat selects the log output renderer: "json" (default, for log
	// aggregators), "text", or "color" (for an interactive terminal).
	LogFormat string

	// Verbosity is a numeric log level (0=silent, 1=error, 2=warn,
	// 3=info, 4=debug, 5=trace), range-checked by Validate and convertible
	// with VerbosityToLogLevel. New does not read it: the log level is
	// taken from LogLevel.
	Verbosity int

	// Metrics enables the Prometheus /metrics HTTP endpoint.
	Metrics bool

	// MetricsPort is the HTTP port the /metrics endpoint listens on, when
	// Metrics is enabled.
	MetricsPort int

	// ValidatorKeyPath optionally points at a signing key file, present
	// only on nodes that author blocks.
	ValidatorKeyPath string
}

// defaultDataDir returns the platform-specific default data directory.
// Falls back to ".kratos" in the current directory if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kratos"
	}
	return filepath.Join(home, ".kratos")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:     defaultDataDir(),
		Name:        "kratos",
		GenesisPath: "genesis.yaml",
		P2PPort:     30303,
		RPCPort:     8545,
		MaxPeers:    50,
		LogLevel:    "info",
		LogFormat:   "json",
		Verbosity:   3,
		Metrics:     false,
		MetricsPort: 9100,
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if c.GenesisPath == "" {
		return errors.New("config: genesis path must not be empty")
	}
	if c.P2PPort < 0 || c.P2PPort > 65535 {
		return fmt.Errorf("config: invalid p2p port: %d", c.P2PPort)
	}
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", c.RPCPort)
	}
	if c.MaxPeers < 0 {
		return fmt.Errorf("config: invalid max peers: %d", c.MaxPeers)
	}
	if c.Metrics && (c.MetricsPort < 0 || c.MetricsPort > 65535) {
		return fmt.Errorf("config: invalid metrics port: %d", c.MetricsPort)
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		return fmt.Errorf("config: verbosity must be 0-5, got %d", c.Verbosity)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "json", "text", "color":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// VerbosityToLogLevel converts a numeric verbosity level to a log level string.
func VerbosityToLogLevel(v int) string {
	switch {
	case v <= 0:
		return "error" // silent maps to error-only
	case v == 1:
		return "error"
	case v == 2:
		return "warn"
	case v == 3:
		return "info"
	default:
		return "debug" // 4 and 5 both map to debug
	}
}

// dataDirSubdirs lists subdirectories created inside the data directory.
var dataDirSubdirs = []string{
	"chaindata",
	"keystore",
	"nodes",
}

// InitDataDir creates the data directory and its standard subdirectories
// if they do not already exist. Returns an error if directory creation fails.
func (c *Config) InitDataDir() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}

	// Create the root data directory.
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("config: create datadir: %w", err)
	}

	// Create standard subdirectories.
	for _, sub := range dataDirSubdirs {
		dir := filepath.Join(c.DataDir, sub)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("config: create %s: %w", sub, err)
		}
	}
	return nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// P2PAddr returns the P2P listen address string.
func (c *Config) P2PAddr() string {
	return fmt.Sprintf(":%d", c.P2PPort)
}

// RPCAddr returns the RPC listen address string.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.RPCPort)
}

// MetricsAddr returns the /metrics listen address string.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.MetricsPort)
}
