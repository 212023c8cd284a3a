package node

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"
)

// NodeConfig holds the full configuration for a Kratos node, parsed from a
// YAML configuration file. It is separate from Config to support richer
// structured configuration with nested sections; New takes a Config, which
// ToConfig produces from a NodeConfig.
// Grounded on the teacher's hand-rolled TOML-like NodeConfig/LoadConfig
// split, generalized to gopkg.in/yaml.v2 (already the wire format for
// chain/genesis.go's manifest, so node config speaks the same language
// rather than inventing a second ad hoc parser).
type NodeConfig struct {
	DataDir     string `yaml:"datadir"`
	GenesisPath string `yaml:"genesis_path"`

	P2P        P2PConfig        `yaml:"p2p"`
	RPC        RPCConfig        `yaml:"rpc"`
	Validator  ValidatorConfig  `yaml:"validator"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// MetricsConfig holds Prometheus /metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// P2PConfig holds peer networking configuration.
type P2PConfig struct {
	Port           int      `yaml:"port"`
	MaxPeers       int      `yaml:"max_peers"`
	BootstrapNodes []string `yaml:"bootstrap_nodes"`
}

// RPCConfig holds JSON-RPC server configuration.
type RPCConfig struct {
	Enabled bool     `yaml:"enabled"`
	Host    string   `yaml:"host"`
	Port    int      `yaml:"port"`
	APIs    []string `yaml:"apis"`
}

// ValidatorConfig holds block-authoring configuration: whether this node
// signs blocks, and where its signing key lives.
type ValidatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	KeyPath string `yaml:"key_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultNodeConfig returns a NodeConfig with sensible defaults.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		DataDir:     defaultDataDir(),
		GenesisPath: "genesis.yaml",
		P2P: P2PConfig{
			Port:     30303,
			MaxPeers: 50,
		},
		RPC: RPCConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8545,
			APIs:    []string{"chain", "state", "author", "finality", "validator", "system"},
		},
		Validator: ValidatorConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9100,
		},
	}
}

// ValidateNodeConfig checks the configuration for correctness.
func (nc *NodeConfig) ValidateNodeConfig() error {
	if nc.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if nc.GenesisPath == "" {
		return errors.New("config: genesis_path must not be empty")
	}

	if nc.P2P.Port < 0 || nc.P2P.Port > 65535 {
		return fmt.Errorf("config: invalid p2p port: %d", nc.P2P.Port)
	}
	if nc.P2P.MaxPeers < 0 {
		return fmt.Errorf("config: invalid max_peers: %d", nc.P2P.MaxPeers)
	}

	if nc.RPC.Port < 0 || nc.RPC.Port > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", nc.RPC.Port)
	}
	if nc.RPC.Enabled && nc.RPC.Host == "" {
		return errors.New("config: rpc host must not be empty when rpc is enabled")
	}

	if nc.Metrics.Port < 0 || nc.Metrics.Port > 65535 {
		return fmt.Errorf("config: invalid metrics port: %d", nc.Metrics.Port)
	}

	if nc.Validator.Enabled && nc.Validator.KeyPath == "" {
		return errors.New("config: validator.key_path must be set when validator is enabled")
	}

	switch nc.Log.Level {
	case "debug", "info", "warn", "error", "trace":
	default:
		return fmt.Errorf("config: unknown log level %q", nc.Log.Level)
	}
	switch nc.Log.Format {
	case "text", "json", "color":
	default:
		return fmt.Errorf("config: unknown log format %q", nc.Log.Format)
	}

	return nil
}

// LoadConfig parses a YAML configuration document into a NodeConfig,
// starting from DefaultNodeConfig so an override file need only set the
// fields it cares about.
func LoadConfig(data []byte) (*NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return cfg, nil
}

// MergeNodeConfig merges an override config onto a base config.
// Non-zero/non-empty values from override take priority over base, with
// two exceptions: RPC.Enabled is always kept from base, and
// Validator.Enabled is taken from override only when override sets
// Validator.KeyPath.
func MergeNodeConfig(base, override *NodeConfig) *NodeConfig {
	result := *base

	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}
	if override.GenesisPath != "" {
		result.GenesisPath = override.GenesisPath
	}

	if override.P2P.Port != 0 {
		result.P2P.Port = override.P2P.Port
	}
	if override.P2P.MaxPeers != 0 {
		result.P2P.MaxPeers = override.P2P.MaxPeers
	}
	if len(override.P2P.BootstrapNodes) > 0 {
		result.P2P.BootstrapNodes = override.P2P.BootstrapNodes
	}

	if override.RPC.Host != "" {
		result.RPC.Host = override.RPC.Host
	}
	if override.RPC.Port != 0 {
		result.RPC.Port = override.RPC.Port
	}
	if len(override.RPC.APIs) > 0 {
		result.RPC.APIs = override.RPC.APIs
	}

	if override.Validator.KeyPath != "" {
		result.Validator.KeyPath = override.Validator.KeyPath
		result.Validator.Enabled = override.Validator.Enabled
	}

	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		result.Log.Format = override.Log.Format
	}

	if override.Metrics.Port != 0 {
		result.Metrics.Port = override.Metrics.Port
	}
	if override.Metrics.Enabled {
		result.Metrics.Enabled = override.Metrics.Enabled
	}

	return &result
}

// ToConfig flattens a NodeConfig into the simpler top-level Config used by
// Node construction.
func (nc *NodeConfig) ToConfig(name string) Config {
	return Config{
		DataDir:          nc.DataDir,
		Name:             name,
		GenesisPath:      nc.GenesisPath,
		P2PPort:          nc.P2P.Port,
		RPCPort:          nc.RPC.Port,
		MaxPeers:         nc.P2P.MaxPeers,
		LogLevel:         nc.Log.Level,
		LogFormat:        nc.Log.Format,
		Verbosity:        3,
		ValidatorKeyPath: nc.Validator.KeyPath,
		Metrics:          nc.Metrics.Enabled,
		MetricsPort:      nc.Metrics.Port,
	}
}
