package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/kratoschain/kratos/node"
)

// flagSet wraps flag.FlagSet to add support for uint64 and comma-separated
// string-list flags, which the standard flag package lacks.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior.
func newCustomFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &flagSet{FlagSet: fs}
}

// Uint64Var defines a uint64 flag. Go's standard flag package lacks uint64
// support, so we use a custom Value implementation.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

// StringListVar defines a flag that accepts a comma-separated list.
func (fs *flagSet) StringListVar(p *[]string, name, value, usage string) {
	fs.FlagSet.Var(&stringListValue{p: p}, name, usage)
	if value != "" {
		*p = splitCommaList(value)
	}
}

// Bool wraps flag.FlagSet.Bool.
func (fs *flagSet) Bool(name string, value bool, usage string) *bool {
	return fs.FlagSet.Bool(name, value, usage)
}

// uint64Value implements flag.Value for uint64 flags.
type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

// stringListValue implements flag.Value for comma-separated lists.
type stringListValue struct {
	p *[]string
}

func (v *stringListValue) String() string {
	if v.p == nil {
		return ""
	}
	return strings.Join(*v.p, ",")
}

func (v *stringListValue) Set(s string) error {
	*v.p = splitCommaList(s)
	return nil
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// newRunFlagSet creates the flag.FlagSet backing the `kratos run` surface,
// binding --genesis/--validator/--port/--rpc-port/--base-path/--bootnodes
// directly into a node.NodeConfig (the same struct node/config_loader.go
// reads from YAML) rather than duplicating its schema. There is no --config
// flag: the flags are applied on top of the config passed in.
func newRunFlagSet(cfg *node.NodeConfig) *flagSet {
	fs := newCustomFlagSet("run")
	fs.StringVar(&cfg.DataDir, "base-path", cfg.DataDir, "data directory path")
	fs.StringVar(&cfg.GenesisPath, "genesis", cfg.GenesisPath, "genesis manifest path")
	fs.StringVar(&cfg.Validator.KeyPath, "validator", cfg.Validator.KeyPath, "validator signing key path (enables block authoring)")
	fs.IntVar(&cfg.P2P.Port, "port", cfg.P2P.Port, "P2P listening port")
	fs.IntVar(&cfg.RPC.Port, "rpc-port", cfg.RPC.Port, "JSON-RPC server port")
	fs.StringListVar(&cfg.P2P.BootstrapNodes, "bootnodes", strings.Join(cfg.P2P.BootstrapNodes, ","), "comma-separated list of bootstrap peer addresses")
	fs.IntVar(&cfg.P2P.MaxPeers, "maxpeers", cfg.P2P.MaxPeers, "maximum number of P2P peers")
	fs.StringVar(&cfg.Log.Level, "verbosity", cfg.Log.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log output format (json, text, color)")
	fs.BoolVar(&cfg.Metrics.Enabled, "metrics", cfg.Metrics.Enabled, "enable the Prometheus /metrics endpoint")
	fs.IntVar(&cfg.Metrics.Port, "metrics-port", cfg.Metrics.Port, "Prometheus /metrics listening port")
	return fs
}
