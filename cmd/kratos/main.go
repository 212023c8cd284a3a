// Command kratos is the entry point for the Kratos proof-of-stake node.
//
// Usage:
//
//	kratos run [flags]      start the node
//	kratos key generate     create a new ed25519 key pair
//	kratos key inspect FILE  print the account id for a persisted key
//	kratos info              print resolved genesis/chain info
//	kratos purge             remove chain data from the data directory
//	kratos export            dump the genesis block and accounts
//
// `run`'s flags (--genesis, --validator, --port, --rpc-port, --base-path,
// --bootnodes, ...) are parsed by the hand-rolled flagSet in flags.go,
// binding straight into a node.NodeConfig. The remaining subcommands are
// ordinary urfave/cli/v2 commands.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kratoschain/kratos/chain"
	"github.com/kratoschain/kratos/consensus"
	"github.com/kratoschain/kratos/core/types"
	"github.com/kratoschain/kratos/crypto"
	"github.com/kratoschain/kratos/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := newApp()
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "kratos",
		Usage:   "a proof-of-stake blockchain node",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Commands: []*cli.Command{
			runCommand(),
			keyCommand(),
			infoCommand(),
			purgeCommand(),
			exportCommand(),
		},
	}
}

// runCommand starts the node. Its flags bypass cli/v2's flag parser
// (SkipFlagParsing) in favor of flags.go's hand-rolled flagSet, which binds
// directly into a node.NodeConfig.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:            "run",
		Usage:           "start the node",
		SkipFlagParsing: true,
		Action: func(ctx *cli.Context) error {
			cfg := node.DefaultNodeConfig()
			fs := newRunFlagSet(cfg)
			if err := fs.Parse(ctx.Args().Slice()); err != nil {
				return err
			}
			if cfg.Validator.KeyPath != "" {
				cfg.Validator.Enabled = true
			}
			if err := cfg.ValidateNodeConfig(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runNode(cfg)
		},
	}
}

func runNode(cfg *node.NodeConfig) error {
	nodeCfg := cfg.ToConfig("kratos")
	nodeCfg.LogLevel = cfg.Log.Level
	nodeCfg.LogFormat = cfg.Log.Format

	n, err := node.New(&nodeCfg)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := n.Stop(); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	return nil
}

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "manage validator signing keys",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "create a new ed25519 key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "file to write the 32-byte seed to (0600)", Required: true},
				},
				Action: func(ctx *cli.Context) error {
					kp, err := crypto.GenerateKeyPair()
					if err != nil {
						return err
					}
					out := ctx.String("out")
					if err := os.MkdirAll(filepath.Dir(out), 0700); err != nil {
						return fmt.Errorf("create key directory: %w", err)
					}
					if err := os.WriteFile(out, kp.Private.Seed(), 0600); err != nil {
						return fmt.Errorf("write key: %w", err)
					}
					fmt.Printf("account id: %s\n", kp.AccountID().Hex())
					fmt.Printf("key written: %s\n", out)
					return nil
				},
			},
			{
				Name:      "inspect",
				Usage:     "print the account id for a persisted key",
				ArgsUsage: "FILE",
				Action: func(ctx *cli.Context) error {
					path := ctx.Args().First()
					if path == "" {
						return fmt.Errorf("usage: kratos key inspect FILE")
					}
					seed, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read key: %w", err)
					}
					kp, err := crypto.KeyPairFromSeed(seed)
					if err != nil {
						return err
					}
					fmt.Printf("account id: %s\n", kp.AccountID().Hex())
					return nil
				},
			},
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "print resolved genesis and chain configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "genesis", Value: "genesis.yaml", Usage: "genesis manifest path"},
		},
		Action: func(ctx *cli.Context) error {
			manifest, genesis, cfg, err := loadGenesisInfo(ctx.String("genesis"))
			if err != nil {
				return err
			}
			fmt.Printf("chain id:         %d\n", cfg.ChainID)
			fmt.Printf("seconds per slot: %d\n", cfg.SecondsPerSlot)
			fmt.Printf("slots per epoch:  %d\n", cfg.SlotsPerEpoch)
			fmt.Printf("bootstrap epochs: %d\n", cfg.BootstrapEpochs)
			fmt.Printf("genesis accounts:    %d\n", len(manifest.Accounts))
			fmt.Printf("genesis validators:  %d\n", len(manifest.Validators))
			fmt.Printf("genesis state root: 0x%s\n", hex.EncodeToString(genesis.Header.StateRoot[:]))
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "dump the genesis block and accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "genesis", Value: "genesis.yaml", Usage: "genesis manifest path"},
		},
		Action: func(ctx *cli.Context) error {
			manifest, genesis, _, err := loadGenesisInfo(ctx.String("genesis"))
			if err != nil {
				return err
			}
			fmt.Printf("# genesis block\n")
			fmt.Printf("number:     %d\n", genesis.Header.Number)
			fmt.Printf("timestamp:  %d\n", genesis.Header.Timestamp)
			fmt.Printf("state root: 0x%s\n", hex.EncodeToString(genesis.Header.StateRoot[:]))
			fmt.Printf("\n# accounts (%d)\n", len(manifest.Accounts))
			for _, a := range manifest.Accounts {
				fmt.Printf("%s  %d KRAT\n", a.Address, a.Balance)
			}
			fmt.Printf("\n# validators (%d)\n", len(manifest.Validators))
			for _, v := range manifest.Validators {
				fmt.Printf("%s  %d KRAT staked\n", v.Address, v.Stake)
			}
			return nil
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "remove chain data from the data directory, keeping the keystore",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-path", Value: node.DefaultConfig().DataDir, Usage: "data directory path"},
			&cli.BoolFlag{Name: "force", Usage: "skip the confirmation prompt"},
		},
		Action: func(ctx *cli.Context) error {
			dataDir := ctx.String("base-path")
			if !ctx.Bool("force") {
				fmt.Printf("this will remove chain data under %s, keeping the keystore. continue? [y/N] ", dataDir)
				var answer string
				fmt.Scanln(&answer)
				if answer != "y" && answer != "Y" {
					fmt.Println("aborted")
					return nil
				}
			}
			for _, sub := range []string{"chaindata", "nodes"} {
				if err := os.RemoveAll(filepath.Join(dataDir, sub)); err != nil {
					return fmt.Errorf("purge %s: %w", sub, err)
				}
			}
			fmt.Println("chain data purged")
			return nil
		},
	}
}

// loadGenesisInfo loads the manifest at path and builds its genesis block
// against the default consensus parameters, merged with any manifest
// overrides (chain_id, slot timing), for the info/export commands.
func loadGenesisInfo(path string) (*chain.Manifest, types.Block, consensus.Config, error) {
	manifest, err := chain.LoadManifest(path)
	if err != nil {
		return nil, types.Block{}, consensus.Config{}, fmt.Errorf("load genesis manifest: %w", err)
	}

	cfg := consensus.DefaultConfig()
	if manifest.ChainID != 0 {
		cfg.ChainID = manifest.ChainID
	}
	if manifest.SecondsPerSlot != 0 {
		cfg.SecondsPerSlot = manifest.SecondsPerSlot
	}
	if manifest.SlotsPerEpoch != 0 {
		cfg.SlotsPerEpoch = manifest.SlotsPerEpoch
	}

	genesis, _, _, err := manifest.Build(cfg)
	if err != nil {
		return nil, types.Block{}, consensus.Config{}, fmt.Errorf("build genesis: %w", err)
	}
	return manifest, genesis, cfg, nil
}

