// Command node starts a drawchain node: block producer, game engine, RPC
// server and (optionally) a development randomness oracle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tolelom/drawchain/config"
	"github.com/tolelom/drawchain/consensus"
	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/indexer"
	"github.com/tolelom/drawchain/oracle"
	"github.com/tolelom/drawchain/rpc"
	"github.com/tolelom/drawchain/storage"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/drawchain/vm/modules/admin"
	_ "github.com/tolelom/drawchain/vm/modules/bingo"
	_ "github.com/tolelom/drawchain/vm/modules/economy"
	_ "github.com/tolelom/drawchain/vm/modules/keno"
	_ "github.com/tolelom/drawchain/vm/modules/randomness"
)

var (
	cfgPath string
	keyPath string
)

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "drawchain node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var genKeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a proposer key and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := wallet.CreateKeyFile(keyPath, password())
		if err != nil {
			return err
		}
		fmt.Printf("Generated key. Address: %s\n", addr)
		fmt.Printf("Saved to: %s\n", keyPath)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists", cfgPath)
		}
		if err := config.Save(config.DefaultConfig(), cfgPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", cfgPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "path to config file (.json or .toml)")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", "proposer.key", "path to keystore file")
	rootCmd.AddCommand(genKeyCmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// password reads the keystore password from the environment (not CLI
// flags, which leak via ps).
func password() string {
	pw := os.Getenv("DRAW_PASSWORD")
	if pw == "" {
		log.Warn("DRAW_PASSWORD not set, keystore will use an empty password")
	}
	return pw
}

func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func run() error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	pw := password()
	privKey, err := wallet.LoadKey(keyPath, pw)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	state := storage.NewStateDB(db)
	// RPC reads through its own view, which only sees committed blocks.
	queryState := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewLevelBlockStore(db))
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.WithField("hash", genesisBlock.Hash).Info("genesis block committed")
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, emitter)
	log.WithField("types", vm.Registered()).Debug("tx handlers registered")
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)
	if !poa.IsProposer() {
		log.WithFields(log.Fields{"key": poa.Address(), "proposer": cfg.Proposer}).
			Warn("local key is not the configured proposer, no blocks will be produced")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup

	// ---- development oracle ----
	if cfg.OracleKeyPath != "" {
		oracleKey, err := wallet.LoadKey(cfg.OracleKeyPath, pw)
		if err != nil {
			return fmt.Errorf("load oracle key: %w", err)
		}
		acc, err := state.GetAccount(oracleKey.Address())
		if err != nil {
			return fmt.Errorf("oracle account: %w", err)
		}
		svc := oracle.NewService(oracleKey, cfg.Genesis.ChainID, acc.Nonce, mempool)
		svc.Attach(emitter)
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Run(ctx)
		}()
		log.WithField("address", svc.Address()).Info("randomness oracle running")
	}

	// ---- RPC ----
	rpcServer := rpc.NewServer(cfg.RPCAddr, rpc.NewHandler(bc, mempool, queryState, idx, cfg.Genesis.ChainID), cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	log.WithFields(log.Fields{"addr": cfg.RPCAddr, "auth": cfg.RPCAuthToken != ""}).Info("RPC listening")

	// ---- block production ----
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(ctx, cfg.BlockInterval())
	}()
	log.WithFields(log.Fields{"proposer": poa.Address(), "interval": cfg.BlockInterval()}).Info("block production running")

	<-ctx.Done()
	log.Info("shutting down")
	// Stop block production before the DB closes.
	wg.Wait()
	if err := rpcServer.Stop(); err != nil {
		log.Errorf("rpc stop: %v", err)
	}
	log.Info("shutdown complete")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("config file not found at %s, using defaults", path)
		return config.DefaultConfig(), nil
	}
	return cfg, err
}
