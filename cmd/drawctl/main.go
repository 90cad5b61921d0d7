// Command drawctl is the operator and player CLI for a drawchain node.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/rpc"
	"github.com/tolelom/drawchain/wallet"
)

var opts struct {
	rpcURL  string
	token   string
	keyPath string
	chainID string
	fee     uint64
	wait    bool
	timeout time.Duration
}

var rootCmd = &cobra.Command{
	Use:           "drawctl",
	Short:         "drawchain client tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.rpcURL, "rpc", "http://localhost:8545", "node JSON-RPC URL")
	f.StringVar(&opts.token, "token", os.Getenv("DRAW_RPC_TOKEN"), "RPC bearer token")
	f.StringVar(&opts.keyPath, "key", "wallet.key", "keystore file used to sign")
	f.StringVar(&opts.chainID, "chain-id", "drawchain-dev", "chain id transactions are bound to")
	f.Uint64Var(&opts.fee, "fee", 0, "transaction fee")
	f.BoolVar(&opts.wait, "wait", true, "wait for the transaction receipt")
	f.DurationVar(&opts.timeout, "timeout", time.Minute, "request timeout")

	rootCmd.AddCommand(keygenCmd(), addressCmd(), balanceCmd(), sendCmd(), roundCmd(), kenoCmd(), adminCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func client() *rpc.Client { return rpc.NewClient(opts.rpcURL, opts.token) }

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), opts.timeout)
}

func loadWallet() (*wallet.Wallet, error) {
	return wallet.Open(opts.keyPath, os.Getenv("DRAW_PASSWORD"), opts.chainID)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// submit signs payload with the local key at the account's current nonce
// and sends it, optionally waiting for the receipt.
func submit(cmd *cobra.Command, w *wallet.Wallet, typ core.TxType, payload any) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c := client()
	acc, err := c.Account(ctx, w.Address())
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	tx, err := w.Sign(typ, acc.Nonce, opts.fee, payload)
	if err != nil {
		return err
	}
	id, err := c.SendTx(ctx, tx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"tx": id, "type": typ}).Info("submitted")
	if !opts.wait {
		fmt.Println(id)
		return nil
	}
	rec, err := c.WaitReceipt(ctx, id, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("wait receipt: %w", err)
	}
	if err := printJSON(rec); err != nil {
		return err
	}
	if !rec.Success {
		return fmt.Errorf("%s failed (%s): %s", typ, rec.Category, rec.Error)
	}
	return nil
}

// signed wraps a command body that submits a transaction from the local key.
func signed(typ core.TxType, build func(args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		payload, err := build(args)
		if err != nil {
			return err
		}
		w, err := loadWallet()
		if err != nil {
			return err
		}
		return submit(cmd, w, typ, payload)
	}
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key into --key, encrypted with DRAW_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := wallet.CreateKeyFile(opts.keyPath, os.Getenv("DRAW_PASSWORD"))
			if err != nil {
				return err
			}
			fmt.Println(addr)
			return nil
		},
	}
}

func addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of --key",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := loadWallet()
			if err != nil {
				return err
			}
			fmt.Println(w.Address())
			return nil
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show an account (default: --key)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var addr string
			if len(args) == 1 {
				addr = args[0]
			} else {
				w, err := loadWallet()
				if err != nil {
					return err
				}
				addr = w.Address()
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			acc, err := client().Account(ctx, addr)
			if err != nil {
				return err
			}
			return printJSON(acc)
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <to> <amount>",
		Short: "Transfer funds",
		Args:  cobra.ExactArgs(2),
		RunE: signed(core.TxTransfer, func(args []string) (any, error) {
			amount, err := parseUint(args[1], 64)
			if err != nil {
				return nil, err
			}
			return core.TransferPayload{To: args[0], Amount: amount}, nil
		}),
	}
}
