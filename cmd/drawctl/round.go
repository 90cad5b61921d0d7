package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/resolver"
)

func roundCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "round", Short: "Bingo round operations"}

	var closeIn time.Duration
	open := &cobra.Command{
		Use:   "open",
		Short: "Open a round (operator)",
		Args:  cobra.NoArgs,
		RunE: signed(core.TxBingoOpen, func([]string) (any, error) {
			return core.BingoOpenPayload{CloseAt: time.Now().Add(closeIn).UnixNano()}, nil
		}),
	}
	open.Flags().DurationVar(&closeIn, "close-in", 10*time.Minute, "time until the round stops accepting entries")

	join := &cobra.Command{
		Use:   "join <round> <count>",
		Short: "Buy cards",
		Args:  cobra.ExactArgs(2),
		RunE: signed(core.TxBingoJoin, func(args []string) (any, error) {
			id, err := parseUint(args[0], 64)
			if err != nil {
				return nil, err
			}
			count, err := parseUint(args[1], 32)
			if err != nil {
				return nil, err
			}
			return core.BingoJoinPayload{RoundID: id, Count: uint32(count)}, nil
		}),
	}

	cmd.AddCommand(
		open,
		join,
		roundTx("close", "Close entries and request randomness (operator)", core.TxBingoClose),
		roundTx("request-randomness", "Retry the randomness request of a closed round (operator)", core.TxBingoRequestRandomness),
		roundTx("cancel", "Cancel an open or closed round (operator)", core.TxBingoCancel),
		roundTx("emergency-cancel", "Cancel a round stuck waiting on the oracle or resolver", core.TxBingoEmergencyCancel),
		roundTx("claim", "Collect deferred prizes and refunds", core.TxBingoClaim),
		resolveCmd(),
		showRoundCmd(),
	)
	return cmd
}

func roundTx(use, short string, typ core.TxType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <round>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: signed(typ, func(args []string) (any, error) {
			id, err := parseUint(args[0], 64)
			if err != nil {
				return nil, err
			}
			return core.RoundPayload{RoundID: id}, nil
		}),
	}
}

func showRoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <round>",
		Short: "Print a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], 64)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			r, err := client().Round(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
}

// resolveCmd evaluates a fulfilled round from its cards and random value,
// signs the outcome with --key as the resolver and submits it.
func resolveCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "resolve <round>",
		Short: "Evaluate, sign and submit a round's winners (resolver)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], 64)
			if err != nil {
				return err
			}
			w, err := loadWallet()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			c := client()
			cfg, err := c.Config(ctx)
			if err != nil {
				return err
			}
			if cfg.Resolver != w.Address() {
				return fmt.Errorf("%s is not the configured resolver %s", w.Address(), cfg.Resolver)
			}
			r, err := c.Round(ctx, id)
			if err != nil {
				return err
			}
			page, err := c.AllCards(ctx, id)
			if err != nil {
				return err
			}
			cards := make([]core.Card, len(page))
			for i, card := range page {
				cards[i] = *card
			}
			res, err := resolver.Outcome(r, cards)
			if err != nil {
				return err
			}
			if err := res.Validate(cfg.Bingo.MaxCoWinners); err != nil {
				return err
			}
			domain := resolver.Domain{ChainID: cfg.ChainID, VerifyingContract: core.EscrowAddress(core.ModuleBingo)}
			sig, err := resolver.Sign(w.Key(), domain, res)
			if err != nil {
				return err
			}
			payload := res.Payload(sig)
			if dryRun {
				return printJSON(payload)
			}
			return submit(cmd, w, core.TxBingoResolve, payload)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the signed payload without submitting")
	return cmd
}
