package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tolelom/drawchain/core"
)

func kenoCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keno", Short: "Keno operations"}

	var numbers string
	var amount uint64
	bet := &cobra.Command{
		Use:   "bet",
		Short: "Place a bet",
		Args:  cobra.NoArgs,
		RunE: signed(core.TxKenoPlaceBet, func([]string) (any, error) {
			var picks []int
			for _, f := range strings.Split(numbers, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(f))
				if err != nil {
					return nil, err
				}
				picks = append(picks, n)
			}
			return core.KenoPlaceBetPayload{Numbers: picks, Amount: amount}, nil
		}),
	}
	bet.Flags().StringVar(&numbers, "numbers", "", "comma-separated picks in 1..80")
	bet.Flags().Uint64Var(&amount, "amount", 0, "stake")
	_ = bet.MarkFlagRequired("numbers")
	_ = bet.MarkFlagRequired("amount")

	show := &cobra.Command{
		Use:   "show <bet>",
		Short: "Print a bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], 64)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			b, err := client().KenoBet(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(b)
		},
	}

	cmd.AddCommand(
		bet,
		betTx("retry", "Retry an unpaid payout", core.TxKenoRetryPayout),
		betTx("cancel", "Refund a bet whose draw timed out", core.TxKenoCancelBet),
		show,
	)
	return cmd
}

func betTx(use, short string, typ core.TxType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <bet>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: signed(typ, func(args []string) (any, error) {
			id, err := parseUint(args[0], 64)
			if err != nil {
				return nil, err
			}
			return core.KenoBetPayload{BetID: id}, nil
		}),
	}
}
