package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tolelom/drawchain/core"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Owner configuration operations"}

	var roles core.SetRolesPayload
	setRoles := &cobra.Command{
		Use:   "set-roles",
		Short: "Assign operator, resolver or oracle",
		Args:  cobra.NoArgs,
		RunE: signed(core.TxAdminSetRoles, func([]string) (any, error) {
			if roles == (core.SetRolesPayload{}) {
				return nil, fmt.Errorf("set at least one of --operator, --resolver, --oracle")
			}
			return roles, nil
		}),
	}
	setRoles.Flags().StringVar(&roles.Operator, "operator", "", "operator address")
	setRoles.Flags().StringVar(&roles.Resolver, "resolver", "", "resolver address")
	setRoles.Flags().StringVar(&roles.Oracle, "oracle", "", "oracle address")

	var fees core.SetFeesPayload
	setFees := &cobra.Command{
		Use:   "set-fees",
		Short: "Change the revenue split for future rounds",
		Args:  cobra.NoArgs,
		RunE:  signed(core.TxAdminSetFees, func([]string) (any, error) { return fees, nil }),
	}
	setFees.Flags().Uint64Var(&fees.FeeBps, "fee-bps", 0, "operator fee")
	setFees.Flags().Uint64Var(&fees.ReserveBps, "reserve-bps", 0, "jackpot reserve")
	setFees.Flags().Uint64Var(&fees.LineBps, "line-bps", 0, "line share of the pot")
	setFees.Flags().Uint64Var(&fees.BingoBps, "bingo-bps", 0, "bingo share of the pot")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "pause",
			Short: "Stop admitting rounds, cards and bets",
			Args:  cobra.NoArgs,
			RunE:  signed(core.TxAdminSetPause, func([]string) (any, error) { return core.SetPausePayload{Paused: true}, nil }),
		},
		&cobra.Command{
			Use:   "unpause",
			Short: "Resume admission",
			Args:  cobra.NoArgs,
			RunE:  signed(core.TxAdminSetPause, func([]string) (any, error) { return core.SetPausePayload{Paused: false}, nil }),
		},
		setRoles,
		setFees,
		&cobra.Command{
			Use:   "set-entry-price <price>",
			Short: "Change the card price for future rounds",
			Args:  cobra.ExactArgs(1),
			RunE: signed(core.TxAdminSetEntryPrice, func(args []string) (any, error) {
				price, err := parseUint(args[0], 64)
				return core.SetEntryPricePayload{Price: price}, err
			}),
		},
		withdrawCmd("withdraw-fees", "Withdraw accrued bingo fees", core.TxAdminWithdrawFees),
		withdrawCmd("keno-withdraw", "Withdraw free keno bankroll", core.TxKenoWithdraw),
		&cobra.Command{
			Use:   "freeze <address> <true|false>",
			Short: "Freeze or unfreeze an account's incoming payouts",
			Args:  cobra.ExactArgs(2),
			RunE: signed(core.TxAdminFreezeAccount, func(args []string) (any, error) {
				frozen, err := strconv.ParseBool(args[1])
				return core.FreezeAccountPayload{Address: args[0], Frozen: frozen}, err
			}),
		},
		&cobra.Command{
			Use:   "transfer-ownership <address>",
			Short: "Hand the owner role to another identity",
			Args:  cobra.ExactArgs(1),
			RunE: signed(core.TxAdminTransferOwnership, func(args []string) (any, error) {
				return core.TransferOwnershipPayload{NewOwner: args[0]}, nil
			}),
		},
		&cobra.Command{
			Use:   "stage-row <spots> <m0,m1,...>",
			Short: "Stage one keno payout row (multipliers scaled by 10000)",
			Args:  cobra.ExactArgs(2),
			RunE: signed(core.TxKenoStageRow, func(args []string) (any, error) {
				spots, err := parseUint(args[0], 8)
				if err != nil {
					return nil, err
				}
				var mults []uint64
				for _, f := range strings.Split(args[1], ",") {
					m, err := parseUint(strings.TrimSpace(f), 64)
					if err != nil {
						return nil, err
					}
					mults = append(mults, m)
				}
				return core.KenoStageRowPayload{Spots: uint8(spots), Multipliers: mults}, nil
			}),
		},
		&cobra.Command{
			Use:   "commit-table",
			Short: "Activate the staged keno payout table",
			Args:  cobra.NoArgs,
			RunE:  signed(core.TxKenoCommitTable, func([]string) (any, error) { return struct{}{}, nil }),
		},
		&cobra.Command{
			Use:   "raw <tx-type> <json-payload>",
			Short: "Submit any transaction type with a literal JSON payload",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("payload is not valid JSON")
				}
				return signed(core.TxType(args[0]), func([]string) (any, error) {
					return json.RawMessage(args[1]), nil
				})(cmd, args)
			},
		},
	)
	return cmd
}

func withdrawCmd(use, short string, typ core.TxType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <to> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: signed(typ, func(args []string) (any, error) {
			amount, err := parseUint(args[1], 64)
			return core.WithdrawPayload{To: args[0], Amount: amount}, err
		}),
	}
}
