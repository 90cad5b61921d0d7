// Package admin implements the owner-only configuration surface. Every
// change bumps GameConfig.Version; rounds already open keep the snapshot
// they were created with.
package admin

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
)

const guardKey = "admin"

func init() {
	register(core.TxAdminSetEntryPrice, setEntryPrice)
	register(core.TxAdminSetFees, setFees)
	register(core.TxAdminSetRoles, setRoles)
	register(core.TxAdminSetPause, setPause)
	register(core.TxAdminSetRandomness, setRandomness)
	register(core.TxAdminSetLimits, setLimits)
	register(core.TxAdminSetKenoParams, setKenoParams)
	register(core.TxAdminTransferOwnership, transferOwnership)
	vm.Register(core.TxAdminWithdrawFees, vm.NonReentrant(core.ModuleBingo, ownerOnly(withdrawFees)))
	vm.Register(core.TxAdminFreezeAccount, vm.NonReentrant(guardKey, ownerOnly(freezeAccount)))
}

// configChange edits cfg in place. The wrapper persists it.
type configChange func(ctx *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error

func register(typ core.TxType, change configChange) {
	vm.Register(typ, vm.NonReentrant(guardKey, func(ctx *vm.Context, payload json.RawMessage) error {
		cfg, err := RequireOwner(ctx)
		if err != nil {
			return err
		}
		if err := change(ctx, cfg, payload); err != nil {
			return err
		}
		cfg.Version++
		cfg.UpdatedAt = ctx.Now()
		if err := ctx.State.SetGameConfig(cfg); err != nil {
			return err
		}
		ctx.Emit(events.EventConfigChanged, map[string]any{"change": string(ctx.Tx.Type), "version": cfg.Version})
		return nil
	}))
}

func ownerOnly(h vm.Handler) vm.Handler {
	return func(ctx *vm.Context, payload json.RawMessage) error {
		if _, err := RequireOwner(ctx); err != nil {
			return err
		}
		return h(ctx, payload)
	}
}

// RequireOwner loads the configuration and checks the sender owns it.
func RequireOwner(ctx *vm.Context) (*core.GameConfig, error) {
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return nil, err
	}
	if crypto.IsZeroAddress(cfg.Owner) || ctx.Sender() != cfg.Owner {
		return nil, fmt.Errorf("%s is not the owner: %w", ctx.Sender(), core.ErrUnauthorized)
	}
	return cfg, nil
}

func identity(role, addr string) (string, error) {
	if crypto.IsZeroAddress(addr) {
		return "", fmt.Errorf("%s must not be the null identity: %w", role, core.ErrInvalid)
	}
	norm, err := crypto.NormalizeAddress(addr)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", role, err, core.ErrInvalid)
	}
	return norm, nil
}

func setEntryPrice(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.SetEntryPricePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if p.Price == 0 {
		return fmt.Errorf("entry price must be > 0: %w", core.ErrInvalid)
	}
	cfg.Bingo.EntryPrice = p.Price
	return nil
}

func setFees(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.SetFeesPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	next := cfg.Bingo
	next.FeeBps, next.ReserveBps, next.LineBps, next.BingoBps = p.FeeBps, p.ReserveBps, p.LineBps, p.BingoBps
	if err := next.ValidateSplit(); err != nil {
		return err
	}
	cfg.Bingo = next
	return nil
}

func setRoles(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.SetRolesPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if p.Operator == "" && p.Resolver == "" && p.Oracle == "" {
		return fmt.Errorf("no role given: %w", core.ErrInvalid)
	}
	roles := []struct {
		name string
		in   string
		dst  *string
	}{
		{"operator", p.Operator, &cfg.Operator},
		{"resolver", p.Resolver, &cfg.Resolver},
		{"oracle", p.Oracle, &cfg.Oracle},
	}
	for _, r := range roles {
		if r.in == "" {
			continue
		}
		addr, err := identity(r.name, r.in)
		if err != nil {
			return err
		}
		*r.dst = addr
	}
	return nil
}

func setPause(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.SetPausePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	cfg.Paused = p.Paused
	return nil
}

func setRandomness(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.RandomnessParams
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	cfg.Randomness = p
	return nil
}

func setLimits(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.SetLimitsPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	next := cfg.Bingo
	next.JackpotBallLimit = p.JackpotBallLimit
	next.MaxOpenRounds = p.MaxOpenRounds
	next.MinCardsPerJoin = p.MinCardsPerJoin
	next.MaxCardsPerJoin = p.MaxCardsPerJoin
	next.MaxCardsPerPlayer = p.MaxCardsPerPlayer
	next.MaxCoWinners = p.MaxCoWinners
	if err := next.ValidateLimits(); err != nil {
		return err
	}
	cfg.Bingo = next
	return nil
}

func setKenoParams(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.KenoParams
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	cfg.Keno = p
	return nil
}

func transferOwnership(_ *vm.Context, cfg *core.GameConfig, payload json.RawMessage) error {
	var p core.TransferOwnershipPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	owner, err := identity("owner", p.NewOwner)
	if err != nil {
		return err
	}
	cfg.Owner = owner
	return nil
}

// withdrawFees pays accrued round-mode fees out of the bingo escrow.
func withdrawFees(ctx *vm.Context, payload json.RawMessage) error {
	var p core.WithdrawPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	to, err := identity("recipient", p.To)
	if err != nil {
		return err
	}
	bs, err := ctx.State.GetBingoState()
	if err != nil {
		return err
	}
	if p.Amount == 0 || p.Amount > bs.AccruedFees {
		return fmt.Errorf("withdraw %d of %d accrued: %w", p.Amount, bs.AccruedFees, core.ErrInsufficient)
	}
	bs.AccruedFees -= p.Amount
	if err := ctx.State.SetBingoState(bs); err != nil {
		return err
	}
	if err := ctx.Transfer(core.EscrowAddress(core.ModuleBingo), to, p.Amount); err != nil {
		return fmt.Errorf("fee withdrawal: %w", err)
	}
	ctx.Emit(events.EventFeesWithdrawn, map[string]any{"to": to, "amount": p.Amount, "remaining": bs.AccruedFees})
	return nil
}

func freezeAccount(ctx *vm.Context, payload json.RawMessage) error {
	var p core.FreezeAccountPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	addr, err := identity("account", p.Address)
	if err != nil {
		return err
	}
	acc, err := ctx.State.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Frozen = p.Frozen
	if err := ctx.State.SetAccount(acc); err != nil {
		return err
	}
	ctx.Emit(events.EventConfigChanged, map[string]any{"change": string(ctx.Tx.Type), "address": addr, "frozen": p.Frozen})
	return nil
}
