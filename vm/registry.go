package vm

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/tolelom/drawchain/core"
)

// Handler applies one transaction type. Returning an error rolls back every
// state change the handler made.
type Handler func(ctx *Context, payload json.RawMessage) error

// handlers is filled by module init functions before any block executes.
var handlers = struct {
	sync.RWMutex
	m map[core.TxType]Handler
}{m: make(map[core.TxType]Handler)}

// Register binds typ to h. Registering a type twice is a programming error.
func Register(typ core.TxType, h Handler) {
	handlers.Lock()
	defer handlers.Unlock()
	if _, dup := handlers.m[typ]; dup {
		panic(fmt.Sprintf("vm: duplicate handler for %q", typ))
	}
	handlers.m[typ] = h
}

// Registered lists the transaction types the engine accepts, sorted.
func Registered() []core.TxType {
	handlers.RLock()
	defer handlers.RUnlock()
	types := make([]core.TxType, 0, len(handlers.m))
	for typ := range handlers.m {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}

func dispatch(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	handlers.RLock()
	h, ok := handlers.m[typ]
	handlers.RUnlock()
	if !ok {
		return fmt.Errorf("unknown tx type %q: %w", typ, core.ErrInvalid)
	}
	return h(ctx, payload)
}

// NonReentrant wraps h so that it fails with core.ErrReentrant while another
// handler holding the same key is still on the call stack of this
// transaction. Every module that moves escrowed funds registers through it.
func NonReentrant(key string, h Handler) Handler {
	return func(ctx *Context, payload json.RawMessage) error {
		release, err := ctx.Enter(key)
		if err != nil {
			return err
		}
		defer release()
		return h(ctx, payload)
	}
}

// Decode unmarshals a payload, tagging failures as validation errors.
func Decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, core.ErrInvalid)
	}
	return nil
}
