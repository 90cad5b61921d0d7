package core

import "errors"

// Error categories. Handlers wrap these with fmt.Errorf("...: %w", ...) so
// callers can match them with errors.Is after the executor adds context.
var (
	ErrNotFound         = errors.New("not found")
	ErrWrongState       = errors.New("wrong state")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalid          = errors.New("invalid argument")
	ErrInsufficient     = errors.New("insufficient funds")
	ErrAlreadyDone      = errors.New("already done")
	ErrTooEarly         = errors.New("too early")
	ErrReentrant        = errors.New("reentrant call")
	ErrTransferRejected = errors.New("transfer rejected")
)

// Stable category names exposed in receipts and RPC errors.
const (
	CategoryNone         = ""
	CategoryNotFound     = "not_found"
	CategoryWrongState   = "wrong_state"
	CategoryUnauthorized = "unauthorized"
	CategoryValidation   = "validation"
	CategoryInsufficient = "insufficient"
	CategoryAlreadyDone  = "already_done"
	CategoryTiming       = "timing"
	CategoryReentrant    = "reentrant"
	CategoryRejected     = "rejected"
	CategoryInternal     = "internal"
)

var categories = []struct {
	err  error
	name string
}{
	{ErrReentrant, CategoryReentrant},
	{ErrUnauthorized, CategoryUnauthorized},
	{ErrWrongState, CategoryWrongState},
	{ErrAlreadyDone, CategoryAlreadyDone},
	{ErrTooEarly, CategoryTiming},
	{ErrInsufficient, CategoryInsufficient},
	{ErrTransferRejected, CategoryRejected},
	{ErrInvalid, CategoryValidation},
	{ErrNotFound, CategoryNotFound},
}

// Category maps err to its stable category name. Unknown errors are internal.
func Category(err error) string {
	if err == nil {
		return CategoryNone
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return CategoryInternal
}

// ErrorOf returns the sentinel behind a category name, or nil for
// internal and unknown categories. Clients use it to rebuild errors.Is
// matching from a remote category.
func ErrorOf(category string) error {
	for _, c := range categories {
		if c.name == category {
			return c.err
		}
	}
	return nil
}
