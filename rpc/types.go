// Package rpc exposes chain state via a JSON-RPC 2.0 endpoint and a
// read-only REST surface, both served by gin, plus a client for them.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object. Category carries the engine's
// stable error category when the failure came from the engine.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

func (e *Error) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Category, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match the engine sentinel for Category.
func (e *Error) Unwrap() error { return core.ErrorOf(e.Category) }

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeEngineError    = -32001
)

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

// engineError classifies err by its category.
func engineError(id any, err error) Response {
	cat := core.Category(err)
	code := CodeEngineError
	switch cat {
	case core.CategoryValidation:
		code = CodeInvalidParams
	case core.CategoryInternal:
		code = CodeInternalError
	}
	resp := errResponse(id, code, err.Error())
	resp.Error.Category = cat
	return resp
}

func okResponse(id, result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errResponse(id, CodeInternalError, err.Error())
	}
	return Response{JSONRPC: "2.0", ID: id, Result: raw}
}
