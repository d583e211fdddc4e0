// Package orchestrator runs the session turn loop (C8): it prompts the
// model, streams the response, dispatches tool calls under the
// permission engine, prunes and truncates history, and persists a
// snapshot after each message it appends to history.
package orchestrator

import (
	"errors"
	"fmt"
)

// TransportError wraps a failure at the HTTP/SSE layer (C4). Retryable
// mirrors ssestream.TransportError.Retryable.
type TransportError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("orchestrator: transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError wraps a non-transport failure reported by a provider
// adapter (malformed wire response, provider-side error event).
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("orchestrator: provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DecodeError wraps a failure decoding model output into the canonical
// message model (e.g. malformed tool-call arguments JSON).
type DecodeError struct {
	Context string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("orchestrator: decode: %s: %v", e.Context, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	ErrToolNotFound         = errors.New("orchestrator: tool not found")
	ErrToolArgumentInvalid  = errors.New("orchestrator: tool argument invalid")
	ErrPermissionDenied     = errors.New("orchestrator: permission denied")
	ErrCancelled            = errors.New("orchestrator: cancelled")
	ErrBudgetExceeded       = errors.New("orchestrator: turn budget exceeded")
	ErrSessionBusy          = errors.New("orchestrator: a turn is already running")
)
