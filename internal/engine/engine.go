// Package engine defines the consumed boundary to the external procedure
// engine: the opaque component that turns a prepared procedure into one or
// more on-chain transactions and reports their progress. meshgate only
// orchestrates calls into this boundary; it never implements procedure logic
// itself. Adapters live under internal/infra/engine.
package engine

import (
	"context"
	"encoding/json"
)

// Options carries the per-call settings forwarded to the engine when a
// procedure is prepared.
type Options struct {
	// Signer is the address of the signing account submitting the procedure.
	Signer string

	// Metadata is attached to signable payloads produced in offline mode.
	Metadata map[string]string
}

// UnsubscribeFunc detaches a previously registered status listener. It must
// be safe to call more than once; the engine may still deliver a callback
// that was already in flight when the unsubscribe took effect.
type UnsubscribeFunc func()

// StatusListener receives the handle each time its status changes. Callbacks
// may fire at any moment after registration, from the engine's own
// goroutines, including while a previous invocation is still being handled.
type StatusListener func(h Handle)

// Handle is the live object representing a submitted-or-submittable procedure
// run. The engine owns and mutates it in place; hash and block accessors
// return meaningful values only once the status says so, and Err only in
// terminal failure states.
type Handle interface {
	// Status returns the current lifecycle state of the run.
	Status() Status

	// TxInfo returns the transaction shape behind this handle, fixed at
	// creation time.
	TxInfo() TxInfo

	// TxHash returns the transaction hash, empty until the transaction has
	// been broadcast.
	TxHash() string

	// BlockHash returns the including block's hash, empty until the
	// transaction is in a block.
	BlockHash() string

	// BlockNumber returns the including block's number, zero until the
	// transaction is in a block.
	BlockNumber() uint64

	// Err returns the engine error payload for runs that ended in Failed,
	// Rejected or Aborted, and nil otherwise.
	Err() *Error

	// Result returns the procedure's typed return value once the run has
	// succeeded. ok is false when the engine does not surface one.
	Result() (result json.RawMessage, ok bool)

	// MultiSig returns the multisig address gating this procedure, if any.
	MultiSig() (address string, ok bool)

	// SupportsSubsidy reports whether the procedure's fees can be subsidized.
	SupportsSubsidy() bool

	// TotalFees computes the fee breakdown and paying account for this run
	// without broadcasting anything.
	TotalFees(ctx context.Context) (FeeQuote, error)

	// Run submits the procedure and blocks until it reaches a terminal
	// state. It returns the engine error for terminal failures. Cancelling
	// ctx stops the wait, never the engine-side execution.
	Run(ctx context.Context) error

	// OnStatusChange registers a listener invoked on every status
	// transition and returns the function that detaches it.
	OnStatusChange(listener StatusListener) UnsubscribeFunc

	// SignablePayload produces the payload for external signing, embedding
	// the given metadata. It never broadcasts.
	SignablePayload(ctx context.Context, metadata map[string]string) (json.RawMessage, error)
}

// Procedure is a named engine procedure ready to be invoked. NoArgs marks
// procedures that take no business arguments, in which case the invoker
// passes options alone.
type Procedure struct {
	Name   string
	NoArgs bool
	Call   func(ctx context.Context, args json.RawMessage, opts Options) (Handle, error)
}

// Engine exposes the engine's procedure catalog to the transport layer.
type Engine interface {
	// Procedure looks up a procedure by name, reporting whether it exists.
	Procedure(name string) (Procedure, bool)
}
