// Package transactions is the core of the gateway: it invokes procedures on
// the external engine, assembles their results for the three process modes,
// and bridges the engine's asynchronous status callbacks into recorded events
// and webhook subscriptions. It owns the in-memory registry of in-flight
// transaction handles.
package transactions

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/pkg/validation"
	"github.com/gabapcia/meshgate/internal/subscriptions"
)

// ProcessMode selects how a procedure is processed: broadcast it, estimate
// it, or produce a payload for external signing.
type ProcessMode string

const (
	ModeSubmit  ProcessMode = "submit"
	ModeDryRun  ProcessMode = "dryRun"
	ModeOffline ProcessMode = "offline"
)

// Options carries the per-request processing settings. WebhookURL is only
// honored in submit mode; when set, the caller is subscribed to status
// updates instead of waiting for the run to finish.
type Options struct {
	Mode             ProcessMode `validate:"required,oneof=submit dryRun offline"`
	Signer           string
	WebhookURL       string `validate:"omitempty,url"`
	LegitimacySecret string
	Metadata         map[string]string
}

// EventSink is the slice of the event store the tracker needs.
type EventSink interface {
	CreateEvent(ctx context.Context, eventType, scope string, payload json.RawMessage) (uint64, error)
}

// SubscriptionRegistry is the slice of the subscription registry this
// service needs: creating the webhook subscription on submission and closing
// out subscriptions when their transaction terminates.
type SubscriptionRegistry interface {
	Create(ctx context.Context, in subscriptions.CreateInput) (subscriptions.Subscription, error)
	FindAll(ctx context.Context, f subscriptions.Filter) ([]subscriptions.Subscription, error)
	BatchMarkAsDone(ctx context.Context, ids []uint64) error
}

// Service is the transaction processing entrypoint.
type Service interface {
	// Process invokes the procedure and drives it according to the options'
	// process mode, returning exactly one of the three outcome shapes.
	Process(ctx context.Context, proc engine.Procedure, args json.RawMessage, opts Options) (Outcome, error)
}

type service struct {
	events        EventSink
	subscriptions SubscriptionRegistry

	trackerMu sync.Mutex
	entries   map[uint64]*trackedEntry
}

var _ Service = (*service)(nil)

// New creates the transaction service, recording status transitions through
// the given event sink and managing webhook lifecycles through the
// subscription registry.
func New(events EventSink, subs SubscriptionRegistry) *service {
	return &service{
		events:        events,
		subscriptions: subs,
		entries:       make(map[uint64]*trackedEntry),
	}
}

func (s *service) Process(ctx context.Context, proc engine.Procedure, args json.RawMessage, opts Options) (Outcome, error) {
	if err := validation.Validate(opts); err != nil {
		return Outcome{}, apperrors.NewValidation(err.Error())
	}

	handle, err := invoke(ctx, proc, args, engine.Options{
		Signer:   opts.Signer,
		Metadata: opts.Metadata,
	})
	if err != nil {
		return Outcome{}, err
	}

	supportsSubsidy := handle.SupportsSubsidy()

	quote, err := handle.TotalFees(ctx)
	if err != nil {
		return Outcome{}, mapEngineError(err, nil)
	}

	details := TransactionDetails{
		Status:          handle.Status(),
		Fees:            quote.Fees,
		SupportsSubsidy: supportsSubsidy,
		PayingAccount:   quote.PayingAccount,
	}

	switch opts.Mode {
	case ModeDryRun:
		return s.dryRun(handle, details)
	case ModeOffline:
		return s.offline(ctx, handle, details, opts.Metadata)
	default:
		return s.submit(ctx, handle, details, opts)
	}
}

// dryRun reports fees and paying-account details without broadcasting. A
// procedure gated behind a multisig yields a proposal result carrying the
// multisig address instead of a direct result.
func (s *service) dryRun(handle engine.Handle, details TransactionDetails) (Outcome, error) {
	result := &SubmitResult{
		ResultType:   ResultTypeDirect,
		Transactions: []TransactionRecord{},
		Details:      details,
	}

	if address, ok := handle.MultiSig(); ok {
		result.ResultType = ResultTypeMultiSigProposal
		result.MultiSigAddress = address
	}

	return Outcome{Result: result}, nil
}

// offline produces a signable payload for external signing; nothing is ever
// broadcast.
func (s *service) offline(ctx context.Context, handle engine.Handle, details TransactionDetails, metadata map[string]string) (Outcome, error) {
	payload, err := handle.SignablePayload(ctx, metadata)
	if err != nil {
		return Outcome{}, mapEngineError(err, nil)
	}

	return Outcome{Payload: &PayloadResult{
		Details: details,
		Payload: payload,
	}}, nil
}

// submit broadcasts the procedure. Without a webhook it blocks until the run
// reaches a terminal state and assembles the full result; with a webhook it
// registers the handle with the tracker, creates the subscription and
// returns the first status snapshot immediately.
func (s *service) submit(ctx context.Context, handle engine.Handle, details TransactionDetails, opts Options) (Outcome, error) {
	if opts.WebhookURL != "" {
		return s.submitAndSubscribe(ctx, handle, opts)
	}

	if err := handle.Run(ctx); err != nil {
		return Outcome{}, mapEngineError(err, nil)
	}

	snap := snapshotHandle(handle)

	record, err := assembleRecord(snap)
	if err != nil {
		return Outcome{}, err
	}

	details.Status = snap.Status

	result := &SubmitResult{
		ResultType:   ResultTypeDirect,
		Transactions: []TransactionRecord{record},
		Details:      details,
	}
	if snap.HasResult {
		result.Result = snap.Result
	}

	return Outcome{Result: result}, nil
}

// submitAndSubscribe registers the handle for tracking, creates the webhook
// subscription scoped to the new tracker id, kicks off the run in the
// background and returns the initial status snapshot. Run errors are not
// propagated: they reach the caller as status-update notifications.
func (s *service) submitAndSubscribe(ctx context.Context, handle engine.Handle, opts Options) (Outcome, error) {
	id := s.track(handle)
	scope := strconv.FormatUint(id, 10)

	sub, err := s.subscriptions.Create(ctx, subscriptions.CreateInput{
		EventType:        events.TypeTransactionUpdate,
		EventScope:       scope,
		WebhookURL:       opts.WebhookURL,
		LegitimacySecret: opts.LegitimacySecret,
	})
	if err != nil {
		s.untrack(id)
		return Outcome{}, err
	}

	go func() {
		// the run outlives the request; it is never cancelled from our side
		runCtx := context.WithoutCancel(ctx)
		if err := handle.Run(runCtx); err != nil {
			logger.Error(runCtx, "tracked transaction run failed",
				"transaction.id", id,
				"error", err,
			)
		}
	}()

	receipt := &SubscriptionReceipt{
		SubscriptionID:      sub.ID,
		StatusUpdatePayload: buildStatusPayload(snapshotHandle(handle)),
	}

	return Outcome{Receipt: receipt}, nil
}
