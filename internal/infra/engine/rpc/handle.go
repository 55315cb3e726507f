package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/pkg/transport/jsonrpc"
)

type (
	// feesResponse is the node's answer to run_fees.
	feesResponse struct {
		Fees          engine.Fees          `json:"fees"`
		PayingAccount engine.PayingAccount `json:"payingAccount"`
		Error         *engineError         `json:"error"`
	}

	// payloadResponse is the node's answer to run_signablePayload.
	payloadResponse struct {
		Payload json.RawMessage `json:"payload"`
		Error   *engineError    `json:"error"`
	}

	// statusResponse is the node's answer to run_status. Hash and block
	// fields are populated progressively as the run advances; result only
	// appears on success, error only on terminal failures.
	statusResponse struct {
		Status          string          `json:"status"`
		TransactionHash string          `json:"transactionHash"`
		BlockHash       string          `json:"blockHash"`
		BlockNumber     uint64          `json:"blockNumber"`
		Result          json.RawMessage `json:"result"`
		Error           *engineError    `json:"error"`
	}
)

// handle implements engine.Handle for one prepared run on the node. The node
// owns the run; this handle mirrors its state by polling run_status while Run
// is in flight and replays each observed transition to registered listeners.
type handle struct {
	conn         jsonrpc.Client
	runID        string
	pollInterval time.Duration

	// fixed at preparation time
	txInfo          engine.TxInfo
	multiSig        string
	supportsSubsidy bool

	mu          sync.Mutex
	status      engine.Status
	txHash      string
	blockHash   string
	blockNumber uint64
	errPayload  *engine.Error
	result      json.RawMessage
	hasResult   bool

	nextListenerID uint64
	listeners      map[uint64]engine.StatusListener
}

// Ensure handle implements the engine.Handle interface at compile time.
var _ engine.Handle = (*handle)(nil)

// newHandle wraps a freshly prepared run.
func newHandle(conn jsonrpc.Client, res prepareResponse, pollInterval time.Duration) *handle {
	status := engine.Status(res.Status)
	if status == "" {
		status = engine.StatusIdle
	}

	return &handle{
		conn:            conn,
		runID:           res.RunID,
		pollInterval:    pollInterval,
		txInfo:          res.Transaction.toTxInfo(),
		multiSig:        res.MultiSigAddress,
		supportsSubsidy: res.SupportsSubsidy,
		status:          status,
		listeners:       make(map[uint64]engine.StatusListener),
	}
}

func (h *handle) Status() engine.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *handle) TxInfo() engine.TxInfo {
	return h.txInfo
}

func (h *handle) TxHash() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.txHash
}

func (h *handle) BlockHash() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blockHash
}

func (h *handle) BlockNumber() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blockNumber
}

func (h *handle) Err() *engine.Error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errPayload
}

func (h *handle) Result() (json.RawMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.hasResult
}

func (h *handle) MultiSig() (string, bool) {
	return h.multiSig, h.multiSig != ""
}

func (h *handle) SupportsSubsidy() bool {
	return h.supportsSubsidy
}

// TotalFees asks the node for the run's fee breakdown and paying account.
func (h *handle) TotalFees(ctx context.Context) (engine.FeeQuote, error) {
	data, err := h.conn.Fetch(ctx, "run_fees", map[string]any{"runId": h.runID})
	if err != nil {
		return engine.FeeQuote{}, err
	}

	var res feesResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return engine.FeeQuote{}, err
	}

	if engineErr := res.Error.toEngineError(); engineErr != nil {
		return engine.FeeQuote{}, engineErr
	}

	return engine.FeeQuote{
		Fees:          res.Fees,
		PayingAccount: res.PayingAccount,
	}, nil
}

// SignablePayload asks the node to build the externally signable payload for
// this run, embedding the given metadata.
func (h *handle) SignablePayload(ctx context.Context, metadata map[string]string) (json.RawMessage, error) {
	params := map[string]any{"runId": h.runID}
	if len(metadata) > 0 {
		params["metadata"] = metadata
	}

	data, err := h.conn.Fetch(ctx, "run_signablePayload", params)
	if err != nil {
		return nil, err
	}

	var res payloadResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}

	if engineErr := res.Error.toEngineError(); engineErr != nil {
		return nil, engineErr
	}

	return res.Payload, nil
}

// OnStatusChange registers a listener fired on every transition observed by
// the polling loop. The returned unsubscribe function is safe to call more
// than once.
func (h *handle) OnStatusChange(listener engine.StatusListener) engine.UnsubscribeFunc {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextListenerID
	h.nextListenerID++
	h.listeners[id] = listener

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Run submits the run and blocks until the node reports a terminal state,
// returning the engine error payload for terminal failures. Cancelling ctx
// stops the wait; the node keeps driving the run to completion on its own.
func (h *handle) Run(ctx context.Context) error {
	data, err := h.conn.Fetch(ctx, "run_submit", map[string]any{"runId": h.runID})
	if err != nil {
		return err
	}

	var submitted statusResponse
	if err := json.Unmarshal(data, &submitted); err != nil {
		return err
	}

	if engineErr := submitted.Error.toEngineError(); engineErr != nil {
		h.apply(statusResponse{Status: string(engine.StatusFailed), Error: submitted.Error})
		return engineErr
	}

	h.apply(submitted)

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		if status := h.Status(); status.IsTerminal() {
			if status.IsFailure() {
				return h.Err()
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h.poll(ctx); err != nil {
				return err
			}
		}
	}
}

// poll fetches the run's current state and folds it into the handle.
func (h *handle) poll(ctx context.Context) error {
	data, err := h.conn.Fetch(ctx, "run_status", map[string]any{"runId": h.runID})
	if err != nil {
		return err
	}

	var res statusResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}

	h.apply(res)
	return nil
}

// apply folds one status report into the handle's mirrored state and, when
// the status actually changed, fires the registered listeners. Listeners run
// outside the lock so they can read the handle freely.
func (h *handle) apply(res statusResponse) {
	status := engine.Status(res.Status)
	if status == "" {
		return
	}

	h.mu.Lock()

	changed := status != h.status
	h.status = status

	if res.TransactionHash != "" {
		h.txHash = res.TransactionHash
	}
	if res.BlockHash != "" {
		h.blockHash = res.BlockHash
	}
	if res.BlockNumber != 0 {
		h.blockNumber = res.BlockNumber
	}
	if res.Result != nil {
		h.result = res.Result
		h.hasResult = true
	}
	if engineErr := res.Error.toEngineError(); engineErr != nil {
		h.errPayload = engineErr
	}

	var listeners []engine.StatusListener
	if changed {
		listeners = make([]engine.StatusListener, 0, len(h.listeners))
		for _, listener := range h.listeners {
			listeners = append(listeners, listener)
		}
	}

	h.mu.Unlock()

	for _, listener := range listeners {
		listener(h)
	}
}
