package transactions

import (
	"encoding/json"
	"strconv"

	"github.com/gabapcia/meshgate/internal/engine"
)

// placeholderResult is emitted when a succeeded run has no typed result to
// carry through the notification channel.
var placeholderResult = json.RawMessage(`"placeholder"`)

// statusSnapshot is an immutable copy of a handle's observable state, taken
// at the moment a status change is observed. The engine mutates handles in
// place, so no live handle field may be read after an asynchronous step.
type statusSnapshot struct {
	Status      engine.Status
	TxInfo      engine.TxInfo
	TxHash      string
	BlockHash   string
	BlockNumber uint64
	Err         *engine.Error
	Result      json.RawMessage
	HasResult   bool
}

// snapshotHandle copies every status-dependent field out of the handle.
func snapshotHandle(h engine.Handle) statusSnapshot {
	result, hasResult := h.Result()

	return statusSnapshot{
		Status:      h.Status(),
		TxInfo:      h.TxInfo(),
		TxHash:      h.TxHash(),
		BlockHash:   h.BlockHash(),
		BlockNumber: h.BlockNumber(),
		Err:         h.Err(),
		Result:      result,
		HasResult:   hasResult,
	}
}

// StatusUpdatePayload is the wire shape of a transaction status-update
// event. Field presence follows the status: the transaction hash appears only
// once the transaction was broadcast, block fields only once it is in a
// block, the result only on success and the error only in terminal failure
// states.
type StatusUpdatePayload struct {
	Type            engine.TxKind   `json:"type"`
	TransactionTag  engine.Tag      `json:"transactionTag,omitempty"`
	TransactionTags []engine.Tag    `json:"transactionTags,omitempty"`
	Status          engine.Status   `json:"status"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	BlockHash       string          `json:"blockHash,omitempty"`
	BlockNumber     string          `json:"blockNumber,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// buildStatusPayload assembles the status-update payload for a snapshot.
func buildStatusPayload(snap statusSnapshot) StatusUpdatePayload {
	payload := StatusUpdatePayload{
		Type:   snap.TxInfo.Kind,
		Status: snap.Status,
	}

	switch snap.TxInfo.Kind {
	case engine.TxKindSingle:
		payload.TransactionTag = snap.TxInfo.Tag
	case engine.TxKindBatch:
		payload.TransactionTags = snap.TxInfo.Tags
	}

	if snap.Status.WasBroadcast() {
		payload.TransactionHash = snap.TxHash
	}

	if snap.Status.IsInBlock() {
		payload.BlockHash = snap.BlockHash
		payload.BlockNumber = strconv.FormatUint(snap.BlockNumber, 10)
	}

	if snap.Status == engine.StatusSucceeded {
		if snap.HasResult {
			payload.Result = snap.Result
		} else {
			payload.Result = placeholderResult
		}
	}

	if snap.Status.IsFailure() && snap.Err != nil {
		payload.Error = snap.Err.Message
	}

	return payload
}
