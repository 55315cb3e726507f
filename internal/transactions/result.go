package transactions

import (
	"encoding/json"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
)

// ResultType distinguishes a direct procedure result from a multisig
// proposal awaiting approval.
type ResultType string

const (
	ResultTypeDirect           ResultType = "direct"
	ResultTypeMultiSigProposal ResultType = "multiSigProposal"
)

// TransactionDetails summarizes the cost and signing context of a procedure
// run: computed fees, the paying account with its balance and type, and
// whether the fees can be subsidized.
type TransactionDetails struct {
	Status          engine.Status        `json:"status"`
	Fees            engine.Fees          `json:"fees"`
	SupportsSubsidy bool                 `json:"supportsSubsidy"`
	PayingAccount   engine.PayingAccount `json:"payingAccount"`
}

// TransactionRecord is the per-transaction breakdown of a completed run: a
// single tag or an ordered tag list, plus block and hash details once known.
type TransactionRecord struct {
	Type            engine.TxKind `json:"type"`
	TransactionTag  engine.Tag    `json:"transactionTag,omitempty"`
	TransactionTags []engine.Tag  `json:"transactionTags,omitempty"`
	BlockHash       string        `json:"blockHash"`
	TransactionHash string        `json:"transactionHash"`
	BlockNumber     uint64        `json:"blockNumber"`
}

// SubmitResult is the assembled outcome of a submitted or dry-run procedure.
// MultiSigAddress is set only for multisig proposals.
type SubmitResult struct {
	ResultType      ResultType          `json:"resultType"`
	Result          json.RawMessage     `json:"result,omitempty"`
	MultiSigAddress string              `json:"multiSigAddress,omitempty"`
	Transactions    []TransactionRecord `json:"transactions"`
	Details         TransactionDetails  `json:"details"`
}

// PayloadResult is the outcome of an offline run: a signable payload for
// external signing, never broadcast.
type PayloadResult struct {
	Details TransactionDetails `json:"details"`
	Payload json.RawMessage    `json:"transactionPayload"`
}

// SubscriptionReceipt is returned when a submission registers a webhook: the
// new subscription's id plus the first status snapshot, delivered
// synchronously while later updates flow through the webhook.
type SubscriptionReceipt struct {
	SubscriptionID uint64 `json:"subscriptionId"`
	StatusUpdatePayload
}

// Outcome is the union of the three result shapes a processed procedure can
// produce. Exactly one field is non-nil.
type Outcome struct {
	Result  *SubmitResult
	Payload *PayloadResult
	Receipt *SubscriptionReceipt
}

// assembleRecord builds the per-transaction breakdown from a completed
// handle. A handle whose shape is neither single nor batch is a programming
// error in the engine adapter.
func assembleRecord(snap statusSnapshot) (TransactionRecord, error) {
	record := TransactionRecord{
		Type:            snap.TxInfo.Kind,
		BlockHash:       snap.BlockHash,
		TransactionHash: snap.TxHash,
		BlockNumber:     snap.BlockNumber,
	}

	switch snap.TxInfo.Kind {
	case engine.TxKindSingle:
		record.TransactionTag = snap.TxInfo.Tag
	case engine.TxKindBatch:
		record.TransactionTags = snap.TxInfo.Tags
	default:
		return TransactionRecord{}, apperrors.NewInternal("unsupported transaction shape received from the engine")
	}

	return record, nil
}
