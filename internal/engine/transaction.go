package engine

// Tag identifies the on-chain extrinsic a transaction maps to, e.g.
// "asset.createAsset".
type Tag string

// TxKind discriminates the two transaction shapes a procedure can produce.
// The shape is decided once, when the handle is created, so downstream code
// never needs runtime type tests.
type TxKind string

const (
	// TxKindSingle marks a procedure backed by exactly one transaction.
	TxKindSingle TxKind = "single"

	// TxKindBatch marks a procedure backed by an ordered batch of
	// transactions.
	TxKindBatch TxKind = "batch"
)

// TxInfo is the tagged variant describing the transactions behind a handle.
// Tag is set for TxKindSingle, Tags for TxKindBatch.
type TxInfo struct {
	Kind TxKind
	Tag  Tag
	Tags []Tag
}

// Fees breaks down the cost of running a procedure. Amounts are decimal
// strings to preserve the chain's arbitrary precision.
type Fees struct {
	Protocol string `json:"protocol"`
	Gas      string `json:"gas"`
	Total    string `json:"total"`
}

// PayingAccountType identifies who covers the fees of a procedure.
type PayingAccountType string

const (
	PayingAccountCaller  PayingAccountType = "Caller"
	PayingAccountSubsidy PayingAccountType = "Subsidy"
	PayingAccountOther   PayingAccountType = "Other"
)

// PayingAccount describes the account paying a procedure's fees, with its
// balance at quote time.
type PayingAccount struct {
	Type    PayingAccountType `json:"type"`
	Address string            `json:"address"`
	Balance string            `json:"balance"`
}

// FeeQuote pairs the fee breakdown with the paying account, as returned by a
// handle's fee query.
type FeeQuote struct {
	Fees          Fees
	PayingAccount PayingAccount
}
