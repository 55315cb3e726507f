package engine

// Status represents the lifecycle state of a procedure run as reported by the
// engine. The engine mutates the handle's status in place; consumers must
// snapshot it before crossing any asynchronous boundary.
type Status string

const (
	StatusIdle       Status = "Idle"
	StatusUnapproved Status = "Unapproved"
	StatusRunning    Status = "Running"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
	StatusRejected   Status = "Rejected"
	StatusAborted    Status = "Aborted"
)

// IsTerminal reports whether the run has reached a state it can never leave.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusRejected, StatusAborted:
		return true
	}
	return false
}

// WasBroadcast reports whether the underlying transaction was actually signed
// and sent to the chain. Hash fields are only meaningful once this is true.
func (s Status) WasBroadcast() bool {
	switch s {
	case StatusIdle, StatusUnapproved, StatusRejected:
		return false
	}
	return true
}

// IsInBlock reports whether the transaction made it into a block, meaning the
// block hash and number are definitely known.
func (s Status) IsInBlock() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// IsFailure reports whether the run ended in a terminal failure state, the
// only states in which the handle carries an error payload.
func (s Status) IsFailure() bool {
	switch s {
	case StatusFailed, StatusRejected, StatusAborted:
		return true
	}
	return false
}
