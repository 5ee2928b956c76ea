package history

import "time"

// Kind classifies a history record.
type Kind string

const (
	// KindInsert records a coin insertion.
	KindInsert Kind = "insert"

	// KindDispense records a completed dispense of one or more items.
	KindDispense Kind = "dispense"

	// KindChangeReturned records change handed back after a dispense.
	KindChangeReturned Kind = "change_returned"

	// KindCancel records a cancelled transaction and its refund.
	KindCancel Kind = "cancel"

	// KindAdmin records an administrative action (restock, clear, rotation).
	KindAdmin Kind = "admin"
)

// Record is one immutable transaction event.
//
// Seq is the engine's logical clock value and is the authoritative ordering.
// Token correlates all records of one transaction. Amount carries the
// denomination, change, or refund depending on Kind; Items carries the
// dispensed item identifiers for KindDispense and is empty otherwise.
type Record struct {
	Seq       int64     `json:"seq"`
	Token     string    `json:"token,omitempty"`
	Kind      Kind      `json:"kind"`
	Amount    int       `json:"amount,omitempty"`
	Items     []string  `json:"items,omitempty"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
