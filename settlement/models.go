package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"settleflow/account"
	"settleflow/ledger"
)

// Outcome is what the external channel asserts happened to the payment.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeUnpaid   Outcome = "unpaid"
)

// Event is a settlement notification decoded once at the boundary: a webhook
// call or one bank statement line. It is immutable after construction.
type Event struct {
	ExternalID string
	Reference  string
	Amount     decimal.Decimal
	Currency   string
	Outcome    Outcome
	Reason     string
	OccurredAt time.Time
	RawPayload []byte
}

// Accepted reports whether the channel claims the money arrived.
func (e Event) Accepted() bool {
	return e.Outcome == OutcomeAccepted
}

// Result is the structured outcome of processing one settlement event.
type Result struct {
	AlreadyProcessed bool
	Applied          bool
	AccountKind      account.Kind
	AccountID        string
	TransactionID    string
	ExternalID       string
	LedgerStatus     ledger.Status
}
