package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the bank's verdict for one statement line.
type EntryStatus string

const (
	EntrySuccessful EntryStatus = "successful"
	EntryUnpaid     EntryStatus = "unpaid"
)

// StatementEntry is one line of the next-day bank settlement statement.
type StatementEntry struct {
	Reference       string          `json:"reference"`
	Amount          decimal.Decimal `json:"amount"`
	Status          EntryStatus     `json:"status"`
	TransactionCode string          `json:"transactionCode"`
	UnpaidCode      string          `json:"unpaidCode,omitempty"`
	UnpaidReason    string          `json:"unpaidReason,omitempty"`
}

// RunError is one recorded per-entry failure; a run retains the first few.
type RunError struct {
	Reference string `json:"reference,omitempty"`
	Message   string `json:"message"`
}

// Run is the persisted summary of one reconciliation execution. It is the
// audit trail operators act on, created once per run and immutable after
// completion.
type Run struct {
	ID          string
	Date        time.Time
	Processed   int
	Successful  int
	Unpaid      int
	NotFound    int
	Errors      []RunError
	StartedAt   time.Time
	CompletedAt *time.Time
}
