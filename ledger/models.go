package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"settleflow/account"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// TransactionRecord is one row of the transaction ledger. ExternalID is the
// gateway or bank transaction id and is unique: the first insert for an
// external id wins, every later one is a replay.
type TransactionRecord struct {
	ID            string
	ExternalID    string
	AccountKind   account.Kind
	AccountID     string
	Amount        decimal.Decimal
	Currency      string
	Status        Status
	FailureReason *string
	RawPayload    []byte
	ReceivedAt    time.Time
	CompletedAt   *time.Time
}
