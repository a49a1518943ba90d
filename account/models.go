package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the two account flavours settlements can target.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindOrder   Kind = "order"
)

type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "unpaid"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// Invoice mirrors the invoices table columns touched by the engine.
type Invoice struct {
	ID               string
	Number           string
	Status           InvoiceStatus
	Currency         string
	AmountDue        decimal.Decimal
	AmountPaid       decimal.Decimal
	DueDate          time.Time
	PaymentReference *string
	OverdueReason    *string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order mirrors the orders table columns touched by the engine.
type Order struct {
	ID               string
	Number           string
	PaymentStatus    OrderStatus
	PaymentMethod    string
	Currency         string
	Total            decimal.Decimal
	TotalPaid        decimal.Decimal
	PaymentReference *string
	FailureReason    *string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Handle is the slim view of an account the settlement pipeline works with.
type Handle struct {
	Kind      Kind
	ID        string
	Reference string
	Expected  decimal.Decimal
	Status    string
}

// HandleForInvoice builds a settlement target from an invoice row.
func HandleForInvoice(inv Invoice) Handle {
	return Handle{
		Kind:      KindInvoice,
		ID:        inv.ID,
		Reference: inv.Number,
		Expected:  inv.AmountDue.Sub(inv.AmountPaid),
		Status:    string(inv.Status),
	}
}

// HandleForOrder builds a settlement target from an order row.
func HandleForOrder(ord Order) Handle {
	return Handle{
		Kind:      KindOrder,
		ID:        ord.ID,
		Reference: ord.Number,
		Expected:  ord.Total,
		Status:    string(ord.PaymentStatus),
	}
}
