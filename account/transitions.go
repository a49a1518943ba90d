package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFailureReason is recorded when a failed settlement carries no reason.
const DefaultFailureReason = "Unknown reason"

// Settlement is the slice of a settlement event the state machine needs.
type Settlement struct {
	Accepted bool
	Amount   decimal.Decimal
	Reason   string
	At       time.Time
}

// InvoiceTransition is the forward move produced by applying a settlement to
// an invoice. When NoOp is true the invoice is terminal (or cancelled) and
// must not be touched; the caller still records the transaction for audit.
type InvoiceTransition struct {
	From           InvoiceStatus
	To             InvoiceStatus
	AmountPaid     decimal.Decimal
	PaidAt         *time.Time
	OverdueReason  string
	AmountMismatch bool
	NoOp           bool
}

// OrderTransition is the order-side equivalent of InvoiceTransition.
type OrderTransition struct {
	From           OrderStatus
	To             OrderStatus
	TotalPaid      decimal.Decimal
	PaidAt         *time.Time
	FailureReason  string
	AmountMismatch bool
	NoOp           bool
}

// ApplyToInvoice computes the next invoice state for a settlement. It is a
// pure function: it never persists, and it never decides whether the event
// should be applied at all; idempotency belongs to the caller.
//
// Accepted settlements covering the open balance move the invoice to paid;
// short payments move it to partial and leave the remainder open. Failed
// settlements move it to overdue with the supplied reason. A terminal paid
// (or cancelled) invoice is never regressed, whatever arrives later.
func ApplyToInvoice(inv Invoice, s Settlement) InvoiceTransition {
	tr := InvoiceTransition{From: inv.Status, To: inv.Status, AmountPaid: inv.AmountPaid}

	if inv.Status == InvoicePaid || inv.Status == InvoiceCancelled {
		tr.NoOp = true
		return tr
	}

	if !s.Accepted {
		reason := s.Reason
		if reason == "" {
			reason = DefaultFailureReason
		}
		tr.To = InvoiceOverdue
		tr.OverdueReason = reason
		return tr
	}

	open := inv.AmountDue.Sub(inv.AmountPaid)
	paid := inv.AmountPaid.Add(s.Amount)
	at := s.At

	tr.AmountPaid = paid
	tr.PaidAt = &at
	tr.AmountMismatch = !s.Amount.Equal(open)

	if s.Amount.LessThan(open) {
		tr.To = InvoicePartial
		tr.PaidAt = nil
	} else {
		tr.To = InvoicePaid
	}
	return tr
}

// ApplyToOrder computes the next order state for a settlement. Orders move
// pending -> paid on success and pending -> failed otherwise; both paid and
// failed are terminal for this engine.
func ApplyToOrder(ord Order, s Settlement) OrderTransition {
	tr := OrderTransition{From: ord.PaymentStatus, To: ord.PaymentStatus, TotalPaid: ord.TotalPaid}

	if ord.PaymentStatus != OrderPending {
		tr.NoOp = true
		return tr
	}

	if !s.Accepted {
		reason := s.Reason
		if reason == "" {
			reason = DefaultFailureReason
		}
		tr.To = OrderFailed
		tr.FailureReason = reason
		return tr
	}

	at := s.At
	tr.To = OrderPaid
	tr.TotalPaid = ord.TotalPaid.Add(s.Amount)
	tr.PaidAt = &at
	tr.AmountMismatch = !s.Amount.Equal(ord.Total)
	return tr
}
