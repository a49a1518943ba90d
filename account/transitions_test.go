package account

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var settledAt = time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)

func accepted(amount string) Settlement {
	return Settlement{Accepted: true, Amount: decimal.RequireFromString(amount), At: settledAt}
}

func rejected(reason string) Settlement {
	return Settlement{Accepted: false, Reason: reason, At: settledAt}
}

func TestApplyToInvoice_FullPayment(t *testing.T) {
	inv := pendingInvoice("inv_abc123", "INV-2025-001", "100.00")

	tr := ApplyToInvoice(inv, accepted("100.00"))

	if tr.NoOp {
		t.Fatal("expected transition, got no-op")
	}
	if tr.To != InvoicePaid {
		t.Fatalf("expected paid, got %s", tr.To)
	}
	if !tr.AmountPaid.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected amount_paid 100.00, got %s", tr.AmountPaid)
	}
	if tr.PaidAt == nil || !tr.PaidAt.Equal(settledAt) {
		t.Fatalf("expected paid_at %v, got %v", settledAt, tr.PaidAt)
	}
	if tr.AmountMismatch {
		t.Error("expected no amount mismatch for exact payment")
	}
}

func TestApplyToInvoice_UnderPaymentMovesToPartial(t *testing.T) {
	inv := pendingInvoice("inv_1", "INV-1", "100.00")

	tr := ApplyToInvoice(inv, accepted("40.00"))

	if tr.To != InvoicePartial {
		t.Fatalf("expected partial, got %s", tr.To)
	}
	if !tr.AmountPaid.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected amount_paid 40.00, got %s", tr.AmountPaid)
	}
	if tr.PaidAt != nil {
		t.Error("expected no paid_at on a partial payment")
	}
	if !tr.AmountMismatch {
		t.Error("expected under-payment to be flagged")
	}
}

func TestApplyToInvoice_OverPaymentFlagged(t *testing.T) {
	inv := pendingInvoice("inv_1", "INV-1", "100.00")

	tr := ApplyToInvoice(inv, accepted("120.00"))

	if tr.To != InvoicePaid {
		t.Fatalf("expected paid, got %s", tr.To)
	}
	if !tr.AmountPaid.Equal(decimal.RequireFromString("120.00")) {
		t.Fatalf("expected actual amount recorded, got %s", tr.AmountPaid)
	}
	if !tr.AmountMismatch {
		t.Error("expected over-payment to be flagged")
	}
}

func TestApplyToInvoice_PartialTopUpCompletes(t *testing.T) {
	inv := pendingInvoice("inv_1", "INV-1", "100.00")
	inv.Status = InvoicePartial
	inv.AmountPaid = decimal.RequireFromString("40.00")

	tr := ApplyToInvoice(inv, accepted("60.00"))

	if tr.To != InvoicePaid {
		t.Fatalf("expected paid, got %s", tr.To)
	}
	if !tr.AmountPaid.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected amount_paid 100.00, got %s", tr.AmountPaid)
	}
	if tr.AmountMismatch {
		t.Error("expected exact top-up not to be flagged")
	}
}

func TestApplyToInvoice_FailureMovesToOverdue(t *testing.T) {
	inv := pendingInvoice("inv_1", "INV-1", "100.00")

	tr := ApplyToInvoice(inv, rejected("insufficient funds"))

	if tr.To != InvoiceOverdue {
		t.Fatalf("expected overdue, got %s", tr.To)
	}
	if tr.OverdueReason != "insufficient funds" {
		t.Fatalf("unexpected reason %q", tr.OverdueReason)
	}
}

func TestApplyToInvoice_FailureDefaultsReason(t *testing.T) {
	tr := ApplyToInvoice(pendingInvoice("inv_1", "INV-1", "100.00"), rejected(""))

	if tr.OverdueReason != DefaultFailureReason {
		t.Fatalf("expected %q, got %q", DefaultFailureReason, tr.OverdueReason)
	}
}

func TestApplyToInvoice_TerminalPaidNeverRegresses(t *testing.T) {
	inv := pendingInvoice("inv_1", "INV-1", "100.00")
	inv.Status = InvoicePaid
	inv.AmountPaid = decimal.RequireFromString("100.00")

	for _, s := range []Settlement{rejected("late unpaid notice"), accepted("100.00")} {
		tr := ApplyToInvoice(inv, s)
		if !tr.NoOp {
			t.Fatalf("expected no-op on paid invoice, got transition to %s", tr.To)
		}
		if tr.To != InvoicePaid {
			t.Fatalf("expected status to stay paid, got %s", tr.To)
		}
	}
}

func TestApplyToInvoice_CancelledNeverResurrected(t *testing.T) {
	inv := pendingInvoice("inv_1", "INV-1", "100.00")
	inv.Status = InvoiceCancelled

	if tr := ApplyToInvoice(inv, accepted("100.00")); !tr.NoOp {
		t.Fatalf("expected no-op on cancelled invoice, got %s", tr.To)
	}
}

func TestApplyToOrder_Success(t *testing.T) {
	ord := pendingOrder("ord_500", "ORD-500", "250.00")

	tr := ApplyToOrder(ord, accepted("250.00"))

	if tr.To != OrderPaid {
		t.Fatalf("expected paid, got %s", tr.To)
	}
	if !tr.TotalPaid.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("expected total_paid 250.00, got %s", tr.TotalPaid)
	}
	if tr.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
}

func TestApplyToOrder_Failure(t *testing.T) {
	ord := pendingOrder("ord_500", "ORD-500", "250.00")

	tr := ApplyToOrder(ord, rejected("insufficient funds"))

	if tr.To != OrderFailed {
		t.Fatalf("expected failed, got %s", tr.To)
	}
	if tr.FailureReason != "insufficient funds" {
		t.Fatalf("unexpected reason %q", tr.FailureReason)
	}
}

func TestApplyToOrder_TerminalStatesNoOp(t *testing.T) {
	for _, status := range []OrderStatus{OrderPaid, OrderFailed} {
		ord := pendingOrder("ord_1", "ORD-1", "10.00")
		ord.PaymentStatus = status

		if tr := ApplyToOrder(ord, accepted("10.00")); !tr.NoOp {
			t.Fatalf("expected no-op for %s order, got %s", status, tr.To)
		}
	}
}
