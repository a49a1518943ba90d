package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrInvoiceNotFound is returned when no invoice row exists for the id.
	ErrInvoiceNotFound = errors.New("account: invoice not found")
	// ErrOrderNotFound is returned when no order row exists for the id.
	ErrOrderNotFound = errors.New("account: order not found")
)

// DB is the subset of pgxpool.Pool and pgx.Tx the repository runs through, so
// the same queries serve both pooled reads and transactional writes.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const invoiceColumns = `id, number, status, currency, amount_due, amount_paid, due_date, payment_reference, overdue_reason, paid_at, created_at, updated_at`

// GetInvoice fetches one invoice by primary key.
func (r *Repository) GetInvoice(ctx context.Context, db DB, id string) (Invoice, error) {
	row := db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("account: get invoice: %w", err)
	}
	return inv, nil
}

// GetInvoiceForUpdate fetches one invoice by primary key and row-locks it for
// the duration of the transaction. Settlement writers must read through this:
// without the lock two concurrent settlements can read the same starting
// balance and the later write erases the earlier one from amount_paid.
func (r *Repository) GetInvoiceForUpdate(ctx context.Context, tx pgx.Tx, id string) (Invoice, error) {
	row := tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("account: get invoice for update: %w", err)
	}
	return inv, nil
}

// PendingInvoices lists invoices still expecting settlement with a due date
// at or before asOf, oldest first.
func (r *Repository) PendingInvoices(ctx context.Context, db DB, asOf time.Time) ([]Invoice, error) {
	const query = `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status IN ('unpaid','partial','overdue')
		  AND due_date <= $1
		ORDER BY due_date ASC, id ASC
	`
	rows, err := db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("account: list pending invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("account: scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("account: iterate invoices: %w", err)
	}
	return invoices, nil
}

const orderColumns = `id, number, payment_status, payment_method, currency, total, total_paid, payment_reference, failure_reason, paid_at, created_at, updated_at`

// GetOrder fetches one order by primary key.
func (r *Repository) GetOrder(ctx context.Context, db DB, id string) (Order, error) {
	row := db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("account: get order: %w", err)
	}
	return ord, nil
}

// GetOrderForUpdate fetches one order by primary key under a row lock, the
// order-side counterpart of GetInvoiceForUpdate.
func (r *Repository) GetOrderForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error) {
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("account: get order for update: %w", err)
	}
	return ord, nil
}

// PendingOrders lists orders awaiting a batch-settled payment method.
func (r *Repository) PendingOrders(ctx context.Context, db DB, paymentMethod string) ([]Order, error) {
	const query = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE payment_status = 'pending'
		  AND payment_method = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := db.Query(ctx, query, paymentMethod)
	if err != nil {
		return nil, fmt.Errorf("account: list pending orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("account: scan order: %w", err)
		}
		orders = append(orders, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("account: iterate orders: %w", err)
	}
	return orders, nil
}

// ApplyInvoiceTransition persists a computed invoice transition. The WHERE
// guard re-checks the terminal states so two racing writers cannot move an
// invoice out of paid; the returned bool reports whether the row moved.
func (r *Repository) ApplyInvoiceTransition(ctx context.Context, tx pgx.Tx, invoiceID string, tr InvoiceTransition, reference string) (bool, error) {
	if tr.NoOp {
		return false, nil
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	switch tr.To {
	case InvoicePaid, InvoicePartial:
		const query = `
			UPDATE invoices
			SET status = $2,
			    amount_paid = $3,
			    paid_at = COALESCE(paid_at, $4),
			    payment_reference = COALESCE($5, payment_reference),
			    updated_at = now()
			WHERE id = $1 AND status NOT IN ('paid','cancelled')
		`
		tag, err = tx.Exec(ctx, query, invoiceID, string(tr.To), tr.AmountPaid, tr.PaidAt, nullable(reference))
	case InvoiceOverdue:
		const query = `
			UPDATE invoices
			SET status = 'overdue',
			    overdue_reason = $2,
			    updated_at = now()
			WHERE id = $1 AND status NOT IN ('paid','cancelled')
		`
		tag, err = tx.Exec(ctx, query, invoiceID, tr.OverdueReason)
	default:
		return false, fmt.Errorf("account: unsupported invoice transition to %q", tr.To)
	}
	if err != nil {
		return false, fmt.Errorf("account: apply invoice transition: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyOrderTransition persists a computed order transition under the same
// conditional-update discipline as invoices.
func (r *Repository) ApplyOrderTransition(ctx context.Context, tx pgx.Tx, orderID string, tr OrderTransition, reference string) (bool, error) {
	if tr.NoOp {
		return false, nil
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	switch tr.To {
	case OrderPaid:
		const query = `
			UPDATE orders
			SET payment_status = 'paid',
			    total_paid = $2,
			    paid_at = COALESCE(paid_at, $3),
			    payment_reference = COALESCE($4, payment_reference),
			    updated_at = now()
			WHERE id = $1 AND payment_status = 'pending'
		`
		tag, err = tx.Exec(ctx, query, orderID, tr.TotalPaid, tr.PaidAt, nullable(reference))
	case OrderFailed:
		const query = `
			UPDATE orders
			SET payment_status = 'failed',
			    failure_reason = $2,
			    updated_at = now()
			WHERE id = $1 AND payment_status = 'pending'
		`
		tag, err = tx.Exec(ctx, query, orderID, tr.FailureReason)
	default:
		return false, fmt.Errorf("account: unsupported order transition to %q", tr.To)
	}
	if err != nil {
		return false, fmt.Errorf("account: apply order transition: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.Number,
		&inv.Status,
		&inv.Currency,
		&inv.AmountDue,
		&inv.AmountPaid,
		&inv.DueDate,
		&inv.PaymentReference,
		&inv.OverdueReason,
		&inv.PaidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	return inv, err
}

func scanOrder(row rowScanner) (Order, error) {
	var ord Order
	err := row.Scan(
		&ord.ID,
		&ord.Number,
		&ord.PaymentStatus,
		&ord.PaymentMethod,
		&ord.Currency,
		&ord.Total,
		&ord.TotalPaid,
		&ord.PaymentReference,
		&ord.FailureReason,
		&ord.PaidAt,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	return ord, err
}
