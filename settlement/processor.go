package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"settleflow/account"
	"settleflow/ledger"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerStore is the slice of the ledger repository the processor uses.
type LedgerStore interface {
	Insert(ctx context.Context, tx pgx.Tx, rec ledger.TransactionRecord) error
	Complete(ctx context.Context, tx pgx.Tx, id string, status ledger.Status, completedAt time.Time) error
}

// AccountStore is the slice of the account repository the processor uses.
// Reads go through the FOR UPDATE variants: the row lock serializes racing
// settlements so each one computes its transition from the committed balance
// of the previous, not from a shared stale read.
type AccountStore interface {
	GetInvoiceForUpdate(ctx context.Context, tx pgx.Tx, id string) (account.Invoice, error)
	GetOrderForUpdate(ctx context.Context, tx pgx.Tx, id string) (account.Order, error)
	ApplyInvoiceTransition(ctx context.Context, tx pgx.Tx, invoiceID string, tr account.InvoiceTransition, reference string) (bool, error)
	ApplyOrderTransition(ctx context.Context, tx pgx.Tx, orderID string, tr account.OrderTransition, reference string) (bool, error)
}

// Processor is the single consumer pipeline behind both the webhook and the
// batch path: ledger write, state transition, account update, one transaction.
type Processor struct {
	pool     TxBeginner
	ledger   LedgerStore
	accounts AccountStore
	log      *zap.Logger
	idGen    func() string
	now      func() time.Time
}

func NewProcessor(pool TxBeginner, ledgerStore LedgerStore, accountStore AccountStore, log *zap.Logger) *Processor {
	if ledgerStore == nil {
		ledgerStore = ledger.NewRepository()
	}
	if accountStore == nil {
		accountStore = account.NewRepository()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		pool:     pool,
		ledger:   ledgerStore,
		accounts: accountStore,
		log:      log,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

// ProcessSettlement applies one settlement event to its target account as one
// unit of work. The ledger row is written first: its unique external id makes
// replays detectable before any account state is touched, and an account
// update can never commit without its backing transaction record.
//
// A replayed external id short-circuits with AlreadyProcessed and leaves the
// account untouched. Terminal accounts still get their ledger row for audit,
// with Applied false.
func (p *Processor) ProcessSettlement(ctx context.Context, target account.Handle, ev Event) (Result, error) {
	if ev.ExternalID == "" {
		return Result{}, fmt.Errorf("settlement: missing external transaction id")
	}
	if target.ID == "" {
		return Result{}, fmt.Errorf("settlement: missing target account id")
	}

	result := Result{
		AccountKind:  target.Kind,
		AccountID:    target.ID,
		ExternalID:   ev.ExternalID,
		LedgerStatus: ledgerStatusFor(ev.Outcome),
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("settlement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec := ledger.TransactionRecord{
		ID:          p.idGen(),
		ExternalID:  ev.ExternalID,
		AccountKind: target.Kind,
		AccountID:   target.ID,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		Status:      ledger.StatusPending,
		RawPayload:  ev.RawPayload,
		ReceivedAt:  receivedAt(ev, p.now),
	}
	if ev.Reason != "" {
		reason := ev.Reason
		rec.FailureReason = &reason
	}

	if err := p.ledger.Insert(ctx, tx, rec); err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			p.log.Info("settlement replay ignored",
				zap.String("external_id", ev.ExternalID),
				zap.String("account_id", target.ID))
			result.AlreadyProcessed = true
			return result, nil
		}
		return Result{}, err
	}
	result.TransactionID = rec.ID

	applied, err := p.applyToAccount(ctx, tx, target, ev)
	if err != nil {
		return Result{}, err
	}
	result.Applied = applied

	if err := p.ledger.Complete(ctx, tx, rec.ID, result.LedgerStatus, p.now()); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("settlement: commit tx: %w", err)
	}

	p.log.Info("settlement applied",
		zap.String("external_id", ev.ExternalID),
		zap.String("account_kind", string(target.Kind)),
		zap.String("account_id", target.ID),
		zap.String("outcome", string(ev.Outcome)),
		zap.Bool("account_updated", applied))

	return result, nil
}

func (p *Processor) applyToAccount(ctx context.Context, tx pgx.Tx, target account.Handle, ev Event) (bool, error) {
	st := account.Settlement{
		Accepted: ev.Accepted(),
		Amount:   ev.Amount,
		Reason:   ev.Reason,
		At:       receivedAt(ev, p.now),
	}

	switch target.Kind {
	case account.KindInvoice:
		inv, err := p.accounts.GetInvoiceForUpdate(ctx, tx, target.ID)
		if err != nil {
			return false, err
		}
		tr := account.ApplyToInvoice(inv, st)
		if tr.AmountMismatch {
			p.log.Warn("settlement amount differs from open balance",
				zap.String("invoice_id", inv.ID),
				zap.String("settled", ev.Amount.String()),
				zap.String("open", inv.AmountDue.Sub(inv.AmountPaid).String()))
		}
		return p.accounts.ApplyInvoiceTransition(ctx, tx, inv.ID, tr, ev.Reference)
	case account.KindOrder:
		ord, err := p.accounts.GetOrderForUpdate(ctx, tx, target.ID)
		if err != nil {
			return false, err
		}
		tr := account.ApplyToOrder(ord, st)
		if tr.AmountMismatch {
			p.log.Warn("settlement amount differs from order total",
				zap.String("order_id", ord.ID),
				zap.String("settled", ev.Amount.String()),
				zap.String("total", ord.Total.String()))
		}
		return p.accounts.ApplyOrderTransition(ctx, tx, ord.ID, tr, ev.Reference)
	default:
		return false, fmt.Errorf("settlement: unknown account kind %q", target.Kind)
	}
}

func ledgerStatusFor(outcome Outcome) ledger.Status {
	if outcome == OutcomeAccepted {
		return ledger.StatusCompleted
	}
	return ledger.StatusFailed
}

func receivedAt(ev Event, now func() time.Time) time.Time {
	if !ev.OccurredAt.IsZero() {
		return ev.OccurredAt
	}
	return now()
}
