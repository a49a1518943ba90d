package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"settleflow/account"
	"settleflow/settlement"
)

// DefaultRunBudget bounds one run's wall clock; a run that hits it degrades
// to a partial report instead of hanging the scheduler.
const DefaultRunBudget = 15 * time.Minute

// AccountLister loads the pending accounts a run cross-checks.
type AccountLister interface {
	PendingInvoices(ctx context.Context, db account.DB, asOf time.Time) ([]account.Invoice, error)
	PendingOrders(ctx context.Context, db account.DB, paymentMethod string) ([]account.Order, error)
}

// SettlementProcessor is the shared pipeline both channels feed.
type SettlementProcessor interface {
	ProcessSettlement(ctx context.Context, target account.Handle, ev settlement.Event) (settlement.Result, error)
}

// RunStore persists run summaries.
type RunStore interface {
	Create(ctx context.Context, run Run) error
}

// Job is the nightly batch path: load pending accounts, build the reference
// index, fetch the day's statement, and push every matched line through the
// same ledger-first pipeline the webhook path uses. Re-running a date is safe
// because each statement line carries its own external transaction id.
type Job struct {
	db            account.DB
	accounts      AccountLister
	fetcher       StatementFetcher
	processor     SettlementProcessor
	runs          RunStore
	log           *zap.Logger
	currency      string
	paymentMethod string
	budget        time.Duration
	idGen         func() string
	now           func() time.Time
}

// JobConfig tunes a Job; zero values fall back to defaults.
type JobConfig struct {
	Currency      string
	PaymentMethod string
	Budget        time.Duration
}

func NewJob(db account.DB, accounts AccountLister, fetcher StatementFetcher, processor SettlementProcessor, runs RunStore, log *zap.Logger, cfg JobConfig) *Job {
	if accounts == nil {
		accounts = account.NewRepository()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "ZAR"
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = "debit_order"
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultRunBudget
	}
	return &Job{
		db:            db,
		accounts:      accounts,
		fetcher:       fetcher,
		processor:     processor,
		runs:          runs,
		log:           log,
		currency:      cfg.Currency,
		paymentMethod: cfg.PaymentMethod,
		budget:        cfg.Budget,
		idGen:         func() string { return uuid.NewString() },
		now:           time.Now,
	}
}

// Run reconciles one business date (default yesterday, allowing settlement
// lag) and persists the summary whatever happens. Per-entry failures are
// recorded and skipped; only a failure to persist the summary itself is
// returned as an error.
func (j *Job) Run(ctx context.Context, date time.Time) (Run, error) {
	if date.IsZero() {
		date = j.now().AddDate(0, 0, -1)
	}
	date = date.UTC().Truncate(24 * time.Hour)

	run := Run{
		ID:        j.idGen(),
		Date:      date,
		StartedAt: j.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, j.budget)
	defer cancel()

	idx, err := j.buildIndex(ctx, date)
	if err != nil {
		return j.finish(ctx, run, RunError{Message: err.Error()})
	}

	entries, err := j.fetcher.FetchStatement(ctx, date)
	if err != nil {
		j.log.Error("statement fetch failed", zap.Time("date", date), zap.Error(err))
		return j.finish(ctx, run, RunError{Message: err.Error()})
	}

	j.log.Info("statement fetched",
		zap.Time("date", date),
		zap.Int("entries", len(entries)),
		zap.Int("index_keys", idx.Len()))

	for _, entry := range entries {
		if ctx.Err() != nil {
			run.Errors = append(run.Errors, RunError{Message: fmt.Sprintf("run budget exhausted: %v", ctx.Err())})
			break
		}
		j.processEntry(ctx, idx, date, entry, &run)
	}

	return j.finish(ctx, run)
}

func (j *Job) buildIndex(ctx context.Context, date time.Time) (*account.Index, error) {
	var (
		invoices []account.Invoice
		orders   []account.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = j.accounts.PendingInvoices(gctx, j.db, date)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = j.accounts.PendingOrders(gctx, j.db, j.paymentMethod)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconciliation: load pending accounts: %w", err)
	}
	return account.NewIndex(invoices, orders), nil
}

func (j *Job) processEntry(ctx context.Context, idx *account.Index, date time.Time, entry StatementEntry, run *Run) {
	target, found := idx.Lookup(entry.Reference)
	if !found {
		run.NotFound++
		j.log.Debug("statement reference not matched", zap.String("reference", entry.Reference))
		return
	}

	outcome := settlement.OutcomeUnpaid
	if entry.Status == EntrySuccessful {
		outcome = settlement.OutcomeAccepted
	}
	reason := entry.UnpaidReason
	if reason == "" && entry.UnpaidCode != "" {
		reason = entry.UnpaidCode
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		run.Errors = append(run.Errors, RunError{Reference: entry.Reference, Message: err.Error()})
		return
	}

	ev := settlement.Event{
		ExternalID: entry.TransactionCode,
		Reference:  entry.Reference,
		Amount:     entry.Amount,
		Currency:   j.currency,
		Outcome:    outcome,
		Reason:     reason,
		OccurredAt: date,
		RawPayload: raw,
	}

	if _, err := j.processor.ProcessSettlement(ctx, target, ev); err != nil {
		j.log.Error("statement entry failed",
			zap.String("reference", entry.Reference),
			zap.String("transaction_code", entry.TransactionCode),
			zap.Error(err))
		run.Errors = append(run.Errors, RunError{Reference: entry.Reference, Message: err.Error()})
		return
	}

	run.Processed++
	if outcome == settlement.OutcomeAccepted {
		run.Successful++
	} else {
		run.Unpaid++
	}
}

// finish stamps and persists the run summary. Persisting uses a fresh
// background deadline so a budget-exhausted run still writes its report.
func (j *Job) finish(ctx context.Context, run Run, extra ...RunError) (Run, error) {
	run.Errors = append(run.Errors, extra...)
	done := j.now()
	run.CompletedAt = &done

	persistCtx := context.WithoutCancel(ctx)
	persistCtx, cancel := context.WithTimeout(persistCtx, 30*time.Second)
	defer cancel()

	if err := j.runs.Create(persistCtx, run); err != nil {
		return run, fmt.Errorf("reconciliation: persist run: %w", err)
	}

	j.log.Info("reconciliation run complete",
		zap.String("run_id", run.ID),
		zap.Time("date", run.Date),
		zap.Int("processed", run.Processed),
		zap.Int("successful", run.Successful),
		zap.Int("unpaid", run.Unpaid),
		zap.Int("not_found", run.NotFound),
		zap.Int("errors", len(run.Errors)))

	return run, nil
}
