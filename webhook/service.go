package webhook

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"settleflow/account"
	"settleflow/settlement"
)

var (
	// ErrBadSignature signals the header signature does not match the body.
	ErrBadSignature = errors.New("webhook: signature mismatch")
	// ErrAccountNotFound signals the embedded account id resolves to
	// nothing. The gateway payload is authoritative here, so this is a
	// data-integrity condition, not a benign miss.
	ErrAccountNotFound = errors.New("webhook: account not found for embedded id")
)

// AccountResolver resolves the embedded account id against internal records.
type AccountResolver interface {
	GetInvoice(ctx context.Context, db account.DB, id string) (account.Invoice, error)
	GetOrder(ctx context.Context, db account.DB, id string) (account.Order, error)
}

// Processor is the shared settlement pipeline both channels feed.
type Processor interface {
	ProcessSettlement(ctx context.Context, target account.Handle, ev settlement.Event) (settlement.Result, error)
}

// Service is the real-time settlement path: one invocation per gateway call,
// safe to run fully concurrently because all idempotency lives in the ledger.
type Service struct {
	secret    []byte
	currency  string
	db        account.DB
	accounts  AccountResolver
	processor Processor
	log       *zap.Logger
}

func NewService(secret []byte, currency string, db account.DB, accounts AccountResolver, processor Processor, log *zap.Logger) *Service {
	if accounts == nil {
		accounts = account.NewRepository()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if currency == "" {
		currency = "ZAR"
	}
	return &Service{
		secret:    secret,
		currency:  currency,
		db:        db,
		accounts:  accounts,
		processor: processor,
		log:       log,
	}
}

// HandleNotification verifies, decodes, resolves, and applies one gateway
// webhook call. Malformed payloads and bad signatures reject before any
// write. A persistence failure propagates: the gateway retries, and the
// trace-id idempotency key makes the retry safe.
func (s *Service) HandleNotification(ctx context.Context, rawBody []byte, signature string) (settlement.Result, error) {
	ok, err := VerifySignature(rawBody, signature, s.secret)
	if err != nil {
		return settlement.Result{}, err
	}
	if !ok {
		s.log.Warn("webhook signature rejected", zap.Int("body_len", len(rawBody)))
		return settlement.Result{}, ErrBadSignature
	}

	n, err := ParseNotification(rawBody)
	if err != nil {
		return settlement.Result{}, err
	}

	target, err := s.resolve(ctx, n.AccountID)
	if err != nil {
		return settlement.Result{}, err
	}

	outcome := settlement.OutcomeUnpaid
	if n.Accepted {
		outcome = settlement.OutcomeAccepted
	}
	ev := settlement.Event{
		ExternalID: n.TraceID,
		Reference:  n.Reference,
		Amount:     n.Amount,
		Currency:   s.currency,
		Outcome:    outcome,
		Reason:     n.FailureReason,
		RawPayload: n.Raw,
	}

	result, err := s.processor.ProcessSettlement(ctx, target, ev)
	if err != nil {
		return settlement.Result{}, fmt.Errorf("webhook: process trace %s: %w", n.TraceID, err)
	}
	return result, nil
}

// resolve looks the embedded account id up directly, bypassing the reference
// index: the gateway told us exactly which account it charged.
func (s *Service) resolve(ctx context.Context, accountID string) (account.Handle, error) {
	inv, err := s.accounts.GetInvoice(ctx, s.db, accountID)
	switch {
	case err == nil:
		return account.HandleForInvoice(inv), nil
	case !errors.Is(err, account.ErrInvoiceNotFound):
		return account.Handle{}, err
	}

	ord, err := s.accounts.GetOrder(ctx, s.db, accountID)
	switch {
	case err == nil:
		return account.HandleForOrder(ord), nil
	case !errors.Is(err, account.ErrOrderNotFound):
		return account.Handle{}, err
	}

	s.log.Error("webhook account id unresolvable", zap.String("account_id", accountID))
	return account.Handle{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
}
