package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"settleflow/account"
	"settleflow/settlement"
)

// Replayer hammers the pipeline with the same external transaction id,
// modelling a gateway that retries aggressively. Every call after the first
// must come back already-processed.
func Replayer(ctx context.Context, proc *settlement.Processor, target account.Handle, externalID string, stop <-chan struct{}) error {
	ev := settlement.Event{
		ExternalID: externalID,
		Reference:  target.Reference,
		Amount:     target.Expected,
		Currency:   "ZAR",
		Outcome:    settlement.OutcomeAccepted,
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		// Transient errors model the gateway retry loop: try again.
		_, _ = proc.ProcessSettlement(ctx, target, ev)
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// FreshSettler races success events with brand-new external ids at the same
// account: two channels both claiming the payment. Only the first may move
// the account; the rest must land as audit-only ledger rows.
func FreshSettler(ctx context.Context, proc *settlement.Processor, target account.Handle, prefix string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		ev := settlement.Event{
			ExternalID: fmt.Sprintf("%s-%d-%d", prefix, rand.Int63(), i),
			Reference:  target.Reference,
			Amount:     target.Expected,
			Currency:   "ZAR",
			Outcome:    settlement.OutcomeAccepted,
		}
		_, _ = proc.ProcessSettlement(ctx, target, ev)
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// PartialSettler drips small fixed partial payments at one large invoice
// from fresh external ids. Every applied drip must land in amount_paid: a
// stale read under concurrency would erase earlier drips, which the ledger
// balance oracle detects.
func PartialSettler(ctx context.Context, proc *settlement.Processor, target account.Handle, prefix string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		ev := settlement.Event{
			ExternalID: fmt.Sprintf("%s-drip-%d-%d", prefix, rand.Int63(), i),
			Reference:  target.Reference,
			Amount:     decimal.RequireFromString("10.00"),
			Currency:   "ZAR",
			Outcome:    settlement.OutcomeAccepted,
		}
		_, _ = proc.ProcessSettlement(ctx, target, ev)
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// LateDecliner keeps sending unpaid events for an account the settlers are
// pushing to paid. A paid account must never regress, whatever the arrival
// order.
func LateDecliner(ctx context.Context, proc *settlement.Processor, target account.Handle, prefix string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		ev := settlement.Event{
			ExternalID: fmt.Sprintf("%s-decline-%d-%d", prefix, rand.Int63(), i),
			Reference:  target.Reference,
			Amount:     decimal.Zero,
			Currency:   "ZAR",
			Outcome:    settlement.OutcomeUnpaid,
			Reason:     "insufficient funds",
		}
		_, _ = proc.ProcessSettlement(ctx, target, ev)
		time.Sleep(time.Duration(10+rand.Intn(25)) * time.Millisecond)
	}
}
