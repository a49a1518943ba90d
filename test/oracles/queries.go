package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the settlement invariants checked continuously during stress.
// Each query selects violating rows; an empty result means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_external_id",
			SQL: `SELECT external_id, COUNT(*) FROM transaction_ledger
                  GROUP BY external_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_paid_invoice_backed_by_ledger",
			SQL: `SELECT i.id FROM invoices i
                  WHERE i.status = 'paid'
                    AND NOT EXISTS (
                        SELECT 1 FROM transaction_ledger l
                        WHERE l.account_kind = 'invoice'
                          AND l.account_id = i.id
                          AND l.status = 'completed')`,
		},
		{
			Name: "O3_paid_order_backed_by_ledger",
			SQL: `SELECT o.id FROM orders o
                  WHERE o.payment_status = 'paid'
                    AND NOT EXISTS (
                        SELECT 1 FROM transaction_ledger l
                        WHERE l.account_kind = 'order'
                          AND l.account_id = o.id
                          AND l.status = 'completed')`,
		},
		{
			Name: "O4_paid_invoice_never_regressed",
			SQL: `SELECT id, status FROM invoices
                  WHERE paid_at IS NOT NULL AND status NOT IN ('paid','cancelled')`,
		},
		{
			Name: "O5_paid_order_never_regressed",
			SQL: `SELECT id, payment_status FROM orders
                  WHERE paid_at IS NOT NULL AND payment_status <> 'paid'`,
		},
		{
			Name: "O6_completed_ledger_rows_stamped",
			SQL: `SELECT id FROM transaction_ledger
                  WHERE status IN ('completed','failed') AND completed_at IS NULL`,
		},
		{
			Name: "O7_run_counts_consistent",
			SQL: `SELECT id FROM reconciliation_runs
                  WHERE processed < 0 OR successful < 0 OR unpaid < 0 OR not_found < 0
                     OR successful + unpaid > processed`,
		},
		{
			Name: "O8_invoice_balance_matches_ledger",
			SQL: `SELECT i.id, i.status, i.amount_paid FROM invoices i
                  WHERE (i.status = 'partial'
                         AND i.amount_paid <> COALESCE((
                             SELECT SUM(l.amount) FROM transaction_ledger l
                             WHERE l.account_kind = 'invoice'
                               AND l.account_id = i.id
                               AND l.status = 'completed'), 0))
                     OR (i.status IN ('unpaid','overdue')
                         AND EXISTS (
                             SELECT 1 FROM transaction_ledger l
                             WHERE l.account_kind = 'invoice'
                               AND l.account_id = i.id
                               AND l.status = 'completed'))`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
