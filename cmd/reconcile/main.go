package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"settleflow/account"
	"settleflow/db"
	"settleflow/ledger"
	"settleflow/reconciliation"
	"settleflow/settlement"
)

func main() {
	dateFlag := flag.String("date", "", "business date to reconcile (YYYY-MM-DD, default yesterday)")
	flag.Parse()

	var date time.Time
	if *dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			log.Fatalf("invalid -date %q: %v", *dateFlag, err)
		}
		date = parsed
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"), 0)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	fetcher := reconciliation.NewHTTPStatementClient(
		os.Getenv("STATEMENT_API_URL"),
		os.Getenv("STATEMENT_CLIENT_ID"),
		[]byte(os.Getenv("STATEMENT_CLIENT_SECRET")),
	)

	processor := settlement.NewProcessor(pool, ledger.NewRepository(), account.NewRepository(), logger)
	runs := reconciliation.NewRunRepository(pool)
	job := reconciliation.NewJob(pool, account.NewRepository(), fetcher, processor, runs, logger, reconciliation.JobConfig{
		Currency:      os.Getenv("SETTLEMENT_CURRENCY"),
		PaymentMethod: os.Getenv("BATCH_PAYMENT_METHOD"),
	})

	run, err := job.Run(ctx, date)
	if err != nil {
		logger.Fatal("reconciliation run failed to persist", zap.Error(err))
	}

	logger.Info("done",
		zap.String("run_id", run.ID),
		zap.Int("processed", run.Processed),
		zap.Int("successful", run.Successful),
		zap.Int("unpaid", run.Unpaid),
		zap.Int("not_found", run.NotFound),
		zap.Int("errors", len(run.Errors)))
}
