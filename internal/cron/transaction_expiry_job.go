package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

const (
	expiryBatchSize  = 100
	expiryMaxBatches = 20
)

type overdueExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type TransactionExpiryJobParams struct {
	Logger       *logger.Logger
	Transactions overdueExpirer
	BatchSize    int
}

// NewTransactionExpiryJob expires Pending transactions whose payment deadline
// has passed. Stock restoration happens inside the state machine.
func NewTransactionExpiryJob(params TransactionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = expiryBatchSize
	}
	return &transactionExpiryJob{
		logg:  params.Logger,
		txns:  params.Transactions,
		batch: batch,
		now:   time.Now,
	}, nil
}

type transactionExpiryJob struct {
	logg  *logger.Logger
	txns  overdueExpirer
	batch int
	now   func() time.Time
}

func (j *transactionExpiryJob) Name() string { return "transaction-expiry" }

func (j *transactionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for i := 0; i < expiryMaxBatches; i++ {
		expired, err := j.txns.ExpireOverdue(ctx, now, j.batch)
		total += expired
		if err != nil {
			return fmt.Errorf("expire overdue transactions: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": total, "cutoff": now})
	j.logg.Info(logCtx, "transaction expiry complete")
	return nil
}
