package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

const verificationGracePeriod = 7 * 24 * time.Hour

type VerificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository verificationTokenRepo
	Grace      time.Duration
}

type verificationTokenRepo interface {
	ClearExpiredVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewVerificationCleanupJob drops verification tokens that expired more than
// the grace period ago. The account stays; the seller can request a new link.
func NewVerificationCleanupJob(params VerificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("users repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = verificationGracePeriod
	}
	return &verificationCleanupJob{
		logg:  params.Logger,
		repo:  params.Repository,
		grace: grace,
		now:   time.Now,
	}, nil
}

type verificationCleanupJob struct {
	logg  *logger.Logger
	repo  verificationTokenRepo
	grace time.Duration
	now   func() time.Time
}

func (j *verificationCleanupJob) Name() string { return "verification-token-cleanup" }

func (j *verificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	cleared, err := j.repo.ClearExpiredVerificationTokens(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("verification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_cleared": cleared})
	j.logg.Info(logCtx, "verification token cleanup complete")
	return nil
}
