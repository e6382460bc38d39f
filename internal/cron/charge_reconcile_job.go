package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/logger"
)

const (
	defaultReconcileLimit    = 250
	defaultReconcileLookback = 72 * time.Hour
)

type chargeLister interface {
	ListForReconcile(ctx context.Context, limit int, lookback time.Duration) ([]models.Charge, error)
}

// chargeRefresher re-fetches one stored charge and converges it.
type chargeRefresher interface {
	Refresh(ctx context.Context, charge *models.Charge) (*models.Charge, error)
}

// RefresherFunc adapts a function to chargeRefresher.
type RefresherFunc func(ctx context.Context, charge *models.Charge) (*models.Charge, error)

func (f RefresherFunc) Refresh(ctx context.Context, charge *models.Charge) (*models.Charge, error) {
	return f(ctx, charge)
}

type ChargeReconcileJobParams struct {
	Logger    *logger.Logger
	Charges   chargeLister
	Refresher chargeRefresher
	Limit     int
	Lookback  time.Duration
}

// NewChargeReconcileJob builds the job that re-syncs recently created
// charges, catching webhook deliveries that never arrived.
func NewChargeReconcileJob(params ChargeReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Charges == nil {
		return nil, fmt.Errorf("charge lister required")
	}
	if params.Refresher == nil {
		return nil, fmt.Errorf("charge refresher required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	return &chargeReconcileJob{
		logg:      params.Logger,
		charges:   params.Charges,
		refresher: params.Refresher,
		limit:     limit,
		lookback:  lookback,
	}, nil
}

type chargeReconcileJob struct {
	logg      *logger.Logger
	charges   chargeLister
	refresher chargeRefresher
	limit     int
	lookback  time.Duration
}

func (j *chargeReconcileJob) Name() string { return "charge-reconcile" }

// Run refreshes every candidate and returns the combined failures; one bad
// charge does not stop the rest.
func (j *chargeReconcileJob) Run(ctx context.Context) error {
	candidates, err := j.charges.ListForReconcile(ctx, j.limit, j.lookback)
	if err != nil {
		return fmt.Errorf("list charges for reconciliation: %w", err)
	}

	var errs error
	synced := 0
	for i := range candidates {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		charge := &candidates[i]
		chargeCtx := j.logg.WithChargeID(ctx, charge.ProcessorID)
		if _, err := j.refresher.Refresh(chargeCtx, charge); err != nil {
			j.logg.Warn(j.logg.WithField(chargeCtx, "error", err.Error()), "charge reconcile failed")
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", charge.ProcessorID, err))
			continue
		}
		synced++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"synced":     synced,
	}), "charge reconcile loop complete")
	return errs
}
