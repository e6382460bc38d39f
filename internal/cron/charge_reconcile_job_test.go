package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/logger"
)

type stubLister struct {
	charges  []models.Charge
	err      error
	limit    int
	lookback time.Duration
}

func (s *stubLister) ListForReconcile(_ context.Context, limit int, lookback time.Duration) ([]models.Charge, error) {
	s.limit, s.lookback = limit, lookback
	return s.charges, s.err
}

func charge(processorID string) models.Charge {
	return models.Charge{ID: uuid.New(), ProcessorID: processorID}
}

func TestChargeReconcileRefreshesEveryCandidate(t *testing.T) {
	lister := &stubLister{charges: []models.Charge{charge("ch_1"), charge("ch_2"), charge("ch_3")}}
	var seen []string
	job, err := NewChargeReconcileJob(ChargeReconcileJobParams{
		Logger:  logger.Nop(),
		Charges: lister,
		Refresher: RefresherFunc(func(_ context.Context, c *models.Charge) (*models.Charge, error) {
			seen = append(seen, c.ProcessorID)
			if c.ProcessorID == "ch_2" {
				return nil, errors.New("stripe unavailable")
			}
			return c, nil
		}),
	})
	require.NoError(t, err)
	require.Equal(t, "charge-reconcile", job.Name())

	err = job.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "reconcile ch_2")
	require.Equal(t, []string{"ch_1", "ch_2", "ch_3"}, seen)
	require.Equal(t, defaultReconcileLimit, lister.limit)
	require.Equal(t, defaultReconcileLookback, lister.lookback)
}

func TestChargeReconcilePassesWindow(t *testing.T) {
	lister := &stubLister{}
	job, err := NewChargeReconcileJob(ChargeReconcileJobParams{
		Logger:    logger.Nop(),
		Charges:   lister,
		Refresher: RefresherFunc(func(context.Context, *models.Charge) (*models.Charge, error) { return nil, nil }),
		Limit:     10,
		Lookback:  time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 10, lister.limit)
	require.Equal(t, time.Hour, lister.lookback)
}

func TestChargeReconcileListFailure(t *testing.T) {
	job, err := NewChargeReconcileJob(ChargeReconcileJobParams{
		Logger:    logger.Nop(),
		Charges:   &stubLister{err: errors.New("db down")},
		Refresher: RefresherFunc(func(context.Context, *models.Charge) (*models.Charge, error) { return nil, nil }),
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "list charges for reconciliation")
}

func TestChargeReconcileStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	job, err := NewChargeReconcileJob(ChargeReconcileJobParams{
		Logger:  logger.Nop(),
		Charges: &stubLister{charges: []models.Charge{charge("ch_1"), charge("ch_2")}},
		Refresher: RefresherFunc(func(context.Context, *models.Charge) (*models.Charge, error) {
			calls++
			cancel()
			return nil, nil
		}),
	})
	require.NoError(t, err)
	require.ErrorIs(t, job.Run(ctx), context.Canceled)
	require.Equal(t, 1, calls)
}

func TestNewChargeReconcileJobRequirements(t *testing.T) {
	refresher := RefresherFunc(func(context.Context, *models.Charge) (*models.Charge, error) { return nil, nil })
	_, err := NewChargeReconcileJob(ChargeReconcileJobParams{Charges: &stubLister{}, Refresher: refresher})
	require.Error(t, err)
	_, err = NewChargeReconcileJob(ChargeReconcileJobParams{Logger: logger.Nop(), Refresher: refresher})
	require.Error(t, err)
	_, err = NewChargeReconcileJob(ChargeReconcileJobParams{Logger: logger.Nop(), Charges: &stubLister{}})
	require.Error(t, err)
}
