package charges

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/paysync/pkg/db/models"
	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
)

// Service is the operation surface used by the HTTP layer.
type Service interface {
	Refund(ctx context.Context, chargeID uuid.UUID, amount int64, opts RefundOptions) (*models.Charge, error)
	SyncByProcessorID(ctx context.Context, processorID string) (*models.Charge, error)
}

type chargeLoader interface {
	FindChargeByID(ctx context.Context, id uuid.UUID) (*models.Charge, error)
}

type service struct {
	syncer *Syncer
	loader chargeLoader
}

func NewService(syncer *Syncer, loader chargeLoader) (Service, error) {
	if syncer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge syncer required")
	}
	if loader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge loader required")
	}
	return &service{syncer: syncer, loader: loader}, nil
}

func (s *service) Refund(ctx context.Context, chargeID uuid.UUID, amount int64, opts RefundOptions) (*models.Charge, error) {
	charge, err := s.loader.FindChargeByID(ctx, chargeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load charge")
	}
	if charge == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "charge not found")
	}
	handle := s.syncer.Handle(charge)
	if err := handle.Refund(ctx, amount, opts); err != nil {
		return nil, err
	}
	return handle.Charge(), nil
}

// SyncByProcessorID fetches the charge from Stripe and syncs it. A nil charge
// means the owning customer is not known locally.
func (s *service) SyncByProcessorID(ctx context.Context, processorID string) (*models.Charge, error) {
	processorID = strings.TrimSpace(processorID)
	if processorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processor id required")
	}
	return s.syncer.Sync(ctx, processorID, nil, UseDefaultRetries)
}
