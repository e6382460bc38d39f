package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/paysync/internal/charges"
	"github.com/angelmondragon/paysync/pkg/db/models"
	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"github.com/angelmondragon/paysync/pkg/logger"
	"github.com/angelmondragon/paysync/pkg/metrics"
)

const (
	resultProcessed = "processed"
	resultDuplicate = "duplicate"
	resultIgnored   = "ignored"
	resultFailed    = "failed"
)

var chargeEventTypes = map[stripe.EventType]struct{}{
	stripe.EventTypeChargeSucceeded: {},
	stripe.EventTypeChargeFailed:    {},
	stripe.EventTypeChargePending:   {},
	stripe.EventTypeChargeCaptured:  {},
	stripe.EventTypeChargeRefunded:  {},
	stripe.EventTypeChargeUpdated:   {},
	stripe.EventTypeChargeExpired:   {},
}

type chargeSyncer interface {
	Sync(ctx context.Context, chargeID string, remote *charges.RemoteCharge, retries int) (*models.Charge, error)
}

type ServiceParams struct {
	Syncer  chargeSyncer
	Metrics *metrics.ChargeSyncMetrics
	Logger  *logger.Logger
}

type Service struct {
	syncer  chargeSyncer
	metrics *metrics.ChargeSyncMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Syncer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge syncer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		syncer:  params.Syncer,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// HandleEvent syncs the charge carried by a charge.* event. The event payload
// is used as the remote object so no extra fetch happens. Other event types
// are acknowledged and dropped.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithEventID(ctx, event.ID)
	eventType := string(event.Type)

	if _, ok := chargeEventTypes[event.Type]; !ok {
		s.metrics.IncWebhook(eventType, resultIgnored)
		s.logg.Debug(s.logg.WithField(ctx, "event_type", eventType), "stripe event ignored")
		return nil
	}

	remote, err := charges.DecodeRemoteCharge(event.Data.Raw)
	if err != nil {
		s.metrics.IncWebhook(eventType, resultFailed)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
	}
	if remote.ID == "" {
		s.metrics.IncWebhook(eventType, resultFailed)
		return pkgerrors.New(pkgerrors.CodeValidation, "charge id missing")
	}

	if _, err := s.syncer.Sync(ctx, remote.ID, remote, charges.UseDefaultRetries); err != nil {
		s.metrics.IncWebhook(eventType, resultFailed)
		return err
	}
	s.metrics.IncWebhook(eventType, resultProcessed)
	return nil
}

// RecordDuplicate counts a redelivered event that was skipped.
func (s *Service) RecordDuplicate(ctx context.Context, event *stripe.Event) {
	if event == nil {
		return
	}
	s.metrics.IncWebhook(string(event.Type), resultDuplicate)
	s.logg.Info(s.logg.WithEventID(ctx, event.ID), "duplicate stripe event skipped")
}
