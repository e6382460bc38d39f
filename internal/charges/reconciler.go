package charges

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"github.com/angelmondragon/paysync/pkg/logger"
	"github.com/angelmondragon/paysync/pkg/metrics"
)

const (
	// DefaultRetries is how many extra attempts a conflicted sync gets.
	DefaultRetries = 1
	// UseDefaultRetries asks Sync to use the Syncer's configured count.
	UseDefaultRetries = -1

	defaultBackoff = 100 * time.Millisecond
)

// Expansions requested when a charge is fetched for a local record.
var fetchExpansions = []string{"customer", "invoice.subscription"}

// RemoteAPI is the processor capability the sync consumes.
type RemoteAPI interface {
	RetrieveCharge(ctx context.Context, id string, expand []string, account string) (*RemoteCharge, error)
	RetrieveInvoice(ctx context.Context, id string) (*RemoteInvoice, error)
	CreateRefund(ctx context.Context, chargeID string, amount int64, opts RefundOptions, account string) (*RemoteRefund, error)
}

// Store is the persistence capability the sync consumes. Finders return
// nil, nil when nothing matches. CreateCharge and UpdateChargeUnderLock
// report ErrValidationConflict on constraint violations.
type Store interface {
	FindCustomer(ctx context.Context, processor enums.Processor, processorID string) (*models.Customer, error)
	FindCharge(ctx context.Context, customerID uuid.UUID, processorID string) (*models.Charge, error)
	FindSubscription(ctx context.Context, customerID uuid.UUID, processorID string) (*models.Subscription, error)
	CreateCharge(ctx context.Context, charge *models.Charge) error
	UpdateChargeUnderLock(ctx context.Context, charge *models.Charge, attrs Attributes) error
	UpdateAmountRefunded(ctx context.Context, chargeID uuid.UUID, amount int64) error
}

type SyncerParams struct {
	API     RemoteAPI
	Store   Store
	Logger  *logger.Logger
	Metrics *metrics.ChargeSyncMetrics
	Retries int
	Backoff time.Duration
}

// Syncer reconciles local charges with Stripe.
type Syncer struct {
	api      RemoteAPI
	store    Store
	logg     *logger.Logger
	metrics  *metrics.ChargeSyncMetrics
	retries  int
	backoff  time.Duration
	validate *validator.Validate
}

func NewSyncer(params SyncerParams) (*Syncer, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "remote api required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge store required")
	}
	if params.Retries < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "retries must not be negative")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Syncer{
		api:      params.API,
		store:    params.Store,
		logg:     logg,
		metrics:  params.Metrics,
		retries:  params.Retries,
		backoff:  backoff,
		validate: validator.New(),
	}, nil
}

// Retries returns the configured retry count.
func (s *Syncer) Retries() int {
	return s.retries
}

// Sync converges the local copy of chargeID with Stripe. remote may be nil,
// in which case the charge is fetched. It returns nil, nil when the charge
// belongs to a customer unknown locally. A write conflict re-runs the whole
// sync up to retries more times (UseDefaultRetries for the configured count)
// with a fixed backoff.
func (s *Syncer) Sync(ctx context.Context, chargeID string, remote *RemoteCharge, retries int) (*models.Charge, error) {
	if retries < 0 {
		retries = s.retries
	}
	started := time.Now()
	ctx = s.logg.WithChargeID(ctx, chargeID)

	var (
		result  *models.Charge
		outcome string
		attempt int
	)
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewConstant(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.IncRetry()
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "retrying charge sync after write conflict")
		}

		if remote == nil {
			fetched, err := s.api.RetrieveCharge(ctx, chargeID, nil, "")
			if err != nil {
				return remoteError(err, "retrieve charge")
			}
			remote = fetched
		}

		charge, o, err := s.syncOnce(ctx, chargeID, remote)
		if errors.Is(err, ErrValidationConflict) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		result, outcome = charge, o
		return nil
	})
	if err != nil {
		s.metrics.ObserveOutcome(metrics.OutcomeFailed, time.Since(started))
		s.logg.Error(s.logg.WithField(ctx, "attempts", attempt), "charge sync failed", err)
		return nil, err
	}

	s.metrics.ObserveOutcome(outcome, time.Since(started))
	return result, nil
}

func (s *Syncer) syncOnce(ctx context.Context, chargeID string, remote *RemoteCharge) (*models.Charge, string, error) {
	if remote.Customer.ID == "" {
		s.logg.Debug(ctx, "charge has no customer, skipping")
		return nil, metrics.OutcomeSkipped, nil
	}
	customer, err := s.store.FindCustomer(ctx, enums.ProcessorStripe, remote.Customer.ID)
	if err != nil {
		return nil, "", err
	}
	if customer == nil {
		s.logg.Debug(s.logg.WithField(ctx, "stripe_customer", remote.Customer.ID), "no local customer for charge, skipping")
		return nil, metrics.OutcomeSkipped, nil
	}
	ctx = s.logg.WithField(ctx, "customer_id", customer.ID.String())

	account := ""
	if customer.StripeAccount != nil {
		account = *customer.StripeAccount
	}
	attrs := Normalize(remote, account)
	if remote.Invoice != nil {
		attrs.Subscription = s.linkSubscription(ctx, customer, remote.Invoice)
	}

	processorID := remote.ID
	if processorID == "" {
		processorID = chargeID
	}

	existing, err := s.store.FindCharge(ctx, customer.ID, processorID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		if err := s.store.UpdateChargeUnderLock(ctx, existing, attrs); err != nil {
			return nil, "", err
		}
		return existing, metrics.OutcomeUpdated, nil
	}

	charge := attrs.NewCharge(customer.ID, processorID)
	if err := s.store.CreateCharge(ctx, charge); err != nil {
		return nil, "", err
	}
	return charge, metrics.OutcomeCreated, nil
}

// linkSubscription resolves invoice -> subscription. Every failure yields an
// empty link so the charge is stored without one.
func (s *Syncer) linkSubscription(ctx context.Context, customer *models.Customer, ref *InvoiceRef) *SubscriptionLink {
	link := &SubscriptionLink{}

	invoice := ref.Expanded
	if invoice == nil {
		if ref.ID == "" {
			return link
		}
		fetched, err := s.api.RetrieveInvoice(ctx, ref.ID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "invoice_id", ref.ID), "invoice lookup failed, charge stored without subscription")
			return link
		}
		invoice = fetched
	}
	if invoice == nil || invoice.Subscription.ID == "" {
		return link
	}

	sub, err := s.store.FindSubscription(ctx, customer.ID, invoice.Subscription.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "subscription", invoice.Subscription.ID), "subscription lookup failed, charge stored without subscription")
		return link
	}
	if sub != nil {
		link.ID = &sub.ID
	}
	return link
}
