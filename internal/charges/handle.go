package charges

import (
	"context"

	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
)

// RefundOptions are passed through to Stripe's refund creation.
type RefundOptions struct {
	Reason               enums.RefundReason `json:"reason,omitempty"`
	RefundApplicationFee *bool              `json:"refund_application_fee,omitempty"`
	ReverseTransfer      *bool              `json:"reverse_transfer,omitempty"`
	Metadata             map[string]string  `json:"metadata,omitempty" validate:"omitempty,max=50,dive,keys,required,max=40,endkeys,max=500"`
}

// Handle wraps a persisted charge with the Stripe calls scoped to it.
type Handle struct {
	charge *models.Charge
	syncer *Syncer
}

// Handle binds charge to the syncer's collaborators.
func (s *Syncer) Handle(charge *models.Charge) *Handle {
	return &Handle{charge: charge, syncer: s}
}

// Charge returns the wrapped record.
func (h *Handle) Charge() *models.Charge {
	return h.charge
}

func (h *Handle) account() string {
	if h.charge.StripeAccount == nil {
		return ""
	}
	return *h.charge.StripeAccount
}

// FetchRemote retrieves the charge with its customer and invoice
// subscription expanded, on the charge's connected account.
func (h *Handle) FetchRemote(ctx context.Context) (*RemoteCharge, error) {
	if h.charge == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge required")
	}
	remote, err := h.syncer.api.RetrieveCharge(ctx, h.charge.ProcessorID, fetchExpansions, h.account())
	if err != nil {
		return nil, remoteError(err, "retrieve charge")
	}
	return remote, nil
}

// Refresh fetches the charge on its account and converges the local copy.
func (h *Handle) Refresh(ctx context.Context) (*models.Charge, error) {
	remote, err := h.FetchRemote(ctx)
	if err != nil {
		return nil, err
	}
	return h.syncer.Sync(ctx, remote.ID, remote, UseDefaultRetries)
}

// Refund creates a Stripe refund of amount and records amount as the
// charge's refunded total.
func (h *Handle) Refund(ctx context.Context, amount int64, opts RefundOptions) error {
	if h.charge == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "charge required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if opts.Reason != "" && !opts.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown refund reason").
			WithDetails(map[string]any{"reason": opts.Reason.String()})
	}
	if err := h.syncer.validate.Struct(opts); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund options")
	}

	ctx = h.syncer.logg.WithFields(ctx, map[string]any{
		"charge_id": h.charge.ProcessorID,
		"amount":    amount,
	})
	refund, err := h.syncer.api.CreateRefund(ctx, h.charge.ProcessorID, amount, opts, h.account())
	if err != nil {
		return remoteError(err, "create refund")
	}
	if refund != nil {
		ctx = h.syncer.logg.WithField(ctx, "refund_id", refund.ID)
	}

	if err := h.syncer.store.UpdateAmountRefunded(ctx, h.charge.ID, amount); err != nil {
		h.syncer.logg.Error(ctx, "refund created but local amount not recorded", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refunded amount")
	}
	h.charge.AmountRefunded = amount
	h.syncer.logg.Info(ctx, "charge refunded")
	return nil
}
