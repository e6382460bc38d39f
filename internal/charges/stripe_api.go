package charges

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"github.com/angelmondragon/paysync/pkg/logger"
	pkgstripe "github.com/angelmondragon/paysync/pkg/stripe"
)

// StripeAPI implements RemoteAPI on stripe-go. Objects are decoded from the
// raw response body into the package's own types.
type StripeAPI struct {
	sc   *stripe.Client
	logg *logger.Logger
}

func NewStripeAPI(client *pkgstripe.Client, logg *logger.Logger) (*StripeAPI, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &StripeAPI{sc: client.API(), logg: logg}, nil
}

func (a *StripeAPI) RetrieveCharge(ctx context.Context, id string, expand []string, account string) (*RemoteCharge, error) {
	params := &stripe.ChargeRetrieveParams{}
	for _, field := range expand {
		params.AddExpand(field)
	}
	if account != "" {
		params.SetStripeAccount(account)
	}

	ch, err := a.sc.V1Charges.Retrieve(ctx, id, params)
	if err != nil {
		a.logFailure(ctx, "retrieve_charge", id, err)
		return nil, remoteError(err, "retrieve charge")
	}
	if ch.LastResponse == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe retrieve charge returned no body")
	}
	remote, err := DecodeRemoteCharge(ch.LastResponse.RawJSON)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stripe charge")
	}
	return remote, nil
}

func (a *StripeAPI) RetrieveInvoice(ctx context.Context, id string) (*RemoteInvoice, error) {
	inv, err := a.sc.V1Invoices.Retrieve(ctx, id, &stripe.InvoiceRetrieveParams{})
	if err != nil {
		a.logFailure(ctx, "retrieve_invoice", id, err)
		return nil, remoteError(err, "retrieve invoice")
	}
	if inv.LastResponse == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe retrieve invoice returned no body")
	}
	remote, err := DecodeRemoteInvoice(inv.LastResponse.RawJSON)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stripe invoice")
	}
	return remote, nil
}

func (a *StripeAPI) CreateRefund(ctx context.Context, chargeID string, amount int64, opts RefundOptions, account string) (*RemoteRefund, error) {
	params := &stripe.RefundCreateParams{
		Charge:               stripe.String(chargeID),
		Amount:               stripe.Int64(amount),
		RefundApplicationFee: opts.RefundApplicationFee,
		ReverseTransfer:      opts.ReverseTransfer,
	}
	if opts.Reason != "" {
		params.Reason = stripe.String(opts.Reason.String())
	}
	for key, value := range opts.Metadata {
		params.AddMetadata(key, value)
	}
	if account != "" {
		params.SetStripeAccount(account)
	}

	refund, err := a.sc.V1Refunds.Create(ctx, params)
	if err != nil {
		a.logFailure(ctx, "create_refund", chargeID, err)
		return nil, remoteError(err, "create refund")
	}
	return &RemoteRefund{
		ID:     refund.ID,
		Charge: chargeID,
		Amount: refund.Amount,
		Status: string(refund.Status),
	}, nil
}

func (a *StripeAPI) logFailure(ctx context.Context, op, id string, err error) {
	ctx = a.logg.WithFields(ctx, map[string]any{"operation": op, "stripe_id": id})
	a.logg.Warn(ctx, "stripe request failed: "+err.Error())
}
