package charges

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paysync/pkg/db/models"
)

type ChargeResponse struct {
	ID                   uuid.UUID  `json:"id"`
	CustomerID           uuid.UUID  `json:"customer_id"`
	SubscriptionID       *uuid.UUID `json:"subscription_id"`
	ProcessorID          string     `json:"processor_id"`
	Amount               int64      `json:"amount"`
	AmountRefunded       int64      `json:"amount_refunded"`
	ApplicationFeeAmount *int64     `json:"application_fee_amount"`
	Currency             string     `json:"currency"`
	StripeAccount        *string    `json:"stripe_account"`
	PaymentMethodType    *string    `json:"payment_method_type"`
	Brand                *string    `json:"brand"`
	Last4                *string    `json:"last4"`
	ExpMonth             *int64     `json:"exp_month"`
	ExpYear              *int64     `json:"exp_year"`
	Bank                 *string    `json:"bank"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func newChargeResponse(c *models.Charge) *ChargeResponse {
	if c == nil {
		return nil
	}
	return &ChargeResponse{
		ID:                   c.ID,
		CustomerID:           c.CustomerID,
		SubscriptionID:       c.SubscriptionID,
		ProcessorID:          c.ProcessorID,
		Amount:               c.Amount,
		AmountRefunded:       c.AmountRefunded,
		ApplicationFeeAmount: c.ApplicationFeeAmount,
		Currency:             c.Currency,
		StripeAccount:        c.StripeAccount,
		PaymentMethodType:    c.PaymentMethodType,
		Brand:                c.Brand,
		Last4:                c.Last4,
		ExpMonth:             c.ExpMonth,
		ExpYear:              c.ExpYear,
		Bank:                 c.Bank,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}
