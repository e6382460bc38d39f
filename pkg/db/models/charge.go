package models

import (
	"time"

	"github.com/google/uuid"
)

// Charge is the local copy of a processor charge. CreatedAt is sourced from
// the processor, not from the local insert time.
type Charge struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID           uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:idx_pay_charges_customer_processor"`
	SubscriptionID       *uuid.UUID `gorm:"column:subscription_id;type:uuid"`
	ProcessorID          string     `gorm:"column:processor_id;not null;uniqueIndex:idx_pay_charges_customer_processor"`
	Amount               int64      `gorm:"column:amount;not null"`
	AmountRefunded       int64      `gorm:"column:amount_refunded;not null;default:0"`
	ApplicationFeeAmount *int64     `gorm:"column:application_fee_amount"`
	Currency             string     `gorm:"column:currency;not null"`
	StripeAccount        *string    `gorm:"column:stripe_account"`
	PaymentMethodType    *string    `gorm:"column:payment_method_type"`
	Brand                *string    `gorm:"column:brand"`
	Last4                *string    `gorm:"column:last4"`
	ExpMonth             *int64     `gorm:"column:exp_month"`
	ExpYear              *int64     `gorm:"column:exp_year"`
	Bank                 *string    `gorm:"column:bank"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Charge) TableName() string { return "pay_charges" }
