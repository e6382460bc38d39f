package charges

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/paysync/pkg/db/models"
)

// Attributes is the flat column set derived from a remote charge.
type Attributes struct {
	Amount               int64
	AmountRefunded       int64
	ApplicationFeeAmount *int64
	Currency             string
	CreatedAt            time.Time
	StripeAccount        *string

	PaymentMethodType *string
	Brand             *string
	Last4             *string
	ExpMonth          *int64
	ExpYear           *int64
	Bank              *string

	// Subscription is nil when the charge has no invoice, in which case the
	// stored link is left untouched. A non-nil link with a nil ID clears it.
	Subscription *SubscriptionLink
}

// SubscriptionLink is the optional result of invoice resolution.
type SubscriptionLink struct {
	ID *uuid.UUID
}

type paymentMethodFields struct {
	Brand    *string
	Last4    *string
	ExpMonth *int64
	ExpYear  *int64
	Bank     *string
}

type fieldExtractor func(map[string]json.RawMessage) paymentMethodFields

func cardFields(f map[string]json.RawMessage) paymentMethodFields {
	return paymentMethodFields{
		Brand:    stringField(f, "brand"),
		Last4:    stringField(f, "last4"),
		ExpMonth: intField(f, "exp_month"),
		ExpYear:  intField(f, "exp_year"),
	}
}

func bankFields(f map[string]json.RawMessage) paymentMethodFields {
	return paymentMethodFields{
		Last4: stringField(f, "last4"),
		Bank:  firstString(f, "bank_name", "bank"),
	}
}

func anyFields(f map[string]json.RawMessage) paymentMethodFields {
	fields := cardFields(f)
	fields.Bank = firstString(f, "bank_name", "bank")
	return fields
}

var extractors = map[string]fieldExtractor{
	"card":            cardFields,
	"card_present":    cardFields,
	"interac_present": cardFields,
	"acss_debit":      bankFields,
	"au_becs_debit":   bankFields,
	"bacs_debit":      bankFields,
	"bancontact":      bankFields,
	"eps":             bankFields,
	"fpx":             bankFields,
	"giropay":         bankFields,
	"ideal":           bankFields,
	"p24":             bankFields,
	"sepa_debit":      bankFields,
	"sofort":          bankFields,
	"us_bank_account": bankFields,
}

// Normalize maps a remote charge onto local columns. It never fails: unknown
// variants and fields of an unexpected type come back as nil.
func Normalize(remote *RemoteCharge, accountScope string) Attributes {
	if remote == nil {
		return Attributes{}
	}
	attrs := Attributes{
		Amount:               remote.Amount,
		AmountRefunded:       remote.AmountRefunded,
		ApplicationFeeAmount: remote.ApplicationFeeAmount,
		Currency:             remote.Currency,
		CreatedAt:            time.Unix(remote.Created, 0).UTC(),
	}
	if accountScope != "" {
		attrs.StripeAccount = &accountScope
	}

	details := remote.PaymentMethodDetails
	if details == nil || details.Type == "" {
		return attrs
	}
	tag := details.Type
	attrs.PaymentMethodType = &tag

	extract, ok := extractors[tag]
	if !ok {
		extract = anyFields
	}
	fields := extract(details.Active())
	if fields.Brand != nil {
		brand := capitalize(*fields.Brand)
		fields.Brand = &brand
	}
	attrs.Brand = fields.Brand
	attrs.Last4 = fields.Last4
	attrs.ExpMonth = fields.ExpMonth
	attrs.ExpYear = fields.ExpYear
	attrs.Bank = fields.Bank
	return attrs
}

// Columns is the update set for an existing row. Nil pointers clear the
// column.
func (a Attributes) Columns() map[string]any {
	cols := map[string]any{
		"amount":                 a.Amount,
		"amount_refunded":        a.AmountRefunded,
		"application_fee_amount": a.ApplicationFeeAmount,
		"currency":               a.Currency,
		"created_at":             a.CreatedAt,
		"stripe_account":         a.StripeAccount,
		"payment_method_type":    a.PaymentMethodType,
		"brand":                  a.Brand,
		"last4":                  a.Last4,
		"exp_month":              a.ExpMonth,
		"exp_year":               a.ExpYear,
		"bank":                   a.Bank,
	}
	if a.Subscription != nil {
		cols["subscription_id"] = a.Subscription.ID
	}
	return cols
}

// NewCharge builds an unsaved row for the customer.
func (a Attributes) NewCharge(customerID uuid.UUID, processorID string) *models.Charge {
	charge := &models.Charge{
		CustomerID:           customerID,
		ProcessorID:          processorID,
		Amount:               a.Amount,
		AmountRefunded:       a.AmountRefunded,
		ApplicationFeeAmount: a.ApplicationFeeAmount,
		Currency:             a.Currency,
		StripeAccount:        a.StripeAccount,
		PaymentMethodType:    a.PaymentMethodType,
		Brand:                a.Brand,
		Last4:                a.Last4,
		ExpMonth:             a.ExpMonth,
		ExpYear:              a.ExpYear,
		Bank:                 a.Bank,
		CreatedAt:            a.CreatedAt,
	}
	if a.Subscription != nil {
		charge.SubscriptionID = a.Subscription.ID
	}
	return charge
}

func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return value
}

func intField(fields map[string]json.RawMessage, key string) *int64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var value *int64
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return value
}

func firstString(fields map[string]json.RawMessage, keys ...string) *string {
	for _, key := range keys {
		if value := stringField(fields, key); value != nil {
			return value
		}
	}
	return nil
}

// capitalize upper-cases the first rune and lower-cases the rest, so
// "american_express" becomes "American_express".
func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}
