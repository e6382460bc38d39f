package charges

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func decodeFixture(t *testing.T, raw string) *RemoteCharge {
	t.Helper()
	remote, err := DecodeRemoteCharge([]byte(raw))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return remote
}

func TestNormalizeCardCharge(t *testing.T) {
	remote := decodeFixture(t, `{
		"id": "ch_card",
		"amount": 2500,
		"amount_refunded": 0,
		"application_fee_amount": 125,
		"created": 1767225600,
		"currency": "usd",
		"customer": "cus_1",
		"payment_method_details": {
			"type": "card",
			"card": {"brand": "visa", "last4": "4242", "exp_month": 12, "exp_year": 2030, "funding": "credit"}
		}
	}`)

	attrs := Normalize(remote, "acct_1")

	if attrs.Amount != 2500 || attrs.AmountRefunded != 0 || attrs.Currency != "usd" {
		t.Fatalf("unexpected scalars %+v", attrs)
	}
	if attrs.ApplicationFeeAmount == nil || *attrs.ApplicationFeeAmount != 125 {
		t.Fatalf("expected application fee 125, got %v", attrs.ApplicationFeeAmount)
	}
	if !attrs.CreatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_at %s", attrs.CreatedAt)
	}
	if attrs.StripeAccount == nil || *attrs.StripeAccount != "acct_1" {
		t.Fatalf("expected account scope acct_1, got %v", attrs.StripeAccount)
	}
	if got := deref(attrs.PaymentMethodType); got != "card" {
		t.Fatalf("expected payment_method_type card, got %q", got)
	}
	if got := deref(attrs.Brand); got != "Visa" {
		t.Fatalf("expected brand Visa, got %q", got)
	}
	if got := deref(attrs.Last4); got != "4242" {
		t.Fatalf("expected last4 4242, got %q", got)
	}
	if attrs.ExpMonth == nil || *attrs.ExpMonth != 12 || attrs.ExpYear == nil || *attrs.ExpYear != 2030 {
		t.Fatalf("unexpected expiry %v/%v", attrs.ExpMonth, attrs.ExpYear)
	}
	if attrs.Bank != nil {
		t.Fatalf("cards carry no bank, got %q", *attrs.Bank)
	}
	if attrs.Subscription != nil {
		t.Fatal("normalize never sets the subscription link")
	}
}

func TestNormalizeBankFallsBackToGenericField(t *testing.T) {
	remote := decodeFixture(t, `{
		"id": "ch_ideal", "amount": 1000, "created": 1, "currency": "eur", "customer": "cus_1",
		"payment_method_details": {"type": "ideal", "ideal": {"bank": "ing", "bic": "INGBNL2A"}}
	}`)

	attrs := Normalize(remote, "")

	if got := deref(attrs.Bank); got != "ing" {
		t.Fatalf("expected bank ing, got %q", got)
	}
	if attrs.StripeAccount != nil {
		t.Fatal("empty account scope should be stored as null")
	}
	if attrs.Brand != nil || attrs.ExpMonth != nil {
		t.Fatal("bank variants carry no card fields")
	}
}

func TestNormalizeBankNameWins(t *testing.T) {
	remote := decodeFixture(t, `{
		"id": "ch_sepa", "amount": 1000, "created": 1, "currency": "eur", "customer": "cus_1",
		"payment_method_details": {"type": "sepa_debit", "sepa_debit": {"bank_name": "Deutsche Bank", "bank": "db", "last4": "3000"}}
	}`)

	attrs := Normalize(remote, "")

	if got := deref(attrs.Bank); got != "Deutsche Bank" {
		t.Fatalf("expected bank_name to win, got %q", got)
	}
	if got := deref(attrs.Last4); got != "3000" {
		t.Fatalf("expected last4 3000, got %q", got)
	}
}

func TestNormalizeBankNameNullFallsThrough(t *testing.T) {
	remote := decodeFixture(t, `{
		"id": "ch_fpx", "amount": 1000, "created": 1, "currency": "myr", "customer": "cus_1",
		"payment_method_details": {"type": "fpx", "fpx": {"bank_name": null, "bank": "maybank2u"}}
	}`)

	if got := deref(Normalize(remote, "").Bank); got != "maybank2u" {
		t.Fatalf("expected fallback to bank, got %q", got)
	}
}

func TestNormalizeMissingDetails(t *testing.T) {
	remote := decodeFixture(t, `{"id": "ch_bare", "amount": 1, "created": 1, "currency": "usd", "customer": "cus_1"}`)

	attrs := Normalize(remote, "")

	if attrs.PaymentMethodType != nil || attrs.Brand != nil || attrs.Last4 != nil ||
		attrs.ExpMonth != nil || attrs.ExpYear != nil || attrs.Bank != nil {
		t.Fatalf("expected every payment method field to be nil, got %+v", attrs)
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	tests := []struct {
		name     string
		details  string
		wantType string
		check    func(t *testing.T, attrs Attributes)
	}{
		{
			name:     "unknown variant uses every known field",
			details:  `{"type": "future_pay", "future_pay": {"brand": "ZIP", "last4": "0001", "bank_name": "Zip Co"}}`,
			wantType: "future_pay",
			check: func(t *testing.T, attrs Attributes) {
				if deref(attrs.Brand) != "Zip" || deref(attrs.Last4) != "0001" || deref(attrs.Bank) != "Zip Co" {
					t.Fatalf("unexpected fields %+v", attrs)
				}
			},
		},
		{
			name:     "wallet variant without fields",
			details:  `{"type": "link", "link": {"country": "US"}}`,
			wantType: "link",
			check: func(t *testing.T, attrs Attributes) {
				if attrs.Brand != nil || attrs.Last4 != nil || attrs.Bank != nil {
					t.Fatalf("expected nil fields, got %+v", attrs)
				}
			},
		},
		{
			name:     "variant payload missing",
			details:  `{"type": "card"}`,
			wantType: "card",
			check: func(t *testing.T, attrs Attributes) {
				if attrs.Brand != nil || attrs.Last4 != nil {
					t.Fatalf("expected nil fields, got %+v", attrs)
				}
			},
		},
		{
			name:     "fields of the wrong type",
			details:  `{"type": "card", "card": {"brand": 7, "last4": "4242", "exp_month": "12", "exp_year": 2030.5}}`,
			wantType: "card",
			check: func(t *testing.T, attrs Attributes) {
				if attrs.Brand != nil || attrs.ExpMonth != nil || attrs.ExpYear != nil {
					t.Fatalf("mistyped fields must be nil, got %+v", attrs)
				}
				if deref(attrs.Last4) != "4242" {
					t.Fatalf("well-typed fields survive, got %v", attrs.Last4)
				}
			},
		},
		{
			name:     "variant payload not an object",
			details:  `{"type": "card", "card": "oops"}`,
			wantType: "card",
			check: func(t *testing.T, attrs Attributes) {
				if attrs.Brand != nil {
					t.Fatalf("expected nil brand, got %v", *attrs.Brand)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := decodeFixture(t, `{"id": "ch_x", "amount": 1, "created": 1, "currency": "usd", "customer": "cus_1", "payment_method_details": `+tt.details+`}`)
			attrs := Normalize(remote, "")
			if deref(attrs.PaymentMethodType) != tt.wantType {
				t.Fatalf("expected type %q, got %v", tt.wantType, attrs.PaymentMethodType)
			}
			tt.check(t, attrs)
		})
	}
}

func TestNormalizeNilRemote(t *testing.T) {
	if attrs := Normalize(nil, "acct_1"); attrs.Amount != 0 || attrs.StripeAccount != nil {
		t.Fatalf("expected empty attributes, got %+v", attrs)
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"visa":             "Visa",
		"MASTERCARD":       "Mastercard",
		"american_express": "American_express",
		"":                 "",
		"élan":             "Élan",
	}
	for in, want := range tests {
		if got := capitalize(in); got != want {
			t.Fatalf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestColumnsOnlyTouchSubscriptionWhenLinked(t *testing.T) {
	attrs := Attributes{Amount: 1}
	if _, ok := attrs.Columns()["subscription_id"]; ok {
		t.Fatal("subscription_id must be left alone without an invoice")
	}
	attrs.Subscription = &SubscriptionLink{}
	value, ok := attrs.Columns()["subscription_id"]
	if !ok {
		t.Fatal("an empty link must clear subscription_id")
	}
	if id := value.(*uuid.UUID); id != nil {
		t.Fatalf("expected nil id, got %v", id)
	}
}

func deref[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}
