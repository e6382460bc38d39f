package charges

import (
	"bytes"
	"encoding/json"
)

// RemoteCharge is the subset of a Stripe charge object the sync reads. It
// decodes straight from the API (or webhook) JSON so that novel payment
// method shapes survive untouched.
type RemoteCharge struct {
	ID                   string                `json:"id"`
	Amount               int64                 `json:"amount"`
	AmountRefunded       int64                 `json:"amount_refunded"`
	ApplicationFeeAmount *int64                `json:"application_fee_amount"`
	Created              int64                 `json:"created"`
	Currency             string                `json:"currency"`
	Customer             Ref                   `json:"customer"`
	Invoice              *InvoiceRef           `json:"invoice"`
	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details"`
}

// RemoteInvoice carries only what is needed to find the subscription.
type RemoteInvoice struct {
	ID           string
	Subscription Ref
}

// RemoteRefund is the result of a refund creation.
type RemoteRefund struct {
	ID     string
	Charge string
	Amount int64
	Status string
}

// Ref is an expandable reference: either a bare id string or an expanded
// object carrying an id.
type Ref struct {
	ID string
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	*r = Ref{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	return nil
}

// InvoiceRef is the charge's invoice, expanded or not. Expanded is nil when
// only the id was sent.
type InvoiceRef struct {
	ID       string
	Expanded *RemoteInvoice
}

func (r *InvoiceRef) UnmarshalJSON(data []byte) error {
	*r = InvoiceRef{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var inv RemoteInvoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return err
	}
	r.ID = inv.ID
	r.Expanded = &inv
	return nil
}

// UnmarshalJSON reads the subscription from the top-level field, falling
// back to parent.subscription_details on newer API versions.
func (i *RemoteInvoice) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           string `json:"id"`
		Subscription Ref    `json:"subscription"`
		Parent       *struct {
			SubscriptionDetails *struct {
				Subscription Ref `json:"subscription"`
			} `json:"subscription_details"`
		} `json:"parent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.ID = raw.ID
	i.Subscription = raw.Subscription
	if i.Subscription.ID == "" && raw.Parent != nil && raw.Parent.SubscriptionDetails != nil {
		i.Subscription = raw.Parent.SubscriptionDetails.Subscription
	}
	return nil
}

// PaymentMethodDetails is a tagged union: Type names the active variant and
// Variants holds every variant payload keyed by its tag.
type PaymentMethodDetails struct {
	Type     string
	Variants map[string]json.RawMessage
}

// UnmarshalJSON never fails; a payload that is not an object decodes to an
// empty set of details.
func (d *PaymentMethodDetails) UnmarshalJSON(data []byte) error {
	*d = PaymentMethodDetails{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	if tag, ok := raw["type"]; ok {
		_ = json.Unmarshal(tag, &d.Type)
		delete(raw, "type")
	}
	d.Variants = raw
	return nil
}

// Active returns the fields of the variant named by Type, or nil.
func (d *PaymentMethodDetails) Active() map[string]json.RawMessage {
	if d == nil || d.Type == "" {
		return nil
	}
	payload, ok := d.Variants[d.Type]
	if !ok {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil
	}
	return fields
}

// DecodeRemoteCharge parses a Stripe charge object.
func DecodeRemoteCharge(data []byte) (*RemoteCharge, error) {
	var remote RemoteCharge
	if err := json.Unmarshal(data, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

// DecodeRemoteInvoice parses a Stripe invoice object.
func DecodeRemoteInvoice(data []byte) (*RemoteInvoice, error) {
	var inv RemoteInvoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
