package charges

import (
	"github.com/angelmondragon/paysync/internal/charges"
	"github.com/angelmondragon/paysync/pkg/enums"
)

type RefundRequest struct {
	Amount               int64              `json:"amount" validate:"gt=0"`
	Reason               enums.RefundReason `json:"reason,omitempty" validate:"omitempty,enum"`
	RefundApplicationFee *bool              `json:"refund_application_fee,omitempty"`
	ReverseTransfer      *bool              `json:"reverse_transfer,omitempty"`
	Metadata             map[string]string  `json:"metadata,omitempty" validate:"omitempty,max=50,dive,keys,required,max=40,endkeys,max=500"`
}

func (r RefundRequest) options() charges.RefundOptions {
	return charges.RefundOptions{
		Reason:               r.Reason,
		RefundApplicationFee: r.RefundApplicationFee,
		ReverseTransfer:      r.ReverseTransfer,
		Metadata:             r.Metadata,
	}
}

type SyncRequest struct {
	ProcessorID string `json:"processor_id" validate:"required,max=255"`
}
