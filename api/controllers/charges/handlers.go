package charges

import (
	"net/http"

	"github.com/angelmondragon/paysync/api/responses"
	"github.com/angelmondragon/paysync/api/validators"
	chargesvc "github.com/angelmondragon/paysync/internal/charges"
	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"github.com/angelmondragon/paysync/pkg/logger"
)

// RefundCharge refunds part or all of a stored charge and returns the
// updated record.
func RefundCharge(svc chargesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "charge service unavailable"))
			return
		}

		chargeID, err := validators.ParseUUIDParam(r, "chargeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload RefundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		charge, err := svc.Refund(r.Context(), chargeID, payload.Amount, payload.options())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newChargeResponse(charge))
	}
}

// SyncCharge pulls a charge from Stripe by its processor id. The data is null
// when the charge's customer is not tracked locally.
func SyncCharge(svc chargesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "charge service unavailable"))
			return
		}

		var payload SyncRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		charge, err := svc.SyncByProcessorID(r.Context(), payload.ProcessorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if charge == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, newChargeResponse(charge))
	}
}
