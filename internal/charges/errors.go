package charges

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
)

// ErrValidationConflict marks a write that lost a race with a concurrent
// sync of the same charge. Sync retries on it.
var ErrValidationConflict = errors.New("charge validation conflict")

func conflictError(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, fmt.Errorf("%w: %v", ErrValidationConflict, err), op)
}

// remoteError translates a Stripe failure into the domain error type.
// Errors already translated are passed through.
func remoteError(err error, op string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
	}

	code := codeForStatus(stripeErr.HTTPStatusCode)
	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		code = pkgerrors.CodeCardDeclined
	case stripe.ErrorTypeIdempotency:
		code = pkgerrors.CodeIdempotency
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op)).WithDetails(map[string]any{
		"stripe_type": string(stripeErr.Type),
		"stripe_code": string(stripeErr.Code),
	})
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusPaymentRequired:
		return pkgerrors.CodeCardDeclined
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
