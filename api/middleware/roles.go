package middleware

import (
	"net/http"

	"github.com/angelmondragon/paysync/api/responses"
	"github.com/angelmondragon/paysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"github.com/angelmondragon/paysync/pkg/logger"
)

// RequireRole admits requests whose operator role is one of roles.
func RequireRole(logg *logger.Logger, roles ...enums.OperatorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := enums.OperatorRole(RoleFromContext(r.Context()))
			for _, role := range roles {
				if role == current {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
