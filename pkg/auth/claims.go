package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/paysync/pkg/enums"
)

// OperatorTokenPayload is the input for minting an operator token.
type OperatorTokenPayload struct {
	OperatorID string
	Role       enums.OperatorRole
}

// OperatorClaims is the JWT carried by operator requests. The operator id is
// the registered subject.
type OperatorClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
