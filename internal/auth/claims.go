package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Claims are the only supported JWT claims shape for this service.
// Tokens identify a calling service (the orchestrator), not a user; there is
// no refresh flow because callers mint short-lived tokens from the shared
// secret on their side.
type Claims struct {
	jwt.RegisteredClaims

	Service   string    `json:"service"`
	TokenType TokenType `json:"token_type"`
}
