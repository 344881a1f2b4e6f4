package auth

import "marginalia/internal/domain/models"

// JWTVerifier verifies bearer tokens. The middleware depends on this
// interface so tests can swap in a fake.
type JWTVerifier interface {
	// VerifyToken validates a JWT and returns its claims.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
