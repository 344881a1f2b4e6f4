package models

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims are the JWT claims issued by Supabase Auth.
// See: https://supabase.com/docs/guides/auth/jwts
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	Role         string                 `json:"role"` // "authenticated" or "anon"
	SessionID    string                 `json:"session_id"`
	IsAnonymous  bool                   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the subject claim. Comments are owned
// by this ID.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}

// Authenticated reports whether the token belongs to a signed-in,
// non-anonymous user.
func (c *SupabaseClaims) Authenticated() bool {
	return c.Subject != "" && c.Role == "authenticated" && !c.IsAnonymous
}
