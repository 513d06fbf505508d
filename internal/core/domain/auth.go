package domain

import "time"

// Role defines an API caller's permission level
type Role string

const (
	RoleOperator Role = "operator" // Trigger syncs, view everything
	RoleViewer   Role = "viewer"   // Read-only dashboard access
)

// IsValid checks if the role is a known value
func (r Role) IsValid() bool {
	return r == RoleOperator || r == RoleViewer
}

// AuthContext contains authenticated caller info for request context
type AuthContext struct {
	Subject   string `json:"subject"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id"`
}

// IsOperator checks if the caller may trigger syncs
func (a *AuthContext) IsOperator() bool {
	return a.Role == RoleOperator
}

// LoginRequest represents an operator login attempt
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      Role      `json:"role"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
