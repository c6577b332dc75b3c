package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the system-wide role carried by a token. Organizational
// position (unit head vs individual contributor) is independent of role.
type UserRole string

const (
	// RoleAdmin and RoleHR hold the system-wide scope override: they see and
	// act on every request.
	RoleAdmin UserRole = "ADMIN"
	RoleHR    UserRole = "HR_ADMIN"
	// RoleAuditor sees everything but may not act on anything. Visibility and
	// action authority are independent grants.
	RoleAuditor  UserRole = "AUDITOR"
	RoleEmployee UserRole = "EMPLOYEE"
)

// JWTClaims is the token payload issued by the identity collaborator. It
// carries the full actor context so authorization never needs a role-name
// lookup against mutable state.
type JWTClaims struct {
	EmployeeID  string   `json:"employee_id"`
	Role        UserRole `json:"role"`
	Position    Position `json:"position"`
	DirectionID string   `json:"direction_id,omitempty"`
	DivisionID  string   `json:"division_id,omitempty"`
	ServiceID   string   `json:"service_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the resolved acting-user context passed into services. The
// capability flags are derived once from the claims, per the rule that
// authorization inputs are explicit values rather than role lookups.
type Actor struct {
	EmployeeID  string
	Role        UserRole
	Position    Position
	DirectionID string
	DivisionID  string
	ServiceID   string
	// ScopeOverride grants unrestricted visibility (and, unless ReadOnly,
	// unrestricted action authority).
	ScopeOverride bool
	// ReadOnly bars approve/reject/cancel regardless of scope.
	ReadOnly bool
}

// ActorFromClaims derives the actor context from validated token claims.
func ActorFromClaims(c *JWTClaims) Actor {
	return Actor{
		EmployeeID:    c.EmployeeID,
		Role:          c.Role,
		Position:      c.Position,
		DirectionID:   c.DirectionID,
		DivisionID:    c.DivisionID,
		ServiceID:     c.ServiceID,
		ScopeOverride: c.Role == RoleAdmin || c.Role == RoleHR || c.Role == RoleAuditor,
		ReadOnly:      c.Role == RoleAuditor,
	}
}
