package service

import "github.com/hrcore/leave-api/internal/models"

// ResolveScope derives the approval scope for an acting user from role,
// position and organizational attachment.
//
// The scope is deliberately non-transitive: a unit head sees only employees
// attached directly to their own unit. A division head does not inherit the
// services under the division, and a direction head does not inherit its
// divisions. Override roles see everything; everyone else sees nothing
// beyond their own requests.
func ResolveScope(actor models.Actor) models.Scope {
	if actor.ScopeOverride {
		return models.Scope{All: true}
	}
	switch actor.Position {
	case models.PositionUnitHeadService:
		if actor.ServiceID != "" {
			return models.Scope{ServiceID: actor.ServiceID}
		}
	case models.PositionUnitHeadDivision:
		if actor.DivisionID != "" && actor.ServiceID == "" {
			return models.Scope{DivisionID: actor.DivisionID}
		}
	case models.PositionUnitHeadDirection:
		if actor.DirectionID != "" && actor.DivisionID == "" && actor.ServiceID == "" {
			return models.Scope{DirectionID: actor.DirectionID}
		}
	}
	return models.Scope{}
}

// CanDecide reports whether the actor may approve or reject a request filed
// by the given employee. Read-only actors never decide, and nobody decides
// their own request.
func CanDecide(actor models.Actor, employee *models.Employee) bool {
	if actor.ReadOnly {
		return false
	}
	if actor.EmployeeID == employee.ID {
		return false
	}
	if actor.ScopeOverride {
		return true
	}
	scope := ResolveScope(actor)
	return scope.Matches(employee)
}
