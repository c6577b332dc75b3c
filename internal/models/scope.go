package models

// Scope is the approval-visibility predicate for one acting user. The same
// value drives both the SQL filter on list queries and the in-memory check
// that authorizes a single action, so the two can never drift.
//
// Scoping is direct-assignment only: a unit head matches employees attached
// at exactly their unit, never employees further down through sub-units.
type Scope struct {
	// All short-circuits to match-every-request (system-wide override).
	All bool
	// ServiceID matches employees assigned to this service.
	ServiceID string
	// DivisionID matches employees assigned to this division with no
	// service attachment.
	DivisionID string
	// DirectionID matches employees assigned directly to this direction,
	// with neither division nor service attachment.
	DirectionID string
}

// None reports whether the scope matches nothing.
func (s Scope) None() bool {
	return !s.All && s.ServiceID == "" && s.DivisionID == "" && s.DirectionID == ""
}

// Matches reports whether the employee's assignment falls inside the scope.
func (s Scope) Matches(e *Employee) bool {
	if s.All {
		return true
	}
	if e == nil {
		return false
	}
	switch {
	case s.ServiceID != "":
		return e.ServiceID != nil && *e.ServiceID == s.ServiceID
	case s.DivisionID != "":
		return e.ServiceID == nil && e.DivisionID != nil && *e.DivisionID == s.DivisionID
	case s.DirectionID != "":
		return e.ServiceID == nil && e.DivisionID == nil && e.DirectionID == s.DirectionID
	default:
		return false
	}
}
