package models

import "time"

// Position classifies an employee within the organizational hierarchy.
// Unit heads approve requests for the unit they are directly attached to.
type Position string

const (
	PositionUnitHeadDirection Position = "unit_head_direction"
	PositionUnitHeadDivision  Position = "unit_head_division"
	PositionUnitHeadService   Position = "unit_head_service"
	PositionIndividual        Position = "individual_contributor"
)

// Employee is the read-only projection of the external employee catalog that
// this engine consumes: identity, hire date and organizational assignment.
// Exactly one attachment level applies: service, division (no service), or
// direction (no division, no service); the catalog enforces the exclusivity.
type Employee struct {
	ID          string    `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	HireDate    time.Time `db:"hire_date" json:"hire_date"`
	DirectionID string    `db:"direction_id" json:"direction_id"`
	DivisionID  *string   `db:"division_id" json:"division_id,omitempty"`
	ServiceID   *string   `db:"service_id" json:"service_id,omitempty"`
	Position    Position  `db:"position" json:"position"`
	Active      bool      `db:"active" json:"active"`
}
