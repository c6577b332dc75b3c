package models

// Organizational units form a strict tree of directions, divisions and
// services, where a service may also hang directly off a direction. Units
// reference their parents by id only; the catalog itself is maintained
// externally and consumed read-only here.

// OrgUnitKind discriminates unit records.
type OrgUnitKind string

const (
	OrgUnitDirection OrgUnitKind = "direction"
	OrgUnitDivision  OrgUnitKind = "division"
	OrgUnitService   OrgUnitKind = "service"
)

// OrgUnit is one node of the organizational tree.
type OrgUnit struct {
	ID   string      `db:"id" json:"id"`
	Kind OrgUnitKind `db:"kind" json:"kind"`
	Code string      `db:"code" json:"code"`
	Name string      `db:"name" json:"name"`
	// ParentID points at the owning unit: a division's direction, or a
	// service's division (or direction when attached directly). Nil for
	// directions.
	ParentID *string `db:"parent_id" json:"parent_id,omitempty"`
	IsActive bool    `db:"is_active" json:"is_active"`
}
