package access

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of platform roles. The residence checker branches
// on the role class: administrative roles are scoped through the
// building→organization chain, occupant roles through direct residence
// assignments.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleTenant       Role = "tenant"
	RoleResident     Role = "resident"
	RoleDemoManager  Role = "demo_manager"
	RoleDemoTenant   Role = "demo_tenant"
	RoleDemoResident Role = "demo_resident"
)

// Roles lists every recognized role.
func Roles() []Role {
	return []Role{
		RoleAdmin,
		RoleManager,
		RoleTenant,
		RoleResident,
		RoleDemoManager,
		RoleDemoTenant,
		RoleDemoResident,
	}
}

// ParseRole maps a raw string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleTenant, RoleResident,
		RoleDemoManager, RoleDemoTenant, RoleDemoResident:
		return Role(s), true
	}
	return "", false
}

// IsAdministrative reports whether the role carries organization-wide
// authority. Anything else, including roles this build does not recognize,
// is routed through the occupant path.
func (r Role) IsAdministrative() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDemoManager:
		return true
	}
	return false
}

// IsOccupant reports whether the role is a recognized occupant role.
func (r Role) IsOccupant() bool {
	switch r {
	case RoleTenant, RoleResident, RoleDemoTenant, RoleDemoResident:
		return true
	}
	return false
}

// WriteOperation is the closed set of mutating operations the write gate
// covers. The gate treats every member identically.
type WriteOperation string

const (
	OpCreate  WriteOperation = "create"
	OpUpdate  WriteOperation = "update"
	OpDelete  WriteOperation = "delete"
	OpManage  WriteOperation = "manage"
	OpApprove WriteOperation = "approve"
	OpAssign  WriteOperation = "assign"
	OpShare   WriteOperation = "share"
	OpExport  WriteOperation = "export"
	OpBackup  WriteOperation = "backup"
	OpRestore WriteOperation = "restore"
)

// WriteOperations lists every gated operation.
func WriteOperations() []WriteOperation {
	return []WriteOperation{
		OpCreate, OpUpdate, OpDelete, OpManage, OpApprove,
		OpAssign, OpShare, OpExport, OpBackup, OpRestore,
	}
}

// ParseWriteOperation maps a raw string onto the closed operation set.
func ParseWriteOperation(s string) (WriteOperation, bool) {
	switch WriteOperation(s) {
	case OpCreate, OpUpdate, OpDelete, OpManage, OpApprove,
		OpAssign, OpShare, OpExport, OpBackup, OpRestore:
		return WriteOperation(s), true
	}
	return "", false
}

// AssignmentKind describes the relationship recorded on a residence
// assignment.
type AssignmentKind string

const (
	AssignmentTenant   AssignmentKind = "tenant"
	AssignmentResident AssignmentKind = "resident"
	AssignmentOther    AssignmentKind = "other"
)

// Actor is the authenticated identity a decision is requested for.
type Actor struct {
	ID       uuid.UUID
	Role     Role
	IsActive bool
}

// Organization is a tenant of the platform. Three distinguished
// organizations are marked by dedicated flags set at creation: the
// universally-accessible organization joins every actor's accessible set,
// the sandbox organization marks actors whose writes are refused, and the
// platform-operator organization grants its members access to every active
// organization. The flags are independent; display names carry no special
// meaning.
type Organization struct {
	ID                 uuid.UUID
	Name               string
	IsActive           bool
	IsUniversal        bool
	IsSandbox          bool
	IsPlatformOperator bool
}

// Membership links an actor to an organization. CanAccessAllOrganizations
// is a global-access grant: the actor may act across every active
// organization, not just the one named here. Organization carries the
// joined organization row.
type Membership struct {
	ID                        uuid.UUID
	ActorID                   uuid.UUID
	OrganizationID            uuid.UUID
	CanAccessAllOrganizations bool
	IsActive                  bool
	Organization              Organization
}

// Building belongs to exactly one organization.
type Building struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	IsActive       bool
}

// Residence belongs to exactly one building. Building carries the joined
// owning building row.
type Residence struct {
	ID         uuid.UUID
	BuildingID uuid.UUID
	UnitNumber string
	IsActive   bool
	Building   Building
}

// ResidenceAssignment is the direct actor↔residence relation occupant
// access rides on. It is deliberately independent of organizational
// membership: an occupant keeps residence access through organizational
// reshuffles as long as the assignment stays active.
type ResidenceAssignment struct {
	ID           uuid.UUID
	ActorID      uuid.UUID
	ResidenceID  uuid.UUID
	Relationship AssignmentKind
	StartDate    *time.Time
	EndDate      *time.Time
	IsActive     bool
}

// OrgSet is a set of organization identifiers.
type OrgSet map[uuid.UUID]struct{}

// NewOrgSet builds a set from the given identifiers.
func NewOrgSet(ids ...uuid.UUID) OrgSet {
	set := make(OrgSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports set membership.
func (s OrgSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts an identifier.
func (s OrgSet) Add(id uuid.UUID) {
	s[id] = struct{}{}
}

// IDs returns the members in stable byte order.
func (s OrgSet) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
