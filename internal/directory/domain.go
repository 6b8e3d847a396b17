// Package directory manages the reference data the access engine decides
// against: organizations, users, memberships, buildings, residences, and
// residence assignments. The engine itself only reads these facts; every
// mutation flows through this package so cache invalidation and refresh
// scheduling happen in one place.
package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("directory: duplicate")
	// ErrInvalid indicates the input failed validation.
	ErrInvalid = errors.New("directory: invalid input")
)

// Organization is a tenant of the platform. The three distinguished flags
// are set at creation and are what the access engine keys off; display
// names carry no special meaning and may collide.
type Organization struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	CanonicalName      string    `json:"canonical_name"`
	IsActive           bool      `json:"is_active"`
	IsUniversal        bool      `json:"is_universal"`
	IsSandbox          bool      `json:"is_sandbox"`
	IsPlatformOperator bool      `json:"is_platform_operator"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// User is a platform account. Credential verification happens at the edge
// gateway; the password hash stored here is provisioned out of band.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership links a user to an organization. CanAccessAllOrganizations is
// the global-access grant the resolver short-circuits on.
type Membership struct {
	ID                        uuid.UUID `json:"id"`
	UserID                    uuid.UUID `json:"user_id"`
	OrganizationID            uuid.UUID `json:"organization_id"`
	CanAccessAllOrganizations bool      `json:"can_access_all_organizations"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// Building belongs to exactly one organization.
type Building struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Residence belongs to exactly one building.
type Residence struct {
	ID         uuid.UUID `json:"id"`
	BuildingID uuid.UUID `json:"building_id"`
	UnitNumber string    `json:"unit_number"`
	Floor      int       `json:"floor"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ResidenceAssignment is the direct user↔residence relation that carries
// occupant access. It survives membership changes on purpose.
type ResidenceAssignment struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ResidenceID  uuid.UUID  `json:"residence_id"`
	Relationship string     `json:"relationship"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateOrganizationInput carries a new organization.
type CreateOrganizationInput struct {
	Name               string `json:"name" validate:"required,min=2,max=120"`
	IsUniversal        bool   `json:"is_universal"`
	IsSandbox          bool   `json:"is_sandbox"`
	IsPlatformOperator bool   `json:"is_platform_operator"`
}

// UpdateOrganizationInput carries mutable organization fields.
type UpdateOrganizationInput struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	IsActive bool   `json:"is_active"`
}

// CreateUserInput carries a new user.
type CreateUserInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role" validate:"required,max=32"`
}

// UpdateUserInput carries mutable user fields.
type UpdateUserInput struct {
	Role     string `json:"role" validate:"required,max=32"`
	IsActive bool   `json:"is_active"`
}

// CreateMembershipInput carries a new membership.
type CreateMembershipInput struct {
	UserID                    uuid.UUID `json:"user_id" validate:"required"`
	OrganizationID            uuid.UUID `json:"organization_id" validate:"required"`
	CanAccessAllOrganizations bool      `json:"can_access_all_organizations"`
}

// UpdateMembershipInput carries mutable membership flags.
type UpdateMembershipInput struct {
	CanAccessAllOrganizations bool `json:"can_access_all_organizations"`
	IsActive                  bool `json:"is_active"`
}

// CreateBuildingInput carries a new building.
type CreateBuildingInput struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Name           string    `json:"name" validate:"required,min=2,max=120"`
	Address        string    `json:"address" validate:"max=255"`
}

// UpdateBuildingInput carries mutable building fields.
type UpdateBuildingInput struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Address  string `json:"address" validate:"max=255"`
	IsActive bool   `json:"is_active"`
}

// CreateResidenceInput carries a new residence.
type CreateResidenceInput struct {
	BuildingID uuid.UUID `json:"building_id" validate:"required"`
	UnitNumber string    `json:"unit_number" validate:"required,max=32"`
	Floor      int       `json:"floor" validate:"gte=-10,lte=200"`
}

// UpdateResidenceInput carries mutable residence fields.
type UpdateResidenceInput struct {
	UnitNumber string `json:"unit_number" validate:"required,max=32"`
	Floor      int    `json:"floor" validate:"gte=-10,lte=200"`
	IsActive   bool   `json:"is_active"`
}

// CreateAssignmentInput carries a new residence assignment.
type CreateAssignmentInput struct {
	UserID       uuid.UUID  `json:"user_id" validate:"required"`
	ResidenceID  uuid.UUID  `json:"residence_id" validate:"required"`
	Relationship string     `json:"relationship" validate:"required,oneof=tenant resident other"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}
