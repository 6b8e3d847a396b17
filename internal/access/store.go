package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested fact does not exist.
var ErrNotFound = errors.New("access: not found")

// Store is the read-only fact surface the engine decides against. The
// engine never writes; every method is a point-in-time read and may be
// called concurrently.
type Store interface {
	// UniversalOrganization returns the active organization flagged as
	// universally accessible, or ErrNotFound when none is configured.
	UniversalOrganization(ctx context.Context) (Organization, error)

	// SandboxOrganization returns the active organization flagged as the
	// public sandbox, or ErrNotFound when none is configured.
	SandboxOrganization(ctx context.Context) (Organization, error)

	// ActiveOrganizations lists every active organization.
	ActiveOrganizations(ctx context.Context) ([]Organization, error)

	// ActorByID returns the actor, or ErrNotFound when absent.
	ActorByID(ctx context.Context, id uuid.UUID) (Actor, error)

	// ActiveMemberships lists the actor's active membership rows whose
	// organization is itself active, each joined with the organization.
	ActiveMemberships(ctx context.Context, actorID uuid.UUID) ([]Membership, error)

	// BuildingByID returns the building regardless of its active flag, or
	// ErrNotFound when absent.
	BuildingByID(ctx context.Context, id uuid.UUID) (Building, error)

	// ResidenceByID returns the residence joined with its owning building,
	// or ErrNotFound when absent.
	ResidenceByID(ctx context.Context, id uuid.UUID) (Residence, error)

	// ActiveResidenceAssignments lists the actor's active assignment rows.
	ActiveResidenceAssignments(ctx context.Context, actorID uuid.UUID) ([]ResidenceAssignment, error)
}
