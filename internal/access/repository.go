package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

const organizationColumns = `id, name, is_active, is_universal, is_sandbox, is_platform_operator`

func (s *PGStore) UniversalOrganization(ctx context.Context) (Organization, error) {
	return s.flaggedOrganization(ctx, "is_universal")
}

func (s *PGStore) SandboxOrganization(ctx context.Context) (Organization, error) {
	return s.flaggedOrganization(ctx, "is_sandbox")
}

func (s *PGStore) flaggedOrganization(ctx context.Context, flag string) (Organization, error) {
	query := fmt.Sprintf(`SELECT %s FROM organizations WHERE %s AND is_active LIMIT 1`, organizationColumns, flag)
	var org Organization
	err := s.pool.QueryRow(ctx, query).Scan(
		&org.ID, &org.Name, &org.IsActive, &org.IsUniversal, &org.IsSandbox, &org.IsPlatformOperator,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return org, nil
}

func (s *PGStore) ActiveOrganizations(ctx context.Context) ([]Organization, error) {
	query := fmt.Sprintf(`SELECT %s FROM organizations WHERE is_active ORDER BY name, id`, organizationColumns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.IsActive, &org.IsUniversal, &org.IsSandbox, &org.IsPlatformOperator); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (s *PGStore) ActorByID(ctx context.Context, id uuid.UUID) (Actor, error) {
	var (
		actor Actor
		role  string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, role, is_active FROM users WHERE id = $1`, id,
	).Scan(&actor.ID, &role, &actor.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrNotFound
		}
		return Actor{}, err
	}
	// The raw value is preserved: a role this build does not recognize
	// must keep its restrictive occupant routing.
	actor.Role = Role(role)
	return actor, nil
}

func (s *PGStore) ActiveMemberships(ctx context.Context, actorID uuid.UUID) ([]Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.user_id, m.organization_id, m.can_access_all_organizations, m.is_active,
		       o.id, o.name, o.is_active, o.is_universal, o.is_sandbox, o.is_platform_operator
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.is_active AND o.is_active`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(
			&m.ID, &m.ActorID, &m.OrganizationID, &m.CanAccessAllOrganizations, &m.IsActive,
			&m.Organization.ID, &m.Organization.Name, &m.Organization.IsActive,
			&m.Organization.IsUniversal, &m.Organization.IsSandbox, &m.Organization.IsPlatformOperator,
		); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (s *PGStore) BuildingByID(ctx context.Context, id uuid.UUID) (Building, error) {
	var b Building
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, is_active FROM buildings WHERE id = $1`, id,
	).Scan(&b.ID, &b.OrganizationID, &b.Name, &b.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Building{}, ErrNotFound
		}
		return Building{}, err
	}
	return b, nil
}

func (s *PGStore) ResidenceByID(ctx context.Context, id uuid.UUID) (Residence, error) {
	var r Residence
	err := s.pool.QueryRow(ctx, `
		SELECT r.id, r.building_id, r.unit_number, r.is_active,
		       b.id, b.organization_id, b.name, b.is_active
		FROM residences r
		JOIN buildings b ON b.id = r.building_id
		WHERE r.id = $1`, id,
	).Scan(
		&r.ID, &r.BuildingID, &r.UnitNumber, &r.IsActive,
		&r.Building.ID, &r.Building.OrganizationID, &r.Building.Name, &r.Building.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Residence{}, ErrNotFound
		}
		return Residence{}, err
	}
	return r, nil
}

func (s *PGStore) ActiveResidenceAssignments(ctx context.Context, actorID uuid.UUID) ([]ResidenceAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, residence_id, relationship, start_date, end_date, is_active
		FROM residence_assignments
		WHERE user_id = $1 AND is_active`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []ResidenceAssignment
	for rows.Next() {
		var (
			a    ResidenceAssignment
			kind string
		)
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ResidenceID, &kind, &a.StartDate, &a.EndDate, &a.IsActive); err != nil {
			return nil, err
		}
		a.Relationship = AssignmentKind(kind)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
