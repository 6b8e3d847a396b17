package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists directory entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

const orgColumns = `id, name, canonical_name, is_active, is_universal, is_sandbox, is_platform_operator, created_at, updated_at`

func scanOrganization(row pgx.Row) (Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.CanonicalName, &o.IsActive,
		&o.IsUniversal, &o.IsSandbox, &o.IsPlatformOperator, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Organization{}, mapError(err)
	}
	return o, nil
}

// CreateOrganization inserts a new organization.
func (r *Repository) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (Organization, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO organizations (id, name, canonical_name, is_active, is_universal, is_sandbox, is_platform_operator)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6)
		RETURNING `+orgColumns,
		uuid.New(), in.Name, CanonicalName(in.Name), in.IsUniversal, in.IsSandbox, in.IsPlatformOperator)
	return scanOrganization(row)
}

// OrganizationByID returns one organization.
func (r *Repository) OrganizationByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrganization(row)
}

// ListOrganizations returns the organizations whose IDs appear in ids,
// ordered by name. An empty id list yields an empty result.
func (r *Repository) ListOrganizations(ctx context.Context, ids []uuid.UUID) ([]Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = ANY($1) ORDER BY name, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// UpdateOrganization mutates name and active flag. The distinguished flags
// are immutable after creation.
func (r *Repository) UpdateOrganization(ctx context.Context, id uuid.UUID, in UpdateOrganizationInput) (Organization, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE organizations
		SET name = $2, canonical_name = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+orgColumns,
		id, in.Name, CanonicalName(in.Name), in.IsActive)
	return scanOrganization(row)
}

// DeactivateOrganization soft-deletes an organization.
func (r *Repository) DeactivateOrganization(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE organizations SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, email, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, role, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING `+userColumns,
		uuid.New(), in.Email, in.Role)
	return scanUser(row)
}

// UserByID returns one user.
func (r *Repository) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateUser mutates role and active flag.
func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, is_active = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, in.Role, in.IsActive)
	return scanUser(row)
}

// RecentlyActiveUserIDs lists users whose memberships or assignments were
// touched inside the window. The worker warms these actors' cached sets.
func (r *Repository) RecentlyActiveUserIDs(ctx context.Context, window string, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT user_id FROM (
			SELECT user_id FROM memberships WHERE updated_at > now() - $1::interval
			UNION ALL
			SELECT user_id FROM residence_assignments WHERE updated_at > now() - $1::interval
		) recent
		LIMIT $2`, window, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const membershipColumns = `id, user_id, organization_id, can_access_all_organizations, is_active, created_at, updated_at`

func scanMembership(row pgx.Row) (Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID,
		&m.CanAccessAllOrganizations, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Membership{}, mapError(err)
	}
	return m, nil
}

// CreateMembership inserts a new membership.
func (r *Repository) CreateMembership(ctx context.Context, in CreateMembershipInput) (Membership, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO memberships (id, user_id, organization_id, can_access_all_organizations, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+membershipColumns,
		uuid.New(), in.UserID, in.OrganizationID, in.CanAccessAllOrganizations)
	return scanMembership(row)
}

// MembershipByID returns one membership.
func (r *Repository) MembershipByID(ctx context.Context, id uuid.UUID) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	return scanMembership(row)
}

// MembershipsByUser lists a user's memberships, active or not.
func (r *Repository) MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// UpdateMembership mutates the global-access and active flags.
func (r *Repository) UpdateMembership(ctx context.Context, id uuid.UUID, in UpdateMembershipInput) (Membership, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE memberships
		SET can_access_all_organizations = $2, is_active = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+membershipColumns,
		id, in.CanAccessAllOrganizations, in.IsActive)
	return scanMembership(row)
}

const buildingColumns = `id, organization_id, name, address, is_active, created_at, updated_at`

func scanBuilding(row pgx.Row) (Building, error) {
	var b Building
	err := row.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Address, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Building{}, mapError(err)
	}
	return b, nil
}

// CreateBuilding inserts a new building.
func (r *Repository) CreateBuilding(ctx context.Context, in CreateBuildingInput) (Building, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO buildings (id, organization_id, name, address, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+buildingColumns,
		uuid.New(), in.OrganizationID, in.Name, in.Address)
	return scanBuilding(row)
}

// BuildingByID returns one building.
func (r *Repository) BuildingByID(ctx context.Context, id uuid.UUID) (Building, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1`, id)
	return scanBuilding(row)
}

// BuildingsByOrganization lists an organization's buildings.
func (r *Repository) BuildingsByOrganization(ctx context.Context, orgID uuid.UUID) ([]Building, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE organization_id = $1 ORDER BY name, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// UpdateBuilding mutates building fields.
func (r *Repository) UpdateBuilding(ctx context.Context, id uuid.UUID, in UpdateBuildingInput) (Building, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE buildings SET name = $2, address = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+buildingColumns,
		id, in.Name, in.Address, in.IsActive)
	return scanBuilding(row)
}

const residenceColumns = `id, building_id, unit_number, floor, is_active, created_at, updated_at`

func scanResidence(row pgx.Row) (Residence, error) {
	var res Residence
	err := row.Scan(&res.ID, &res.BuildingID, &res.UnitNumber, &res.Floor, &res.IsActive, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return Residence{}, mapError(err)
	}
	return res, nil
}

// CreateResidence inserts a new residence.
func (r *Repository) CreateResidence(ctx context.Context, in CreateResidenceInput) (Residence, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO residences (id, building_id, unit_number, floor, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+residenceColumns,
		uuid.New(), in.BuildingID, in.UnitNumber, in.Floor)
	return scanResidence(row)
}

// ResidenceByID returns one residence.
func (r *Repository) ResidenceByID(ctx context.Context, id uuid.UUID) (Residence, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+residenceColumns+` FROM residences WHERE id = $1`, id)
	return scanResidence(row)
}

// ResidencesByBuilding lists a building's residences.
func (r *Repository) ResidencesByBuilding(ctx context.Context, buildingID uuid.UUID) ([]Residence, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+residenceColumns+` FROM residences WHERE building_id = $1 ORDER BY unit_number, id`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var residences []Residence
	for rows.Next() {
		res, err := scanResidence(rows)
		if err != nil {
			return nil, err
		}
		residences = append(residences, res)
	}
	return residences, rows.Err()
}

// UpdateResidence mutates residence fields.
func (r *Repository) UpdateResidence(ctx context.Context, id uuid.UUID, in UpdateResidenceInput) (Residence, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE residences SET unit_number = $2, floor = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+residenceColumns,
		id, in.UnitNumber, in.Floor, in.IsActive)
	return scanResidence(row)
}

const assignmentColumns = `id, user_id, residence_id, relationship, start_date, end_date, is_active, created_at, updated_at`

func scanAssignment(row pgx.Row) (ResidenceAssignment, error) {
	var a ResidenceAssignment
	err := row.Scan(&a.ID, &a.UserID, &a.ResidenceID, &a.Relationship,
		&a.StartDate, &a.EndDate, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return ResidenceAssignment{}, mapError(err)
	}
	return a, nil
}

// CreateAssignment inserts a new residence assignment.
func (r *Repository) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (ResidenceAssignment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO residence_assignments (id, user_id, residence_id, relationship, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING `+assignmentColumns,
		uuid.New(), in.UserID, in.ResidenceID, in.Relationship, in.StartDate, in.EndDate)
	return scanAssignment(row)
}

// AssignmentByID returns one assignment.
func (r *Repository) AssignmentByID(ctx context.Context, id uuid.UUID) (ResidenceAssignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM residence_assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// AssignmentsByUser lists a user's assignments, active or not.
func (r *Repository) AssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]ResidenceAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM residence_assignments WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []ResidenceAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// EndAssignment deactivates an assignment and stamps its end date.
func (r *Repository) EndAssignment(ctx context.Context, id uuid.UUID) (ResidenceAssignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE residence_assignments
		SET is_active = FALSE, end_date = COALESCE(end_date, now()), updated_at = now()
		WHERE id = $1
		RETURNING `+assignmentColumns, id)
	return scanAssignment(row)
}
