package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeRepo records mutations in memory. Only the methods a test exercises
// carry behavior; the rest return zero values.
type fakeRepo struct {
	orgs        map[uuid.UUID]Organization
	users       map[uuid.UUID]User
	memberships map[uuid.UUID]Membership
	assignments map[uuid.UUID]ResidenceAssignment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orgs:        make(map[uuid.UUID]Organization),
		users:       make(map[uuid.UUID]User),
		memberships: make(map[uuid.UUID]Membership),
		assignments: make(map[uuid.UUID]ResidenceAssignment),
	}
}

func (r *fakeRepo) CreateOrganization(_ context.Context, in CreateOrganizationInput) (Organization, error) {
	org := Organization{
		ID:                 uuid.New(),
		Name:               in.Name,
		CanonicalName:      CanonicalName(in.Name),
		IsActive:           true,
		IsUniversal:        in.IsUniversal,
		IsSandbox:          in.IsSandbox,
		IsPlatformOperator: in.IsPlatformOperator,
	}
	r.orgs[org.ID] = org
	return org, nil
}

func (r *fakeRepo) OrganizationByID(_ context.Context, id uuid.UUID) (Organization, error) {
	org, ok := r.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (r *fakeRepo) ListOrganizations(_ context.Context, ids []uuid.UUID) ([]Organization, error) {
	var out []Organization
	for _, id := range ids {
		if org, ok := r.orgs[id]; ok {
			out = append(out, org)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateOrganization(_ context.Context, id uuid.UUID, in UpdateOrganizationInput) (Organization, error) {
	org, ok := r.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	org.Name = in.Name
	org.CanonicalName = CanonicalName(in.Name)
	org.IsActive = in.IsActive
	r.orgs[id] = org
	return org, nil
}

func (r *fakeRepo) DeactivateOrganization(_ context.Context, id uuid.UUID) error {
	org, ok := r.orgs[id]
	if !ok {
		return ErrNotFound
	}
	org.IsActive = false
	r.orgs[id] = org
	return nil
}

func (r *fakeRepo) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	u := User{ID: uuid.New(), Email: in.Email, Role: in.Role, IsActive: true}
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeRepo) UserByID(_ context.Context, id uuid.UUID) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) UpdateUser(_ context.Context, id uuid.UUID, in UpdateUserInput) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Role = in.Role
	u.IsActive = in.IsActive
	r.users[id] = u
	return u, nil
}

func (r *fakeRepo) CreateMembership(_ context.Context, in CreateMembershipInput) (Membership, error) {
	for _, m := range r.memberships {
		if m.UserID == in.UserID && m.OrganizationID == in.OrganizationID {
			return Membership{}, ErrDuplicate
		}
	}
	m := Membership{
		ID:                        uuid.New(),
		UserID:                    in.UserID,
		OrganizationID:            in.OrganizationID,
		CanAccessAllOrganizations: in.CanAccessAllOrganizations,
		IsActive:                  true,
	}
	r.memberships[m.ID] = m
	return m, nil
}

func (r *fakeRepo) MembershipByID(_ context.Context, id uuid.UUID) (Membership, error) {
	m, ok := r.memberships[id]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func (r *fakeRepo) MembershipsByUser(_ context.Context, userID uuid.UUID) ([]Membership, error) {
	var out []Membership
	for _, m := range r.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateMembership(_ context.Context, id uuid.UUID, in UpdateMembershipInput) (Membership, error) {
	m, ok := r.memberships[id]
	if !ok {
		return Membership{}, ErrNotFound
	}
	m.CanAccessAllOrganizations = in.CanAccessAllOrganizations
	m.IsActive = in.IsActive
	r.memberships[id] = m
	return m, nil
}

func (r *fakeRepo) CreateBuilding(_ context.Context, in CreateBuildingInput) (Building, error) {
	return Building{ID: uuid.New(), OrganizationID: in.OrganizationID, Name: in.Name, IsActive: true}, nil
}

func (r *fakeRepo) BuildingByID(context.Context, uuid.UUID) (Building, error) {
	return Building{}, ErrNotFound
}

func (r *fakeRepo) BuildingsByOrganization(context.Context, uuid.UUID) ([]Building, error) {
	return nil, nil
}

func (r *fakeRepo) UpdateBuilding(context.Context, uuid.UUID, UpdateBuildingInput) (Building, error) {
	return Building{}, ErrNotFound
}

func (r *fakeRepo) CreateResidence(_ context.Context, in CreateResidenceInput) (Residence, error) {
	return Residence{ID: uuid.New(), BuildingID: in.BuildingID, UnitNumber: in.UnitNumber, IsActive: true}, nil
}

func (r *fakeRepo) ResidenceByID(context.Context, uuid.UUID) (Residence, error) {
	return Residence{}, ErrNotFound
}

func (r *fakeRepo) ResidencesByBuilding(context.Context, uuid.UUID) ([]Residence, error) {
	return nil, nil
}

func (r *fakeRepo) UpdateResidence(context.Context, uuid.UUID, UpdateResidenceInput) (Residence, error) {
	return Residence{}, ErrNotFound
}

func (r *fakeRepo) CreateAssignment(_ context.Context, in CreateAssignmentInput) (ResidenceAssignment, error) {
	a := ResidenceAssignment{
		ID:           uuid.New(),
		UserID:       in.UserID,
		ResidenceID:  in.ResidenceID,
		Relationship: in.Relationship,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		IsActive:     true,
	}
	r.assignments[a.ID] = a
	return a, nil
}

func (r *fakeRepo) AssignmentByID(_ context.Context, id uuid.UUID) (ResidenceAssignment, error) {
	a, ok := r.assignments[id]
	if !ok {
		return ResidenceAssignment{}, ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) AssignmentsByUser(_ context.Context, userID uuid.UUID) ([]ResidenceAssignment, error) {
	var out []ResidenceAssignment
	for _, a := range r.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) EndAssignment(_ context.Context, id uuid.UUID) (ResidenceAssignment, error) {
	a, ok := r.assignments[id]
	if !ok {
		return ResidenceAssignment{}, ErrNotFound
	}
	a.IsActive = false
	r.assignments[id] = a
	return a, nil
}

var _ Repo = (*fakeRepo)(nil)

// recorder captures invalidation and refresh traffic.
type recorder struct {
	invalidated []uuid.UUID
	bumps       int
	enqueued    []uuid.UUID
}

func (r *recorder) Invalidate(_ context.Context, actorID uuid.UUID) error {
	r.invalidated = append(r.invalidated, actorID)
	return nil
}

func (r *recorder) Bump(context.Context) error {
	r.bumps++
	return nil
}

func (r *recorder) EnqueueAccessRefresh(_ context.Context, actorID uuid.UUID) error {
	r.enqueued = append(r.enqueued, actorID)
	return nil
}

func newTestService(repo Repo, rec *recorder) *Service {
	return NewService(repo, rec, rec, nil)
}

func TestCreateOrganizationValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), &recorder{})

	_, err := svc.CreateOrganization(context.Background(), CreateOrganizationInput{Name: "x"})
	require.ErrorIs(t, err, ErrInvalid)

	org, err := svc.CreateOrganization(context.Background(), CreateOrganizationInput{Name: "Résidences du Parc"})
	require.NoError(t, err)
	require.Equal(t, "residences du parc", org.CanonicalName)
}

func TestCreateOrganizationDistinguishedFlagsBumpEveryone(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(newFakeRepo(), rec)
	ctx := context.Background()

	_, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Plain Org"})
	require.NoError(t, err)
	require.Zero(t, rec.bumps, "a plain organization touches no existing set")

	_, err = svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Demo", IsUniversal: true})
	require.NoError(t, err)
	require.Equal(t, 1, rec.bumps, "a universal organization widens every set")

	_, err = svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Operator", IsPlatformOperator: true})
	require.NoError(t, err)
	require.Equal(t, 2, rec.bumps)
}

func TestMembershipMutationsRefreshMember(t *testing.T) {
	rec := &recorder{}
	repo := newFakeRepo()
	svc := newTestService(repo, rec)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "manager@example.com", Role: "manager"})
	require.NoError(t, err)
	org, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Org A"})
	require.NoError(t, err)

	m, err := svc.CreateMembership(ctx, CreateMembershipInput{UserID: user.ID, OrganizationID: org.ID})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{user.ID}, rec.invalidated)
	require.Equal(t, []uuid.UUID{user.ID}, rec.enqueued)

	_, err = svc.UpdateMembership(ctx, m.ID, UpdateMembershipInput{IsActive: false})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{user.ID, user.ID}, rec.invalidated)

	_, err = svc.CreateMembership(ctx, CreateMembershipInput{UserID: user.ID, OrganizationID: org.ID})
	require.ErrorIs(t, err, ErrDuplicate)
	require.Len(t, rec.invalidated, 2, "a failed mutation must not invalidate")
}

func TestAssignmentLifecycleRefreshesOccupant(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(newFakeRepo(), rec)
	ctx := context.Background()
	userID := uuid.New()

	a, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		UserID:       userID,
		ResidenceID:  uuid.New(),
		Relationship: "tenant",
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{userID}, rec.invalidated)

	ended, err := svc.EndAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, ended.IsActive)
	require.Equal(t, []uuid.UUID{userID, userID}, rec.invalidated)
}

func TestCreateAssignmentRejectsInvertedDates(t *testing.T) {
	svc := newTestService(newFakeRepo(), &recorder{})
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, -1, 0)

	_, err := svc.CreateAssignment(context.Background(), CreateAssignmentInput{
		UserID:       uuid.New(),
		ResidenceID:  uuid.New(),
		Relationship: "tenant",
		StartDate:    &start,
		EndDate:      &end,
	})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCreateAssignmentRejectsUnknownRelationship(t *testing.T) {
	svc := newTestService(newFakeRepo(), &recorder{})

	_, err := svc.CreateAssignment(context.Background(), CreateAssignmentInput{
		UserID:       uuid.New(),
		ResidenceID:  uuid.New(),
		Relationship: "squatter",
	})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestOrganizationUpdateBumpsEveryone(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(newFakeRepo(), rec)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Org A"})
	require.NoError(t, err)

	_, err = svc.UpdateOrganization(ctx, org.ID, UpdateOrganizationInput{Name: "Org A", IsActive: false})
	require.NoError(t, err)
	require.Equal(t, 1, rec.bumps)

	require.NoError(t, svc.DeactivateOrganization(ctx, org.ID))
	require.Equal(t, 2, rec.bumps)
}

func TestServiceWithoutHooks(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@example.com", Role: "tenant"})
	require.NoError(t, err)
	org, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Demo", IsUniversal: true})
	require.NoError(t, err)

	_, err = svc.CreateMembership(ctx, CreateMembershipInput{UserID: user.ID, OrganizationID: org.ID})
	require.NoError(t, err)
}
