package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Repo is the persistence surface the service depends on.
type Repo interface {
	CreateOrganization(ctx context.Context, in CreateOrganizationInput) (Organization, error)
	OrganizationByID(ctx context.Context, id uuid.UUID) (Organization, error)
	ListOrganizations(ctx context.Context, ids []uuid.UUID) ([]Organization, error)
	UpdateOrganization(ctx context.Context, id uuid.UUID, in UpdateOrganizationInput) (Organization, error)
	DeactivateOrganization(ctx context.Context, id uuid.UUID) error

	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (User, error)

	CreateMembership(ctx context.Context, in CreateMembershipInput) (Membership, error)
	MembershipByID(ctx context.Context, id uuid.UUID) (Membership, error)
	MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	UpdateMembership(ctx context.Context, id uuid.UUID, in UpdateMembershipInput) (Membership, error)

	CreateBuilding(ctx context.Context, in CreateBuildingInput) (Building, error)
	BuildingByID(ctx context.Context, id uuid.UUID) (Building, error)
	BuildingsByOrganization(ctx context.Context, orgID uuid.UUID) ([]Building, error)
	UpdateBuilding(ctx context.Context, id uuid.UUID, in UpdateBuildingInput) (Building, error)

	CreateResidence(ctx context.Context, in CreateResidenceInput) (Residence, error)
	ResidenceByID(ctx context.Context, id uuid.UUID) (Residence, error)
	ResidencesByBuilding(ctx context.Context, buildingID uuid.UUID) ([]Residence, error)
	UpdateResidence(ctx context.Context, id uuid.UUID, in UpdateResidenceInput) (Residence, error)

	CreateAssignment(ctx context.Context, in CreateAssignmentInput) (ResidenceAssignment, error)
	AssignmentByID(ctx context.Context, id uuid.UUID) (ResidenceAssignment, error)
	AssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]ResidenceAssignment, error)
	EndAssignment(ctx context.Context, id uuid.UUID) (ResidenceAssignment, error)
}

var _ Repo = (*Repository)(nil)

// AccessInvalidator drops memoized accessible-organization sets after a
// mutation that can change them.
type AccessInvalidator interface {
	Invalidate(ctx context.Context, actorID uuid.UUID) error
	Bump(ctx context.Context) error
}

// RefreshEnqueuer schedules a debounced background re-resolution of an
// actor's accessible set.
type RefreshEnqueuer interface {
	EnqueueAccessRefresh(ctx context.Context, actorID uuid.UUID) error
}

// Service validates directory mutations and keeps the access cache and
// refresh queue in sync with them. Invalidator and enqueuer are optional;
// without them mutations still land, callers just see stale cached sets
// until the TTL expires.
type Service struct {
	repo        Repo
	invalidator AccessInvalidator
	enqueuer    RefreshEnqueuer
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewService constructs a Service.
func NewService(repo Repo, invalidator AccessInvalidator, enqueuer RefreshEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		enqueuer:    enqueuer,
		logger:      logger,
		validate:    validator.New(),
	}
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// actorChanged invalidates the actor's cached set and schedules a
// background re-resolution. Both are best-effort: a failure is logged, the
// mutation itself already committed.
func (s *Service) actorChanged(ctx context.Context, actorID uuid.UUID) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, actorID); err != nil {
			s.logger.Warn("invalidate access cache", slog.String("actor_id", actorID.String()), slog.Any("error", err))
		}
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueAccessRefresh(ctx, actorID); err != nil {
			s.logger.Warn("enqueue access refresh", slog.String("actor_id", actorID.String()), slog.Any("error", err))
		}
	}
}

// everyActorChanged invalidates all cached sets at once. Used for
// organization-level changes whose blast radius is unbounded.
func (s *Service) everyActorChanged(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx); err != nil {
		s.logger.Warn("bump access cache version", slog.Any("error", err))
	}
}

// CreateOrganization creates an organization.
func (s *Service) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (Organization, error) {
	if err := s.check(in); err != nil {
		return Organization{}, err
	}
	org, err := s.repo.CreateOrganization(ctx, in)
	if err != nil {
		return Organization{}, err
	}
	// A new universal or platform-operator organization widens existing
	// actors' sets immediately.
	if org.IsUniversal || org.IsPlatformOperator {
		s.everyActorChanged(ctx)
	}
	return org, nil
}

// Organization returns one organization.
func (s *Service) Organization(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.repo.OrganizationByID(ctx, id)
}

// Organizations lists the organizations named by ids.
func (s *Service) Organizations(ctx context.Context, ids []uuid.UUID) ([]Organization, error) {
	return s.repo.ListOrganizations(ctx, ids)
}

// UpdateOrganization mutates an organization.
func (s *Service) UpdateOrganization(ctx context.Context, id uuid.UUID, in UpdateOrganizationInput) (Organization, error) {
	if err := s.check(in); err != nil {
		return Organization{}, err
	}
	org, err := s.repo.UpdateOrganization(ctx, id, in)
	if err != nil {
		return Organization{}, err
	}
	s.everyActorChanged(ctx)
	return org, nil
}

// DeactivateOrganization soft-deletes an organization.
func (s *Service) DeactivateOrganization(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivateOrganization(ctx, id); err != nil {
		return err
	}
	s.everyActorChanged(ctx)
	return nil
}

// CreateUser creates a user.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := s.check(in); err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, in)
}

// User returns one user.
func (s *Service) User(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.UserByID(ctx, id)
}

// UpdateUser mutates a user.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (User, error) {
	if err := s.check(in); err != nil {
		return User{}, err
	}
	return s.repo.UpdateUser(ctx, id, in)
}

// CreateMembership creates a membership and refreshes the member's access.
func (s *Service) CreateMembership(ctx context.Context, in CreateMembershipInput) (Membership, error) {
	if err := s.check(in); err != nil {
		return Membership{}, err
	}
	m, err := s.repo.CreateMembership(ctx, in)
	if err != nil {
		return Membership{}, err
	}
	s.actorChanged(ctx, m.UserID)
	return m, nil
}

// Memberships lists a user's memberships.
func (s *Service) Memberships(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	return s.repo.MembershipsByUser(ctx, userID)
}

// UpdateMembership mutates a membership's flags and refreshes the member's
// access.
func (s *Service) UpdateMembership(ctx context.Context, id uuid.UUID, in UpdateMembershipInput) (Membership, error) {
	if err := s.check(in); err != nil {
		return Membership{}, err
	}
	m, err := s.repo.UpdateMembership(ctx, id, in)
	if err != nil {
		return Membership{}, err
	}
	s.actorChanged(ctx, m.UserID)
	return m, nil
}

// CreateBuilding creates a building.
func (s *Service) CreateBuilding(ctx context.Context, in CreateBuildingInput) (Building, error) {
	if err := s.check(in); err != nil {
		return Building{}, err
	}
	return s.repo.CreateBuilding(ctx, in)
}

// Building returns one building.
func (s *Service) Building(ctx context.Context, id uuid.UUID) (Building, error) {
	return s.repo.BuildingByID(ctx, id)
}

// Buildings lists an organization's buildings.
func (s *Service) Buildings(ctx context.Context, orgID uuid.UUID) ([]Building, error) {
	return s.repo.BuildingsByOrganization(ctx, orgID)
}

// UpdateBuilding mutates a building.
func (s *Service) UpdateBuilding(ctx context.Context, id uuid.UUID, in UpdateBuildingInput) (Building, error) {
	if err := s.check(in); err != nil {
		return Building{}, err
	}
	return s.repo.UpdateBuilding(ctx, id, in)
}

// CreateResidence creates a residence.
func (s *Service) CreateResidence(ctx context.Context, in CreateResidenceInput) (Residence, error) {
	if err := s.check(in); err != nil {
		return Residence{}, err
	}
	return s.repo.CreateResidence(ctx, in)
}

// Residence returns one residence.
func (s *Service) Residence(ctx context.Context, id uuid.UUID) (Residence, error) {
	return s.repo.ResidenceByID(ctx, id)
}

// Residences lists a building's residences.
func (s *Service) Residences(ctx context.Context, buildingID uuid.UUID) ([]Residence, error) {
	return s.repo.ResidencesByBuilding(ctx, buildingID)
}

// UpdateResidence mutates a residence.
func (s *Service) UpdateResidence(ctx context.Context, id uuid.UUID, in UpdateResidenceInput) (Residence, error) {
	if err := s.check(in); err != nil {
		return Residence{}, err
	}
	return s.repo.UpdateResidence(ctx, id, in)
}

// CreateAssignment creates a residence assignment. Occupant access flows
// from assignment rows, so the occupant's cached set is refreshed too even
// though organizational scoping never consults assignments.
func (s *Service) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (ResidenceAssignment, error) {
	if err := s.check(in); err != nil {
		return ResidenceAssignment{}, err
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return ResidenceAssignment{}, fmt.Errorf("%w: end date precedes start date", ErrInvalid)
	}
	a, err := s.repo.CreateAssignment(ctx, in)
	if err != nil {
		return ResidenceAssignment{}, err
	}
	s.actorChanged(ctx, a.UserID)
	return a, nil
}

// Assignments lists a user's residence assignments.
func (s *Service) Assignments(ctx context.Context, userID uuid.UUID) ([]ResidenceAssignment, error) {
	return s.repo.AssignmentsByUser(ctx, userID)
}

// EndAssignment deactivates an assignment.
func (s *Service) EndAssignment(ctx context.Context, id uuid.UUID) (ResidenceAssignment, error) {
	a, err := s.repo.EndAssignment(ctx, id)
	if err != nil {
		return ResidenceAssignment{}, err
	}
	s.actorChanged(ctx, a.UserID)
	return a, nil
}
