package directory

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/domus-pm/domus/internal/access"
	"github.com/domus-pm/domus/internal/identity"
)

// bridgeStore adapts the in-memory repo into the engine's read surface so
// handler tests run the real guard and engine in front of the routes.
type bridgeStore struct {
	repo *fakeRepo
}

func (s bridgeStore) flagged(pick func(Organization) bool) (access.Organization, error) {
	for _, org := range s.repo.orgs {
		if pick(org) && org.IsActive {
			return toAccessOrg(org), nil
		}
	}
	return access.Organization{}, access.ErrNotFound
}

func toAccessOrg(org Organization) access.Organization {
	return access.Organization{
		ID:                 org.ID,
		Name:               org.Name,
		IsActive:           org.IsActive,
		IsUniversal:        org.IsUniversal,
		IsSandbox:          org.IsSandbox,
		IsPlatformOperator: org.IsPlatformOperator,
	}
}

func (s bridgeStore) UniversalOrganization(context.Context) (access.Organization, error) {
	return s.flagged(func(o Organization) bool { return o.IsUniversal })
}

func (s bridgeStore) SandboxOrganization(context.Context) (access.Organization, error) {
	return s.flagged(func(o Organization) bool { return o.IsSandbox })
}

func (s bridgeStore) ActiveOrganizations(context.Context) ([]access.Organization, error) {
	var out []access.Organization
	for _, org := range s.repo.orgs {
		if org.IsActive {
			out = append(out, toAccessOrg(org))
		}
	}
	return out, nil
}

func (s bridgeStore) ActorByID(_ context.Context, id uuid.UUID) (access.Actor, error) {
	u, ok := s.repo.users[id]
	if !ok {
		return access.Actor{}, access.ErrNotFound
	}
	return access.Actor{ID: u.ID, Role: access.Role(u.Role), IsActive: u.IsActive}, nil
}

func (s bridgeStore) ActiveMemberships(_ context.Context, actorID uuid.UUID) ([]access.Membership, error) {
	var out []access.Membership
	for _, m := range s.repo.memberships {
		if m.UserID != actorID || !m.IsActive {
			continue
		}
		org, ok := s.repo.orgs[m.OrganizationID]
		if !ok || !org.IsActive {
			continue
		}
		out = append(out, access.Membership{
			ID:                        m.ID,
			ActorID:                   m.UserID,
			OrganizationID:            m.OrganizationID,
			CanAccessAllOrganizations: m.CanAccessAllOrganizations,
			IsActive:                  m.IsActive,
			Organization:              toAccessOrg(org),
		})
	}
	return out, nil
}

func (s bridgeStore) BuildingByID(context.Context, uuid.UUID) (access.Building, error) {
	return access.Building{}, access.ErrNotFound
}

func (s bridgeStore) ResidenceByID(context.Context, uuid.UUID) (access.Residence, error) {
	return access.Residence{}, access.ErrNotFound
}

func (s bridgeStore) ActiveResidenceAssignments(context.Context, uuid.UUID) ([]access.ResidenceAssignment, error) {
	return nil, nil
}

type handlerFixture struct {
	router  *chi.Mux
	repo    *fakeRepo
	manager User
	sandbox User
	orgA    Organization
	orgZ    Organization
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	orgA, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Org A"})
	require.NoError(t, err)
	orgZ, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Org Z"})
	require.NoError(t, err)
	sandboxOrg, err := svc.CreateOrganization(ctx, CreateOrganizationInput{Name: "Demo", IsSandbox: true})
	require.NoError(t, err)

	manager, err := svc.CreateUser(ctx, CreateUserInput{Email: "manager@example.com", Role: "manager"})
	require.NoError(t, err)
	_, err = svc.CreateMembership(ctx, CreateMembershipInput{UserID: manager.ID, OrganizationID: orgA.ID})
	require.NoError(t, err)

	sandboxUser, err := svc.CreateUser(ctx, CreateUserInput{Email: "demo@example.com", Role: "demo_manager"})
	require.NoError(t, err)
	_, err = svc.CreateMembership(ctx, CreateMembershipInput{UserID: sandboxUser.ID, OrganizationID: sandboxOrg.ID})
	require.NoError(t, err)

	engine := access.NewEngine(bridgeStore{repo: repo}, nil, access.NewMetrics(nil))
	guard := access.Guard{Engine: engine}
	handler := NewHandler(slog.New(slog.DiscardHandler), svc, engine, nil, guard)

	router := chi.NewRouter()
	router.Use(identity.Middleware(nil))
	handler.MountRoutes(router)

	return &handlerFixture{
		router:  router,
		repo:    repo,
		manager: manager,
		sandbox: sandboxUser,
		orgA:    orgA,
		orgZ:    orgZ,
	}
}

func (f *handlerFixture) do(t *testing.T, method, target string, actorID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actorID != uuid.Nil {
		req.Header.Set(identity.ActorHeader, actorID.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListOrganizationsHydratesAccessibleSet(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/organizations", f.manager.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var orgs []Organization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orgs))
	require.Len(t, orgs, 1)
	require.Equal(t, f.orgA.ID, orgs[0].ID)
}

func TestOrganizationRoutesEnforceScope(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/organizations/"+f.orgA.ID.String(), f.manager.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/organizations/"+f.orgZ.ID.String(), f.manager.ID, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/organizations", uuid.Nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSandboxMemberCanBrowseButNotWrite(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/organizations", f.sandbox.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/organizations", f.sandbox.ID, `{"name":"New Org"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/users", f.sandbox.ID, `{"email":"x@example.com","role":"tenant"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateBuildingChecksBodyOrganization(t *testing.T) {
	f := newHandlerFixture(t)

	body := `{"organization_id":"` + f.orgZ.ID.String() + `","name":"Tour B"}`
	rec := f.do(t, http.MethodPost, "/buildings", f.manager.ID, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body = `{"organization_id":"` + f.orgA.ID.String() + `","name":"Tour B"}`
	rec = f.do(t, http.MethodPost, "/buildings", f.manager.ID, body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateMembershipMapsDuplicateToConflict(t *testing.T) {
	f := newHandlerFixture(t)

	body := `{"user_id":"` + f.manager.ID.String() + `","organization_id":"` + f.orgA.ID.String() + `"}`
	rec := f.do(t, http.MethodPost, "/memberships", f.manager.ID, body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateOrganizationValidationProblem(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/organizations", f.manager.ID, `{"name":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/organizations", f.manager.ID, `{"name":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
