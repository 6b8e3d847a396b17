package access

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/domus-pm/domus/internal/identity"
)

func newTestRouter(store Store) *chi.Mux {
	engine := newTestEngine(store)
	guard := Guard{Engine: engine}
	handler := NewHandler(nil, engine, nil, guard)

	r := chi.NewRouter()
	r.Use(identity.Middleware(nil))
	handler.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target string, actorID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if actorID != uuid.Nil {
		req.Header.Set(identity.ActorHeader, actorID.String())
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerListOrganizations(t *testing.T) {
	store := newFakeStore()
	universal := store.addOrg("Demo", true, false, false)
	orgA := store.addOrg("Org A", false, false, false)
	actor := store.addActor(RoleManager)
	store.addMembership(actor.ID, orgA, false)

	rec := doRequest(t, newTestRouter(store), http.MethodGet, "/organizations", actor.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[organizationsResponse](t, rec)
	require.ElementsMatch(t, []uuid.UUID{universal.ID, orgA.ID}, resp.OrganizationIDs)
}

func TestHandlerRequiresActor(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	for _, target := range []string{"/organizations", "/sandbox"} {
		rec := doRequest(t, router, http.MethodGet, target, uuid.Nil, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestHandlerCheckOrganization(t *testing.T) {
	store := newFakeStore()
	orgA := store.addOrg("Org A", false, false, false)
	orgZ := store.addOrg("Org Z", false, false, false)
	actor := store.addActor(RoleManager)
	store.addMembership(actor.ID, orgA, false)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/organizations/"+orgA.ID.String(), actor.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decodeBody[decisionResponse](t, rec).Allowed)

	rec = doRequest(t, router, http.MethodGet, "/organizations/"+orgZ.ID.String(), actor.ID, "")
	require.False(t, decodeBody[decisionResponse](t, rec).Allowed)

	rec = doRequest(t, router, http.MethodGet, "/organizations/not-a-uuid", actor.ID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCheckBuildingAndResidence(t *testing.T) {
	store := newFakeStore()
	orgA := store.addOrg("Org A", false, false, false)
	actor := store.addActor(RoleManager)
	store.addMembership(actor.ID, orgA, false)
	b := store.addBuilding(orgA, true)
	r := store.addResidence(b)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/buildings/"+b.ID.String(), actor.ID, "")
	require.True(t, decodeBody[decisionResponse](t, rec).Allowed)

	rec = doRequest(t, router, http.MethodGet, "/residences/"+r.ID.String(), actor.ID, "")
	require.True(t, decodeBody[decisionResponse](t, rec).Allowed)

	rec = doRequest(t, router, http.MethodGet, "/residences/"+uuid.NewString(), actor.ID, "")
	require.False(t, decodeBody[decisionResponse](t, rec).Allowed)
}

func TestHandlerSandboxStatus(t *testing.T) {
	store := newFakeStore()
	sandbox := store.addOrg("Demo", false, true, false)
	member := store.addActor(RoleDemoTenant)
	store.addMembership(member.ID, sandbox, false)
	outsider := store.addActor(RoleManager)
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/sandbox", member.ID, "")
	require.True(t, decodeBody[sandboxResponse](t, rec).Sandbox)

	rec = doRequest(t, router, http.MethodGet, "/sandbox", outsider.ID, "")
	require.False(t, decodeBody[sandboxResponse](t, rec).Sandbox)
}

func TestHandlerCheckEndpoint(t *testing.T) {
	store := newFakeStore()
	orgA := store.addOrg("Org A", false, false, false)
	sandbox := store.addOrg("Demo", false, true, false)
	actor := store.addActor(RoleManager)
	store.addMembership(actor.ID, orgA, false)
	member := store.addActor(RoleDemoTenant)
	store.addMembership(member.ID, sandbox, false)
	router := newTestRouter(store)

	cases := []struct {
		name    string
		actor   uuid.UUID
		body    string
		status  int
		allowed bool
	}{
		{
			name:    "organization allowed",
			actor:   actor.ID,
			body:    `{"kind":"organization","resource_id":"` + orgA.ID.String() + `"}`,
			status:  http.StatusOK,
			allowed: true,
		},
		{
			name:    "organization denied",
			actor:   actor.ID,
			body:    `{"kind":"organization","resource_id":"` + uuid.NewString() + `"}`,
			status:  http.StatusOK,
			allowed: false,
		},
		{
			name:    "write permitted",
			actor:   actor.ID,
			body:    `{"kind":"write","operation":"delete"}`,
			status:  http.StatusOK,
			allowed: true,
		},
		{
			name:    "write refused for sandbox member",
			actor:   member.ID,
			body:    `{"kind":"write","operation":"delete"}`,
			status:  http.StatusOK,
			allowed: false,
		},
		{
			name:   "unknown operation",
			actor:  actor.ID,
			body:   `{"kind":"write","operation":"teleport"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown kind",
			actor:  actor.ID,
			body:   `{"kind":"galaxy"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing resource id",
			actor:  actor.ID,
			body:   `{"kind":"organization"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed body",
			actor:  actor.ID,
			body:   `{"kind":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/check", tc.actor, tc.body)
			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, tc.allowed, decodeBody[decisionResponse](t, rec).Allowed)
			}
		})
	}
}
