package directory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/domus-pm/domus/internal/access"
	"github.com/domus-pm/domus/internal/identity"
	"github.com/domus-pm/domus/internal/platform/httpx"
)

// Handler exposes directory CRUD over JSON. Reads are scoped through the
// access engine; every mutation additionally passes the global write gate,
// so sandbox members can browse but never change anything.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	engine   *access.Engine
	resolver access.OrganizationResolver
	guard    access.Guard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, engine *access.Engine, resolver access.OrganizationResolver, guard access.Guard) *Handler {
	if resolver == nil {
		resolver = engine
	}
	return &Handler{logger: logger, service: service, engine: engine, resolver: resolver, guard: guard}
}

// MountRoutes registers directory routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireActor)

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", h.listOrganizations)
			r.With(h.guard.RequireWrite(access.OpCreate)).Post("/", h.createOrganization)
			r.Route("/{organizationID}", func(r chi.Router) {
				r.Use(h.guard.RequireOrganization("organizationID"))
				r.Get("/", h.getOrganization)
				r.Get("/buildings", h.listBuildings)
				r.With(h.guard.RequireWrite(access.OpUpdate)).Put("/", h.updateOrganization)
				r.With(h.guard.RequireWrite(access.OpDelete)).Delete("/", h.deactivateOrganization)
			})
		})

		r.Route("/buildings", func(r chi.Router) {
			r.With(h.guard.RequireWrite(access.OpCreate)).Post("/", h.createBuilding)
			r.Route("/{buildingID}", func(r chi.Router) {
				r.Use(h.guard.RequireBuilding("buildingID"))
				r.Get("/", h.getBuilding)
				r.Get("/residences", h.listResidences)
				r.With(h.guard.RequireWrite(access.OpUpdate)).Put("/", h.updateBuilding)
			})
		})

		r.Route("/residences", func(r chi.Router) {
			r.With(h.guard.RequireWrite(access.OpCreate)).Post("/", h.createResidence)
			r.Route("/{residenceID}", func(r chi.Router) {
				r.Use(h.guard.RequireResidence("residenceID"))
				r.Get("/", h.getResidence)
				r.With(h.guard.RequireWrite(access.OpUpdate)).Put("/", h.updateResidence)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.guard.RequireWrite(access.OpCreate)).Post("/", h.createUser)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.getUser)
				r.Get("/memberships", h.listMemberships)
				r.Get("/assignments", h.listAssignments)
				r.With(h.guard.RequireWrite(access.OpManage)).Put("/", h.updateUser)
			})
		})

		r.Route("/memberships", func(r chi.Router) {
			r.With(h.guard.RequireWrite(access.OpAssign)).Post("/", h.createMembership)
			r.With(h.guard.RequireWrite(access.OpManage)).Put("/{membershipID}", h.updateMembership)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.With(h.guard.RequireWrite(access.OpAssign)).Post("/", h.createAssignment)
			r.With(h.guard.RequireWrite(access.OpManage)).Delete("/{assignmentID}", h.endAssignment)
		})
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "the requested entity does not exist")
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "an entity with these attributes already exists")
	case errors.Is(err, ErrInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("directory request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", param+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var in T
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return in, false
	}
	return in, true
}

// listOrganizations returns the organizations visible to the caller: the
// accessible-organization set resolved for the current actor, hydrated
// into full rows.
func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	actorID, _ := identity.ActorID(r.Context())
	set := h.resolver.AccessibleOrganizations(r.Context(), actorID)
	orgs, err := h.service.Organizations(r.Context(), set.IDs())
	if err != nil {
		h.respondError(w, err)
		return
	}
	if orgs == nil {
		orgs = []Organization{}
	}
	httpx.JSON(w, http.StatusOK, orgs)
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[CreateOrganizationInput](w, r)
	if !ok {
		return
	}
	org, err := h.service.CreateOrganization(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, org)
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	org, err := h.service.Organization(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) updateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	in, ok := decode[UpdateOrganizationInput](w, r)
	if !ok {
		return
	}
	org, err := h.service.UpdateOrganization(r.Context(), id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) deactivateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	if err := h.service.DeactivateOrganization(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBuildings(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	buildings, err := h.service.Buildings(r.Context(), orgID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if buildings == nil {
		buildings = []Building{}
	}
	httpx.JSON(w, http.StatusOK, buildings)
}

// createBuilding checks organization access against the body, not a route
// parameter, so the guard middleware cannot cover it.
func (h *Handler) createBuilding(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[CreateBuildingInput](w, r)
	if !ok {
		return
	}
	actorID, _ := identity.ActorID(r.Context())
	if !h.resolver.AccessibleOrganizations(r.Context(), actorID).Contains(in.OrganizationID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "organization is outside the actor's accessible set")
		return
	}
	building, err := h.service.CreateBuilding(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, building)
}

func (h *Handler) getBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "buildingID")
	if !ok {
		return
	}
	building, err := h.service.Building(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, building)
}

func (h *Handler) updateBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "buildingID")
	if !ok {
		return
	}
	in, ok := decode[UpdateBuildingInput](w, r)
	if !ok {
		return
	}
	building, err := h.service.UpdateBuilding(r.Context(), id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, building)
}

func (h *Handler) listResidences(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := h.urlID(w, r, "buildingID")
	if !ok {
		return
	}
	residences, err := h.service.Residences(r.Context(), buildingID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if residences == nil {
		residences = []Residence{}
	}
	httpx.JSON(w, http.StatusOK, residences)
}

func (h *Handler) createResidence(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[CreateResidenceInput](w, r)
	if !ok {
		return
	}
	actorID, _ := identity.ActorID(r.Context())
	if !h.engine.CanAccessBuilding(r.Context(), actorID, in.BuildingID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "building is outside the actor's accessible set")
		return
	}
	residence, err := h.service.CreateResidence(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, residence)
}

func (h *Handler) getResidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "residenceID")
	if !ok {
		return
	}
	residence, err := h.service.Residence(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, residence)
}

func (h *Handler) updateResidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "residenceID")
	if !ok {
		return
	}
	in, ok := decode[UpdateResidenceInput](w, r)
	if !ok {
		return
	}
	residence, err := h.service.UpdateResidence(r.Context(), id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, residence)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[CreateUserInput](w, r)
	if !ok {
		return
	}
	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.service.User(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "userID")
	if !ok {
		return
	}
	in, ok := decode[UpdateUserInput](w, r)
	if !ok {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) listMemberships(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.urlID(w, r, "userID")
	if !ok {
		return
	}
	memberships, err := h.service.Memberships(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if memberships == nil {
		memberships = []Membership{}
	}
	httpx.JSON(w, http.StatusOK, memberships)
}

func (h *Handler) createMembership(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[CreateMembershipInput](w, r)
	if !ok {
		return
	}
	actorID, _ := identity.ActorID(r.Context())
	if !h.resolver.AccessibleOrganizations(r.Context(), actorID).Contains(in.OrganizationID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "organization is outside the actor's accessible set")
		return
	}
	m, err := h.service.CreateMembership(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) updateMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "membershipID")
	if !ok {
		return
	}
	in, ok := decode[UpdateMembershipInput](w, r)
	if !ok {
		return
	}
	m, err := h.service.UpdateMembership(r.Context(), id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.urlID(w, r, "userID")
	if !ok {
		return
	}
	assignments, err := h.service.Assignments(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if assignments == nil {
		assignments = []ResidenceAssignment{}
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	in, ok := decode[CreateAssignmentInput](w, r)
	if !ok {
		return
	}
	actorID, _ := identity.ActorID(r.Context())
	if !h.engine.CanAccessResidence(r.Context(), actorID, in.ResidenceID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "residence is outside the actor's accessible set")
		return
	}
	a, err := h.service.CreateAssignment(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) endAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "assignmentID")
	if !ok {
		return
	}
	if _, err := h.service.EndAssignment(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
