package access

import (
	"fmt"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/domus-pm/domus/internal/identity"
	"github.com/domus-pm/domus/internal/platform/httpx"
)

// Handler exposes access decisions over HTTP for sibling services that
// cannot link the engine directly. Every endpoint answers for the actor
// forwarded by the edge gateway; none of them mutates state.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	resolver  OrganizationResolver
	guard     Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine, resolver OrganizationResolver, guard Guard) *Handler {
	if resolver == nil {
		resolver = engine
	}
	return &Handler{
		logger:    logger,
		engine:    engine,
		resolver:  resolver,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers decision routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireActor)
		r.Get("/organizations", h.listOrganizations)
		r.Get("/organizations/{organizationID}", h.checkOrganization)
		r.Get("/buildings/{buildingID}", h.checkBuilding)
		r.Get("/residences/{residenceID}", h.checkResidence)
		r.Get("/sandbox", h.sandboxStatus)
		r.Post("/check", h.check)
	})
}

type organizationsResponse struct {
	OrganizationIDs []uuid.UUID `json:"organization_ids"`
}

type decisionResponse struct {
	Allowed bool `json:"allowed"`
}

type sandboxResponse struct {
	Sandbox bool `json:"sandbox"`
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	actorID, _ := identity.ActorID(r.Context())
	set := h.resolver.AccessibleOrganizations(r.Context(), actorID)
	httpx.JSON(w, http.StatusOK, organizationsResponse{OrganizationIDs: set.IDs()})
}

func (h *Handler) checkOrganization(w http.ResponseWriter, r *http.Request) {
	actorID, _ := identity.ActorID(r.Context())
	orgID, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	allowed := h.resolver.AccessibleOrganizations(r.Context(), actorID).Contains(orgID)
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
}

func (h *Handler) checkBuilding(w http.ResponseWriter, r *http.Request) {
	actorID, _ := identity.ActorID(r.Context())
	buildingID, ok := h.urlID(w, r, "buildingID")
	if !ok {
		return
	}
	allowed := h.engine.CanAccessBuilding(r.Context(), actorID, buildingID)
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
}

func (h *Handler) checkResidence(w http.ResponseWriter, r *http.Request) {
	actorID, _ := identity.ActorID(r.Context())
	residenceID, ok := h.urlID(w, r, "residenceID")
	if !ok {
		return
	}
	allowed := h.engine.CanAccessResidence(r.Context(), actorID, residenceID)
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
}

func (h *Handler) sandboxStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _ := identity.ActorID(r.Context())
	httpx.JSON(w, http.StatusOK, sandboxResponse{Sandbox: h.engine.IsSandboxUser(r.Context(), actorID)})
}

type checkRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=organization building residence write sandbox"`
	ResourceID string `json:"resource_id" validate:"omitempty,uuid"`
	Operation  string `json:"operation" validate:"omitempty,max=32"`
}

// check answers a single decision described by the request body. The
// route-parameter endpoints cover the common cases; this one exists for
// callers that batch decision kinds behind one client method.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	actorID, _ := identity.ActorID(r.Context())
	ctx := r.Context()

	switch req.Kind {
	case "organization", "building", "residence":
		if req.ResourceID == "" {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "resource_id is required for "+req.Kind+" checks")
			return
		}
		resourceID, err := uuid.Parse(req.ResourceID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "resource_id must be a UUID")
			return
		}
		var allowed bool
		switch req.Kind {
		case "organization":
			allowed = h.resolver.AccessibleOrganizations(ctx, actorID).Contains(resourceID)
		case "building":
			allowed = h.engine.CanAccessBuilding(ctx, actorID, resourceID)
		case "residence":
			allowed = h.engine.CanAccessResidence(ctx, actorID, resourceID)
		}
		httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
	case "write":
		op, ok := ParseWriteOperation(req.Operation)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "operation is not a recognized write operation")
			return
		}
		httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: h.engine.CanPerformWrite(ctx, actorID, op)})
	case "sandbox":
		httpx.JSON(w, http.StatusOK, sandboxResponse{Sandbox: h.engine.IsSandboxUser(ctx, actorID)})
	}
}

func (h *Handler) urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", param+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func validationDetail(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "request failed validation"
	}
	fieldErr := errs[0]
	return fmt.Sprintf("%s failed on %s", fieldErr.Field(), fieldErr.Tag())
}
