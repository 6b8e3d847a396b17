package access

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/domus-pm/domus/internal/identity"
)

// Guard wires access-control checks in front of HTTP handlers. Resource
// IDs are read from chi route parameters; the actor comes from the
// identity middleware. Organization checks go through the Resolver so
// cached sets are honored, everything else hits the engine directly.
type Guard struct {
	Engine   *Engine
	Resolver OrganizationResolver
	Logger   *slog.Logger
}

// RequireActor ensures a verified identity is attached to the request.
func (g Guard) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.ActorID(r.Context()); !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOrganization ensures the actor may access the organization named
// by the route parameter.
func (g Guard) RequireOrganization(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := identity.ActorID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			orgID, ok := g.routeID(w, r, param)
			if !ok {
				return
			}
			if !g.resolver().AccessibleOrganizations(r.Context(), actorID).Contains(orgID) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBuilding ensures the actor may access the building named by the
// route parameter.
func (g Guard) RequireBuilding(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := identity.ActorID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			buildingID, ok := g.routeID(w, r, param)
			if !ok {
				return
			}
			if !g.Engine.CanAccessBuilding(r.Context(), actorID, buildingID) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireResidence ensures the actor may access the residence named by
// the route parameter.
func (g Guard) RequireResidence(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := identity.ActorID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			residenceID, ok := g.routeID(w, r, param)
			if !ok {
				return
			}
			if !g.Engine.CanAccessResidence(r.Context(), actorID, residenceID) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireWrite ensures the actor may perform the mutating operation.
func (g Guard) RequireWrite(op WriteOperation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := identity.ActorID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !g.Engine.CanPerformWrite(r.Context(), actorID, op) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g Guard) resolver() OrganizationResolver {
	if g.Resolver != nil {
		return g.Resolver
	}
	return g.Engine
}

func (g Guard) routeID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Error("access parse route param", slog.String("param", param), slog.String("value", raw))
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
