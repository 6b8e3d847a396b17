// Package access implements the authorization engine for the platform:
// resolution of an actor's accessible-organization set, building and
// residence access derived through the organizational hierarchy, the
// occupant assignment override, the global write gate, and sandbox-user
// detection.
//
// The engine is stateless. Every decision is a one-shot evaluation of
// current persisted facts; nothing is cached between calls and no method
// ever writes. Callers that need repeated-check performance memoize at the
// call site (see Cache), accepting that a memoized set can go stale the
// moment a membership changes.
package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

const (
	checkResolve   = "resolve_organizations"
	checkOrg       = "organization"
	checkBuilding  = "building"
	checkResidence = "residence"
	checkSandbox   = "sandbox"
	checkWrite     = "write"
)

// Engine evaluates access decisions against a Store.
//
// The public methods are total: they always return a value of their
// declared type and never surface an error. Read-path methods collapse any
// persistence failure into denial (empty set or false); the write gate
// collapses a sandbox-detection failure into permission. Absorbed errors
// are logged and counted.
type Engine struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

// NewEngine constructs an Engine. Logger and metrics may be nil.
func NewEngine(store Store, logger *slog.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, logger: logger, metrics: metrics}
}

// AccessibleOrganizations resolves the complete set of organization
// identifiers the actor may operate within.
//
// The universally-accessible organization, when configured, is a member of
// every actor's set. A membership carrying the global-access grant, or an
// active membership in the platform-operator organization, short-circuits
// scoping: the result becomes every active organization. Otherwise the set
// is the universal organization plus the actor's membership organizations.
// Any persistence failure yields the empty set.
func (e *Engine) AccessibleOrganizations(ctx context.Context, actorID uuid.UUID) OrgSet {
	set := make(OrgSet)

	universal, err := e.store.UniversalOrganization(ctx)
	switch {
	case err == nil:
		set.Add(universal.ID)
	case errors.Is(err, ErrNotFound):
		// Optional organization; resolution continues without it.
	default:
		e.fail(checkResolve, "universal organization lookup", err)
		return OrgSet{}
	}

	memberships, err := e.store.ActiveMemberships(ctx, actorID)
	if err != nil {
		e.fail(checkResolve, "membership lookup", err)
		return OrgSet{}
	}

	for _, m := range memberships {
		if m.CanAccessAllOrganizations || m.Organization.IsPlatformOperator {
			return e.allActiveOrganizations(ctx)
		}
	}

	for _, m := range memberships {
		set.Add(m.OrganizationID)
	}
	return set
}

func (e *Engine) allActiveOrganizations(ctx context.Context) OrgSet {
	orgs, err := e.store.ActiveOrganizations(ctx)
	if err != nil {
		e.fail(checkResolve, "active organization listing", err)
		return OrgSet{}
	}
	set := make(OrgSet, len(orgs))
	for _, org := range orgs {
		set.Add(org.ID)
	}
	return set
}

// CanAccessOrganization reports whether the organization is in the actor's
// accessible set.
func (e *Engine) CanAccessOrganization(ctx context.Context, actorID, orgID uuid.UUID) bool {
	allowed := e.AccessibleOrganizations(ctx, actorID).Contains(orgID)
	e.metrics.decision(checkOrg, allowed)
	return allowed
}

// CanAccessBuilding reports whether the actor may access the building. A
// building that is absent or inactive is denied through the same path, so
// the response does not reveal which of the two applies.
func (e *Engine) CanAccessBuilding(ctx context.Context, actorID, buildingID uuid.UUID) bool {
	allowed := e.buildingAllowed(ctx, actorID, buildingID)
	e.metrics.decision(checkBuilding, allowed)
	return allowed
}

func (e *Engine) buildingAllowed(ctx context.Context, actorID, buildingID uuid.UUID) bool {
	building, err := e.store.BuildingByID(ctx, buildingID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.fail(checkBuilding, "building lookup", err)
		}
		return false
	}
	if !building.IsActive {
		return false
	}
	return e.AccessibleOrganizations(ctx, actorID).Contains(building.OrganizationID)
}

// CanAccessResidence reports whether the actor may access the residence.
//
// Administrative roles delegate through the residence's owning building and
// its organization. Occupant roles bypass organizational scoping entirely:
// access is granted iff an active assignment names this residence, which
// keeps an occupant's access intact across organizational reshuffles.
// Unrecognized roles take the occupant path, the narrower of the two.
func (e *Engine) CanAccessResidence(ctx context.Context, actorID, residenceID uuid.UUID) bool {
	allowed := e.residenceAllowed(ctx, actorID, residenceID)
	e.metrics.decision(checkResidence, allowed)
	return allowed
}

func (e *Engine) residenceAllowed(ctx context.Context, actorID, residenceID uuid.UUID) bool {
	actor, err := e.store.ActorByID(ctx, actorID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.fail(checkResidence, "actor lookup", err)
		}
		return false
	}

	residence, err := e.store.ResidenceByID(ctx, residenceID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.fail(checkResidence, "residence lookup", err)
		}
		return false
	}

	if actor.Role.IsAdministrative() {
		return e.buildingAllowed(ctx, actorID, residence.BuildingID)
	}

	assignments, err := e.store.ActiveResidenceAssignments(ctx, actorID)
	if err != nil {
		e.fail(checkResidence, "assignment lookup", err)
		return false
	}
	for _, a := range assignments {
		if a.ResidenceID == residenceID {
			return true
		}
	}
	return false
}

// IsSandboxUser reports whether the actor holds an active membership in the
// sandbox organization. False when no sandbox organization is configured,
// the actor has no membership there, or persistence fails.
func (e *Engine) IsSandboxUser(ctx context.Context, actorID uuid.UUID) bool {
	sandbox, err := e.sandboxMembership(ctx, actorID)
	if err != nil {
		e.fail(checkSandbox, "sandbox detection", err)
		sandbox = false
	}
	e.metrics.decision(checkSandbox, sandbox)
	return sandbox
}

func (e *Engine) sandboxMembership(ctx context.Context, actorID uuid.UUID) (bool, error) {
	org, err := e.store.SandboxOrganization(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	memberships, err := e.store.ActiveMemberships(ctx, actorID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if m.OrganizationID == org.ID {
			return true, nil
		}
	}
	return false, nil
}

// CanPerformWrite reports whether the actor may perform the mutating
// operation. Every operation in the closed set is gated identically:
// sandbox members are refused, everyone else is permitted. Fine-grained
// per-resource permission belongs to the caller.
//
// When sandbox detection itself fails the gate fails open and permits the
// write — the inverse of the read path's fail-closed posture. The choice
// favors availability for the common non-sandbox case; it is logged and
// counted so the trade-off stays visible rather than degrading silently.
func (e *Engine) CanPerformWrite(ctx context.Context, actorID uuid.UUID, op WriteOperation) bool {
	sandbox, err := e.sandboxMembership(ctx, actorID)
	if err != nil {
		e.metrics.storeFailure(checkWrite)
		e.metrics.failedOpen()
		e.logger.Warn("write gate failing open on sandbox detection error",
			slog.String("actor_id", actorID.String()),
			slog.String("operation", string(op)),
			slog.Any("error", err))
		e.metrics.decision(checkWrite, true)
		return true
	}
	allowed := !sandbox
	e.metrics.decision(checkWrite, allowed)
	return allowed
}

func (e *Engine) fail(check, during string, err error) {
	e.metrics.storeFailure(check)
	e.logger.Error("access check failing closed",
		slog.String("check", check),
		slog.String("during", during),
		slog.Any("error", err))
}
