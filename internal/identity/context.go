// Package identity carries the authenticated actor through request context.
//
// Credential verification happens upstream: the edge gateway authenticates
// the session and forwards the subject as a header. This package only
// parses and propagates that identity; authorization decisions live in
// the access package.
package identity

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithActor returns a context carrying the actor ID.
func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, actorID)
}

// ActorID extracts the actor ID from the context. The boolean reports
// whether a verified identity was attached to the request.
func ActorID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok
}
