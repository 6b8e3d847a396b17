package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ActorHeader names the header the edge gateway uses to forward the
// authenticated subject.
const ActorHeader = "X-Actor-ID"

// Middleware parses the forwarded actor header and attaches the identity
// to the request context. Requests without the header pass through
// anonymously; route guards decide whether anonymity is acceptable. A
// malformed header is treated as anonymous rather than rejected here, so
// the response shape stays uniform at the guard.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(ActorHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			actorID, err := uuid.Parse(raw)
			if err != nil {
				logger.Warn("identity parse actor header", slog.String("value", raw))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actorID)))
		})
	}
}
