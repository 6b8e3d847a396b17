package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/domus-pm/domus/internal/access"
	jobmetrics "github.com/domus-pm/domus/internal/jobs"
)

// RecentActorSource lists actors whose access-relevant rows changed
// recently. Implemented by the directory repository.
type RecentActorSource interface {
	RecentlyActiveUserIDs(ctx context.Context, window string, limit int) ([]uuid.UUID, error)
}

const (
	defaultWarmWindow = "24 hours"
	defaultWarmLimit  = 1000
)

// RefreshJob re-resolves accessible-organization sets in the background
// and primes the call-site cache, so the first request after a membership
// change does not pay the resolve latency.
type RefreshJob struct {
	cache   *access.Cache
	actors  RecentActorSource
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRefreshJob constructs a RefreshJob.
func NewRefreshJob(cache *access.Cache, actors RecentActorSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *RefreshJob {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RefreshJob{cache: cache, actors: actors, logger: logger, metrics: metrics}
}

// HandleRefresh processes TaskAccessRefresh tasks.
func (j *RefreshJob) HandleRefresh(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("access_refresh")
	var payload AccessRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	set := j.cache.Warm(ctx, payload.ActorID)
	j.logger.Info("access set refreshed",
		slog.String("actor_id", payload.ActorID.String()),
		slog.Int("organizations", len(set)))
	return tracker.End(nil)
}

// HandleWarm processes TaskAccessWarm tasks.
func (j *RefreshJob) HandleWarm(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("access_warm")
	var payload AccessWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.Window == "" {
		payload.Window = defaultWarmWindow
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultWarmLimit
	}

	ids, err := j.actors.RecentlyActiveUserIDs(ctx, payload.Window, payload.Limit)
	if err != nil {
		return tracker.End(err)
	}
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return tracker.End(ctx.Err())
		default:
		}
		j.cache.Warm(ctx, id)
	}
	j.logger.Info("access cache warmed", slog.Int("actors", len(ids)))
	return tracker.End(nil)
}
