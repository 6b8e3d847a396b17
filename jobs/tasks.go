package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessRefresh re-resolves one actor's accessible-organization
	// set and re-primes the cache entry.
	TaskAccessRefresh = "access:refresh"
	// TaskAccessWarm re-primes cached sets for recently active actors.
	TaskAccessWarm = "access:warm"
)

// AccessRefreshPayload names the actor whose set should be re-resolved.
type AccessRefreshPayload struct {
	ActorID uuid.UUID `json:"actor_id"`
}

// NewAccessRefreshTask constructs a refresh task for one actor. The task
// ID is derived from the actor so repeated enqueues within the pending
// window collapse into one execution — the debounce the route layer
// relies on when a burst of membership edits lands.
func NewAccessRefreshTask(actorID uuid.UUID) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(AccessRefreshPayload{ActorID: actorID})
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.TaskID(TaskAccessRefresh + ":" + actorID.String()),
		asynq.Queue(QueueDefault),
	}
	return asynq.NewTask(TaskAccessRefresh, data), opts, nil
}

// AccessWarmPayload bounds the nightly warm pass.
type AccessWarmPayload struct {
	Window string `json:"window"`
	Limit  int    `json:"limit"`
}

// NewAccessWarmTask constructs a warm task covering actors active inside
// the window (a PostgreSQL interval literal, e.g. "24 hours").
func NewAccessWarmTask(window string, limit int) (*asynq.Task, error) {
	data, err := json.Marshal(AccessWarmPayload{Window: window, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessWarm, data), nil
}
