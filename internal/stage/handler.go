package stage

import (
	"context"

	"songmill/internal/queue"
)

// Handler describes the contract the workflow manager needs from each task
// handler. Execute receives the claimed task and its track; mutations to the
// track are persisted by the caller after a successful run.
type Handler interface {
	TaskType() queue.TaskType
	Execute(context.Context, *queue.Track, *queue.Task) error
	HealthCheck(context.Context) Health
}
