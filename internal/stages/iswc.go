package stages

import (
	"context"
	"log/slog"

	"songmill/internal/iswc"
	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/stage"
)

// discoverer is the slice of the gate evaluator the handler uses.
type discoverer interface {
	Discover(ctx context.Context, track *queue.Track) (*iswc.Result, error)
}

// Discovery runs the rights gate. A successful run pins the ISWC on the
// track; exhausting every source surfaces a gate failure the manager turns
// into a terminal track state.
type Discovery struct {
	evaluator discoverer
	logger    *slog.Logger
}

// NewDiscovery builds the ISWC discovery handler.
func NewDiscovery(evaluator discoverer, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Discovery{evaluator: evaluator, logger: logger}
}

// TaskType identifies the task this handler owns.
func (d *Discovery) TaskType() queue.TaskType { return queue.TaskISWCDiscovery }

type discoveryResult struct {
	ISWC   string `json:"iswc"`
	Source string `json:"source"`
}

// Execute walks the source chain and records the winning source.
func (d *Discovery) Execute(ctx context.Context, track *queue.Track, task *queue.Task) error {
	result, err := d.evaluator.Discover(ctx, track)
	if err != nil {
		return err
	}
	track.ISWC = result.ISWC
	task.ResultJSON = encodeResult(discoveryResult{ISWC: result.ISWC, Source: result.Source})
	return nil
}

// HealthCheck reports whether the evaluator is wired.
func (d *Discovery) HealthCheck(context.Context) stage.Health {
	if d.evaluator == nil {
		return stage.Unhealthy(string(queue.TaskISWCDiscovery), "evaluator not configured")
	}
	return stage.Healthy(string(queue.TaskISWCDiscovery))
}
