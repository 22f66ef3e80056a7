package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/services"
)

// RunStats counts the outcomes of one Run invocation.
type RunStats struct {
	Resolved   int
	Completed  int
	Failed     int
	GateFailed int
	Skipped    int
}

// Claimed is how many resolved tasks this run actually executed.
func (s RunStats) Claimed() int {
	return s.Completed + s.Failed + s.GateFailed
}

// Run resolves up to limit ready tasks and executes them sequentially. An
// empty taskTypes selector means every type. Used by the daemon workers and
// by one-shot CLI invocations alike.
func (m *Manager) Run(ctx context.Context, limit int, taskTypes ...queue.TaskType) (RunStats, error) {
	var stats RunStats
	ready, err := m.store.ResolveReady(ctx, limit, m.retryPolicy(), taskTypes...)
	if err != nil {
		return stats, err
	}
	stats.Resolved = len(ready)
	for _, candidate := range ready {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		m.processTask(ctx, candidate, &stats)
	}
	return stats, nil
}

func (m *Manager) processTask(ctx context.Context, ready queue.ReadyTask, stats *RunStats) {
	track, taskType := ready.Track, ready.Task.Type
	handler, ok := m.handlers[taskType]
	if !ok {
		m.logger.Warn("no handler registered", logging.String(logging.FieldTaskType, string(taskType)))
		stats.Skipped++
		return
	}

	task, err := m.store.Claim(ctx, track.ID, taskType)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyClaimed) {
			stats.Skipped++
			return
		}
		m.logger.Error("claim failed", logging.Error(err))
		stats.Skipped++
		return
	}

	taskCtx := services.WithTrackID(ctx, track.ID)
	taskCtx = services.WithTaskType(taskCtx, string(taskType))
	taskCtx = services.WithRequestID(taskCtx, uuid.NewString())
	logger := logging.WithContext(taskCtx, m.logger)

	heartbeatCtx, stopHeartbeat := context.WithCancel(taskCtx)
	var heartbeatWG sync.WaitGroup
	heartbeatWG.Add(1)
	go m.heartbeat.StartLoop(heartbeatCtx, &heartbeatWG, task.ID)

	started := time.Now()
	logger.Info("task started", logging.String(logging.FieldEventType, "task_start"))
	execErr := handler.Execute(taskCtx, track, task)
	stopHeartbeat()
	heartbeatWG.Wait()

	if execErr == nil {
		execErr = m.finishTask(taskCtx, track, task)
	}

	switch {
	case execErr == nil:
		stats.Completed++
		logger.Info("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Duration("elapsed", time.Since(started)),
		)
	case errors.Is(execErr, services.ErrGateFailed):
		if err := m.store.GateFail(ctx, track.ID, taskType, execErr.Error()); err != nil {
			logger.Error("gate failure not recorded", logging.Error(err))
			stats.Failed++
			return
		}
		stats.GateFailed++
		logger.Warn("task gate-failed, track terminated",
			logging.String(logging.FieldEventType, "task_failure"),
			logging.String(logging.FieldErrorClass, services.Class(execErr)),
			logging.Error(execErr),
		)
	default:
		if err := m.store.Fail(ctx, track.ID, taskType, execErr.Error(), services.Class(execErr)); err != nil {
			logger.Error("failure not recorded", logging.Error(err))
		}
		stats.Failed++
		logger.Warn("task failed",
			logging.String(logging.FieldEventType, "task_failure"),
			logging.String(logging.FieldErrorClass, services.Class(execErr)),
			logging.Bool("retryable", services.Retryable(execErr)),
			logging.Error(execErr),
		)
	}
}

// finishTask persists handler mutations and records completion. The track
// update lands before Complete so fan-out sees the fresh fragment state.
func (m *Manager) finishTask(ctx context.Context, track *queue.Track, task *queue.Task) error {
	if err := m.store.UpdateTrack(ctx, track); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "persist", "update track", err)
	}
	if err := m.store.Complete(ctx, track.ID, task.Type, task.ResultJSON); err != nil {
		if errors.Is(err, queue.ErrTrackGateFailed) {
			return services.Wrap(services.ErrGateFailed, "workflow", "complete", "track gate-failed during execution", err)
		}
		return services.Wrap(services.ErrTransient, "workflow", "complete", "record completion", err)
	}
	return nil
}
