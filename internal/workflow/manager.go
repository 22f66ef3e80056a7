package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"songmill/internal/config"
	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/stage"
)

// Manager owns the worker pool that drains the ready set.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	handlers map[queue.TaskType]stage.Handler
	logger   *slog.Logger

	heartbeat    *HeartbeatMonitor
	pollInterval time.Duration
	errorRetry   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a manager over the given handler set.
func NewManager(cfg *config.Config, store *queue.Store, handlers map[queue.TaskType]stage.Handler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:      cfg,
		store:    store,
		handlers: handlers,
		logger:   logger,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatSecs)*time.Second,
			time.Duration(cfg.Workflow.StaleTimeoutSecs)*time.Second,
		),
		pollInterval: time.Duration(cfg.Workflow.PollIntervalSecs) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetrySecs) * time.Second,
	}
}

// retryPolicy maps the configured ceilings into the resolver's policy hook.
func (m *Manager) retryPolicy() queue.RetryPolicyFunc {
	return func(taskType queue.TaskType) queue.RetryPolicy {
		return queue.RetryPolicy{
			Limit:   m.cfg.RetryLimitFor(string(taskType)),
			Backoff: time.Duration(m.cfg.Workflow.RetryBackoffSecs) * time.Second,
		}
	}
}

// Start launches the worker pool and the stale-task reaper. It is a no-op if
// the manager is already running.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(runCtx, i)
	}
	m.wg.Add(1)
	go m.reclaimLoop(runCtx)

	m.logger.Info("workflow started", logging.Int("workers", workers))
}

// Stop cancels the pool and waits for in-flight tasks to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) workerLoop(ctx context.Context, worker int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		if ctx.Err() != nil {
			return
		}
		stats, err := m.Run(ctx, 1)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			logger.Error("run failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetry) {
				return
			}
		case stats.Claimed() == 0:
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
		}
	}
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := time.Duration(m.cfg.Workflow.StaleTimeoutSecs) * time.Second / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.Reclaim(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("stale task reclaim failed", logging.Error(err))
			}
		}
	}
}

// Health reports every handler's health, sorted by name.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.handlers))
	for _, handler := range m.handlers {
		checks = append(checks, handler.HealthCheck(ctx))
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	return checks
}

// sleepCtx waits out the delay unless the context ends first.
func sleepCtx(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		delay = time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
