package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"songmill/internal/audio"
	"songmill/internal/logging"
	"songmill/internal/services"
)

// Processor runs one chunk of audio through the external enhancer.
type Processor interface {
	Process(ctx context.Context, chunk *audio.Buffer) (*audio.Buffer, error)
}

// Engine orchestrates chunked enhancement. Chunks run concurrently up to
// Parallelism; a single chunk failure aborts the whole run, never a partial
// merge.
type Engine struct {
	processor   Processor
	ceiling     float64
	overlap     float64
	parallelism int
	logger      *slog.Logger
}

// Options configures an Engine.
type Options struct {
	CeilingSeconds float64
	OverlapSeconds float64
	Parallelism    int
	Logger         *slog.Logger
}

// NewEngine builds an Engine around a Processor.
func NewEngine(processor Processor, opts Options) (*Engine, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if opts.CeilingSeconds <= 0 || opts.OverlapSeconds < 0 || opts.OverlapSeconds >= opts.CeilingSeconds {
		return nil, fmt.Errorf("invalid chunking: ceiling=%.3f overlap=%.3f", opts.CeilingSeconds, opts.OverlapSeconds)
	}
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		processor:   processor,
		ceiling:     opts.CeilingSeconds,
		overlap:     opts.OverlapSeconds,
		parallelism: parallelism,
		logger:      logger,
	}, nil
}

// Enhance processes the full source buffer and returns the merged result. The
// output duration matches the input within one frame per seam.
func (e *Engine) Enhance(ctx context.Context, source *audio.Buffer) (*audio.Buffer, error) {
	if source == nil || source.Frames() == 0 {
		return nil, services.Wrap(services.ErrValidation, "enhance", "plan", "source audio is empty", nil)
	}

	chunks, err := Plan(source.Duration(), e.ceiling, e.overlap)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "enhance", "plan", "chunk planning failed", err)
	}
	e.logger.Info("planned enhancement chunks",
		logging.Int("chunks", len(chunks)),
		logging.Float64("duration_seconds", source.Duration()))

	if len(chunks) == 1 {
		return e.processor.Process(ctx, source)
	}

	processed := make([]*audio.Buffer, len(chunks))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, e.parallelism)
	for _, chunk := range chunks {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(chunk Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := e.processChunk(runCtx, source, chunk)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			processed[chunk.Index] = result
		}(chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, result := range processed {
		if result == nil {
			return nil, fmt.Errorf("chunk %d produced no output", i)
		}
	}

	merged, err := audio.CrossfadeMerge(processed, e.overlap)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "enhance", "merge", "crossfade merge failed", err)
	}
	return merged, nil
}

func (e *Engine) processChunk(ctx context.Context, source *audio.Buffer, chunk Chunk) (*audio.Buffer, error) {
	slice, err := source.Slice(chunk.StartSeconds, chunk.EndSeconds)
	if err != nil {
		return nil, fmt.Errorf("slice chunk %d: %w", chunk.Index, err)
	}

	result, err := e.processor.Process(ctx, slice)
	if err != nil {
		return nil, fmt.Errorf("process chunk %d [%.2f, %.2f): %w", chunk.Index, chunk.StartSeconds, chunk.EndSeconds, err)
	}
	if result == nil {
		return nil, fmt.Errorf("process chunk %d returned nil", chunk.Index)
	}

	// Processors must not stretch or trim; a drifted chunk would shift every
	// downstream timestamp.
	if drift := math.Abs(result.Duration() - slice.Duration()); drift > 0.05 {
		return nil, fmt.Errorf("chunk %d duration drifted %.3fs", chunk.Index, drift)
	}

	e.logger.Debug("processed enhancement chunk",
		logging.Int("chunk", chunk.Index),
		logging.Float64("start_seconds", chunk.StartSeconds),
		logging.Float64("end_seconds", chunk.EndSeconds))
	return result, nil
}
