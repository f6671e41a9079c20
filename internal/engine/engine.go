// Package engine orchestrates the two-stage translation pipeline: a fast
// machine pass followed by an optional LLM refinement pass, per chunk,
// with durable checkpoints and an ordered progress stream.
//
// Each job runs on a single sequential worker. Chunks are processed
// strictly in order because every checkpoint persists the concatenation
// of all chunks translated so far. Progress is counted over 2N units for
// N chunks so the visible progress signal reflects both stages; a cache
// hit advances both halves without touching the external services.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/valpere/booktran/internal"
	"github.com/valpere/booktran/internal/cache"
	"github.com/valpere/booktran/internal/chunker"
	"github.com/valpere/booktran/internal/jobstore"
	"github.com/valpere/booktran/internal/refiner"
	"github.com/valpere/booktran/internal/translator"
)

// chunkJoiner re-assembles accumulated chunk translations. It matches the
// paragraph delimiter the chunker splits on.
const chunkJoiner = "\n\n"

// Observer receives one observation per finished job run.
type Observer interface {
	RecordAttempt(success bool, elapsed time.Duration)
}

// RefinerFactory builds a refiner for the model a job requests. The
// factory should reuse one pooled HTTP client across instances.
type RefinerFactory func(model string) refiner.Refiner

// Params identify one job run. The job row must already exist.
type Params struct {
	JobID      string
	Text       string
	SourceLang string
	TargetLang string
	Model      string
	Refine     bool
}

// EmitFunc consumes progress events in emission order.
type EmitFunc func(internal.ProgressEvent)

// Config tunes pipeline pacing and segmentation.
type Config struct {
	// MaxChunkChars caps chunk length; 0 uses chunker.DefaultMaxChars.
	MaxChunkChars int
	// ChunkInterval paces chunk processing to respect provider rate
	// limits. Applied uniformly whether or not the chunk was a cache
	// hit. 0 defaults to one second.
	ChunkInterval time.Duration
}

type Engine struct {
	translator translator.Service
	newRefiner RefinerFactory
	cache      *cache.Cache
	store      *jobstore.Store
	obs        Observer
	interval   time.Duration
	maxChars   int
	log        *zap.Logger
}

func New(svc translator.Service, factory RefinerFactory, c *cache.Cache, s *jobstore.Store, obs Observer, cfg Config, log *zap.Logger) *Engine {
	interval := cfg.ChunkInterval
	if interval == 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		translator: svc,
		newRefiner: factory,
		cache:      c,
		store:      s,
		obs:        obs,
		interval:   interval,
		maxChars:   cfg.MaxChunkChars,
		log:        log,
	}
}

// Run executes the pipeline for one job, blocking until it completes or
// fails. Any failure is persisted as status=error with the message,
// emitted as a terminal error event, and returned to the caller. The
// observer is notified of the outcome either way.
func (e *Engine) Run(ctx context.Context, p Params, emit EmitFunc) (err error) {
	start := time.Now()
	defer func() {
		if e.obs != nil {
			e.obs.RecordAttempt(err == nil, time.Since(start))
		}
	}()

	if err = e.run(ctx, p, emit); err != nil {
		e.log.Error("translation failed",
			zap.String("job_id", p.JobID),
			zap.Error(err))

		msg := err.Error()
		status := internal.StatusError
		if storeErr := e.store.Apply(ctx, p.JobID, jobstore.Update{
			Status:       &status,
			ErrorMessage: &msg,
		}); storeErr != nil {
			e.log.Error("failed to persist error state",
				zap.String("job_id", p.JobID),
				zap.Error(storeErr))
		}
		emit(internal.ProgressEvent{Error: msg})
		return err
	}
	return nil
}

// Start runs the pipeline on its own goroutine and returns the ordered
// event stream. The engine is the sole producer; the channel closes
// after the terminal event.
func (e *Engine) Start(ctx context.Context, p Params) <-chan internal.ProgressEvent {
	events := make(chan internal.ProgressEvent, 16)
	go func() {
		defer close(events)
		_ = e.Run(ctx, p, func(ev internal.ProgressEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return events
}

func (e *Engine) run(ctx context.Context, p Params, emit EmitFunc) error {
	chunks := chunker.Split(p.Text, e.maxChars)
	n := len(chunks)
	total := 2 * n

	e.log.Info("translation started",
		zap.String("job_id", p.JobID),
		zap.String("source_lang", p.SourceLang),
		zap.String("target_lang", p.TargetLang),
		zap.Int("chunks", n),
		zap.Bool("refine", p.Refine))

	inProgress := internal.StatusInProgress
	if err := e.store.Apply(ctx, p.JobID, jobstore.Update{
		Status:      &inProgress,
		TotalChunks: &total,
	}); err != nil {
		return fmt.Errorf("failed to initialize job: %w", err)
	}

	var ref refiner.Refiner
	if p.Refine {
		ref = e.newRefiner(p.Model)
	}

	// Pacing is scoped to the run: concurrent jobs each get their own
	// budget against the providers.
	limiter := rate.NewLimiter(rate.Every(e.interval), 1)

	var machineParts, refinedParts []string

	for i, chunk := range chunks {
		idx := i + 1

		machineText, refinedText, err := e.processChunk(ctx, p, ref, chunk, idx)
		if err != nil {
			e.recordChunk(ctx, p.JobID, idx, chunk, "", "", internal.StatusError, err.Error())
			return err
		}

		// Chunk i owns progress units 2i-1 (machine) and 2i
		// (refinement), keeping current_chunk strictly increasing and
		// progress monotone across the interleaved stages.
		machineParts = append(machineParts, machineText)
		machineAcc := strings.Join(machineParts, chunkJoiner)
		emit(internal.ProgressEvent{
			Progress:           percent(2*idx-1, total),
			Stage:              internal.StageMachineTranslation,
			CurrentChunk:       2*idx - 1,
			TotalChunks:        total,
			MachineTranslation: machineAcc,
		})

		refinedParts = append(refinedParts, refinedText)
		refinedAcc := strings.Join(refinedParts, chunkJoiner)

		progress := percent(2*idx, total)
		currentChunk := 2 * idx
		if err := e.store.Apply(ctx, p.JobID, jobstore.Update{
			Progress:           &progress,
			CurrentChunk:       &currentChunk,
			MachineTranslation: &machineAcc,
			TranslatedText:     &refinedAcc,
		}); err != nil {
			return fmt.Errorf("failed to checkpoint chunk %d: %w", idx, err)
		}
		e.recordChunk(ctx, p.JobID, idx, chunk, machineText, refinedText, internal.StatusCompleted, "")

		emit(internal.ProgressEvent{
			Progress:           progress,
			Stage:              internal.StageLiteraryRefinement,
			CurrentChunk:       currentChunk,
			TotalChunks:        total,
			MachineTranslation: machineAcc,
			TranslatedText:     refinedAcc,
		})

		// Provider pacing, uniform across hits and misses.
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pacing interrupted: %w", err)
		}
	}

	completed := internal.StatusCompleted
	hundred := 100.0
	if err := e.store.Apply(ctx, p.JobID, jobstore.Update{
		Status:   &completed,
		Progress: &hundred,
	}); err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	machineAcc := strings.Join(machineParts, chunkJoiner)
	refinedAcc := strings.Join(refinedParts, chunkJoiner)
	emit(internal.ProgressEvent{
		Progress:           100,
		Status:             internal.StatusCompleted,
		MachineTranslation: machineAcc,
		TranslatedText:     refinedAcc,
	})

	e.log.Info("translation completed",
		zap.String("job_id", p.JobID),
		zap.Int("chunks", n))
	return nil
}

// processChunk resolves one chunk through the cache or, on a miss, the
// two external stages. A resolved miss is written back to the cache.
func (e *Engine) processChunk(ctx context.Context, p Params, ref refiner.Refiner, chunk string, idx int) (machineText, refinedText string, err error) {
	entry, hit, err := e.cache.Get(ctx, chunk, p.SourceLang, p.TargetLang)
	if err != nil {
		return "", "", fmt.Errorf("cache lookup for chunk %d failed: %w", idx, err)
	}
	if hit {
		e.log.Debug("cache hit", zap.String("job_id", p.JobID), zap.Int("chunk", idx))
		return entry.MachineTranslation, entry.TranslatedText, nil
	}

	machineText, err = e.translator.Translate(ctx, translator.Request{
		Text:       chunk,
		SourceLang: p.SourceLang,
		TargetLang: p.TargetLang,
	})
	if err != nil {
		return "", "", fmt.Errorf("machine translation of chunk %d failed: %w", idx, err)
	}

	if ref != nil {
		refinedText, err = ref.Refine(ctx, p.TargetLang, machineText)
		if err != nil {
			return "", "", fmt.Errorf("refinement of chunk %d failed: %w", idx, err)
		}
	} else {
		refinedText = machineText
	}

	if err := e.cache.Put(ctx, chunk, refinedText, machineText, p.SourceLang, p.TargetLang); err != nil {
		return "", "", fmt.Errorf("failed to cache chunk %d: %w", idx, err)
	}
	return machineText, refinedText, nil
}

// recordChunk is best-effort bookkeeping for recovery; a write failure
// must not abort a job whose real state already checkpointed.
func (e *Engine) recordChunk(ctx context.Context, jobID string, idx int, original, machine, refined string, status internal.Status, errMsg string) {
	if err := e.store.RecordChunk(ctx, internal.ChunkRecord{
		JobID:              jobID,
		ChunkNumber:        idx,
		OriginalText:       original,
		MachineTranslation: machine,
		TranslatedText:     refined,
		Status:             status,
		ErrorMessage:       errMsg,
	}); err != nil {
		e.log.Warn("failed to record chunk state",
			zap.String("job_id", jobID),
			zap.Int("chunk", idx),
			zap.Error(err))
	}
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
