// Package recovery handles jobs that ended in an error state: listing
// them, re-opening them for another run, and reaping old failures.
package recovery

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/valpere/booktran/internal"
	"github.com/valpere/booktran/internal/cache"
	"github.com/valpere/booktran/internal/jobstore"
)

type Manager struct {
	store *jobstore.Store
	cache *cache.Cache
	log   *zap.Logger
}

func NewManager(store *jobstore.Store, c *cache.Cache, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, cache: c, log: log}
}

// ListFailed returns jobs in status error, newest first.
func (m *Manager) ListFailed(ctx context.Context) ([]internal.Job, error) {
	return m.store.List(ctx, jobstore.Filter{Status: internal.StatusError})
}

// Retry re-opens a failed job: status back to pending, progress and
// current_chunk zeroed, error message cleared. Chunk rows stuck in error
// are reset best-effort. Retry does not re-run the job; the caller
// decides when to hand it back to the engine.
func (m *Manager) Retry(ctx context.Context, jobID string) (*internal.Job, error) {
	pending := internal.StatusPending
	zero := 0.0
	zeroChunk := 0
	empty := ""
	if err := m.store.Apply(ctx, jobID, jobstore.Update{
		Status:       &pending,
		Progress:     &zero,
		CurrentChunk: &zeroChunk,
		ErrorMessage: &empty,
	}); err != nil {
		return nil, err
	}

	if err := m.store.ResetErrorChunks(ctx, jobID); err != nil {
		m.log.Warn("failed to reset error chunks",
			zap.String("job_id", jobID),
			zap.Error(err))
	}

	m.log.Info("job reset for retry", zap.String("job_id", jobID))
	return m.store.Get(ctx, jobID)
}

// ReapFailed deletes failed jobs created before the age threshold,
// together with their chunk rows. Irreversible.
func (m *Manager) ReapFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := m.store.DeleteFailedOlderThan(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info("reaped failed jobs",
			zap.Int64("count", n),
			zap.Duration("older_than", olderThan))
	}
	return n, nil
}

// MaintenanceConfig drives the scheduled cleanup pass.
type MaintenanceConfig struct {
	// Schedule is a cron expression; empty defaults to 3am daily.
	Schedule string
	// JobMaxAge is the reap threshold for failed jobs.
	JobMaxAge time.Duration
	// CacheMaxAge is the eviction threshold for cold cache entries.
	CacheMaxAge time.Duration
}

// StartMaintenance schedules periodic reaping of failed jobs and cache
// eviction. The returned cron is already running; stop it on shutdown.
func (m *Manager) StartMaintenance(cfg MaintenanceConfig) (*cron.Cron, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := m.ReapFailed(ctx, cfg.JobMaxAge); err != nil {
			m.log.Error("scheduled reap failed", zap.Error(err))
		}
		if m.cache != nil && cfg.CacheMaxAge > 0 {
			evicted, err := m.cache.EvictOlderThan(ctx, cfg.CacheMaxAge)
			if err != nil {
				m.log.Error("scheduled cache eviction failed", zap.Error(err))
			} else if evicted > 0 {
				m.log.Info("evicted cold cache entries", zap.Int64("count", evicted))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
