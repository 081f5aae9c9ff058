// Package batch runs asynchronous recognition over uploaded image
// sets. Jobs execute on a bounded worker pool, stay queryable after
// they finish, and expire from the registry once the TTL passes.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/visage-id/visage/internal/config"
	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/metrics"
	"github.com/visage-id/visage/internal/recognizer"
)

const evictionInterval = 15 * time.Minute

// Identifier is the single-image recognition entry point jobs drive.
// Implemented by recognizer.Recognizer.
type Identifier interface {
	Identify(ctx context.Context, image []byte, opts recognizer.IdentifyOptions) (*domain.IdentifyResult, error)
}

// PopulationLister loads the active users snapshotted once per job so
// every item matches against the same population.
type PopulationLister interface {
	ListActive(ctx context.Context) ([]domain.User, error)
}

// Engine owns the batch job registry and worker pool.
type Engine struct {
	identifier  Identifier
	users       PopulationLister
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxSize     int
	concurrency int
	jobTTL      time.Duration

	mu   sync.RWMutex
	jobs map[uuid.UUID]*job

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates a batch engine sized from the service configuration.
func New(identifier Identifier, users PopulationLister, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Engine {
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Engine{
		identifier:  identifier,
		users:       users,
		metrics:     m,
		logger:      logger,
		maxSize:     cfg.MaxBatchSize,
		concurrency: concurrency,
		jobTTL:      cfg.JobTTL,
		jobs:        make(map[uuid.UUID]*job),
		done:        make(chan struct{}),
	}
}

// CreateJob registers a batch and starts processing it in the
// background. The returned snapshot is taken before any worker runs,
// so its status is always pending.
func (e *Engine) CreateJob(items []Item) (*Job, error) {
	if len(items) == 0 {
		return nil, domain.ErrBatchEmpty
	}
	if len(items) > e.maxSize {
		return nil, domain.ErrBatchTooLarge
	}

	j := newJob(len(items))

	e.mu.Lock()
	e.jobs[j.id] = j
	e.mu.Unlock()

	e.metrics.BatchJob(metrics.JobCreated)
	e.logger.Info("batch job created", "job_id", j.id, "images", j.total)

	snapshot := j.view()

	e.wg.Add(1)
	go e.run(j, items)

	return snapshot, nil
}

// GetJob returns the current snapshot of one job.
func (e *Engine) GetJob(id uuid.UUID) (*Job, error) {
	e.mu.RLock()
	j, ok := e.jobs[id]
	e.mu.RUnlock()

	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return j.view(), nil
}

// ListJobs returns job summaries newest first. A limit of zero or less
// returns everything still in the registry.
func (e *Engine) ListJobs(limit int) []Summary {
	e.mu.RLock()
	summaries := make([]Summary, 0, len(e.jobs))
	for _, j := range e.jobs {
		summaries = append(summaries, j.summary())
	}
	e.mu.RUnlock()

	sort.Slice(summaries, func(a, b int) bool {
		return summaries[a].CreatedAt.After(summaries[b].CreatedAt)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// Start runs the eviction loop until the context is cancelled or Stop
// is called. In-flight jobs are drained on the way out.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	e.logger.Info("batch engine started",
		"max_batch_size", e.maxSize,
		"concurrency", e.concurrency,
		"job_ttl", e.jobTTL)

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			e.logger.Info("batch engine stopped")
			return
		case <-e.done:
			e.wg.Wait()
			e.logger.Info("batch engine stopped")
			return
		case <-ticker.C:
			e.evict(time.Now())
		}
	}
}

// Stop signals the engine to shut down and waits for in-flight jobs
// to finish.
func (e *Engine) Stop() {
	close(e.done)
	e.wg.Wait()
}

// run drives one job to a terminal state. Jobs are detached from the
// submitting request and always run to completion.
func (e *Engine) run(j *job, items []Item) {
	defer e.wg.Done()

	ctx := context.Background()
	j.start()

	population, err := e.users.ListActive(ctx)
	if err != nil {
		e.logger.Error("batch job aborted, population load failed", "job_id", j.id, "error", err)
		j.fail("failed to load the active user population")
		e.metrics.BatchJob(metrics.JobFailed)
		return
	}

	opts := recognizer.IdentifyOptions{Snapshot: population}

	workers := e.concurrency
	if workers > len(items) {
		workers = len(items)
	}

	var cursor int64 = -1
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				next := int(atomic.AddInt64(&cursor, 1))
				if next >= len(items) {
					return
				}
				e.processItem(ctx, j, items[next], opts)
			}
		}()
	}
	wg.Wait()

	j.complete()
	e.metrics.BatchJob(metrics.JobCompleted)

	snapshot := j.view()
	e.logger.Info("batch job completed",
		"job_id", j.id,
		"processed", snapshot.Processed,
		"failed", len(snapshot.Errors),
		"duration_ms", snapshot.ProcessingMs)
}

func (e *Engine) processItem(ctx context.Context, j *job, item Item, opts recognizer.IdentifyOptions) {
	start := time.Now()

	result, err := e.identifier.Identify(ctx, item.Image, opts)
	if err != nil {
		code, message := itemFailure(err)
		j.recordError(ItemError{
			ItemID:       item.ID,
			Code:         code,
			Message:      message,
			ProcessingMs: time.Since(start).Milliseconds(),
		})
		e.metrics.BatchImage(metrics.StatusError)
		return
	}

	j.recordResult(ItemResult{ItemID: item.ID, Result: result})
	if result.Match != nil {
		e.metrics.BatchImage(metrics.StatusSuccess)
	} else {
		e.metrics.BatchImage(metrics.StatusNoMatch)
	}
}

// evict removes finished jobs older than the TTL. Running jobs are
// always kept.
func (e *Engine) evict(now time.Time) {
	cutoff := now.Add(-e.jobTTL)

	e.mu.Lock()
	removed := 0
	for id, j := range e.jobs {
		if j.expiredBy(cutoff) {
			delete(e.jobs, id)
			removed++
		}
	}
	e.mu.Unlock()

	if removed > 0 {
		e.logger.Debug("expired batch jobs evicted", "removed", removed)
	}
}

// itemFailure maps an identify error to the code and message recorded
// on the job.
func itemFailure(err error) (string, string) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Message
	}
	return domain.ErrInternal.Code, domain.ErrInternal.Message
}
