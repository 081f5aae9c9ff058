package batch

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visage-id/visage/internal/domain"
)

// Status is the lifecycle state of a batch job.
type Status string

const (
	JobPending    Status = "pending"
	JobProcessing Status = "processing"
	JobCompleted  Status = "completed"
	JobFailed     Status = "failed"
)

// Item is one image submitted in a batch request.
type Item struct {
	ID    string
	Image []byte
}

// ItemResult pairs a submitted item with its recognition outcome.
type ItemResult struct {
	ItemID string                 `json:"item_id"`
	Result *domain.IdentifyResult `json:"result"`
}

// ItemError records a per-item failure. Failed items do not abort the
// job; the remaining items keep processing.
type ItemError struct {
	ItemID       string `json:"item_id"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	ProcessingMs int64  `json:"processing_ms"`
}

// Job is a point-in-time snapshot of a batch job, safe to serialize
// while workers keep appending to the live record.
type Job struct {
	ID           uuid.UUID    `json:"id"`
	Status       Status       `json:"status"`
	Total        int          `json:"total"`
	Processed    int          `json:"processed"`
	Progress     int          `json:"progress"`
	Results      []ItemResult `json:"results"`
	Errors       []ItemError  `json:"errors,omitempty"`
	GlobalError  string       `json:"global_error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	ProcessingMs int64        `json:"processing_ms"`
}

// Summary is the condensed job line returned by listings.
type Summary struct {
	ID          uuid.UUID  `json:"id"`
	Status      Status     `json:"status"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// job is the live record behind a Job snapshot. Workers append under
// mu as items complete.
type job struct {
	mu sync.Mutex

	id          uuid.UUID
	status      Status
	total       int
	processed   int
	results     []ItemResult
	errs        []ItemError
	globalError string
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

func newJob(total int) *job {
	return &job{
		id:        uuid.New(),
		status:    JobPending,
		total:     total,
		results:   make([]ItemResult, 0, total),
		createdAt: time.Now(),
	}
}

func (j *job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobProcessing
	j.startedAt = time.Now()
}

func (j *job) recordResult(r ItemResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, r)
	j.processed++
}

func (j *job) recordError(e ItemError) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errs = append(j.errs, e)
	j.processed++
}

func (j *job) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobCompleted
	j.completedAt = time.Now()
}

func (j *job) fail(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobFailed
	j.globalError = reason
	j.completedAt = time.Now()
}

// expiredBy reports whether the job finished before cutoff. Jobs still
// running never expire.
func (j *job) expiredBy(cutoff time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobCompleted && j.status != JobFailed {
		return false
	}
	return j.completedAt.Before(cutoff)
}

func (j *job) view() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()

	results := make([]ItemResult, len(j.results))
	copy(results, j.results)
	errs := make([]ItemError, len(j.errs))
	copy(errs, j.errs)

	return &Job{
		ID:           j.id,
		Status:       j.status,
		Total:        j.total,
		Processed:    j.processed,
		Progress:     progress(j.processed, j.total),
		Results:      results,
		Errors:       errs,
		GlobalError:  j.globalError,
		CreatedAt:    j.createdAt,
		StartedAt:    optionalTime(j.startedAt),
		CompletedAt:  optionalTime(j.completedAt),
		ProcessingMs: j.processingMsLocked(),
	}
}

func (j *job) summary() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()

	return Summary{
		ID:          j.id,
		Status:      j.status,
		Total:       j.total,
		Processed:   j.processed,
		Progress:    progress(j.processed, j.total),
		CreatedAt:   j.createdAt,
		CompletedAt: optionalTime(j.completedAt),
	}
}

// processingMsLocked assumes j.mu is held.
func (j *job) processingMsLocked() int64 {
	switch {
	case j.startedAt.IsZero():
		return 0
	case j.completedAt.IsZero():
		return time.Since(j.startedAt).Milliseconds()
	default:
		return j.completedAt.Sub(j.startedAt).Milliseconds()
	}
}

func progress(processed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
