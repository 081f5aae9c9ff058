package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visage-id/visage/internal/cache"
	"github.com/visage-id/visage/internal/config"
	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/metrics"
	"github.com/visage-id/visage/internal/repository"
	"github.com/visage-id/visage/internal/vision"
)

// auditTimeout bounds the fire-and-forget touch and log writes.
const auditTimeout = 5 * time.Second

// searchK is how many index candidates Identify retrieves before applying
// the threshold.
const searchK = 5

// SyncOp names an index synchronization operation.
type SyncOp string

const (
	SyncAdd    SyncOp = "add"
	SyncUpdate SyncOp = "update"
	SyncRemove SyncOp = "remove"
)

// VectorIndex is the index surface the coordinator drives.
type VectorIndex interface {
	Add(meta domain.EntryMeta, descriptor []float32) error
	Remove(userID int64) bool
	Search(query []float32, k int, maxSqDist float64) ([]index.Result, error)
	Rebuild(ctx context.Context, load func(context.Context) ([]index.RebuildEntry, error)) (index.RebuildStats, error)
	Size() int
}

// EnrollRequest carries the identity attributes for an enrollment.
type EnrollRequest struct {
	ExternalID  string
	DisplayName string
	ClientRef   string
}

// IdentifyOptions tunes a single identification. Snapshot is a pre-loaded
// active population used for the linear fallback when the vector index is
// unavailable; batch jobs load it once per job.
type IdentifyOptions struct {
	Snapshot []domain.User
}

// Stats is the rolling recognition view served by the stats endpoint.
type Stats struct {
	TotalRecognitions int64           `json:"total_recognitions"`
	SuccessfulMatches int64           `json:"successful_matches"`
	SuccessRate       float64         `json:"success_rate"`
	AvgProcessingMs   float64         `json:"avg_processing_ms"`
	IndexSize         int             `json:"index_size"`
	Settings          domain.Settings `json:"settings"`
}

// Recognizer coordinates the recognition pipeline: validate, embed, search,
// threshold, persist, emit.
type Recognizer struct {
	users    repository.UserRepositoryInterface
	logs     repository.RecognitionLogRepositoryInterface
	provider vision.Provider
	index    VectorIndex
	cache    cache.ResultCache
	metrics  *metrics.Metrics
	logger   *slog.Logger

	cacheEnabled bool
	cacheTTL     time.Duration
	embedTimeout time.Duration

	settingsMu sync.RWMutex
	settings   domain.Settings

	statsMu sync.Mutex
	total   int64
	matched int64
	avgMs   float64
}

// New wires a coordinator. A RECOGNITION_PROFILE set in cfg overlays the
// configured thresholds at startup.
func New(
	users repository.UserRepositoryInterface,
	logs repository.RecognitionLogRepositoryInterface,
	provider vision.Provider,
	idx VectorIndex,
	resultCache cache.ResultCache,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *slog.Logger,
) *Recognizer {
	settings := domain.Settings{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MinFaceSize:         cfg.MinFaceSize,
		MaxFaceSize:         cfg.MaxFaceSize,
		DetectionConfidence: cfg.DetectionConfidence,
	}
	if cfg.RecognitionProfile != "" {
		if profile, ok := domain.ProfileByName(cfg.RecognitionProfile); ok {
			settings = profile.Apply(settings)
		} else {
			logger.Warn("unknown recognition profile, keeping configured thresholds",
				"profile", cfg.RecognitionProfile)
		}
	}

	return &Recognizer{
		users:        users,
		logs:         logs,
		provider:     provider,
		index:        idx,
		cache:        resultCache,
		metrics:      m,
		logger:       logger,
		cacheEnabled: cfg.CacheEnabled,
		cacheTTL:     cfg.CacheTTL,
		embedTimeout: cfg.VisionTimeout,
		settings:     settings,
	}
}

// Settings returns the current thresholds.
func (r *Recognizer) Settings() domain.Settings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

// ApplySettings replaces the thresholds after validating them. Cached
// results were decided under the old thresholds, so the cache is flushed.
func (r *Recognizer) ApplySettings(ctx context.Context, s domain.Settings) (domain.Settings, error) {
	if s.ConfidenceThreshold <= 0 || s.ConfidenceThreshold >= 1 {
		return domain.Settings{}, domain.ErrValidationFailed.WithError(
			fmt.Errorf("confidence_threshold must be in (0, 1), got %v", s.ConfidenceThreshold))
	}
	if s.MinFaceSize < 1 {
		return domain.Settings{}, domain.ErrValidationFailed.WithError(
			fmt.Errorf("min_face_size must be >= 1, got %d", s.MinFaceSize))
	}
	if s.MaxFaceSize <= s.MinFaceSize {
		return domain.Settings{}, domain.ErrValidationFailed.WithError(
			fmt.Errorf("max_face_size %d must be greater than min_face_size %d", s.MaxFaceSize, s.MinFaceSize))
	}
	if s.DetectionConfidence < 0 || s.DetectionConfidence > 1 {
		return domain.Settings{}, domain.ErrValidationFailed.WithError(
			fmt.Errorf("detection_confidence must be in [0, 1], got %v", s.DetectionConfidence))
	}

	r.settingsMu.Lock()
	r.settings = s
	r.settingsMu.Unlock()

	if r.cacheEnabled {
		r.cache.Flush(ctx)
	}

	r.logger.Info("recognition settings updated",
		"confidence_threshold", s.ConfidenceThreshold,
		"min_face_size", s.MinFaceSize,
		"max_face_size", s.MaxFaceSize,
		"detection_confidence", s.DetectionConfidence)
	return s, nil
}

// ApplyProfile overlays a named preset on the current settings.
func (r *Recognizer) ApplyProfile(ctx context.Context, name string) (domain.Settings, error) {
	profile, ok := domain.ProfileByName(name)
	if !ok {
		return domain.Settings{}, domain.ErrValidationFailed.WithError(
			fmt.Errorf("unknown profile %q", name))
	}

	r.settingsMu.Lock()
	r.settings = profile.Apply(r.settings)
	applied := r.settings
	r.settingsMu.Unlock()

	if r.cacheEnabled {
		r.cache.Flush(ctx)
	}

	r.logger.Info("recognition profile applied",
		"profile", name,
		"confidence_threshold", applied.ConfidenceThreshold,
		"detection_confidence", applied.DetectionConfidence)
	return applied, nil
}

// SyncIndex applies a single user mutation to the vector index. Failures
// are logged, never propagated: the store stays authoritative and a rebuild
// reconciles.
func (r *Recognizer) SyncIndex(userID int64, descriptor []float32, meta domain.EntryMeta, op SyncOp) {
	if r.index == nil {
		return
	}

	switch op {
	case SyncAdd, SyncUpdate:
		if err := r.index.Add(meta, descriptor); err != nil {
			r.logger.Error("index sync failed",
				"op", string(op), "user_id", userID, "error", err)
			return
		}
	case SyncRemove:
		r.index.Remove(userID)
	default:
		r.logger.Error("index sync skipped, unknown op", "op", string(op), "user_id", userID)
		return
	}

	r.metrics.SetIndexSize(r.index.Size())
}

// RebuildIndex reloads every active user from the store into a fresh graph
// and drops cached results that may reference entries the rebuild removed.
func (r *Recognizer) RebuildIndex(ctx context.Context) (index.RebuildStats, error) {
	if r.index == nil {
		return index.RebuildStats{}, domain.ErrIndexNotInitialized
	}

	stats, err := r.index.Rebuild(ctx, r.loadIndexEntries)
	if err != nil {
		return stats, err
	}

	r.metrics.SetIndexSize(r.index.Size())
	if r.cacheEnabled {
		r.cache.InvalidatePattern(ctx, cache.KeyPrefix+"*")
	}
	return stats, nil
}

func (r *Recognizer) loadIndexEntries(ctx context.Context) ([]index.RebuildEntry, error) {
	users, err := r.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]index.RebuildEntry, 0, len(users))
	for i := range users {
		entries = append(entries, index.RebuildEntry{
			Meta:       users[i].Meta(),
			Descriptor: users[i].Descriptor,
		})
	}
	return entries, nil
}

// RecentLogs returns the newest identify audit rows.
func (r *Recognizer) RecentLogs(ctx context.Context, limit int) ([]domain.RecognitionLog, error) {
	return r.logs.ListRecent(ctx, limit)
}

// Stats returns the rolling counters and current settings.
func (r *Recognizer) Stats() Stats {
	r.statsMu.Lock()
	total, matched, avgMs := r.total, r.matched, r.avgMs
	r.statsMu.Unlock()

	st := Stats{
		TotalRecognitions: total,
		SuccessfulMatches: matched,
		AvgProcessingMs:   avgMs,
		Settings:          r.Settings(),
	}
	if total > 0 {
		st.SuccessRate = float64(matched) / float64(total)
	}
	if r.index != nil {
		st.IndexSize = r.index.Size()
	}
	return st
}

// detect validates the image and runs the embedder under the per-operation
// timeout.
func (r *Recognizer) detect(ctx context.Context, image []byte, mode vision.Mode) (*vision.Detection, error) {
	if err := vision.ValidateImage(image); err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	if r.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()
	}

	detection, err := r.provider.DetectAndEmbed(ctx, image, mode)
	if err != nil {
		return nil, translateVisionError(err)
	}
	return detection, nil
}

func (r *Recognizer) observeOutcome(matchFound bool, elapsed time.Duration) {
	r.statsMu.Lock()
	r.total++
	if matchFound {
		r.matched++
	}
	r.avgMs += (float64(elapsed.Milliseconds()) - r.avgMs) / float64(r.total)
	r.statsMu.Unlock()
}

// translateVisionError maps provider failures onto the API error model.
func translateVisionError(err error) error {
	switch {
	case errors.Is(err, vision.ErrNoFace):
		return domain.ErrNoFaceDetected.WithError(err)
	case errors.Is(err, vision.ErrInvalidImage):
		return domain.ErrInvalidImage.WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout.WithError(err)
	default:
		return domain.ErrInternal.WithError(err)
	}
}
