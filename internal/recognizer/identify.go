package recognizer

import (
	"context"
	"encoding/json"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/visage-id/visage/internal/cache"
	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/metrics"
	"github.com/visage-id/visage/internal/vision"
)

// Identify matches a face image against the enrolled population. The
// result cache is consulted first; fresh identifications run through the
// embedder and the best available matcher: the vector index when it holds
// entries, a caller-supplied snapshot otherwise, the descriptor store as
// the last resort.
func (r *Recognizer) Identify(ctx context.Context, image []byte, opts IdentifyOptions) (*domain.IdentifyResult, error) {
	start := time.Now()

	key := cache.Key(image)
	if r.cacheEnabled {
		if result, ok := r.cachedResult(ctx, key); ok {
			elapsed := time.Since(start)
			r.metrics.CacheHit()
			r.metrics.ObserveRecognition(metrics.StatusSuccess, metrics.ModeCache, elapsed)
			result.CacheHit = true
			result.Backend = domain.BackendCache
			result.ProcessingMs = elapsed.Milliseconds()
			return result, nil
		}
		r.metrics.CacheMiss()
	}

	detection, err := r.detect(ctx, image, vision.ModeRecognize)
	if err != nil {
		r.metrics.ObserveRecognition(metrics.StatusError, metrics.ModeNone, time.Since(start))
		return nil, err
	}

	threshold := r.Settings().ConfidenceThreshold

	match, backend, err := r.findMatch(ctx, detection.Descriptor, threshold, opts)
	if err != nil {
		r.metrics.ObserveRecognition(metrics.StatusError, backend, time.Since(start))
		return nil, err
	}

	elapsed := time.Since(start)
	result := &domain.IdentifyResult{
		Match:        match,
		Backend:      backend,
		ProcessingMs: elapsed.Milliseconds(),
	}

	status := metrics.StatusNoMatch
	if match != nil {
		status = metrics.StatusSuccess
		result.Confidence = match.Distance
		if r.cacheEnabled {
			r.storeResult(ctx, key, result)
		}
	}

	r.metrics.ObserveRecognition(status, backend, elapsed)
	r.observeOutcome(match != nil, elapsed)
	r.audit(match, result)

	return result, nil
}

// findMatch picks the matching backend and returns the best hit under
// threshold, nil when nothing qualifies.
func (r *Recognizer) findMatch(ctx context.Context, descriptor []float32, threshold float64, opts IdentifyOptions) (*domain.Match, string, error) {
	if r.index != nil && r.index.Size() > 0 {
		match, err := r.searchIndex(descriptor, threshold)
		return match, domain.BackendHNSW, err
	}

	if len(opts.Snapshot) > 0 {
		return scanSnapshot(descriptor, opts.Snapshot, threshold), domain.BackendLinear, nil
	}

	match, err := r.searchStore(ctx, descriptor, threshold)
	return match, domain.BackendStore, err
}

func (r *Recognizer) searchIndex(descriptor []float32, threshold float64) (*domain.Match, error) {
	searchStart := time.Now()
	results, err := r.index.Search(descriptor, searchK, threshold*threshold)
	r.metrics.ObserveIndexSearch(time.Since(searchStart))
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		distance := math.Sqrt(res.Distance)
		if distance > threshold {
			continue
		}
		return matchFromMeta(res.Meta, distance), nil
	}
	return nil, nil
}

func (r *Recognizer) searchStore(ctx context.Context, descriptor []float32, threshold float64) (*domain.Match, error) {
	hits, err := r.users.SearchByDescriptor(ctx, descriptor, searchK)
	if err != nil {
		return nil, err
	}

	for _, hit := range hits {
		if hit.Distance > threshold {
			continue
		}
		return matchFromUser(&hit.User, hit.Distance), nil
	}
	return nil, nil
}

// scanSnapshot is the parallel linear fallback over a caller-supplied
// population. The minimum must be strictly under threshold; ties resolve
// to the lowest user id.
func scanSnapshot(descriptor []float32, snapshot []domain.User, threshold float64) *domain.Match {
	if len(snapshot) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(snapshot) {
		workers = len(snapshot)
	}

	maxSqDist := threshold * threshold

	type candidate struct {
		user *domain.User
		d2   float64
	}
	found := make(chan candidate, workers)

	chunk := (len(snapshot) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(snapshot) {
			hi = len(snapshot)
		}
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(part []domain.User) {
			defer wg.Done()
			best := candidate{d2: math.MaxFloat64}
			for i := range part {
				u := &part[i]
				if len(u.Descriptor) != domain.DescriptorDim {
					continue
				}
				d2 := index.SquaredDistance(descriptor, u.Descriptor)
				if d2 >= maxSqDist {
					continue
				}
				if d2 < best.d2 || (d2 == best.d2 && u.ID < best.user.ID) {
					best = candidate{user: u, d2: d2}
				}
			}
			if best.user != nil {
				found <- best
			}
		}(snapshot[lo:hi])
	}
	wg.Wait()
	close(found)

	var bestUser *domain.User
	bestD2 := math.MaxFloat64
	for c := range found {
		if c.d2 < bestD2 || (c.d2 == bestD2 && c.user.ID < bestUser.ID) {
			bestUser = c.user
			bestD2 = c.d2
		}
	}
	if bestUser == nil {
		return nil
	}
	return matchFromUser(bestUser, math.Sqrt(bestD2))
}

func (r *Recognizer) cachedResult(ctx context.Context, key string) (*domain.IdentifyResult, bool) {
	data, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var result domain.IdentifyResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("dropping undecodable cached result", "key", key, "error", err)
		r.cache.Delete(ctx, key)
		return nil, false
	}
	return &result, true
}

func (r *Recognizer) storeResult(ctx context.Context, key string, result *domain.IdentifyResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	r.cache.Set(ctx, key, data, r.cacheTTL)
}

// audit records the identification outside the request path: recognition
// counter on the matched user plus an append-only log row.
func (r *Recognizer) audit(match *domain.Match, result *domain.IdentifyResult) {
	entry := &domain.RecognitionLog{
		Matched:      match != nil,
		Backend:      result.Backend,
		ProcessingMs: result.ProcessingMs,
	}
	if match != nil {
		userID := match.UserID
		distance := match.Distance
		sim := match.Similarity
		entry.UserID = &userID
		entry.ExternalID = match.ExternalID
		entry.Distance = &distance
		entry.Similarity = &sim
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()

		if match != nil {
			if err := r.users.TouchRecognition(ctx, match.UserID); err != nil {
				r.logger.Warn("touch recognition failed", "user_id", match.UserID, "error", err)
			}
		}
		if err := r.logs.Append(ctx, entry); err != nil {
			r.logger.Warn("recognition log append failed", "error", err)
		}
	}()
}

func matchFromMeta(meta domain.EntryMeta, distance float64) *domain.Match {
	return &domain.Match{
		UserID:      meta.UserID,
		ExternalID:  meta.ExternalID,
		DisplayName: meta.DisplayName,
		ClientRef:   meta.ClientRef,
		Distance:    distance,
		Similarity:  similarity(distance),
	}
}

func matchFromUser(u *domain.User, distance float64) *domain.Match {
	return &domain.Match{
		UserID:      u.ID,
		ExternalID:  u.ExternalID,
		DisplayName: u.DisplayName,
		ClientRef:   u.ClientRef,
		Distance:    distance,
		Similarity:  similarity(distance),
	}
}

// similarity converts a Euclidean distance to its integer percentage form.
func similarity(distance float64) int {
	return int(math.Round((1 - distance) * 100))
}
