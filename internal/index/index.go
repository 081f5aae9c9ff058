// Package index maintains the in-memory HNSW graph used for approximate
// nearest-neighbor search over face descriptors, together with its disk
// snapshot. Entries are keyed by an internal label, deletes and descriptor
// replacements leave tombstones behind that are reclaimed on rebuild.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/renameio"

	"github.com/visage-id/visage/internal/domain"
)

const (
	// searchMultiplier requests extra candidates from the graph so that
	// tombstones and threshold filtering do not starve the result set
	searchMultiplier = 3

	// persistEvery triggers an async snapshot after this many writes
	persistEvery = 100
)

// Options configures the index.
type Options struct {
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    uint64
	Path           string
	MetaPath       string
}

// Result is a single nearest-neighbor candidate.
type Result struct {
	Meta     domain.EntryMeta
	Distance float64 // squared L2
}

// RebuildEntry is one row fed into Rebuild.
type RebuildEntry struct {
	Meta       domain.EntryMeta
	Descriptor []float32
}

// RebuildStats reports the outcome of a rebuild.
type RebuildStats struct {
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"-"`
}

// Stats is a point-in-time snapshot of index state.
type Stats struct {
	Size          int       `json:"size"`
	Capacity      uint64    `json:"capacity"`
	Tombstones    int       `json:"tombstones"`
	NextLabel     uint64    `json:"nextLabel"`
	LastRebuildAt time.Time `json:"lastRebuildAt"`
	M             int       `json:"m"`
	EfSearch      int       `json:"efSearch"`
	MemoryBytes   uint64    `json:"memoryBytes"`
	Initialized   bool      `json:"initialized"`
	Dirty         bool      `json:"dirty"`
}

// Index wraps the HNSW graph with entry bookkeeping and persistence.
//
// Lock order is rebuildMu before mu. Writes (Add, Remove) take both so
// they cannot interleave with a rebuild, reads take only mu.RLock and are
// never blocked by a running rebuild.
type Index struct {
	rebuildMu sync.Mutex
	saveMu    sync.Mutex
	mu        sync.RWMutex

	graph       *hnsw.Graph[uint64]
	labelMeta   map[uint64]domain.EntryMeta
	userLabel   map[int64]uint64
	nextLabel   uint64
	lastRebuild time.Time

	mutations uint64 // incremented on every write
	persisted uint64 // mutation count at the last successful save

	addsSinceSave int
	saveSignal    chan struct{}

	opts   Options
	logger *slog.Logger
}

// New creates an index with no graph loaded. Call Init before serving.
func New(opts Options, logger *slog.Logger) *Index {
	if opts.M < 2 {
		opts.M = 16
	}
	if opts.EfSearch < 1 {
		opts.EfSearch = 100
	}
	if opts.EfConstruction < opts.EfSearch {
		opts.EfConstruction = opts.EfSearch
	}
	if opts.MaxElements == 0 {
		opts.MaxElements = 1_100_000
	}

	return &Index{
		labelMeta:  make(map[uint64]domain.EntryMeta),
		userLabel:  make(map[int64]uint64),
		nextLabel:  1,
		saveSignal: make(chan struct{}, 1),
		opts:       opts,
		logger:     logger,
	}
}

func (ix *Index) newGraph(efSearch int) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = ix.opts.M
	g.Ml = 1.0 / float64(ix.opts.M) // Standard HNSW formula
	g.EfSearch = efSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Init loads the persisted snapshot from disk, or starts empty when no
// snapshot exists. A corrupt snapshot is discarded with a warning, the
// index then starts empty and can be repopulated with Rebuild.
func (ix *Index) Init() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(ix.opts.Path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	g := ix.newGraph(ix.opts.EfSearch)

	f, err := os.Open(ix.opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		ix.logger.Info("no index snapshot found, starting empty", "path", ix.opts.Path)
		ix.graph = g
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index snapshot: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := g.Import(f); err != nil {
		ix.logger.Warn("index snapshot unreadable, starting empty",
			"path", ix.opts.Path, "error", err)
		ix.graph = ix.newGraph(ix.opts.EfSearch)
		return nil
	}
	g.EfSearch = ix.opts.EfSearch

	meta, err := loadMeta(ix.opts.MetaPath)
	if err != nil {
		// A graph without its entry map is unusable, every node would be
		// treated as a tombstone
		ix.logger.Warn("index metadata unreadable, starting empty",
			"path", ix.opts.MetaPath, "error", err)
		ix.graph = ix.newGraph(ix.opts.EfSearch)
		return nil
	}

	ix.graph = g
	ix.labelMeta = meta.Entries
	ix.userLabel = make(map[int64]uint64, len(meta.Entries))
	for label, m := range meta.Entries {
		ix.userLabel[m.UserID] = label
	}
	ix.nextLabel = meta.NextLabel
	ix.lastRebuild = meta.LastRebuildAt

	ix.logger.Info("index snapshot loaded",
		"path", ix.opts.Path, "entries", len(ix.labelMeta), "graph_nodes", g.Len())
	return nil
}

// Add inserts a descriptor for the user, replacing any previous entry.
// The replaced graph node stays behind as a tombstone until the next
// rebuild.
func (ix *Index) Add(meta domain.EntryMeta, descriptor []float32) error {
	if len(descriptor) != domain.DescriptorDim {
		return domain.ErrBadRequest.WithError(
			fmt.Errorf("descriptor has %d dimensions, want %d", len(descriptor), domain.DescriptorDim))
	}

	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph == nil {
		return domain.ErrIndexNotInitialized
	}
	if _, exists := ix.userLabel[meta.UserID]; !exists {
		if uint64(len(ix.labelMeta)) >= ix.opts.MaxElements {
			return domain.ErrIndexFull
		}
	}

	if old, ok := ix.userLabel[meta.UserID]; ok {
		delete(ix.labelMeta, old)
	}

	label := ix.nextLabel
	ix.nextLabel++

	ix.graph.Add(hnsw.MakeNode(label, descriptor))
	ix.labelMeta[label] = meta
	ix.userLabel[meta.UserID] = label

	ix.noteMutation()
	return nil
}

// Remove masks the entry for the user. Reports whether an entry existed.
func (ix *Index) Remove(userID int64) bool {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()
	ix.mu.Lock()
	defer ix.mu.Unlock()

	label, ok := ix.userLabel[userID]
	if !ok {
		return false
	}

	delete(ix.userLabel, userID)
	delete(ix.labelMeta, label)

	ix.noteMutation()
	return true
}

// Contains reports whether the user has a live entry.
func (ix *Index) Contains(userID int64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.userLabel[userID]
	return ok
}

// Search returns up to k entries within maxSqDist of the query, nearest
// first with ties on ascending label, so the earlier enrollment wins. The
// graph is over-queried by searchMultiplier and distances are recomputed
// exactly from the stored vectors, so tombstones and the approximate
// ordering of the graph cannot surface a wrong best match. maxSqDist <= 0
// disables the distance cutoff.
func (ix *Index) Search(query []float32, k int, maxSqDist float64) ([]Result, error) {
	if len(query) != domain.DescriptorDim {
		return nil, domain.ErrBadRequest.WithError(
			fmt.Errorf("query has %d dimensions, want %d", len(query), domain.DescriptorDim))
	}
	if k < 1 {
		k = 1
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, domain.ErrIndexNotInitialized
	}
	if len(ix.labelMeta) == 0 {
		return nil, nil
	}

	searchK := k * searchMultiplier
	if searchK < ix.opts.EfSearch {
		searchK = ix.opts.EfSearch
	}

	neighbors := ix.graph.Search(query, searchK)

	type candidate struct {
		label uint64
		res   Result
	}
	cands := make([]candidate, 0, k)
	for _, n := range neighbors {
		meta, ok := ix.labelMeta[n.Key]
		if !ok {
			// Tombstone
			continue
		}
		d2 := SquaredDistance(query, n.Value)
		if maxSqDist > 0 && d2 > maxSqDist {
			continue
		}
		cands = append(cands, candidate{label: n.Key, res: Result{Meta: meta, Distance: d2}})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].res.Distance != cands[j].res.Distance {
			return cands[i].res.Distance < cands[j].res.Distance
		}
		return cands[i].label < cands[j].label
	})
	if len(cands) > k {
		cands = cands[:k]
	}

	results := make([]Result, len(cands))
	for i, c := range cands {
		results[i] = c.res
	}
	return results, nil
}

// Rebuild replaces the graph with one built from the entries returned by
// load. Writes are held off for the whole rebuild including the load, so
// no enrollment can slip between the snapshot and the swap. Searches keep
// running against the old graph until the new one is ready. Entries with
// malformed descriptors are skipped and counted.
func (ix *Index) Rebuild(ctx context.Context, load func(context.Context) ([]RebuildEntry, error)) (RebuildStats, error) {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()

	start := time.Now()

	entries, err := load(ctx)
	if err != nil {
		return RebuildStats{}, fmt.Errorf("load index entries: %w", err)
	}
	if uint64(len(entries)) > ix.opts.MaxElements {
		return RebuildStats{}, domain.ErrIndexFull.WithError(
			fmt.Errorf("%d entries exceed capacity %d", len(entries), ix.opts.MaxElements))
	}

	// Build with a raised candidate pool, the construction-time
	// equivalent of efConstruction
	g := ix.newGraph(ix.opts.EfConstruction)

	labelMeta := make(map[uint64]domain.EntryMeta, len(entries))
	userLabel := make(map[int64]uint64, len(entries))

	var label uint64
	skipped := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return RebuildStats{}, err
		}
		if len(e.Descriptor) != domain.DescriptorDim {
			skipped++
			ix.logger.Warn("skipping entry with malformed descriptor",
				"user_id", e.Meta.UserID, "external_id", e.Meta.ExternalID,
				"dimensions", len(e.Descriptor))
			continue
		}

		label++
		g.Add(hnsw.MakeNode(label, e.Descriptor))
		labelMeta[label] = e.Meta
		userLabel[e.Meta.UserID] = label
	}
	g.EfSearch = ix.opts.EfSearch

	ix.mu.Lock()
	ix.graph = g
	ix.labelMeta = labelMeta
	ix.userLabel = userLabel
	ix.nextLabel = label + 1
	ix.lastRebuild = time.Now()
	ix.mutations++
	ix.addsSinceSave = 0
	ix.mu.Unlock()

	ix.requestSave()

	stats := RebuildStats{Indexed: len(labelMeta), Skipped: skipped, Duration: time.Since(start)}
	ix.logger.Info("index rebuilt",
		"indexed", stats.Indexed, "skipped", stats.Skipped, "duration", stats.Duration)
	return stats, nil
}

// Save atomically persists the graph and its entry metadata. Both files
// are staged to a temp file and renamed into place, so a crash never
// leaves a truncated snapshot. The graph is serialized to memory under a
// read lock and written to disk without holding any index lock.
func (ix *Index) Save() error {
	ix.saveMu.Lock()
	defer ix.saveMu.Unlock()

	ix.mu.RLock()
	if ix.graph == nil {
		ix.mu.RUnlock()
		return domain.ErrIndexNotInitialized
	}

	snapshotMutations := ix.mutations

	var graphBuf bytes.Buffer
	if err := ix.graph.Export(&graphBuf); err != nil {
		ix.mu.RUnlock()
		return fmt.Errorf("export graph: %w", err)
	}

	metaBytes, err := json.Marshal(metaFile{
		Version:       metaVersion,
		NextLabel:     ix.nextLabel,
		LastRebuildAt: ix.lastRebuild,
		Entries:       ix.labelMeta,
	})
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal index metadata: %w", err)
	}

	if err := renameio.WriteFile(ix.opts.Path, graphBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index snapshot: %w", err)
	}
	if err := renameio.WriteFile(ix.opts.MetaPath, metaBytes, 0o644); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}

	ix.mu.Lock()
	if ix.persisted < snapshotMutations {
		ix.persisted = snapshotMutations
	}
	ix.mu.Unlock()

	return nil
}

// NeedsSave reports whether there are writes not yet on disk.
func (ix *Index) NeedsSave() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph != nil && ix.mutations != ix.persisted
}

// Size returns the number of live entries.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.labelMeta)
}

// Stats returns a snapshot of index state.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	s := Stats{
		Size:          len(ix.labelMeta),
		Capacity:      ix.opts.MaxElements,
		NextLabel:     ix.nextLabel,
		LastRebuildAt: ix.lastRebuild,
		M:             ix.opts.M,
		EfSearch:      ix.opts.EfSearch,
		Initialized:   ix.graph != nil,
		Dirty:         ix.mutations != ix.persisted,
	}
	if ix.graph != nil {
		nodes := ix.graph.Len()
		s.Tombstones = nodes - s.Size
		// Rough footprint: vector payload plus neighbor lists per node
		s.MemoryBytes = uint64(nodes) * uint64(domain.DescriptorDim*4+ix.opts.M*2*8)
	}
	return s
}

// noteMutation records a write and schedules an async snapshot every
// persistEvery writes. Callers must hold mu.
func (ix *Index) noteMutation() {
	ix.mutations++
	ix.addsSinceSave++
	if ix.addsSinceSave >= persistEvery {
		ix.addsSinceSave = 0
		ix.requestSave()
	}
}

func (ix *Index) requestSave() {
	select {
	case ix.saveSignal <- struct{}{}:
	default:
	}
}

// SquaredDistance returns the squared L2 distance between two vectors.
// Accumulation is done in float64 to keep the comparison against the
// matching threshold stable.
func SquaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
