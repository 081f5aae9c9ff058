package index

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/visage-id/visage/internal/domain"
)

// metaVersion guards against layout changes in the metadata file
const metaVersion = 1

// metaFile is the JSON document persisted next to the graph snapshot. It
// holds everything needed to interpret the graph after a restart: the
// label allocator position and the label-to-user mapping. Descriptors are
// not duplicated here, they live in the graph nodes and in Postgres.
type metaFile struct {
	Version       int                         `json:"version"`
	NextLabel     uint64                      `json:"next_label"`
	LastRebuildAt time.Time                   `json:"last_rebuild_at"`
	Entries       map[uint64]domain.EntryMeta `json:"entries"`
}

func loadMeta(path string) (*metaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index metadata: %w", err)
	}

	var meta metaFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal index metadata: %w", err)
	}
	if meta.Version != metaVersion {
		return nil, fmt.Errorf("unsupported index metadata version %d", meta.Version)
	}
	if meta.Entries == nil {
		meta.Entries = make(map[uint64]domain.EntryMeta)
	}
	if meta.NextLabel == 0 {
		meta.NextLabel = 1
	}

	return &meta, nil
}
