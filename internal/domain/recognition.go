package domain

import (
	"time"
)

// Recognition backends reported in identify results.
const (
	BackendHNSW   = "hnsw"
	BackendLinear = "linear"
	BackendStore  = "store"
	BackendCache  = "cache"
)

// Match is a single search hit against the enrolled population. Distance is
// Euclidean; Similarity is its integer percentage form, round((1-d)*100).
type Match struct {
	UserID      int64   `json:"user_id"`
	ExternalID  string  `json:"external_id"`
	DisplayName string  `json:"display_name,omitempty"`
	ClientRef   string  `json:"client_ref,omitempty"`
	Distance    float64 `json:"distance"`
	Similarity  int     `json:"similarity"`
}

// FaceBox is the detected face bounding box in source-image pixels.
type FaceBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// EnrollResult is returned by the coordinator after a successful
// registration or descriptor update.
type EnrollResult struct {
	User         *User   `json:"user"`
	Confidence   float64 `json:"confidence"`
	Box          FaceBox `json:"box"`
	ProcessingMs int64   `json:"processing_ms"`
}

// IdentifyResult is the outcome of a single identification. Match is nil when
// nothing scored under the operating threshold.
type IdentifyResult struct {
	Match        *Match  `json:"match,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Backend      string  `json:"backend"`
	ProcessingMs int64   `json:"processing_ms"`
	CacheHit     bool    `json:"cache_hit,omitempty"`
}

// RecognitionLog is an append-only audit row for identify operations.
type RecognitionLog struct {
	ID           int64     `json:"id"`
	UserID       *int64    `json:"user_id,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"`
	Matched      bool      `json:"matched"`
	Distance     *float64  `json:"distance,omitempty"`
	Similarity   *int      `json:"similarity,omitempty"`
	Backend      string    `json:"backend"`
	ProcessingMs int64     `json:"processing_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
