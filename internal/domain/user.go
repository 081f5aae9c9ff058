package domain

import (
	"time"
)

// DescriptorDim is the dimensionality of face descriptors produced by the
// vision providers and stored for every user.
const DescriptorDim = 128

// User represents an enrolled identity
type User struct {
	ID                int64      `json:"id"`
	ExternalID        string     `json:"external_id"`
	DisplayName       string     `json:"display_name,omitempty"`
	ClientRef         string     `json:"client_ref,omitempty"`
	Descriptor        []float32  `json:"-"`
	Confidence        float64    `json:"confidence"`
	Active            bool       `json:"active"`
	RecognitionCount  int64      `json:"recognition_count"`
	LastRecognitionAt *time.Time `json:"last_recognition_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// EntryMeta is the per-label metadata the vector index keeps for a user.
type EntryMeta struct {
	UserID      int64  `json:"userId"`
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	ClientRef   string `json:"clientRef"`
}

// Meta returns the index metadata view of the user.
func (u *User) Meta() EntryMeta {
	return EntryMeta{
		UserID:      u.ID,
		ExternalID:  u.ExternalID,
		DisplayName: u.DisplayName,
		ClientRef:   u.ClientRef,
	}
}
