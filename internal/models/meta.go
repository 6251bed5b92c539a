package models

import "time"

// RemoteIDThreshold separates locally allocated ids from ids assigned by the
// remote store. Remote identity columns start above it.
const RemoteIDThreshold int64 = 1000

// SyncState tracks whether a cached record has reached the remote store.
type SyncState string

const (
	SyncPending SyncState = "pending_sync"
	SyncSynced  SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

// Meta is embedded in every synced entity.
type Meta struct {
	ID        int64     `json:"id"`
	SyncState SyncState `json:"sync_state,omitempty"`
	SyncKey   string    `json:"sync_key,omitempty"` // idempotency key sent with remote inserts
}

// GetMeta returns the embedded metadata.
func (m *Meta) GetMeta() *Meta { return m }

// HasRemoteID reports whether the id looks remote-assigned.
func (m *Meta) HasRemoteID() bool { return m.ID > RemoteIDThreshold }

// Record is the constraint satisfied by pointers to synced entities.
type Record[T any] interface {
	*T
	GetMeta() *Meta
}

// Status is the review state of a submitted form.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Review is the status block shared by every submitted form.
type Review struct {
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
}

// GetReview returns the embedded review block.
func (r *Review) GetReview() *Review { return r }

// Reviewable is the constraint satisfied by pointers to form entities.
type Reviewable[T any] interface {
	Record[T]
	GetReview() *Review
}

// FileRef points at an object in blob storage. A zero FileRef means no file.
type FileRef struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	StoragePath string `json:"storage_path"`
	URL         string `json:"url"`
	Uploaded    bool   `json:"uploaded"`
}

// Present reports whether the reference points at an uploaded object.
func (f *FileRef) Present() bool { return f != nil && f.Uploaded && f.URL != "" }
