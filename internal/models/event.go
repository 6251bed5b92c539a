package models

import "errors"

// ErrInvalidBucket is returned for an event bucket other than upcoming or past.
var ErrInvalidBucket = errors.New("event bucket must be upcoming or past")

// EventBucket partitions events. It is moved by an admin, never derived from Date.
type EventBucket string

const (
	BucketUpcoming EventBucket = "upcoming"
	BucketPast     EventBucket = "past"
)

// Event is an association event (conference, workshop, ...).
type Event struct {
	Meta
	Title       string      `json:"title" binding:"required"`
	Subtitle    string      `json:"subtitle"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Location    string      `json:"location"`
	Fees        string      `json:"fees"`
	Tracks      []string    `json:"tracks"`
	Image       FileRef     `json:"image"`
	Bucket      EventBucket `json:"bucket"`
}

// Valid reports whether b names a known bucket.
func (b EventBucket) Valid() bool { return b == BucketUpcoming || b == BucketPast }

// EventBuckets is the cached shape of the events collection.
type EventBuckets struct {
	Upcoming []Event `json:"upcoming"`
	Past     []Event `json:"past"`
}
