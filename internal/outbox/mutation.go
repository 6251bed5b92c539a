// Package outbox queues remote writes that failed inline and replays them
// in the background until they land or exhaust their retries.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of remote write a mutation replays.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpStatus Op = "status"
)

// State is the delivery state of a mutation.
type State string

const (
	StatePending State = "pending_sync"
	StateFailed  State = "failed"
	StateDone    State = "synced"
)

const (
	// DefaultMaxRetries is the number of attempts before a mutation is dead-lettered.
	DefaultMaxRetries = 3
	// DefaultBackoff is the delay after a failed attempt.
	DefaultBackoff = 10 * time.Second
)

// Mutation is one queued remote write.
type Mutation struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Op        Op              `json:"op"`
	RecordID  int64           `json:"record_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempt   int             `json:"attempt"`
	Status    State           `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	LastError string          `json:"last_error,omitempty"`
}

// StatusPayload is the payload of an OpStatus mutation.
type StatusPayload struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// NewMutation builds a pending mutation, marshalling payload when non-nil.
func NewMutation(entity string, op Op, recordID int64, payload any) (*Mutation, error) {
	m := &Mutation{
		ID:        uuid.NewString(),
		Entity:    entity,
		Op:        op,
		RecordID:  recordID,
		Status:    StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", entity, err)
		}
		m.Payload = raw
	}
	return m, nil
}

// Stats summarises the queue.
type Stats struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}
