package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChangeType tags realtime change events.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Valid reports whether the change type is one of the known tags.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	default:
		return false
	}
}

// ChangeEvent is delivered to every live session of the owning user. Previous
// is only set for updates.
type ChangeEvent struct {
	Type       ChangeType       `json:"type"`
	UserID     uuid.UUID        `json:"userId"`
	Record     ProfileDocument  `json:"record"`
	Previous   *ProfileDocument `json:"previous,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// ChangePublisher fans committed changes out to live sessions. Publish must
// not block the caller.
type ChangePublisher interface {
	Publish(ctx context.Context, event ChangeEvent)
}
