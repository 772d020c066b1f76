package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sync journal verbs.
const (
	ActivityVerbSynced      = "profile.synced"
	ActivityVerbSaved       = "profile.saved"
	ActivityVerbRepaired    = "profile.repaired"
	ActivityVerbDeactivated = "profile.deactivated"
)

// ActivityRecord is one journal entry describing a committed sync operation.
type ActivityRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProfileName string
	Verb        string
	Version     int
	Data        map[string]any
	OccurredAt  time.Time
}

// ActivitySink persists journal entries.
type ActivitySink interface {
	Log(ctx context.Context, record ActivityRecord) error
}

// ActivityFilter narrows journal queries.
type ActivityFilter struct {
	UserID      uuid.UUID
	ProfileName string
	Verbs       []string
	Limit       int
	Offset      int
}

// ActivityPage is a page of journal entries.
type ActivityPage struct {
	Records    []ActivityRecord
	Total      int
	NextOffset int
	HasMore    bool
}

// ActivityRepository exposes journal reads.
type ActivityRepository interface {
	ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}
