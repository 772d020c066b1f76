package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LogEntry models the persisted row in sync_activity.
type LogEntry struct {
	bun.BaseModel `bun:"table:sync_activity"`

	ID          uuid.UUID      `bun:",pk,type:uuid"`
	UserID      uuid.UUID      `bun:"user_id,type:uuid"`
	ProfileName string         `bun:"profile_name"`
	Verb        string         `bun:"verb"`
	Version     int            `bun:"version"`
	Data        map[string]any `bun:"data,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at"`
}
