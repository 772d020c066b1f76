package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the sync_profiles row.
type Record struct {
	bun.BaseModel `bun:"table:sync_profiles"`

	ID        uuid.UUID      `bun:"id,pk,type:uuid"`
	UserID    uuid.UUID      `bun:"user_id,notnull,type:uuid"`
	Name      string         `bun:"name,notnull"`
	Data      map[string]any `bun:"data,type:jsonb"`
	IsActive  bool           `bun:"is_active"`
	Version   int            `bun:"version"`
	CreatedAt time.Time      `bun:"created_at"`
	UpdatedAt time.Time      `bun:"updated_at"`
}
