package activity

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-masker"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RepositoryConfig wires the Bun-backed journal repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*LogEntry]
	Clock      types.Clock
	IDGen      types.IDGenerator
	Masker     *masker.Masker
}

type activityStore interface {
	repository.Repository[*LogEntry]
}

// Repository persists journal entries and exposes query helpers.
type Repository struct {
	activityStore
	clock types.Clock
	idGen types.IDGenerator
	mask  *masker.Masker
}

// NewRepository constructs a repository that implements both ActivitySink
// and ActivityRepository interfaces.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("activity: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*LogEntry]{
			NewRecord: func() *LogEntry { return &LogEntry{} },
			GetID: func(entry *LogEntry) uuid.UUID {
				if entry == nil {
					return uuid.Nil
				}
				return entry.ID
			},
			SetID: func(entry *LogEntry, id uuid.UUID) {
				if entry != nil {
					entry.ID = id
				}
			},
		})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	mask := cfg.Masker
	if mask == nil {
		mask = DefaultMasker()
	}

	return &Repository{
		activityStore: repo,
		clock:         clock,
		idGen:         idGen,
		mask:          mask,
	}, nil
}

var (
	_ types.ActivitySink       = (*Repository)(nil)
	_ types.ActivityRepository = (*Repository)(nil)
)

// Log masks and persists a journal entry.
func (r *Repository) Log(ctx context.Context, record types.ActivityRecord) error {
	if record.UserID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	entry := toLogEntry(SanitizeRecord(r.mask, record))
	if entry.ID == uuid.Nil {
		entry.ID = r.idGen.UUID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.Now()
	}
	_, err := r.Create(ctx, entry)
	return err
}

// ListActivity returns the newest entries first.
func (r *Repository) ListActivity(ctx context.Context, filter types.ActivityFilter) (types.ActivityPage, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.OrderExpr("created_at DESC").
				Limit(limit).
				Offset(offset)
			return applyActivityFilter(q, filter)
		},
	}

	rows, total, err := r.List(ctx, criteria...)
	if err != nil {
		return types.ActivityPage{}, err
	}
	records := make([]types.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toActivityRecord(row))
	}
	return types.ActivityPage{
		Records:    records,
		Total:      total,
		NextOffset: offset + limit,
		HasMore:    offset+limit < total,
	}, nil
}

func applyActivityFilter(q *bun.SelectQuery, filter types.ActivityFilter) *bun.SelectQuery {
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if name := strings.TrimSpace(filter.ProfileName); name != "" {
		q = q.Where("profile_name = ?", name)
	}
	if len(filter.Verbs) > 0 {
		q = q.Where("verb IN (?)", bun.In(filter.Verbs))
	}
	return q
}

func normalizePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func toLogEntry(record types.ActivityRecord) *LogEntry {
	return &LogEntry{
		ID:          record.ID,
		UserID:      record.UserID,
		ProfileName: record.ProfileName,
		Verb:        record.Verb,
		Version:     record.Version,
		Data:        cloneData(record.Data),
		CreatedAt:   record.OccurredAt,
	}
}

func toActivityRecord(entry *LogEntry) types.ActivityRecord {
	return types.ActivityRecord{
		ID:          entry.ID,
		UserID:      entry.UserID,
		ProfileName: entry.ProfileName,
		Verb:        entry.Verb,
		Version:     entry.Version,
		Data:        cloneData(entry.Data),
		OccurredAt:  entry.CreatedAt,
	}
}

func cloneData(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
