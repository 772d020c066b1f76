package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

//go:embed schema.sql
var schemaSQL string

// Store persists queued mutations. Implementations must keep Seq strictly
// increasing in Append order.
type Store interface {
	Append(ctx context.Context, m Mutation) (Mutation, error)
	List(ctx context.Context) ([]Mutation, error)
	Get(ctx context.Context, id uuid.UUID) (*Mutation, error)
	Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Update(ctx context.Context, m Mutation) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteUnclaimed(ctx context.Context) (int, error)
	ResetInFlight(ctx context.Context, at time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// Record models the queued_mutations row.
type Record struct {
	bun.BaseModel `bun:"table:queued_mutations"`

	Seq           int64                     `bun:"seq,pk"`
	ID            uuid.UUID                 `bun:"id,type:uuid"`
	Kind          string                    `bun:"kind"`
	ProfileName   string                    `bun:"profile_name"`
	Payload       map[string]any            `bun:"payload,type:jsonb"`
	// Profiles is NULL on rows written before sync mutations carried more
	// than one profile.
	Profiles      map[string]map[string]any `bun:"profiles,type:jsonb"`
	FullSync      bool                      `bun:"full_sync"`
	Status        string                    `bun:"status"`
	Attempts      int                       `bun:"attempts"`
	LastError     string                    `bun:"last_error"`
	NextAttemptAt time.Time                 `bun:"next_attempt_at,nullzero"`
	CreatedAt     time.Time                 `bun:"created_at"`
	UpdatedAt     time.Time                 `bun:"updated_at"`
}

// BunStore keeps the queue in a sqlite database through Bun.
type BunStore struct {
	db *bun.DB
}

// NewBunStore wraps db. Call EnsureSchema before first use.
func NewBunStore(db *bun.DB) (*BunStore, error) {
	if db == nil {
		return nil, errors.New("queue: db required")
	}
	return &BunStore{db: db}, nil
}

var _ Store = (*BunStore)(nil)

// EnsureSchema creates the queue table when missing and adds columns that
// older queue files lack.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	has, err := s.hasColumn(ctx, "profiles")
	if err != nil || has {
		return err
	}
	_, err = s.db.ExecContext(ctx, "ALTER TABLE queued_mutations ADD COLUMN profiles TEXT")
	return err
}

func (s *BunStore) hasColumn(ctx context.Context, name string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('queued_mutations')")
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return false, err
		}
		if column == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Append stores m at the tail of the queue.
func (s *BunStore) Append(ctx context.Context, m Mutation) (Mutation, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var last int64
		if err := tx.NewSelect().
			TableExpr("queued_mutations").
			ColumnExpr("COALESCE(MAX(seq), 0)").
			Scan(ctx, &last); err != nil {
			return err
		}
		m.Seq = last + 1
		_, err := tx.NewInsert().Model(fromMutation(m)).Exec(ctx)
		return err
	})
	if err != nil {
		return Mutation{}, err
	}
	return m, nil
}

// List returns every queued mutation ordered by Seq.
func (s *BunStore) List(ctx context.Context) ([]Mutation, error) {
	var rows []Record
	if err := s.db.NewSelect().Model(&rows).OrderExpr("seq ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]Mutation, 0, len(rows))
	for i := range rows {
		out = append(out, toMutation(&rows[i]))
	}
	return out, nil
}

// Get returns the mutation or nil when it is no longer queued.
func (s *BunStore) Get(ctx context.Context, id uuid.UUID) (*Mutation, error) {
	rec := &Record{}
	err := s.db.NewSelect().Model(rec).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m := toMutation(rec)
	return &m, nil
}

// Claim moves a pending or failed mutation to in_flight. It reports false
// when the mutation was removed or changed state meanwhile.
func (s *BunStore) Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*Record)(nil)).
		Set("status = ?", string(StatusInFlight)).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status IN (?)", bun.In([]string{string(StatusPending), string(StatusFailed)})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

// Update writes the mutable state columns of m.
func (s *BunStore) Update(ctx context.Context, m Mutation) error {
	_, err := s.db.NewUpdate().
		Model(fromMutation(m)).
		Column("status", "attempts", "last_error", "next_attempt_at", "updated_at").
		Where("id = ?", m.ID).
		Exec(ctx)
	return err
}

// Delete removes the mutation and reports whether it existed.
func (s *BunStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewDelete().Model((*Record)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

// DeleteUnclaimed removes every mutation not currently in flight.
func (s *BunStore) DeleteUnclaimed(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Record)(nil)).
		Where("status <> ?", string(StatusInFlight)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ResetInFlight returns mutations left in flight by an interrupted process
// to pending.
func (s *BunStore) ResetInFlight(ctx context.Context, at time.Time) (int, error) {
	res, err := s.db.NewUpdate().
		Model((*Record)(nil)).
		Set("status = ?", string(StatusPending)).
		Set("updated_at = ?", at).
		Where("status = ?", string(StatusInFlight)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of mutations not yet acknowledged.
func (s *BunStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Record)(nil)).Count(ctx)
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func fromMutation(m Mutation) *Record {
	payload := m.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return &Record{
		Seq:           m.Seq,
		ID:            m.ID,
		Kind:          string(m.Kind),
		ProfileName:   m.ProfileName,
		Payload:       payload,
		Profiles:      m.Profiles,
		FullSync:      m.FullSync,
		Status:        string(m.Status),
		Attempts:      m.Attempts,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toMutation(rec *Record) Mutation {
	m := Mutation{
		ID:            rec.ID,
		Seq:           rec.Seq,
		Kind:          Kind(rec.Kind),
		ProfileName:   rec.ProfileName,
		Payload:       rec.Payload,
		Profiles:      rec.Profiles,
		FullSync:      rec.FullSync,
		Status:        Status(rec.Status),
		Attempts:      rec.Attempts,
		LastError:     rec.LastError,
		NextAttemptAt: rec.NextAttemptAt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if m.Kind == KindSync {
		m.foldProfiles()
	} else if m.Payload == nil {
		m.Payload = map[string]any{}
	}
	return m
}
