package profile

import (
	"context"
	"errors"
	"sort"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed profile repository.
type RepositoryConfig struct {
	DB          *bun.DB
	Repository  repository.Repository[*Record]
	Clock       types.Clock
	IDGenerator types.IDGenerator
}

// Repository implements types.ProfileRepository using Bun. Writes are guarded
// by the (user_id, name) unique constraint and the version column.
type Repository struct {
	store repository.Repository[*Record]
	db    *bun.DB
	clock types.Clock
	ids   types.IDGenerator
}

// NewRepository constructs the default profile repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("profile: db required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Record]{
			NewRecord: func() *Record { return &Record{} },
			GetID: func(rec *Record) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *Record, id uuid.UUID) {
				if rec != nil {
					rec.ID = id
				}
			},
		})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = types.UUIDGenerator{}
	}
	return &Repository{store: repo, db: cfg.DB, clock: clock, ids: ids}, nil
}

var _ types.ProfileRepository = (*Repository)(nil)

// FindActiveProfile returns the active profile for (userID, name) or nil.
func (r *Repository) FindActiveProfile(ctx context.Context, userID uuid.UUID, name string) (*types.ProfileDocument, error) {
	return r.find(ctx, userID, name, true)
}

// FindProfile returns the profile for (userID, name) regardless of its
// active flag, or nil when the slot was never written.
func (r *Repository) FindProfile(ctx context.Context, userID uuid.UUID, name string) (*types.ProfileDocument, error) {
	return r.find(ctx, userID, name, false)
}

func (r *Repository) find(ctx context.Context, userID uuid.UUID, name string, activeOnly bool) (*types.ProfileDocument, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrProfileNameRequired
	}
	criteria := []repository.SelectCriteria{selectSlot(userID, name)}
	if activeOnly {
		criteria = append(criteria, selectActive())
	}
	rec, err := r.store.Get(ctx, criteria...)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// ListActiveProfiles returns every active profile of the user ordered by name.
func (r *Repository) ListActiveProfiles(ctx context.Context, userID uuid.UUID) ([]types.ProfileDocument, error) {
	return r.list(ctx, userID, true)
}

// ListProfiles returns every stored profile of the user ordered by name.
func (r *Repository) ListProfiles(ctx context.Context, userID uuid.UUID) ([]types.ProfileDocument, error) {
	return r.list(ctx, userID, false)
}

func (r *Repository) list(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]types.ProfileDocument, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	criteria := []repository.SelectCriteria{selectUser(userID), orderByName()}
	if activeOnly {
		criteria = append(criteria, selectActive())
	}
	records, _, err := r.store.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]types.ProfileDocument, 0, len(records))
	for _, rec := range records {
		out = append(out, *toDomain(rec))
	}
	return out, nil
}

// UpsertProfile writes doc for its (UserID, Name) slot. An expectedVersion of
// zero inserts a new row; any other value updates the row only when its
// stored version still matches. Both paths report types.ErrVersionConflict
// when another writer got there first.
func (r *Repository) UpsertProfile(ctx context.Context, doc types.ProfileDocument, expectedVersion int) (*types.ProfileDocument, error) {
	if doc.UserID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		return nil, types.ErrProfileNameRequired
	}
	if expectedVersion < 0 {
		return nil, types.ErrVersionConflict
	}
	if expectedVersion == 0 {
		return r.insert(ctx, doc)
	}
	return r.update(ctx, doc, expectedVersion)
}

func (r *Repository) insert(ctx context.Context, doc types.ProfileDocument) (*types.ProfileDocument, error) {
	now := r.clock.Now()
	rec := fromDomain(doc)
	rec.ID = r.ids.UUID()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	res, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id, name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, repository.MapDatabaseError(err, repository.DetectDriver(r.db))
	}
	if err := repository.SQLExpectedCount(res, 1); err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return nil, types.ErrVersionConflict
		}
		return nil, err
	}
	return toDomain(rec), nil
}

func (r *Repository) update(ctx context.Context, doc types.ProfileDocument, expectedVersion int) (*types.ProfileDocument, error) {
	rec := fromDomain(doc)
	rec.Version = expectedVersion + 1
	rec.UpdatedAt = r.clock.Now()

	res, err := r.db.NewUpdate().
		Model(rec).
		Column("data", "is_active", "version", "updated_at").
		Where("user_id = ?", doc.UserID).
		Where("name = ?", doc.Name).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return nil, repository.MapDatabaseError(err, repository.DetectDriver(r.db))
	}
	if err := repository.SQLExpectedCount(res, 1); err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return nil, types.ErrVersionConflict
		}
		return nil, err
	}
	stored, err := r.FindProfile(ctx, doc.UserID, doc.Name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, types.ErrVersionConflict
	}
	return stored, nil
}

// DeactivateProfilesExcept marks every active profile of the user whose name
// is not listed in keepNames as inactive and returns the deactivated
// documents. Rows are never deleted.
func (r *Repository) DeactivateProfilesExcept(ctx context.Context, userID uuid.UUID, keepNames []string) ([]types.ProfileDocument, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	keep := make(map[string]struct{}, len(keepNames))
	for _, name := range keepNames {
		keep[strings.TrimSpace(name)] = struct{}{}
	}
	active, err := r.ListActiveProfiles(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	var out []types.ProfileDocument
	for _, doc := range active {
		if _, ok := keep[doc.Name]; ok {
			continue
		}
		res, err := r.db.NewUpdate().
			Model((*Record)(nil)).
			Set("is_active = ?", false).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("user_id = ?", userID).
			Where("name = ?", doc.Name).
			Where("is_active = ?", true).
			Exec(ctx)
		if err != nil {
			return nil, repository.MapDatabaseError(err, repository.DetectDriver(r.db))
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			continue
		}
		doc.IsActive = false
		doc.Version++
		doc.UpdatedAt = now
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func selectSlot(userID uuid.UUID, name string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID).Where("name = ?", name)
	}
}

func selectUser(userID uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID)
	}
}

func selectActive() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("is_active = ?", true)
	}
}

func orderByName() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("name ASC")
	}
}

func fromDomain(doc types.ProfileDocument) *Record {
	return &Record{
		UserID:    doc.UserID,
		Name:      doc.Name,
		Data:      cloneMap(doc.Data),
		IsActive:  doc.IsActive,
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func toDomain(rec *Record) *types.ProfileDocument {
	if rec == nil {
		return nil
	}
	return &types.ProfileDocument{
		UserID:    rec.UserID,
		Name:      rec.Name,
		Data:      cloneMap(rec.Data),
		IsActive:  rec.IsActive,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func cloneMap(origin map[string]any) map[string]any {
	out := make(map[string]any, len(origin))
	for k, v := range origin {
		out[k] = v
	}
	return out
}
