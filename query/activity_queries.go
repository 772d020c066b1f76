package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// SyncActivityQuery renders the caller's sync journal.
type SyncActivityQuery struct {
	repo types.ActivityRepository
}

// NewSyncActivityQuery constructs the journal query helper.
func NewSyncActivityQuery(repo types.ActivityRepository) *SyncActivityQuery {
	return &SyncActivityQuery{repo: repo}
}

var _ gocommand.Querier[types.ActivityFilter, types.ActivityPage] = (*SyncActivityQuery)(nil)

// Query fetches a page of journal entries. The filter must name the user.
func (q *SyncActivityQuery) Query(ctx context.Context, filter types.ActivityFilter) (types.ActivityPage, error) {
	if q.repo == nil {
		return types.ActivityPage{}, types.ErrMissingActivityRepository
	}
	if filter.UserID == uuid.Nil {
		return types.ActivityPage{}, types.ErrUserIDRequired
	}
	page, err := q.repo.ListActivity(ctx, filter)
	if err != nil {
		return types.ActivityPage{}, storageError(err, "list activity")
	}
	return page, nil
}
