package query

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/normalize"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/profile"
	"github.com/google/uuid"
)

// CurrentProfileInput selects the default profile of a user.
type CurrentProfileInput struct {
	UserID     uuid.UUID
	ProfileKey string
}

// CurrentProfileQuery returns the default slot, creating it from defaults
// on first access.
type CurrentProfileQuery struct {
	repo       types.ProfileRepository
	normalizer *normalize.Normalizer
}

// NewCurrentProfileQuery constructs the current profile query helper.
func NewCurrentProfileQuery(repo types.ProfileRepository, normalizer *normalize.Normalizer) *CurrentProfileQuery {
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	return &CurrentProfileQuery{repo: repo, normalizer: normalizer}
}

var _ gocommand.Querier[CurrentProfileInput, types.ProfileDocument] = (*CurrentProfileQuery)(nil)

// Query returns the sanitized default profile.
func (q *CurrentProfileQuery) Query(ctx context.Context, input CurrentProfileInput) (types.ProfileDocument, error) {
	if q.repo == nil {
		return types.ProfileDocument{}, types.ErrMissingProfileRepository
	}
	if input.UserID == uuid.Nil {
		return types.ProfileDocument{}, types.ErrUserIDRequired
	}
	key := strings.TrimSpace(input.ProfileKey)
	if key == "" {
		key = input.UserID.String()
	}
	doc, _, err := profile.Ensure(ctx, q.repo, q.normalizer, input.UserID, types.DefaultProfileName, key)
	if err != nil {
		return types.ProfileDocument{}, storageError(err, "load profile")
	}
	out := *doc
	out.Data = q.normalizer.Normalize(doc.Data, key)
	return out, nil
}

// ActiveProfilesInput selects every active profile of a user.
type ActiveProfilesInput struct {
	UserID     uuid.UUID
	ProfileKey string
}

// ActiveProfilesQuery lists the visible profiles keyed by name.
type ActiveProfilesQuery struct {
	repo       types.ProfileRepository
	normalizer *normalize.Normalizer
}

// NewActiveProfilesQuery constructs the active profiles query helper.
func NewActiveProfilesQuery(repo types.ProfileRepository, normalizer *normalize.Normalizer) *ActiveProfilesQuery {
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	return &ActiveProfilesQuery{repo: repo, normalizer: normalizer}
}

var _ gocommand.Querier[ActiveProfilesInput, map[string]types.ProfileDocument] = (*ActiveProfilesQuery)(nil)

// Query returns name to sanitized document for active profiles only.
func (q *ActiveProfilesQuery) Query(ctx context.Context, input ActiveProfilesInput) (map[string]types.ProfileDocument, error) {
	if q.repo == nil {
		return nil, types.ErrMissingProfileRepository
	}
	if input.UserID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	key := strings.TrimSpace(input.ProfileKey)
	if key == "" {
		key = input.UserID.String()
	}
	docs, err := q.repo.ListActiveProfiles(ctx, input.UserID)
	if err != nil {
		return nil, storageError(err, "list profiles")
	}
	out := make(map[string]types.ProfileDocument, len(docs))
	for _, doc := range docs {
		doc.Data = q.normalizer.Normalize(doc.Data, key)
		out[doc.Name] = doc
	}
	return out, nil
}
