package profile

import (
	"context"
	"errors"

	"github.com/goliatone/go-profilesync/normalize"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

const ensureAttempts = 3

// Ensure returns the active profile stored for (userID, name). A missing slot
// is created from defaults and an inactive one is reactivated with its body
// reset to defaults. created reports whether the call wrote a row.
func Ensure(ctx context.Context, repo types.ProfileRepository, normalizer *normalize.Normalizer, userID uuid.UUID, name, profileKey string) (doc *types.ProfileDocument, created bool, err error) {
	if repo == nil {
		return nil, false, types.ErrMissingProfileRepository
	}
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	for attempt := 0; attempt < ensureAttempts; attempt++ {
		active, err := repo.FindActiveProfile(ctx, userID, name)
		if err != nil {
			return nil, false, err
		}
		if active != nil {
			return active, false, nil
		}

		stored, err := repo.FindProfile(ctx, userID, name)
		if err != nil {
			return nil, false, err
		}
		next := types.ProfileDocument{
			UserID:   userID,
			Name:     name,
			Data:     normalizer.Defaults(profileKey),
			IsActive: true,
		}
		expected := 0
		if stored != nil {
			expected = stored.Version
		}
		saved, err := repo.UpsertProfile(ctx, next, expected)
		if errors.Is(err, types.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return saved, true, nil
	}
	return nil, false, types.ErrVersionConflict
}
