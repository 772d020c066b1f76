package command

import (
	"context"
	"sort"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// ProfileSyncInput carries one sync cycle: the raw client documents keyed by
// profile name and whether they are the complete set of the user's profiles.
type ProfileSyncInput struct {
	UserID     uuid.UUID
	ProfileKey string
	Profiles   map[string]any
	FullSync   bool
	Result     *map[string]types.ProfileDocument
}

// Type implements gocommand.Message.
func (ProfileSyncInput) Type() string {
	return "command.profile.sync"
}

// Validate implements gocommand.Message.
func (input ProfileSyncInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Profiles == nil {
		return types.NewMalformedPayloadError("profiles object required", map[string]any{
			"field": "profiles",
		})
	}
	for name := range input.Profiles {
		if strings.TrimSpace(name) == "" {
			return types.NewMalformedPayloadError("profile name required", map[string]any{
				"field": "profiles",
			})
		}
	}
	return nil
}

// ProfileSyncCommand merges client documents into the stored profiles.
type ProfileSyncCommand struct {
	writer profileWriter
}

// NewProfileSyncCommand constructs the sync handler.
func NewProfileSyncCommand(cfg ProfileCommandConfig) *ProfileSyncCommand {
	return &ProfileSyncCommand{writer: newProfileWriter(cfg)}
}

var _ gocommand.Commander[ProfileSyncInput] = (*ProfileSyncCommand)(nil)

// Execute merges every named profile, in name order, and retires the stored
// profiles missing from a full sync. Profiles committed before a failure stay
// committed; the caller retries the whole sync.
func (c *ProfileSyncCommand) Execute(ctx context.Context, input ProfileSyncInput) error {
	w := c.writer
	if w.repo == nil {
		return types.ErrMissingProfileRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	key := profileKey(input.ProfileKey, input.UserID)

	names := make([]string, 0, len(input.Profiles))
	for name := range input.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]types.ProfileDocument, len(names))
	kept := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		result, err := w.mergeAndPersist(ctx, input.UserID, name, key, input.Profiles[raw])
		if err != nil {
			w.logger.Error("profile sync failed", err, "user_id", input.UserID, "profile", name)
			return err
		}
		results[name] = result.profile
		kept = append(kept, name)
		w.announce(ctx, types.ActivityVerbSynced, result.changeType(), result, map[string]any{
			"fullSync": input.FullSync,
		})
	}

	if input.FullSync {
		deactivated, err := w.repo.DeactivateProfilesExcept(ctx, input.UserID, kept)
		if err != nil {
			return storageError(err, "deactivate profiles")
		}
		for _, doc := range deactivated {
			w.announce(ctx, types.ActivityVerbDeactivated, types.ChangeDelete, commit{profile: doc}, nil)
		}
	}

	w.logger.Debug("profile sync committed", "user_id", input.UserID, "profiles", len(results), "full_sync", input.FullSync)
	if input.Result != nil {
		*input.Result = results
	}
	return nil
}
