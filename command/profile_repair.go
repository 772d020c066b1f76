package command

import (
	"context"
	"errors"
	"reflect"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// ProfileRepairInput selects the user whose stored documents are re-normalized.
type ProfileRepairInput struct {
	UserID     uuid.UUID
	ProfileKey string
	Result     *[]types.ProfileDocument
}

// Type implements gocommand.Message.
func (ProfileRepairInput) Type() string {
	return "command.profile.repair"
}

// Validate implements gocommand.Message.
func (input ProfileRepairInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	return nil
}

// ProfileRepairCommand heals documents written before a schema change.
type ProfileRepairCommand struct {
	writer profileWriter
}

// NewProfileRepairCommand constructs the repair handler.
func NewProfileRepairCommand(cfg ProfileCommandConfig) *ProfileRepairCommand {
	return &ProfileRepairCommand{writer: newProfileWriter(cfg)}
}

var _ gocommand.Commander[ProfileRepairInput] = (*ProfileRepairCommand)(nil)

// Execute runs the normalizer over every stored document of the user, active
// or not, without merging. Only documents that change are written. Result
// receives the repaired documents.
func (c *ProfileRepairCommand) Execute(ctx context.Context, input ProfileRepairInput) error {
	w := c.writer
	if w.repo == nil {
		return types.ErrMissingProfileRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	enabled, err := featureEnabled(ctx, w.gate, featureProfilesRepair, input.UserID)
	if err != nil {
		return err
	}
	if !enabled {
		return types.NewFeatureDisabledError(featureProfilesRepair)
	}
	key := profileKey(input.ProfileKey, input.UserID)

	stored, err := w.repo.ListProfiles(ctx, input.UserID)
	if err != nil {
		return storageError(err, "list profiles")
	}
	repaired := make([]types.ProfileDocument, 0, len(stored))
	for _, doc := range stored {
		result, changed, err := w.repair(ctx, doc, key)
		if err != nil {
			w.logger.Error("profile repair failed", err, "user_id", input.UserID, "profile", doc.Name)
			return err
		}
		if !changed {
			continue
		}
		repaired = append(repaired, result.profile)
		if !result.profile.IsActive {
			logActivity(ctx, w.activity, w.logger, buildActivity(types.ActivityVerbRepaired, result.profile, now(w.clock), nil))
			continue
		}
		w.announce(ctx, types.ActivityVerbRepaired, types.ChangeUpdate, result, nil)
	}

	w.logger.Info("profile repair finished", "user_id", input.UserID, "scanned", len(stored), "repaired", len(repaired))
	if input.Result != nil {
		*input.Result = repaired
	}
	return nil
}

func (w profileWriter) repair(ctx context.Context, doc types.ProfileDocument, key string) (commit, bool, error) {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		normalized := w.normalizer.Normalize(doc.Data, key)
		if reflect.DeepEqual(normalized, doc.Data) {
			return commit{}, false, nil
		}
		previous := doc
		next := doc
		next.Data = normalized
		saved, err := w.repo.UpsertProfile(ctx, next, doc.Version)
		if errors.Is(err, types.ErrVersionConflict) {
			current, err := w.repo.FindProfile(ctx, doc.UserID, doc.Name)
			if err != nil {
				return commit{}, false, storageError(err, "reload profile")
			}
			if current == nil {
				return commit{}, false, nil
			}
			doc = *current
			continue
		}
		if err != nil {
			return commit{}, false, storageError(err, "persist profile")
		}
		return commit{profile: *saved, previous: &previous}, true, nil
	}
	return commit{}, false, types.NewStorageUnavailableError(ErrContention, "repair profile")
}
