package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/profile"
	"github.com/google/uuid"
)

// ProfileSaveInput carries a raw client document for the default slot.
type ProfileSaveInput struct {
	UserID     uuid.UUID
	ProfileKey string
	Payload    any
	Result     *types.ProfileDocument
}

// Type implements gocommand.Message.
func (ProfileSaveInput) Type() string {
	return "command.profile.save"
}

// Validate implements gocommand.Message.
func (input ProfileSaveInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	return nil
}

// ProfileSaveCommand writes the default profile slot.
type ProfileSaveCommand struct {
	writer profileWriter
}

// NewProfileSaveCommand constructs the single-slot save handler.
func NewProfileSaveCommand(cfg ProfileCommandConfig) *ProfileSaveCommand {
	return &ProfileSaveCommand{writer: newProfileWriter(cfg)}
}

var _ gocommand.Commander[ProfileSaveInput] = (*ProfileSaveCommand)(nil)

// Execute merges the payload into the default slot. A missing or non-object
// payload is accepted as a no-op and yields the current profile.
func (c *ProfileSaveCommand) Execute(ctx context.Context, input ProfileSaveInput) error {
	w := c.writer
	if w.repo == nil {
		return types.ErrMissingProfileRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	key := profileKey(input.ProfileKey, input.UserID)

	payload, ok := decodePayload(input.Payload)
	if !ok {
		w.logger.Debug("profile save ignored invalid payload", "user_id", input.UserID)
		current, _, err := profile.Ensure(ctx, w.repo, w.normalizer, input.UserID, types.DefaultProfileName, key)
		if err != nil {
			return storageError(err, "load profile")
		}
		if input.Result != nil {
			*input.Result = *current
		}
		return nil
	}

	result, err := w.mergeAndPersist(ctx, input.UserID, types.DefaultProfileName, key, payload)
	if err != nil {
		w.logger.Error("profile save failed", err, "user_id", input.UserID)
		return err
	}
	w.announce(ctx, types.ActivityVerbSaved, result.changeType(), result, nil)
	if input.Result != nil {
		*input.Result = result.profile
	}
	return nil
}
