package command

import (
	"context"
	"errors"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-profilesync/merge"
	"github.com/goliatone/go-profilesync/normalize"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// ProfileCommandConfig wires dependencies shared by the profile commands.
type ProfileCommandConfig struct {
	Repository  types.ProfileRepository
	Normalizer  *normalize.Normalizer
	Publisher   types.ChangePublisher
	Activity    types.ActivitySink
	Hooks       types.Hooks
	Clock       types.Clock
	Logger      types.Logger
	FeatureGate featuregate.FeatureGate
	// MaxAttempts bounds the re-read and re-merge loop run when another
	// writer commits the same profile first.
	MaxAttempts int
}

// commit is the outcome of one profile write.
type commit struct {
	profile  types.ProfileDocument
	previous *types.ProfileDocument
}

func (c commit) changeType() types.ChangeType {
	if c.previous == nil || !c.previous.IsActive {
		return types.ChangeInsert
	}
	return types.ChangeUpdate
}

// profileWriter runs the fetch, merge and persist cycle shared by sync and
// save, then fans the committed result out to the journal, the hooks and
// the realtime publisher.
type profileWriter struct {
	repo        types.ProfileRepository
	normalizer  *normalize.Normalizer
	publisher   types.ChangePublisher
	activity    types.ActivitySink
	hooks       types.Hooks
	clock       types.Clock
	logger      types.Logger
	gate        featuregate.FeatureGate
	maxAttempts int
}

func newProfileWriter(cfg ProfileCommandConfig) profileWriter {
	return profileWriter{
		repo:        cfg.Repository,
		normalizer:  safeNormalizer(cfg.Normalizer),
		publisher:   cfg.Publisher,
		activity:    cfg.Activity,
		hooks:       cfg.Hooks,
		clock:       safeClock(cfg.Clock),
		logger:      safeLogger(cfg.Logger),
		gate:        cfg.FeatureGate,
		maxAttempts: safeAttempts(cfg.MaxAttempts),
	}
}

// mergeAndPersist normalizes raw, merges its collections into the stored
// document and writes the result. A version conflict re-reads the stored
// document and merges again, so two writers never interleave partial state.
// A retired slot is overwritten at its stored version with raw merged over
// defaults; its old body never resurfaces.
func (w profileWriter) mergeAndPersist(ctx context.Context, userID uuid.UUID, name, key string, raw any) (commit, error) {
	incoming := w.normalizer.Normalize(raw, key)
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		base, previous, expected, err := w.mergeBase(ctx, userID, name, key)
		if err != nil {
			return commit{}, err
		}
		next := types.ProfileDocument{
			UserID:   userID,
			Name:     name,
			Data:     merge.MergeDocument(base, incoming),
			IsActive: true,
		}

		saved, err := w.repo.UpsertProfile(ctx, next, expected)
		if errors.Is(err, types.ErrVersionConflict) {
			w.logger.Debug("profile version conflict, re-merging", "user_id", userID, "profile", name, "attempt", attempt)
			continue
		}
		if err != nil {
			return commit{}, storageError(err, "persist profile")
		}
		if saved == nil {
			saved = &next
		}
		return commit{profile: *saved, previous: previous}, nil
	}
	return commit{}, types.NewStorageUnavailableError(ErrContention, "persist profile")
}

// mergeBase returns the body to merge into and the version the write must
// match. Only the active row contributes data; an inactive row only pins the
// version so the slot is overwritten in place.
func (w profileWriter) mergeBase(ctx context.Context, userID uuid.UUID, name, key string) (map[string]any, *types.ProfileDocument, int, error) {
	active, err := w.repo.FindActiveProfile(ctx, userID, name)
	if err != nil {
		return nil, nil, 0, storageError(err, "load profile")
	}
	if active != nil {
		return active.Data, active, active.Version, nil
	}
	retired, err := w.repo.FindProfile(ctx, userID, name)
	if err != nil {
		return nil, nil, 0, storageError(err, "load profile")
	}
	if retired == nil {
		return nil, nil, 0, nil
	}
	return w.normalizer.Defaults(key), retired, retired.Version, nil
}

func (w profileWriter) announce(ctx context.Context, verb string, change types.ChangeType, result commit, extra map[string]any) {
	occurredAt := now(w.clock)
	record := buildActivity(verb, result.profile, occurredAt, extra)
	logActivity(ctx, w.activity, w.logger, record)
	emitActivityHook(ctx, w.hooks, record)

	emitProfileHook(ctx, w.hooks, types.ProfileEvent{
		UserID:     result.profile.UserID,
		ActorID:    result.profile.UserID,
		Action:     verb,
		OccurredAt: occurredAt,
		Profile:    result.profile,
		Previous:   result.previous,
	})

	event := types.ChangeEvent{
		Type:       change,
		UserID:     result.profile.UserID,
		Record:     result.profile,
		OccurredAt: occurredAt,
	}
	if change == types.ChangeUpdate {
		event.Previous = result.previous
	}
	publishChange(ctx, w.publisher, event)
}
