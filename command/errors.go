package command

import (
	"context"
	"errors"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-profilesync/pkg/types"
)

var (
	// ErrUserIDRequired occurs when a command omits the user.
	ErrUserIDRequired = types.ErrUserIDRequired
	// ErrContention indicates concurrent writers kept winning the version race.
	ErrContention = errors.New("go-profilesync: profile write contention")
)

// storageError classifies a repository failure into the boundary taxonomy.
// Input and configuration errors pass through unchanged.
func storageError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, types.ErrUserIDRequired),
		errors.Is(err, types.ErrProfileNameRequired),
		errors.Is(err, types.ErrMissingProfileRepository):
		return err
	case repository.IsDuplicatedKey(err):
		return types.NewPermanentWriteFailureError(err, message)
	default:
		return types.NewStorageUnavailableError(err, message)
	}
}
