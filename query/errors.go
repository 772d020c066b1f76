package query

import (
	"context"
	"errors"

	"github.com/goliatone/go-profilesync/pkg/types"
)

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
	default:
		return types.NewStorageUnavailableError(err, message)
	}
}
