package realtime

import (
	"context"
	"errors"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

var (
	// ErrTimeout reports that a subscription ended because the transport
	// stopped answering.
	ErrTimeout = errors.New("realtime: subscription timed out")
	// ErrClosed reports that a subscription was closed by either side.
	ErrClosed = errors.New("realtime: subscription closed")
	// ErrMissingChannel occurs when a notifier is built without a channel.
	ErrMissingChannel = errors.New("realtime: channel required")
	// ErrUserIDRequired indicates a subscription without a user id.
	ErrUserIDRequired = errors.New("realtime: user id required")
)

// Channel opens change subscriptions for a single user.
type Channel interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (Subscription, error)
}

// Subscription is a live change stream. Events is closed when the
// subscription ends; Err then reports why.
type Subscription interface {
	Events() <-chan types.ChangeEvent
	Err() error
	Close()
}
