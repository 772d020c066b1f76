package types

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies the authenticated caller. Key is the human readable
// discriminator resolved by the identity boundary (used for derived fields).
type ActorRef struct {
	ID  uuid.UUID
	Key string
}

// IsZero reports whether the actor reference is empty.
func (a ActorRef) IsZero() bool {
	return a.ID == uuid.Nil
}

// ProfileEvent signals that a profile mutation was committed.
type ProfileEvent struct {
	UserID     uuid.UUID
	ActorID    uuid.UUID
	Action     string
	OccurredAt time.Time
	Profile    ProfileDocument
	Previous   *ProfileDocument
}

// Hooks groups optional callbacks invoked after key workflows complete.
type Hooks struct {
	AfterProfileChange func(context.Context, ProfileEvent)
	AfterActivity      func(context.Context, ActivityRecord)
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// Logger captures basic logging hooks used by the service.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}

var (
	// ErrUserIDRequired indicates a user identifier was omitted.
	ErrUserIDRequired = errors.New("go-profilesync: user id required")
	// ErrProfileNameRequired indicates a profile slot name was omitted.
	ErrProfileNameRequired = errors.New("go-profilesync: profile name required")
	// ErrVersionConflict indicates the stored profile changed since it was read.
	ErrVersionConflict = errors.New("go-profilesync: profile version conflict")
	// ErrServiceNotReady indicates the service has not been properly configured.
	ErrServiceNotReady = errors.New("go-profilesync: service not ready")
	// ErrMissingProfileRepository occurs when profile commands lack a storage backend.
	ErrMissingProfileRepository = errors.New("go-profilesync: missing profile repository")
	// ErrMissingActivityRepository occurs when no activity repository was supplied.
	ErrMissingActivityRepository = errors.New("go-profilesync: missing activity repository")
)
