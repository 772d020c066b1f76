package queue

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued mutation.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInFlight     Status = "in_flight"
	StatusAcknowledged Status = "acknowledged"
	StatusFailed       Status = "failed"
	StatusStuck        Status = "stuck"
)

// Kind selects the server operation a mutation replays.
type Kind string

const (
	// KindSync replays a multi-profile sync.
	KindSync Kind = "sync"
	// KindSave replays a single-slot save of the default profile.
	KindSave Kind = "save"
)

var (
	// ErrUnknownKind indicates a mutation kind the transport cannot replay.
	ErrUnknownKind = errors.New("queue: unknown mutation kind")
	// ErrMutationNotFound indicates the mutation is no longer queued.
	ErrMutationNotFound = errors.New("queue: mutation not found")
	// ErrMutationInFlight indicates the mutation is being sent right now.
	ErrMutationInFlight = errors.New("queue: mutation in flight")
	// ErrMissingStore occurs when a queue is built without a store.
	ErrMissingStore = errors.New("queue: store required")
	// ErrMissingTransport occurs when a queue is built without a transport.
	ErrMissingTransport = errors.New("queue: transport required")
)

// Mutation is one buffered write intent. A save carries its document in
// Payload. A sync carries every named profile in Profiles; ProfileName and
// Payload are accepted as shorthand for a single-profile sync and folded
// into Profiles when the mutation is queued.
type Mutation struct {
	ID            uuid.UUID                 `json:"id"`
	Seq           int64                     `json:"seq"`
	Kind          Kind                      `json:"kind"`
	ProfileName   string                    `json:"profileName,omitempty"`
	Payload       map[string]any            `json:"payload,omitempty"`
	Profiles      map[string]map[string]any `json:"profiles,omitempty"`
	FullSync      bool                      `json:"fullSync"`
	Status        Status                    `json:"status"`
	Attempts      int                       `json:"attempts"`
	LastError     string                    `json:"lastError,omitempty"`
	NextAttemptAt time.Time                 `json:"nextAttemptAt,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	UpdatedAt     time.Time                 `json:"updatedAt"`
}

func (m *Mutation) normalize() error {
	switch m.Kind {
	case KindSave:
		m.ProfileName = types.DefaultProfileName
		m.FullSync = false
		m.Profiles = nil
		if m.Payload == nil {
			m.Payload = map[string]any{}
		}
	case KindSync:
		m.foldProfiles()
		profiles := make(map[string]map[string]any, len(m.Profiles))
		for name, payload := range m.Profiles {
			name = strings.TrimSpace(name)
			if name == "" {
				name = types.DefaultProfileName
			}
			if payload == nil {
				payload = map[string]any{}
			}
			profiles[name] = payload
		}
		m.Profiles = profiles
	default:
		return ErrUnknownKind
	}
	return nil
}

// foldProfiles moves the single-profile shorthand of a sync into Profiles.
// A non-nil Profiles, even an empty one, wins over the shorthand.
func (m *Mutation) foldProfiles() {
	if m.Kind != KindSync {
		return
	}
	if m.Profiles == nil {
		name := strings.TrimSpace(m.ProfileName)
		if name == "" {
			name = types.DefaultProfileName
		}
		m.Profiles = map[string]map[string]any{name: m.Payload}
	}
	m.ProfileName = ""
	m.Payload = nil
}

// Names returns the profile names the mutation writes, sorted.
func (m Mutation) Names() []string {
	if m.Kind != KindSync {
		return []string{m.ProfileName}
	}
	names := make([]string, 0, len(m.Profiles))
	for name := range m.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// retryable reports whether a flush may send the mutation.
func (m Mutation) retryable() bool {
	return m.Status == StatusPending || m.Status == StatusFailed
}
