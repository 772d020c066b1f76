package types

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultProfileName is the slot used by the single-profile endpoints.
const DefaultProfileName = "default"

// Collection names merged record by record.
const (
	CollectionHolidays          = "holidays"
	CollectionPermits           = "permits"
	CollectionOvertime          = "overtime"
	CollectionOnCall            = "onCall"
	CollectionProjects          = "projects"
	CollectionAppointments      = "appointments"
	CollectionCheckIns          = "checkIns"
	CollectionSentNotifications = "sentNotifications"
)

// Collections lists every mergeable collection in display order.
var Collections = []string{
	CollectionHolidays,
	CollectionPermits,
	CollectionOvertime,
	CollectionOnCall,
	CollectionProjects,
	CollectionAppointments,
	CollectionCheckIns,
	CollectionSentNotifications,
}

// IsCollection reports whether name is one of the mergeable collections.
func IsCollection(name string) bool {
	for _, candidate := range Collections {
		if candidate == name {
			return true
		}
	}
	return false
}

// Record is one identifiable item inside a profile collection. Fields other
// than id, date and updatedAt are carried verbatim.
type Record map[string]any

// ID returns the record identity exactly as stored, or an empty string when
// the id is missing or not a string.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r["id"].(string)
	return id
}

// Date returns the record sort key.
func (r Record) Date() (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(r["date"])
}

// UpdatedAt returns the logical timestamp of the record.
func (r Record) UpdatedAt() (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(r["updatedAt"])
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 strings, date-only strings, numeric epoch
// milliseconds and time.Time values. Anything else is reported as absent.
func ParseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		raw := strings.TrimSpace(v)
		if raw == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts.UTC(), true
			}
		}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	case int64:
		return time.UnixMilli(v).UTC(), true
	case int:
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// ProfileDocument is the canonical unit of state for one named profile.
type ProfileDocument struct {
	UserID    uuid.UUID      `json:"userId"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	IsActive  bool           `json:"isActive"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Exists reports whether the document was loaded from storage.
func (d ProfileDocument) Exists() bool {
	return d.Version > 0
}

// Collection returns the records stored under the named collection.
func (d ProfileDocument) Collection(name string) []Record {
	return RecordsOf(d.Data[name])
}

// RecordsOf converts a decoded JSON sequence into records, dropping entries
// that are not objects.
func RecordsOf(value any) []Record {
	switch items := value.(type) {
	case []Record:
		return items
	case []map[string]any:
		out := make([]Record, 0, len(items))
		for _, item := range items {
			out = append(out, Record(item))
		}
		return out
	case []any:
		out := make([]Record, 0, len(items))
		for _, item := range items {
			switch rec := item.(type) {
			case map[string]any:
				out = append(out, Record(rec))
			case Record:
				out = append(out, rec)
			}
		}
		return out
	default:
		return nil
	}
}

// ProfileRepository persists profile documents keyed by (userID, name).
type ProfileRepository interface {
	FindActiveProfile(ctx context.Context, userID uuid.UUID, name string) (*ProfileDocument, error)
	FindProfile(ctx context.Context, userID uuid.UUID, name string) (*ProfileDocument, error)
	ListActiveProfiles(ctx context.Context, userID uuid.UUID) ([]ProfileDocument, error)
	ListProfiles(ctx context.Context, userID uuid.UUID) ([]ProfileDocument, error)
	UpsertProfile(ctx context.Context, doc ProfileDocument, expectedVersion int) (*ProfileDocument, error)
	DeactivateProfilesExcept(ctx context.Context, userID uuid.UUID, keepNames []string) ([]ProfileDocument, error)
}
