package activity

import (
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// RecordOption mutates the ActivityRecord produced by BuildRecord.
type RecordOption func(*types.ActivityRecord)

// WithData merges extra payload keys into the record.
func WithData(data map[string]any) RecordOption {
	return func(record *types.ActivityRecord) {
		for key, value := range data {
			record.Data[key] = value
		}
	}
}

// BuildRecord summarizes a committed profile write for the journal: the
// record count of every collection plus the derived profile key and work
// location, which are masked on write.
func BuildRecord(verb string, doc types.ProfileDocument, opts ...RecordOption) types.ActivityRecord {
	counts := make(map[string]any, len(types.Collections))
	for _, name := range types.Collections {
		counts[name] = len(doc.Collection(name))
	}
	data := map[string]any{
		"collections": counts,
		"active":      doc.IsActive,
	}
	if key, ok := doc.Data["onCallFilterName"].(string); ok && key != "" {
		data["onCallFilterName"] = key
	}
	if location, ok := doc.Data["workLocation"].(map[string]any); ok {
		data["workLocation"] = location
	}

	record := types.ActivityRecord{
		UserID:      doc.UserID,
		ProfileName: strings.TrimSpace(doc.Name),
		Verb:        strings.TrimSpace(verb),
		Version:     doc.Version,
		Data:        data,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&record)
		}
	}
	return record
}
