package activity

import (
	"sync"

	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-profilesync/pkg/types"
)

// Journal payload keys that identify the user.
const (
	fieldProfileKey   = "onCallFilterName"
	fieldWorkLocation = "workLocation"
)

var (
	journalMasker     *masker.Masker
	journalMaskerOnce sync.Once
)

// DefaultMasker returns the masker used for journal entries. The profile key
// and the free-form location strings keep only their last four characters.
func DefaultMasker() *masker.Masker {
	journalMaskerOnce.Do(func() {
		journalMasker = masker.Default
		if journalMasker == nil {
			return
		}
		for _, field := range []string{fieldProfileKey, "label", "address"} {
			journalMasker.RegisterMaskField(field, "filled4")
		}
	})
	return journalMasker
}

// SanitizeRecord prepares a journal payload for storage. Coordinates inside
// workLocation are dropped and identifying strings are masked. When masking
// fails the payload is replaced with the collection counts only.
func SanitizeRecord(mask *masker.Masker, record types.ActivityRecord) types.ActivityRecord {
	if len(record.Data) == 0 {
		return record
	}
	if mask == nil {
		mask = DefaultMasker()
	}

	data := make(map[string]any, len(record.Data))
	for key, value := range record.Data {
		data[key] = value
	}
	if location, ok := data[fieldWorkLocation].(map[string]any); ok {
		data[fieldWorkLocation] = coarseLocation(location)
	}
	if mask == nil {
		record.Data = countsOnly(data)
		return record
	}

	masked, err := mask.Mask(data)
	if out, ok := masked.(map[string]any); err == nil && ok {
		record.Data = out
		return record
	}
	record.Data = countsOnly(data)
	return record
}

func coarseLocation(location map[string]any) map[string]any {
	out := make(map[string]any, 2)
	for _, key := range []string{"label", "address"} {
		if value, ok := location[key].(string); ok && value != "" {
			out[key] = value
		}
	}
	return out
}

func countsOnly(data map[string]any) map[string]any {
	out := map[string]any{}
	if counts, ok := data["collections"]; ok {
		out["collections"] = counts
	}
	return out
}
