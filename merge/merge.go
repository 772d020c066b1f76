package merge

import (
	"sort"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// MergeCollection applies last-writer-wins per record id.
func MergeCollection(server, incoming []types.Record) []types.Record {
	byID := make(map[string]types.Record, len(server)+len(incoming))
	for _, record := range server {
		id := record.ID()
		if id == "" {
			continue
		}
		byID[id] = record
	}
	for _, record := range incoming {
		id := record.ID()
		if id == "" {
			continue
		}
		existing, ok := byID[id]
		if !ok || newer(record, existing) {
			byID[id] = record
		}
	}

	out := make([]types.Record, 0, len(byID))
	for _, record := range byID {
		out = append(out, record)
	}
	sortByDate(out)
	return out
}

// MergeCollections merges every known collection of two document bodies and
// returns the merged collections keyed by name.
func MergeCollections(server, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(types.Collections))
	for _, name := range types.Collections {
		merged := MergeCollection(types.RecordsOf(server[name]), types.RecordsOf(incoming[name]))
		out[name] = toSequence(merged)
	}
	return out
}

// MergeDocument builds the body persisted by a sync: non-collection fields
// come from incoming verbatim, collections are merged with stored.
func MergeDocument(stored, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(incoming)+len(types.Collections))
	for key, value := range incoming {
		if types.IsCollection(key) {
			continue
		}
		out[key] = value
	}
	for name, merged := range MergeCollections(stored, incoming) {
		out[name] = merged
	}
	return out
}

func newer(candidate, existing types.Record) bool {
	candidateAt, ok := candidate.UpdatedAt()
	if !ok {
		return false
	}
	existingAt, ok := existing.UpdatedAt()
	if !ok {
		return true
	}
	return candidateAt.After(existingAt)
}

func sortByDate(records []types.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		left, leftOK := records[i].Date()
		right, rightOK := records[j].Date()
		switch {
		case leftOK && rightOK && !left.Equal(right):
			return left.After(right)
		case leftOK != rightOK:
			return leftOK
		default:
			return records[i].ID() < records[j].ID()
		}
	})
}

func toSequence(records []types.Record) []any {
	out := make([]any, len(records))
	for i, record := range records {
		out[i] = map[string]any(record)
	}
	return out
}
