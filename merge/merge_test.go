package merge

import (
	"testing"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/stretchr/testify/require"
)

func ids(records []types.Record) []string {
	out := make([]string, len(records))
	for i, record := range records {
		out[i] = record.ID()
	}
	return out
}

func winners(records []types.Record) map[string]any {
	out := make(map[string]any, len(records))
	for _, record := range records {
		out[record.ID()] = record["updatedAt"]
	}
	return out
}

func TestMergeCollection_LaterUpdatedAtWins(t *testing.T) {
	server := []types.Record{
		{"id": "h1", "date": "2024-01-10", "updatedAt": "2024-01-01T10:00:00Z", "note": "old"},
	}
	incoming := []types.Record{
		{"id": "h1", "date": "2024-01-10", "updatedAt": "2024-01-02T09:00:00Z", "note": "new"},
	}

	merged := MergeCollection(server, incoming)
	require.Len(t, merged, 1)
	require.Equal(t, "h1", merged[0].ID())
	require.Equal(t, "2024-01-02T09:00:00Z", merged[0]["updatedAt"])
	require.Equal(t, "new", merged[0]["note"])
}

func TestMergeCollection_OlderOrMissingTimestampNeverDisplaces(t *testing.T) {
	server := []types.Record{
		{"id": "a", "updatedAt": "2024-03-01T00:00:00Z", "side": "server"},
		{"id": "b", "side": "server"},
		{"id": "c", "updatedAt": "2024-03-01T00:00:00Z", "side": "server"},
	}
	incoming := []types.Record{
		{"id": "a", "side": "incoming"},
		{"id": "b", "side": "incoming"},
		{"id": "c", "updatedAt": "2024-03-01T00:00:00Z", "side": "incoming"},
	}

	merged := MergeCollection(server, incoming)
	require.Len(t, merged, 3)
	for _, record := range merged {
		require.Equalf(t, "server", record["side"], "record %s", record.ID())
	}
}

func TestMergeCollection_TimestampReplacesUntimestamped(t *testing.T) {
	merged := MergeCollection(
		[]types.Record{{"id": "a", "side": "server"}},
		[]types.Record{{"id": "a", "updatedAt": 1704067200000.0, "side": "incoming"}},
	)
	require.Len(t, merged, 1)
	require.Equal(t, "incoming", merged[0]["side"])
}

func TestMergeCollection_DropsRecordsWithoutID(t *testing.T) {
	merged := MergeCollection(
		[]types.Record{{"date": "2024-01-01"}, {"id": "", "date": "2024-01-02"}, {"id": "s1"}},
		[]types.Record{{"id": nil}, {"note": "orphan"}, {"id": "i1"}},
	)
	require.ElementsMatch(t, []string{"s1", "i1"}, ids(merged))
}

func TestMergeCollection_IDsAreComparedVerbatim(t *testing.T) {
	merged := MergeCollection(
		[]types.Record{{"id": "h1"}, {"id": 7}},
		[]types.Record{{"id": " h1"}, {"id": "7"}, {"id": "   "}},
	)
	require.ElementsMatch(t, []string{"h1", " h1", "7", "   "}, ids(merged))
	for _, record := range merged {
		require.IsType(t, "", record["id"], "non-string ids are unmergeable")
	}
}

func TestMergeCollection_LastDuplicateWithinServerWins(t *testing.T) {
	merged := MergeCollection(
		[]types.Record{{"id": "a", "v": 1}, {"id": "a", "v": 2}},
		nil,
	)
	require.Len(t, merged, 1)
	require.Equal(t, 2, merged[0]["v"])
}

func TestMergeCollection_UnionOfIDs(t *testing.T) {
	merged := MergeCollection(
		[]types.Record{{"id": "a"}, {"id": "b"}},
		[]types.Record{{"id": "b"}, {"id": "c"}},
	)
	require.ElementsMatch(t, []string{"a", "b", "c"}, ids(merged))
}

func TestMergeCollection_SortsByDateDescending(t *testing.T) {
	merged := MergeCollection(
		[]types.Record{
			{"id": "old", "date": "2023-12-31", "updatedAt": "2024-06-01T00:00:00Z"},
			{"id": "undated"},
			{"id": "mid", "date": "2024-02-01"},
		},
		[]types.Record{
			{"id": "new", "date": "2024-05-01T08:00:00Z"},
			{"id": "b-same", "date": "2024-02-01"},
		},
	)
	require.Equal(t, []string{"new", "b-same", "mid", "old", "undated"}, ids(merged))
}

func TestMergeCollection_Idempotent(t *testing.T) {
	collection := []types.Record{
		{"id": "a", "date": "2024-01-03", "updatedAt": "2024-01-03T00:00:00Z"},
		{"id": "b", "date": "2024-01-02"},
		{"id": "c", "date": "2024-01-01", "updatedAt": "2024-01-01T00:00:00Z"},
	}
	require.Equal(t, collection, MergeCollection(collection, collection))
}

func TestMergeCollection_OrderIndependentWinners(t *testing.T) {
	a := []types.Record{
		{"id": "x", "date": "2024-01-01", "updatedAt": "2024-01-05T00:00:00Z"},
		{"id": "y", "date": "2024-01-02", "updatedAt": "2024-01-01T00:00:00Z"},
		{"id": "z", "date": "2024-01-03"},
	}
	b := []types.Record{
		{"id": "x", "date": "2024-01-01", "updatedAt": "2024-01-04T00:00:00Z"},
		{"id": "y", "date": "2024-01-02", "updatedAt": "2024-01-02T00:00:00Z"},
		{"id": "w", "date": "2024-01-04"},
	}

	ab := MergeCollection(a, b)
	ba := MergeCollection(b, a)
	require.Equal(t, winners(ab), winners(ba))
	require.Equal(t, ids(ab), ids(ba))
	require.Equal(t, "2024-01-05T00:00:00Z", winners(ab)["x"])
	require.Equal(t, "2024-01-02T00:00:00Z", winners(ab)["y"])
}

func TestMergeDocument_CopiesSettingsAndMergesCollections(t *testing.T) {
	stored := map[string]any{
		"view": "calendar",
		types.CollectionHolidays: []any{
			map[string]any{"id": "h1", "date": "2024-01-10", "updatedAt": "2024-01-01T10:00:00Z"},
		},
		types.CollectionPermits: []any{
			map[string]any{"id": "p1", "date": "2024-01-05"},
		},
	}
	incoming := map[string]any{
		"view":         "stats",
		"reminderDays": 3.0,
		types.CollectionHolidays: []any{
			map[string]any{"id": "h2", "date": "2024-02-10"},
		},
	}

	merged := MergeDocument(stored, incoming)
	require.Equal(t, "stats", merged["view"])
	require.Equal(t, 3.0, merged["reminderDays"])
	require.Len(t, merged[types.CollectionHolidays], 2)
	require.Equal(t, []any{map[string]any{"id": "p1", "date": "2024-01-05"}}, merged[types.CollectionPermits])
	for _, name := range types.Collections {
		require.Contains(t, merged, name)
	}
}
