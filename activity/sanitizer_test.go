package activity

import (
	"testing"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRecord_DropsCoordinates(t *testing.T) {
	record := BuildRecord(types.ActivityVerbSaved, types.ProfileDocument{
		UserID: uuid.New(),
		Name:   types.DefaultProfileName,
		Data: map[string]any{
			"workLocation": map[string]any{"lat": 40.4, "lng": -3.7, "label": "Hospital Central"},
		},
	})

	sanitized := SanitizeRecord(nil, record)
	location, ok := sanitized.Data["workLocation"].(map[string]any)
	require.True(t, ok)
	require.NotContains(t, location, "lat")
	require.NotContains(t, location, "lng")
	require.Contains(t, location, "label")

	original := record.Data["workLocation"].(map[string]any)
	require.Contains(t, original, "lat")
}

func TestSanitizeRecord_EmptyPayloadUntouched(t *testing.T) {
	record := types.ActivityRecord{UserID: uuid.New(), Verb: types.ActivityVerbRepaired}
	require.Equal(t, record, SanitizeRecord(nil, record))
}
