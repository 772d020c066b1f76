package command

import (
	"time"

	"github.com/goliatone/go-profilesync/activity"
	"github.com/goliatone/go-profilesync/pkg/types"
)

func buildActivity(verb string, doc types.ProfileDocument, occurredAt time.Time, extra map[string]any) types.ActivityRecord {
	record := activity.BuildRecord(verb, doc, activity.WithData(extra))
	record.OccurredAt = occurredAt
	return record
}
