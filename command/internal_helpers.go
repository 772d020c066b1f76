package command

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-profilesync/normalize"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

const defaultMaxAttempts = 3

func safeClock(clock types.Clock) types.Clock {
	if clock != nil {
		return clock
	}
	return types.SystemClock{}
}

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}

func safeNormalizer(n *normalize.Normalizer) *normalize.Normalizer {
	if n != nil {
		return n
	}
	return normalize.Default()
}

func safeAttempts(attempts int) int {
	if attempts > 0 {
		return attempts
	}
	return defaultMaxAttempts
}

func now(clock types.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now()
}

func profileKey(key string, userID uuid.UUID) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return userID.String()
}

func logActivity(ctx context.Context, sink types.ActivitySink, logger types.Logger, record types.ActivityRecord) {
	if sink == nil {
		return
	}
	if err := sink.Log(ctx, record); err != nil {
		logger.Warn("sync journal write failed", "verb", record.Verb, "profile", record.ProfileName, "error", err)
	}
}

func emitActivityHook(ctx context.Context, hooks types.Hooks, record types.ActivityRecord) {
	if hooks.AfterActivity == nil {
		return
	}
	hooks.AfterActivity(ctx, record)
}

func emitProfileHook(ctx context.Context, hooks types.Hooks, event types.ProfileEvent) {
	if hooks.AfterProfileChange == nil {
		return
	}
	hooks.AfterProfileChange(ctx, event)
}

func publishChange(ctx context.Context, publisher types.ChangePublisher, event types.ChangeEvent) {
	if publisher == nil {
		return
	}
	publisher.Publish(ctx, event)
}

// decodePayload returns the top-level object of a raw client document.
func decodePayload(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case types.Record:
		return map[string]any(v), v != nil
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	default:
		return nil, false
	}
}

func decodeObject(data []byte) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}
