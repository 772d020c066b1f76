package normalize

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
)

func oneOf(values ...string) Accept {
	allowed := make(map[string]struct{}, len(values))
	for _, value := range values {
		allowed[value] = struct{}{}
	}
	return func(value any) (any, bool) {
		str, ok := value.(string)
		if !ok {
			return nil, false
		}
		if _, ok := allowed[str]; !ok {
			return nil, false
		}
		return str, true
	}
}

func finiteNumber(value any) (any, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		return nil, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func nonEmptyString(value any) (any, bool) {
	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return nil, false
	}
	return str, true
}

func boolean(value any) (any, bool) {
	b, ok := value.(bool)
	return b, ok
}

// asObject reports whether value is a non-array object.
func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return nil, false
		}
		return v, true
	case types.Record:
		if v == nil {
			return nil, false
		}
		return map[string]any(v), true
	default:
		return nil, false
	}
}

// asSequence reports whether value is a sequence and returns its items.
func asSequence(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	case []types.Record:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = map[string]any(item)
		}
		return out, true
	default:
		return nil, false
	}
}

// decodeRaw turns the accepted raw shapes into a top-level object.
func decodeRaw(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []byte:
		return decodeJSON(v)
	case json.RawMessage:
		return decodeJSON(v)
	case string:
		return decodeJSON([]byte(v))
	case types.ProfileDocument:
		return v.Data
	case *types.ProfileDocument:
		if v == nil {
			return nil
		}
		return v.Data
	}
	if obj, ok := asObject(raw); ok {
		return obj
	}
	return nil
}

func decodeJSON(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	case types.Record:
		return cloneValue(map[string]any(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
