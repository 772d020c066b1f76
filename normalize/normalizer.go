package normalize

// Config customizes the normalizer.
type Config struct {
	// Overrides replaces built-in defaults per field. Nested maps are merged
	// over the built-in default, values failing the field's validation are
	// ignored.
	Overrides map[string]any
}

// Normalizer applies a Schema to raw client documents.
type Normalizer struct {
	schema *Schema
}

var builtin = newSchema(builtinFields())

// New constructs a normalizer. Without overrides it uses the built-in table.
func New(cfg Config) (*Normalizer, error) {
	if len(cfg.Overrides) == 0 {
		return &Normalizer{schema: builtin}, nil
	}
	schema, err := withOverrides(builtin, cfg.Overrides)
	if err != nil {
		return nil, err
	}
	return &Normalizer{schema: schema}, nil
}

// Default returns a normalizer backed by the built-in table.
func Default() *Normalizer {
	return &Normalizer{schema: builtin}
}

// Normalize runs the built-in table over raw.
func Normalize(raw any, profileKey string) map[string]any {
	return Default().Normalize(raw, profileKey)
}

// Schema exposes the table in use.
func (n *Normalizer) Schema() *Schema {
	if n == nil || n.schema == nil {
		return builtin
	}
	return n.schema
}

// Defaults returns a fully shaped document built from defaults only.
func (n *Normalizer) Defaults(profileKey string) map[string]any {
	return n.Normalize(nil, profileKey)
}

// Normalize returns a document with every field present and valid. It never
// fails: malformed values degrade to the field default, unknown keys are
// dropped and onCallFilterName is always set to profileKey.
func (n *Normalizer) Normalize(raw any, profileKey string) map[string]any {
	schema := n.Schema()
	input := decodeRaw(raw)
	out := make(map[string]any, len(schema.fields))
	for _, field := range schema.fields {
		value, present := input[field.Name]
		out[field.Name] = normalizeField(field, value, present, profileKey)
	}
	return out
}

func normalizeField(field Field, value any, present bool, profileKey string) any {
	switch field.Kind {
	case KindCollection:
		items, ok := asSequence(value)
		if !present || !ok {
			return cloneValue(field.Default)
		}
		return objectsOnly(items)
	case KindTokenList:
		items, ok := asSequence(value)
		if !present || !ok {
			return cloneValue(field.Default)
		}
		tokens := make([]any, 0, len(items))
		for _, item := range items {
			if token, ok := item.(string); ok {
				tokens = append(tokens, token)
			}
		}
		return tokens
	case KindObjectList:
		items, ok := asSequence(value)
		if !present || !ok {
			return cloneValue(field.Default)
		}
		return objectsOnly(items)
	case KindMap:
		defaults, _ := cloneValue(field.Default).(map[string]any)
		if defaults == nil {
			defaults = map[string]any{}
		}
		obj, ok := asObject(value)
		if !present || !ok {
			return defaults
		}
		for key, item := range obj {
			defaults[key] = cloneValue(item)
		}
		return defaults
	case KindNullableMap:
		obj, ok := asObject(value)
		if !present || !ok {
			return nil
		}
		return cloneValue(obj)
	case KindScalar:
		if present && field.Accept != nil {
			if accepted, ok := field.Accept(value); ok {
				return accepted
			}
		}
		return cloneValue(field.Default)
	case KindDerived:
		return profileKey
	default:
		return cloneValue(field.Default)
	}
}

func objectsOnly(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if obj, ok := asObject(item); ok {
			out = append(out, cloneValue(obj))
		}
	}
	return out
}
