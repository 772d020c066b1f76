package normalize

import (
	"fmt"

	opts "github.com/goliatone/go-options"
)

const (
	scopeBuiltin    = "builtin"
	scopeDeployment = "deployment"
)

// withOverrides layers deployment overrides over the built-in defaults and
// returns a schema whose defaults come from the merged snapshot.
func withOverrides(base *Schema, overrides map[string]any) (*Schema, error) {
	builtinScope := opts.NewScope(scopeBuiltin, opts.ScopePrioritySystem,
		opts.WithScopeLabel("Built-in Defaults"))
	deploymentScope := opts.NewScope(scopeDeployment, opts.ScopePriorityTenant,
		opts.WithScopeLabel("Deployment Overrides"))

	layers := []opts.Layer[map[string]any]{
		opts.NewLayer(builtinScope, base.Defaults(),
			opts.WithSnapshotID[map[string]any](builtinScope.Name)),
		opts.NewLayer(deploymentScope, cloneValue(overrides).(map[string]any),
			opts.WithSnapshotID[map[string]any](deploymentScope.Name)),
	}
	stack, err := opts.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("normalize: build defaults stack: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return nil, fmt.Errorf("normalize: merge defaults: %w", err)
	}

	fields := base.Fields()
	for i, field := range fields {
		if field.Kind == KindDerived || field.Kind == KindCollection || field.Kind == KindNullableMap {
			continue
		}
		value, ok := merged.Value[field.Name]
		if !ok {
			continue
		}
		if accepted, ok := acceptDefault(field, value); ok {
			fields[i].Default = accepted
		}
	}
	return newSchema(fields), nil
}

// acceptDefault validates an override with the same rules applied to client
// input so an override can never produce an out-of-domain default.
func acceptDefault(field Field, value any) (any, bool) {
	switch field.Kind {
	case KindTokenList:
		items, ok := asSequence(value)
		if !ok {
			return nil, false
		}
		return normalizeField(field, items, true, ""), true
	case KindObjectList:
		items, ok := asSequence(value)
		if !ok {
			return nil, false
		}
		return objectsOnly(items), true
	case KindMap:
		obj, ok := asObject(value)
		if !ok {
			return nil, false
		}
		return cloneValue(obj), true
	case KindScalar:
		if field.Accept == nil {
			return nil, false
		}
		return field.Accept(value)
	default:
		return nil, false
	}
}
