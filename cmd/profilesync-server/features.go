package main

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
)

// flagGate resolves features from the static config map.
type flagGate map[string]bool

var _ featuregate.FeatureGate = flagGate(nil)

func (g flagGate) Enabled(_ context.Context, key string, _ ...featuregate.ResolveOption) (bool, error) {
	enabled, ok := g[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}
