package main

import (
	"context"
	"testing"

	"github.com/goliatone/go-profilesync/cmd/profilesync-server/config"
	"github.com/stretchr/testify/require"
)

func TestFlagGate_UnlistedKeysAreEnabled(t *testing.T) {
	gate := flagGate{"profiles.repair": false}

	enabled, err := gate.Enabled(context.Background(), "profiles.repair")
	require.NoError(t, err)
	require.False(t, enabled)

	enabled, err = gate.Enabled(context.Background(), "profiles.export")
	require.NoError(t, err)
	require.True(t, enabled)

	enabled, err = flagGate(nil).Enabled(context.Background(), "profiles.repair")
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestBaseConfig_Validate(t *testing.T) {
	cfg := &config.BaseConfig{
		Server: config.ServerConfig{Host: "localhost", Port: "8979"},
		Auth:   config.AuthConfig{SigningKey: "secret"},
	}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "localhost:8979", cfg.GetServer().Addr())

	cfg.Auth.SigningKey = ""
	require.Error(t, cfg.Validate())
}
