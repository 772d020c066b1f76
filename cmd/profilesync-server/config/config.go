package config

import (
	"fmt"
	"net"
	"time"

	"github.com/goliatone/go-persistence-bun"
)

// BaseConfig holds all configuration for the sync server
type BaseConfig struct {
	Server      ServerConfig      `json:"server"`
	Auth        AuthConfig        `json:"auth"`
	Persistence PersistenceConfig `json:"persistence"`
	Sync        SyncConfig        `json:"sync"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string        `json:"port" env:"SERVER_PORT" default:"8979"`
	Host         string        `json:"host" env:"SERVER_HOST" default:"localhost"`
	PingInterval time.Duration `json:"ping_interval" default:"30s"`
	PongWait     time.Duration `json:"pong_wait" default:"60s"`
}

// Addr joins host and port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	SigningKey string        `json:"signing_key" env:"AUTH_SIGNING_KEY" default:"changeme-secret-key"`
	Issuer     string        `json:"issuer" default:"go-profilesync"`
	Audience   string        `json:"audience"`
	Leeway     time.Duration `json:"leeway" default:"30s"`
}

// PersistenceConfig implements persistence.Config interface
type PersistenceConfig struct {
	Debug          bool          `json:"debug" default:"false"`
	Driver         string        `json:"driver" default:"sqlite"`
	Server         string        `json:"server" env:"DB_SERVER" default:"file:profilesync.db?_journal_mode=WAL&cache=shared&_fk=1"`
	PingTimeout    time.Duration `json:"ping_timeout" default:"5s"`
	OtelIdentifier string        `json:"otel_identifier" default:"go-profilesync"`
}

func (c PersistenceConfig) GetDebug() bool                { return c.Debug }
func (c PersistenceConfig) GetDriver() string             { return c.Driver }
func (c PersistenceConfig) GetServer() string             { return c.Server }
func (c PersistenceConfig) GetPingTimeout() time.Duration { return c.PingTimeout }
func (c PersistenceConfig) GetOtelIdentifier() string     { return c.OtelIdentifier }

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// Defaults overrides the built-in profile defaults per field.
	Defaults map[string]any `json:"defaults"`
	// Features toggles gated operations by key. Unlisted keys are enabled.
	Features    map[string]bool `json:"features"`
	MaxAttempts int             `json:"max_attempts" default:"3"`
}

// GetPersistence returns persistence config
func (c *BaseConfig) GetPersistence() persistence.Config {
	return c.Persistence
}

// GetServer returns server config
func (c *BaseConfig) GetServer() ServerConfig {
	return c.Server
}

// Validate implements config.Validable interface
func (c *BaseConfig) Validate() error {
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("config: auth.signing_key is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port is required")
	}
	return nil
}
