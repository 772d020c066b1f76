package profilesync

import "github.com/goliatone/go-profilesync/service"

// Re-export the service package entry point so consumers can do
// `profilesync.New(...)` without importing internal wiring helpers.
type (
	Service  = service.Service
	Config   = service.Config
	Commands = service.Commands
	Queries  = service.Queries
)

// New constructs the go-profilesync runtime using the provided configuration.
func New(cfg Config) *Service {
	return service.New(cfg)
}
