package service

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-profilesync/command"
	"github.com/goliatone/go-profilesync/normalize"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/query"
)

// Service is the entry point for go-profilesync. It wires repositories, the
// normalizer, the realtime publisher and command/query facades supplied by
// the host application.
type Service struct {
	cfg          Config
	commands     Commands
	queries      Queries
	activityRepo types.ActivityRepository
}

// Commands exposes the service command handlers.
type Commands struct {
	ProfileSync   *command.ProfileSyncCommand
	ProfileSave   *command.ProfileSaveCommand
	ProfileRepair *command.ProfileRepairCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	CurrentProfile *query.CurrentProfileQuery
	ActiveProfiles *query.ActiveProfilesQuery
	SyncActivity   *query.SyncActivityQuery
}

// Config captures all required dependencies so callers can provide their own
// instances (bun.DB backed repositories, publishers, hooks, etc.).
type Config struct {
	ProfileRepository  types.ProfileRepository
	ActivityRepository types.ActivityRepository
	ActivitySink       types.ActivitySink
	Normalizer         *normalize.Normalizer
	Publisher          types.ChangePublisher
	FeatureGate        featuregate.FeatureGate
	Hooks              types.Hooks
	Clock              types.Clock
	IDGenerator        types.IDGenerator
	Logger             types.Logger
	// MaxAttempts bounds the merge retries run on version conflicts.
	MaxAttempts int
}

// New constructs a Service from the supplied configuration.
func New(cfg Config) *Service {
	norm := normalizeConfig(cfg)
	actRepo := norm.ActivityRepository
	if actRepo == nil {
		if sinkRepo, ok := norm.ActivitySink.(types.ActivityRepository); ok {
			actRepo = sinkRepo
		}
	}

	s := &Service{
		cfg:          norm,
		activityRepo: actRepo,
	}
	s.commands = s.buildCommands()
	s.queries = s.buildQueries()
	return s
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = types.UUIDGenerator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.Default()
	}
	return cfg
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// Normalizer returns the normalizer shared by commands and queries.
func (s *Service) Normalizer() *normalize.Normalizer {
	if s == nil {
		return normalize.Default()
	}
	return s.cfg.Normalizer
}

// ActivitySink returns the configured journal sink.
func (s *Service) ActivitySink() types.ActivitySink {
	if s == nil {
		return nil
	}
	return s.cfg.ActivitySink
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s != nil &&
		s.cfg.ProfileRepository != nil &&
		s.activityRepo != nil
}

// HealthCheck surfaces missing configuration so transports can report it.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return types.ErrServiceNotReady
	}
	if s.cfg.ProfileRepository == nil {
		return types.ErrMissingProfileRepository
	}
	if s.activityRepo == nil {
		return types.ErrMissingActivityRepository
	}
	return nil
}

func (s *Service) buildCommands() Commands {
	cfg := command.ProfileCommandConfig{
		Repository:  s.cfg.ProfileRepository,
		Normalizer:  s.cfg.Normalizer,
		Publisher:   s.cfg.Publisher,
		Activity:    s.cfg.ActivitySink,
		Hooks:       s.cfg.Hooks,
		Clock:       s.cfg.Clock,
		Logger:      s.cfg.Logger,
		FeatureGate: s.cfg.FeatureGate,
		MaxAttempts: s.cfg.MaxAttempts,
	}
	return Commands{
		ProfileSync:   command.NewProfileSyncCommand(cfg),
		ProfileSave:   command.NewProfileSaveCommand(cfg),
		ProfileRepair: command.NewProfileRepairCommand(cfg),
	}
}

func (s *Service) buildQueries() Queries {
	return Queries{
		CurrentProfile: query.NewCurrentProfileQuery(s.cfg.ProfileRepository, s.cfg.Normalizer),
		ActiveProfiles: query.NewActiveProfilesQuery(s.cfg.ProfileRepository, s.cfg.Normalizer),
		SyncActivity:   query.NewSyncActivityQuery(s.activityRepo),
	}
}
