package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	profilesync "github.com/goliatone/go-profilesync"
	"github.com/goliatone/go-profilesync/activity"
	"github.com/goliatone/go-profilesync/cmd/profilesync-server/config"
	"github.com/goliatone/go-profilesync/httpapi"
	"github.com/goliatone/go-profilesync/identity"
	"github.com/goliatone/go-profilesync/normalize"
	"github.com/goliatone/go-profilesync/profile"
	"github.com/goliatone/go-profilesync/realtime"
	"github.com/goliatone/go-profilesync/service"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *gconfig.Container[*config.BaseConfig]
	logger   *glog.BaseLogger
	bunDB    *bun.DB
	hub      *realtime.Hub
	sync     *service.Service
	verifier *identity.Verifier
	srv      *fiber.App
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("profilesync"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8979",
			PingInterval: realtime.PingInterval,
			PongWait:     realtime.PongWait,
		},
		Auth: config.AuthConfig{
			SigningKey: "changeme-secret-key-please-use-env-var",
			Issuer:     "go-profilesync",
			Leeway:     30 * time.Second,
		},
		Persistence: config.PersistenceConfig{
			Driver:         "sqlite",
			Server:         "file:profilesync.db?_journal_mode=WAL&cache=shared&_fk=1",
			PingTimeout:    5 * time.Second,
			OtelIdentifier: "go-profilesync",
		},
		Sync: config.SyncConfig{
			MaxAttempts: 3,
		},
	}).WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
		hub:    realtime.NewHub(realtime.WithLogger(&loggerAdapter{lgr.GetLogger("realtime")})),
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithSyncService(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	addr := app.Config().GetServer().Addr()
	go func() {
		app.GetLogger("http").Info("listening", "addr", addr)
		if err := app.srv.Listen(addr); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed", "error", err)
	}
	if err := app.bunDB.Close(); err != nil {
		app.GetLogger("persistence").Error("close failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.Config().GetPersistence()
	dsn := cfg.GetServer()
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return err
	}

	persistence.RegisterModel((*profile.Record)(nil))
	persistence.RegisterModel((*activity.LogEntry)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return err
	}
	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(profilesync.MigrationsFS, "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("."),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		app.GetLogger("persistence").Warn("dialect validation failed", "error", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return err
	}
	if report := client.Report(); report != nil && !report.IsZero() {
		app.GetLogger("persistence").Info("migrations applied", "report", report.String())
	}

	app.bunDB = client.DB()
	return nil
}

func WithSyncService(ctx context.Context, app *App) error {
	syncCfg := app.Config().Sync

	profiles, err := profile.NewRepository(profile.RepositoryConfig{DB: app.bunDB})
	if err != nil {
		return err
	}
	journal, err := activity.NewRepository(activity.RepositoryConfig{DB: app.bunDB})
	if err != nil {
		return err
	}
	normalizer, err := normalize.New(normalize.Config{Overrides: syncCfg.Defaults})
	if err != nil {
		return err
	}

	svc := service.New(service.Config{
		ProfileRepository: profiles,
		ActivitySink:      journal,
		Normalizer:        normalizer,
		Publisher:         app.hub,
		FeatureGate:       flagGate(syncCfg.Features),
		MaxAttempts:       syncCfg.MaxAttempts,
		Logger:            &loggerAdapter{app.GetLogger("sync")},
	})
	if err := svc.HealthCheck(ctx); err != nil {
		return err
	}
	app.sync = svc

	authCfg := app.Config().Auth
	verifier, err := identity.NewVerifier(identity.Config{
		Secret:   []byte(authCfg.SigningKey),
		Issuer:   authCfg.Issuer,
		Audience: authCfg.Audience,
		Leeway:   authCfg.Leeway,
	})
	if err != nil {
		return err
	}
	app.verifier = verifier
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	serverCfg := app.Config().GetServer()
	srv, err := httpapi.NewApp(httpapi.Config{
		Service:      app.sync,
		Verifier:     app.verifier,
		Changes:      app.hub,
		Logger:       &loggerAdapter{app.GetLogger("http")},
		PingInterval: serverCfg.PingInterval,
		PongWait:     serverCfg.PongWait,
	})
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	app.srv = srv
	return nil
}

// loggerAdapter adapts glog.Logger to types.Logger
type loggerAdapter struct {
	l glog.Logger
}

func (a *loggerAdapter) Debug(msg string, args ...any) {
	a.l.Debug(msg, args...)
}

func (a *loggerAdapter) Info(msg string, args ...any) {
	a.l.Info(msg, args...)
}

func (a *loggerAdapter) Warn(msg string, args ...any) {
	a.l.Warn(msg, args...)
}

func (a *loggerAdapter) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append([]any{"error", err}, args...)
	}
	a.l.Error(msg, args...)
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
