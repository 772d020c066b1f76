package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/queue"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// session is the local queue opened for one command.
type session struct {
	db    *bun.DB
	queue *queue.Queue
}

func (s *session) Close() error {
	return s.db.Close()
}

// openSession opens the queue database under opts.DB. transport may be nil
// for commands that never flush.
func openSession(ctx context.Context, opts *RootOptions, transport queue.Transport) (*session, error) {
	if dir := filepath.Dir(opts.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, opts.DB)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())

	store, err := queue.NewBunStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare queue: %w", err)
	}
	if transport == nil {
		transport = queue.TransportFunc(func(context.Context, queue.Mutation) error {
			return fmt.Errorf("%w: no transport configured", queue.ErrPermanent)
		})
	}
	q, err := queue.New(queue.Config{
		Store:     store,
		Transport: transport,
		Logger:    newLogger(opts),
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &session{db: db, queue: q}, nil
}

func httpTransport(opts *RootOptions) queue.Transport {
	return queue.NewHTTPTransport(opts.Server, queue.StaticToken(opts.Token))
}

func newLogger(opts *RootOptions) types.Logger {
	if !opts.Verbose {
		return types.NopLogger{}
	}
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("profilesync"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	return &loggerAdapter{lgr.GetLogger("client")}
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
