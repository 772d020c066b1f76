package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/queue"
	"github.com/goliatone/go-profilesync/realtime"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		user     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live profile changes and keep the queue flushing",
		Long: `Subscribe to live profile changes for the token's user and print each
event. While watching, queued writes are flushed in the background and a
successful flush re-establishes a dropped subscription.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := watchUser(user, rootOpts.Token)
			if err != nil {
				return err
			}
			endpoint, err := realtimeURL(rootOpts.Server)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, rootOpts, httpTransport(rootOpts))
			if err != nil {
				return err
			}
			defer s.Close()

			out := formatterFor(cmd, rootOpts)
			logger := newLogger(rootOpts)
			notifier, err := realtime.NewNotifier(realtime.NotifierConfig{
				Channel: &realtime.WSChannel{
					URL:   endpoint,
					Token: func(context.Context) (string, error) { return rootOpts.Token, nil },
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer notifier.Stop()

			events := make(chan types.ChangeEvent, realtime.DefaultBuffer)
			if err := notifier.Subscribe(userID, func(event types.ChangeEvent) {
				select {
				case events <- event:
				default:
					out.VerboseLog("dropped change event for %s", event.Record.Name)
				}
			}); err != nil {
				out.VerboseLog("realtime unavailable, waiting for connectivity: %v", err)
			}

			worker := queue.NewWorker(s.queue,
				queue.WithPollInterval(interval),
				queue.WithFlushObserver(func(result queue.FlushResult, err error) {
					if err != nil || result.LastError != nil {
						return
					}
					notifier.NetworkOnline()
					if len(result.Acknowledged) > 0 {
						out.VerboseLog("flushed %d queued writes", len(result.Acknowledged))
					}
				}),
			)
			worker.Start(ctx)
			defer worker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case event := <-events:
					if err := out.Emit(event, func(w io.Writer) {
						fmt.Fprintf(w, "%s\t%s\t%s\tversion=%d\n",
							event.OccurredAt.Format(time.RFC3339), event.Type, event.Record.Name, event.Record.Version)
					}); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id, defaults to the token subject")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "queue poll interval")
	return cmd
}

// watchUser resolves the subscribed user from the flag or the token subject.
// The token is not verified here, the server does that on connect.
func watchUser(flag, token string) (uuid.UUID, error) {
	if strings.TrimSpace(flag) != "" {
		return uuid.Parse(strings.TrimSpace(flag))
	}
	if token == "" {
		return uuid.Nil, fmt.Errorf("--user or --token required")
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil, fmt.Errorf("read token subject: %w", err)
	}
	return uuid.Parse(claims.Subject)
}

func realtimeURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/api/realtime"
	return u.String(), nil
}
