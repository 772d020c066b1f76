package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Token   string
	DB      string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the profile sync client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "profilesync-client",
		Short: "Offline profile sync client",
		Long: `Client for the profile sync server.

Writes are buffered in a local queue and replayed in order once the
server is reachable. Live changes from other sessions can be watched
over the realtime channel.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("PROFILESYNC_SERVER", "http://localhost:8979"), "sync server base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("PROFILESYNC_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", envOr("PROFILESYNC_QUEUE", defaultQueuePath()), "local queue database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewSizeCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStuckCommand(opts))
	cmd.AddCommand(NewRetryCommand(opts))
	cmd.AddCommand(NewDiscardCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func defaultQueuePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "profilesync-queue.db"
	}
	return filepath.Join(dir, "profilesync", "queue.db")
}
