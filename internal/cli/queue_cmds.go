package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-profilesync/queue"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		kind     string
		profile  string
		multi    bool
		fullSync bool
		flush    bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue <payload.json|->",
		Short: "Queue a profile write",
		Long: `Queue a profile write for delivery.

The payload is a JSON object read from a file, or from stdin when the
argument is "-". With --profiles the payload maps profile names to their
documents and the sync carries all of them, which is how a full sync keeps
more than one profile. Use --flush to attempt delivery right away.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rootOpts, httpTransport(rootOpts))
			if err != nil {
				return err
			}
			defer s.Close()

			m := queue.Mutation{
				Kind:        queue.Kind(kind),
				ProfileName: profile,
				Payload:     payload,
				FullSync:    fullSync,
			}
			if multi {
				if m.Kind != queue.KindSync {
					return fmt.Errorf("--profiles requires --kind %s", queue.KindSync)
				}
				profiles, err := splitProfiles(payload)
				if err != nil {
					return err
				}
				m.ProfileName, m.Payload, m.Profiles = "", nil, profiles
			}
			m, err = s.queue.Enqueue(cmd.Context(), m)
			if err != nil {
				return err
			}
			out := formatterFor(cmd, rootOpts)
			if err := out.Emit(m, func(w io.Writer) {
				fmt.Fprintf(w, "queued %s (%s %s)\n", m.ID, m.Kind, strings.Join(m.Names(), ","))
			}); err != nil {
				return err
			}
			if !flush {
				return nil
			}
			return runFlush(cmd, rootOpts, s.queue)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(queue.KindSync), "mutation kind (sync|save)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile name, defaults to the default slot")
	cmd.Flags().BoolVar(&multi, "profiles", false, "payload maps profile names to documents")
	cmd.Flags().BoolVar(&fullSync, "full-sync", false, "deactivate profiles missing from this sync")
	cmd.Flags().BoolVar(&flush, "flush", false, "flush the queue after enqueueing")
	return cmd
}

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "flush",
		Short:        "Replay queued writes against the server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, httpTransport(rootOpts))
			if err != nil {
				return err
			}
			defer s.Close()
			return runFlush(cmd, rootOpts, s.queue)
		},
	}
}

type flushOutput struct {
	Acknowledged int              `json:"acknowledged"`
	Stuck        []queue.Mutation `json:"stuck,omitempty"`
	Stopped      bool             `json:"stopped"`
	RetryAt      string           `json:"retryAt,omitempty"`
	LastError    string           `json:"lastError,omitempty"`
	Remaining    int              `json:"remaining"`
}

func runFlush(cmd *cobra.Command, rootOpts *RootOptions, q *queue.Queue) error {
	result, err := q.Flush(cmd.Context())
	if err != nil {
		return err
	}
	out := flushOutput{
		Acknowledged: len(result.Acknowledged),
		Stuck:        result.Stuck,
		Stopped:      result.Stopped,
		Remaining:    result.Remaining,
	}
	if !result.RetryAt.IsZero() {
		out.RetryAt = result.RetryAt.Format(time.RFC3339)
	}
	if result.LastError != nil {
		out.LastError = result.LastError.Error()
	}
	return formatterFor(cmd, rootOpts).Emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "acknowledged %d, remaining %d\n", out.Acknowledged, out.Remaining)
		if len(out.Stuck) > 0 {
			fmt.Fprintf(w, "stuck:\n")
			writeMutations(w, out.Stuck)
		}
		if out.Stopped {
			fmt.Fprintf(w, "stopped early, retry at %s: %s\n", out.RetryAt, out.LastError)
		}
	})
}

// NewSizeCommand creates the size command.
func NewSizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "size",
		Short:        "Print the number of queued writes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			size, err := s.queue.Size(cmd.Context())
			if err != nil {
				return err
			}
			pending, err := s.queue.Pending(cmd.Context())
			if err != nil {
				return err
			}
			return formatterFor(cmd, rootOpts).Emit(map[string]any{"size": size, "mutations": pending}, func(w io.Writer) {
				fmt.Fprintf(w, "%d queued\n", size)
				if rootOpts.Verbose {
					writeMutations(w, pending)
				}
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "clear",
		Short:        "Drop every queued write",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			removed, err := s.queue.Clear(cmd.Context())
			if err != nil {
				return err
			}
			return formatterFor(cmd, rootOpts).Emit(map[string]int{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "removed %d\n", removed)
			})
		},
	}
}

// NewStuckCommand creates the stuck command.
func NewStuckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "stuck",
		Short:        "List writes that need attention",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			stuck, err := s.queue.Stuck(cmd.Context())
			if err != nil {
				return err
			}
			return formatterFor(cmd, rootOpts).Emit(stuck, func(w io.Writer) {
				writeMutations(w, stuck)
			})
		},
	}
}

// NewRetryCommand creates the retry command.
func NewRetryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "retry <mutation-id>",
		Short:        "Return a stuck write to the queue",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMutationID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			m, err := s.queue.Retry(cmd.Context(), id)
			if err != nil {
				return err
			}
			return formatterFor(cmd, rootOpts).Emit(m, func(w io.Writer) {
				fmt.Fprintf(w, "requeued %s\n", m.ID)
			})
		},
	}
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "discard <mutation-id>",
		Short:        "Drop a single queued write",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMutationID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.queue.Discard(cmd.Context(), id); err != nil {
				return err
			}
			return formatterFor(cmd, rootOpts).Emit(map[string]string{"discarded": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "discarded %s\n", id)
			})
		},
	}
}

func formatterFor(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func parseMutationID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid mutation id %q: %w", raw, err)
	}
	return id, nil
}

func splitProfiles(payload map[string]any) (map[string]map[string]any, error) {
	profiles := make(map[string]map[string]any, len(payload))
	for name, doc := range payload {
		body, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("profile %q must be a JSON object", name)
		}
		profiles[name] = body
	}
	return profiles, nil
}

func readPayload(stdin io.Reader, source string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	return payload, nil
}
