package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/readmeplay/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Session string
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions and deliveries",
		Long: `Read the delivery journal written by play --journal.

Without --session, lists the most recent sessions. With --session, lists
every message that session handed to the executor, in order.

Example:
  readmeplay history --journal ./plays.db
  readmeplay history --journal ./plays.db --session 01890a5d-ac96-774b-b9aa-6d5b0b6e7a1c`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database (default from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "list deliveries for this session")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of sessions to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	path := cfg.Journal
	if opts.Journal != "" {
		path = opts.Journal
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal: pass --journal or set journal in the config")
	}
	// Opening creates the file; a missing journal is an error here.
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Session != "" {
		return showDeliveries(ctx, st, opts.Session, out)
	}

	sessions, err := st.ListSessions(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return out.Result(sessions, func(w io.Writer) {
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No sessions recorded.")
			return
		}
		for _, s := range sessions {
			ref := s.Ref
			if ref == "" {
				ref = "-"
			}
			fmt.Fprintf(w, "%s  %s  %s @ %s  %d commands\n",
				s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.ID, s.Document, ref, s.Commands)
		}
	})
}

// SessionHistory is a session with its deliveries.
type SessionHistory struct {
	Session    store.Session    `json:"session"`
	Deliveries []store.Delivery `json:"deliveries"`
}

func showDeliveries(ctx context.Context, st *store.Store, id string, out *OutputFormatter) error {
	sess, err := st.ReadSession(ctx, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("session %s", id), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	deliveries, err := st.ListDeliveries(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list deliveries", err)
	}
	if deliveries == nil {
		deliveries = []store.Delivery{}
	}

	h := SessionHistory{Session: sess, Deliveries: deliveries}
	return out.Result(h, func(w io.Writer) {
		fmt.Fprintf(w, "%s @ %s -> %s\n", sess.Document, sess.Ref, sess.Endpoint)
		for _, d := range deliveries {
			trigger := "     -"
			if d.TriggerTime != nil {
				trigger = fmt.Sprintf("%5ds", *d.TriggerTime)
			}
			fmt.Fprintf(w, "%4d  %s  at %7.1fs  %-9s %-10s %s\n",
				d.Seq, trigger, d.Position, d.Source, d.Kind, summary(d))
		}
	})
}

func summary(d store.Delivery) string {
	switch {
	case d.Body.Content != "":
		return firstLine(d.Body.Content)
	case d.Body.File != "":
		return d.Body.File
	default:
		return ""
	}
}

func firstLine(s string) string {
	if line, _, more := strings.Cut(s, "\n"); more {
		return line + " ..."
	}
	return s
}
