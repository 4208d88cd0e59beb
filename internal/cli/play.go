package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/readmeplay/internal/config"
	"github.com/roach88/readmeplay/internal/playback"
	"github.com/roach88/readmeplay/internal/session"
	"github.com/roach88/readmeplay/internal/source"
	"github.com/roach88/readmeplay/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	File     bool
	Wait     bool
	Refs     []string
	Endpoint string
	Journal  string
	NoExec   bool
	NoScroll bool
	Height   int
	Rate     float64
	Start    string
	Paused   bool

	// IDs allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs session.IDGenerator
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <owner/repo | path>",
		Short: "Play a document against the executor",
		Long: `Play a time-annotated README.

The document is fetched (main, then master, unless --ref is given), parsed
and shown in a scrolling pager. Commands fire as the playback clock reaches
them and are sent to the executor at --endpoint; messages sent while the
executor is down are delivered once it accepts a connection.

Control playback by typing commands on stdin (help lists them).

Example:
  readmeplay play octo/demo
  readmeplay play ./README.md --journal ./plays.db --start 1:30`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.File, "file", false, "treat the argument as a local path")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait for a local document to appear (ready_timeout)")
	cmd.Flags().StringSliceVar(&opts.Refs, "ref", nil, "refs to try in order (default from config)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "executor websocket URL (default from config)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record deliveries in this SQLite journal")
	cmd.Flags().BoolVar(&opts.NoExec, "no-exec", false, "start with auto-execute off")
	cmd.Flags().BoolVar(&opts.NoScroll, "no-scroll", false, "start with auto-scroll off")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "pager height in lines (default from config)")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 1, "playback rate")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start position (seconds, MM:SS or HH:MM:SS)")
	cmd.Flags().BoolVar(&opts.Paused, "paused", false, "do not start the clock")

	return cmd
}

// applyFlags overrides config values with flags that were set.
func (o *PlayOptions) applyFlags(cfg config.Config) (config.Config, error) {
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if len(o.Refs) > 0 {
		cfg.Refs = o.Refs
	}
	if o.Journal != "" {
		cfg.Journal = o.Journal
	}
	if o.NoExec {
		cfg.AutoExecute = false
	}
	if o.NoScroll {
		cfg.AutoScroll = false
	}
	if o.Height > 0 {
		cfg.ViewportHeight = o.Height
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return cfg, nil
}

func runPlay(opts *PlayOptions, arg string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cfg, err = opts.applyFlags(cfg); err != nil {
		return err
	}

	closeLog, err := setupLogging(opts.RootOptions, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	doc, err := resolveDocument(arg, opts.File, cfg)
	if err != nil {
		return err
	}
	if !opts.Wait {
		doc.Probe = nil
	}

	var start float64
	if opts.Start != "" {
		if start, err = session.ParsePosition(opts.Start); err != nil {
			return WrapExitError(ExitCommandError, "invalid --start", err)
		}
	}

	clock := playback.NewClock()
	if err := clock.SetRate(opts.Rate); err != nil {
		return WrapExitError(ExitCommandError, "invalid --rate", err)
	}

	deps := session.Deps{
		Fetcher: doc.Fetcher,
		Probe:   doc.Probe,
		Clock:   clock,
		Output:  cmd.OutOrStdout(),
		IDs:     opts.IDs,
		Logger:  slog.Default(),
	}

	if cfg.Journal != "" {
		slog.Info("opening journal", "path", cfg.Journal)
		st, err := store.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		deps.Journal = st
	}

	coord := session.New(session.Config{
		Owner:          doc.Owner,
		Repo:           doc.Repo,
		Refs:           cfg.Refs,
		Name:           doc.Name,
		Endpoint:       cfg.Endpoint,
		Keepalive:      cfg.Keepalive,
		TickInterval:   cfg.TickInterval,
		ReadyTimeout:   cfg.ReadyTimeout,
		ReadyPoll:      cfg.ReadyPoll,
		AutoExecute:    cfg.AutoExecute,
		AutoScroll:     cfg.AutoScroll,
		ViewportHeight: cfg.ViewportHeight,
	}, deps)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := coord.Start(ctx); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return WrapExitError(ExitCommandError, "document not found", err)
		}
		return WrapExitError(ExitFailure, "failed to start session", err)
	}
	defer coord.Stop()

	if start > 0 {
		clock.Seek(start)
	}
	if !opts.Paused {
		clock.Play()
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Playing %s (session %s). Type help for commands.\n", doc.Name, coord.Session().ID)

	console := session.NewConsole(coord, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := console.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "console error", err)
	}

	slog.Info("session finished")
	return nil
}
