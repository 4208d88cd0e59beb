package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/readmeplay/internal/channel"
	"github.com/roach88/readmeplay/internal/loop"
	"github.com/roach88/readmeplay/internal/wire"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Endpoint   string
	InsertFile string
	Search     string
	Timeout    time.Duration
	Linger     time.Duration

	// Transport allows overriding the socket transport (for testing).
	// If nil, a websocket transport is used.
	Transport channel.Transport
}

// SendResult reports a delivered message.
type SendResult struct {
	Endpoint string       `json:"endpoint"`
	Message  wire.Message `json:"message"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <code | ->",
		Short: "Send one message to the executor",
		Long: `Send a single execute message, or an insertCode message when
--insert-file is given, and wait until it has been handed to the executor.

Use - to read the code from stdin.

Example:
  readmeplay send 'npm test'
  readmeplay send - --insert-file main.go --search 'func main() {' < snippet.go`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "executor websocket URL (default from config)")
	cmd.Flags().StringVar(&opts.InsertFile, "insert-file", "", "send insertCode targeting this file")
	cmd.Flags().StringVar(&opts.Search, "search", "", "search string locating the insertion point")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "give up if the executor is not reached in time")
	cmd.Flags().DurationVar(&opts.Linger, "linger", 200*time.Millisecond, "keep the connection open after handing off the message")

	return cmd
}

func runSend(opts *SendOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	endpoint := cfg.Endpoint
	if opts.Endpoint != "" {
		endpoint = opts.Endpoint
	}

	code := arg
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		code = strings.TrimRight(string(data), "\n")
	}
	if code == "" {
		return NewExitError(ExitCommandError, "nothing to send")
	}
	if opts.Search != "" && opts.InsertFile == "" {
		return NewExitError(ExitCommandError, "--search requires --insert-file")
	}
	if opts.InsertFile != "" && opts.Search == "" {
		return NewExitError(ExitCommandError, "--insert-file requires --search")
	}

	msg := wire.Execute(code)
	if opts.InsertFile != "" {
		msg = wire.Insert(code, opts.InsertFile, opts.Search)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(parentCtx, opts.Timeout)
	defer cancel()

	if err := deliver(ctx, endpoint, opts.Transport, msg, cfg.Keepalive, opts.Linger); err != nil {
		if jsonErr := out.Error(ErrCodeExecutor, "executor not reached", map[string]string{"endpoint": endpoint}); jsonErr != nil {
			slog.Error("failed to write error", "error", jsonErr)
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to deliver to %s", endpoint), err)
	}

	res := SendResult{Endpoint: endpoint, Message: msg}
	return out.Result(res, func(w io.Writer) {
		fmt.Fprintf(w, "sent %s to %s\n", msg.Type, endpoint)
	})
}

// sendRetryInterval spaces reconnect attempts while the executor is down.
const sendRetryInterval = 500 * time.Millisecond

// deliver hands msg to a fresh channel and waits until the channel is open
// with nothing pending.
func deliver(ctx context.Context, endpoint string, transport channel.Transport, msg wire.Message, keepalive, linger time.Duration) error {
	l := loop.New(slog.Default())
	if transport == nil {
		transport = channel.NewWebsocketTransport(l, channel.WithContext(ctx))
	}
	ch := channel.New(channel.Config{
		Endpoint:          endpoint,
		Transport:         transport,
		Ticker:            l,
		KeepaliveInterval: keepalive,
	})

	var lastErr error
	ch.Subscribe(channel.EventError, func(e channel.Event) { lastErr = e.Err })

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go func() { _ = l.Run(loopCtx) }()
	defer func() {
		l.Post(ch.Close)
		l.Stop()
		<-l.Done()
	}()

	l.Post(func() { ch.Send(msg) })

	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()
	lastDial := time.Now()
	for {
		retry := time.Since(lastDial) >= sendRetryInterval
		var (
			done bool
			err  error
		)
		if callErr := l.Call(ctx, func() {
			done = ch.State() == channel.Open && ch.Pending() == 0
			err = lastErr
			if !done && retry && ch.State() == channel.Disconnected {
				ch.EnsureConnected()
			}
		}); callErr != nil {
			return callErr
		}
		if done {
			break
		}
		if retry {
			lastDial = time.Now()
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return errors.Join(ctx.Err(), err)
			}
			return ctx.Err()
		case <-poll.C:
		}
	}

	if linger > 0 {
		select {
		case <-time.After(linger):
		case <-ctx.Done():
		}
	}
	return nil
}
