package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/scheduler"
)

// errQuit ends Console.Run without an error.
var errQuit = errors.New("quit")

const consoleHelp = `commands:
  play | pause          start or freeze the clock
  seek <t>              jump to t (seconds, MM:SS or HH:MM:SS)
  rate <x>              set playback speed
  exec on|off           toggle auto-execute
  scroll on|off         toggle auto-scroll
  run <code>            send code to the executor now
  blocks                list code blocks
  block <n>             send code block n
  cmds                  list scheduled commands
  status                show session state
  quit                  stop the session
`

// Console drives a running session from line-oriented input.
type Console struct {
	c   *Coordinator
	in  io.Reader
	out io.Writer
}

// NewConsole creates a console reading commands from in.
func NewConsole(c *Coordinator, in io.Reader, out io.Writer) *Console {
	return &Console{c: c, in: in, out: out}
}

// Run reads commands until quit, end of input or ctx is cancelled.
// A command error is printed and does not end the console.
func (k *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(k.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.c.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := k.Exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(k.out, "error: %v\n", err)
			}
		}
	}
}

// Exec runs a single console command.
func (k *Console) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	clock := k.c.Clock()

	switch name {
	case "help", "?":
		fmt.Fprint(k.out, consoleHelp)
	case "play":
		clock.Play()
	case "pause":
		clock.Pause()
	case "seek":
		t, err := ParsePosition(arg)
		if err != nil {
			return err
		}
		clock.Seek(t)
	case "rate":
		r, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		return clock.SetRate(r)
	case "exec", "scroll":
		on, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		f := scheduler.AutoExecute
		if name == "scroll" {
			f = scheduler.AutoScroll
		}
		if err := k.c.SetEnabled(ctx, f, on); err != nil {
			return err
		}
		fmt.Fprintf(k.out, "%s %s\n", f, onOff(on))
	case "run":
		if arg == "" {
			return errors.New("run: missing code")
		}
		return k.c.Execute(ctx, arg)
	case "blocks":
		for _, b := range k.c.Blocks() {
			fmt.Fprintf(k.out, "[%d] line %d %s: %s\n", b.Index, b.Line, langOrDash(b.Lang), firstLine(b.Code))
		}
	case "block":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("block: %w", err)
		}
		return k.c.ExecuteBlock(ctx, n)
	case "cmds":
		entries, err := k.c.Commands(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(k.out, scheduler.Describe(e))
		}
	case "status":
		st, err := k.c.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(k.out, "position %.1fs (%s, x%g)  channel %s, %d pending  commands %d/%d left  exec %s  scroll %s\n",
			st.Position, playState(st.Playing), st.Rate,
			st.Channel, st.Pending,
			st.Remaining, st.Commands,
			onOff(st.AutoExecute), onOff(st.AutoScroll),
		)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return nil
}

// ParsePosition accepts a time annotation (SS, MM:SS, HH:MM:SS) or decimal
// seconds.
func ParsePosition(s string) (float64, error) {
	if t, err := markup.ParseTime(s); err == nil {
		return float64(t), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("seek: invalid position %q", s)
	}
	return f, nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func playState(playing bool) string {
	if playing {
		return "playing"
	}
	return "paused"
}

func langOrDash(lang string) string {
	if lang == "" {
		return "-"
	}
	return lang
}

func firstLine(code string) string {
	line, _, more := strings.Cut(code, "\n")
	if more {
		return line + " ..."
	}
	return line
}
