package session

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/readmeplay/internal/wire"
)

func startedConsole(t *testing.T) (*harness, *Console, *bytes.Buffer) {
	t.Helper()
	h := newHarness(t, testConfig(), nil)
	require.NoError(t, h.c.Start(context.Background()))
	var out bytes.Buffer
	return h, NewConsole(h.c, strings.NewReader(""), &out), &out
}

func TestConsole_ClockCommands(t *testing.T) {
	h, k, _ := startedConsole(t)
	ctx := context.Background()

	require.NoError(t, k.Exec(ctx, "seek 0:07"))
	assert.Equal(t, 7.0, h.clock.Position())

	require.NoError(t, k.Exec(ctx, "seek 2.5"))
	assert.Equal(t, 2.5, h.clock.Position())

	require.NoError(t, k.Exec(ctx, "rate 2"))
	assert.Equal(t, 2.0, h.clock.Rate())

	require.NoError(t, k.Exec(ctx, "play"))
	assert.True(t, h.clock.Playing())
	require.NoError(t, k.Exec(ctx, "pause"))
	assert.False(t, h.clock.Playing())

	assert.Error(t, k.Exec(ctx, "seek soon"))
	assert.Error(t, k.Exec(ctx, "seek -3"))
	assert.Error(t, k.Exec(ctx, "rate 0"))
}

func TestConsole_ToggleAndStatus(t *testing.T) {
	h, k, out := startedConsole(t)
	ctx := context.Background()

	require.NoError(t, k.Exec(ctx, "exec off"))
	require.NoError(t, k.Exec(ctx, "seek 30"))
	require.NoError(t, k.Exec(ctx, "status"))

	assert.Contains(t, out.String(), "exec off")
	assert.Contains(t, out.String(), "commands 2/2 left")
	assert.Empty(t, h.sent(t))

	require.NoError(t, k.Exec(ctx, "exec on"))
	h.accept(t)
	assert.Len(t, h.sent(t), 2)

	assert.Error(t, k.Exec(ctx, "scroll maybe"))
}

func TestConsole_RunAndBlocks(t *testing.T) {
	h, k, out := startedConsole(t)
	ctx := context.Background()

	require.NoError(t, k.Exec(ctx, "blocks"))
	assert.Contains(t, out.String(), "[2] line 19 sh: make manual")

	require.NoError(t, k.Exec(ctx, "run uname -a"))
	require.NoError(t, k.Exec(ctx, "block 0"))
	h.accept(t)

	assert.Equal(t, []wire.Message{wire.Execute("uname -a"), wire.Execute("echo five")}, h.sent(t))

	assert.Error(t, k.Exec(ctx, "run"))
	assert.Error(t, k.Exec(ctx, "block nine"))
	assert.Error(t, k.Exec(ctx, "block 9"))
}

func TestConsole_ListsCommands(t *testing.T) {
	_, k, out := startedConsole(t)

	require.NoError(t, k.Exec(context.Background(), "cmds"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "exec")
	assert.Contains(t, lines[1], "-> main.go")
}

func TestConsole_UnknownAndHelp(t *testing.T) {
	_, k, out := startedConsole(t)
	ctx := context.Background()

	assert.ErrorContains(t, k.Exec(ctx, "dance"), "unknown command")
	require.NoError(t, k.Exec(ctx, "   "))
	require.NoError(t, k.Exec(ctx, "help"))
	assert.Contains(t, out.String(), "seek <t>")
}

func TestConsole_RunUntilQuit(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	require.NoError(t, h.c.Start(context.Background()))

	var out bytes.Buffer
	k := NewConsole(h.c, strings.NewReader("seek 6\nbogus\nquit\nseek 99\n"), &out)

	done := make(chan error, 1)
	go func() { done <- k.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console did not stop on quit")
	}

	assert.Equal(t, 6.0, h.clock.Position(), "commands after quit are not run")
	assert.Contains(t, out.String(), `error: unknown command "bogus"`)
}

func TestConsole_RunEndsAtEOF(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	require.NoError(t, h.c.Start(context.Background()))

	k := NewConsole(h.c, strings.NewReader("seek 1\n"), &bytes.Buffer{})
	assert.NoError(t, k.Run(context.Background()))
	assert.Equal(t, 1.0, h.clock.Position())
}
