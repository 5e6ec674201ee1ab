package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud-go/internal/wav/wavtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlayer writes a player script that copies the file it is given to
// "$0.played" and then runs body.
func fakePlayer(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "player")
	script := "#!/bin/sh\nfor f; do last=\"$f\"; done\ncp \"$last\" \"$0.played\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNewExecPlayer_ParsesCommand(t *testing.T) {
	p, err := NewExecPlayer(ExecPlayerConfig{Command: `ffplay -nodisp -autoexit -window_title "read aloud"`}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"ffplay", "-nodisp", "-autoexit", "-window_title", "read aloud"}, p.args)
}

func TestNewExecPlayer_EmptyCommand(t *testing.T) {
	_, err := NewExecPlayer(ExecPlayerConfig{Command: "   "}, testLogger())
	assert.Error(t, err)

	_, err = NewExecPlayer(ExecPlayerConfig{Command: `ffplay "unterminated`}, testLogger())
	assert.Error(t, err)
}

func TestExecPlayer_CheckAvailable(t *testing.T) {
	p, err := NewExecPlayer(ExecPlayerConfig{Command: "/nonexistent/player -q"}, testLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, p.CheckAvailable(), ErrPlayerNotFound)
}

func TestExecPlayer_Play(t *testing.T) {
	bin := fakePlayer(t, "exit 0")
	tmp := t.TempDir()
	p, err := NewExecPlayer(ExecPlayerConfig{Command: bin + " -q", TempDir: tmp}, testLogger())
	require.NoError(t, err)

	data := wavtest.Tone(200, 8000)
	require.NoError(t, p.Play(context.Background(), data, 1.0))

	played, err := os.ReadFile(bin + ".played")
	require.NoError(t, err)
	assert.Equal(t, data, played)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged audio should be removed")
}

func TestExecPlayer_PlayAppliesVolume(t *testing.T) {
	bin := fakePlayer(t, "exit 0")
	p, err := NewExecPlayer(ExecPlayerConfig{Command: bin, TempDir: t.TempDir()}, testLogger())
	require.NoError(t, err)

	require.NoError(t, p.Play(context.Background(), wavtest.Tone(200, 8000), 0.5))

	played, err := os.ReadFile(bin + ".played")
	require.NoError(t, err)
	first := int16(uint16(played[wavtest.HeaderSize]) | uint16(played[wavtest.HeaderSize+1])<<8)
	assert.Equal(t, int16(4000), first)
}

func TestExecPlayer_PlayFailure(t *testing.T) {
	bin := fakePlayer(t, "echo 'no audio device' >&2; exit 1")
	p, err := NewExecPlayer(ExecPlayerConfig{Command: bin, TempDir: t.TempDir()}, testLogger())
	require.NoError(t, err)

	err = p.Play(context.Background(), wavtest.Tone(10, 1), 1.0)
	require.ErrorIs(t, err, ErrPlayback)
	assert.Contains(t, err.Error(), "no audio device")
}

func TestExecPlayer_PlayEmpty(t *testing.T) {
	p, err := NewExecPlayer(ExecPlayerConfig{Command: "true"}, testLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, p.Play(context.Background(), nil, 1.0), ErrPlayback)
}

func TestExecPlayer_PlayCancelled(t *testing.T) {
	bin := fakePlayer(t, "exec sleep 10")
	tmp := t.TempDir()
	p, err := NewExecPlayer(ExecPlayerConfig{Command: bin, TempDir: tmp}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err = p.Play(ctx, wavtest.Tone(10, 1), 1.0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged audio should be removed after cancellation")
}

func TestExecPlayer_PlayAlreadyCancelled(t *testing.T) {
	p, err := NewExecPlayer(ExecPlayerConfig{Command: "true"}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(p.Play(ctx, wavtest.Tone(10, 1), 1.0), context.Canceled))
}

func TestLogPlayer(t *testing.T) {
	p := NewLogPlayer(testLogger())
	assert.NoError(t, p.Play(context.Background(), wavtest.Tone(10, 1), 0.3))
	assert.NoError(t, p.Play(context.Background(), []byte("raw"), 1))
}
