package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud-go/internal/wav"
	"github.com/mattn/go-shellwords"
)

// PollInterval is how often a blocking Play checks for cancellation.
const PollInterval = 100 * time.Millisecond

var (
	// ErrPlayback is returned when audio cannot be played.
	ErrPlayback = errors.New("audio playback failed")
	// ErrPlayerNotFound is returned when the player command is not installed.
	ErrPlayerNotFound = errors.New("audio player not found")
)

// Player plays encoded WAV audio at a volume in [0, 1]. Play blocks until
// playback finishes or ctx is cancelled, in which case it stops the audio
// and returns ctx.Err(). Play releases every resource it acquired before
// returning.
type Player interface {
	Play(ctx context.Context, data []byte, volume float64) error
}

// ExecPlayerConfig configures an ExecPlayer.
type ExecPlayerConfig struct {
	// Command is the player command line; the WAV file path is appended.
	Command string
	// TempDir is where audio files are staged. Empty uses os.TempDir.
	TempDir string
}

// ExecPlayer plays audio by running an external player such as ffplay or
// aplay on a temporary WAV file.
type ExecPlayer struct {
	args         []string
	tempDir      string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewExecPlayer parses the player command line.
func NewExecPlayer(cfg ExecPlayerConfig, logger *slog.Logger) (*ExecPlayer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("player command is empty")
	}
	return &ExecPlayer{
		args:         args,
		tempDir:      cfg.TempDir,
		pollInterval: PollInterval,
		logger:       logger,
	}, nil
}

// CheckAvailable reports ErrPlayerNotFound if the player binary cannot be resolved.
func (p *ExecPlayer) CheckAvailable() error {
	if _, err := exec.LookPath(p.args[0]); err != nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, p.args[0])
	}
	return nil
}

// Play writes data to a temporary file, applies volume and runs the player.
func (p *ExecPlayer) Play(ctx context.Context, data []byte, volume float64) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty audio", ErrPlayback)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := p.stage(data, volume)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	args := append(append([]string{}, p.args[1:]...), path)
	cmd := exec.Command(p.args[0], args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %w: %s", ErrPlayback, ErrPlayerNotFound, p.args[0])
		}
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("%w: %v: %s", ErrPlayback, err, strings.TrimSpace(stderr.String()))
			}
			return nil
		case <-ticker.C:
			if ctx.Err() == nil {
				continue
			}
			p.logger.Debug("stopping playback", "player", p.args[0])
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Warn("failed to stop player", "error", err)
			}
			<-done
			return ctx.Err()
		}
	}
}

// stage writes the audio to a temporary WAV file, scaled to volume.
func (p *ExecPlayer) stage(data []byte, volume float64) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "readaloud-play-*.wav")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrPlayback, err)
	}
	path := f.Name()

	if volume < 1 {
		err = wav.ApplyVolume(f, data, volume)
	} else {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	return path, nil
}

// LogPlayer logs instead of producing sound. It is used for dry runs.
type LogPlayer struct {
	logger *slog.Logger
}

// NewLogPlayer creates a LogPlayer.
func NewLogPlayer(logger *slog.Logger) *LogPlayer {
	return &LogPlayer{logger: logger}
}

// Play logs the audio size and duration.
func (p *LogPlayer) Play(ctx context.Context, data []byte, volume float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := wav.Duration(data)
	if err != nil {
		p.logger.Info("would play audio", "bytes", len(data), "volume", volume)
		return nil
	}
	p.logger.Info("would play audio", "bytes", len(data), "duration", d, "volume", volume)
	return nil
}
