package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// Timeout bounds a single synthesis call. Zero means no limit.
	Timeout time.Duration
	// TempDir is where output files are written. Empty uses os.TempDir.
	TempDir string
}

// PiperEngine implements the Engine interface by running the Piper CLI
// once per request.
type PiperEngine struct {
	config PiperConfig
	logger *slog.Logger
}

// NewPiperEngine creates a new Piper TTS engine. The binary is not
// required to exist yet; see CheckAvailable.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) *PiperEngine {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}
	return &PiperEngine{
		config: cfg,
		logger: logger,
	}
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// CheckAvailable reports ErrSynthesisUnavailable if the piper binary
// cannot be resolved.
func (p *PiperEngine) CheckAvailable() error {
	if _, err := exec.LookPath(p.config.BinaryPath); err != nil {
		return fmt.Errorf("%w: %s", ErrSynthesisUnavailable, p.config.BinaryPath)
	}
	return nil
}

// Synthesize converts text to WAV audio using Piper.
func (p *PiperEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if req.Voice.VoiceModel == "" {
		return nil, ErrNoVoiceModel
	}
	if err := p.CheckAvailable(); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(p.config.TempDir, "readaloud-*.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: create output file: %v", ErrSynthesisFailed, err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	lengthScale := strconv.FormatFloat(req.Voice.LengthScale(), 'f', -1, 64)
	args := []string{
		"--model", req.Voice.VoiceModel,
		"--output_file", outPath,
		"--length_scale", lengthScale,
	}

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", req.Voice.VoiceModel,
		"length_scale", lengthScale,
		"text_length", len(req.Text),
	)

	runCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, p.config.BinaryPath, args...)
	cmd.Stdin = strings.NewReader(req.Text)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrSynthesisFailed, p.config.Timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v: %s", ErrSynthesisFailed, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrSynthesisFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	p.logger.Debug("piper synthesis complete", "output_bytes", len(data))

	return &AudioResult{
		Data:   data,
		Format: "wav",
	}, nil
}
