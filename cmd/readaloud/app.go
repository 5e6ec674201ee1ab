package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/readaloud-go/internal/audio"
	"github.com/dgnsrekt/readaloud-go/internal/config"
	"github.com/dgnsrekt/readaloud-go/internal/discord"
	"github.com/dgnsrekt/readaloud-go/internal/logging"
	"github.com/dgnsrekt/readaloud-go/internal/metrics"
	"github.com/dgnsrekt/readaloud-go/internal/session"
	"github.com/dgnsrekt/readaloud-go/internal/store"
	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	metrics *metrics.Metrics
	voice   *discord.VoiceManager
	ctrl    *session.Controller
}

// loadApp reads configuration and opens the state store.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: st}, nil
}

// openStore selects the state backend named by STATE_BACKEND.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StateBackend {
	case "sqlite":
		return store.OpenSQLite(ctx, cfg.StateDB, logger)
	default:
		return store.NewJSONStore(cfg.StateFile, logger), nil
	}
}

// buildController wires synthesis, playback and metrics into a controller.
func (a *app) buildController(dryRun bool) error {
	engine := tts.NewPiperEngine(tts.PiperConfig{
		BinaryPath: a.cfg.PiperPath,
		Timeout:    a.cfg.SynthesisTimeout,
	}, a.logger)
	if err := engine.CheckAvailable(); err != nil {
		a.logger.Warn("piper not found, synthesis will fail", "path", a.cfg.PiperPath, "error", err)
	}
	if a.cfg.PiperModel == "" {
		if params, err := a.store.VoiceParams(); err == nil && params.VoiceModel == "" {
			a.logger.Warn("no voice model configured, set PIPER_MODEL or run 'readaloud voice --model'")
		}
	}

	player, err := a.buildPlayer(dryRun)
	if err != nil {
		return err
	}

	a.metrics = metrics.New()
	a.ctrl = session.NewController(session.Config{
		ChunkSize:         int64(a.cfg.ReadChunkSize),
		MaxSentenceBytes:  a.cfg.MaxSentenceBytes,
		StopTimeout:       a.cfg.StopTimeout,
		DefaultVoiceModel: a.cfg.PiperModel,
	}, engine, player, a.store, a.metrics, a.logger)
	a.ctrl.SetErrorHandler(func(sessionID string, err error) {
		a.logger.Error("reading session failed", "session_id", sessionID, "error", err)
	})
	return nil
}

func (a *app) buildPlayer(dryRun bool) (audio.Player, error) {
	if dryRun {
		a.logger.Info("dry run, audio will not be played")
		return audio.NewLogPlayer(a.logger), nil
	}

	switch a.cfg.AudioOutput {
	case "discord":
		conv, err := audio.NewConverter()
		if err != nil {
			return nil, err
		}
		vm, err := discord.NewVoiceManager(a.cfg.DiscordToken, a.cfg.GuildID, a.cfg.VoiceChannelID, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create voice manager: %w", err)
		}
		if err := vm.Open(); err != nil {
			return nil, fmt.Errorf("failed to open Discord session: %w", err)
		}
		a.voice = vm
		a.logger.Info("Discord session opened", "guild_id", a.cfg.GuildID)
		return discord.NewPlayer(conv, vm, a.logger), nil
	default:
		player, err := audio.NewExecPlayer(audio.ExecPlayerConfig{Command: a.cfg.PlayerCommand}, a.logger)
		if err != nil {
			return nil, err
		}
		if err := player.CheckAvailable(); err != nil {
			a.logger.Warn("audio player not found, playback will fail", "command", a.cfg.PlayerCommand, "error", err)
		}
		return player, nil
	}
}

// Close stops reading and releases every component.
func (a *app) Close() {
	if a.ctrl != nil {
		if err := a.ctrl.Close(); err != nil {
			a.logger.Warn("failed to close controller", "error", err)
		}
	}
	if a.voice != nil {
		if err := a.voice.Close(); err != nil {
			a.logger.Warn("failed to close Discord session", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close state store", "error", err)
	}
}
