package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/readaloud-go/internal/audio"
	"github.com/dgnsrekt/readaloud-go/internal/wav"
)

type pcmConverter interface {
	ConvertToDiscordPCM(ctx context.Context, wavData []byte) ([]byte, error)
}

type voiceSink interface {
	IsConnected() bool
	Connect(ctx context.Context) error
	SendAudio(ctx context.Context, pcm []byte) error
}

// Player implements audio.Player by streaming into a voice channel.
type Player struct {
	conv   pcmConverter
	sink   voiceSink
	logger *slog.Logger
}

var _ audio.Player = (*Player)(nil)

// NewPlayer creates a player that resamples with conv and sends through vm.
func NewPlayer(conv *audio.Converter, vm *VoiceManager, logger *slog.Logger) *Player {
	return &Player{conv: conv, sink: vm, logger: logger}
}

// Play converts data to Discord PCM, applies volume and streams it,
// joining the channel first if needed.
func (p *Player) Play(ctx context.Context, data []byte, volume float64) error {
	pcm, err := p.conv.ConvertToDiscordPCM(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", audio.ErrPlayback, err)
	}
	wav.ScalePCM16(pcm, volume)

	if !p.sink.IsConnected() {
		if err := p.sink.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", audio.ErrPlayback, err)
		}
	}

	p.logger.Debug("sending audio to voice channel", "pcm_bytes", len(pcm))

	if err := p.sink.SendAudio(ctx, pcm); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", audio.ErrPlayback, err)
	}
	return nil
}
