// Package discord streams spoken text into a Discord voice channel.
package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgnsrekt/readaloud-go/internal/audio"
	"layeh.com/gopus"
)

const (
	// voiceConnectTimeout is the maximum time to wait for voice connection readiness.
	voiceConnectTimeout = 10 * time.Second
	// frameDuration is the duration of one Discord audio frame (20ms).
	frameDuration = 20 * time.Millisecond
	// maxOpusDataBytes is the maximum size of an encoded Opus frame.
	maxOpusDataBytes = 4000
)

var (
	// ErrNotConnected is returned when trying to send audio while not connected.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrConnectionFailed is returned when voice connection fails.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
)

// VoiceManager owns the bot session and its single voice connection.
type VoiceManager struct {
	mu              sync.Mutex
	session         *discordgo.Session
	voiceConnection *discordgo.VoiceConnection
	guildID         string
	channelID       string
	logger          *slog.Logger
	connected       bool
	opusEncoder     *gopus.Encoder
}

// NewVoiceManager creates a voice manager for one guild channel.
func NewVoiceManager(token, guildID, channelID string, logger *slog.Logger) (*VoiceManager, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	// 48kHz stereo, tuned for general audio rather than voip.
	encoder, err := gopus.NewEncoder(audio.DiscordSampleRate, audio.DiscordChannels, gopus.Audio)
	if err != nil {
		return nil, err
	}

	return &VoiceManager{
		session:     session,
		guildID:     guildID,
		channelID:   channelID,
		logger:      logger,
		opusEncoder: encoder,
	}, nil
}

// Open opens the Discord session.
func (vm *VoiceManager) Open() error {
	return vm.session.Open()
}

// Close leaves the voice channel and closes the session.
func (vm *VoiceManager) Close() error {
	if err := vm.Disconnect(); err != nil {
		vm.logger.Warn("failed to leave voice channel", "error", err)
	}
	return vm.session.Close()
}

// Connect joins the configured voice channel if not already joined.
func (vm *VoiceManager) Connect(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.connected && vm.voiceConnection != nil {
		return nil
	}

	vm.logger.Info("connecting to voice channel", "guild_id", vm.guildID, "channel_id", vm.channelID)

	// mute=false, deaf=true: the bot only speaks.
	vc, err := vm.session.ChannelVoiceJoin(vm.guildID, vm.channelID, false, true)
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}

	// vc.Ready is a plain bool, so poll it.
	deadline := time.Now().Add(voiceConnectTimeout)
	for !vc.Ready {
		if ctx.Err() != nil {
			vc.Disconnect()
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			vc.Disconnect()
			return ErrConnectionFailed
		}
		time.Sleep(audio.PollInterval)
	}

	vm.voiceConnection = vc
	vm.connected = true
	vm.logger.Info("connected to voice channel")

	return nil
}

// Disconnect leaves the voice channel.
func (vm *VoiceManager) Disconnect() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection == nil {
		return nil
	}

	vm.logger.Info("disconnecting from voice channel")
	err := vm.voiceConnection.Disconnect()
	vm.voiceConnection = nil
	vm.connected = false

	return err
}

// IsConnected returns whether the bot is in the voice channel.
func (vm *VoiceManager) IsConnected() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.connected && vm.voiceConnection != nil
}

// SendAudio streams 48kHz stereo s16le PCM to the channel in real time.
// It returns ctx.Err() if ctx is cancelled mid-stream.
func (vm *VoiceManager) SendAudio(ctx context.Context, pcmData []byte) error {
	vm.mu.Lock()
	vc := vm.voiceConnection
	connected := vm.connected
	vm.mu.Unlock()

	if !connected || vc == nil {
		return ErrNotConnected
	}

	frames := audio.NewPCMFrameReader(pcmData)

	if err := vc.Speaking(true); err != nil {
		vm.logger.Error("failed to set speaking state", "error", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			vm.logger.Error("failed to clear speaking state", "error", err)
		}
	}()

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame, err := frames.ReadFrame()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}

			opus, err := vm.encodeOpus(frame)
			if err != nil {
				vm.logger.Error("opus encoding failed", "error", err)
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case vc.OpusSend <- opus:
			}
		}
	}
}

// encodeOpus encodes one 20ms stereo PCM frame.
// Input: 960 samples * 2 channels * 2 bytes = 3840 bytes of PCM.
func (vm *VoiceManager) encodeOpus(pcm []byte) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	// frameSize is samples per channel (960 for 20ms at 48kHz).
	return vm.opusEncoder.Encode(samples, audio.DiscordFrameSize, maxOpusDataBytes)
}
