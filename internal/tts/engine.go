package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSynthesisUnavailable is returned when the synthesizer binary cannot be found.
	ErrSynthesisUnavailable = errors.New("TTS synthesizer not available")
	// ErrNoVoiceModel is returned when no voice model is configured.
	ErrNoVoiceModel = errors.New("no voice model specified")
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("empty text")
	// ErrInvalidVoiceParams is returned by VoiceParams.Validate.
	ErrInvalidVoiceParams = errors.New("invalid voice parameters")
)

// VoiceParams are the user-tunable synthesis and playback settings.
type VoiceParams struct {
	// Rate is a speed multiplier; 1.0 is normal speed.
	Rate float64 `json:"rate"`
	// Pitch is a pitch multiplier; 1.0 is normal pitch.
	Pitch float64 `json:"pitch"`
	// Volume is the playback volume in [0, 1].
	Volume float64 `json:"volume"`
	// VoiceModel is the path to the ONNX voice model.
	VoiceModel string `json:"voice_model"`
}

// DefaultVoiceParams returns normal speed, pitch and volume with no model.
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{Rate: 1.0, Pitch: 1.0, Volume: 1.0}
}

// LengthScale converts Rate to Piper's length scale, where larger values
// mean slower speech. A zero rate maps to 1.0.
func (v VoiceParams) LengthScale() float64 {
	if v.Rate == 0 {
		return 1.0
	}
	return 1.0 / v.Rate
}

// Validate checks that rate and pitch are positive and volume is in [0, 1].
func (v VoiceParams) Validate() error {
	if v.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidVoiceParams)
	}
	if v.Pitch <= 0 {
		return fmt.Errorf("%w: pitch must be positive", ErrInvalidVoiceParams)
	}
	if v.Volume < 0 || v.Volume > 1 {
		return fmt.Errorf("%w: volume must be between 0 and 1", ErrInvalidVoiceParams)
	}
	return nil
}

// SynthesizeRequest contains parameters for TTS synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice VoiceParams
}

// AudioResult represents synthesized audio output.
type AudioResult struct {
	// Data contains the encoded audio bytes.
	Data []byte
	// Format describes the audio format (e.g., "wav").
	Format string
}

// Engine is the interface for text-to-speech synthesis.
type Engine interface {
	// Synthesize converts text to audio. Each call is independent;
	// callers that need ordering must serialize their calls.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	// Name returns the engine identifier.
	Name() string
}
