// Package wav provides utilities for the WAV audio produced by Piper.
package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// WAV format constants.
const (
	// HeaderSize is the size of a standard WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// ErrInvalidWAV is returned when audio data is not a decodable PCM WAV file.
var ErrInvalidWAV = errors.New("invalid WAV data")

// Duration returns the playing time of a WAV file.
func Duration(data []byte) (time.Duration, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, ErrInvalidWAV
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	return d, nil
}

// ApplyVolume decodes a PCM WAV file, scales every sample by volume
// (clamped to [0, 1]) and writes the result as a WAV file to w.
func ApplyVolume(w io.WriteSeeker, data []byte, volume float64) error {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return ErrInvalidWAV
	}
	if dec.WavAudioFormat != FormatPCM {
		return fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	scaleBuffer(buf, volume)

	enc := gowav.NewEncoder(w, int(dec.SampleRate), int(dec.BitDepth), int(dec.NumChans), FormatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

func scaleBuffer(buf *audio.IntBuffer, volume float64) {
	volume = clampVolume(volume)
	if volume == 1 {
		return
	}
	for i, s := range buf.Data {
		buf.Data[i] = int(float64(s) * volume)
	}
}

// ScalePCM16 scales raw 16-bit signed little-endian samples in place.
func ScalePCM16(pcm []byte, volume float64) {
	volume = clampVolume(volume)
	if volume == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		PutLE16(pcm[i:i+2], uint16(int16(float64(s)*volume)))
	}
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}

// PutLE16 writes a uint16 value in little-endian format to a byte slice.
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
