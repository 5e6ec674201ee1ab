// Package wavtest builds small WAV files for tests.
package wavtest

import "encoding/binary"

// Piper's default output format.
const (
	SampleRate    = 22050
	Channels      = 1
	BitsPerSample = 16
)

// HeaderSize is the size of the header written by WrapRawPCM.
const HeaderSize = 44

// WrapRawPCM adds a WAV header to raw PCM data.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, HeaderSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

// Tone returns a Piper-format WAV file holding numSamples samples of a
// square wave at the given amplitude.
func Tone(numSamples int, amplitude int16) []byte {
	pcm := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		s := amplitude
		if (i/50)%2 == 1 {
			s = -amplitude
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return WrapRawPCM(pcm, SampleRate, Channels, BitsPerSample)
}
