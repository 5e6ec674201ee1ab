// Package store persists reading checkpoints and voice parameters.
package store

import (
	"errors"
	"path/filepath"

	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

// ErrStore is wrapped by every persistence failure.
var ErrStore = errors.New("state store error")

// Store is the persistent configuration collaborator of a reading session.
// Paths are normalized with ResolvePath before use as keys.
type Store interface {
	// LastPosition returns the checkpoint for path and whether one exists.
	LastPosition(path string) (int64, bool, error)
	SetLastPosition(path string, position int64) error
	RemoveLastPosition(path string) error
	VoiceParams() (tts.VoiceParams, error)
	UpdateVoiceParams(params tts.VoiceParams) error
	Close() error
}

// ResolvePath returns the absolute form of path with symlinks resolved
// where possible.
func ResolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
