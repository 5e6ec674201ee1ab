package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	return NewJSONStore(filepath.Join(t.TempDir(), "config", "app_config.json"), testLogger())
}

func TestJSONStore_MissingFileYieldsDefaults(t *testing.T) {
	s := newJSONStore(t)

	state := s.Load()
	assert.Equal(t, DefaultState(), state)

	_, ok, err := s.LastPosition("/no/such/file.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONStore_CheckpointRoundTrip(t *testing.T) {
	s := newJSONStore(t)
	doc := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o644))

	require.NoError(t, s.SetLastPosition(doc, 1234))

	pos, ok, err := s.LastPosition(doc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1234), pos)

	// A fresh store over the same file sees the checkpoint.
	reopened := NewJSONStore(s.Path(), testLogger())
	pos, ok, err = reopened.LastPosition(doc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1234), pos)

	require.NoError(t, s.RemoveLastPosition(doc))
	_, ok, err = s.LastPosition(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONStore_KeysAreResolved(t *testing.T) {
	s := newJSONStore(t)
	dir := t.TempDir()
	doc := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o644))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(doc, link))

	require.NoError(t, s.SetLastPosition(link, 7))

	pos, ok, err := s.LastPosition(doc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), pos)
}

func TestJSONStore_VoiceParamsRoundTrip(t *testing.T) {
	s := newJSONStore(t)
	params := tts.VoiceParams{Rate: 1.2, Pitch: 0.9, Volume: 0.8, VoiceModel: "x"}

	require.NoError(t, s.UpdateVoiceParams(params))

	got, err := s.VoiceParams()
	require.NoError(t, err)
	assert.Equal(t, params, got)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{"rate":1.2,"pitch":0.9,"volume":0.8,"voice_model":"x"}`, string(raw["tts_params"]))
	assert.JSONEq(t, `{}`, string(raw["last_positions"]))
}

func TestJSONStore_RejectsInvalidVoiceParams(t *testing.T) {
	s := newJSONStore(t)

	err := s.UpdateVoiceParams(tts.VoiceParams{Rate: 0, Pitch: 1, Volume: 1})
	assert.ErrorIs(t, err, tts.ErrInvalidVoiceParams)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestJSONStore_CorruptFileYieldsDefaults(t *testing.T) {
	s := newJSONStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	assert.Equal(t, DefaultState(), s.Load())

	// Writing replaces the corrupt file.
	require.NoError(t, s.SetLastPosition("/tmp/a.txt", 3))
	pos, ok, err := s.LastPosition("/tmp/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), pos)
}

func TestJSONStore_PartialFileMergesDefaults(t *testing.T) {
	s := newJSONStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"tts_params":{"rate":1.5}}`), 0o644))

	state := s.Load()
	assert.Equal(t, 1.5, state.TTSParams.Rate)
	assert.Equal(t, 1.0, state.TTSParams.Pitch)
	assert.Equal(t, 1.0, state.TTSParams.Volume)
	assert.NotNil(t, state.LastPositions)
}

func TestJSONStore_BadFieldKeepsOtherKeys(t *testing.T) {
	s := newJSONStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	book := filepath.Join(t.TempDir(), "book.txt")
	other := filepath.Join(t.TempDir(), "other.txt")
	require.NoError(t, os.WriteFile(book, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("hello"), 0o644))

	data, err := json.Marshal(map[string]any{
		"tts_params":     map[string]any{"rate": "fast", "pitch": 0.9, "voice_model": "m.onnx"},
		"last_positions": map[string]any{ResolvePath(book): 1234, "/tmp/broken.txt": "x"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data, 0o644))

	pos, ok, err := s.LastPosition(book)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1234), pos)

	params, err := s.VoiceParams()
	require.NoError(t, err)
	assert.Equal(t, tts.VoiceParams{Rate: 1.0, Pitch: 0.9, Volume: 1.0, VoiceModel: "m.onnx"}, params)

	// A later write keeps the surviving keys on disk.
	require.NoError(t, s.SetLastPosition(other, 7))
	reopened := NewJSONStore(s.Path(), testLogger())
	state := reopened.Load()
	assert.Equal(t, map[string]int64{ResolvePath(book): 1234, ResolvePath(other): 7}, state.LastPositions)
	assert.Equal(t, "m.onnx", state.TTSParams.VoiceModel)
}
