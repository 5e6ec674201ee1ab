package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "state.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Positions(t *testing.T) {
	s := openSQLite(t)

	_, ok, err := s.LastPosition("/tmp/book.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetLastPosition("/tmp/book.txt", 1234))
	require.NoError(t, s.SetLastPosition("/tmp/book.txt", 2000))

	pos, ok, err := s.LastPosition("/tmp/book.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2000), pos)

	require.NoError(t, s.RemoveLastPosition("/tmp/book.txt"))
	_, ok, err = s.LastPosition("/tmp/book.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_VoiceParams(t *testing.T) {
	s := openSQLite(t)

	got, err := s.VoiceParams()
	require.NoError(t, err)
	assert.Equal(t, tts.DefaultVoiceParams(), got)

	params := tts.VoiceParams{Rate: 1.2, Pitch: 0.9, Volume: 0.8, VoiceModel: "x"}
	require.NoError(t, s.UpdateVoiceParams(params))

	got, err = s.VoiceParams()
	require.NoError(t, err)
	assert.Equal(t, params, got)

	assert.ErrorIs(t, s.UpdateVoiceParams(tts.VoiceParams{Rate: 1, Pitch: 1, Volume: 2}), tts.ErrInvalidVoiceParams)
}

func TestSQLiteStore_ImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*JSONStore)(nil)
}
