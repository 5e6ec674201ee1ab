package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/readaloud-go/internal/tts"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps state in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	clock  func() time.Time
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %w", ErrStore, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrStore, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %w", ErrStore, err)
	}

	s := &SQLiteStore{db: db, logger: logger, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %w", ErrStore, err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS last_positions (
    path TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS voice_params (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    rate REAL NOT NULL,
    pitch REAL NOT NULL,
    volume REAL NOT NULL,
    voice_model TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// LastPosition returns the checkpoint for path.
func (s *SQLiteStore) LastPosition(path string) (int64, bool, error) {
	var pos int64
	err := s.db.QueryRow(`SELECT position FROM last_positions WHERE path = ?`, ResolvePath(path)).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: query position: %w", ErrStore, err)
	}
	return pos, true, nil
}

// SetLastPosition records a checkpoint for path.
func (s *SQLiteStore) SetLastPosition(path string, position int64) error {
	_, err := s.db.Exec(`
INSERT INTO last_positions (path, position, updated_at) VALUES (?, ?, ?)
ON CONFLICT(path) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
		ResolvePath(path), position, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("%w: save position: %w", ErrStore, err)
	}
	return nil
}

// RemoveLastPosition deletes the checkpoint for path.
func (s *SQLiteStore) RemoveLastPosition(path string) error {
	if _, err := s.db.Exec(`DELETE FROM last_positions WHERE path = ?`, ResolvePath(path)); err != nil {
		return fmt.Errorf("%w: remove position: %w", ErrStore, err)
	}
	return nil
}

// VoiceParams returns the stored voice parameters, or the defaults.
func (s *SQLiteStore) VoiceParams() (tts.VoiceParams, error) {
	var p tts.VoiceParams
	err := s.db.QueryRow(`SELECT rate, pitch, volume, voice_model FROM voice_params WHERE id = 1`).
		Scan(&p.Rate, &p.Pitch, &p.Volume, &p.VoiceModel)
	if errors.Is(err, sql.ErrNoRows) {
		return tts.DefaultVoiceParams(), nil
	}
	if err != nil {
		return tts.VoiceParams{}, fmt.Errorf("%w: query voice params: %w", ErrStore, err)
	}
	return p, nil
}

// UpdateVoiceParams replaces the stored voice parameters.
func (s *SQLiteStore) UpdateVoiceParams(p tts.VoiceParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
INSERT INTO voice_params (id, rate, pitch, volume, voice_model) VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET rate = excluded.rate, pitch = excluded.pitch,
    volume = excluded.volume, voice_model = excluded.voice_model`,
		p.Rate, p.Pitch, p.Volume, p.VoiceModel)
	if err != nil {
		return fmt.Errorf("%w: save voice params: %w", ErrStore, err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
