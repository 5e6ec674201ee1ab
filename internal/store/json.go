package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

// State is the on-disk JSON document.
type State struct {
	TTSParams     tts.VoiceParams  `json:"tts_params"`
	LastPositions map[string]int64 `json:"last_positions"`
}

// DefaultState returns the state used when no file exists.
func DefaultState() State {
	return State{
		TTSParams:     tts.DefaultVoiceParams(),
		LastPositions: map[string]int64{},
	}
}

// JSONStore keeps state in a single JSON file, rewritten on every change.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewJSONStore creates a store backed by the file at path.
// The file and its directory are created on first write.
func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	return &JSONStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the state file, merging each key over the defaults.
// A missing or corrupt file yields the defaults.
func (s *JSONStore) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) load() State {
	state := DefaultState()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read state file, using defaults", "path", s.path, "error", err)
		}
		return state
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("corrupt state file, using defaults", "path", s.path, "error", err)
		return state
	}
	if msg, ok := raw["tts_params"]; ok {
		state.TTSParams = s.decodeVoiceParams(msg)
	}
	if msg, ok := raw["last_positions"]; ok {
		state.LastPositions = s.decodePositions(msg)
	}
	if err := state.TTSParams.Validate(); err != nil {
		s.logger.Warn("invalid stored voice parameters, using defaults", "error", err)
		model := state.TTSParams.VoiceModel
		state.TTSParams = tts.DefaultVoiceParams()
		state.TTSParams.VoiceModel = model
	}
	return state
}

// decodeVoiceParams merges each stored field over the defaults. A field
// that fails to decode keeps its default.
func (s *JSONStore) decodeVoiceParams(msg json.RawMessage) tts.VoiceParams {
	params := tts.DefaultVoiceParams()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		s.logger.Warn("invalid stored voice parameters, using defaults", "error", err)
		return params
	}
	s.decodeField(fields, "rate", &params.Rate)
	s.decodeField(fields, "pitch", &params.Pitch)
	s.decodeField(fields, "volume", &params.Volume)
	s.decodeField(fields, "voice_model", &params.VoiceModel)
	return params
}

func (s *JSONStore) decodeField(fields map[string]json.RawMessage, key string, dst any) {
	msg, ok := fields[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(msg, dst); err != nil {
		s.logger.Warn("ignoring invalid stored voice parameter", "key", key, "error", err)
	}
}

// decodePositions keeps every checkpoint that decodes as an integer offset.
func (s *JSONStore) decodePositions(msg json.RawMessage) map[string]int64 {
	positions := map[string]int64{}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(msg, &entries); err != nil {
		s.logger.Warn("invalid stored checkpoints, ignoring", "error", err)
		return positions
	}
	for path, v := range entries {
		var pos int64
		if err := json.Unmarshal(v, &pos); err != nil {
			s.logger.Warn("ignoring invalid stored checkpoint", "path", path, "error", err)
			continue
		}
		positions[path] = pos
	}
	return positions
}

// Save overwrites the state file with state.
func (s *JSONStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *JSONStore) save(state State) error {
	if state.LastPositions == nil {
		state.LastPositions = map[string]int64{}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %w", ErrStore, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create state dir: %w", ErrStore, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write state: %w", ErrStore, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write state: %w", ErrStore, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replace state: %w", ErrStore, err)
	}
	return nil
}

// update loads, mutates and saves the state under the lock.
func (s *JSONStore) update(fn func(*State) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	if !fn(&state) {
		return nil
	}
	return s.save(state)
}

// LastPosition returns the checkpoint for path.
func (s *JSONStore) LastPosition(path string) (int64, bool, error) {
	state := s.Load()
	pos, ok := state.LastPositions[ResolvePath(path)]
	return pos, ok, nil
}

// SetLastPosition records a checkpoint for path.
func (s *JSONStore) SetLastPosition(path string, position int64) error {
	key := ResolvePath(path)
	return s.update(func(st *State) bool {
		st.LastPositions[key] = position
		return true
	})
}

// RemoveLastPosition deletes the checkpoint for path if there is one.
func (s *JSONStore) RemoveLastPosition(path string) error {
	key := ResolvePath(path)
	return s.update(func(st *State) bool {
		if _, ok := st.LastPositions[key]; !ok {
			return false
		}
		delete(st.LastPositions, key)
		return true
	})
}

// VoiceParams returns the stored voice parameters.
func (s *JSONStore) VoiceParams() (tts.VoiceParams, error) {
	return s.Load().TTSParams, nil
}

// UpdateVoiceParams replaces the stored voice parameters.
func (s *JSONStore) UpdateVoiceParams(params tts.VoiceParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return s.update(func(st *State) bool {
		st.TTSParams = params
		return true
	})
}

// Close is a no-op; the file is not held open.
func (s *JSONStore) Close() error {
	return nil
}
