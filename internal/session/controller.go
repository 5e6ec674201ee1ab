// Package session runs the background read-aloud loop over a document.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/readaloud-go/internal/audio"
	"github.com/dgnsrekt/readaloud-go/internal/document"
	"github.com/dgnsrekt/readaloud-go/internal/metrics"
	"github.com/dgnsrekt/readaloud-go/internal/store"
	"github.com/dgnsrekt/readaloud-go/internal/text"
	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

var (
	// ErrNoDocument is returned when an operation needs an open document.
	ErrNoDocument = errors.New("no document loaded")
	// ErrInvalidPosition is returned for offsets outside [0, size].
	ErrInvalidPosition = errors.New("position out of range")
	// ErrStopTimeout is returned when the worker did not exit within
	// StopTimeout. The worker keeps running and no new session starts
	// until it has exited.
	ErrStopTimeout = errors.New("reading worker did not stop in time")
)

// State is the controller's playback state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

const (
	DefaultChunkSize   = 4096
	DefaultStopTimeout = 2 * time.Second
)

// Config tunes the reading loop.
type Config struct {
	// ChunkSize is how many bytes are read from the document per iteration.
	ChunkSize int64
	// MaxSentenceBytes bounds each synthesized chunk.
	MaxSentenceBytes int
	// StopTimeout bounds how long Pause waits for the worker.
	StopTimeout time.Duration
	// DefaultVoiceModel is used when the stored voice parameters name no model.
	DefaultVoiceModel string
}

func (c *Config) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxSentenceBytes <= 0 {
		c.MaxSentenceBytes = text.DefaultMaxChunkBytes
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
}

// ErrorHandler is called when a session ends with an error.
type ErrorHandler func(sessionID string, err error)

// Status is a snapshot of the controller.
type Status struct {
	State     State  `json:"state"`
	Path      string `json:"path,omitempty"`
	Size      int64  `json:"size"`
	Position  int64  `json:"position"`
	Line      int    `json:"line,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// run is one background reading session.
type run struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Controller owns the open document and at most one reading worker.
type Controller struct {
	// ctl serializes control operations so that stop-and-join followed
	// by launch is atomic with respect to other callers.
	ctl sync.Mutex

	mu       sync.Mutex
	doc      *document.Document
	position int64
	current  *run
	lastID   string
	lastErr  error
	onError  ErrorHandler

	cancelled atomic.Bool

	cfg     Config
	engine  tts.Engine
	player  audio.Player
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewController creates an idle controller with no document.
// m may be nil.
func NewController(cfg Config, engine tts.Engine, player audio.Player, st store.Store, m *metrics.Metrics, logger *slog.Logger) *Controller {
	cfg.setDefaults()
	return &Controller{
		cfg:     cfg,
		engine:  engine,
		player:  player,
		store:   st,
		metrics: m,
		logger:  logger,
	}
}

// SetErrorHandler sets the function called when a session fails.
func (c *Controller) SetErrorHandler(fn ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Open stops any active session, closes the current document and opens
// path. The live position is restored from the stored checkpoint.
func (c *Controller) Open(path string) error {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	if err := c.stopLocked(); err != nil {
		return err
	}

	doc, err := document.Open(path)
	if err != nil {
		return err
	}

	var pos int64
	saved, ok, err := c.store.LastPosition(doc.Path())
	if err != nil {
		c.logger.Warn("failed to load checkpoint", "path", doc.Path(), "error", err)
	} else if ok && saved >= 0 && saved <= doc.Size() {
		pos = saved
	}

	c.mu.Lock()
	old := c.doc
	c.doc = doc
	c.position = pos
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	c.logger.Info("document opened", "path", doc.Path(), "size", doc.Size(), "position", pos)
	return nil
}

// Close stops any active session and closes the document.
func (c *Controller) Close() error {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	if err := c.stopLocked(); err != nil {
		return err
	}

	c.mu.Lock()
	doc := c.doc
	c.doc = nil
	c.position = 0
	c.mu.Unlock()

	if doc == nil {
		return nil
	}
	return doc.Close()
}

// Start begins reading from pos. An active session is stopped and joined
// first; if it does not exit in time Start returns ErrStopTimeout.
func (c *Controller) Start(pos int64) error {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.mu.Lock()
	doc := c.doc
	c.mu.Unlock()

	if doc == nil {
		return ErrNoDocument
	}
	if pos < 0 || pos > doc.Size() {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidPosition, pos, doc.Size())
	}

	if err := c.stopLocked(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.current = r
	c.lastID = r.id
	c.lastErr = nil
	c.position = pos
	c.mu.Unlock()

	c.logger.Info("reading started", "session_id", r.id, "path", doc.Path(), "position", pos)
	c.metrics.SessionStarted()

	go c.worker(ctx, r, doc, pos)
	return nil
}

// Pause cancels the active session and waits for it to exit. It is a
// no-op when Idle.
func (c *Controller) Pause() error {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	return c.pauseLocked()
}

// Stop is Pause followed by clearing the cancellation flag.
func (c *Controller) Stop() error {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	return c.stopLocked()
}

func (c *Controller) pauseLocked() error {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r == nil {
		return nil
	}

	c.cancelled.Store(true)
	r.cancel()

	timer := time.NewTimer(c.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-r.done:
		return nil
	case <-timer.C:
		c.logger.Warn("reading worker did not stop in time", "session_id", r.id, "timeout", c.cfg.StopTimeout)
		return ErrStopTimeout
	}
}

func (c *Controller) stopLocked() error {
	if err := c.pauseLocked(); err != nil {
		return err
	}
	c.cancelled.Store(false)
	return nil
}

// SetPosition pauses any active session and checkpoints pos for the
// open document without starting playback.
func (c *Controller) SetPosition(pos int64) error {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.mu.Lock()
	doc := c.doc
	c.mu.Unlock()

	if doc == nil {
		return ErrNoDocument
	}
	if pos < 0 || pos > doc.Size() {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidPosition, pos, doc.Size())
	}

	if err := c.pauseLocked(); err != nil {
		return err
	}

	c.mu.Lock()
	c.position = pos
	c.mu.Unlock()

	if err := c.store.SetLastPosition(doc.Path(), pos); err != nil {
		return err
	}
	c.logger.Info("position set", "path", doc.Path(), "position", pos)
	return nil
}

// LineStart returns the start of the line containing pos, or
// ErrInvalidPosition when pos lies outside doc.
func LineStart(doc *document.Document, pos int64) (int64, error) {
	if pos < 0 || pos > doc.Size() {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidPosition, pos, doc.Size())
	}
	return doc.LineStartBefore(pos), nil
}

// CurrentPosition returns the live reading offset of the open document.
func (c *Controller) CurrentPosition() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// IsPlaying reports whether a session is active.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Document returns the open document, or nil.
func (c *Controller) Document() *document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// LastError returns the error that ended the most recent session, or nil
// if it completed or was cancelled.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Wait blocks until the active session ends and returns its error.
// It returns LastError immediately when Idle.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	r := c.current
	lastErr := c.lastErr
	c.mu.Unlock()

	if r == nil {
		return lastErr
	}

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:     StateIdle,
		Position:  c.position,
		SessionID: c.lastID,
	}
	if c.current != nil {
		st.State = StatePlaying
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	doc := c.doc
	c.mu.Unlock()

	if doc != nil {
		st.Path = doc.Path()
		st.Size = doc.Size()
		st.Line = doc.LineNumberAt(st.Position)
	}
	return st
}

func (c *Controller) isCancelled(ctx context.Context) bool {
	return ctx.Err() != nil || c.cancelled.Load()
}

// worker is the single reading goroutine of run r.
func (c *Controller) worker(ctx context.Context, r *run, doc *document.Document, pos int64) {
	err := c.read(ctx, r, doc, pos)

	outcome := "completed"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
		err = nil
	default:
		outcome = "failed"
	}

	c.mu.Lock()
	c.metrics.SessionEnded(outcome)
	if c.current == r {
		c.current = nil
	}
	c.lastErr = err
	handler := c.onError
	c.mu.Unlock()

	r.err = err
	r.cancel()

	close(r.done)

	if err != nil {
		c.logger.Error("reading failed", "session_id", r.id, "error", err)
		if handler != nil {
			handler(r.id, err)
		}
		return
	}
	c.logger.Info("reading ended", "session_id", r.id, "outcome", outcome, "position", c.CurrentPosition())
}

// read runs the chunk loop until end of document, cancellation or error.
func (c *Controller) read(ctx context.Context, r *run, doc *document.Document, pos int64) error {
	for {
		if c.isCancelled(ctx) {
			return context.Canceled
		}

		chunk := doc.ReadChunk(pos, c.cfg.ChunkSize)
		if chunk == "" {
			c.checkpoint(r, doc, pos)
			return nil
		}

		atEOF := pos+int64(len(chunk)) >= doc.Size()
		if !atEOF {
			// Leave a sentence cut by the chunk boundary for the next read.
			if n := text.LastBoundary(chunk); n > 0 {
				chunk = chunk[:n]
			}
		}

		spans := text.SplitSpans(chunk, c.cfg.MaxSentenceBytes)
		if len(spans) == 0 {
			c.metrics.BytesSkipped(len(chunk))
			pos += int64(len(chunk))
			c.setLive(pos)
			continue
		}

		for _, span := range spans {
			if c.isCancelled(ctx) {
				return context.Canceled
			}
			if strings.TrimSpace(span.Text) == "" {
				continue
			}

			c.checkpoint(r, doc, pos+int64(span.Start))
			if err := c.speak(ctx, span.Text); err != nil {
				return err
			}

			c.metrics.SentenceSpoken(span.End - span.Start)
			c.setLive(pos + int64(span.End))
		}

		pos += int64(spans[len(spans)-1].End)
	}
}

// speak synthesizes and plays one sentence chunk.
func (c *Controller) speak(ctx context.Context, sentence string) error {
	voice := c.voiceParams()
	speech := text.Sanitize(strings.ToValidUTF8(sentence, "\uFFFD"))

	started := time.Now()
	result, err := c.engine.Synthesize(ctx, tts.SynthesizeRequest{Text: speech, Voice: voice})
	c.metrics.ObserveSynthesis(time.Since(started))
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		c.metrics.SessionError("synthesis")
		return err
	}

	if c.isCancelled(ctx) {
		return context.Canceled
	}

	started = time.Now()
	err = c.player.Play(ctx, result.Data, voice.Volume)
	c.metrics.ObservePlayback(time.Since(started))
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		c.metrics.SessionError("playback")
		return err
	}
	return nil
}

// voiceParams reads the current voice parameters for each sentence so
// updates apply without restarting the session.
func (c *Controller) voiceParams() tts.VoiceParams {
	voice, err := c.store.VoiceParams()
	if err != nil {
		c.logger.Warn("failed to load voice parameters, using defaults", "error", err)
		voice = tts.DefaultVoiceParams()
	}
	if voice.VoiceModel == "" {
		voice.VoiceModel = c.cfg.DefaultVoiceModel
	}
	return voice
}

func (c *Controller) setLive(pos int64) {
	c.mu.Lock()
	c.position = pos
	c.mu.Unlock()
}

// checkpoint records pos as both the live and the persisted position.
// A store failure is logged and does not end the session.
func (c *Controller) checkpoint(r *run, doc *document.Document, pos int64) {
	c.setLive(pos)
	if err := c.store.SetLastPosition(doc.Path(), pos); err != nil {
		c.metrics.SessionError("checkpoint")
		c.logger.Warn("failed to save checkpoint", "session_id", r.id, "position", pos, "error", err)
	}
}
