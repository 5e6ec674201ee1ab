package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgnsrekt/readaloud-go/internal/config"
	"github.com/dgnsrekt/readaloud-go/internal/document"
	"github.com/dgnsrekt/readaloud-go/internal/logging"
	"github.com/dgnsrekt/readaloud-go/internal/metrics"
	"github.com/dgnsrekt/readaloud-go/internal/session"
	"github.com/dgnsrekt/readaloud-go/internal/store"
	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

type fakeController struct {
	mu       sync.Mutex
	doc      *document.Document
	position int64
	playing  bool
	started  []int64
	err      error
}

func (f *fakeController) Open(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	doc, err := document.Open(path)
	if err != nil {
		return err
	}
	f.doc = doc
	return nil
}

func (f *fakeController) Start(pos int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.doc == nil {
		return session.ErrNoDocument
	}
	f.started = append(f.started, pos)
	f.playing = true
	return nil
}

func (f *fakeController) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return f.err
}

func (f *fakeController) Stop() error { return f.Pause() }

func (f *fakeController) SetPosition(pos int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doc == nil {
		return session.ErrNoDocument
	}
	if pos < 0 || pos > f.doc.Size() {
		return session.ErrInvalidPosition
	}
	f.position = pos
	return nil
}

func (f *fakeController) CurrentPosition() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeController) Document() *document.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc
}

func (f *fakeController) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := session.Status{State: session.StateIdle, Position: f.position}
	if f.playing {
		st.State = session.StatePlaying
	}
	if f.doc != nil {
		st.Path = f.doc.Path()
		st.Size = f.doc.Size()
	}
	return st
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:    8080,
		BearerToken: "test-token",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

type testEnv struct {
	srv   *Server
	ctrl  *fakeController
	store *store.JSONStore
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := logging.New("error", "text") // quiet logger for tests
	st := store.NewJSONStore(filepath.Join(t.TempDir(), "app_config.json"), logger)
	ctrl := &fakeController{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return &testEnv{srv: New(cfg, logger, ctrl, st, m), ctrl: ctrl, store: st}
}

func testServer(cfg *config.Config) *Server {
	logger := logging.New("error", "text")
	return New(cfg, logger, &fakeController{}, nil, nil)
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func writeTestDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv := testServer(testConfig())

	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	w := httptest.NewRecorder()

	srv.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeBody[HealthResponse](t, w)
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestHealthzSkipsAuth(t *testing.T) {
	srv := testServer(testConfig())

	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	srv := testServer(testConfig())

	req := httptest.NewRequest("GET", "/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestOpenAndStatus(t *testing.T) {
	env := newTestEnv(t, testConfig())
	path := writeTestDoc(t, "Hello there.")

	w := env.do(t, "POST", "/v1/open", `{"path":"`+path+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	w = env.do(t, "GET", "/v1/status", "")
	st := decodeBody[session.Status](t, w)
	if st.Path != path {
		t.Errorf("expected path %s, got %s", path, st.Path)
	}
	if st.Size != int64(len("Hello there.")) {
		t.Errorf("expected size %d, got %d", len("Hello there."), st.Size)
	}
	if st.State != session.StateIdle {
		t.Errorf("expected idle, got %s", st.State)
	}
}

func TestOpenValidation(t *testing.T) {
	env := newTestEnv(t, testConfig())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{bad`, http.StatusBadRequest},
		{"missing path", `{}`, http.StatusBadRequest},
		{"missing file", `{"path":"/definitely/not/here.txt"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/v1/open", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestStartWithoutDocument(t *testing.T) {
	env := newTestEnv(t, testConfig())

	w := env.do(t, "POST", "/v1/start", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if !strings.Contains(resp.Error, "no document") {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestStartPositions(t *testing.T) {
	env := newTestEnv(t, testConfig())
	path := writeTestDoc(t, "line one\nline two\n")
	if err := env.ctrl.Open(path); err != nil {
		t.Fatal(err)
	}
	env.ctrl.position = 7

	tests := []struct {
		name string
		body string
		want int64
	}{
		{"empty body starts at zero", "", 0},
		{"explicit position", `{"position":12}`, 12},
		{"resume", `{"resume":true}`, 7},
		{"line start", `{"position":12,"line_start":true}`, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/v1/start", tt.body)
			if w.Code != http.StatusAccepted {
				t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
			}
			got := env.ctrl.started[len(env.ctrl.started)-1]
			if got != tt.want {
				t.Errorf("expected start at %d, got %d", tt.want, got)
			}
		})
	}
}

func TestStartLineStartOutOfRange(t *testing.T) {
	env := newTestEnv(t, testConfig())
	if err := env.ctrl.Open(writeTestDoc(t, "line one\nline two\n")); err != nil {
		t.Fatal(err)
	}

	for _, body := range []string{`{"position":500,"line_start":true}`, `{"position":-3,"line_start":true}`} {
		w := env.do(t, "POST", "/v1/start", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
	}
	if len(env.ctrl.started) != 0 {
		t.Errorf("expected no session started, got %v", env.ctrl.started)
	}
}

func TestStartInvalidJSON(t *testing.T) {
	env := newTestEnv(t, testConfig())

	w := env.do(t, "POST", "/v1/start", `{"position":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestStartStopTimeout(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.ctrl.doc, _ = document.Open(writeTestDoc(t, "x"))
	env.ctrl.err = session.ErrStopTimeout

	w := env.do(t, "POST", "/v1/start", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestPauseAndStop(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.ctrl.playing = true

	w := env.do(t, "POST", "/v1/pause", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if st := decodeBody[session.Status](t, w); st.State != session.StateIdle {
		t.Errorf("expected idle after pause, got %s", st.State)
	}

	w = env.do(t, "POST", "/v1/stop", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestSetPosition(t *testing.T) {
	env := newTestEnv(t, testConfig())
	if err := env.ctrl.Open(writeTestDoc(t, "0123456789")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"position":4}`, http.StatusOK},
		{"missing", `{}`, http.StatusBadRequest},
		{"out of range", `{"position":99}`, http.StatusBadRequest},
		{"invalid json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "PUT", "/v1/position", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	if got := env.ctrl.CurrentPosition(); got != 4 {
		t.Errorf("expected position 4, got %d", got)
	}
}

func TestVoiceGetAndUpdate(t *testing.T) {
	env := newTestEnv(t, testConfig())

	w := env.do(t, "GET", "/v1/voice", "")
	if got := decodeBody[tts.VoiceParams](t, w); got != tts.DefaultVoiceParams() {
		t.Errorf("expected defaults, got %+v", got)
	}

	w = env.do(t, "PUT", "/v1/voice", `{"rate":1.2,"voice_model":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	want := tts.VoiceParams{Rate: 1.2, Pitch: 1, Volume: 1, VoiceModel: "x"}
	if got := decodeBody[tts.VoiceParams](t, w); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	stored, err := env.store.VoiceParams()
	if err != nil {
		t.Fatal(err)
	}
	if stored != want {
		t.Errorf("expected stored %+v, got %+v", want, stored)
	}
}

func TestVoiceUpdateRejectsInvalid(t *testing.T) {
	env := newTestEnv(t, testConfig())

	w := env.do(t, "PUT", "/v1/voice", `{"volume":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "readaloud_sentences_spoken_total") {
		t.Error("expected readaloud metrics in output")
	}
}
