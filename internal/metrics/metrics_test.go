package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SentenceSpoken(10)
		m.BytesSkipped(3)
		m.ObserveSynthesis(time.Second)
		m.ObservePlayback(time.Second)
		m.SessionStarted()
		m.SessionEnded("completed")
		m.SessionError("synthesis")
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.SentenceSpoken(10)
	m.SentenceSpoken(5)
	m.BytesSkipped(3)
	m.SessionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playing))

	m.SessionError("playback")
	m.SessionEnded("failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sentencesSpoken))
	assert.Equal(t, 18.0, testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.playing))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionErrors.WithLabelValues("playback")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SentenceSpoken(1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "readaloud_sentences_spoken_total")
	assert.Contains(t, string(body), "go_goroutines")
}
