package gemini_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/gemini/geminitest"
	"github.com/Micheline922/kairo/internal/metrics"
)

func newTestClient(t *testing.T, srv *geminitest.Server, m *metrics.Metrics) *gemini.Client {
	t.Helper()
	client, err := gemini.NewClient(context.Background(), gemini.Config{
		APIKey:        "test-key",
		BaseURL:       srv.URL,
		TextModel:     "gemini-2.5-flash",
		SpeechModel:   "gemini-2.5-flash-preview-tts",
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		MaxConcurrent: 2,
		BaseBackoff:   time.Millisecond,
	}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

var guidanceSchema = gemini.Object(map[string]*genai.Schema{
	"guidance": gemini.String("Pastoral guidance"),
})

func TestNewClientValidation(t *testing.T) {
	_, err := gemini.NewClient(context.Background(), gemini.Config{TextModel: "a", SpeechModel: "b"}, nil, nil)
	assert.Error(t, err)

	_, err = gemini.NewClient(context.Background(), gemini.Config{APIKey: "k"}, nil, nil)
	assert.Error(t, err)
}

func TestGenerateJSON(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.QueueText(`{"guidance":"Attends dans la paix."}`)
	client := newTestClient(t, srv, nil)

	raw, err := client.GenerateJSON(context.Background(), gemini.JSONRequest{
		Prompt: "Help me decide",
		System: "You are a pastor",
		Schema: guidanceSchema,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"guidance":"Attends dans la paix."}`, string(raw))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gemini-2.5-flash", reqs[0].Model)
	assert.Equal(t, "Help me decide", reqs[0].Prompt)
	assert.Equal(t, "You are a pastor", reqs[0].System)
	assert.Equal(t, "application/json", reqs[0].MIMEType)
	assert.False(t, reqs[0].Audio)

	stats := client.GetStats()
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.SuccessRequests)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestGenerateJSONSchemaMismatch(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.QueueText(`{"advice":"wrong field"}`)
	client := newTestClient(t, srv, nil)

	_, err := client.GenerateJSON(context.Background(), gemini.JSONRequest{Prompt: "p", Schema: guidanceSchema})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gemini.ErrSchemaMismatch))
	assert.Len(t, srv.Requests(), 1, "schema mismatches are not retried")
}

func TestGenerateJSONEmptyResponse(t *testing.T) {
	srv := geminitest.NewServer(t)
	client := newTestClient(t, srv, nil)

	_, err := client.GenerateJSON(context.Background(), gemini.JSONRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gemini.ErrEmptyResponse))
	assert.Equal(t, uint64(1), client.GetStats().FailedRequests)
}

func TestGenerateJSONRetriesServerErrors(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.FailNext(http.StatusServiceUnavailable, http.StatusTooManyRequests)
	srv.QueueText(`{"guidance":"ok"}`)
	m := metrics.New(prometheus.NewRegistry())
	client := newTestClient(t, srv, m)

	raw, err := client.GenerateJSON(context.Background(), gemini.JSONRequest{Prompt: "p", Schema: guidanceSchema})
	require.NoError(t, err)
	assert.JSONEq(t, `{"guidance":"ok"}`, string(raw))
	assert.Len(t, srv.Requests(), 3)
	assert.Equal(t, uint64(2), client.GetStats().TotalRetries)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ModelRetries.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelRequests.WithLabelValues("text", "success")))
}

func TestGenerateJSONDoesNotRetryClientErrors(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.FailNext(http.StatusBadRequest)
	srv.QueueText(`{"guidance":"never reached"}`)
	client := newTestClient(t, srv, nil)

	_, err := client.GenerateJSON(context.Background(), gemini.JSONRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Len(t, srv.Requests(), 1)
}

func TestGenerateJSONGivesUpAfterMaxRetries(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.FailNext(http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)
	client := newTestClient(t, srv, nil)

	_, err := client.GenerateJSON(context.Background(), gemini.JSONRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Len(t, srv.Requests(), 3)
	assert.Equal(t, uint64(1), client.GetStats().FailedRequests)
}

func TestSynthesize(t *testing.T) {
	srv := geminitest.NewServer(t)
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	srv.SetAudio(pcm, "")
	client := newTestClient(t, srv, nil)

	speech, err := client.Synthesize(context.Background(), gemini.SpeechRequest{Text: "Respire lentement."})
	require.NoError(t, err)
	assert.Equal(t, pcm, speech.PCM)
	assert.Equal(t, 24000, speech.SampleRate)
	assert.Equal(t, geminitest.DefaultAudioMIME, speech.MIMEType)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Audio)
	assert.Equal(t, "Algenib", reqs[0].Voice)
	assert.Equal(t, "gemini-2.5-flash-preview-tts", reqs[0].Model)
}

func TestSynthesizeVoiceOverride(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.SetAudio([]byte{0, 0}, "audio/L16;codec=pcm;rate=16000")
	client := newTestClient(t, srv, nil)

	speech, err := client.Synthesize(context.Background(), gemini.SpeechRequest{Text: "x", Voice: "Kore"})
	require.NoError(t, err)
	assert.Equal(t, 16000, speech.SampleRate)
	assert.Equal(t, "Kore", srv.Requests()[0].Voice)
}

func TestSynthesizeWithoutAudio(t *testing.T) {
	srv := geminitest.NewServer(t)
	client := newTestClient(t, srv, nil)

	_, err := client.Synthesize(context.Background(), gemini.SpeechRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gemini.ErrEmptyResponse))
}

func TestContextCancellation(t *testing.T) {
	srv := geminitest.NewServer(t)
	srv.QueueText(`{"guidance":"ok"}`)
	client := newTestClient(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GenerateJSON(ctx, gemini.JSONRequest{Prompt: "p"})
	assert.Error(t, err)
}
