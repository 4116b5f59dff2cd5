package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/config"
	"github.com/Micheline922/kairo/internal/devotion"
	"github.com/Micheline922/kairo/internal/flow"
	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/gemini/geminitest"
	"github.com/Micheline922/kairo/internal/lock"
	"github.com/Micheline922/kairo/internal/metrics"
	"github.com/Micheline922/kairo/internal/store"
	"github.com/Micheline922/kairo/internal/verses"
)

const (
	testJWTSecret = "test-jwt-secret-that-is-long-enough-for-hs256"
	testPassword  = "Shalom-2026"
)

type testEnv struct {
	t       *testing.T
	srv     *httptest.Server
	gemini  *geminitest.Server
	metrics *metrics.Metrics
	server  *HTTPServer
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.GenAI.APIKey = "test-key"
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.Reauth = "static"
	cfg.Store.SQLitePath = ":memory:"
	cfg.RateLimit.RequestsPerSecond = 100
	cfg.RateLimit.Burst = 100
	for _, m := range mutate {
		m(cfg)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gsrv := geminitest.NewServer(t)
	client, err := gemini.NewClient(context.Background(), gemini.Config{
		APIKey:      cfg.GenAI.APIKey,
		BaseURL:     gsrv.URL,
		TextModel:   cfg.GenAI.TextModel,
		SpeechModel: cfg.GenAI.SpeechModel,
		Timeout:     5 * time.Second,
		BaseBackoff: time.Millisecond,
	}, m, logger)
	require.NoError(t, err)

	backend, err := store.NewSQLiteBackend(cfg.Store.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	flows := flow.NewRegistry(client, flow.WithMetrics(m), flow.WithLogger(logger))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	reauth, err := auth.NewStaticReauthenticator(map[string]string{
		"marie@example.com": string(hash),
		"paul@example.com":  string(hash),
	})
	require.NoError(t, err)

	locks, err := lock.NewManager(reauth, lock.Config{TTL: time.Minute}, m, logger)
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, logger)
	require.NoError(t, err)

	h, err := NewHTTPServer(Deps{
		Config:   cfg,
		Flows:    flows,
		Devotion: devotion.NewService(backend, flows, m),
		Locks:    locks,
		Verifier: verifier,
		Backend:  backend,
		Stats:    client,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{t: t, srv: srv, gemini: gsrv, metrics: m, server: h}
}

func (e *testEnv) token(userID, email string) string {
	e.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(e.t, err)
	return token
}

// do sends a request and decodes a JSON response body into out, if given
func (e *testEnv) do(method, path, token string, body interface{}, headers map[string]string, out interface{}) int {
	e.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNewHTTPServerRequiresDeps(t *testing.T) {
	_, err := NewHTTPServer(Deps{})
	assert.Error(t, err)
}

func TestMonitoringEndpoints(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.GenAI.APIKey = "very-secret-key"
	})

	var root map[string]interface{}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", "", nil, nil, &root))
	assert.Equal(t, "Kairo API", root["service"])

	var health map[string]interface{}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "", nil, nil, &health))
	assert.Equal(t, "healthy", health["status"])
	components := health["components"].(map[string]interface{})
	assert.Contains(t, components, "store")
	assert.Contains(t, components, "model")

	resp, err := http.Get(env.srv.URL + "/config")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "very-secret-key")
	assert.NotContains(t, string(body), testJWTSecret)
	assert.Contains(t, string(body), "gemini-2.5-flash")

	var stats map[string]interface{}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/stats", "", nil, nil, &stats))
	assert.Contains(t, stats, "model")

	resp, err = http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "kairo_http_requests_total")

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("GET", "/health", "200")))
}

func TestDailyVerse(t *testing.T) {
	env := newTestEnv(t)

	var v verses.Verse
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/verses/daily?date=2026-10-16&lang=sw", "", nil, nil, &v))
	assert.Equal(t, verses.Today(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), "sw"), v)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/verses/daily?lang=xx", "", nil, nil, &v))
	assert.Equal(t, "fr", v.Language)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/verses/daily?random=true&lang=en", "", nil, nil, &v))
	assert.Equal(t, "en", v.Language)

	var errBody map[string]interface{}
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/verses/daily?date=16/10/2026", "", nil, nil, &errBody))
	assert.NotEmpty(t, errBody["error"])
}

func TestListFlows(t *testing.T) {
	env := newTestEnv(t)

	var out struct {
		Flows []string `json:"flows"`
		Total int      `json:"total"`
	}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/flows", "", nil, nil, &out))
	assert.Equal(t, 7, out.Total)
	assert.Contains(t, out.Flows, "semanticBibleSearch")
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/pearls", "/api/v1/journal", "/api/v1/journal/lock"} {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, path, "", nil, nil, nil), path)
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, path, "not-a-token", nil, nil, nil), path)
	}
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/v1/flows/explainConcept", "", `{"concept":"Grâce"}`, nil, nil))
}

func TestRunFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.token("user-1", "marie@example.com")

	env.gemini.QueueText(`{"explanation":"La grâce est un don immérité."}`)
	var out flow.ConceptExplanation
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/flows/explainConcept", token, `{"concept":"Grâce","language":"fr"}`, nil, &out))
	assert.Equal(t, "La grâce est un don immérité.", out.Explanation)

	var errBody struct {
		Error  string            `json:"error"`
		Fields []flow.FieldError `json:"fields"`
	}
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/flows/explainConcept", token, `{"concept":"G"}`, nil, &errBody))
	require.Len(t, errBody.Fields, 1)
	assert.Equal(t, "concept", errBody.Fields[0].Field)
	assert.Equal(t, "min", errBody.Fields[0].Rule)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/flows/explainConcept", token, `{"concept":`, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/v1/flows/prophesy", token, `{}`, nil, nil))

	env.gemini.QueueText(`{"verses":[{"book":"Jean","chapter":"trois","verse":16,"text":"..."}]}`)
	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodPost, "/api/v1/flows/semanticBibleSearch", token, `{"query":"amour de Dieu"}`, nil, nil))
}

func TestFlowRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimit.RequestsPerSecond = 0.001
		c.RateLimit.Burst = 2
	})
	env.gemini.QueueText(`{"guidance":"Attends dans la paix."}`)
	body := `{"decisionContext":"Dois-je accepter ce nouveau poste loin de ma famille ?"}`

	marie := env.token("user-1", "marie@example.com")
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/flows/discernGodsWill", marie, body, nil, nil))
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/flows/discernGodsWill", marie, body, nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, "/api/v1/flows/discernGodsWill", marie, body, nil, nil))

	paul := env.token("user-2", "paul@example.com")
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/flows/discernGodsWill", paul, body, nil, nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RateLimited.WithLabelValues("/api/v1/flows/{name}")))
	assert.Equal(t, 2, env.server.limiter.Len())
}

func TestJournalLocking(t *testing.T) {
	env := newTestEnv(t)
	token := env.token("user-1", "marie@example.com")
	entry := map[string]string{
		"title":   "Matin calme",
		"content": "Je me sens loin de Dieu ces derniers temps.",
	}

	assert.Equal(t, http.StatusLocked, env.do(http.MethodGet, "/api/v1/journal", token, nil, nil, nil))
	assert.Equal(t, http.StatusLocked, env.do(http.MethodPost, "/api/v1/journal", token, entry, nil, nil))

	var status lock.Status
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/journal/lock", token, nil, nil, &status))
	assert.False(t, status.Unlocked)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/v1/journal/unlock", token, map[string]string{"password": "wrong"}, nil, nil))
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/journal/lock", token, nil, nil, &status))
	assert.Equal(t, 1, status.FailedAttempts)

	var unlocked struct {
		Token     string     `json:"token"`
		Header    string     `json:"header"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/journal/unlock", token, map[string]string{"password": testPassword}, nil, &unlocked))
	require.NotEmpty(t, unlocked.Token)
	assert.Equal(t, "X-Journal-Unlock", unlocked.Header)
	assert.NotNil(t, unlocked.ExpiresAt)

	unlock := map[string]string{"X-Journal-Unlock": unlocked.Token}

	var created devotion.JournalEntry
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/journal", token, entry, unlock, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Je me sens loin de Dieu ces derniers temps....", created.Excerpt)

	var list struct {
		Items []devotion.JournalEntry `json:"items"`
		Total int                     `json:"total"`
	}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/journal", token, nil, unlock, &list))
	assert.Equal(t, 1, list.Total)

	env.gemini.QueueText(`{"spiritualClimate":"Aridité","wordOfLightVerses":"Psaume 42:2","empatheticOrientation":"Il est proche."}`)
	var analysis flow.JournalAnalysis
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/journal/"+created.ID+"/analyze?lang=fr", token, nil, unlock, &analysis))
	assert.Equal(t, "Aridité", analysis.SpiritualClimate)

	// another user's token does not open this journal
	paul := env.token("user-2", "paul@example.com")
	assert.Equal(t, http.StatusLocked, env.do(http.MethodGet, "/api/v1/journal", paul, nil, unlock, nil))

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/journal/lock", token, nil, nil, &status))
	assert.False(t, status.Unlocked)
	assert.Equal(t, http.StatusLocked, env.do(http.MethodGet, "/api/v1/journal/"+created.ID, token, nil, unlock, nil))
}

func TestCollections(t *testing.T) {
	env := newTestEnv(t)
	marie := env.token("user-1", "marie@example.com")
	paul := env.token("user-2", "paul@example.com")

	var pearl devotion.Pearl
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/pearls", marie, map[string]string{
		"verseReference": "Psaume 23:1",
		"verseText":      "L'Éternel est mon berger: je ne manquerai de rien.",
		"notes":          "Paix",
	}, nil, &pearl))
	assert.NotEmpty(t, pearl.ID)

	var got devotion.Pearl
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/pearls/"+pearl.ID, marie, nil, nil, &got))
	assert.Equal(t, "Psaume 23:1", got.VerseReference)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/pearls/"+pearl.ID, paul, nil, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/v1/pearls/"+pearl.ID, paul, nil, nil, nil))

	var errBody struct {
		Error  string            `json:"error"`
		Fields []flow.FieldError `json:"fields"`
	}
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/prayer-plans", marie, map[string]string{
		"title": "Laudes", "time": "06:00", "intention": "moi",
	}, nil, &errBody))
	require.NotEmpty(t, errBody.Fields)
	assert.Equal(t, "intention", errBody.Fields[0].Field)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/pearls", marie, map[string]string{
		"verseReference": "Jean 3:16", "verseText": "Car Dieu a tant aimé le monde", "colour": "blue",
	}, nil, nil))

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/v1/pearls/"+pearl.ID, marie, nil, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/pearls/"+pearl.ID, marie, nil, nil, nil))

	var list struct {
		Items []devotion.Pearl `json:"items"`
		Total int              `json:"total"`
	}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/pearls", marie, nil, nil, &list))
	assert.Equal(t, 0, list.Total)
	assert.NotNil(t, list.Items)
}

func TestPrayersAndFasts(t *testing.T) {
	env := newTestEnv(t)
	token := env.token("user-1", "marie@example.com")

	var prayer devotion.PrayerRequest
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/prayers", token, map[string]interface{}{
		"requestText": "Pour la guérison de ma mère",
	}, nil, &prayer))
	assert.False(t, prayer.IsAnswered)

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/prayers/"+prayer.ID+"/answer", token, nil, nil, &prayer))
	assert.True(t, prayer.IsAnswered)
	assert.NotNil(t, prayer.AnsweredDate)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/v1/prayers/missing/answer", token, nil, nil, nil))

	env.gemini.QueueText(`{"readingPlan":"Jour 1: Ésaïe 58"}`)
	var fast devotion.Fast
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/fasts/plan", token, map[string]interface{}{
		"duration": "3 jours",
		"type":     "Jeûne partiel",
		"purpose":  "Chercher la direction pour ma famille",
		"language": "fr",
	}, nil, &fast))
	assert.Equal(t, "Jour 1: Ésaïe 58", fast.ReadingPlan)
	assert.Equal(t, 0, fast.Progress)

	assert.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/v1/fasts/"+fast.ID+"/progress", token, map[string]int{"progress": 60}, nil, &fast))
	assert.Equal(t, 60, fast.Progress)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, "/api/v1/fasts/"+fast.ID+"/progress", token, map[string]int{"progress": 120}, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, "/api/v1/fasts/"+fast.ID+"/progress", token, `{}`, nil, nil))

	var list struct {
		Items []devotion.Fast `json:"items"`
	}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/fasts", token, nil, nil, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, 60, list.Items[0].Progress)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{flow.ErrUnknownFlow, http.StatusNotFound},
		{lock.ErrLocked, http.StatusLocked},
		{auth.ErrInvalidCredentials, http.StatusForbidden},
		{gemini.ErrSchemaMismatch, http.StatusBadGateway},
		{flow.ErrNoAudio, http.StatusBadGateway},
		{devotion.ErrInvalidProgress, http.StatusBadRequest},
		{&flow.ValidationError{Flow: "x", Err: io.EOF}, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusTeapot},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err, http.StatusTeapot), tt.err.Error())
	}
}

func TestUserLimiterCleanup(t *testing.T) {
	l := newUserLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	now = now.Add(5 * time.Minute)
	assert.True(t, l.Allow("b"))

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, l.Cleanup(10*time.Minute))
	assert.Equal(t, 1, l.Len())

	unlimited := newUserLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow("a"))
	}
}
