package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/genai"

	"github.com/Micheline922/kairo/internal/audio"
	"github.com/Micheline922/kairo/internal/metrics"
)

var (
	// ErrEmptyResponse is returned when the model answers without usable content
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrSchemaMismatch is returned when a JSON response does not match the requested schema
	ErrSchemaMismatch = errors.New("response does not match schema")
)

const (
	kindText   = "text"
	kindSpeech = "speech"

	maxBackoff = 30 * time.Second
)

// Generator is the model surface the flows depend on
type Generator interface {
	GenerateJSON(ctx context.Context, req JSONRequest) ([]byte, error)
	Synthesize(ctx context.Context, req SpeechRequest) (*Speech, error)
}

// Config contains model client configuration
type Config struct {
	APIKey        string
	BaseURL       string // optional, used to point the client at a proxy or a fake
	TextModel     string
	SpeechModel   string
	Voice         string
	Temperature   float32
	Timeout       time.Duration // per attempt
	MaxRetries    int
	MaxConcurrent int
	BaseBackoff   time.Duration
}

// JSONRequest asks the text model for a JSON document
type JSONRequest struct {
	Prompt string
	System string
	Schema *genai.Schema
}

// SpeechRequest asks the speech model to read Text aloud
type SpeechRequest struct {
	Text  string
	Voice string // empty selects the configured voice
}

// Speech is raw PCM returned by the speech model
type Speech struct {
	PCM        []byte
	MIMEType   string
	SampleRate int
}

// ClientStats are the model request counters shown on /stats and /health
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// Client calls the Gemini API for JSON generation and speech synthesis
type Client struct {
	config    Config
	models    *genai.Models
	semaphore chan struct{}
	metrics   *metrics.Metrics
	logger    *slog.Logger

	requests  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
	retries   atomic.Uint64

	latencyMu  sync.Mutex
	avgLatency time.Duration
}

// NewClient creates a new model client. metrics may be nil.
func NewClient(ctx context.Context, config Config, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.TextModel == "" || config.SpeechModel == "" {
		return nil, fmt.Errorf("text and speech models must be set")
	}

	if config.Voice == "" {
		config.Voice = "Algenib"
	}

	if config.Timeout <= 0 {
		config.Timeout = 90 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}

	if config.BaseBackoff <= 0 {
		config.BaseBackoff = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		config:    config,
		models:    client.Models,
		semaphore: make(chan struct{}, config.MaxConcurrent),
		metrics:   m,
		logger:    logger.With(slog.String("component", "gemini")),
	}, nil
}

// GenerateJSON asks the text model for a JSON document. When a schema is
// given the response is checked against it before being returned.
func (c *Client) GenerateJSON(ctx context.Context, req JSONRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	}
	if c.config.Temperature > 0 {
		cfg.Temperature = genai.Ptr(c.config.Temperature)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	var raw []byte
	err := c.do(ctx, kindText, func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, c.config.TextModel, genai.Text(req.Prompt), cfg)
		if err != nil {
			return err
		}
		text := trimFence(resp.Text())
		if text == "" {
			return ErrEmptyResponse
		}
		raw = []byte(text)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Schema != nil {
		if err := Conform(raw, req.Schema); err != nil {
			return nil, err
		}
	}

	return raw, nil
}

// Synthesize converts text to speech and returns the raw PCM
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (*Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("speech text cannot be empty")
	}

	voice := req.Voice
	if voice == "" {
		voice = c.config.Voice
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	var speech *Speech
	err := c.do(ctx, kindSpeech, func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, c.config.SpeechModel, genai.Text(req.Text), cfg)
		if err != nil {
			return err
		}
		s, err := extractSpeech(resp)
		if err != nil {
			return err
		}
		speech = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return speech, nil
}

// do runs call under the concurrency semaphore, retrying retryable failures
// with exponential backoff
func (c *Client) do(ctx context.Context, kind string, call func(ctx context.Context) error) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	startTime := time.Now()
	c.requests.Add(1)

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.retries.Add(1)
			c.metrics.RecordModelRetry(kind)

			backoffTime := c.backoff(attempt)
			c.logger.Debug("Retrying model request",
				slog.String("kind", kind),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoffTime),
				slog.String("error", lastErr.Error()))

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		err := call(attemptCtx)
		cancel()

		if err == nil {
			elapsed := time.Since(startTime)
			c.successes.Add(1)
			c.observeLatency(elapsed)
			c.metrics.RecordModelRequest(kind, true, elapsed.Seconds())
			return nil
		}

		lastErr = err

		if ctx.Err() != nil || !isRetryableError(err) {
			break
		}
	}

	c.failures.Add(1)
	c.metrics.RecordModelRequest(kind, false, time.Since(startTime).Seconds())
	return fmt.Errorf("%s request failed: %w", kind, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.BaseBackoff
	if backoffTime > maxBackoff {
		backoffTime = maxBackoff
	}
	return backoffTime
}

// isRetryableError reports whether a failed attempt is worth repeating:
// rate limiting, server errors, timeouts and network failures are
func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// extractSpeech pulls the first audio payload out of a speech response.
// Audio arrives either as inline bytes or as a base64 data URI.
func extractSpeech(resp *genai.GenerateContentResponse) (*Speech, error) {
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return newSpeech(part.InlineData.Data, part.InlineData.MIMEType), nil
			}
			if part.FileData != nil && strings.HasPrefix(part.FileData.FileURI, "data:") {
				mimeType, data, err := audio.ParseDataURI(part.FileData.FileURI)
				if err != nil {
					return nil, fmt.Errorf("invalid audio data URI: %w", err)
				}
				if len(data) > 0 {
					return newSpeech(data, mimeType), nil
				}
			}
		}
	}
	return nil, ErrEmptyResponse
}

func newSpeech(pcm []byte, mimeType string) *Speech {
	return &Speech{
		PCM:        pcm,
		MIMEType:   mimeType,
		SampleRate: SampleRateFromMIME(mimeType),
	}
}

// SampleRateFromMIME reads the rate parameter of an audio MIME type such as
// "audio/L16;codec=pcm;rate=24000", defaulting to 24000 Hz
func SampleRateFromMIME(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return audio.DefaultSpeechFormat.SampleRate
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return audio.DefaultSpeechFormat.SampleRate
	}
	return rate
}

func trimFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// observeLatency folds d into an exponentially weighted average
func (c *Client) observeLatency(d time.Duration) {
	c.latencyMu.Lock()
	defer c.latencyMu.Unlock()

	if c.avgLatency == 0 {
		c.avgLatency = d
		return
	}
	c.avgLatency += (d - c.avgLatency) / 5
}

// GetStats returns a snapshot of the request counters
func (c *Client) GetStats() ClientStats {
	stats := ClientStats{
		TotalRequests:   c.requests.Load(),
		SuccessRequests: c.successes.Load(),
		FailedRequests:  c.failures.Load(),
		TotalRetries:    c.retries.Load(),
		ActiveRequests:  len(c.semaphore),
	}
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessRequests) / float64(stats.TotalRequests) * 100
	}

	c.latencyMu.Lock()
	stats.AvgResponseTime = c.avgLatency
	c.latencyMu.Unlock()

	return stats
}
