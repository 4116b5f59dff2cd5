package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"

	"github.com/Micheline922/kairo/internal/audio"
	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/metrics"
	"github.com/Micheline922/kairo/internal/prompt"
)

type runner func(ctx context.Context, raw json.RawMessage) (interface{}, error)

// Registry runs the AI flows. It is safe for concurrent use.
type Registry struct {
	gen      gemini.Generator
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *slog.Logger
	voice    string
	format   audio.Format
	flows    map[string]runner
}

// Option configures a Registry
type Option func(*Registry)

// WithVoice sets the prebuilt voice used for meditations
func WithVoice(voice string) Option {
	return func(r *Registry) { r.voice = voice }
}

// WithSpeechFormat sets the PCM layout the speech model returns. A sample
// rate announced in the speech MIME type still takes precedence.
func WithSpeechFormat(f audio.Format) Option {
	return func(r *Registry) { r.format = f }
}

// WithMetrics records flow runs into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a registry with every flow bound to gen
func NewRegistry(gen gemini.Generator, opts ...Option) *Registry {
	r := &Registry{
		gen:      gen,
		validate: NewValidator(),
		logger:   slog.Default(),
		format:   audio.DefaultSpeechFormat,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "flow"))

	r.flows = map[string]runner{
		AnalyzeSpiritualJournalFlow: bind(AnalyzeSpiritualJournalFlow, r.AnalyzeSpiritualJournal),
		GenerateReadingPlanFlow:     bind(GenerateReadingPlanFlow, r.GenerateReadingPlan),
		DiscernGodsWillFlow:         bind(DiscernGodsWillFlow, r.DiscernGodsWill),
		EnhanceArticleFlow:          bind(EnhanceArticleFlow, r.EnhanceArticle),
		ExplainConceptFlow:          bind(ExplainConceptFlow, r.ExplainConcept),
		SemanticBibleSearchFlow:     bind(SemanticBibleSearchFlow, r.SemanticBibleSearch),
		GenerateMeditationAudioFlow: bind(GenerateMeditationAudioFlow, r.GenerateMeditationAudio),
	}

	return r
}

// NewValidator returns a validator that reports fields by their JSON name
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Names returns the registered flow names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run decodes raw into the input of the named flow and runs it
func (r *Registry) Run(ctx context.Context, name string, raw json.RawMessage) (interface{}, error) {
	run, ok := r.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	return run(ctx, raw)
}

func bind[In any, Out any](name string, fn func(context.Context, In) (*Out, error)) runner {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var in In
		if err := decodeInput(raw, &in); err != nil {
			return nil, &ValidationError{Flow: name, Err: err}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func decodeInput(raw json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("input is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}
	return nil
}

// observe times fn and records its outcome under the flow name
func (r *Registry) observe(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	r.metrics.RecordFlow(name, err == nil, elapsed.Seconds())

	var verr *ValidationError
	switch {
	case err == nil:
		r.logger.Info("Flow completed",
			slog.String("flow", name),
			slog.Duration("duration", elapsed))
	case errors.As(err, &verr):
		r.logger.Debug("Flow input rejected",
			slog.String("flow", name),
			slog.String("error", err.Error()))
	default:
		r.logger.Error("Flow failed",
			slog.String("flow", name),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
	}

	return err
}

// generate validates in, renders the prompt and decodes the model's JSON
// answer into Out
func generate[In any, Out any](ctx context.Context, r *Registry, name, tmpl string, in In, schema *genai.Schema) (*Out, error) {
	if err := r.validate.Struct(in); err != nil {
		return nil, newValidationError(name, err)
	}

	text, err := prompt.Render(tmpl, in)
	if err != nil {
		return nil, err
	}

	raw, err := r.gen.GenerateJSON(ctx, gemini.JSONRequest{Prompt: text, Schema: schema})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var out Out
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, gemini.ErrSchemaMismatch, err)
	}
	if err := r.validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, gemini.ErrSchemaMismatch, err)
	}

	return &out, nil
}
