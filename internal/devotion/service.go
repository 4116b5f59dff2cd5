package devotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Micheline922/kairo/internal/flow"
	"github.com/Micheline922/kairo/internal/metrics"
	"github.com/Micheline922/kairo/internal/store"
)

// ErrInvalidProgress is returned for a fast progress outside 0..100
var ErrInvalidProgress = errors.New("progress must be between 0 and 100")

// Record is a devotion record type. PrepareNew resets the fields the
// server owns before the record is first stored.
type Record[T any] interface {
	store.Record[T]
	PrepareNew()
}

// Collection is the typed store of one kind of record
type Collection[T any, P Record[T]] struct {
	repo *store.Repository[T, P]
}

func newCollection[T any, P Record[T]](backend store.Backend, name string, v *validator.Validate, m *metrics.Metrics) *Collection[T, P] {
	return &Collection[T, P]{repo: store.NewRepository[T, P](backend, name, v, m)}
}

// Name returns the collection name
func (c *Collection[T, P]) Name() string {
	return c.repo.Collection()
}

// Add stores a new record for the user
func (c *Collection[T, P]) Add(ctx context.Context, userID string, rec *T) (*T, error) {
	P(rec).PrepareNew()
	return c.repo.Add(ctx, userID, rec)
}

// List returns the user's records, newest first
func (c *Collection[T, P]) List(ctx context.Context, userID string) ([]*T, error) {
	return c.repo.List(ctx, userID)
}

// Get returns one record or store.ErrNotFound
func (c *Collection[T, P]) Get(ctx context.Context, userID, id string) (*T, error) {
	return c.repo.Get(ctx, userID, id)
}

// Delete removes one record
func (c *Collection[T, P]) Delete(ctx context.Context, userID, id string) error {
	return c.repo.Delete(ctx, userID, id)
}

// Service holds every collection of a user's devotional life
type Service struct {
	Journal   *Collection[JournalEntry, *JournalEntry]
	Pearls    *Collection[Pearl, *Pearl]
	Prayers   *Collection[PrayerRequest, *PrayerRequest]
	Plans     *Collection[PrayerPlan, *PrayerPlan]
	Insights  *Collection[AcademyInsight, *AcademyInsight]
	Guidances *Collection[DivineGuidance, *DivineGuidance]
	Articles  *Collection[SavedArticle, *SavedArticle]
	Fasts     *Collection[Fast, *Fast]

	flows    *flow.Registry
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates the collections on backend. flows may be nil, in
// which case the AI-assisted operations are unavailable.
func NewService(backend store.Backend, flows *flow.Registry, m *metrics.Metrics) *Service {
	v := flow.NewValidator()
	return &Service{
		Journal:   newCollection[JournalEntry, *JournalEntry](backend, JournalEntries, v, m),
		Pearls:    newCollection[Pearl, *Pearl](backend, PearlsOfWisdom, v, m),
		Prayers:   newCollection[PrayerRequest, *PrayerRequest](backend, PrayerRequests, v, m),
		Plans:     newCollection[PrayerPlan, *PrayerPlan](backend, PrayerPlans, v, m),
		Insights:  newCollection[AcademyInsight, *AcademyInsight](backend, AcademyInsights, v, m),
		Guidances: newCollection[DivineGuidance, *DivineGuidance](backend, DivineGuidances, v, m),
		Articles:  newCollection[SavedArticle, *SavedArticle](backend, WritersSanctuary, v, m),
		Fasts:     newCollection[Fast, *Fast](backend, Fasts, v, m),
		flows:     flows,
		validate:  v,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MarkAnswered flags a prayer request as answered. The first answered
// date is kept when the request was already answered.
func (s *Service) MarkAnswered(ctx context.Context, userID, id string) (*PrayerRequest, error) {
	return s.Prayers.repo.Update(ctx, userID, id, func(p *PrayerRequest) error {
		if p.IsAnswered && p.AnsweredDate != nil {
			return nil
		}
		answered := s.now()
		p.IsAnswered = true
		p.AnsweredDate = &answered
		return nil
	})
}

// SetFastProgress records how far along a fast is, in percent
func (s *Service) SetFastProgress(ctx context.Context, userID, id string, progress int) (*Fast, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}
	return s.Fasts.repo.Update(ctx, userID, id, func(f *Fast) error {
		f.Progress = progress
		return nil
	})
}

// PlanFast generates a reading plan for the fast's purpose and stores the
// fast with it
func (s *Service) PlanFast(ctx context.Context, userID string, f *Fast, language string) (*Fast, error) {
	if s.flows == nil {
		return nil, errors.New("flows are not configured")
	}
	// The fast must be valid before the model is asked for a plan
	f.PrepareNew()
	if err := s.validate.Struct(f); err != nil {
		return nil, err
	}

	plan, err := s.flows.GenerateReadingPlan(ctx, flow.ReadingPlanInput{
		ReasonForFasting: f.Purpose,
		Locale:           flow.Locale{Language: language},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate reading plan: %w", err)
	}
	f.ReadingPlan = plan.ReadingPlan
	return s.Fasts.Add(ctx, userID, f)
}

// AnalyzeJournalEntry runs the spiritual analysis on a stored entry
func (s *Service) AnalyzeJournalEntry(ctx context.Context, userID, id, language string) (*flow.JournalAnalysis, error) {
	if s.flows == nil {
		return nil, errors.New("flows are not configured")
	}
	entry, err := s.Journal.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.flows.AnalyzeSpiritualJournal(ctx, flow.JournalAnalysisInput{
		JournalEntry: entry.Content,
		Locale:       flow.Locale{Language: language},
	})
}
