package devotion

import (
	"time"
	"unicode/utf8"

	"github.com/Micheline922/kairo/internal/store"
)

// Collection names, one per kind of record a user keeps
const (
	JournalEntries   = "journalEntries"
	PearlsOfWisdom   = "pearlsOfWisdom"
	PrayerRequests   = "prayerRequests"
	PrayerPlans      = "prayerPlans"
	AcademyInsights  = "academyInsights"
	DivineGuidances  = "divineGuidances"
	WritersSanctuary = "writersSanctuary"
	Fasts            = "fasts"
)

const excerptRunes = 50

// JournalEntry is a private journal page
type JournalEntry struct {
	store.Meta
	Title   string `json:"title" validate:"required,min=3"`
	Content string `json:"content" validate:"required,min=10"`
	Excerpt string `json:"excerpt"`
}

func (e *JournalEntry) PrepareNew() {
	e.Excerpt = excerpt(e.Content)
}

// Pearl is a verse saved from the Bible reader
type Pearl struct {
	store.Meta
	VerseReference string `json:"verseReference" validate:"required"`
	VerseText      string `json:"verseText" validate:"required"`
	Notes          string `json:"notes"`
}

func (p *Pearl) PrepareNew() {}

// PrayerRequest is an entry on the prayer wall
type PrayerRequest struct {
	store.Meta
	RequestText  string     `json:"requestText" validate:"required,min=10"`
	IsAnswered   bool       `json:"isAnswered"`
	AnsweredDate *time.Time `json:"answeredDate,omitempty"`
}

// PrepareNew resets the answered state; a request is always created pending
func (p *PrayerRequest) PrepareNew() {
	p.IsAnswered = false
	p.AnsweredDate = nil
}

// PrayerPlan is a recurring prayer appointment
type PrayerPlan struct {
	store.Meta
	Title     string `json:"title" validate:"required,min=3"`
	Time      string `json:"time" validate:"required,min=1"`
	Intention string `json:"intention" validate:"required,min=5"`
}

func (p *PrayerPlan) PrepareNew() {}

// AcademyInsight is a saved concept explanation
type AcademyInsight struct {
	store.Meta
	Concept        string `json:"concept" validate:"required"`
	Explanation    string `json:"explanation" validate:"required"`
	RelevantVerses string `json:"relevantVerses,omitempty"`
}

func (a *AcademyInsight) PrepareNew() {}

// DivineGuidance is saved discernment for a decision
type DivineGuidance struct {
	store.Meta
	DecisionContext string `json:"decisionContext" validate:"required"`
	Guidance        string `json:"guidance" validate:"required"`
}

func (d *DivineGuidance) PrepareNew() {}

// SavedArticle is an article kept in the writers' sanctuary
type SavedArticle struct {
	store.Meta
	Title            string `json:"title" validate:"required"`
	EnhancedArticle  string `json:"enhancedArticle" validate:"required"`
	SupportingVerses string `json:"supportingVerses"`
}

func (a *SavedArticle) PrepareNew() {}

// Fast is a fasting period with its reading plan
type Fast struct {
	store.Meta
	Duration    string `json:"duration" validate:"required,min=1"`
	Type        string `json:"type" validate:"required,min=1"`
	Purpose     string `json:"purpose" validate:"required,min=10"`
	ReadingPlan string `json:"readingPlan,omitempty"`
	Progress    int    `json:"progress" validate:"min=0,max=100"`
}

// PrepareNew starts the fast at zero progress
func (f *Fast) PrepareNew() {
	f.Progress = 0
}

// excerpt returns the first 50 characters of s followed by "..."
func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptRunes {
		return s + "..."
	}
	return string([]rune(s)[:excerptRunes]) + "..."
}
