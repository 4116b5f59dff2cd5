package flow

import (
	"google.golang.org/genai"

	"github.com/Micheline922/kairo/internal/gemini"
)

// Flow names as exposed by the registry and the HTTP API
const (
	AnalyzeSpiritualJournalFlow = "analyzeSpiritualJournal"
	GenerateReadingPlanFlow     = "generateReadingPlan"
	DiscernGodsWillFlow         = "discernGodsWill"
	EnhanceArticleFlow          = "enhanceArticle"
	ExplainConceptFlow          = "explainConcept"
	SemanticBibleSearchFlow     = "semanticBibleSearch"
	GenerateMeditationAudioFlow = "generateMeditationAudio"
)

// Locale selects the answer language. Empty lets the model choose.
type Locale struct {
	Language string `json:"language,omitempty" validate:"omitempty,oneof=fr en es pt sw"`
}

// JournalAnalysisInput is the input of analyzeSpiritualJournal
type JournalAnalysisInput struct {
	JournalEntry string `json:"journalEntry" validate:"required,min=10"`
	Locale
}

// JournalAnalysis is the spiritual reading of a journal entry
type JournalAnalysis struct {
	SpiritualClimate      string `json:"spiritualClimate" validate:"required"`
	WordOfLightVerses     string `json:"wordOfLightVerses" validate:"required"`
	EmpatheticOrientation string `json:"empatheticOrientation" validate:"required"`
}

// ReadingPlanInput is the input of generateReadingPlan
type ReadingPlanInput struct {
	ReasonForFasting string `json:"reasonForFasting" validate:"required,min=10"`
	Locale
}

// ReadingPlan is a Bible reading plan for a fast
type ReadingPlan struct {
	ReadingPlan string `json:"readingPlan" validate:"required"`
}

// DiscernmentInput is the input of discernGodsWill
type DiscernmentInput struct {
	DecisionContext string `json:"decisionContext" validate:"required,min=20"`
	Locale
}

// Discernment is guidance for a decision
type Discernment struct {
	Guidance string `json:"guidance" validate:"required"`
}

// ArticleInput is the input of enhanceArticle
type ArticleInput struct {
	Title        string `json:"title" validate:"required,min=5"`
	ArticleDraft string `json:"articleDraft" validate:"required,min=50"`
	Locale
}

// EnhancedArticle is a developed article and the verses it uses
type EnhancedArticle struct {
	EnhancedArticle  string `json:"enhancedArticle" validate:"required"`
	SupportingVerses string `json:"supportingVerses" validate:"required"`
}

// ConceptInput is the input of explainConcept
type ConceptInput struct {
	Concept string `json:"concept" validate:"required,min=2"`
	Locale
}

// ConceptExplanation bridges a modern concept and biblical truth
type ConceptExplanation struct {
	Explanation string `json:"explanation" validate:"required"`
}

// BibleSearchInput is the input of semanticBibleSearch
type BibleSearchInput struct {
	Query string `json:"query" validate:"required,min=3"`
	Locale
}

// Verse is a single Bible verse
type Verse struct {
	Book    string `json:"book" validate:"required"`
	Chapter int    `json:"chapter" validate:"min=1"`
	Verse   int    `json:"verse" validate:"min=1"`
	Text    string `json:"text" validate:"required"`
}

// BibleSearchResult lists the verses matching a query
type BibleSearchResult struct {
	Verses []Verse `json:"verses" validate:"dive"`
}

// MeditationInput is the input of generateMeditationAudio
type MeditationInput struct {
	Topic string `json:"topic" validate:"required,min=3"`
	Locale
}

// Meditation is a guided meditation script and its spoken WAV rendition
type Meditation struct {
	MeditationText string `json:"meditationText" validate:"required"`
	AudioDataURI   string `json:"audioDataUri" validate:"required"`
}

type meditationScript struct {
	MeditationText string `json:"meditationText" validate:"required"`
}

var (
	journalAnalysisSchema = gemini.Object(map[string]*genai.Schema{
		"spiritualClimate":      gemini.String("A summary of the spiritual climate of the journal entry."),
		"wordOfLightVerses":     gemini.String("Bible verses chosen for the journal entry."),
		"empatheticOrientation": gemini.String("A short empathetic orientation grounded in the Bible."),
	})

	readingPlanSchema = gemini.Object(map[string]*genai.Schema{
		"readingPlan": gemini.String("A reading plan tailored to the reason for fasting."),
	})

	discernmentSchema = gemini.Object(map[string]*genai.Schema{
		"guidance": gemini.String("Biblically-sound guidance for the decision."),
	})

	articleSchema = gemini.Object(map[string]*genai.Schema{
		"enhancedArticle":  gemini.String("The developed article with verses woven into the text."),
		"supportingVerses": gemini.String("A list of the Bible verses supporting the article."),
	})

	conceptSchema = gemini.Object(map[string]*genai.Schema{
		"explanation": gemini.String("An explanation bridging the modern world and biblical truth."),
	})

	bibleSearchSchema = gemini.Object(map[string]*genai.Schema{
		"verses": gemini.ArrayOf(gemini.Object(map[string]*genai.Schema{
			"book":    gemini.String("The book of the Bible."),
			"chapter": gemini.Integer("The chapter number."),
			"verse":   gemini.Integer("The verse number."),
			"text":    gemini.String("The text of the verse."),
		}), "The verses relevant to the query."),
	})

	meditationScriptSchema = gemini.Object(map[string]*genai.Schema{
		"meditationText": gemini.String("The guided meditation script."),
	})
)
