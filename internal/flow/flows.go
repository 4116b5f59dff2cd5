package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/Micheline922/kairo/internal/audio"
	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/prompt"
)

// AnalyzeSpiritualJournal reads the spiritual climate of a journal entry
// and answers with verses and an empathetic orientation
func (r *Registry) AnalyzeSpiritualJournal(ctx context.Context, in JournalAnalysisInput) (out *JournalAnalysis, err error) {
	err = r.observe(ctx, AnalyzeSpiritualJournalFlow, func(ctx context.Context) error {
		out, err = generate[JournalAnalysisInput, JournalAnalysis](ctx, r, AnalyzeSpiritualJournalFlow, prompt.JournalAnalysis, in, journalAnalysisSchema)
		return err
	})
	return out, err
}

// GenerateReadingPlan builds a Bible reading plan for a fast
func (r *Registry) GenerateReadingPlan(ctx context.Context, in ReadingPlanInput) (out *ReadingPlan, err error) {
	err = r.observe(ctx, GenerateReadingPlanFlow, func(ctx context.Context) error {
		out, err = generate[ReadingPlanInput, ReadingPlan](ctx, r, GenerateReadingPlanFlow, prompt.ReadingPlan, in, readingPlanSchema)
		return err
	})
	return out, err
}

// DiscernGodsWill offers biblical guidance on a decision
func (r *Registry) DiscernGodsWill(ctx context.Context, in DiscernmentInput) (out *Discernment, err error) {
	err = r.observe(ctx, DiscernGodsWillFlow, func(ctx context.Context) error {
		out, err = generate[DiscernmentInput, Discernment](ctx, r, DiscernGodsWillFlow, prompt.Discernment, in, discernmentSchema)
		return err
	})
	return out, err
}

// EnhanceArticle develops an article draft and weaves verses into it
func (r *Registry) EnhanceArticle(ctx context.Context, in ArticleInput) (out *EnhancedArticle, err error) {
	err = r.observe(ctx, EnhanceArticleFlow, func(ctx context.Context) error {
		out, err = generate[ArticleInput, EnhancedArticle](ctx, r, EnhanceArticleFlow, prompt.Article, in, articleSchema)
		return err
	})
	return out, err
}

// ExplainConcept explains a modern concept from a biblical perspective
func (r *Registry) ExplainConcept(ctx context.Context, in ConceptInput) (out *ConceptExplanation, err error) {
	err = r.observe(ctx, ExplainConceptFlow, func(ctx context.Context) error {
		out, err = generate[ConceptInput, ConceptExplanation](ctx, r, ExplainConceptFlow, prompt.Concept, in, conceptSchema)
		return err
	})
	return out, err
}

// SemanticBibleSearch finds verses addressing the feelings or situation in a query
func (r *Registry) SemanticBibleSearch(ctx context.Context, in BibleSearchInput) (out *BibleSearchResult, err error) {
	err = r.observe(ctx, SemanticBibleSearchFlow, func(ctx context.Context) error {
		out, err = generate[BibleSearchInput, BibleSearchResult](ctx, r, SemanticBibleSearchFlow, prompt.BibleSearch, in, bibleSearchSchema)
		if err == nil && out.Verses == nil {
			out.Verses = []Verse{}
		}
		return err
	})
	return out, err
}

// GenerateMeditationAudio writes a guided meditation, has it read aloud and
// returns the script with the audio as a WAV data URI
func (r *Registry) GenerateMeditationAudio(ctx context.Context, in MeditationInput) (out *Meditation, err error) {
	err = r.observe(ctx, GenerateMeditationAudioFlow, func(ctx context.Context) error {
		script, err := generate[MeditationInput, meditationScript](ctx, r, GenerateMeditationAudioFlow, prompt.Meditation, in, meditationScriptSchema)
		if err != nil {
			return err
		}

		speech, err := r.gen.Synthesize(ctx, gemini.SpeechRequest{Text: script.MeditationText, Voice: r.voice})
		if errors.Is(err, gemini.ErrEmptyResponse) || (err == nil && len(speech.PCM) == 0) {
			return ErrNoAudio
		}
		if err != nil {
			return fmt.Errorf("%s: %w", GenerateMeditationAudioFlow, err)
		}

		format := r.format
		if speech.SampleRate > 0 {
			format.SampleRate = speech.SampleRate
		}

		wav, err := audio.EncodeWAV(speech.PCM, format)
		if err != nil {
			return fmt.Errorf("%s: failed to encode speech: %w", GenerateMeditationAudioFlow, err)
		}

		if seconds, err := audio.GetWAVDuration(wav); err == nil {
			r.metrics.RecordAudio(len(wav), seconds)
		}

		out = &Meditation{
			MeditationText: script.MeditationText,
			AudioDataURI:   audio.DataURI(audio.MIMETypeWAV, wav),
		}
		return nil
	})
	return out, err
}
