package prompt

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Template names, one per model prompt
const (
	JournalAnalysis = "journalAnalysis"
	ReadingPlan     = "readingPlan"
	Discernment     = "discernment"
	Article         = "article"
	Concept         = "concept"
	BibleSearch     = "bibleSearch"
	Meditation      = "meditation"
)

// Languages maps the supported language codes to the name used in prompts
var Languages = map[string]string{
	"fr": "French",
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"sw": "Swahili",
}

var sources = map[string]string{
	JournalAnalysis: journalAnalysisTemplate,
	ReadingPlan:     readingPlanTemplate,
	Discernment:     discernmentTemplate,
	Article:         articleTemplate,
	Concept:         conceptTemplate,
	BibleSearch:     bibleSearchTemplate,
	Meditation:      meditationTemplate,
}

var templates = mustParse()

func mustParse() *template.Template {
	root := template.New("prompts").
		Option("missingkey=error").
		Funcs(template.FuncMap{"languageName": languageName})
	template.Must(root.Parse(languageTemplate))
	for name, src := range sources {
		template.Must(root.New(name).Parse(src))
	}
	return root
}

func languageName(code string) string {
	return Languages[strings.ToLower(code)]
}

// Render executes the named template with data. data must expose every
// field the template references, including Language.
func Render(name string, data interface{}) (string, error) {
	if _, ok := sources[name]; !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Names returns the known template names, sorted
func Names() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
