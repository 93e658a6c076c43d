package plan

import (
	"fmt"
	"strings"
	"unicode"
)

// topic maps prompt keywords to a localized subject phrase. Short keywords such as
// "ia" only match whole words.
type topic struct {
	keywords []string
	phrase   map[string]string
}

// topics are checked in order; the last entry is the generic fallback.
var topics = []topic{
	{
		keywords: []string{"cyber"},
		phrase:   map[string]string{LanguageFR: "la cybersecurite", LanguageEN: "cybersecurity", LanguageAR: "الأمن السيبراني"},
	},
	{
		keywords: []string{"data", "donnee", "données"},
		phrase:   map[string]string{LanguageFR: "la data et l'analytique", LanguageEN: "data and analytics", LanguageAR: "البيانات والتحليلات"},
	},
	{
		keywords: []string{"ia", "ai", "intelligence artificielle", "artificial intelligence", "ذكاء اصطناعي"},
		phrase:   map[string]string{LanguageFR: "l'intelligence artificielle appliquee", LanguageEN: "applied artificial intelligence", LanguageAR: "الذكاء الاصطناعي التطبيقي"},
	},
	{
		keywords: []string{"mobile"},
		phrase:   map[string]string{LanguageFR: "le developpement mobile", LanguageEN: "mobile development", LanguageAR: "تطوير تطبيقات الهاتف"},
	},
	{
		keywords: []string{"web"},
		phrase:   map[string]string{LanguageFR: "le developpement web", LanguageEN: "web development", LanguageAR: "تطوير الويب"},
	},
	{
		keywords: []string{"cloud"},
		phrase:   map[string]string{LanguageFR: "le cloud et les services distribues", LanguageEN: "cloud and distributed services", LanguageAR: "الحوسبة السحابية والخدمات الموزعة"},
	},
	{
		keywords: []string{"innovation"},
		phrase:   map[string]string{LanguageFR: "l'innovation educative et les projets technologiques", LanguageEN: "educational innovation and technology projects", LanguageAR: "الابتكار التربوي والمشاريع التقنية"},
	},
	{
		phrase: map[string]string{LanguageFR: "l'apprentissage pratique et les projets technologiques", LanguageEN: "hands-on learning and technology projects", LanguageAR: "التعلم التطبيقي والمشاريع التقنية"},
	},
}

const maxLocationRunes = 255

// DetectTopic returns the localized subject phrase for the first topic whose keyword
// appears in promptText.
func DetectTopic(promptText, language string) string {
	lower := strings.ToLower(promptText)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, t := range topics {
		if len(t.keywords) == 0 || matchesAny(lower, words, t.keywords) {
			return localized(t.phrase, language)
		}
	}
	return ""
}

func matchesAny(lower string, words []string, keywords []string) bool {
	for _, kw := range keywords {
		if len([]rune(kw)) <= 2 {
			for _, w := range words {
				if w == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func localized(m map[string]string, language string) string {
	if s, ok := m[language]; ok {
		return s
	}
	return m[LanguageFR]
}

// BuildStub produces a deterministic, schema-valid plan without calling any model.
// Constraint values outside the schema's ranges are replaced by defaults.
func BuildStub(language, promptText string, constraints *Constraints) *Document {
	if !IsSupportedLanguage(language) {
		language = LanguageFR
	}
	p := phrasesFor(language)
	subject := DetectTopic(promptText, language)

	if constraints == nil {
		constraints = &Constraints{}
	}
	duration := DefaultDurationMin
	var defaultDuration *int
	if d := constraints.DefaultDurationMin; d != nil && *d >= 15 && *d <= 600 {
		duration = *d
		defaultDuration = &duration
	}
	var location *string
	if l := constraints.DefaultLocation; l != nil && !isBlank(*l) {
		v := truncateRunes(strings.TrimSpace(*l), maxLocationRunes)
		location = &v
	}
	var preferredDays []string
	if len(constraints.PreferredDays) > 0 {
		preferredDays = append([]string(nil), constraints.PreferredDays...)
	}

	doc := &Document{
		Version:  Version,
		Language: language,
		Training: TrainingInfo{
			Title:       p.draftTitle,
			Description: fmt.Sprintf(p.stubDescription, subject),
		},
		GlobalConstraints: GlobalConstraints{
			LevelsCount:        LevelsCount,
			SessionsPerLevel:   SessionsPerLevel,
			DefaultDurationMin: defaultDuration,
			DefaultLocation:    location,
			StartDate:          constraints.StartDate,
			PreferredDays:      preferredDays,
		},
		Levels: make([]Level, 0, LevelsCount),
	}

	for i := 1; i <= LevelsCount; i++ {
		level := Level{
			LevelIndex: i,
			Title:      p.level(i) + " - " + p.levelThemes[i-1],
			Outcomes: []string{
				fmt.Sprintf(p.stubOutcomes[0], subject),
				fmt.Sprintf(p.stubOutcomes[1], subject),
			},
			Sessions: make([]Session, 0, SessionsPerLevel),
		}
		for j := 1; j <= SessionsPerLevel; j++ {
			tpl := p.sessionTemplates[j-1]
			level.Sessions = append(level.Sessions, Session{
				SessionIndex:       j,
				Title:              p.session(j) + " - " + tpl[0],
				Objective:          tpl[1],
				DurationMin:        duration,
				Location:           location,
				Modality:           DefaultModality,
				Materials:          []string{},
				AccessibilityNotes: p.notes(),
			})
		}
		doc.Levels = append(doc.Levels, level)
	}
	return doc
}
