package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = MustLoadSchema()

func mustParse(t *testing.T, text string) map[string]any {
	t.Helper()
	tree, err := ParseJSON(text)
	require.NoError(t, err)
	return tree
}

func TestSchema_RejectsEmptyObject(t *testing.T) {
	violations := testSchema.Validate(map[string]any{})
	require.NotEmpty(t, violations)
	assert.True(t, sortedStrings(violations), "violations must be sorted: %v", violations)
}

func TestSchema_ReportsWrongCardinality(t *testing.T) {
	doc := BuildStub(LanguageEN, "web", nil)
	doc.Levels = doc.Levels[:3]
	doc.Levels[1].Sessions = doc.Levels[1].Sessions[:5]

	violations := testSchema.ValidateDocument(doc)
	require.NotEmpty(t, violations)
	joined := strings.Join(violations, "\n")
	assert.Contains(t, joined, "/levels")
	assert.Contains(t, joined, "/levels/1/sessions")
}

func TestSchema_ReportsIndexOutOfOrder(t *testing.T) {
	doc := BuildStub(LanguageFR, "", nil)
	doc.Levels[0].LevelIndex, doc.Levels[1].LevelIndex = 2, 1

	violations := testSchema.ValidateDocument(doc)
	assert.NotEmpty(t, violations)
}

func TestParseJSON_RecoversFencedOutput(t *testing.T) {
	tree, err := ParseJSON("Here is your plan:\n```json\n{\"version\":\"v1\",\"levels\":[]}\n```\nEnjoy!")
	require.NoError(t, err)
	assert.Equal(t, "v1", tree["version"])
}

func TestParseJSON_Unparseable(t *testing.T) {
	for _, text := range []string{"", "   ", "not-json", "[1,2,3]", "{broken", "} backwards {"} {
		_, err := ParseJSON(text)
		assert.ErrorIs(t, err, ErrUnparseable, "input %q", text)
	}
}

func TestParseJSON_KeepsNumbersExact(t *testing.T) {
	tree := mustParse(t, `{"globalConstraints":{"defaultDurationMin":90}}`)
	gc := tree["globalConstraints"].(map[string]any)
	assert.Equal(t, json.Number("90"), gc["defaultDurationMin"])
}

func TestDecode_IntegralNumbersWithFraction(t *testing.T) {
	tree, err := ToTree(BuildStub(LanguageEN, "web", nil))
	require.NoError(t, err)
	obj := tree.(map[string]any)
	session := obj["levels"].([]any)[0].(map[string]any)["sessions"].([]any)[0].(map[string]any)
	session["durationMin"] = json.Number("120.0")
	session["sessionIndex"] = json.Number("1e0")
	require.Empty(t, testSchema.Validate(obj))

	doc, err := Decode(obj)
	require.NoError(t, err)
	assert.Equal(t, 120, doc.Levels[0].Sessions[0].DurationMin)
	assert.Equal(t, 1, doc.Levels[0].Sessions[0].SessionIndex)
	assert.Equal(t, json.Number("120.0"), session["durationMin"], "input tree is left untouched")
}

func TestNormalize_OutputAlwaysValidates(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"version":"v7","language":"de","extra":true}`,
		`{"training":"oops","levels":"none","globalConstraints":[1]}`,
		`{"training":{"title":"   ","description":null},"levels":[{}]}`,
		`{"levels":[1,"two",null,{"sessions":[{"title":5,"durationMin":"90"}]}]}`,
		`{"levels":[{},{},{},{},{},{},{},{},{},{}]}`,
		`{"levels":[{"levelIndex":9,"outcomes":["only one"],"sessions":[{},{},{},{},{},{},{},{}]}]}`,
		`{"levels":[{"sessions":[{"sessionIndex":"x","startAt":12,"location":false,"materials":"pen","accessibilityNotes":[1,2]}]}]}`,
		`{"globalConstraints":{"levelsCount":9,"defaultDurationMin":"lots","preferredDays":"monday"}}`,
	}
	for _, lang := range []string{LanguageFR, LanguageAR, LanguageEN} {
		for _, in := range inputs {
			out := Normalize(mustParse(t, in), lang, "Formation cybersecurite pour debutants")
			assert.Empty(t, testSchema.Validate(out), "lang %s input %s", lang, in)
		}
	}
}

func TestNormalize_Cardinality(t *testing.T) {
	for _, n := range []int{0, 1, 4, 10} {
		levels := make([]any, n)
		for i := range levels {
			sessions := make([]any, n)
			for j := range sessions {
				sessions[j] = map[string]any{}
			}
			levels[i] = map[string]any{"sessions": sessions}
		}
		doc, err := Decode(Normalize(map[string]any{"levels": levels}, LanguageEN, "x"))
		require.NoError(t, err)
		require.Len(t, doc.Levels, LevelsCount)
		for _, l := range doc.Levels {
			assert.Len(t, l.Sessions, SessionsPerLevel)
		}
	}
}

func TestNormalize_ReassignsIndices(t *testing.T) {
	raw := mustParse(t, `{"levels":[
		{"levelIndex":4,"sessions":[{"sessionIndex":6},{"sessionIndex":6}]},
		{"levelIndex":null},
		{},
		{"levelIndex":"1"}
	]}`)
	doc, err := Decode(Normalize(raw, LanguageFR, ""))
	require.NoError(t, err)
	for i, l := range doc.Levels {
		assert.Equal(t, i+1, l.LevelIndex)
		for j, s := range l.Sessions {
			assert.Equal(t, j+1, s.SessionIndex)
		}
	}
}

func TestNormalize_FillsDefaults(t *testing.T) {
	doc, err := Decode(Normalize(map[string]any{}, LanguageFR, "  Une   formation\n sur le web  "))
	require.NoError(t, err)

	assert.Equal(t, Version, doc.Version)
	assert.Equal(t, LanguageFR, doc.Language)
	assert.Equal(t, "Plan de formation (brouillon)", doc.Training.Title)
	assert.Equal(t, "Une formation sur le web", doc.Training.Description)
	assert.Equal(t, "Niveau 2", doc.Levels[1].Title)
	assert.Equal(t, []string{
		"Comprendre les objectifs du niveau 3",
		"Realiser un livrable pratique pour le niveau 3",
	}, doc.Levels[2].Outcomes)

	s := doc.Levels[2].Sessions[4]
	assert.Equal(t, "Seance 5", s.Title)
	assert.Equal(t, "Objectif de la seance 5 du niveau 3", s.Objective)
	assert.Equal(t, DefaultDurationMin, s.DurationMin)
	assert.Equal(t, DefaultModality, s.Modality)
	assert.Nil(t, s.StartAt)
	assert.Nil(t, s.Location)
	assert.NotNil(t, s.Materials)
	assert.Empty(t, s.Materials)
	assert.Len(t, s.AccessibilityNotes, 2)
}

func TestNormalize_KeepsValidContent(t *testing.T) {
	raw := mustParse(t, `{"training":{"title":"Cyber 101","description":"Intro"},
		"levels":[{"title":"Basics","outcomes":["a","b","c"],"sessions":[
			{"title":"Kickoff","objective":"Meet","durationMin":90,"startAt":"2024-03-10T09:00:00",
			 "location":"Room 1","modality":"online","materials":["slides"],"accessibilityNotes":["x","y"]}]}]}`)
	doc, err := Decode(Normalize(raw, LanguageEN, "ignored"))
	require.NoError(t, err)

	assert.Equal(t, "Cyber 101", doc.Training.Title)
	assert.Equal(t, "Intro", doc.Training.Description)
	assert.Equal(t, "Basics", doc.Levels[0].Title)
	assert.Equal(t, []string{"a", "b", "c"}, doc.Levels[0].Outcomes)
	s := doc.Levels[0].Sessions[0]
	assert.Equal(t, 90, s.DurationMin)
	require.NotNil(t, s.StartAt)
	assert.Equal(t, "2024-03-10T09:00:00", *s.StartAt)
	require.NotNil(t, s.Location)
	assert.Equal(t, "Room 1", *s.Location)
	assert.Equal(t, "ONLINE", s.Modality)
	assert.Equal(t, []string{"slides"}, s.Materials)
}

func TestNormalize_LeavesRangeViolationsToValidator(t *testing.T) {
	raw := mustParse(t, `{"levels":[{"sessions":[{"durationMin":2000,"modality":"TELEPATHY"}]}]}`)
	violations := testSchema.Validate(Normalize(raw, LanguageEN, "x"))
	joined := strings.Join(violations, "\n")
	assert.Contains(t, joined, "/levels/0/sessions/0/durationMin")
	assert.Contains(t, joined, "/levels/0/sessions/0/modality")
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := mustParse(t, `{"levels":[{"levelIndex":7}]}`)
	_ = Normalize(raw, LanguageEN, "x")
	lv := raw["levels"].([]any)[0].(map[string]any)
	assert.Equal(t, json.Number("7"), lv["levelIndex"])
	assert.Len(t, raw["levels"], 1)
}

func TestNormalize_SummaryIsCapped(t *testing.T) {
	long := strings.Repeat("é", 500)
	doc, err := Decode(Normalize(map[string]any{}, LanguageFR, long))
	require.NoError(t, err)
	assert.Equal(t, SummaryMaxRunes, len([]rune(doc.Training.Description)))
}

func TestBuildStub_AlwaysValid(t *testing.T) {
	duration := 45
	bad := 5000
	location := "Tunis"
	start := "2025-01-06"
	constraintSets := []*Constraints{
		nil,
		{},
		{DefaultDurationMin: &duration, DefaultLocation: &location, StartDate: &start, PreferredDays: []string{"MONDAY"}},
		{DefaultDurationMin: &bad},
	}
	prompts := []string{"", "   ", "cyber", "Data science", "IA generative", "mobile apps", "web", "cloud", "innovation", strings.Repeat("x", 3000)}
	for _, lang := range []string{LanguageFR, LanguageAR, LanguageEN} {
		for _, prompt := range prompts {
			for _, c := range constraintSets {
				doc := BuildStub(lang, prompt, c)
				assert.Empty(t, testSchema.ValidateDocument(doc), "lang %s prompt %q", lang, prompt)
			}
		}
	}
}

func TestBuildStub_WebBootcampInEnglish(t *testing.T) {
	doc := BuildStub(LanguageEN, "web development bootcamp", nil)

	assert.Contains(t, strings.ToLower(doc.Training.Title), "draft")
	assert.Contains(t, doc.Training.Description, "web development")
	require.Len(t, doc.Levels, LevelsCount)
	assert.Equal(t, LevelsCount*SessionsPerLevel, doc.SessionCount())
	for _, l := range doc.Levels {
		for _, s := range l.Sessions {
			assert.Equal(t, "IN_PERSON", s.Modality)
		}
	}
}

func TestBuildStub_AppliesConstraints(t *testing.T) {
	duration := 90
	location := "Sfax"
	doc := BuildStub(LanguageFR, "cloud", &Constraints{DefaultDurationMin: &duration, DefaultLocation: &location})

	require.NotNil(t, doc.GlobalConstraints.DefaultDurationMin)
	assert.Equal(t, 90, *doc.GlobalConstraints.DefaultDurationMin)
	for _, l := range doc.Levels {
		for _, s := range l.Sessions {
			assert.Equal(t, 90, s.DurationMin)
			require.NotNil(t, s.Location)
			assert.Equal(t, "Sfax", *s.Location)
		}
	}
}

func TestBuildStub_OutOfRangeDurationFallsBack(t *testing.T) {
	bad := 3
	doc := BuildStub(LanguageEN, "", &Constraints{DefaultDurationMin: &bad})
	assert.Nil(t, doc.GlobalConstraints.DefaultDurationMin)
	assert.Equal(t, DefaultDurationMin, doc.Levels[0].Sessions[0].DurationMin)
}

func TestDetectTopic(t *testing.T) {
	cases := map[string]string{
		"Formation en cybersecurite":       "la cybersecurite",
		"analyse de donnees":               "la data et l'analytique",
		"Initiation a l'IA":                "l'intelligence artificielle appliquee",
		"Parcours specialise en marketing": "l'apprentissage pratique et les projets technologiques",
		"":                                 "l'apprentissage pratique et les projets technologiques",
	}
	for prompt, want := range cases {
		assert.Equal(t, want, DetectTopic(prompt, LanguageFR), "prompt %q", prompt)
	}
}

func TestUserPrompt_Layout(t *testing.T) {
	days := []string{"MONDAY"}
	got := UserPrompt("Cours web", &Constraints{PreferredDays: days}, LanguageFR)
	assert.Equal(t, "USER_DESCRIPTION:\nCours web\n\nCONSTRAINTS_JSON:\n{\"preferredDays\":[\"MONDAY\"]}\n\nLANGUAGE:\nfr", got)
	assert.Contains(t, UserPrompt("x", nil, LanguageEN), "CONSTRAINTS_JSON:\n{}\n")
}

func TestRepairUserPrompt_Layout(t *testing.T) {
	got := RepairUserPrompt([]string{"/a: bad", "/b: worse"}, `{"x":1}`)
	assert.Equal(t, "Validation errors:\n- /a: bad\n- /b: worse\n\nPrevious JSON:\n{\"x\":1}", got)
}

func TestLoadPrompts(t *testing.T) {
	p, err := LoadPrompts()
	require.NoError(t, err)
	assert.Contains(t, p.System, "training_plan_v1")
	assert.NotEmpty(t, p.Repair)
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
