package plan

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SummaryMaxRunes caps the prompt summary used as a fallback training description.
const SummaryMaxRunes = 180

// Normalize coerces an arbitrary parsed tree into the plan shape: fixed version and
// language, exactly LevelsCount levels of SessionsPerLevel sessions with sequential
// indices, non-blank required strings, correctly typed containers and explicit nulls.
// Unknown keys are dropped. It never fails and never mutates raw.
//
// Values that already have the right type are kept even when out of range (an
// unknown modality, a 2000 minute session); Schema.Validate reports those.
func Normalize(raw map[string]any, language, promptText string) map[string]any {
	if !IsSupportedLanguage(language) {
		language = LanguageFR
	}
	p := phrasesFor(language)

	training := asObject(raw["training"])
	description, ok := nonBlank(training["description"])
	if !ok {
		description = summarizePrompt(promptText, p.draftDescription)
	}
	title, ok := nonBlank(training["title"])
	if !ok {
		title = p.draftTitle
	}

	rawLevels := asArray(raw["levels"])
	levels := make([]any, LevelsCount)
	for i := range levels {
		var lv map[string]any
		if i < len(rawLevels) {
			lv = asObject(rawLevels[i])
		}
		levels[i] = normalizeLevel(lv, i+1, p)
	}

	return map[string]any{
		"version":  Version,
		"language": language,
		"training": map[string]any{
			"title":       title,
			"description": description,
		},
		"globalConstraints": normalizeConstraints(asObject(raw["globalConstraints"])),
		"levels":            levels,
	}
}

func normalizeConstraints(gc map[string]any) map[string]any {
	out := map[string]any{
		"levelsCount":        number(LevelsCount),
		"sessionsPerLevel":   number(SessionsPerLevel),
		"defaultDurationMin": nil,
		"defaultLocation":    stringOrNil(gc["defaultLocation"]),
		"startDate":          stringOrNil(gc["startDate"]),
		"preferredDays":      nil,
	}
	if n, ok := intValue(gc["defaultDurationMin"]); ok {
		out["defaultDurationMin"] = number(n)
	}
	if days, ok := gc["preferredDays"].([]any); ok {
		out["preferredDays"] = stringList(days)
	}
	return out
}

func normalizeLevel(lv map[string]any, index int, p phrases) map[string]any {
	title, ok := nonBlank(lv["title"])
	if !ok {
		title = p.level(index)
	}
	outcomes := nonBlankList(asArray(lv["outcomes"]))
	if len(outcomes) < 2 {
		outcomes = toAnyList(p.outcomes(index))
	}

	rawSessions := asArray(lv["sessions"])
	sessions := make([]any, SessionsPerLevel)
	for j := range sessions {
		var s map[string]any
		if j < len(rawSessions) {
			s = asObject(rawSessions[j])
		}
		sessions[j] = normalizeSession(s, index, j+1, p)
	}

	return map[string]any{
		"levelIndex": number(index),
		"title":      title,
		"outcomes":   outcomes,
		"sessions":   sessions,
	}
}

func normalizeSession(s map[string]any, level, index int, p phrases) map[string]any {
	title, ok := nonBlank(s["title"])
	if !ok {
		title = p.session(index)
	}
	objective, ok := nonBlank(s["objective"])
	if !ok {
		objective = p.objective(level, index)
	}
	duration, ok := intValue(s["durationMin"])
	if !ok {
		duration = DefaultDurationMin
	}
	modality, ok := nonBlank(s["modality"])
	if ok {
		modality = strings.ToUpper(modality)
	} else {
		modality = DefaultModality
	}
	notes := nonBlankList(asArray(s["accessibilityNotes"]))
	if len(notes) < 2 {
		notes = toAnyList(p.notes())
	}

	return map[string]any{
		"sessionIndex":       number(index),
		"title":              title,
		"objective":          objective,
		"durationMin":        number(duration),
		"startAt":            stringOrNil(s["startAt"]),
		"location":           stringOrNil(s["location"]),
		"modality":           modality,
		"materials":          stringList(asArray(s["materials"])),
		"accessibilityNotes": notes,
	}
}

func summarizePrompt(promptText, fallback string) string {
	cleaned := strings.Join(strings.Fields(promptText), " ")
	if cleaned == "" {
		return fallback
	}
	return truncateRunes(cleaned, SummaryMaxRunes)
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func number(n int) json.Number {
	return json.Number(strconv.Itoa(n))
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asArray(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return nil
}

func nonBlank(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || isBlank(s) {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func stringOrNil(v any) any {
	if s, ok := v.(string); ok {
		return s
	}
	return nil
}

// stringList keeps the string elements of a, in order. Never nil.
func stringList(a []any) []any {
	out := make([]any, 0, len(a))
	for _, v := range a {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nonBlankList(a []any) []any {
	out := make([]any, 0, len(a))
	for _, v := range a {
		if s, ok := nonBlank(v); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// intValue accepts integral numbers in any of the forms a JSON decoder or a model
// might produce, including numeric strings.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return integral(f)
		}
	case float64:
		return integral(n)
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
