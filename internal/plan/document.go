// Package plan holds the AI training plan document: its schema, the normalizer that
// coerces loosely shaped model output into that schema, the offline stub builder and the
// prompt templates. Everything here is pure and safe for concurrent use.
package plan

import (
	"strings"
)

const (
	Version          = "v1"
	LevelsCount      = 4
	SessionsPerLevel = 6

	DefaultDurationMin = 120
	DefaultModality    = "IN_PERSON"

	// MaxPromptLength bounds the free-text description accepted for drafting.
	MaxPromptLength = 2000
)

// Supported document languages.
const (
	LanguageFR = "fr"
	LanguageAR = "ar"
	LanguageEN = "en"
)

// IsSupportedLanguage reports whether lang is one of fr, ar, en.
func IsSupportedLanguage(lang string) bool {
	switch lang {
	case LanguageFR, LanguageAR, LanguageEN:
		return true
	}
	return false
}

// Document is the validated, typed form of a plan. Raw model output never lands here
// directly: it goes through Normalize and Schema.Validate first.
type Document struct {
	Version           string            `json:"version"`
	Language          string            `json:"language"`
	Training          TrainingInfo      `json:"training"`
	GlobalConstraints GlobalConstraints `json:"globalConstraints"`
	Levels            []Level           `json:"levels"`
}

type TrainingInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type GlobalConstraints struct {
	LevelsCount        int      `json:"levelsCount"`
	SessionsPerLevel   int      `json:"sessionsPerLevel"`
	DefaultDurationMin *int     `json:"defaultDurationMin"`
	DefaultLocation    *string  `json:"defaultLocation"`
	StartDate          *string  `json:"startDate"`
	PreferredDays      []string `json:"preferredDays"`
}

type Level struct {
	LevelIndex int       `json:"levelIndex"`
	Title      string    `json:"title"`
	Outcomes   []string  `json:"outcomes"`
	Sessions   []Session `json:"sessions"`
}

type Session struct {
	SessionIndex       int      `json:"sessionIndex"`
	Title              string   `json:"title"`
	Objective          string   `json:"objective"`
	DurationMin        int      `json:"durationMin"`
	StartAt            *string  `json:"startAt"`
	Location           *string  `json:"location"`
	Modality           string   `json:"modality"`
	Materials          []string `json:"materials"`
	AccessibilityNotes []string `json:"accessibilityNotes"`
}

// SessionCount returns the total number of sessions across all levels.
func (d *Document) SessionCount() int {
	n := 0
	for _, l := range d.Levels {
		n += len(l.Sessions)
	}
	return n
}

// Constraints are optional user hints forwarded to the model and honoured by the stub.
type Constraints struct {
	StartDate          *string  `json:"startDate,omitempty"`
	PreferredDays      []string `json:"preferredDays,omitempty"`
	DefaultDurationMin *int     `json:"defaultDurationMin,omitempty"`
	DefaultLocation    *string  `json:"defaultLocation,omitempty"`
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
