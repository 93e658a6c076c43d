package service

import (
	"strings"

	"astba/training-app/internal/plan"
)

// FallbackPolicy decides what happens when model output stays unusable.
type FallbackPolicy string

const (
	// FallbackLenient answers with the offline stub plan.
	FallbackLenient FallbackPolicy = "lenient"
	// FallbackStrict fails the request with ErrPlanInvalidOutput.
	FallbackStrict FallbackPolicy = "strict"
)

// ParseFallbackPolicy maps a config value to a policy, defaulting to lenient.
func ParseFallbackPolicy(s string) FallbackPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(FallbackStrict)) {
		return FallbackStrict
	}
	return FallbackLenient
}

type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeRepaired     OutcomeKind = "repaired"
	OutcomeFallbackStub OutcomeKind = "fallback_stub"
)

// GenerationOutcome is a schema-valid draft and how it was obtained. Failures are
// returned as errors instead.
type GenerationOutcome struct {
	Kind           OutcomeKind
	Plan           *plan.Document
	FallbackReason string
}

// Fallback reasons.
const (
	ReasonUnparseable        = "unparseable_output"
	ReasonEmptyResponse      = "empty_response"
	ReasonInvalidAfterRepair = "invalid_after_repair"
)
