package service

import (
	"errors"
	"strings"
)

// --- Error Definitions ---
var (
	ErrTrainingNotFound    = errors.New("training not found")
	ErrInvalidTraining     = errors.New("training name is required")
	ErrCreationModeManual  = errors.New("training structure is managed manually")
	ErrPromptRequired      = errors.New("prompt text is required")
	ErrPromptTooLong       = errors.New("prompt text is too long")
	ErrLanguageInvalid     = errors.New("language must be one of fr, ar, en")
	ErrRateLimitExceeded   = errors.New("too many plan requests, retry later")
	ErrPlanInvalidOutput   = errors.New("model output is not a valid plan")
	ErrPlanInvalid         = errors.New("plan does not match the training plan schema")
	ErrStructureLocked     = errors.New("training structure is locked by recorded attendance")
	ErrStructureMissing    = errors.New("training structure does not match the plan")
	ErrSnapshotUnavailable = errors.New("no applied plan snapshot for this training")
)

// PlanValidationError carries the sorted schema violations of a rejected plan.
type PlanValidationError struct {
	Violations []string
}

func (e *PlanValidationError) Error() string {
	return ErrPlanInvalid.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PlanValidationError) Is(target error) bool {
	return target == ErrPlanInvalid
}
