package api

import (
	"errors"
	"net/http"

	"astba/training-app/internal/llm"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/service"

	"github.com/gin-gonic/gin"
)

// Stable error codes returned in the "code" field.
const (
	codeUnauthorized          = "UNAUTHORIZED"
	codeForbidden             = "FORBIDDEN"
	codeBadRequest            = "BAD_REQUEST"
	codeInternal              = "INTERNAL_ERROR"
	codeTrainingNotFound      = "TRAINING_NOT_FOUND"
	codeInvalidTraining       = "INVALID_TRAINING"
	codeCreationModeManual    = "CREATION_MODE_MANUAL"
	codePromptRequired        = "PROMPT_REQUIRED"
	codePromptTooLong         = "PROMPT_TOO_LONG"
	codeLanguageInvalid       = "LANGUAGE_INVALID"
	codeRateLimit             = "AI_RATE_LIMIT"
	codeProviderNotConfigured = "AI_PROVIDER_NOT_CONFIGURED"
	codeTimeout               = "AI_TIMEOUT"
	codeProviderError         = "AI_PROVIDER_ERROR"
	codePlanInvalidOutput     = "AI_PLAN_INVALID_OUTPUT"
	codePlanInvalid           = "PLAN_INVALID"
	codeStructureLocked       = "STRUCTURE_LOCKED"
	codeStructureMissing      = "STRUCTURE_MISSING"
	codeSnapshotUnavailable   = "SNAPSHOT_UNAVAILABLE"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrTrainingNotFound, http.StatusNotFound, codeTrainingNotFound},
	{service.ErrInvalidTraining, http.StatusBadRequest, codeInvalidTraining},
	{service.ErrCreationModeManual, http.StatusConflict, codeCreationModeManual},
	{service.ErrPromptRequired, http.StatusBadRequest, codePromptRequired},
	{service.ErrPromptTooLong, http.StatusBadRequest, codePromptTooLong},
	{service.ErrLanguageInvalid, http.StatusBadRequest, codeLanguageInvalid},
	{service.ErrRateLimitExceeded, http.StatusTooManyRequests, codeRateLimit},
	{llm.ErrProviderNotConfigured, http.StatusBadRequest, codeProviderNotConfigured},
	{llm.ErrTimeout, http.StatusGatewayTimeout, codeTimeout},
	{llm.ErrProviderError, http.StatusBadGateway, codeProviderError},
	{service.ErrPlanInvalidOutput, http.StatusBadGateway, codePlanInvalidOutput},
	{service.ErrPlanInvalid, http.StatusBadRequest, codePlanInvalid},
	{service.ErrStructureLocked, http.StatusConflict, codeStructureLocked},
	{service.ErrStructureMissing, http.StatusConflict, codeStructureMissing},
	{service.ErrSnapshotUnavailable, http.StatusNotFound, codeSnapshotUnavailable},
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// respondServiceError maps a service error onto its HTTP status and code. Unknown
// errors are logged and answered with a generic 500.
func respondServiceError(c *gin.Context, log *logger.Logger, err error) {
	var verr *service.PlanValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":      service.ErrPlanInvalid.Error(),
			"code":       codePlanInvalid,
			"violations": verr.Violations,
		})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			abortWithError(c, m.status, m.code, m.target.Error())
			return
		}
	}
	log.Error("unhandled service error", "path", c.FullPath(), "request_id", c.GetString(ContextRequestIDKey), "error", err)
	abortWithError(c, http.StatusInternalServerError, codeInternal, "Internal server error")
}
