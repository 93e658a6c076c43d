package api

import (
	"encoding/json"
	"net/http"

	"astba/training-app/internal/logger"
	"astba/training-app/internal/plan"
	"astba/training-app/internal/service"

	"github.com/gin-gonic/gin"
)

type AIPlanHandler struct {
	aiPlanService service.AIPlanService
	log           *logger.Logger
}

func NewAIPlanHandler(aiPlanService service.AIPlanService, log *logger.Logger) *AIPlanHandler {
	return &AIPlanHandler{aiPlanService: aiPlanService, log: log}
}

// --- DTOs ---

type GeneratePlanRequest struct {
	PromptText  string            `json:"promptText"`
	Language    string            `json:"language"`
	Constraints *plan.Constraints `json:"constraints"`
}

type GeneratePlanResponse struct {
	Plan           *plan.Document      `json:"plan"`
	Outcome        service.OutcomeKind `json:"outcome"`
	FallbackReason string              `json:"fallbackReason,omitempty"`
}

type ApplyPlanRequest struct {
	ApprovedPlan json.RawMessage `json:"approvedPlan"`
}

type SnapshotResponse struct {
	URL string `json:"url"`
}

// GeneratePlan godoc
// @Summary Draft a training plan from a free-text description
// @Description Asks the language model for a 4-level, 6-session plan. The draft is not persisted.
// @Tags AI Plan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param request body GeneratePlanRequest true "Prompt, language and constraints"
// @Success 200 {object} GeneratePlanResponse
// @Failure 400 {object} gin.H "Invalid prompt or language"
// @Failure 409 {object} gin.H "Training is MANUAL"
// @Failure 429 {object} gin.H "Rate limited"
// @Failure 502 {object} gin.H "Provider error"
// @Failure 504 {object} gin.H "Provider timeout"
// @Router /trainings/{id}/ai-plan [post]
func (h *AIPlanHandler) GeneratePlan(c *gin.Context) {
	trainingID, ok := trainingIDParam(c)
	if !ok {
		return
	}
	var req GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Validation error: "+err.Error())
		return
	}
	actorID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Unable to identify user from token.")
		return
	}

	outcome, err := h.aiPlanService.GenerateDraftPlan(c.Request.Context(), trainingID, service.GenerateRequest{
		PromptText:  req.PromptText,
		Language:    req.Language,
		Constraints: req.Constraints,
	}, actorID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, GeneratePlanResponse{
		Plan:           outcome.Plan,
		Outcome:        outcome.Kind,
		FallbackReason: outcome.FallbackReason,
	})
}

// ApplyPlan godoc
// @Summary Apply an approved plan to the training structure
// @Tags AI Plan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param request body ApplyPlanRequest true "Approved plan"
// @Success 200 {object} service.TrainingDetail
// @Failure 400 {object} gin.H "Plan does not match the schema"
// @Failure 409 {object} gin.H "Structure locked or missing"
// @Router /trainings/{id}/apply-ai-plan [post]
func (h *AIPlanHandler) ApplyPlan(c *gin.Context) {
	trainingID, ok := trainingIDParam(c)
	if !ok {
		return
	}
	var req ApplyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Validation error: "+err.Error())
		return
	}
	if len(req.ApprovedPlan) == 0 || string(req.ApprovedPlan) == "null" {
		abortWithError(c, http.StatusBadRequest, codePlanInvalid, "approvedPlan is required")
		return
	}

	detail, err := h.aiPlanService.ApplyPlan(c.Request.Context(), trainingID, req.ApprovedPlan)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetSnapshot returns a short-lived download link for the last applied plan.
func (h *AIPlanHandler) GetSnapshot(c *gin.Context) {
	trainingID, ok := trainingIDParam(c)
	if !ok {
		return
	}
	url, err := h.aiPlanService.SnapshotURL(c.Request.Context(), trainingID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, SnapshotResponse{URL: url})
}
