package api

import (
	"net/http"
	"strconv"
	"time"

	"astba/training-app/internal/domain"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultAuditLimit = 50

type TrainingHandler struct {
	trainingService service.TrainingService
	auditService    service.AuditService
	log             *logger.Logger
}

func NewTrainingHandler(trainingService service.TrainingService, auditService service.AuditService, log *logger.Logger) *TrainingHandler {
	return &TrainingHandler{trainingService: trainingService, auditService: auditService, log: log}
}

// --- DTOs ---

type CreateTrainingRequest struct {
	Name         string              `json:"name" binding:"required"`
	Description  string              `json:"description"`
	StartDate    *time.Time          `json:"startDate"`
	EndDate      *time.Time          `json:"endDate"`
	CreationMode domain.CreationMode `json:"creationMode" binding:"omitempty,oneof=AUTO MANUAL"`
}

// CreateTraining godoc
// @Summary Create a training
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param training body CreateTrainingRequest true "Training details"
// @Success 201 {object} domain.Training
// @Failure 400 {object} gin.H "Invalid input"
// @Router /trainings [post]
func (h *TrainingHandler) CreateTraining(c *gin.Context) {
	var req CreateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Validation error: "+err.Error())
		return
	}

	training, err := h.trainingService.CreateTraining(c.Request.Context(), service.CreateTrainingInput{
		Name:         req.Name,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		CreationMode: req.CreationMode,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, training)
}

// GetTraining godoc
// @Summary Get a training with its levels and sessions
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} service.TrainingDetail
// @Failure 404 {object} gin.H "Training not found"
// @Router /trainings/{id} [get]
func (h *TrainingHandler) GetTraining(c *gin.Context) {
	trainingID, ok := trainingIDParam(c)
	if !ok {
		return
	}
	detail, err := h.trainingService.GetTrainingDetail(c.Request.Context(), trainingID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GenerateStructure creates the default 4x6 structure of an AUTO training.
func (h *TrainingHandler) GenerateStructure(c *gin.Context) {
	trainingID, ok := trainingIDParam(c)
	if !ok {
		return
	}
	detail, err := h.trainingService.GenerateStructure(c.Request.Context(), trainingID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *TrainingHandler) GetAuditLogs(c *gin.Context) {
	trainingID, ok := trainingIDParam(c)
	if !ok {
		return
	}
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.auditService.ListForEntity(c.Request.Context(), domain.EntityTraining, trainingID.Hex(), limit)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditLog{} // Return empty JSON array, not null
	}
	c.JSON(http.StatusOK, entries)
}

func trainingIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Invalid training ID format.")
		return primitive.NilObjectID, false
	}
	return id, true
}
