package api

import (
	"net/http"

	"astba/training-app/internal/domain" // Needed for RoleMiddleware
	"astba/training-app/internal/logger"
	"astba/training-app/internal/metrics"
	"astba/training-app/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	log *logger.Logger,
	trainingService service.TrainingService,
	aiPlanService service.AIPlanService,
	auditService service.AuditService,
) {
	trainingHandler := NewTrainingHandler(trainingService, auditService, log)
	aiPlanHandler := NewAIPlanHandler(aiPlanService, log)

	authMiddleware := AuthMiddleware(jwtSecret)
	planners := RoleMiddleware(domain.RoleAdmin, domain.RoleCoordinator)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, codeInternal, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID, "role": role})
		})

		trainings := protected.Group("/trainings")
		{
			// POST /api/v1/trainings
			trainings.POST("", planners, trainingHandler.CreateTraining)
			// GET /api/v1/trainings/{id}
			trainings.GET("/:id", trainingHandler.GetTraining)
			// POST /api/v1/trainings/{id}/structure
			trainings.POST("/:id/structure", planners, trainingHandler.GenerateStructure)
			// GET /api/v1/trainings/{id}/audit-logs
			trainings.GET("/:id/audit-logs", RoleMiddleware(domain.RoleAdmin), trainingHandler.GetAuditLogs)

			// --- AI plan drafting ---
			trainings.POST("/:id/ai-plan", planners, aiPlanHandler.GeneratePlan)
			trainings.POST("/:id/apply-ai-plan", planners, aiPlanHandler.ApplyPlan)
			trainings.GET("/:id/ai-plan/snapshot", planners, aiPlanHandler.GetSnapshot)
		}
	}
}
