package routes

import (
	"context"
	"net/http"

	"claims-intake-platform/models"
	"claims-intake-platform/services"
	"claims-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

// PrecedentQueue schedules embedding and indexing of precedent records
type PrecedentQueue interface {
	EnqueuePrecedentIndex(ctx context.Context, precedents []models.Precedent) (string, error)
}

// SetupProcessingRoutes registers the document extraction and appeal endpoints.
// queue may be nil, in which case precedents cannot be submitted over HTTP.
// indexGuards run before precedent submission.
func SetupProcessingRoutes(router gin.IRouter, processing *services.ProcessingService, queue PrecedentQueue, indexGuards ...gin.HandlerFunc) {
	router.POST("/process-pdfs", handleProcessPDFs(processing))
	router.POST("/get-appeal-guidance", handleAppealGuidance(processing))
	router.POST("/draft-email", handleDraftEmail(processing))
	router.POST("/draft_email", handleDraftEmail(processing))
	router.POST("/precedents", append(indexGuards, handleIndexPrecedents(queue))...)
}

func handleProcessPDFs(processing *services.ProcessingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Expected multipart form data", err.Error())
			return
		}
		defer form.RemoveAll()

		headers := form.File["files"]
		if len(headers) == 0 {
			utils.RespondWithBadRequest(c, "No files provided", nil)
			return
		}

		ctx, cancel := utils.WithLLMTimeout(c.Request.Context(), len(headers))
		defer cancel()

		results, err := processing.ProcessPDFs(ctx, toUploads(headers))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func handleAppealGuidance(processing *services.ProcessingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var claim models.HealthClaim
		if err := c.ShouldBindJSON(&claim); err != nil {
			utils.RespondWithBadRequest(c, "Invalid health claim", err.Error())
			return
		}

		ctx, cancel := utils.WithLLMTimeout(c.Request.Context(), 1)
		defer cancel()

		guidance, err := processing.AppealGuidance(ctx, claim)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, guidance)
	}
}

func handleDraftEmail(processing *services.ProcessingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DraftEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "content is required", err.Error())
			return
		}

		ctx, cancel := utils.WithLLMTimeout(c.Request.Context(), 1)
		defer cancel()

		draft, err := processing.DraftEmail(ctx, req.Content)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, draft)
	}
}

func handleIndexPrecedents(queue PrecedentQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if queue == nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Background processing is not configured", nil)
			return
		}

		var precedents []models.Precedent
		if err := c.ShouldBindJSON(&precedents); err != nil {
			utils.RespondWithBadRequest(c, "Expected a JSON array of precedents", err.Error())
			return
		}
		if len(precedents) == 0 {
			utils.RespondWithBadRequest(c, "No precedents provided", nil)
			return
		}
		for i := range precedents {
			if precedents[i].Source == "" {
				utils.RespondWithBadRequest(c, "Every precedent needs a source", gin.H{"index": i})
				return
			}
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		taskID, err := queue.EnqueuePrecedentIndex(ctx, precedents)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "count": len(precedents)})
	}
}
