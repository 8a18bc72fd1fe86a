package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"claims-intake-platform/internal/claims"
	"claims-intake-platform/models"
	"claims-intake-platform/services"
	"claims-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

// ClaimProcessingQueue schedules background extraction of a claim's files
type ClaimProcessingQueue interface {
	EnqueueClaimProcessing(ctx context.Context, claimID string) (string, error)
}

// SetupClaimRoutes registers the claim CRUD, export and processing endpoints.
// queue may be nil when no Redis is configured.
func SetupClaimRoutes(router gin.IRouter, svc *claims.Service, export *services.ExportService, queue ClaimProcessingQueue) {
	group := router.Group("/claims")
	{
		group.POST("", handleCreateClaim(svc))
		group.GET("", handleListClaims(svc))
		group.GET("/export", handleExportClaims(export))
		group.GET("/:claimId", handleGetClaim(svc))
		group.PUT("/:claimId", handleUpdateClaim(svc))
		group.PATCH("/:claimId/status", handleUpdateClaimStatus(svc))
		group.DELETE("/:claimId", handleDeleteClaim(svc))
		group.POST("/:claimId/process", handleEnqueueProcessing(svc, queue))
	}
}

func handleCreateClaim(svc *claims.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.ClaimInput
		if err := c.ShouldBindJSON(&input); err != nil {
			utils.RespondWithBadRequest(c, "Invalid claim", err.Error())
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		claim, err := svc.Create(ctx, input)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.ClaimResponse{Claim: claim})
	}
}

func handleListClaims(svc *claims.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := models.ClaimListQuery{Status: models.ClaimStatus(c.Query("status"))}

		var err error
		if query.Limit, err = int64Query(c, "limit", claims.DefaultListLimit); err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		if query.Offset, err = int64Query(c, "offset", 0); err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		if query.Limit < 1 || query.Limit > claims.MaxListLimit || query.Offset < 0 {
			utils.RespondWithBadRequest(c, fmt.Sprintf("limit must be 1..%d and offset non-negative", claims.MaxListLimit), nil)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, total, err := svc.List(ctx, query)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		if list == nil {
			list = []models.Claim{}
		}
		c.JSON(http.StatusOK, models.ClaimsResponse{Claims: list, Total: total})
	}
}

func handleGetClaim(svc *claims.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		claim, err := svc.Get(ctx, c.Param("claimId"))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ClaimResponse{Claim: claim})
	}
}

func handleUpdateClaim(svc *claims.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.ClaimInput
		if err := c.ShouldBindJSON(&input); err != nil {
			utils.RespondWithBadRequest(c, "Invalid claim", err.Error())
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		claim, err := svc.Update(ctx, c.Param("claimId"), input)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ClaimResponse{Claim: claim})
	}
}

func handleUpdateClaimStatus(svc *claims.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.ClaimStatusUpdate
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondWithBadRequest(c, "Invalid status update", err.Error())
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		claim, err := svc.UpdateStatus(ctx, c.Param("claimId"), body.Status)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ClaimResponse{Claim: claim})
	}
}

func handleDeleteClaim(svc *claims.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := svc.Delete(ctx, c.Param("claimId")); err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"detail": "Claim deleted successfully"})
	}
}

func handleExportClaims(export *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.ClaimStatus(c.Query("status"))
		if status != "" && !status.Valid() {
			utils.RespondWithBadRequest(c, fmt.Sprintf("Invalid status: %s", status), nil)
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		result, err := export.ExportClaims(ctx, status)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		c.Header("Content-Disposition", attachmentDisposition(result.Filename))
		c.Header("X-Record-Count", strconv.Itoa(result.RecordCount))
		c.Data(http.StatusOK, services.XLSXContentType, result.Content)
	}
}

func handleEnqueueProcessing(svc *claims.Service, queue ClaimProcessingQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if queue == nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Background processing is not configured", nil)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		claim, err := svc.Get(ctx, c.Param("claimId"))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		taskID, err := queue.EnqueueClaimProcessing(ctx, claim.ClaimID)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"claim_id": claim.ClaimID, "task_id": taskID})
	}
}

func int64Query(c *gin.Context, key string, fallback int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return v, nil
}
