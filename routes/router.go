package routes

import (
	"context"
	"net/http"
	"time"

	"claims-intake-platform/internal/claims"
	"claims-intake-platform/middleware"
	"claims-intake-platform/services"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether a backing dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Dependencies carries everything the HTTP surface needs.
// Queue and Auth are optional.
type Dependencies struct {
	Claims     *claims.Service
	Intake     *services.IntakeService
	Processing *services.ProcessingService
	Export     *services.ExportService

	Queue interface {
		ClaimProcessingQueue
		PrecedentQueue
	}
	Auth *middleware.AuthMiddleware

	// Middleware runs on every API route after authentication
	Middleware []gin.HandlerFunc

	// Readiness checks are keyed by dependency name
	Readiness map[string]ReadinessCheck
}

// SetupRoutes registers every endpoint on router
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	SetupHealthRoutes(router, deps.Readiness)

	api := router.Group("")
	var indexGuards []gin.HandlerFunc
	if deps.Auth != nil {
		api.Use(deps.Auth.Authenticate())
		api.POST("/auth/logout", deps.Auth.Logout)
		indexGuards = append(indexGuards, middleware.AdminGuard())
	}
	api.Use(deps.Middleware...)

	var claimQueue ClaimProcessingQueue
	var precedentQueue PrecedentQueue
	if deps.Queue != nil {
		claimQueue, precedentQueue = deps.Queue, deps.Queue
	}

	SetupClaimRoutes(api, deps.Claims, deps.Export, claimQueue)
	SetupFileRoutes(api, deps.Intake)
	SetupProcessingRoutes(api, deps.Processing, precedentQueue, indexGuards...)
}

// SetupHealthRoutes registers liveness and readiness probes
func SetupHealthRoutes(router gin.IRouter, checks map[string]ReadinessCheck) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	})
}
