package main

import (
	"net/http"
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/httpapi"
	"chat-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps appDeps) {
	h := httpapi.Handlers{
		Auth:    deps.auth,
		Calls:   deps.calls,
		History: deps.history,
		Members: deps.members,
		Gateway: deps.gateway,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/v1/auth/login", h.Login)

	// Websocket handshake carries the token in the query string, so the
	// gateway does its own verification instead of using the middleware.
	r.GET("/ws", deps.gateway.Handle)

	// Conversation service callback. The caller authenticates with a regular
	// access token for now.
	internal := r.Group("/internal")
	internal.Use(deps.authMW)
	{
		internal.POST("/membership-changed", h.MembershipChanged)
	}

	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			name := auth.UserName(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "name": name})
		})

		callGroup := v1.Group("/calls")
		{
			callGroup.POST("/start", h.StartCall)
			callGroup.POST("/:call_id/join", h.JoinCall)
			callGroup.POST("/:call_id/end", h.EndCall)
			callGroup.POST("/:call_id/reject", h.RejectCall)
			callGroup.POST("/:call_id/cancel", h.CancelCall)
			callGroup.GET("/history", h.CallHistory)
			callGroup.GET("/summary", h.CallsSummary)
		}
	}
}
