package main

import (
	"database/sql"
	"net/http"
	"time"

	"receptionist-core/internal/audit"
	"receptionist-core/internal/auth"
	"receptionist-core/internal/decision"
	"receptionist-core/internal/ingress"
	"receptionist-core/internal/routing"
	"receptionist-core/internal/signature"
	"receptionist-core/internal/speech"
	"receptionist-core/pkg/utils"

	"github.com/gin-gonic/gin"
)

type apiDeps struct {
	authManager *auth.Manager
	db          *sql.DB
	resolver    *routing.Resolver
	verifier    signature.Verifier
	callCap     ingress.CallCap
	audit       *audit.Service
	engine      *decision.Engine
	speech      *speech.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d apiDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if d.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "service": serviceName, "error": "db unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": serviceName})
	})

	// Provider webhooks. Authenticated by signature, not by bearer token.
	webhooks := ingress.WebhookHandler{
		Verifier: d.verifier,
		Resolver: d.resolver,
		Cap:      d.callCap,
		Audit:    d.audit,
	}
	r.POST("/webhooks/voice", webhooks.HandleInboundCall)
	r.POST("/webhooks/voice/status", webhooks.HandleCallStatus)

	// Internal API for the orchestrator.
	v1 := r.Group("/v1")
	v1.Use(auth.RequireServiceToken(d.authManager))
	{
		v1.POST("/turn", decision.Handler{Engine: d.engine}.HandleTurn)

		sh := speech.Handler{Service: d.speech}
		v1.POST("/synthesize", sh.HandleSynthesize)
		v1.POST("/utterances/:utterance_id/stop", sh.HandleStop)
	}
}
