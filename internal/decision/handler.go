package decision

import (
	"encoding/json"
	"io"
	"net/http"

	"receptionist-core/internal/contract"
	"receptionist-core/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler exposes the turn-decision endpoint. Thin by design: validate,
// decide, respond.
type Handler struct {
	Engine *Engine
}

const headerDecisionProvider = "X-Decision-Provider"

func (h Handler) HandleTurn(c *gin.Context) {
	log := logger.FromGin(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if issues := contract.ValidateTurnRequest(raw); len(issues) > 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation_failed",
			"issues": issues,
		})
		return
	}

	var req contract.TurnRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	d := h.Engine.Decide(c.Request.Context(), req)

	log.Info("turn decided",
		"trace_id", req.TraceID,
		"tenant_id", req.TenantID,
		"call_id", req.CallID,
		"turn_id", req.TurnID,
		"action", d.Action.Type,
		"provider", d.Provider,
	)

	c.Header(headerDecisionProvider, d.Provider)
	c.JSON(http.StatusOK, gin.H{
		"trace_id":    req.TraceID,
		"tenant_id":   req.TenantID,
		"call_id":     req.CallID,
		"turn_id":     req.TurnID,
		"next_action": d.Action,
		"extracted":   d.Extracted,
	})
}
