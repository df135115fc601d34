package speech

import (
	"encoding/json"
	"io"
	"net/http"

	"receptionist-core/internal/contract"
	"receptionist-core/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	headerUtteranceID       = "X-Utterance-Id"
	headerSynthesisProvider = "X-Synthesis-Provider"
)

type Handler struct {
	Service *Service
}

// HandleSynthesize streams one utterance. Headers are committed before the
// first audio byte, so provider selection happens up front in Open; once
// bytes are on the wire the only remaining outcomes are completion,
// cancellation, or a truncated stream.
func (h Handler) HandleSynthesize(c *gin.Context) {
	log := logger.FromGin(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if issues := contract.ValidateSynthesisRequest(raw); len(issues) > 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation_failed",
			"issues": issues,
		})
		return
	}

	var req contract.SynthesisRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	body, provider := h.Service.Open(c.Request.Context(), req)

	c.Header(headerUtteranceID, req.UtteranceID)
	c.Header(headerSynthesisProvider, provider)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)

	res, streamErr := h.Service.StreamTo(c.Request.Context(), req.UtteranceID, c.Writer, body)
	res.Provider = provider

	attrs := []any{
		"trace_id", req.TraceID,
		"tenant_id", req.TenantID,
		"call_id", req.CallID,
		"utterance_id", req.UtteranceID,
		"provider", res.Provider,
		"bytes", res.Bytes,
		"cancelled", res.Cancelled,
	}
	if streamErr != nil {
		// Status is already committed; the truncated stream is the signal.
		log.Warn("synthesis stream ended early", append(attrs, "err", streamErr)...)
		return
	}
	log.Info("synthesis stream finished", attrs...)
}

// HandleStop marks an utterance for cancellation. Always 202: stopping an
// unknown or already-finished utterance is a no-op, and racing a stream that
// is about to finish is inherent to barge-in.
func (h Handler) HandleStop(c *gin.Context) {
	utteranceID := c.Param("utterance_id")

	if err := h.Service.Cancels.Mark(c.Request.Context(), utteranceID); err != nil {
		logger.FromGin(c).Warn("cancel mark failed", "utterance_id", utteranceID, "err", err)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"ok":           true,
		"utterance_id": utteranceID,
	})
}
