package ingress

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"receptionist-core/internal/audit"
	"receptionist-core/internal/contract"
	"receptionist-core/internal/routing"
	"receptionist-core/internal/signature"
	"receptionist-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler runs an inbound call webhook through the trust pipeline:
//
//	received -> verified -> parsed -> routed -> accepted
//
// Each arrow can reject with its own status: 401 on signature failure,
// 400 on an unparsable payload, 422 on missing required fields, 404 when no
// active tenant owns the dialed number. The handler never blocks on
// downstream orchestration; it establishes trust and routing, emits the
// inbound call event, and returns.
//
// Providers may retry a CallSid. Reprocessing is safe: the only side effect
// of acceptance is a log event (plus an idempotent cap slot).
//
// Signature headers by scheme:
//   - hmac: X-Twilio-Signature over the request URL + sorted form params.
//     Only form-encoded bodies carry a defined canonical string, so JSON
//     bodies under hmac are rejected (cannot verify means reject).
//   - ed25519: X-Signature-Ed25519 + X-Timestamp over "{timestamp}|{body}".
type WebhookHandler struct {
	Verifier signature.Verifier
	Resolver *routing.Resolver
	Cap      CallCap
	Audit    *audit.Service // optional; best-effort trail of accept/reject decisions

	Now func() time.Time
}

const (
	headerHMACSignature    = "X-Twilio-Signature"
	headerEd25519Signature = "X-Signature-Ed25519"
	headerTimestamp        = "X-Timestamp"
)

// Limit for diagnostics on unparsable payloads; never log more than this.
const payloadDiagnosticLimit = 512

func (h WebhookHandler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	envelope, ok := h.verifyAndParse(c, raw)
	if !ok {
		return
	}

	if missing := envelope.MissingFields(); len(missing) > 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":          "missing_required_fields",
			"missing_fields": missing,
		})
		return
	}

	tenant, found := h.Resolver.Resolve(c.Request.Context(), envelope.To)
	if !found {
		// Expected outcome for unprovisioned numbers, not a fault.
		log.Info("no active tenant for dialed number", "to_number", envelope.To)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tenant_not_found_for_number"})
		return
	}

	if h.Cap.Enabled() {
		acquired, err := h.Cap.Acquire(c.Request.Context(), tenant.TenantID)
		if err != nil {
			// The cap is protective, not load-bearing; on Redis trouble we
			// accept the call rather than dropping tenant traffic.
			log.Warn("call cap acquire failed", "tenant_id", tenant.TenantID, "err", err)
		} else if !acquired {
			log.Info("tenant call cap reached", "tenant_id", tenant.TenantID)
			h.auditReject(c, tenant.TenantID, envelope.ProviderCallID, "tenant_call_cap_reached")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "tenant_call_cap_reached"})
			return
		}
	}

	event := contract.InboundCallEvent{
		TraceID:        uuid.NewString(),
		CallID:         uuid.NewString(),
		TenantID:       tenant.TenantID,
		ProviderCallID: envelope.ProviderCallID,
		FromNumber:     envelope.From,
		ToNumber:       envelope.To,
	}
	log.Info("inbound call received",
		"trace_id", event.TraceID,
		"call_id", event.CallID,
		"tenant_id", event.TenantID,
		"provider_call_id", event.ProviderCallID,
		"from_number", event.FromNumber,
		"to_number", event.ToNumber,
	)
	if h.Audit != nil {
		if err := h.Audit.LogCallAccepted(c.Request.Context(), event.TenantID, event.TraceID, event.CallID, event.ProviderCallID); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h WebhookHandler) auditReject(c *gin.Context, tenantID, providerCallID, reason string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.LogCallRejected(c.Request.Context(), tenantID, providerCallID, reason); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// HandleCallStatus consumes provider status callbacks and releases the
// tenant's cap slot once the call leaves the network.
func (h WebhookHandler) HandleCallStatus(c *gin.Context) {
	log := logger.FromGin(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	envelope, ok := h.verifyAndParse(c, raw)
	if !ok {
		return
	}

	if isTerminalStatus(envelope.CallStatus) && envelope.To != "" {
		if tenant, found := h.Resolver.Resolve(c.Request.Context(), envelope.To); found {
			if err := h.Cap.Release(c.Request.Context(), tenant.TenantID); err != nil {
				log.Warn("call cap release failed", "tenant_id", tenant.TenantID, "err", err)
			}
			if h.Audit != nil {
				if err := h.Audit.LogCallCompleted(c.Request.Context(), tenant.TenantID, envelope.ProviderCallID, envelope.CallStatus); err != nil {
					log.Warn("audit append failed", "err", err)
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// verifyAndParse handles received -> verified -> parsed. On failure it has
// already written the rejection response.
//
// Signature failures are never logged with caller content.
func (h WebhookHandler) verifyAndParse(c *gin.Context, raw []byte) (CallEnvelope, bool) {
	log := logger.FromGin(c)

	contentType := c.ContentType()
	isForm := strings.HasPrefix(contentType, "application/x-www-form-urlencoded")

	switch h.Verifier.Scheme {
	case signature.SchemeHMAC:
		if !isForm {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature_verification_failed"})
			return CallEnvelope{}, false
		}
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			log.Warn("webhook form unparsable", "bytes", len(raw))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
			return CallEnvelope{}, false
		}
		if !h.Verifier.VerifyHMAC(requestURL(c.Request), form, c.GetHeader(headerHMACSignature)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature_verification_failed"})
			return CallEnvelope{}, false
		}
		return ParseFormEnvelope(form), true

	case signature.SchemeEd25519:
		if !h.Verifier.VerifyEd25519(raw, c.GetHeader(headerEd25519Signature), c.GetHeader(headerTimestamp)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature_verification_failed"})
			return CallEnvelope{}, false
		}
		if isForm {
			form, err := url.ParseQuery(string(raw))
			if err != nil {
				log.Warn("webhook form unparsable", "bytes", len(raw))
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
				return CallEnvelope{}, false
			}
			return ParseFormEnvelope(form), true
		}
		envelope, issues := ParseJSONEnvelope(raw)
		if len(issues) > 0 {
			if issues[0].Field == "" && issues[0].Message == "body is not valid JSON" {
				log.Warn("webhook json unparsable", "bytes", min(len(raw), payloadDiagnosticLimit))
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
				return CallEnvelope{}, false
			}
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "missing_required_fields",
				"issues": issues,
			})
			return CallEnvelope{}, false
		}
		return envelope, true

	default:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature_verification_failed"})
		return CallEnvelope{}, false
	}
}

func isTerminalStatus(status string) bool {
	switch strings.ToLower(status) {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	default:
		return false
	}
}

// requestURL reconstructs the public URL the provider signed. Behind a proxy
// the original scheme arrives in X-Forwarded-Proto.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
