package decision

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func decisionRouter(e *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/turn", Handler{Engine: e}.HandleTurn)
	return r
}

func TestHandleTurn_FallbackHandoff(t *testing.T) {
	// No completion provider configured at all.
	r := decisionRouter(NewEngine(nil, nil))

	body := `{
		"trace_id":"tr_1","tenant_id":"tenant_abc","call_id":"call_1","turn_id":"turn_1",
		"caller_input":{"type":"speech","text":"I want to speak to a human"},
		"context":{"from_number":"+12065550123","to_number":"+14255550100",
			"business_profile":{"name":"Acme Plumbing"}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/turn", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(headerDecisionProvider); got != ProviderFallback {
		t.Fatalf("expected fallback provider header, got %q", got)
	}

	var resp struct {
		TraceID    string `json:"trace_id"`
		TenantID   string `json:"tenant_id"`
		CallID     string `json:"call_id"`
		TurnID     string `json:"turn_id"`
		NextAction struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"next_action"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp.NextAction.Type != "handoff" || resp.NextAction.Reason != "caller_requested_human" {
		t.Fatalf("unexpected action: %+v", resp.NextAction)
	}
	if resp.TenantID != "tenant_abc" || resp.TurnID != "turn_1" {
		t.Fatalf("echo fields wrong: %+v", resp)
	}
}

func TestHandleTurn_SchemaViolationIs422(t *testing.T) {
	r := decisionRouter(NewEngine(nil, nil))

	body := `{"trace_id":"tr_1","call_id":"call_1","turn_id":"turn_1",
		"caller_input":{"type":"speech","text":""},
		"context":{"business_profile":{"name":"Acme"}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/turn", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Error  string `json:"error"`
		Issues []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp.Error != "validation_failed" || len(resp.Issues) == 0 {
		t.Fatalf("expected field-level issues, got %+v", resp)
	}
}
