package contract

import (
	"encoding/json"
	"testing"
)

func validTurnRequestJSON() []byte {
	req := TurnRequest{
		TraceID:  "tr_1",
		TenantID: "tenant_abc",
		CallID:   "call_1",
		TurnID:   "turn_1",
		CallerInput: CallerInput{
			Type: "speech",
			Text: "do you have availability tomorrow",
		},
		Context: TurnContext{
			FromNumber:      "+14255550100",
			ToNumber:        "+14255550199",
			BusinessProfile: BusinessProfile{Name: "Acme Plumbing", Timezone: "America/Los_Angeles"},
			FAQItems:        []FAQItem{{Q: "Are you licensed?", A: "Yes."}},
		},
	}
	b, _ := json.Marshal(req)
	return b
}

func TestValidateTurnRequest_OK(t *testing.T) {
	if issues := ValidateTurnRequest(validTurnRequestJSON()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidateTurnRequest_FieldLevelIssues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing tenant", `{"trace_id":"t","call_id":"c","turn_id":"1","caller_input":{"type":"speech","text":"hi"},"context":{"business_profile":{"name":"Acme"}}}`},
		{"empty caller text", `{"trace_id":"t","tenant_id":"x","call_id":"c","turn_id":"1","caller_input":{"type":"speech","text":""},"context":{"business_profile":{"name":"Acme"}}}`},
		{"bad input type", `{"trace_id":"t","tenant_id":"x","call_id":"c","turn_id":"1","caller_input":{"type":"video","text":"hi"},"context":{"business_profile":{"name":"Acme"}}}`},
		{"not json", `{"trace_id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issues := ValidateTurnRequest([]byte(tc.body))
			if len(issues) == 0 {
				t.Fatalf("expected issues")
			}
			if issues[0].Message == "" {
				t.Fatalf("expected a message on the first issue")
			}
		})
	}
}

func TestValidateSynthesisRequest(t *testing.T) {
	valid := `{"trace_id":"t","tenant_id":"x","call_id":"c","utterance_id":"u1",
		"voice":{"voice_id":"v1","stability":0.5},
		"audio":{"format":"ulaw","sample_rate_hz":8000},
		"text":"hello"}`
	if issues := ValidateSynthesisRequest([]byte(valid)); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}

	badRate := `{"trace_id":"t","tenant_id":"x","call_id":"c","utterance_id":"u1",
		"voice":{"voice_id":"v1"},
		"audio":{"format":"ulaw","sample_rate_hz":44100},
		"text":"hello"}`
	if issues := ValidateSynthesisRequest([]byte(badRate)); len(issues) == 0 {
		t.Fatalf("expected issue for unsupported sample rate")
	}
}

func TestValidateCallEvent_FlatAndNested(t *testing.T) {
	flat := `{"call_id":"pc1","to":"+14255550100","from":"+12065550123"}`
	if issues := ValidateCallEvent([]byte(flat)); len(issues) != 0 {
		t.Fatalf("flat envelope should validate, got %+v", issues)
	}
	nested := `{"call":{"call_id":"pc1","to":"+14255550100","from":"+12065550123"}}`
	if issues := ValidateCallEvent([]byte(nested)); len(issues) != 0 {
		t.Fatalf("nested envelope should validate, got %+v", issues)
	}
	if issues := ValidateCallEvent([]byte(`{"to":"+1"}`)); len(issues) == 0 {
		t.Fatalf("expected issues for missing fields")
	}
}

func TestDecodeNextAction(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"speak", `{"type":"speak","text":"Hello, how can I help?"}`, false},
		{"tool call", `{"type":"tool_call","tool_name":"create_lead","tool_args":{"name":"Pat"}}`, false},
		{"handoff", `{"type":"handoff","reason":"caller_requested_human"}`, false},
		{"end call", `{"type":"end_call","reason":"caller_done"}`, false},
		{"unknown type", `{"type":"transfer","reason":"x"}`, true},
		{"speak without text", `{"type":"speak"}`, true},
		{"two variants at once", `{"type":"speak","text":"hi","reason":"x"}`, true},
		{"not json", `speak: hi`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeNextAction([]byte(tc.body))
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDeterministicIdempotencyKey(t *testing.T) {
	a := DeterministicIdempotencyKey("call_1", "turn_2", "create_lead")
	b := DeterministicIdempotencyKey("call_1", "turn_2", "create_lead")
	if a != b {
		t.Fatalf("key must be deterministic: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
	if a == DeterministicIdempotencyKey("call_1", "turn_3", "create_lead") {
		t.Fatalf("different turn must give a different key")
	}
}
