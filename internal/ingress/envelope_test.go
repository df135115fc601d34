package ingress

import (
	"net/url"
	"testing"
)

func TestParseFormEnvelope_NormalizesNumbers(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "(206) 555-0123")
	form.Set("To", "1-425-555-0100")
	form.Set("CallStatus", "ringing")

	e := ParseFormEnvelope(form)
	if e.ProviderCallID != "CA123" {
		t.Fatalf("expected CallSid, got %q", e.ProviderCallID)
	}
	if e.From != "+12065550123" || e.To != "+14255550100" {
		t.Fatalf("numbers not normalized: %q %q", e.From, e.To)
	}
}

func TestParseJSONEnvelope_FlatAndNested(t *testing.T) {
	flat := []byte(`{"call_id":"pc1","to":"4255550100","from":"+12065550123"}`)
	e, issues := ParseJSONEnvelope(flat)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if e.ProviderCallID != "pc1" || e.To != "+14255550100" {
		t.Fatalf("bad flat parse: %+v", e)
	}

	nested := []byte(`{"call":{"call_id":"pc2","to":"+14255550100","from":"+12065550123","status":"answered"}}`)
	e, issues = ParseJSONEnvelope(nested)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if e.ProviderCallID != "pc2" || e.CallStatus != "answered" {
		t.Fatalf("bad nested parse: %+v", e)
	}
}

func TestParseJSONEnvelope_MissingFieldsReported(t *testing.T) {
	_, issues := ParseJSONEnvelope([]byte(`{"to":"+14255550100"}`))
	if len(issues) == 0 {
		t.Fatalf("expected issues for missing call_id/from")
	}
}

func TestEnvelopeMissingFields(t *testing.T) {
	e := CallEnvelope{ProviderCallID: "pc1", To: "+14255550100", From: "+12065550123"}
	if missing := e.MissingFields(); len(missing) != 0 {
		t.Fatalf("expected none missing, got %v", missing)
	}
	e = CallEnvelope{To: "+14255550100"}
	missing := e.MissingFields()
	if len(missing) != 2 {
		t.Fatalf("expected provider_call_id and from missing, got %v", missing)
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for _, s := range []string{"completed", "busy", "failed", "no-answer", "canceled", "COMPLETED"} {
		if !isTerminalStatus(s) {
			t.Fatalf("%q should be terminal", s)
		}
	}
	for _, s := range []string{"ringing", "in-progress", "queued", ""} {
		if isTerminalStatus(s) {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}
