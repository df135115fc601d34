package ingress

import (
	"encoding/json"
	"net/url"
	"strings"

	"receptionist-core/internal/contract"
	"receptionist-core/internal/routing"
)

// CallEnvelope is the provider-neutral view of an inbound call webhook.
// Providers disagree on field names and nesting; the parsers below converge
// form-encoded (Twilio-style) and JSON payloads into this one shape with
// numbers already normalized to E.164.
type CallEnvelope struct {
	ProviderCallID string
	From           string
	To             string
	CallStatus     string
}

// ParseFormEnvelope reads Twilio-style form fields.
func ParseFormEnvelope(form url.Values) CallEnvelope {
	return CallEnvelope{
		ProviderCallID: form.Get("CallSid"),
		From:           routing.NormalizeE164(form.Get("From")),
		To:             routing.NormalizeE164(form.Get("To")),
		CallStatus:     form.Get("CallStatus"),
	}
}

// ParseJSONEnvelope reads a JSON payload, accepting numbers either at the top
// level or nested under "call". Schema validation happens first so a caller
// gets field-level detail for missing required fields.
func ParseJSONEnvelope(raw []byte) (CallEnvelope, []contract.FieldIssue) {
	if issues := contract.ValidateCallEvent(raw); len(issues) > 0 {
		return CallEnvelope{}, issues
	}

	var payload struct {
		CallID string `json:"call_id"`
		To     string `json:"to"`
		From   string `json:"from"`
		Status string `json:"status"`
		Call   *struct {
			CallID string `json:"call_id"`
			To     string `json:"to"`
			From   string `json:"from"`
			Status string `json:"status"`
		} `json:"call"`
	}
	// Validation already proved this is well-formed JSON.
	_ = json.Unmarshal(raw, &payload)

	e := CallEnvelope{
		ProviderCallID: payload.CallID,
		To:             payload.To,
		From:           payload.From,
		CallStatus:     payload.Status,
	}
	if payload.Call != nil {
		e.ProviderCallID = payload.Call.CallID
		e.To = payload.Call.To
		e.From = payload.Call.From
		e.CallStatus = payload.Call.Status
	}
	e.To = routing.NormalizeE164(e.To)
	e.From = routing.NormalizeE164(e.From)
	return e, nil
}

// MissingFields lists required envelope fields that ended up empty after
// parsing and normalization.
func (e CallEnvelope) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(e.ProviderCallID) == "" {
		missing = append(missing, "provider_call_id")
	}
	if e.To == "" {
		missing = append(missing, "to")
	}
	if e.From == "" {
		missing = append(missing, "from")
	}
	return missing
}
