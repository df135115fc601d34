package decision

import (
	"strings"

	"receptionist-core/internal/contract"
)

// Deterministic local decisioning used whenever the completion provider is
// unavailable or produces an invalid action. It is total (any input yields a
// valid action) and pure (same input, same action), so the conversation
// stays responsive under provider degradation.
//
// Only the latest utterance is inspected. Urgency established on an earlier
// turn is not carried forward; whether it should be is a product-policy
// question, not something this engine invents state for.

var handoffPhrases = []string{
	"human",
	"real person",
	"representative",
	"operator",
	"speak to someone",
	"talk to someone",
	"speak to a person",
	"talk to a person",
	"manager",
}

var endCallPhrases = []string{
	"goodbye",
	"good bye",
	"bye",
	"hang up",
	"that's all",
	"thats all",
	"that is all",
	"nothing else",
	"no thanks",
	"no thank you",
	"we're done",
	"i'm done",
}

var schedulePhrases = []string{
	"appointment",
	"schedule",
	"book",
	"booking",
	"reschedule",
	"quote",
	"estimate",
	"callback",
	"call me back",
	"come out",
	"availability",
	"available",
	"someone come",
}

var urgentPhrases = []string{
	"emergency",
	"urgent",
	"asap",
	"right away",
	"immediately",
	"flooding",
	"burst",
	"no heat",
	"no power",
}

const leadToolName = "create_lead"

// FallbackDecide maps the latest caller utterance to an action by keyword
// signals in priority order: escalation, ending, scheduling, then a generic
// clarifying line.
func FallbackDecide(req contract.TurnRequest) (contract.NextAction, contract.Extracted) {
	text := strings.ToLower(strings.TrimSpace(req.CallerInput.Text))
	extracted := ExtractSignals(req)

	switch {
	case containsAny(text, handoffPhrases):
		return contract.NextAction{
			Type:   contract.ActionHandoff,
			Reason: "caller_requested_human",
		}, extracted

	case containsAny(text, endCallPhrases):
		return contract.NextAction{
			Type:   contract.ActionEndCall,
			Reason: "caller_done",
		}, extracted

	case containsAny(text, schedulePhrases):
		return contract.NextAction{
			Type:     contract.ActionToolCall,
			ToolName: leadToolName,
			ToolArgs: map[string]any{
				"source":        "phone_call",
				"caller_number": req.Context.FromNumber,
				"notes":         req.CallerInput.Text,
			},
			IdempotencyKey: contract.DeterministicIdempotencyKey(req.CallID, req.TurnID, leadToolName),
		}, extracted

	default:
		return contract.NextAction{
			Type: contract.ActionSpeak,
			Text: clarifyingLine(req.Context.BusinessProfile.Name),
		}, extracted
	}
}

// ExtractSignals derives best-effort intent/urgency/entity fields from the
// utterance. Fields may be empty; consumers must not rely on them.
func ExtractSignals(req contract.TurnRequest) contract.Extracted {
	text := strings.ToLower(strings.TrimSpace(req.CallerInput.Text))

	e := contract.Extracted{}
	switch {
	case containsAny(text, handoffPhrases):
		e.Intent = "escalate"
	case containsAny(text, endCallPhrases):
		e.Intent = "farewell"
	case containsAny(text, schedulePhrases):
		e.Intent = "booking"
	default:
		e.Intent = "general_inquiry"
	}

	if containsAny(text, urgentPhrases) {
		e.Urgency = "high"
	}

	entities := map[string]string{}
	if req.Context.FromNumber != "" {
		entities["caller_number"] = req.Context.FromNumber
	}
	for _, when := range []string{"today", "tomorrow", "tonight", "this week", "next week"} {
		if strings.Contains(text, when) {
			entities["when"] = when
			break
		}
	}
	if len(entities) > 0 {
		e.Entities = entities
	}
	return e
}

func clarifyingLine(businessName string) string {
	if businessName != "" {
		return "Thanks for calling " + businessName + ". Could you tell me a little more about what you need help with?"
	}
	return "Thanks for calling. Could you tell me a little more about what you need help with?"
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
