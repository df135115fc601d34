package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Shared request/response shapes for the turn-decision and speech-synthesis
// services, plus the inbound call event emitted by ingress.
//
// The core is stateless: callers supply conversation context on every
// request, and nothing here is persisted.

// InboundCallEvent is created once per authenticated inbound webhook.
// It is immutable and handed to the orchestrator; the core only logs it.
type InboundCallEvent struct {
	TraceID        string `json:"trace_id"`
	CallID         string `json:"call_id"`
	TenantID       string `json:"tenant_id"`
	ProviderCallID string `json:"provider_call_id"`
	FromNumber     string `json:"from_number"`
	ToNumber       string `json:"to_number"`
}

type CallerInput struct {
	Type string `json:"type"` // "speech" or "dtmf"
	Text string `json:"text"`
}

type BusinessProfile struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
	Industry string `json:"industry,omitempty"`
	Greeting string `json:"greeting,omitempty"`
}

type FAQItem struct {
	Q string `json:"q"`
	A string `json:"a"`
}

type TurnContext struct {
	FromNumber      string          `json:"from_number,omitempty"`
	ToNumber        string          `json:"to_number,omitempty"`
	BusinessProfile BusinessProfile `json:"business_profile"`
	FAQItems        []FAQItem       `json:"faq_items,omitempty"`
}

// TurnRequest is one caller utterance plus everything the decision engine is
// allowed to know. No history is kept across turns.
type TurnRequest struct {
	TraceID     string      `json:"trace_id"`
	TenantID    string      `json:"tenant_id"`
	CallID      string      `json:"call_id"`
	TurnID      string      `json:"turn_id"`
	CallerInput CallerInput `json:"caller_input"`
	Context     TurnContext `json:"context"`
}

type ActionType string

const (
	ActionSpeak    ActionType = "speak"
	ActionToolCall ActionType = "tool_call"
	ActionHandoff  ActionType = "handoff"
	ActionEndCall  ActionType = "end_call"
)

// NextAction is a closed tagged union: exactly one variant per turn.
// Consumers must switch on Type; Validate enforces the one-variant invariant
// so a malformed candidate never reaches a caller as a decision.
type NextAction struct {
	Type ActionType `json:"type"`

	// speak
	Text string `json:"text,omitempty"`

	// tool_call
	ToolName       string         `json:"tool_name,omitempty"`
	ToolArgs       map[string]any `json:"tool_args,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`

	// handoff / end_call
	Reason string `json:"reason,omitempty"`
}

func (a NextAction) Validate() error {
	switch a.Type {
	case ActionSpeak:
		if a.Text == "" {
			return errors.New("contract: speak requires text")
		}
		if a.ToolName != "" || a.Reason != "" {
			return errors.New("contract: speak carries foreign variant fields")
		}
	case ActionToolCall:
		if a.ToolName == "" {
			return errors.New("contract: tool_call requires tool_name")
		}
		if a.Text != "" || a.Reason != "" {
			return errors.New("contract: tool_call carries foreign variant fields")
		}
	case ActionHandoff, ActionEndCall:
		if a.Reason == "" {
			return fmt.Errorf("contract: %s requires reason", a.Type)
		}
		if a.Text != "" || a.ToolName != "" {
			return fmt.Errorf("contract: %s carries foreign variant fields", a.Type)
		}
	default:
		return fmt.Errorf("contract: unknown action type %q", a.Type)
	}
	return nil
}

// DeterministicIdempotencyKey derives the tool-call dedup key.
// It must be stable for a given (callID, turnID, toolName) so retried
// decisions produce the same key.
func DeterministicIdempotencyKey(callID, turnID, toolName string) string {
	sum := sha256.Sum256([]byte(callID + "|" + turnID + "|" + toolName))
	return hex.EncodeToString(sum[:16])
}

type VoiceParams struct {
	VoiceID         string   `json:"voice_id"`
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
}

type AudioParams struct {
	Format       string `json:"format"` // "ulaw", "pcm" or "mp3"
	SampleRateHz int    `json:"sample_rate_hz"`
}

// SynthesisRequest describes one utterance to synthesize.
// UtteranceID doubles as the cancellation handle for barge-in.
type SynthesisRequest struct {
	TraceID     string      `json:"trace_id"`
	TenantID    string      `json:"tenant_id"`
	CallID      string      `json:"call_id"`
	UtteranceID string      `json:"utterance_id"`
	Provider    string      `json:"provider,omitempty"`
	Voice       VoiceParams `json:"voice"`
	Audio       AudioParams `json:"audio"`
	Text        string      `json:"text"`
}

// Extracted carries best-effort intent/urgency/entity signals alongside a
// decision. All fields may be empty.
type Extracted struct {
	Intent   string            `json:"intent,omitempty"`
	Urgency  string            `json:"urgency,omitempty"`
	Entities map[string]string `json:"entities,omitempty"`
}
