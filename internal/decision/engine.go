package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"receptionist-core/internal/contract"
)

const (
	ProviderPrimary  = "primary"
	ProviderFallback = "fallback"
)

// Decision is the engine's output: exactly one next action, plus which path
// produced it. Provider degradation is never an error to the caller; it is
// visible only through the Provider field and log events.
type Decision struct {
	Action    contract.NextAction `json:"next_action"`
	Provider  string              `json:"provider"`
	Extracted contract.Extracted  `json:"extracted"`
}

// Engine turns one caller utterance into one next action.
//
// The primary path asks the completion provider for a single NextAction JSON
// object and validates it against the schema. Any failure on that path
// (missing credential, transport error, invalid JSON, schema violation)
// falls through to FallbackDecide. There is no retry inside a single Decide;
// a failure immediately falls back, which bounds per-turn latency.
type Engine struct {
	Provider CompletionProvider // nil means fallback-only
	Log      *slog.Logger
}

func NewEngine(provider CompletionProvider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Provider: provider, Log: log}
}

func (e *Engine) Decide(ctx context.Context, req contract.TurnRequest) Decision {
	if e.Provider != nil {
		if action, ok := e.decidePrimary(ctx, req); ok {
			return Decision{
				Action:    action,
				Provider:  ProviderPrimary,
				Extracted: ExtractSignals(req),
			}
		}
	}

	action, extracted := FallbackDecide(req)
	return Decision{Action: action, Provider: ProviderFallback, Extracted: extracted}
}

func (e *Engine) decidePrimary(ctx context.Context, req contract.TurnRequest) (contract.NextAction, bool) {
	out, err := e.Provider.Complete(ctx, systemInstruction, userPrompt(req))
	if err != nil {
		e.Log.Warn("completion provider failed; using fallback",
			"trace_id", req.TraceID, "call_id", req.CallID, "turn_id", req.TurnID, "err", err)
		return contract.NextAction{}, false
	}

	action, err := contract.DecodeNextAction(extractJSONObject(out))
	if err != nil {
		// The raw model output stays out of the logs; it may echo caller text.
		e.Log.Warn("completion output rejected; using fallback",
			"trace_id", req.TraceID, "call_id", req.CallID, "turn_id", req.TurnID, "err", err)
		return contract.NextAction{}, false
	}

	// The key is always derived here, whatever the model supplied, so a
	// retried decision produces the same key.
	if action.Type == contract.ActionToolCall {
		action.IdempotencyKey = contract.DeterministicIdempotencyKey(req.CallID, req.TurnID, action.ToolName)
	}
	return action, true
}

const systemInstruction = `You are the turn decision engine for a business phone receptionist.
Respond with exactly one JSON object and nothing else, in one of these four shapes:
{"type":"speak","text":"<what to say next>"}
{"type":"tool_call","tool_name":"create_lead","tool_args":{...}}
{"type":"handoff","reason":"<why a human should take over>"}
{"type":"end_call","reason":"<why the call is over>"}
Escalate to handoff when the caller asks for a human. Use create_lead when the
caller wants to schedule, book, or get a quote. End the call when the caller
says goodbye. Otherwise speak a short, helpful reply.`

func userPrompt(req contract.TurnRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s", req.Context.BusinessProfile.Name)
	if tz := req.Context.BusinessProfile.Timezone; tz != "" {
		fmt.Fprintf(&b, " (timezone %s)", tz)
	}
	b.WriteString("\n")
	if len(req.Context.FAQItems) > 0 {
		b.WriteString("FAQ:\n")
		for _, item := range req.Context.FAQItems {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", item.Q, item.A)
		}
	}
	fmt.Fprintf(&b, "Caller (%s): %s\n", req.CallerInput.Type, req.CallerInput.Text)
	return b.String()
}

// extractJSONObject tolerates models wrapping the object in code fences or
// prose: it slices from the first '{' to the last '}'.
func extractJSONObject(s string) []byte {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return []byte(s)
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return []byte(s)
	}
	return []byte(candidate)
}
