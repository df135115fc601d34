package contract

import (
	"encoding/json"
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON Schema validation for the external API surface.
// Schemas are compiled once at init; validators return field-level issues
// suitable for 422 responses, never panics on caller input.

const turnRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["trace_id", "tenant_id", "call_id", "turn_id", "caller_input", "context"],
  "properties": {
    "trace_id": {"type": "string", "minLength": 1},
    "tenant_id": {"type": "string", "minLength": 1},
    "call_id": {"type": "string", "minLength": 1},
    "turn_id": {"type": "string", "minLength": 1},
    "caller_input": {
      "type": "object",
      "required": ["type", "text"],
      "properties": {
        "type": {"enum": ["speech", "dtmf"]},
        "text": {"type": "string", "minLength": 1}
      }
    },
    "context": {
      "type": "object",
      "required": ["business_profile"],
      "properties": {
        "from_number": {"type": "string"},
        "to_number": {"type": "string"},
        "business_profile": {
          "type": "object",
          "required": ["name"],
          "properties": {
            "name": {"type": "string", "minLength": 1},
            "timezone": {"type": "string"},
            "industry": {"type": "string"},
            "greeting": {"type": "string"}
          }
        },
        "faq_items": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["q", "a"],
            "properties": {
              "q": {"type": "string"},
              "a": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

const nextActionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "oneOf": [
    {
      "properties": {"type": {"const": "speak"}, "text": {"type": "string", "minLength": 1}},
      "required": ["type", "text"]
    },
    {
      "properties": {
        "type": {"const": "tool_call"},
        "tool_name": {"type": "string", "minLength": 1},
        "tool_args": {"type": "object"},
        "idempotency_key": {"type": "string"}
      },
      "required": ["type", "tool_name"]
    },
    {
      "properties": {"type": {"const": "handoff"}, "reason": {"type": "string", "minLength": 1}},
      "required": ["type", "reason"]
    },
    {
      "properties": {"type": {"const": "end_call"}, "reason": {"type": "string", "minLength": 1}},
      "required": ["type", "reason"]
    }
  ]
}`

const synthesisRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["trace_id", "tenant_id", "call_id", "utterance_id", "voice", "audio", "text"],
  "properties": {
    "trace_id": {"type": "string", "minLength": 1},
    "tenant_id": {"type": "string", "minLength": 1},
    "call_id": {"type": "string", "minLength": 1},
    "utterance_id": {"type": "string", "minLength": 1},
    "provider": {"type": "string"},
    "voice": {
      "type": "object",
      "required": ["voice_id"],
      "properties": {
        "voice_id": {"type": "string", "minLength": 1},
        "stability": {"type": "number", "minimum": 0, "maximum": 1},
        "similarity_boost": {"type": "number", "minimum": 0, "maximum": 1},
        "style": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "audio": {
      "type": "object",
      "required": ["format", "sample_rate_hz"],
      "properties": {
        "format": {"enum": ["ulaw", "pcm", "mp3"]},
        "sample_rate_hz": {"enum": [8000, 16000, 22050, 24000]}
      }
    },
    "text": {"type": "string", "minLength": 1}
  }
}`

// callEventSchema accepts the JSON webhook envelope. Providers nest numbers
// differently, so both flat and call-wrapped shapes are allowed.
const callEventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [
    {
      "required": ["call_id", "to", "from"],
      "properties": {
        "call_id": {"type": "string", "minLength": 1},
        "to": {"type": "string", "minLength": 1},
        "from": {"type": "string", "minLength": 1}
      }
    },
    {
      "required": ["call"],
      "properties": {
        "call": {
          "type": "object",
          "required": ["call_id", "to", "from"],
          "properties": {
            "call_id": {"type": "string", "minLength": 1},
            "to": {"type": "string", "minLength": 1},
            "from": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  ]
}`

var (
	turnRequestCompiled      = jsonschema.MustCompileString("turn_request.json", turnRequestSchema)
	nextActionCompiled       = jsonschema.MustCompileString("next_action.json", nextActionSchema)
	synthesisRequestCompiled = jsonschema.MustCompileString("synthesis_request.json", synthesisRequestSchema)
	callEventCompiled        = jsonschema.MustCompileString("call_event.json", callEventSchema)
)

// FieldIssue is one schema violation, addressed by JSON pointer.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func ValidateTurnRequest(raw []byte) []FieldIssue {
	return validateRaw(turnRequestCompiled, raw)
}

func ValidateSynthesisRequest(raw []byte) []FieldIssue {
	return validateRaw(synthesisRequestCompiled, raw)
}

func ValidateCallEvent(raw []byte) []FieldIssue {
	return validateRaw(callEventCompiled, raw)
}

// DecodeNextAction parses a candidate action (typically LLM output), checks
// it against the schema, and enforces the one-variant invariant.
func DecodeNextAction(raw []byte) (NextAction, error) {
	if issues := validateRaw(nextActionCompiled, raw); len(issues) > 0 {
		return NextAction{}, errors.New("contract: next action schema violation: " + issues[0].Message)
	}
	var a NextAction
	if err := json.Unmarshal(raw, &a); err != nil {
		return NextAction{}, err
	}
	if err := a.Validate(); err != nil {
		return NextAction{}, err
	}
	return a, nil
}

func validateRaw(schema *jsonschema.Schema, raw []byte) []FieldIssue {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return []FieldIssue{{Field: "", Message: "body is not valid JSON"}}
	}
	err := schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldIssue{{Field: "", Message: err.Error()}}
	}
	issues := flattenIssues(ve, nil)
	if len(issues) == 0 {
		issues = []FieldIssue{{Field: ve.InstanceLocation, Message: ve.Message}}
	}
	return issues
}

func flattenIssues(ve *jsonschema.ValidationError, acc []FieldIssue) []FieldIssue {
	if len(ve.Causes) == 0 {
		return append(acc, FieldIssue{Field: ve.InstanceLocation, Message: ve.Message})
	}
	for _, c := range ve.Causes {
		acc = flattenIssues(c, acc)
	}
	return acc
}
