package audit

import "time"

// Event is an immutable, append-only record of a call lifecycle decision.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - Audit capture is best-effort; never block the webhook path on audit failures.
//
// Storage recommendation (Postgres):
// - Table call_audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// Type indicates the lifecycle stage the event records.
	Type EventType `json:"type" db:"type"`

	TraceID        string `json:"trace_id,omitempty" db:"trace_id"`
	CallID         string `json:"call_id,omitempty" db:"call_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	// Reason carries the rejection cause for call_rejected events.
	Reason string `json:"reason,omitempty" db:"reason"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallAccepted  EventType = "call_accepted"
	EventTypeCallRejected  EventType = "call_rejected"
	EventTypeCallCompleted EventType = "call_completed"
)
