package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call lifecycle decisions for internal ops.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallAccepted records a webhook that passed verification and routing.
func (s *Service) LogCallAccepted(ctx context.Context, tenantID, traceID, callID, providerCallID string) error {
	return s.Append(ctx, Event{
		TenantID:       tenantID,
		Type:           EventTypeCallAccepted,
		TraceID:        traceID,
		CallID:         callID,
		ProviderCallID: providerCallID,
		Message:        "inbound call accepted",
	})
}

// LogCallRejected records a webhook rejected after tenant resolution, e.g.
// a tenant at its concurrency cap. Pre-routing rejections have no tenant and
// are visible in request logs only.
func (s *Service) LogCallRejected(ctx context.Context, tenantID, providerCallID, reason string) error {
	return s.Append(ctx, Event{
		TenantID:       tenantID,
		Type:           EventTypeCallRejected,
		ProviderCallID: providerCallID,
		Reason:         reason,
		Message:        "inbound call rejected",
	})
}

// LogCallCompleted records a terminal status callback.
func (s *Service) LogCallCompleted(ctx context.Context, tenantID, providerCallID, status string) error {
	return s.Append(ctx, Event{
		TenantID:       tenantID,
		Type:           EventTypeCallCompleted,
		ProviderCallID: providerCallID,
		Message:        "call reached terminal status " + status,
	})
}
