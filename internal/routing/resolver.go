package routing

import (
	"context"
	"log/slog"
	"sync"
)

// TenantRouting maps one dialed number to its owning tenant.
// At most one active routing exists per phone number at lookup time; the
// backing table is never written by this service.
type TenantRouting struct {
	TenantID    string `json:"tenant_id"`
	NumberID    string `json:"number_id"`
	PhoneNumber string `json:"phone_number"` // E.164
	Active      bool   `json:"active"`
}

// Source is the backing routing table. Version is a cheap staleness probe
// (file mtime, max(updated_at), an etag); Load reads the full table.
type Source interface {
	Version(ctx context.Context) (string, error)
	Load(ctx context.Context) ([]TenantRouting, error)
}

// Resolver serves number-to-tenant lookups from an in-process cache keyed by
// normalized phone number.
//
// Refresh discipline: a lookup that observes a changed version marker reloads
// the table; concurrent readers keep the previous snapshot until the reload
// completes, and a failed reload leaves the previous snapshot intact. Lookup
// cost stays O(1) amortized with no read of the source on the hot path.
type Resolver struct {
	source Source
	log    *slog.Logger

	mu      sync.RWMutex
	version string
	byNum   map[string]TenantRouting
	loaded  bool

	// refreshMu serializes reloads so a version change triggers one Load,
	// not one per in-flight request.
	refreshMu sync.Mutex
}

func NewResolver(source Source, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{source: source, log: log}
}

// Resolve returns the active routing for a dialed number, or false for
// unmapped numbers and numbers whose routing is inactive. Callers must treat
// both as a hard rejection; no call proceeds without an active tenant.
func (r *Resolver) Resolve(ctx context.Context, toNumber string) (TenantRouting, bool) {
	key := NormalizeE164(toNumber)
	if key == "" {
		return TenantRouting{}, false
	}

	r.refreshIfStale(ctx)

	r.mu.RLock()
	routing, ok := r.byNum[key]
	r.mu.RUnlock()

	if !ok || !routing.Active {
		return TenantRouting{}, false
	}
	return routing, true
}

func (r *Resolver) refreshIfStale(ctx context.Context) {
	ver, err := r.source.Version(ctx)
	if err != nil {
		// Keep serving the previous cache; the source may be back next call.
		r.log.Warn("routing source version probe failed", "err", err)
		return
	}

	r.mu.RLock()
	current, loaded := r.version, r.loaded
	r.mu.RUnlock()
	if loaded && current == ver {
		return
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// Another request may have finished the reload while we waited.
	r.mu.RLock()
	current, loaded = r.version, r.loaded
	r.mu.RUnlock()
	if loaded && current == ver {
		return
	}

	rows, err := r.source.Load(ctx)
	if err != nil {
		r.log.Warn("routing table reload failed; serving previous cache", "err", err)
		return
	}

	byNum := make(map[string]TenantRouting, len(rows))
	for _, row := range rows {
		num := NormalizeE164(row.PhoneNumber)
		if num == "" {
			continue
		}
		row.PhoneNumber = num
		if existing, dup := byNum[num]; dup && existing.Active {
			// One active routing per number; keep the first active row.
			if row.Active {
				r.log.Warn("duplicate active routing for number", "number", num, "kept_tenant", existing.TenantID, "dropped_tenant", row.TenantID)
			}
			continue
		}
		byNum[num] = row
	}

	r.mu.Lock()
	r.byNum = byNum
	r.version = ver
	r.loaded = true
	r.mu.Unlock()

	r.log.Info("routing table refreshed", "version", ver, "numbers", len(byNum))
}
