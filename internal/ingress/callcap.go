package ingress

import (
	"context"
	"time"

	"receptionist-core/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// CallCap bounds simultaneous accepted calls per tenant using the shared
// atomic counter in pkg/utils. A tenant at its cap gets a polite rejection
// instead of an agent that cannot keep up.
//
// The slot TTL covers abandoned calls whose completion callback never
// arrives (provider outage, dropped webhook).
type CallCap struct {
	RDB   *redis.Client
	Limit int
	TTL   time.Duration
}

func (c CallCap) Enabled() bool {
	return c.RDB != nil && c.Limit > 0
}

func (c CallCap) Acquire(ctx context.Context, tenantID string) (bool, error) {
	if !c.Enabled() {
		return true, nil
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return utils.AcquireConcurrencyCap(ctx, c.RDB, capKey(tenantID), c.Limit, ttl)
}

func (c CallCap) Release(ctx context.Context, tenantID string) error {
	if !c.Enabled() {
		return nil
	}
	return utils.ReleaseConcurrencyCap(ctx, c.RDB, capKey(tenantID))
}

func capKey(tenantID string) string {
	return "callcap:" + tenantID
}
