package speech

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CancelSet records utterances the orchestrator has asked us to stop
// (barge-in). Marks are keyed by utterance id and consumed by the streaming
// loop, which checks before every chunk write.
type CancelSet interface {
	Mark(ctx context.Context, utteranceID string) error
	Observed(ctx context.Context, utteranceID string) (bool, error)
	Clear(ctx context.Context, utteranceID string) error
}

// MemoryCancelSet is the default single-process implementation.
type MemoryCancelSet struct {
	mu    sync.Mutex
	marks map[string]struct{}
}

func NewMemoryCancelSet() *MemoryCancelSet {
	return &MemoryCancelSet{marks: make(map[string]struct{})}
}

func (s *MemoryCancelSet) Mark(_ context.Context, utteranceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[utteranceID] = struct{}{}
	return nil
}

func (s *MemoryCancelSet) Observed(_ context.Context, utteranceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.marks[utteranceID]
	return ok, nil
}

func (s *MemoryCancelSet) Clear(_ context.Context, utteranceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, utteranceID)
	return nil
}

const defaultCancelTTL = 10 * time.Minute

// RedisCancelSet shares cancellation marks across replicas. Marks expire on
// their own so a stop request for an utterance that never streams does not
// linger forever.
type RedisCancelSet struct {
	RDB *redis.Client
	TTL time.Duration
}

func (s *RedisCancelSet) key(utteranceID string) string {
	return "utterance:cancel:" + utteranceID
}

func (s *RedisCancelSet) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return defaultCancelTTL
}

func (s *RedisCancelSet) Mark(ctx context.Context, utteranceID string) error {
	return s.RDB.Set(ctx, s.key(utteranceID), "1", s.ttl()).Err()
}

func (s *RedisCancelSet) Observed(ctx context.Context, utteranceID string) (bool, error) {
	n, err := s.RDB.Exists(ctx, s.key(utteranceID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisCancelSet) Clear(ctx context.Context, utteranceID string) error {
	return s.RDB.Del(ctx, s.key(utteranceID)).Err()
}
