package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/antiwork/flexile-sub003/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateCapTable(ctx context.Context, ct *model.CapTable) error {
	if err := s.primary.CreateCapTable(ctx, ct); err != nil {
		return err
	}
	s.cacheJSON(ctx, capTableKey(ct.ID), ct)
	return nil
}

func (s *CachedStore) SaveScenario(ctx context.Context, sc *model.Scenario) error {
	if err := s.primary.SaveScenario(ctx, sc); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, scenarioKey(sc.ID))
	return nil
}

func (s *CachedStore) ReplacePayouts(ctx context.Context, scenarioID string, payouts []model.Payout) error {
	if err := s.primary.ReplacePayouts(ctx, scenarioID, payouts); err != nil {
		return err
	}
	s.rdb.Del(ctx, payoutsKey(scenarioID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetCapTable(ctx context.Context, id string) (*model.CapTable, error) {
	data, err := s.rdb.Get(ctx, capTableKey(id)).Bytes()
	if err == nil {
		var ct model.CapTable
		if json.Unmarshal(data, &ct) == nil {
			return &ct, nil
		}
	}

	ct, err := s.primary.GetCapTable(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, capTableKey(id), ct)
	return ct, nil
}

func (s *CachedStore) GetScenario(ctx context.Context, id string) (*model.Scenario, error) {
	data, err := s.rdb.Get(ctx, scenarioKey(id)).Bytes()
	if err == nil {
		var sc model.Scenario
		if json.Unmarshal(data, &sc) == nil {
			return &sc, nil
		}
	}

	sc, err := s.primary.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, scenarioKey(id), sc)
	return sc, nil
}

func (s *CachedStore) GetPayoutsByScenario(ctx context.Context, scenarioID string) ([]model.Payout, error) {
	data, err := s.rdb.Get(ctx, payoutsKey(scenarioID)).Bytes()
	if err == nil {
		var payouts []model.Payout
		if json.Unmarshal(data, &payouts) == nil {
			return payouts, nil
		}
	}

	payouts, err := s.primary.GetPayoutsByScenario(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, payoutsKey(scenarioID), payouts)
	return payouts, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListCapTables(ctx context.Context) ([]model.CapTable, error) {
	return s.primary.ListCapTables(ctx)
}

func (s *CachedStore) ListScenariosByCapTable(ctx context.Context, capTableID string) ([]model.Scenario, error) {
	return s.primary.ListScenariosByCapTable(ctx, capTableID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func capTableKey(id string) string { return fmt.Sprintf("captable:%s", id) }
func scenarioKey(id string) string { return fmt.Sprintf("scenario:%s", id) }
func payoutsKey(id string) string  { return fmt.Sprintf("payouts:%s", id) }
