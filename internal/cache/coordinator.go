package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/metrics"
)

// Value is one cached fused ranking.
type Value struct {
	Results  []search.FusedResult `json:"results"`
	Warnings []string             `json:"warnings,omitempty"`
}

// ComputeFunc produces the value on a miss. The bool reports whether the
// value may be cached (degraded results are served but not stored).
type ComputeFunc func(ctx context.Context) (Value, bool, error)

// counterStore is the generation counter storage (ISP).
type counterStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Coordinator fronts the search path with a generational cache and
// collapses concurrent identical misses into one computation.
type Coordinator struct {
	store    Store
	counters counterStore
	ttl      time.Duration
	group    singleflight.Group
}

// NewCoordinator creates the cache coordinator.
func NewCoordinator(store Store, counters counterStore, ttl time.Duration) *Coordinator {
	return &Coordinator{store: store, counters: counters, ttl: ttl}
}

// GetOrCompute returns the cached value for the parts, or computes and
// stores it. The bool reports a cache hit. Counter store outages degrade
// to an uncached computation.
func (c *Coordinator) GetOrCompute(ctx context.Context, parts KeyParts, compute ComputeFunc) (Value, bool, error) {
	gen, err := c.generation(ctx, parts.Collection, parts.Tenant)
	if err != nil {
		v, _, err := compute(ctx)
		return v, false, err
	}
	key := parts.hash(gen)

	if data, ok := c.store.Get(ctx, key); ok {
		var v Value
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			return v, true, nil
		}
	}
	metrics.CacheTotal.WithLabelValues("miss").Inc()

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, cacheable, err := compute(ctx)
		if err != nil {
			return Value{}, err
		}
		if cacheable {
			if data, err := json.Marshal(v); err == nil {
				c.store.Set(ctx, key, data, c.ttl)
			}
		}
		return v, nil
	})
	if err != nil {
		return Value{}, false, err
	}
	return res.(Value), false, nil
}

// Invalidate bumps the tenant's generation and the cross-tenant one, so
// the next read under either view misses and recomputes.
func (c *Coordinator) Invalidate(ctx context.Context, collection, tenant string) error {
	if _, err := c.counters.Incr(ctx, generationKey(collection, tenant)); err != nil {
		return fmt.Errorf("bump generation %s/%s: %w", collection, tenant, err)
	}
	if tenant != "" {
		if _, err := c.counters.Incr(ctx, generationKey(collection, "")); err != nil {
			return fmt.Errorf("bump generation %s: %w", collection, err)
		}
	}
	return nil
}

func (c *Coordinator) generation(ctx context.Context, collection, tenant string) (int64, error) {
	data, err := c.counters.Get(ctx, generationKey(collection, tenant))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	gen, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, nil
	}
	return gen, nil
}
