package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roamline/trip-api/internal/core"
)

const defaultEstimateTTL = 6 * time.Hour

// CachedEstimatorOptions groups dependencies for CachedEstimator.
type CachedEstimatorOptions struct {
	Upstream core.TravelEstimator // Required: the real estimator
	Cache    core.CacheRepository // Required
	Logger   *slog.Logger         // Optional
	// TTL bounds how long a route estimate stays cached. Defaults to 6h.
	TTL time.Duration
}

// CachedEstimator wraps a TravelEstimator with a Redis-backed cache and
// singleflight deduplication, so concurrent jobs asking for the same route
// trigger at most one upstream lookup.
type CachedEstimator struct {
	upstream core.TravelEstimator
	cache    core.CacheRepository
	logger   *slog.Logger
	ttl      time.Duration
	group    singleflight.Group
}

// NewCachedEstimator constructs a new CachedEstimator.
func NewCachedEstimator(opts CachedEstimatorOptions) (*CachedEstimator, error) {
	if opts.Upstream == nil {
		return nil, errors.New("upstream estimator is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache repository is required")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultEstimateTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedEstimator{
		upstream: opts.Upstream,
		cache:    opts.Cache,
		logger:   logger.With("component", "estimator_cache"),
		ttl:      ttl,
	}, nil
}

// EstimateTravel returns the cached estimate for a route, or asks the
// upstream estimator and caches the answer. Cache failures degrade to
// upstream lookups, never to errors.
func (c *CachedEstimator) EstimateTravel(
	ctx context.Context,
	from, to string,
) (*core.TravelEstimate, error) {
	key := estimateKey(from, to)

	if cached, err := c.cache.Get(ctx, key); err != nil {
		c.logger.DebugContext(ctx, "estimate cache read failed", "key", key, "error", err)
	} else if len(cached) > 0 {
		var est core.TravelEstimate
		if unmarshalErr := json.Unmarshal(cached, &est); unmarshalErr == nil {
			return &est, nil
		}
		// Unreadable entry; drop it and fall through to the upstream.
		if _, delErr := c.cache.Delete(ctx, key); delErr != nil {
			c.logger.DebugContext(ctx, "estimate cache evict failed", "key", key, "error", delErr)
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		est, upstreamErr := c.upstream.EstimateTravel(ctx, from, to)
		if upstreamErr != nil {
			return nil, upstreamErr
		}

		if payload, marshalErr := json.Marshal(est); marshalErr == nil {
			if setErr := c.cache.Set(ctx, key, payload, c.ttl); setErr != nil {
				c.logger.DebugContext(ctx, "estimate cache write failed", "key", key, "error", setErr)
			}
		}
		return est, nil
	})
	if err != nil {
		return nil, fmt.Errorf("estimate travel %s: %w", key, err)
	}

	est, ok := v.(*core.TravelEstimate)
	if !ok {
		return nil, errors.New("unexpected estimate type from singleflight")
	}
	return est, nil
}

func estimateKey(from, to string) string {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return "estimate:" + norm(from) + "|" + norm(to)
}
