package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/models"
	"github.com/stitts-dev/fpl-squad-optimizer/internal/optimizer"
)

const keyPrefix = "solution:"

var ErrCacheMiss = errors.New("solution not found in cache")

// SolutionCache stores solved squads keyed by dataset fingerprint and config tuple.
// Reads and writes go through a circuit breaker so a failing redis is skipped
// quickly instead of adding its timeout to every solve.
type SolutionCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewSolutionCache creates a new solution cache backed by redis
func NewSolutionCache(client *redis.Client, logger *logrus.Logger) *SolutionCache {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "solution-cache",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Solution cache circuit breaker state changed")
		},
	})

	return &SolutionCache{
		client:  client,
		breaker: cb,
		logger:  logger,
	}
}

// BreakerState reports the circuit breaker state
func (c *SolutionCache) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Key derives the cache key for one (snapshot, config) pair
func Key(datasetFingerprint string, cfg models.OptimizationConfig) string {
	sum := md5.Sum([]byte(cfg.CacheKey()))
	return fmt.Sprintf("%s%s:%x", keyPrefix, datasetFingerprint, sum)
}

// Get retrieves a cached solution, returning ErrCacheMiss when absent
func (c *SolutionCache) Get(ctx context.Context, key string) (*optimizer.Solution, error) {
	// a miss is a healthy answer and must not count against the breaker
	res, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get solution from cache: %w", err)
	}
	data := res.([]byte)
	if data == nil {
		return nil, ErrCacheMiss
	}

	var sol optimizer.Solution
	if err := json.Unmarshal(data, &sol); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached solution: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key": key,
		"solve_id":  sol.SolveID,
	}).Debug("Retrieved solution from cache")

	return &sol, nil
}

// Set stores a solution under key
func (c *SolutionCache) Set(ctx context.Context, key string, sol *optimizer.Solution, expiration time.Duration) error {
	data, err := json.Marshal(sol)
	if err != nil {
		return fmt.Errorf("failed to marshal solution: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set solution in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  key,
		"expiration": expiration,
		"feasible":   sol.Feasible,
	}).Debug("Cached solution")

	return nil
}

// Flush removes every cached solution, used after the dataset is reloaded
func (c *SolutionCache) Flush(ctx context.Context) error {
	var deleted int
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cached solution: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached solutions: %w", err)
	}

	c.logger.WithField("deleted_keys", deleted).Info("Flushed solution cache")
	return nil
}

// Ping reports whether redis is reachable
func (c *SolutionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
