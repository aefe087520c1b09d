package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/middleware"
	"dailyshot/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	dayPostsPrefix = "posts:day:"
	winnersKey     = "winners:list"
)

// WinnersTTL bounds how long the winners listing may be stale.
const WinnersTTL = 5 * time.Minute

// DayPostsKey is the cache key for the newest-first listing of a contest day.
func DayPostsKey(day time.Time) string {
	return dayPostsPrefix + contest.Format(day)
}

// WinnersKey is the cache key for the first page of the winners listing.
func WinnersKey() string {
	return winnersKey
}

// GetJSON reads key into dest. Returns (true, nil) on a hit and (false, nil) on a miss.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and stores it under key with ttl.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from Redis when possible. On a miss or a cache failure it calls fetch,
// which must populate dest, and stores the result best-effort.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil || ttl <= 0 {
		return fetch()
	}

	found, err := GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case found:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	default:
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate removes keys, ignoring cache failures.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidateDay drops cached listings for a contest day.
func InvalidateDay(ctx context.Context, day time.Time) {
	Invalidate(ctx, DayPostsKey(day))
}

// InvalidateWinners drops the cached winners listing.
func InvalidateWinners(ctx context.Context) {
	Invalidate(ctx, WinnersKey())
}
