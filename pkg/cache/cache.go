package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// GetOrLoad reads key into a T, calling load and storing its result on a miss.
// Cache failures other than a miss fall through to load; the loaded value is
// still returned when it cannot be stored.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var v T
	err := c.Get(ctx, key, &v)
	if err == nil {
		return v, true, nil
	}

	v, err = load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return v, false, fmt.Errorf("%w: store %s: %v", errStore, key, err)
	}
	return v, false, nil
}

var errStore = errors.New("cache: store failed")

// IsStoreError reports whether GetOrLoad loaded the value but could not cache it.
func IsStoreError(err error) bool { return errors.Is(err, errStore) }
