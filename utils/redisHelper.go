package utils

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"github.com/bsm/redislock"
)

const listCacheExpiry = time.Hour

func listCacheKey[T any](scope string) string {
	return scope + "-" + GetTypeName[T]() + "List"
}

// StoreRedisList caches a scoped list of models. Best effort: no redis, no cache.
func StoreRedisList[T any](items []*T, scope string) error {
	return config.SetRedisObject(listCacheKey[T](scope), items, listCacheExpiry)
}

// RetrieveRedisList returns the cached list, or nil when not cached.
func RetrieveRedisList[T any](scope string) ([]*T, error) {
	var items []*T
	found, err := config.GetRedisObject(listCacheKey[T](scope), &items)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return items, nil
}

func RemoveRedisList[T any](scope string) error {
	return config.RemoveRedisKey(listCacheKey[T](scope))
}

// AcquireMaintenanceLock serializes dangerous maintenance operations
// (counter resets, ledger rebuilds) across instances. Returns a nil lock when
// redis is not connected; single-instance deployments run unguarded.
func AcquireMaintenanceLock(ctx context.Context, name string, ttl time.Duration) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "maintenance:"+name, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, errors.New("another maintenance run holds the lock: " + name)
		}
		return nil, err
	}
	return lock, nil
}
