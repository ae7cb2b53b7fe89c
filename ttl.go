/*
 * Copyright 2024 The nyxcache Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package nyxcache

import (
	"context"
	"sync"
	"sync/atomic"
)

// lifecycle is the C4 lifecycle manager: expiration checks, weight
// accounting, capacity enforcement, and the advisory refresh-after-write
// trigger. It holds no data of its own beyond bookkeeping -- entry state
// lives in the store, eviction order lives in the policy.
type lifecycle struct {
	cfg *Config

	currentWeight int64 // atomic
	currentCount  int64 // atomic

	refreshers sync.Map // keyHash uint64 -> func(ctx context.Context) (V, error)
	refreshing sync.Map // keyHash uint64 -> struct{}, in-flight refresh guard
}

func newLifecycle(cfg *Config) *lifecycle {
	return &lifecycle{cfg: cfg}
}

// expired reports whether a record should be treated as expired given its
// creation/last-access timestamps and the configured TTLs.
func (lc *lifecycle) expired(createdAt, lastAccessAt, now int64) bool {
	if lc.cfg.ExpireAfterWrite > 0 && now-createdAt > int64(lc.cfg.ExpireAfterWrite) {
		return true
	}
	if lc.cfg.ExpireAfterAccess > 0 && now-lastAccessAt > int64(lc.cfg.ExpireAfterAccess) {
		return true
	}
	return false
}

// staleForRefresh reports whether a record is old enough to warrant the
// advisory background reload, per design note 3 -- this never blocks a
// reader and never guarantees freshness, it only offers one.
func (lc *lifecycle) staleForRefresh(createdAt, now int64) bool {
	return lc.cfg.RefreshAfterWrite > 0 && now-createdAt > int64(lc.cfg.RefreshAfterWrite)
}

func (lc *lifecycle) addWeight(delta int64) {
	atomic.AddInt64(&lc.currentWeight, delta)
}

func (lc *lifecycle) addCount(delta int64) {
	atomic.AddInt64(&lc.currentCount, delta)
}

func (lc *lifecycle) weight() int64 {
	return atomic.LoadInt64(&lc.currentWeight)
}

func (lc *lifecycle) count() int64 {
	return atomic.LoadInt64(&lc.currentCount)
}

// overCapacity reports whether the configured budget (count or weight) is
// currently exceeded.
func (lc *lifecycle) overCapacity() bool {
	if lc.cfg.MaximumWeight > 0 {
		return lc.weight() > lc.cfg.MaximumWeight
	}
	return lc.count() > lc.cfg.MaximumSize
}

// setRefresher records the loader that produced keyHash's current value,
// so a later stale read can trigger a reload using the same function --
// spec section 4.4's "at most one concurrent reload per key" is enforced
// via refreshing, a simple in-flight set.
func (lc *lifecycle) setRefresher(keyHash uint64, fn func(ctx context.Context) (V, error)) {
	if fn != nil {
		lc.refreshers.Store(keyHash, fn)
	}
}

func (lc *lifecycle) clearRefresher(keyHash uint64) {
	lc.refreshers.Delete(keyHash)
	lc.refreshing.Delete(keyHash)
}

// maybeRefresh kicks off a background reload for keyHash if one isn't
// already in flight and a refresher is registered. apply is called with
// the reload's result on success, from the reload's own goroutine.
func (lc *lifecycle) maybeRefresh(keyHash uint64, apply func(V, error)) {
	fnAny, ok := lc.refreshers.Load(keyHash)
	if !ok {
		return
	}
	if _, alreadyRunning := lc.refreshing.LoadOrStore(keyHash, struct{}{}); alreadyRunning {
		return
	}
	fn := fnAny.(func(ctx context.Context) (V, error))
	go func() {
		defer lc.refreshing.Delete(keyHash)
		v, err := fn(context.Background())
		apply(v, err)
	}()
}
