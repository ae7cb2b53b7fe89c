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
	"time"

	"github.com/nyxkv/nyxcache/policy"
	"github.com/nyxkv/nyxcache/ringbuf"
	"github.com/nyxkv/nyxcache/sketch"
	"github.com/nyxkv/nyxcache/store"
)

// setBufSize bounds the number of pending writes the background writer
// hasn't yet applied -- mirrors the teacher's own fixed setBuf capacity.
// A Put that finds the buffer full is dropped and counted as rejected
// rather than blocking the caller.
const setBufSize = 32 * 1024

// getBufStripes is the number of independent ring-buffer stripes behind
// every Get's touch notification; must be a power of two.
const getBufStripes = 16

// defaultCleanupInterval is how often the background sweep looks for
// expired records that no Get has happened to stumble across yet.
const defaultCleanupInterval = time.Second

type itemFlag byte

const (
	itemNew itemFlag = iota
	itemUpdate
)

// opItem is one entry in the asynchronous write queue. A plain Put
// enqueues one of these for the background writer to apply against the
// policy; wg is set only for the Wait() barrier sentinel.
type opItem struct {
	flag     itemFlag
	keyHash  uint64
	conflict uint64
	key      K
	value    V
	weight   uint64
	wg       *sync.WaitGroup
}

// Cache is a fixed-capacity, thread-safe, in-process key/value cache: a
// concurrent entry index (package store) paired with a pluggable eviction
// policy (package policy), wired together the way the teacher's own
// cache.go wires its shardedMap and its policy -- synchronous reads that
// never take the policy lock, and writes funneled through a single
// background writer that does.
type Cache struct {
	cfg *Config

	store *store.Store
	pol   policy.Policy
	lc    *lifecycle

	metrics   *Metrics
	listeners *listenerSet
	loaders   *loaderGroup
	hasher    KeyHasher

	getBuf *ringbuf.Buffers
	setBuf chan *opItem

	policyMu sync.Mutex

	cleanupTicker *time.Ticker
	stop          chan struct{}
	stopped       sync.WaitGroup

	closed atomic.Bool
}

// NewCache constructs a Cache from cfg, starting its background writer and
// (if cfg names an expiration policy) its cleanup sweep. The returned Cache
// must eventually be closed with Close to release those goroutines.
func NewCache(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	capacity := cfg.capacityHint()
	c := &Cache{
		cfg:    cfg,
		store:  store.New(shardCountFor(capacity), cfg.clockFunc()),
		pol:    buildPolicy(cfg, capacity),
		lc:     newLifecycle(cfg),
		hasher: cfg.keyHasher(),
		setBuf: make(chan *opItem, setBufSize),
		stop:   make(chan struct{}),
	}
	if cfg.RecordStats {
		c.metrics = newMetrics()
	}
	c.listeners = newListenerSet(cfg.Listeners, c.metrics)
	c.loaders = newLoaderGroup()
	c.getBuf = ringbuf.New(&ringbuf.Config{
		Consumer: c,
		Size:     int32(cfg.bufferItems()),
		Stripes:  getBufStripes,
	})

	if cfg.ExpireAfterWrite > 0 || cfg.ExpireAfterAccess > 0 {
		c.cleanupTicker = time.NewTicker(defaultCleanupInterval)
	}

	c.stopped.Add(1)
	go c.processLoop()

	if cfg.Name != "" {
		Registry.Register(cfg.Name, c)
	}
	return c, nil
}

// buildPolicy constructs the eviction/admission policy cfg names. A sketch
// is only allocated for EnhancedLRU/EnhancedLFU when SketchKind asks for
// one; WindowTinyLFU and Composite always carry their own.
func buildPolicy(cfg *Config, capacity int) policy.Policy {
	ratio := cfg.ProtectedRatio
	if ratio <= 0 {
		ratio = policy.DefaultProtectedRatio
	}
	switch cfg.EvictionPolicy {
	case policy.LRU:
		return policy.NewLRU(capacity)
	case policy.EnhancedLRU:
		if cfg.SketchKind == SketchNone {
			return policy.NewLRU(capacity)
		}
		return policy.NewEnhancedLRU(capacity, sketch.New(uint64(capacity)))
	case policy.LFU:
		return policy.NewLFU(capacity)
	case policy.EnhancedLFU:
		if cfg.SketchKind == SketchNone {
			return policy.NewLFU(capacity)
		}
		return policy.NewEnhancedLFU(capacity, sketch.New(uint64(capacity)))
	case policy.FIFO:
		return policy.NewFIFO(capacity)
	case policy.FILO:
		return policy.NewFILO(capacity)
	case policy.WeightBased:
		return policy.NewWeightBased()
	case policy.IdleTime:
		threshold := int64(cfg.IdleThreshold)
		if threshold <= 0 {
			threshold = int64(time.Hour)
		}
		return policy.NewIdleTime(threshold, cfg.clockFunc())
	case policy.Composite:
		inner := policy.NewWindowTinyLFUWithRatio(capacity, ratio)
		return policy.NewComposite(inner, capacity)
	default:
		return policy.NewWindowTinyLFUWithRatio(capacity, ratio)
	}
}

// shardCountFor picks a store shard count proportional to capacity, so a
// small cache doesn't waste memory on hundreds of near-empty map headers.
func shardCountFor(capacity int) int {
	if capacity < 256 {
		return 16
	}
	if capacity > 1<<16 {
		return 1 << 16
	}
	return capacity
}

// Push implements ringbuf.Consumer: it's called once per drained stripe
// element, already inside the Wrap batch lock below.
func (c *Cache) Push(keyHash uint64) {
	c.pol.RecordAccess(keyHash)
}

// Wrap implements ringbuf.Consumer, taking the single policy lock for the
// whole batch of buffered touches instead of once per touch.
func (c *Cache) Wrap(fn func()) {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()
	fn()
}

// weigh computes a key/value pair's accounted weight, including the fixed
// per-record overhead unless the caller opted out of it.
func (c *Cache) weigh(key K, value V) uint64 {
	w := c.cfg.weigher()(key, value)
	if !c.cfg.IgnoreInternalCost {
		w += itemOverheadWeight
	}
	return w
}

// Get returns the value stored for key, or ok=false if it is absent, has
// expired, or the cache is closed. A hit refreshes the record's recency and
// may kick off an advisory background reload if RefreshAfterWrite names a
// stale threshold the record has crossed.
func (c *Cache) Get(key K) (V, bool) {
	if c.closed.Load() || key == nil {
		return nil, false
	}
	keyHash, conflict := c.hasher(key)
	c.getBuf.Push(keyHash)

	value, _, ok := c.store.Peek(keyHash, conflict)
	if !ok {
		c.metrics.add(counterMisses, keyHash, 1)
		return nil, false
	}

	createdAt, _ := c.store.CreatedAt(keyHash, conflict)
	lastAccessAt, _ := c.store.LastAccessAt(keyHash, conflict)
	now := c.cfg.clockFunc()()
	if c.lc.expired(createdAt, lastAccessAt, now) {
		c.expireKey(keyHash, conflict)
		c.metrics.add(counterMisses, keyHash, 1)
		return nil, false
	}

	c.store.Touch(keyHash, conflict)
	c.metrics.add(counterHits, keyHash, 1)

	if c.lc.staleForRefresh(createdAt, now) {
		c.triggerRefresh(key, keyHash)
	}
	return value, true
}

// Contains reports whether key is present and unexpired, without affecting
// recency the way Get does.
func (c *Cache) Contains(key K) bool {
	if c.closed.Load() || key == nil {
		return false
	}
	keyHash, conflict := c.hasher(key)
	_, _, ok := c.store.Peek(keyHash, conflict)
	if !ok {
		return false
	}
	createdAt, _ := c.store.CreatedAt(keyHash, conflict)
	lastAccessAt, _ := c.store.LastAccessAt(keyHash, conflict)
	return !c.lc.expired(createdAt, lastAccessAt, c.cfg.clockFunc()())
}

// GetTTL returns the time remaining before key expires under
// ExpireAfterWrite/ExpireAfterAccess, or ok=false if key is absent or
// neither TTL is configured.
func (c *Cache) GetTTL(key K) (time.Duration, bool) {
	if c.cfg.ExpireAfterWrite <= 0 && c.cfg.ExpireAfterAccess <= 0 {
		return 0, false
	}
	if c.closed.Load() || key == nil {
		return 0, false
	}
	keyHash, conflict := c.hasher(key)
	createdAt, ok := c.store.CreatedAt(keyHash, conflict)
	if !ok {
		return 0, false
	}
	lastAccessAt, _ := c.store.LastAccessAt(keyHash, conflict)
	now := c.cfg.clockFunc()()

	remaining := time.Duration(1<<63 - 1)
	if c.cfg.ExpireAfterWrite > 0 {
		if r := c.cfg.ExpireAfterWrite - time.Duration(now-createdAt); r < remaining {
			remaining = r
		}
	}
	if c.cfg.ExpireAfterAccess > 0 {
		if r := c.cfg.ExpireAfterAccess - time.Duration(now-lastAccessAt); r < remaining {
			remaining = r
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// expireKey claims keyHash/conflict for expiry (via the store's two-phase
// Live->Expiring transition, so only one concurrent caller wins) and, on
// success, finishes removing it and fires OnExpire.
func (c *Cache) expireKey(keyHash, conflict uint64) {
	if !c.store.MarkExpiring(keyHash, conflict) {
		return
	}
	key, value, weight, ok := c.store.DelAny(keyHash)
	if !ok {
		return
	}
	c.afterRemoval(keyHash, weight)
	c.metrics.add(counterEvictions, keyHash, 1)
	c.listeners.expire(key, value)
}

// triggerRefresh kicks off (at most one in flight) an advisory reload of
// key, applying the result with a plain Put on success.
func (c *Cache) triggerRefresh(key K, keyHash uint64) {
	c.lc.maybeRefresh(keyHash, func(v V, err error) {
		if err != nil {
			c.listeners.loadError(key, err)
			return
		}
		c.Put(key, v)
	})
}

// Put stores value for key, returning the value it replaced (if any). A nil
// key or value is a no-op. For a brand-new key, Put only enqueues the write
// for the background writer to apply -- a Get for that same key is
// guaranteed to observe it only after Wait() returns; Put's boolean result
// reflects acceptance into the write queue, not the eviction policy's
// admission decision; SetsRejected in Metrics tracks the latter separately.
func (c *Cache) Put(key, value V) (V, bool) {
	prev, _, stored := c.putInternal(key, value, false)
	return prev, stored
}

// SetIfPresent updates key's value only if it is already present, without
// going through the admission policy at all. It reports whether the update
// was applied.
func (c *Cache) SetIfPresent(key, value V) bool {
	_, existed, _ := c.putInternal(key, value, true)
	return existed
}

func (c *Cache) putInternal(key, value V, onlyIfPresent bool) (prev V, existed bool, stored bool) {
	if c.closed.Load() || key == nil || value == nil {
		return nil, false, false
	}
	keyHash, conflict := c.hasher(key)
	weight := c.weigh(key, value)

	if p, ok := c.store.Update(keyHash, conflict, key, value, weight); ok {
		c.enqueue(&opItem{flag: itemUpdate, keyHash: keyHash, conflict: conflict})
		c.listeners.put(key, value)
		return p, true, true
	}
	if onlyIfPresent {
		return nil, false, false
	}

	item := &opItem{flag: itemNew, keyHash: keyHash, conflict: conflict, key: key, value: value, weight: weight}
	if !c.enqueue(item) {
		c.metrics.add(counterSetsRejected, keyHash, 1)
		return nil, false, false
	}
	// OnPut for a brand-new key fires from applyInsertion once the
	// background writer has actually run it through the admission policy --
	// a candidate the policy drops must never fire OnPut.
	return nil, false, true
}

// enqueue tries to hand item to the background writer, reporting whether
// it fit in the bounded queue.
func (c *Cache) enqueue(item *opItem) bool {
	select {
	case c.setBuf <- item:
		return true
	default:
		return false
	}
}

// Remove deletes key outright (ReasonExplicit; it never counts toward
// Metrics.Evictions), returning the value that was present, if any.
func (c *Cache) Remove(key K) (V, bool) {
	if c.closed.Load() || key == nil {
		return nil, false
	}
	keyHash, conflict := c.hasher(key)
	value, weight, ok := c.store.Del(keyHash, conflict)
	if !ok {
		return nil, false
	}
	c.afterRemoval(keyHash, weight)
	c.listeners.remove(key, value)
	return value, true
}

// afterRemoval updates weight/count accounting and informs the policy that
// keyHash is gone, regardless of why.
func (c *Cache) afterRemoval(keyHash uint64, weight uint64) {
	c.lc.addWeight(-int64(weight))
	c.lc.addCount(-1)
	c.lc.clearRefresher(keyHash)
	c.policyMu.Lock()
	c.pol.RecordRemoval(keyHash)
	c.policyMu.Unlock()
}

// Clear removes every entry, firing OnClear once after every OnRemove-style
// bookkeeping completes. It does not fire OnEvict or OnRemove per key.
func (c *Cache) Clear() {
	if c.closed.Load() {
		return
	}
	c.store.Clear(func(keyHash, _ uint64, _, _ interface{}, weight uint64) {
		c.lc.addWeight(-int64(weight))
		c.lc.addCount(-1)
		c.lc.clearRefresher(keyHash)
	})
	c.policyMu.Lock()
	for {
		victim, ok := c.pol.SelectVictim()
		if !ok {
			break
		}
		c.pol.RecordRemoval(victim)
	}
	c.policyMu.Unlock()
	c.listeners.clear()
}

// Len returns the number of entries currently tracked by the entry index,
// including any not yet observed by the background writer's bookkeeping.
func (c *Cache) Len() int {
	return c.store.Len()
}

// ComputeIfAbsent returns key's current value, or computes it with fn if
// absent. Concurrent callers for the same key share one invocation of fn
// and its result.
func (c *Cache) ComputeIfAbsent(ctx context.Context, key K, fn LoadFunc) (V, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	keyHash, _ := c.hasher(key)
	val, err := c.runLoader(ctx, key, keyHash, fn)
	if err != nil {
		return nil, newLoadError(key, err)
	}
	return val, nil
}

// GetOrLoadAsync returns a Future for key's current or computed value
// without blocking the caller; the load (if any) runs on its own
// goroutine, coalesced the same way ComputeIfAbsent coalesces concurrent
// callers for the same key.
func (c *Cache) GetOrLoadAsync(key K, fn LoadFunc) *Future {
	future := newFuture()
	if c.closed.Load() {
		future.complete(nil, ErrCacheClosed)
		return future
	}
	if v, ok := c.Get(key); ok {
		future.complete(v, nil)
		return future
	}
	keyHash, _ := c.hasher(key)
	go func() {
		val, err := c.runLoader(context.Background(), key, keyHash, fn)
		if err != nil {
			future.complete(nil, newLoadError(key, err))
			return
		}
		future.complete(val, nil)
	}()
	return future
}

// runLoader invokes fn (coalesced across concurrent callers for the same
// key), records load metrics against the one caller that actually ran fn,
// and stores a successful result.
func (c *Cache) runLoader(ctx context.Context, key K, keyHash uint64, fn LoadFunc) (V, error) {
	start := c.cfg.clockFunc()()
	val, err, owner := c.loaders.do(ctx, key, keyHash, fn)
	if !owner {
		return val, err
	}

	elapsed := c.cfg.clockFunc()() - start
	c.metrics.add(counterLoads, keyHash, 1)
	c.metrics.add(counterLoadTimeNs, keyHash, uint64(elapsed))
	if err != nil {
		c.metrics.add(counterLoadFailures, keyHash, 1)
		c.listeners.loadError(key, err)
		return nil, err
	}
	c.lc.setRefresher(keyHash, func(ctx context.Context) (V, error) { return fn(ctx, key) })
	c.Put(key, val)
	c.listeners.load(key, val)
	return val, nil
}

// Stats returns the Cache's Metrics snapshot, or nil if RecordStats is
// false.
func (c *Cache) Stats() *Metrics {
	return c.metrics
}

// Wait blocks until every Put enqueued before this call has been applied
// by the background writer. Remove is synchronous and never enqueued.
func (c *Cache) Wait() {
	if c.closed.Load() {
		return
	}
	var wg sync.WaitGroup
	wg.Add(1)
	select {
	case c.setBuf <- &opItem{wg: &wg}:
		wg.Wait()
	case <-c.stop:
	}
}

// Close stops the background writer and cleanup sweep. It does not clear
// the cache's contents; a closed Cache rejects all further operations.
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.stop)
	c.stopped.Wait()
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
	if c.cfg.Name != "" {
		Registry.Unregister(c.cfg.Name)
	}
}

// processLoop is the single background writer: it applies every buffered
// Put against the policy under the policy lock, enforces capacity
// afterward, and periodically sweeps expired records that no Get happened
// to touch.
func (c *Cache) processLoop() {
	defer c.stopped.Done()
	var cleanupC <-chan time.Time
	if c.cleanupTicker != nil {
		cleanupC = c.cleanupTicker.C
	}
	for {
		select {
		case item := <-c.setBuf:
			c.applyItem(item)
		case <-cleanupC:
			c.sweepExpired()
		case <-c.stop:
			c.drainSetBuf()
			return
		}
	}
}

// drainSetBuf releases any Wait() barrier still queued when Close is
// called, so a concurrent Wait doesn't block forever.
func (c *Cache) drainSetBuf() {
	for {
		select {
		case item := <-c.setBuf:
			if item.wg != nil {
				item.wg.Done()
			}
		default:
			return
		}
	}
}

func (c *Cache) applyItem(item *opItem) {
	if item.wg != nil {
		item.wg.Done()
		return
	}
	switch item.flag {
	case itemNew:
		c.applyInsertion(item)
	case itemUpdate:
		c.policyMu.Lock()
		c.pol.RecordAccess(item.keyHash)
		c.policyMu.Unlock()
	}
}

func (c *Cache) applyInsertion(item *opItem) {
	c.policyMu.Lock()
	evicted, rejected, admitted := c.pol.RecordInsertion(item.keyHash, item.weight)
	c.policyMu.Unlock()

	if !admitted {
		c.metrics.add(counterSetsRejected, item.keyHash, 1)
		for _, victim := range evicted {
			c.evictByHash(victim, ReasonSize)
		}
		c.evictRejected(rejected)
		return
	}

	_, existed, _ := c.store.Set(item.keyHash, item.conflict, item.key, item.value, item.weight)
	if !existed {
		c.lc.addWeight(int64(item.weight))
		c.lc.addCount(1)
	}
	c.listeners.put(item.key, item.value)

	for _, victim := range evicted {
		c.evictByHash(victim, ReasonSize)
	}
	c.evictRejected(rejected)
	c.enforceCapacity()
}

// evictRejected removes every key the policy reports as having lost an
// internal admission contest after it was already resident (window-
// TinyLFU's window-to-main spill is the only source of these) -- each was
// stored at its own earlier insertion, so without this it would remain in
// the store forever, untracked by the policy. Counted as a rejection
// (SetsRejected), not against whichever key happened to trigger this
// insertion.
func (c *Cache) evictRejected(rejected []uint64) {
	for _, keyHash := range rejected {
		c.metrics.add(counterSetsRejected, keyHash, 1)
		c.evictByHash(keyHash, ReasonSize)
	}
}

// enforceCapacity asks the policy for victims, one at a time, until the
// configured count/weight budget is satisfied -- spec section 4.4's
// "invoke the policy repeatedly... until within bounds".
func (c *Cache) enforceCapacity() {
	reason := ReasonSize
	if c.cfg.MaximumWeight > 0 {
		reason = ReasonWeight
	}
	for c.lc.overCapacity() {
		c.policyMu.Lock()
		victim, ok := c.pol.SelectVictim()
		c.policyMu.Unlock()
		if !ok {
			return
		}
		if !c.evictByHash(victim, reason) {
			return
		}
	}
}

// evictByHash removes whatever record currently occupies keyHash (if any),
// tells the policy it's gone, updates accounting, and fires OnEvict. It
// returns false if keyHash was already gone, so a capacity loop can bail
// out rather than spin.
func (c *Cache) evictByHash(keyHash uint64, reason EvictionReason) bool {
	key, value, weight, ok := c.store.DelAny(keyHash)
	c.policyMu.Lock()
	c.pol.RecordRemoval(keyHash)
	c.policyMu.Unlock()
	if !ok {
		return false
	}
	c.lc.addWeight(-int64(weight))
	c.lc.addCount(-1)
	c.lc.clearRefresher(keyHash)
	c.metrics.add(counterEvictions, keyHash, 1)
	c.listeners.evict(key, value, reason)
	return true
}

// sweepExpired walks every live record looking for one whose TTL has
// elapsed, for keys no Get call has happened to touch since expiring.
func (c *Cache) sweepExpired() {
	if c.cfg.ExpireAfterWrite <= 0 && c.cfg.ExpireAfterAccess <= 0 {
		return
	}
	now := c.cfg.clockFunc()()
	type hashConflict struct{ keyHash, conflict uint64 }
	var expired []hashConflict
	c.store.Range(func(keyHash, conflict uint64, _, _ interface{}, _ uint64) bool {
		createdAt, _ := c.store.CreatedAt(keyHash, conflict)
		lastAccessAt, _ := c.store.LastAccessAt(keyHash, conflict)
		if c.lc.expired(createdAt, lastAccessAt, now) {
			expired = append(expired, hashConflict{keyHash, conflict})
		}
		return true
	})
	for _, e := range expired {
		c.expireKey(e.keyHash, e.conflict)
	}
}
