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
)

// loaderShards is the number of independent locked-caller shards the
// coalescing map is split across, so unrelated keys' loads never contend
// on the same mutex -- adapted from the teacher's shardedCaller/
// lockedCaller pair in loader.go, generalized from its generic [K,V] form
// to this module's interface{}-keyed design.
const loaderShards = 64

// LoadFunc produces the value for a missing key, for ComputeIfAbsent and
// GetOrLoadAsync.
type LoadFunc func(ctx context.Context, key K) (V, error)

// call is one running or completed load, shared by every caller that asked
// for the same key while it was in flight.
type call struct {
	wg  sync.WaitGroup
	val V
	err error
}

type lockedCaller struct {
	mu sync.Mutex
	m  map[uint64]*call
}

func newLockedCaller() *lockedCaller {
	return &lockedCaller{m: make(map[uint64]*call)}
}

// do runs fn for keyHash, or waits for a concurrent call already running
// it. owner reports whether this call was the one that actually invoked
// fn, so callers can attribute load metrics to the single real invocation
// instead of to every coalesced waiter.
func (lc *lockedCaller) do(ctx context.Context, key K, keyHash uint64, fn LoadFunc) (v V, err error, owner bool) {
	lc.mu.Lock()
	if c, ok := lc.m[keyHash]; ok {
		lc.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, false
	}

	c := &call{}
	c.wg.Add(1)
	lc.m[keyHash] = c
	lc.mu.Unlock()

	c.val, c.err = fn(ctx, key)
	c.wg.Done()

	lc.mu.Lock()
	delete(lc.m, keyHash)
	lc.mu.Unlock()

	return c.val, c.err, true
}

// loaderGroup is the at-most-one-loader-per-key coalescing map: the first
// caller for a given key hash runs fn; every concurrent caller for the same
// key hash waits for and receives that same result, per spec section 4.5.
type loaderGroup struct {
	shards []*lockedCaller
}

func newLoaderGroup() *loaderGroup {
	g := &loaderGroup{shards: make([]*lockedCaller, loaderShards)}
	for i := range g.shards {
		g.shards[i] = newLockedCaller()
	}
	return g
}

func (g *loaderGroup) do(ctx context.Context, key K, keyHash uint64, fn LoadFunc) (v V, err error, owner bool) {
	return g.shards[keyHash%loaderShards].do(ctx, key, keyHash, fn)
}

// Future is the handle returned by GetOrLoadAsync: a value that completes
// once, observable either by blocking in Wait or polling Done.
type Future struct {
	done chan struct{}
	val  V
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(val V, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done returns a channel that closes once the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future completes or ctx is cancelled, whichever
// comes first. A caller-side cancellation never interrupts the loader
// itself (spec section 5): it only stops this particular Wait from
// blocking further.
func (f *Future) Wait(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
