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

package store

import "sync/atomic"

// State is a record's lifecycle tag. The cache's lifecycle code (ttl.go)
// moves a record through Live -> Expiring -> Removed; a record observed as
// Expiring by a reader is still usable but should not be offered as a fresh
// admission candidate, since it is already earmarked for the next sweep.
type State int32

const (
	// StateLive is a normal, fully valid record.
	StateLive State = iota
	// StateExpiring marks a record the lifecycle sweep has selected for
	// removal but not yet unlinked -- a narrow window that lets a
	// concurrent reader still observe the old value instead of a miss.
	StateExpiring
	// StateRemoved is a tombstone; Get on a removed record always misses,
	// and the shard map entry is dropped on the next write that touches it.
	StateRemoved
)

// entryData is the payload swapped atomically on every value update, so a
// concurrent reader never observes a value paired with another update's
// weight or creation time. key is carried alongside value so eviction
// listeners can report the caller's original key rather than its hash.
type entryData struct {
	key       interface{}
	value     interface{}
	weight    uint64
	createdAt int64
}

// record is one shard slot. keyHash and conflict are fixed at creation;
// everything else is updated via atomics so Get reads them without holding
// the shard lock; it takes that lock only to find the record.
type record struct {
	keyHash  uint64
	conflict uint64

	data         atomic.Pointer[entryData]
	lastAccessAt atomic.Int64
	state        atomic.Int32
}

func newRecord(keyHash, conflict uint64, key, value interface{}, weight uint64, now int64) *record {
	r := &record{keyHash: keyHash, conflict: conflict}
	r.data.Store(&entryData{key: key, value: value, weight: weight, createdAt: now})
	r.lastAccessAt.Store(now)
	r.state.Store(int32(StateLive))
	return r
}

func (r *record) load() *entryData {
	return r.data.Load()
}

func (r *record) replace(key, value interface{}, weight uint64, now int64) {
	r.data.Store(&entryData{key: key, value: value, weight: weight, createdAt: now})
}

func (r *record) touch(now int64) {
	r.lastAccessAt.Store(now)
}

func (r *record) getState() State {
	return State(r.state.Load())
}

func (r *record) setState(s State) {
	r.state.Store(int32(s))
}

// casState performs a compare-and-swap transition, used by the lifecycle
// sweep to claim a record for expiry without racing a concurrent remover.
func (r *record) casState(from, to State) bool {
	return r.state.CompareAndSwap(int32(from), int32(to))
}
