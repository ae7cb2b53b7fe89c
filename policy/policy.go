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

// Package policy implements the pluggable eviction/admission policies: a
// concurrent cache's choice of which key to evict in O(1), and (for
// window-TinyLFU) which candidate key is worth admitting over an
// incumbent. Policies hold only key hashes and their own bookkeeping --
// never values -- matching the entry index's separation of concerns.
//
// Every policy here is single-threaded by contract: the engine serializes
// all calls to a Policy behind one per-cache lock (the spec's "policy
// lock"), so none of the implementations below do their own locking.
package policy

// Kind enumerates the eviction policies a Cache can be configured with.
type Kind int

const (
	// WindowTinyLFU is the default: an admission window plus a segmented
	// (probationary/protected) main space, gated by a frequency sketch.
	WindowTinyLFU Kind = iota
	LRU
	EnhancedLRU
	LFU
	EnhancedLFU
	FIFO
	FILO
	WeightBased
	IdleTime
	Composite
)

// Policy is the contract every eviction/admission policy implements, per
// the core spec: four O(1)-amortized operations plus victim selection.
type Policy interface {
	// RecordAccess notes a read/touch of an already-admitted key, updating
	// whatever recency/frequency bookkeeping the policy keeps.
	RecordAccess(keyHash uint64)

	// RecordInsertion attempts to admit a newly-seen key with the given
	// weight. It returns admitted=false if the policy's own admission
	// logic silently rejected the candidate (only window-TinyLFU and
	// Composite do this; all other policies always admit). evicted holds
	// zero or more keys the policy decided to evict as an immediate,
	// in-policy consequence of making room (e.g. the natural LRU tail).
	// rejected holds zero or more keys that were already resident
	// (admitted by an earlier call) but lost a later internal admission
	// contest -- window-TinyLFU's window-to-main spill is the only source
	// of these today. Both evicted and rejected name keys the caller must
	// remove from the entry index; rejected additionally should count as
	// an admission-policy rejection rather than a plain capacity eviction.
	RecordInsertion(keyHash uint64, weight uint64) (evicted []uint64, rejected []uint64, admitted bool)

	// RecordRemoval forgets keyHash, whether it is being explicitly
	// removed, expired, or was just reported by SelectVictim and evicted
	// by the caller.
	RecordRemoval(keyHash uint64)

	// SelectVictim returns another key to evict, used by the cache's
	// capacity loop when a single insertion wasn't enough to bring the
	// cache back under its configured count or weight budget. Returns
	// ok=false when the policy has nothing left to offer.
	SelectVictim() (keyHash uint64, ok bool)

	// Len returns the number of keys currently tracked by the policy.
	Len() int
}

// Clock returns the current monotonic time in nanoseconds. Policies that
// need wall time (IdleTime) take one at construction instead of reading
// time.Now() directly, so tests can control it.
type Clock func() int64
