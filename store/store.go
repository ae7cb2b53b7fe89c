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

// Package store implements the concurrent entry index: a sharded hash map
// keyed by a pre-computed key hash, disambiguated by a secondary conflict
// hash so two distinct keys that collide on the primary hash are never
// confused with one another. Reads hold the shard's read lock only for the
// map lookup -- every mutable field on a record is either an atomic scalar
// or an atomic pointer swap -- so a read never waits on a record update,
// though it can wait briefly behind a structural change to the same shard.
// Structural changes (inserting or
// removing a record from a shard's map) take that shard's lock, which is
// striped across many shards to keep contention low under concurrent load.
package store

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrConflict names the case where the caller's conflict hash doesn't match
// the resident record's -- almost always meaning two distinct keys hashed
// to the same primary key hash. Store methods themselves report a conflict
// through their ok/bool results and do not return this error.
var ErrConflict = errors.New("store: key hash conflict")

const defaultShardCount = 256

type shard struct {
	mu      sync.RWMutex
	records map[uint64]*record
}

// Store is the sharded concurrent entry index, addressed by key hash.
type Store struct {
	shards []*shard
	mask   uint64
	now    func() int64
}

// New returns a Store with shardCount shards (rounded up to a power of two)
// and now as its monotonic clock source.
func New(shardCount int, now func() int64) *Store {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	n := nextPow2(uint64(shardCount))
	s := &Store{
		shards: make([]*shard, n),
		mask:   n - 1,
		now:    now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[uint64]*record)}
	}
	return s
}

func (s *Store) shardFor(keyHash uint64) *shard {
	return s.shards[keyHash&s.mask]
}

// Get returns the value and weight for keyHash/conflict, touching the
// record's last-access time. It returns ok=false on a miss, a conflict, or
// a record already marked Removed.
func (s *Store) Get(keyHash, conflict uint64) (value interface{}, weight uint64, ok bool) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict || r.getState() == StateRemoved {
		return nil, 0, false
	}
	d := r.load()
	r.touch(s.now())
	return d.value, d.weight, true
}

// Peek is Get without the access-time update, used by the Cache's Get and
// Contains when they need a record's current value without disturbing
// recency-based policies.
func (s *Store) Peek(keyHash, conflict uint64) (value interface{}, weight uint64, ok bool) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict || r.getState() == StateRemoved {
		return nil, 0, false
	}
	d := r.load()
	return d.value, d.weight, true
}

// Touch updates a record's last-access timestamp without reading its value,
// used after a caller has already decided (via Peek) that the record is
// still fresh.
func (s *Store) Touch(keyHash, conflict uint64) bool {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict || r.getState() == StateRemoved {
		return false
	}
	r.touch(s.now())
	return true
}

// Set inserts or overwrites keyHash/conflict's record, reporting the
// previous value if one existed (and wasn't itself a conflict). Overwriting
// an existing record resets its creation time, per the refresh-after-write
// contract -- a fresh CreatedAt also restarts any TTL anchored to it.
func (s *Store) Set(keyHash, conflict uint64, key, value interface{}, weight uint64) (prev interface{}, existed bool, conflicted bool) {
	now := s.now()
	sh := s.shardFor(keyHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, found := sh.records[keyHash]
	if !found || r.getState() == StateRemoved {
		sh.records[keyHash] = newRecord(keyHash, conflict, key, value, weight, now)
		return nil, false, false
	}
	if r.conflict != conflict {
		return nil, false, true
	}
	d := r.load()
	r.replace(key, value, weight, now)
	r.touch(now)
	r.setState(StateLive)
	return d.value, true, false
}

// Update overwrites the value of an existing record only -- it never
// creates one. ok=false means the key was absent or the conflict hash
// didn't match.
func (s *Store) Update(keyHash, conflict uint64, key, value interface{}, weight uint64) (prev interface{}, ok bool) {
	now := s.now()
	sh := s.shardFor(keyHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, found := sh.records[keyHash]
	if !found || r.conflict != conflict || r.getState() == StateRemoved {
		return nil, false
	}
	d := r.load()
	r.replace(key, value, weight, now)
	r.touch(now)
	return d.value, true
}

// Del removes keyHash/conflict's record outright, returning its last value
// and weight.
func (s *Store) Del(keyHash, conflict uint64) (value interface{}, weight uint64, ok bool) {
	sh := s.shardFor(keyHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, found := sh.records[keyHash]
	if !found || r.conflict != conflict {
		return nil, 0, false
	}
	d := r.load()
	delete(sh.records, keyHash)
	return d.value, d.weight, true
}

// DelAny removes whatever record currently occupies keyHash, regardless of
// its conflict hash, returning its key/value/weight. Used by the policy's
// victim selection, which tracks only key hashes and has no conflict hash
// to compare against.
func (s *Store) DelAny(keyHash uint64) (key, value interface{}, weight uint64, ok bool) {
	sh := s.shardFor(keyHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, found := sh.records[keyHash]
	if !found {
		return nil, nil, 0, false
	}
	d := r.load()
	delete(sh.records, keyHash)
	return d.key, d.value, d.weight, true
}

// MarkExpiring transitions a live record to Expiring without unlinking it,
// the first half of the lifecycle manager's two-phase sweep. It returns
// false if the record is gone or already claimed by another sweep pass.
func (s *Store) MarkExpiring(keyHash, conflict uint64) bool {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict {
		return false
	}
	return r.casState(StateLive, StateExpiring)
}

// Weight returns a record's current weight.
func (s *Store) Weight(keyHash, conflict uint64) (uint64, bool) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict || r.getState() == StateRemoved {
		return 0, false
	}
	return r.load().weight, true
}

// CreatedAt returns a record's creation (or last-refresh) monotonic
// timestamp, used by the lifecycle manager to evaluate TTL expiry.
func (s *Store) CreatedAt(keyHash, conflict uint64) (int64, bool) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict {
		return 0, false
	}
	return r.load().createdAt, true
}

// LastAccessAt returns a record's last-touch monotonic timestamp, used by
// the Cache's access-based expiry checks and remaining-TTL reporting.
func (s *Store) LastAccessAt(keyHash, conflict uint64) (int64, bool) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	r, found := sh.records[keyHash]
	sh.mu.RUnlock()
	if !found || r.conflict != conflict {
		return 0, false
	}
	return r.lastAccessAt.Load(), true
}

// Range applies fn to every live record across all shards, stopping early
// if fn returns false. Order is unspecified and callers must not mutate the
// Store from within fn.
func (s *Store) Range(fn func(keyHash, conflict uint64, key, value interface{}, weight uint64) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.records {
			if r.getState() == StateRemoved {
				continue
			}
			d := r.load()
			if !fn(r.keyHash, r.conflict, d.key, d.value, d.weight) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Len returns the number of records currently tracked, live or expiring.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.records)
		sh.mu.RUnlock()
	}
	return total
}

// Clear drops every record across every shard, invoking onEvict for each
// one first so callers can run their eviction listener / free accounting.
func (s *Store) Clear(onEvict func(keyHash, conflict uint64, key, value interface{}, weight uint64)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, r := range sh.records {
			if onEvict != nil {
				d := r.load()
				onEvict(r.keyHash, r.conflict, d.key, d.value, d.weight)
			}
		}
		sh.records = make(map[uint64]*record)
		sh.mu.Unlock()
	}
}

func nextPow2(x uint64) uint64 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
