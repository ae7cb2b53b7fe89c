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
	"time"

	"github.com/nyxkv/nyxcache/policy"
)

// SketchKind controls whether EnhancedLRU/EnhancedLFU consult a frequency
// sketch when picking a victim among sampled candidates.
type SketchKind int

const (
	// SketchNone disables sketch consultation; LRU/LFU behave as their
	// plain (non-enhanced) variants regardless of the chosen policy.
	SketchNone SketchKind = iota
	// SketchBasic is the standard 4-row count-min sketch (package sketch).
	SketchBasic
	// SketchOptimized is reserved for a future lower-variance sketch
	// variant; it currently behaves identically to SketchBasic.
	SketchOptimized
)

// itemOverheadWeight approximates the bookkeeping cost of storing one
// record, added to every computed weight unless IgnoreInternalCost is set
// -- mirrors the teacher's itemSize constant added to every Item.Cost.
const itemOverheadWeight = 64

// Config configures a Cache. Exactly one of MaximumSize or MaximumWeight
// must be set; setting both is a configuration error.
type Config struct {
	// Name optionally registers this Cache under Registry for cross-
	// instance stats aggregation (spec section 5's "registry keyed by
	// cache name").
	Name string

	// MaximumSize caps the number of live entries. Mutually exclusive
	// with MaximumWeight.
	MaximumSize int64
	// MaximumWeight caps the sum of live entry weights. Requires Weigher.
	MaximumWeight int64
	// Weigher computes a key/value pair's weight; required when
	// MaximumWeight is set, ignored otherwise. Defaults to a constant 1.
	Weigher func(key K, value V) uint64

	// ExpireAfterWrite, if nonzero, expires a record this long after its
	// most recent Put.
	ExpireAfterWrite time.Duration
	// ExpireAfterAccess, if nonzero, expires a record this long after its
	// most recent Get.
	ExpireAfterAccess time.Duration
	// RefreshAfterWrite, if nonzero, is an advisory hint: a read of a
	// record older than this may trigger a background reload. It is not a
	// hard freshness guarantee (design note 3).
	RefreshAfterWrite time.Duration

	// EvictionPolicy selects the admission/eviction strategy. Defaults to
	// WindowTinyLFU.
	EvictionPolicy policy.Kind
	// SketchKind controls sketch consultation for EnhancedLRU/EnhancedLFU.
	SketchKind SketchKind
	// ProtectedRatio overrides WindowTinyLFU's protected-segment share of
	// main space (default policy.DefaultProtectedRatio).
	ProtectedRatio float64
	// IdleThreshold is the idle interval used by the IdleTime policy.
	IdleThreshold time.Duration

	// RecordStats enables Metrics collection; if false, Stats() returns nil
	// (whose accessors all report zero) and counter increments are skipped
	// entirely.
	RecordStats bool
	// Listeners receive synchronous lifecycle callbacks; see Listener.
	Listeners []Listener

	// InitialCapacity is a sizing hint for the entry index's shard count.
	InitialCapacity int
	// BufferItems sizes the per-access ring buffer batch (an ambient
	// performance knob, not a new semantic -- teacher's Config.BufferItems).
	BufferItems int64
	// IgnoreInternalCost, when true, skips adding itemOverheadWeight to
	// every computed weight.
	IgnoreInternalCost bool

	// KeyHash overrides the default two-hash key hashing strategy.
	KeyHash KeyHasher
	// clock overrides the default monotonicNow clock, for deterministic tests. Not
	// exported: callers configure TTL via durations, not by supplying
	// their own clock.
	clock func() int64
}

func (c *Config) validate() error {
	if c.MaximumSize > 0 && c.MaximumWeight > 0 {
		return ErrConflictingCapacityMode
	}
	if c.MaximumSize == 0 && c.MaximumWeight == 0 {
		return ErrInvalidMaxSize
	}
	if c.MaximumSize < 0 {
		return ErrInvalidMaxSize
	}
	if c.MaximumWeight < 0 {
		return ErrInvalidMaxWeight
	}
	if c.MaximumWeight > 0 && c.Weigher == nil {
		return ErrMissingWeigher
	}
	return nil
}

func (c *Config) capacityHint() int {
	if c.MaximumSize > 0 {
		return int(c.MaximumSize)
	}
	if c.InitialCapacity > 0 {
		return c.InitialCapacity
	}
	return 1024
}

func (c *Config) bufferItems() int32 {
	if c.BufferItems > 0 {
		return int32(c.BufferItems)
	}
	return 64
}

func (c *Config) weigher() func(K, V) uint64 {
	if c.Weigher != nil {
		return c.Weigher
	}
	return func(K, V) uint64 { return 1 }
}

func (c *Config) keyHasher() KeyHasher {
	if c.KeyHash != nil {
		return c.KeyHash
	}
	return defaultKeyHash
}

func (c *Config) clockFunc() func() int64 {
	if c.clock != nil {
		return c.clock
	}
	return monotonicNow
}
