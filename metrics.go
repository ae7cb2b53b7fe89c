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
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/cpu"
)

type counterKind int

const (
	counterHits counterKind = iota
	counterMisses
	counterLoads
	counterLoadFailures
	counterEvictions
	counterLoadTimeNs
	counterListenerErrors
	counterSetsRejected
	numCounters
)

// counterShards is how many padded slots each counter spreads its
// increments across, to avoid false sharing under concurrent writers --
// mirrors the teacher's metrics.go, which spreads its own atomics across
// 256 slots indexed by a hash of the operation's key.
const counterShards = 64

// paddedCounter holds one shard's worth of a single counter, padded out to
// a full cache line so two goroutines hammering adjacent shards never
// bounce the same cache line between their cores.
type paddedCounter struct {
	value uint64
	_     [cpu.CacheLinePadSize - 8]byte
}

// Metrics is a snapshot-on-read view of a Cache's lock-free counters, per
// spec section 4.6.
type Metrics struct {
	counters [numCounters][counterShards]paddedCounter
}

func newMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) add(kind counterKind, keyHash uint64, delta uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.counters[kind][keyHash%counterShards].value, delta)
}

func (m *Metrics) get(kind counterKind) uint64 {
	if m == nil {
		return 0
	}
	var total uint64
	for i := range m.counters[kind] {
		total += atomic.LoadUint64(&m.counters[kind][i].value)
	}
	return total
}

// Hits is the number of Get calls that found a live, non-expired record.
func (m *Metrics) Hits() uint64 { return m.get(counterHits) }

// Misses is the number of Get calls that found nothing.
func (m *Metrics) Misses() uint64 { return m.get(counterMisses) }

// Loads is the number of times a loader function was actually invoked
// (ComputeIfAbsent or GetOrLoadAsync).
func (m *Metrics) Loads() uint64 { return m.get(counterLoads) }

// LoadFailures is the number of loader invocations that returned an error.
func (m *Metrics) LoadFailures() uint64 { return m.get(counterLoadFailures) }

// Evictions is the number of records removed by the eviction policy or the
// lifecycle manager (SIZE, WEIGHT, or EXPIRED reasons; not EXPLICIT).
func (m *Metrics) Evictions() uint64 { return m.get(counterEvictions) }

// TotalLoadTimeNanos is the cumulative wall time spent inside loader calls.
func (m *Metrics) TotalLoadTimeNanos() uint64 { return m.get(counterLoadTimeNs) }

// ListenerErrors is the number of listener invocations that panicked or
// were otherwise swallowed, per spec section 4.6/7.
func (m *Metrics) ListenerErrors() uint64 { return m.get(counterListenerErrors) }

// SetsRejected is the number of Put calls that never made it into the
// cache: either the admission policy silently declined the candidate
// (WindowTinyLFU or Composite only), or the background write queue was
// momentarily full. It also counts a key that was already stored in the
// admission window and lost the contest for a place in the main region.
func (m *Metrics) SetsRejected() uint64 { return m.get(counterSetsRejected) }

// HitRate is Hits / (Hits + Misses), or 0.0 if there have been no Get calls
// at all.
func (m *Metrics) HitRate() float64 {
	hits, misses := m.get(counterHits), m.get(counterMisses)
	if hits == 0 && misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Clear resets every counter to zero.
func (m *Metrics) Clear() {
	if m == nil {
		return
	}
	for k := range m.counters {
		for i := range m.counters[k] {
			atomic.StoreUint64(&m.counters[k][i].value, 0)
		}
	}
}

// String renders a human-readable snapshot, using go-humanize to format
// the counters (hits, misses, loads, evictions and so on) the way an
// operator skimming logs would expect; total load time is rendered as a
// time.Duration.
func (m *Metrics) String() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "hits: %s ", humanize.Comma(int64(m.Hits())))
	fmt.Fprintf(&b, "misses: %s ", humanize.Comma(int64(m.Misses())))
	fmt.Fprintf(&b, "hit-rate: %.2f ", m.HitRate())
	fmt.Fprintf(&b, "loads: %s ", humanize.Comma(int64(m.Loads())))
	fmt.Fprintf(&b, "load-failures: %s ", humanize.Comma(int64(m.LoadFailures())))
	fmt.Fprintf(&b, "evictions: %s ", humanize.Comma(int64(m.Evictions())))
	fmt.Fprintf(&b, "total-load-time: %s ", time.Duration(m.TotalLoadTimeNanos()))
	fmt.Fprintf(&b, "listener-errors: %s", humanize.Comma(int64(m.ListenerErrors())))
	return b.String()
}
