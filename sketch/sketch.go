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

// Package sketch implements a count-min frequency sketch with 4-bit
// saturating counters, the admission estimator used by the window-TinyLFU
// policy (and, optionally, by the enhanced LRU/LFU policies) to decide
// whether a candidate key is worth keeping over an incumbent.
//
// The design follows the TinyLFU paper (https://arxiv.org/abs/1512.00727):
// four independent counter rows share one backing byte array, each row
// addressed by a distinct mix of the key's 64-bit hash. Counters saturate
// at 15 and the whole sketch is halved ("aged") once total increments cross
// a sampling threshold, biasing the estimate toward recent behavior.
package sketch

import (
	"sync/atomic"
)

const (
	// rows is the number of independent hash tables sharing the backing
	// array, per the TinyLFU paper's recommendation of 4.
	rows = 4
	// maxCounter is the saturation value of a 4-bit counter.
	maxCounter = 15
	// sampleMultiplier is how many increments accumulate, relative to the
	// configured capacity, before the sketch is aged (halved).
	sampleMultiplier = 10
)

// mixConstants are distinct odd multipliers used to decorrelate the 4 rows
// derived from a single 64-bit hash, per a simple multiplicative scrambler.
var mixConstants = [rows]uint64{
	0x9E3779B97F4A7C15,
	0xBF58476D1CE4E5B9,
	0x94D049BB133111EB,
	0xD6E8FEB86659FD93,
}

// Sketch estimates per-key access frequency with bounded memory.
type Sketch struct {
	table      []byte // packed 4-bit counters, rows*width/2 bytes
	width      uint64 // per-row slot count, a power of two
	mask       uint64
	sampleSize uint64
	increments uint64 // atomic
}

// New returns a Sketch sized for roughly capacity distinct keys. capacity
// must be positive.
func New(capacity uint64) *Sketch {
	if capacity == 0 {
		capacity = 1
	}
	width := nextPowerOfTwo(capacity)
	s := &Sketch{
		table:      make([]byte, rows*width/2),
		width:      width,
		mask:       width - 1,
		sampleSize: capacity * sampleMultiplier,
	}
	if s.sampleSize == 0 {
		s.sampleSize = width * sampleMultiplier
	}
	return s
}

// positions returns the 4 table indices (absolute offsets into s.table's
// counter space, i.e. pre-byte-packing) for the given key hash. Splitting
// one 64-bit hash into four 16-bit segments and mixing each with a
// distinct constant keeps Increment and Frequency using identical index
// math, as required by the "freshness must mirror increment" invariant.
func (s *Sketch) positions(hash uint64) [rows]uint64 {
	var out [rows]uint64
	for i := 0; i < rows; i++ {
		seg := (hash >> (uint(i) * 16)) & 0xFFFF
		mixed := (seg + 1) * mixConstants[i]
		mixed ^= mixed >> 33
		slot := mixed & s.mask
		out[i] = uint64(i)*s.width + slot
	}
	return out
}

func (s *Sketch) get(pos uint64) byte {
	b := s.table[pos/2]
	if pos&1 == 0 {
		return b & 0x0f
	}
	return (b >> 4) & 0x0f
}

func (s *Sketch) incr(pos uint64) {
	idx := pos / 2
	if pos&1 == 0 {
		if v := s.table[idx] & 0x0f; v < maxCounter {
			s.table[idx]++
		}
	} else {
		if v := (s.table[idx] >> 4) & 0x0f; v < maxCounter {
			s.table[idx] += 1 << 4
		}
	}
}

// Increment records one access to the key identified by hash (the caller's
// 64-bit key hash, e.g. from the shared hashing facility), aging the whole
// sketch if the sampling threshold is crossed.
func (s *Sketch) Increment(hash uint64) {
	for _, pos := range s.positions(hash) {
		s.incr(pos)
	}
	if atomic.AddUint64(&s.increments, 1) >= s.sampleSize {
		s.Reset()
	}
}

// Frequency returns the estimated access count in [0, 15] for hash.
func (s *Sketch) Frequency(hash uint64) byte {
	min := byte(maxCounter)
	for _, pos := range s.positions(hash) {
		if v := s.get(pos); v < min {
			min = v
		}
	}
	return min
}

// Reset halves every counter and zeroes the increment count. This is the
// sketch's age-decay step; it gives more weight to recent behavior than to
// historical behavior, per the TinyLFU paper.
func (s *Sketch) Reset() {
	for i := range s.table {
		s.table[i] = (s.table[i] >> 1) & 0x77
	}
	atomic.StoreUint64(&s.increments, 0)
}

// Clear zeroes all counters and the increment count outright (as opposed
// to Reset's halving decay).
func (s *Sketch) Clear() {
	for i := range s.table {
		s.table[i] = 0
	}
	atomic.StoreUint64(&s.increments, 0)
}

// SampleSize exposes the current aging threshold, so that callers (the
// window-TinyLFU hill-climbing adaptation) can tie their own sampling
// cadence to it.
func (s *Sketch) SampleSize() uint64 {
	return s.sampleSize
}

func nextPowerOfTwo(x uint64) uint64 {
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	return x
}
