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

package policy

import "container/list"

// sampleSize is how many of the least-recently-used nodes EnhancedLRU
// inspects when it consults the frequency sketch for a victim, mirroring
// the teacher's lfuSample constant ("5 seems to be the most optimal number
// [citation needed]").
const sampleSize = 5

// FrequencyEstimator is the minimal surface EnhancedLRU/EnhancedLFU need
// from a frequency sketch: just enough to break ties among eviction
// candidates by estimated popularity.
type FrequencyEstimator interface {
	Frequency(keyHash uint64) byte
}

// LRU is a classic doubly-linked-list LRU: O(1) access, insertion,
// removal and victim selection. capacity is a key count (not a weight);
// weight-based accounting is layered on top by the lifecycle manager.
type LRU struct {
	list     *list.List
	nodes    map[uint64]*list.Element
	capacity int
	sketch   FrequencyEstimator // nil unless "enhanced"
}

// NewLRU returns a plain LRU policy.
func NewLRU(capacity int) *LRU {
	return &LRU{
		list:     list.New(),
		nodes:    make(map[uint64]*list.Element, capacity),
		capacity: capacity,
	}
}

// NewEnhancedLRU returns an LRU policy whose victim selection consults sk
// to prefer evicting the least-frequently-used key among the last few
// (sampleSize) LRU candidates, instead of blindly evicting the true tail.
func NewEnhancedLRU(capacity int, sk FrequencyEstimator) *LRU {
	l := NewLRU(capacity)
	l.sketch = sk
	return l
}

func (p *LRU) RecordAccess(keyHash uint64) {
	if e, ok := p.nodes[keyHash]; ok {
		p.list.MoveToFront(e)
	}
}

func (p *LRU) RecordInsertion(keyHash uint64, _ uint64) ([]uint64, []uint64, bool) {
	if e, ok := p.nodes[keyHash]; ok {
		p.list.MoveToFront(e)
		return nil, nil, true
	}

	var evicted []uint64
	if p.list.Len() >= p.capacity {
		if v, ok := p.evictOne(); ok {
			evicted = append(evicted, v)
		}
	}
	p.nodes[keyHash] = p.list.PushFront(keyHash)
	return evicted, nil, true
}

func (p *LRU) RecordRemoval(keyHash uint64) {
	if e, ok := p.nodes[keyHash]; ok {
		p.list.Remove(e)
		delete(p.nodes, keyHash)
	}
}

func (p *LRU) SelectVictim() (uint64, bool) {
	return p.evictOne()
}

func (p *LRU) Len() int { return p.list.Len() }

// evictOne picks and removes the victim: the true LRU tail, unless a
// sketch is configured, in which case the least-frequently-used of the
// last sampleSize nodes (from the tail) is preferred -- this is the
// "consult the frequency sketch" enhancement from spec section 4.2.1.
func (p *LRU) evictOne() (uint64, bool) {
	back := p.list.Back()
	if back == nil {
		return 0, false
	}
	victim := back
	if p.sketch != nil {
		minFreq := p.sketch.Frequency(back.Value.(uint64))
		e := back
		for i := 0; i < sampleSize-1; i++ {
			e = e.Prev()
			if e == nil {
				break
			}
			if f := p.sketch.Frequency(e.Value.(uint64)); f < minFreq {
				minFreq = f
				victim = e
			}
		}
	}
	key := victim.Value.(uint64)
	p.list.Remove(victim)
	delete(p.nodes, key)
	return key, true
}
