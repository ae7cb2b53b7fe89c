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

// lfuNode is the payload of a node inside a frequency bucket's list.
type lfuNode struct {
	keyHash uint64
	freq    uint64
	bucket  *list.Element // the bucket (in buckets) this node's list lives under
}

// freqBucket groups every key currently at the same access frequency.
type freqBucket struct {
	freq  uint64
	items *list.List // of *lfuNode
}

// LFU is an O(1) frequency-bucketed LFU: frequency buckets are themselves
// kept in an ascending doubly-linked list, so the minimum-frequency bucket
// (and thus the next victim) is always the head's list tail -- spec
// section 4.2.2.
type LFU struct {
	capacity int
	nodes    map[uint64]*list.Element // keyHash -> node element within its bucket's list
	buckets  *list.List               // of *freqBucket, ascending by freq
	bucketOf map[uint64]*list.Element // freq -> bucket element within buckets
	sketch   FrequencyEstimator       // nil unless "enhanced"; unused directly, kept for symmetry
}

// NewLFU returns a plain frequency-bucketed LFU policy.
func NewLFU(capacity int) *LFU {
	return &LFU{
		capacity: capacity,
		nodes:    make(map[uint64]*list.Element, capacity),
		buckets:  list.New(),
		bucketOf: make(map[uint64]*list.Element),
	}
}

// NewEnhancedLFU is LFU carrying a frequency sketch, for parity with
// EnhancedLRU. Victim selection does not consult the sketch: SelectVictim
// returns the minimum bucket's tail exactly as plain LFU does.
func NewEnhancedLFU(capacity int, sk FrequencyEstimator) *LFU {
	l := NewLFU(capacity)
	l.sketch = sk
	return l
}

func (p *LFU) bucketFor(freq uint64) *list.Element {
	if e, ok := p.bucketOf[freq]; ok {
		return e
	}
	return nil
}

// bucketAfter returns the (possibly newly created) bucket for freq,
// splicing a fresh one in immediately after `after` if none exists yet.
func (p *LFU) bucketAfter(after *list.Element, freq uint64) *list.Element {
	if e := p.bucketFor(freq); e != nil {
		return e
	}
	nb := &freqBucket{freq: freq, items: list.New()}
	var e *list.Element
	if after == nil {
		e = p.buckets.PushFront(nb)
	} else {
		e = p.buckets.InsertAfter(nb, after)
	}
	p.bucketOf[freq] = e
	return e
}

func (p *LFU) removeBucketIfEmpty(e *list.Element) {
	b := e.Value.(*freqBucket)
	if b.items.Len() == 0 {
		delete(p.bucketOf, b.freq)
		p.buckets.Remove(e)
	}
}

func (p *LFU) touch(keyHash uint64) {
	nodeEl, ok := p.nodes[keyHash]
	if !ok {
		return
	}
	n := nodeEl.Value.(*lfuNode)
	oldBucketEl := n.bucket
	oldBucket := oldBucketEl.Value.(*freqBucket)
	oldBucket.items.Remove(nodeEl)

	newFreq := n.freq + 1
	newBucketEl := p.bucketAfter(oldBucketEl, newFreq)
	n.freq = newFreq
	n.bucket = newBucketEl
	newBucket := newBucketEl.Value.(*freqBucket)
	p.nodes[keyHash] = newBucket.items.PushFront(n)

	p.removeBucketIfEmpty(oldBucketEl)
}

func (p *LFU) RecordAccess(keyHash uint64) {
	p.touch(keyHash)
}

func (p *LFU) RecordInsertion(keyHash uint64, _ uint64) ([]uint64, []uint64, bool) {
	if _, ok := p.nodes[keyHash]; ok {
		p.touch(keyHash)
		return nil, nil, true
	}

	var evicted []uint64
	if len(p.nodes) >= p.capacity {
		if v, ok := p.SelectVictim(); ok {
			p.RecordRemoval(v)
			evicted = append(evicted, v)
		}
	}

	// freq 1 is always the minimum possible frequency, so its bucket
	// belongs at the front of the (ascending) bucket list.
	firstBucketEl := p.bucketAfter(nil, 1)
	b := firstBucketEl.Value.(*freqBucket)
	n := &lfuNode{keyHash: keyHash, freq: 1, bucket: firstBucketEl}
	p.nodes[keyHash] = b.items.PushFront(n)
	return evicted, nil, true
}

func (p *LFU) RecordRemoval(keyHash uint64) {
	nodeEl, ok := p.nodes[keyHash]
	if !ok {
		return
	}
	n := nodeEl.Value.(*lfuNode)
	bucketEl := n.bucket
	bucketEl.Value.(*freqBucket).items.Remove(nodeEl)
	delete(p.nodes, keyHash)
	p.removeBucketIfEmpty(bucketEl)
}

// SelectVictim returns the tail of the minimum-frequency bucket (the
// bucket list's head, since buckets are kept in ascending order).
func (p *LFU) SelectVictim() (uint64, bool) {
	min := p.buckets.Front()
	if min == nil {
		return 0, false
	}
	b := min.Value.(*freqBucket)
	tail := b.items.Back()
	if tail == nil {
		return 0, false
	}
	return tail.Value.(*lfuNode).keyHash, true
}

func (p *LFU) Len() int { return len(p.nodes) }
