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

// insertionOrder is a single doubly-linked list ordered purely by
// insertion time; RecordAccess is a no-op for both FIFO and FILO, per
// spec section 4.2.3. Which end evict() reads from is the only
// difference between the two.
type insertionOrder struct {
	list     *list.List
	nodes    map[uint64]*list.Element
	capacity int
	evictTail bool // true: FIFO (evict oldest/tail); false: FILO (evict newest/head)
}

func newInsertionOrder(capacity int, evictTail bool) *insertionOrder {
	return &insertionOrder{
		list:      list.New(),
		nodes:     make(map[uint64]*list.Element, capacity),
		capacity:  capacity,
		evictTail: evictTail,
	}
}

func (p *insertionOrder) RecordAccess(uint64) {}

func (p *insertionOrder) RecordInsertion(keyHash uint64, _ uint64) ([]uint64, []uint64, bool) {
	if _, ok := p.nodes[keyHash]; ok {
		return nil, nil, true
	}
	var evicted []uint64
	if p.list.Len() >= p.capacity {
		if v, ok := p.evict(); ok {
			evicted = append(evicted, v)
		}
	}
	p.nodes[keyHash] = p.list.PushFront(keyHash)
	return evicted, nil, true
}

func (p *insertionOrder) RecordRemoval(keyHash uint64) {
	if e, ok := p.nodes[keyHash]; ok {
		p.list.Remove(e)
		delete(p.nodes, keyHash)
	}
}

func (p *insertionOrder) SelectVictim() (uint64, bool) {
	return p.evict()
}

func (p *insertionOrder) Len() int { return p.list.Len() }

func (p *insertionOrder) evict() (uint64, bool) {
	var e *list.Element
	if p.evictTail {
		e = p.list.Back()
	} else {
		e = p.list.Front()
	}
	if e == nil {
		return 0, false
	}
	key := e.Value.(uint64)
	p.list.Remove(e)
	delete(p.nodes, key)
	return key, true
}

// FIFO evicts the oldest inserted key first.
type FIFO struct{ *insertionOrder }

// NewFIFO returns a FIFO policy of the given key-count capacity.
func NewFIFO(capacity int) *FIFO {
	return &FIFO{newInsertionOrder(capacity, true)}
}

// FILO evicts the most-recently inserted key first.
type FILO struct{ *insertionOrder }

// NewFILO returns a FILO (stack-like) policy of the given key-count capacity.
func NewFILO(capacity int) *FILO {
	return &FILO{newInsertionOrder(capacity, false)}
}
