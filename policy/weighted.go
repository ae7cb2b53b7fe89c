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

// WeightBased tracks each key's weight and always offers up the
// maximum-weight key as the next victim via an O(n) linear scan, per spec
// section 4.2.4 ("kept for completeness; not used as default").
type WeightBased struct {
	weights map[uint64]uint64
}

// NewWeightBased returns a weight-based policy. It has no key-count
// capacity of its own -- the lifecycle manager drives eviction entirely
// via the weight budget, calling SelectVictim repeatedly.
func NewWeightBased() *WeightBased {
	return &WeightBased{weights: make(map[uint64]uint64)}
}

func (p *WeightBased) RecordAccess(uint64) {}

func (p *WeightBased) RecordInsertion(keyHash uint64, weight uint64) ([]uint64, []uint64, bool) {
	p.weights[keyHash] = weight
	return nil, nil, true
}

func (p *WeightBased) RecordRemoval(keyHash uint64) {
	delete(p.weights, keyHash)
}

// SelectVictim scans for the heaviest key. Ties favor no particular key
// (map iteration order is unspecified in Go); callers should not depend on
// tie-breaking behavior.
func (p *WeightBased) SelectVictim() (uint64, bool) {
	var (
		maxKey    uint64
		maxWeight uint64
		found     bool
	)
	for k, w := range p.weights {
		if !found || w > maxWeight {
			maxKey, maxWeight, found = k, w, true
		}
	}
	return maxKey, found
}

func (p *WeightBased) Len() int { return len(p.weights) }
