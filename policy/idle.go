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

// IdleTime evicts any key whose idle interval (time since last access)
// exceeds a configured threshold, via an O(n) scan -- spec section 4.2.5
// names this "suitable only as supplementary policy". It is intended to
// run alongside another primary policy rather than stand alone, since it
// offers no victim at all while every key is still "fresh".
type IdleTime struct {
	lastAccess map[uint64]int64
	threshold  int64
	now        Clock
}

// NewIdleTime returns an idle-time policy; threshold is in nanoseconds and
// now supplies the monotonic clock the engine uses elsewhere.
func NewIdleTime(thresholdNanos int64, now Clock) *IdleTime {
	return &IdleTime{
		lastAccess: make(map[uint64]int64),
		threshold:  thresholdNanos,
		now:        now,
	}
}

func (p *IdleTime) RecordAccess(keyHash uint64) {
	if _, ok := p.lastAccess[keyHash]; ok {
		p.lastAccess[keyHash] = p.now()
	}
}

func (p *IdleTime) RecordInsertion(keyHash uint64, _ uint64) ([]uint64, []uint64, bool) {
	p.lastAccess[keyHash] = p.now()
	return nil, nil, true
}

func (p *IdleTime) RecordRemoval(keyHash uint64) {
	delete(p.lastAccess, keyHash)
}

// SelectVictim returns any key idle past the threshold, or ok=false if
// none currently is.
func (p *IdleTime) SelectVictim() (uint64, bool) {
	now := p.now()
	for k, last := range p.lastAccess {
		if now-last > p.threshold {
			return k, true
		}
	}
	return 0, false
}

func (p *IdleTime) Len() int { return len(p.lastAccess) }
