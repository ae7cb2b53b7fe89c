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

import (
	"container/list"
	"math/rand"

	"github.com/nyxkv/nyxcache/sketch"
)

const (
	// defaultWindowRatio is the admission window's share of total
	// capacity, per the TinyLFU paper's recommendation of ~1%.
	defaultWindowRatio = 0.01
	// DefaultProtectedRatio is the protected segment's share of the main
	// space. spec section 4.2.6 / design note 2 settles on 80% as the
	// default, noting it is configurable.
	DefaultProtectedRatio = 0.8
	// antiHashFloodThreshold is the minimum tied frequency at which a
	// candidate is given a (low-probability) chance to displace an
	// equally-popular incumbent, guarding against a flood of once-seen
	// keys from starving legitimate repeats.
	antiHashFloodThreshold = 2
	// admitProbability is that low probability: spec section 4.2.6 says
	// "admit with probability 1/32".
	admitProbability = 1.0 / 32.0
	// initialClimbStepRatio is hill-climbing's starting step size,
	// relative to total capacity -- spec section 4.2.6: "6.25% x capacity".
	initialClimbStepRatio = 0.0625
	// climbStepDecay shrinks the step each sample unless the hit rate
	// swung by at least 5%, in which case it resets to the initial size.
	climbStepDecay = 0.98
	// climbResetDeltaThreshold is that 5% hit-rate-swing threshold.
	climbResetDeltaThreshold = 0.05
)

type segment int

const (
	segWindow segment = iota
	segProbation
	segProtected
)

type location struct {
	seg segment
	el  *list.Element
}

// WindowTinyLFU is the default admission/eviction policy: a small LRU
// admission window feeding a segmented (probationary/protected) main
// space, gated by a count-min frequency sketch, with hill-climbing
// adaptive resizing between window and main. Spec section 4.2.6.
type WindowTinyLFU struct {
	capacity     int
	maxWindow    int
	maxProtected int
	maxProbation int

	window    *list.List
	probation *list.List
	protected *list.List
	loc       map[uint64]location

	sk  *sketch.Sketch
	rnd *rand.Rand

	protectedRatio float64

	// hill climbing state
	stepSize      float64
	stepDirection int
	sampleHits    uint64
	sampleMisses  uint64
	prevHitRate   float64
	climbed       bool

	pending []uint64
}

// NewWindowTinyLFU returns a window-TinyLFU policy sized for capacity
// keys, with its own frequency sketch.
func NewWindowTinyLFU(capacity int) *WindowTinyLFU {
	return NewWindowTinyLFUWithRatio(capacity, DefaultProtectedRatio)
}

// NewWindowTinyLFUWithRatio is NewWindowTinyLFU with an explicit
// protected-segment ratio (design note 2: "configurable elsewhere").
func NewWindowTinyLFUWithRatio(capacity int, protectedRatio float64) *WindowTinyLFU {
	if capacity < 3 {
		capacity = 3
	}
	p := &WindowTinyLFU{
		capacity:       capacity,
		window:         list.New(),
		probation:      list.New(),
		protected:      list.New(),
		loc:            make(map[uint64]location, capacity),
		sk:             sketch.New(uint64(capacity)),
		rnd:            rand.New(rand.NewSource(1)), //nolint:gosec // admission jitter, not security sensitive
		protectedRatio: protectedRatio,
		stepDirection:  1,
	}
	p.stepSize = initialClimbStepRatio * float64(capacity)
	p.setWindowSize(maxInt(1, int(defaultWindowRatio*float64(capacity))))
	return p
}

func (p *WindowTinyLFU) setWindowSize(maxWindow int) {
	if maxWindow < 1 {
		maxWindow = 1
	}
	if maxWindow > p.capacity-1 {
		maxWindow = p.capacity - 1
	}
	p.maxWindow = maxWindow
	main := p.capacity - maxWindow
	p.maxProtected = maxInt(1, int(float64(main)*p.protectedRatio))
	if p.maxProtected > main-1 {
		p.maxProtected = maxInt(1, main-1)
	}
	p.maxProbation = main - p.maxProtected
}

func (p *WindowTinyLFU) RecordAccess(keyHash uint64) {
	loc, ok := p.loc[keyHash]
	if !ok {
		return
	}
	p.sk.Increment(keyHash)
	p.sampleHits++

	switch loc.seg {
	case segWindow:
		p.window.MoveToFront(loc.el)
	case segProtected:
		p.protected.MoveToFront(loc.el)
	case segProbation:
		p.probation.Remove(loc.el)
		e := p.protected.PushFront(keyHash)
		p.loc[keyHash] = location{segProtected, e}
		if p.protected.Len() > p.maxProtected {
			demotedEl := p.protected.Back()
			demoted := demotedEl.Value.(uint64)
			p.protected.Remove(demotedEl)
			e2 := p.probation.PushFront(demoted)
			p.loc[demoted] = location{segProbation, e2}
		}
	}
	p.maybeClimb()
}

func (p *WindowTinyLFU) RecordInsertion(keyHash uint64, _ uint64) ([]uint64, []uint64, bool) {
	if _, ok := p.loc[keyHash]; ok {
		p.RecordAccess(keyHash)
		return nil, nil, true
	}

	p.sk.Increment(keyHash)
	p.sampleMisses++

	el := p.window.PushFront(keyHash)
	p.loc[keyHash] = location{segWindow, el}

	evicted, rejected, survived := p.spillWindow(keyHash)
	p.maybeClimb()
	return evicted, rejected, survived
}

// spillWindow pops window overflow (one or more entries, if maxWindow has
// shrunk since the last insertion) into the main space, running the
// TinyLFU admission comparison whenever main itself is full. watchKey, if
// nonzero, reports via survived whether that particular key made it out
// of this spill alive (used by RecordInsertion to report admission of the
// key it just inserted). Any other candidate that loses the admission
// contest was admitted by an earlier call and is already stored -- it is
// reported via rejected so the caller evicts it from the entry index too,
// rather than leaving it as a permanent orphan the policy no longer
// tracks.
func (p *WindowTinyLFU) spillWindow(watchKey uint64) (evicted []uint64, rejected []uint64, survived bool) {
	survived = true
	for p.window.Len() > p.maxWindow {
		candEl := p.window.Back()
		candidate := candEl.Value.(uint64)
		p.window.Remove(candEl)
		delete(p.loc, candidate)

		if p.probation.Len()+p.protected.Len() < p.maxProbation+p.maxProtected {
			e := p.probation.PushFront(candidate)
			p.loc[candidate] = location{segProbation, e}
			continue
		}

		victimEl := p.probation.Back()
		if victimEl == nil {
			e := p.probation.PushFront(candidate)
			p.loc[candidate] = location{segProbation, e}
			continue
		}
		victim := victimEl.Value.(uint64)
		if p.admit(candidate, victim) {
			p.probation.Remove(victimEl)
			delete(p.loc, victim)
			e := p.probation.PushFront(candidate)
			p.loc[candidate] = location{segProbation, e}
			evicted = append(evicted, victim)
		} else if candidate == watchKey {
			survived = false
		} else {
			rejected = append(rejected, candidate)
		}
	}
	return evicted, rejected, survived
}

// admit decides whether candidate should displace victim, per spec
// section 4.2.6's two-path rule: a strictly higher frequency always wins;
// equal low frequencies favor the newer (candidate) key; equal frequencies
// at or above the anti-hash-flood threshold admit with low probability;
// anything else is rejected.
func (p *WindowTinyLFU) admit(candidate, victim uint64) bool {
	cf := p.sk.Frequency(candidate)
	vf := p.sk.Frequency(victim)
	switch {
	case cf > vf:
		return true
	case cf == vf:
		if cf <= 1 {
			return true
		}
		if cf >= antiHashFloodThreshold {
			return p.rnd.Float64() < admitProbability
		}
		return false
	default:
		return false
	}
}

func (p *WindowTinyLFU) RecordRemoval(keyHash uint64) {
	loc, ok := p.loc[keyHash]
	if !ok {
		return
	}
	switch loc.seg {
	case segWindow:
		p.window.Remove(loc.el)
	case segProbation:
		p.probation.Remove(loc.el)
	case segProtected:
		p.protected.Remove(loc.el)
	}
	delete(p.loc, keyHash)
}

// SelectVictim returns (and forgets) any key still pending from a resize
// first; otherwise the probationary tail; if probationary is empty, the
// protected tail; if main is empty entirely, the window tail. Per spec
// section 4.2.6.
func (p *WindowTinyLFU) SelectVictim() (uint64, bool) {
	if len(p.pending) > 0 {
		v := p.pending[0]
		p.pending = p.pending[1:]
		return v, true
	}
	var e *list.Element
	switch {
	case p.probation.Len() > 0:
		e = p.probation.Back()
	case p.protected.Len() > 0:
		e = p.protected.Back()
	case p.window.Len() > 0:
		e = p.window.Back()
	default:
		return 0, false
	}
	key := e.Value.(uint64)
	p.RecordRemoval(key)
	return key, true
}

func (p *WindowTinyLFU) Len() int {
	return p.window.Len() + p.probation.Len() + p.protected.Len()
}

// maybeClimb runs the hill-climbing adaptation once sampleHits+
// sampleMisses crosses the sketch's sampling threshold, shifting capacity
// between window and main in whichever direction most recently improved
// the hit rate.
func (p *WindowTinyLFU) maybeClimb() {
	total := p.sampleHits + p.sampleMisses
	if total < p.sk.SampleSize() {
		return
	}

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(p.sampleHits) / float64(total)
	}

	if p.climbed {
		delta := hitRate - p.prevHitRate
		if delta < 0 {
			p.stepDirection = -p.stepDirection
		}
		step := int(p.stepSize)
		if step < 1 {
			step = 1
		}
		p.resizeWindow(p.maxWindow + p.stepDirection*step)

		if abs(delta) >= climbResetDeltaThreshold {
			p.stepSize = initialClimbStepRatio * float64(p.capacity)
		} else {
			p.stepSize *= climbStepDecay
		}
	}

	p.climbed = true
	p.prevHitRate = hitRate
	p.sampleHits, p.sampleMisses = 0, 0
}

// resizeWindow changes the window/main split and immediately evicts any
// resulting overflow from whichever segment shrank, via that segment's
// natural tail -- spec section 4.2.6.
func (p *WindowTinyLFU) resizeWindow(newMaxWindow int) {
	oldMaxWindow := p.maxWindow
	p.setWindowSize(newMaxWindow)

	if p.maxWindow > oldMaxWindow {
		// Main shrank: spill its overflow the same way capacity
		// enforcement elsewhere would, oldest segment first.
		for p.probation.Len()+p.protected.Len() > p.maxProbation+p.maxProtected {
			var e *list.Element
			if p.probation.Len() > 0 {
				e = p.probation.Back()
			} else {
				e = p.protected.Back()
			}
			key := e.Value.(uint64)
			p.RecordRemoval(key)
			p.pending = append(p.pending, key)
		}
		return
	}

	// Window shrank: spill its overflow through the normal admission path.
	evicted, rejected, _ := p.spillWindow(0)
	p.pending = append(p.pending, evicted...)
	p.pending = append(p.pending, rejected...)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
