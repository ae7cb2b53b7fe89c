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

// doorkeeperBits is the bloom filter's size in bits per tracked capacity
// unit. A larger filter trades memory for a lower false-positive (and
// thus lower unnecessary-admission) rate.
const doorkeeperBits = 8

// doorkeeper is a one-shot bloom filter: a key must be seen twice (once to
// set its bits, once to find them already set) before it is considered
// "seen before". It clears itself after its own count of observations
// reaches capacity*doorkeeperBits, independently of the inner policy, so
// that it keeps tracking only recent arrivals.
type doorkeeper struct {
	bits    []uint64
	mask    uint64
	resetAt uint64
	seen    uint64
}

func newDoorkeeper(capacity int) *doorkeeper {
	bits := nextPow2(uint64(capacity) * doorkeeperBits)
	if bits < 64 {
		bits = 64
	}
	return &doorkeeper{
		bits:    make([]uint64, bits/64),
		mask:    bits - 1,
		resetAt: uint64(capacity) * doorkeeperBits,
	}
}

func (d *doorkeeper) positions(hash uint64) (uint64, uint64) {
	h1 := hash & d.mask
	h2 := (hash >> 32) & d.mask
	return h1, h2
}

// put records hash as seen and reports whether it had already been seen.
func (d *doorkeeper) put(hash uint64) bool {
	h1, h2 := d.positions(hash)
	already := d.test(h1) && d.test(h2)
	d.set(h1)
	d.set(h2)
	d.seen++
	if d.seen >= d.resetAt {
		d.clear()
	}
	return already
}

func (d *doorkeeper) set(pos uint64) {
	d.bits[pos/64] |= 1 << (pos % 64)
}

func (d *doorkeeper) test(pos uint64) bool {
	return d.bits[pos/64]&(1<<(pos%64)) != 0
}

func (d *doorkeeper) clear() {
	for i := range d.bits {
		d.bits[i] = 0
	}
	d.seen = 0
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

// Composite gates any underlying policy behind a doorkeeper bloom filter:
// a brand-new key must be observed twice before it is even offered to the
// wrapped policy for admission, cheaply rejecting the long tail of
// one-off keys that would otherwise churn the real admission/eviction
// machinery. Spec section 4.7.
type Composite struct {
	inner Policy
	gate  *doorkeeper
}

// NewComposite wraps inner behind a doorkeeper sized for capacity keys.
func NewComposite(inner Policy, capacity int) *Composite {
	return &Composite{inner: inner, gate: newDoorkeeper(capacity)}
}

func (c *Composite) RecordAccess(keyHash uint64) {
	c.inner.RecordAccess(keyHash)
}

func (c *Composite) RecordInsertion(keyHash uint64, weight uint64) ([]uint64, []uint64, bool) {
	if !c.gate.put(keyHash) {
		// First sighting: admit the doorkeeper's record of it, but
		// reject outright from the real policy so one-off keys never
		// displace anything resident.
		return nil, nil, false
	}
	return c.inner.RecordInsertion(keyHash, weight)
}

func (c *Composite) RecordRemoval(keyHash uint64) {
	c.inner.RecordRemoval(keyHash)
}

func (c *Composite) SelectVictim() (uint64, bool) {
	return c.inner.SelectVictim()
}

func (c *Composite) Len() int {
	return c.inner.Len()
}
