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

package ringbuf

// Buffers is a striped collection of lossy ring buffers. Callers add
// elements keyed by their own hash so that concurrent touches of different
// keys land on different stripes, spreading out contention.
type Buffers struct {
	cfg     *Config
	stripes []*buffer
	mask    uint64
}

// New returns a striped ring buffer set. cfg.Stripes must be a power of
// two; cfg.Size must be positive.
func New(cfg *Config) *Buffers {
	if cfg.Stripes == 0 {
		cfg.Stripes = 1
	}
	b := &Buffers{
		cfg:     cfg,
		stripes: make([]*buffer, cfg.Stripes),
		mask:    cfg.Stripes - 1,
	}
	for i := range b.stripes {
		b.stripes[i] = newBuffer(cfg)
	}
	return b
}

// Push records element (typically a key hash), batching it into one of the
// stripes and handing the batch to the Consumer once a stripe fills.
func (b *Buffers) Push(element uint64) {
	stripe := element & b.mask
	for {
		if b.stripes[stripe].add(element) {
			return
		}
		stripe = (stripe + 1) & b.mask
	}
}
