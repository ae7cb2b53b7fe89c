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

import "sync/atomic"

// buffer is a single lossy ring: once full, one racing goroutine drains it
// to the Consumer while others are told to retry elsewhere (a different
// stripe). Being lossy is acceptable here: a dropped touch only means a
// slightly stale policy recency ordering, never an incorrect one.
type buffer struct {
	cfg *Config

	data []uint64
	head int32
	busy int32
}

func newBuffer(cfg *Config) *buffer {
	return &buffer{
		cfg:  cfg,
		data: make([]uint64, cfg.Size),
		head: -1,
	}
}

func (b *buffer) add(element uint64) bool {
	head := atomic.AddInt32(&b.head, 1)
	if head < b.cfg.Size {
		atomic.StoreUint64(&b.data[head], element)
		return true
	}

	if !atomic.CompareAndSwapInt32(&b.busy, 0, 1) {
		// Someone else is already draining this stripe.
		return false
	}

	b.cfg.Consumer.Wrap(func() {
		for i := range b.data {
			b.cfg.Consumer.Push(atomic.SwapUint64(&b.data[i], 0))
		}
	})
	atomic.StoreUint64(&b.data[0], element)
	atomic.StoreInt32(&b.head, 0)
	atomic.StoreInt32(&b.busy, 0)
	return true
}
