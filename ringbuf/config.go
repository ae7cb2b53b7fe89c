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

// Package ringbuf provides a lossy, striped ring buffer used to batch the
// per-read "touch" notifications (cache hits) that would otherwise require
// taking the single policy lock on every synchronous Get. Touches are
// buffered per-goroutine-stripe and handed to a Consumer in bulk once a
// stripe fills, keeping synchronous reads lock-free as required by the
// engine's concurrency model.
package ringbuf

// Consumer receives batches of buffered elements. Wrap encloses the whole
// batch of Push calls so the consumer can take one lock for the batch
// instead of one lock per element.
type Consumer interface {
	Push(uint64)
	Wrap(func())
}

// Config configures a set of Buffers.
type Config struct {
	Consumer Consumer
	// Size is the capacity of a single stripe before it drains.
	Size int32
	// Stripes is the number of independent rings, must be a power of two.
	Stripes uint64
}
