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

// Package nyxcache is a fixed-capacity, thread-safe, in-process key/value
// cache. Reads never take the policy lock, only a brief per-shard read lock
// in the entry index; writes are coalesced through a single
// background goroutine that applies admission and eviction decisions under
// one policy lock per Cache. A pluggable eviction policy (window-TinyLFU
// by default, with LRU, LFU, FIFO, FILO, weight-based, idle-time, and
// sketch-enhanced variants available) decides what survives capacity
// pressure; a count-min frequency sketch backs window-TinyLFU's admission
// decisions.
//
// Construct a Cache with NewCache, configured via Config. A Cache must be
// closed with Close when no longer needed, to stop its background
// goroutines.
package nyxcache
