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

package nyxcache

import "time"

// processStart anchors monotonicNow: time.Since reads Go's monotonic clock
// reading transparently (as long as the Time value retains one, which a
// value obtained from time.Now() always does), so every duration derived
// from it is immune to wall-clock adjustments -- spec section 4.4's "use a
// monotonic clock; never wall-clock."
var processStart = time.Now()

// monotonicNow returns nanoseconds elapsed since process start, suitable
// only for comparison against other monotonicNow() readings.
func monotonicNow() int64 {
	return int64(time.Since(processStart))
}
