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

package sketch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncrementAndFrequency(t *testing.T) {
	s := New(16)
	s.Increment(1)
	s.Increment(1)
	s.Increment(1)
	s.Increment(1)
	require.EqualValues(t, 4, s.Frequency(1))
	require.EqualValues(t, 0, s.Frequency(2), "neighboring key must not be corrupted")
}

func TestSaturatesAtFifteen(t *testing.T) {
	s := New(16)
	for i := 0; i < 100; i++ {
		s.Increment(42)
	}
	require.EqualValues(t, 15, s.Frequency(42))
}

func TestResetHalvesCounters(t *testing.T) {
	s := New(16)
	for i := 0; i < 4; i++ {
		s.Increment(7)
	}
	s.Reset()
	require.EqualValues(t, 2, s.Frequency(7))
}

// TestDecayOnSampleThreshold is scenario F from the spec: saturate one key
// to 15, then push enough unrelated increments through the sketch to cross
// the sampling threshold, and the next read of the saturated key's
// frequency should come back halved.
func TestDecayOnSampleThreshold(t *testing.T) {
	s := New(16)
	for i := 0; i < 100; i++ {
		s.Increment(1)
	}
	require.EqualValues(t, 15, s.Frequency(1))

	// The 100 increments above already count toward the threshold.
	threshold := s.SampleSize()
	for i := uint64(0); i < threshold-100; i++ {
		s.Increment(1000 + i)
	}
	require.EqualValues(t, 7, s.Frequency(1))
}

func TestClearZeroesEverything(t *testing.T) {
	s := New(16)
	s.Increment(5)
	s.Clear()
	require.EqualValues(t, 0, s.Frequency(5))
}

func TestFrequencyMirrorsIncrementIndexing(t *testing.T) {
	s := New(2000)
	for hash := uint64(0); hash < 1000; hash++ {
		s.Increment(hash)
		require.GreaterOrEqual(t, s.Frequency(hash), byte(1))
	}
}

func TestMonotoneUntilDecayOrReset(t *testing.T) {
	s := New(64)
	var prev byte
	for i := 0; i < 10; i++ {
		s.Increment(99)
		cur := s.Frequency(99)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
