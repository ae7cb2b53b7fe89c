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

package store

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func testClock() func() int64 {
	var n int64
	return func() int64 { return atomic.AddInt64(&n, 1) }
}

func TestSetAndGet(t *testing.T) {
	s := New(4, testClock())
	_, existed, conflicted := s.Set(1, 0, "k", "hello", 5)
	require.False(t, existed)
	require.False(t, conflicted)

	v, w, ok := s.Get(1, 0)
	require.True(t, ok)
	require.Equal(t, "hello", v)
	require.Equal(t, uint64(5), w)
}

func TestGetMissOnUnknownKey(t *testing.T) {
	s := New(4, testClock())
	_, _, ok := s.Get(42, 0)
	require.False(t, ok)
}

func TestConflictHashMismatchIsAMiss(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 10, "k", "a", 1)

	_, _, ok := s.Get(1, 99)
	require.False(t, ok)
}

func TestSetReportsConflictAgainstDifferentOwner(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 10, "k1", "a", 1)

	_, existed, conflicted := s.Set(1, 20, "k2", "b", 1)
	require.False(t, existed)
	require.True(t, conflicted)

	// The original record must be untouched.
	v, _, ok := s.Get(1, 10)
	require.True(t, ok)
	require.Equal(t, "a", v)
}

func TestSetOverwriteReturnsPreviousValue(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 0, "k", "a", 1)
	prev, existed, conflicted := s.Set(1, 0, "k", "b", 2)
	require.True(t, existed)
	require.False(t, conflicted)
	require.Equal(t, "a", prev)

	v, w, _ := s.Get(1, 0)
	require.Equal(t, "b", v)
	require.Equal(t, uint64(2), w)
}

func TestUpdateNeverCreates(t *testing.T) {
	s := New(4, testClock())
	_, ok := s.Update(1, 0, "k", "x", 1)
	require.False(t, ok)
	require.Equal(t, 0, s.Len())
}

func TestUpdateOverwritesExistingValue(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 0, "k", "a", 1)
	prev, ok := s.Update(1, 0, "k", "b", 2)
	require.True(t, ok)
	require.Equal(t, "a", prev)

	v, w, _ := s.Get(1, 0)
	require.Equal(t, "b", v)
	require.Equal(t, uint64(2), w)
}

func TestDelRemovesAndReturnsValue(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 0, "k", "a", 1)
	v, _, ok := s.Del(1, 0)
	require.True(t, ok)
	require.Equal(t, "a", v)

	_, _, ok = s.Get(1, 0)
	require.False(t, ok)
	require.Equal(t, 0, s.Len())
}

func TestDelAnyIgnoresConflictHash(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 77, "k", "a", 3)

	key, value, weight, ok := s.DelAny(1)
	require.True(t, ok)
	require.Equal(t, "k", key)
	require.Equal(t, "a", value)
	require.Equal(t, uint64(3), weight)
	require.Equal(t, 0, s.Len())
}

func TestDelAnyMissOnUnknownKey(t *testing.T) {
	s := New(4, testClock())
	_, _, _, ok := s.DelAny(42)
	require.False(t, ok)
}

func TestMarkExpiringIsSingleUse(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 0, "k", "a", 1)

	require.True(t, s.MarkExpiring(1, 0))
	require.False(t, s.MarkExpiring(1, 0), "a record should only transition to Expiring once")
}

func TestTouchUpdatesLastAccessWithoutReadingValue(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 0, "k", "a", 1)
	before, _ := s.LastAccessAt(1, 0)

	require.True(t, s.Touch(1, 0))
	after, _ := s.LastAccessAt(1, 0)
	require.Greater(t, after, before)
}

func TestClearInvokesCallbackForEveryRecord(t *testing.T) {
	s := New(4, testClock())
	s.Set(1, 0, "k1", "a", 1)
	s.Set(2, 0, "k2", "b", 2)

	seen := make(map[uint64]interface{})
	var mu sync.Mutex
	s.Clear(func(keyHash, _ uint64, _, value interface{}, _ uint64) {
		mu.Lock()
		seen[keyHash] = value
		mu.Unlock()
	})

	require.Equal(t, map[uint64]interface{}{1: "a", 2: "b"}, seen)
	require.Equal(t, 0, s.Len())
}

func TestRangeVisitsEveryLiveRecord(t *testing.T) {
	s := New(4, testClock())
	for i := uint64(0); i < 20; i++ {
		s.Set(i, 0, i, i*10, 1)
	}

	count := 0
	s.Range(func(uint64, uint64, interface{}, interface{}, uint64) bool {
		count++
		return true
	})
	require.Equal(t, 20, count)
}

func TestRangeStopsEarlyOnFalse(t *testing.T) {
	s := New(4, testClock())
	for i := uint64(0); i < 20; i++ {
		s.Set(i, 0, i, i, 1)
	}

	count := 0
	s.Range(func(uint64, uint64, interface{}, interface{}, uint64) bool {
		count++
		return count < 5
	})
	require.Equal(t, 5, count)
}

func TestConcurrentSetGetDoesNotRace(t *testing.T) {
	s := New(16, testClock())
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := uint64(g*1000 + i)
				s.Set(key, 0, key, i, 1)
				s.Get(key, 0)
			}
		}(g)
	}
	wg.Wait()
}
