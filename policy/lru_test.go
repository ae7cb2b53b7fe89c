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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLRUEvictsOldestOnOverflow is scenario A from the testable
// properties: fill to capacity, access one key to refresh it, insert a new
// key, and the key that was neither accessed nor newly-inserted is evicted.
func TestLRUEvictsOldestOnOverflow(t *testing.T) {
	p := NewLRU(3)

	for _, k := range []uint64{1, 2, 3} {
		evicted, _, admitted := p.RecordInsertion(k, 1)
		require.True(t, admitted)
		require.Empty(t, evicted)
	}

	p.RecordAccess(1)

	evicted, _, admitted := p.RecordInsertion(4, 1)
	require.True(t, admitted)
	require.Equal(t, []uint64{2}, evicted)
	require.Equal(t, 3, p.Len())
}

func TestLRUReinsertExistingIsAccess(t *testing.T) {
	p := NewLRU(2)
	p.RecordInsertion(1, 1)
	p.RecordInsertion(2, 1)

	evicted, _, admitted := p.RecordInsertion(1, 1)
	require.True(t, admitted)
	require.Empty(t, evicted)

	evicted, _, admitted = p.RecordInsertion(3, 1)
	require.True(t, admitted)
	require.Equal(t, []uint64{2}, evicted)
}

func TestLRURemovalForgetsKey(t *testing.T) {
	p := NewLRU(2)
	p.RecordInsertion(1, 1)
	p.RecordRemoval(1)
	require.Equal(t, 0, p.Len())

	_, ok := p.SelectVictim()
	require.False(t, ok)
}

// stubSketch lets EnhancedLRU tests assign arbitrary frequencies to keys.
type stubSketch map[uint64]byte

func (s stubSketch) Frequency(keyHash uint64) byte { return s[keyHash] }

func TestEnhancedLRUSamplesLeastFrequentTail(t *testing.T) {
	sk := stubSketch{1: 5, 2: 1, 3: 5, 4: 5}
	p := NewEnhancedLRU(4, sk)
	for _, k := range []uint64{1, 2, 3, 4} {
		p.RecordInsertion(k, 1)
	}

	// Tail-to-head order is 1,2,3,4 (1 was inserted first). Within the
	// sample window, key 2 has the lowest sketch frequency and should be
	// evicted even though it isn't the literal tail.
	evicted, _, admitted := p.RecordInsertion(5, 1)
	require.True(t, admitted)
	require.Equal(t, []uint64{2}, evicted)
}
