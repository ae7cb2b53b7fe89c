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

func TestFIFOEvictsOldestRegardlessOfAccess(t *testing.T) {
	p := NewFIFO(2)
	p.RecordInsertion(1, 1)
	p.RecordInsertion(2, 1)

	// Access does not protect a key from FIFO eviction.
	p.RecordAccess(1)
	p.RecordAccess(1)

	evicted, _, admitted := p.RecordInsertion(3, 1)
	require.True(t, admitted)
	require.Equal(t, []uint64{1}, evicted)
}

func TestFILOEvictsNewestRegardlessOfAccess(t *testing.T) {
	p := NewFILO(2)
	p.RecordInsertion(1, 1)
	p.RecordInsertion(2, 1)
	p.RecordAccess(2)

	evicted, _, admitted := p.RecordInsertion(3, 1)
	require.True(t, admitted)
	require.Equal(t, []uint64{2}, evicted)
}

func TestInsertionOrderReinsertIsNoop(t *testing.T) {
	p := NewFIFO(2)
	p.RecordInsertion(1, 1)
	evicted, _, admitted := p.RecordInsertion(1, 1)
	require.True(t, admitted)
	require.Empty(t, evicted)
	require.Equal(t, 1, p.Len())
}
