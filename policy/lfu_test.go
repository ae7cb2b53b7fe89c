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

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	p := NewLFU(3)
	p.RecordInsertion(1, 1)
	p.RecordInsertion(2, 1)
	p.RecordInsertion(3, 1)

	p.RecordAccess(1)
	p.RecordAccess(1)
	p.RecordAccess(3)

	// key 2 is still at freq 1; 1 and 3 are both above it.
	evicted, _, admitted := p.RecordInsertion(4, 1)
	require.True(t, admitted)
	require.Equal(t, []uint64{2}, evicted)
}

func TestLFUBucketsCollapseWhenEmptied(t *testing.T) {
	p := NewLFU(2)
	p.RecordInsertion(1, 1)
	p.RecordAccess(1)
	require.Equal(t, 1, p.buckets.Len())

	p.RecordRemoval(1)
	require.Equal(t, 0, p.buckets.Len())
	require.Equal(t, 0, len(p.bucketOf))
}

func TestLFUTiesWithinBucketEvictOldestOfBucket(t *testing.T) {
	p := NewLFU(3)
	p.RecordInsertion(1, 1)
	p.RecordInsertion(2, 1)
	p.RecordInsertion(3, 1)

	// All three sit at freq 1; the bucket's tail is the oldest inserted.
	victim, ok := p.SelectVictim()
	require.True(t, ok)
	require.Equal(t, uint64(1), victim)
}

func TestLFURecordAccessOnUnknownKeyIsNoop(t *testing.T) {
	p := NewLFU(2)
	p.RecordAccess(99)
	require.Equal(t, 0, p.Len())
}
