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

func TestWeightBasedSelectsHeaviestKey(t *testing.T) {
	p := NewWeightBased()
	p.RecordInsertion(1, 10)
	p.RecordInsertion(2, 500)
	p.RecordInsertion(3, 50)

	victim, ok := p.SelectVictim()
	require.True(t, ok)
	require.Equal(t, uint64(2), victim)
}

func TestWeightBasedEmptyHasNoVictim(t *testing.T) {
	p := NewWeightBased()
	_, ok := p.SelectVictim()
	require.False(t, ok)
}

func TestWeightBasedRemovalDropsWeight(t *testing.T) {
	p := NewWeightBased()
	p.RecordInsertion(1, 100)
	p.RecordRemoval(1)
	require.Equal(t, 0, p.Len())
}
