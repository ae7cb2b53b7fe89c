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

func TestIdleTimeHasNoVictimWhileFresh(t *testing.T) {
	now := int64(1000)
	clock := func() int64 { return now }
	p := NewIdleTime(100, clock)

	p.RecordInsertion(1, 1)
	_, ok := p.SelectVictim()
	require.False(t, ok)
}

func TestIdleTimeOffersVictimPastThreshold(t *testing.T) {
	now := int64(1000)
	clock := func() int64 { return now }
	p := NewIdleTime(100, clock)

	p.RecordInsertion(1, 1)
	now += 50
	p.RecordAccess(1)
	now += 150

	victim, ok := p.SelectVictim()
	require.True(t, ok)
	require.Equal(t, uint64(1), victim)
}

func TestIdleTimeRemovalStopsTracking(t *testing.T) {
	now := int64(0)
	clock := func() int64 { return now }
	p := NewIdleTime(10, clock)
	p.RecordInsertion(1, 1)
	p.RecordRemoval(1)

	now += 1000
	_, ok := p.SelectVictim()
	require.False(t, ok)
}
