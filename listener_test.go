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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenerSetDispatchesToEveryListener(t *testing.T) {
	var calls int
	ls := newListenerSet([]Listener{
		{OnPut: func(K, V) { calls++ }},
		{OnPut: func(K, V) { calls++ }},
	}, nil)

	ls.put("k", "v")
	require.Equal(t, 2, calls)
}

func TestListenerSetSkipsNilCallbacks(t *testing.T) {
	ls := newListenerSet([]Listener{{}}, nil)
	require.NotPanics(t, func() { ls.put("k", "v") })
}

func TestListenerSetRecoversFromPanicAndCountsIt(t *testing.T) {
	m := newMetrics()
	ls := newListenerSet([]Listener{
		{OnPut: func(K, V) { panic("boom") }},
	}, m)

	require.NotPanics(t, func() { ls.put("k", "v") })
	require.Equal(t, uint64(1), m.ListenerErrors())
}

func TestListenerSetOnNilReceiverIsANoOp(t *testing.T) {
	var ls *listenerSet
	require.NotPanics(t, func() { ls.put("k", "v") })
	require.False(t, ls.hasAny())
}

func TestListenerSetHasAny(t *testing.T) {
	require.False(t, newListenerSet(nil, nil).hasAny())
	require.True(t, newListenerSet([]Listener{{}}, nil).hasAny())
}

func TestEvictionReasonString(t *testing.T) {
	require.Equal(t, "SIZE", ReasonSize.String())
	require.Equal(t, "WEIGHT", ReasonWeight.String())
	require.Equal(t, "EXPLICIT", ReasonExplicit.String())
	require.Equal(t, "EXPIRED", ReasonExpired.String())
}
