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
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoaderGroupCoalescesConcurrentCallersForSameKey(t *testing.T) {
	g := newLoaderGroup()
	var invocations int32
	block := make(chan struct{})

	fn := func(ctx context.Context, key K) (V, error) {
		atomic.AddInt32(&invocations, 1)
		<-block
		return "value", nil
	}

	const n = 32
	var wg sync.WaitGroup
	results := make([]V, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err, _ := g.do(context.Background(), "k", 1, fn)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Hold the first call in flight until the other callers have joined it.
	for atomic.LoadInt32(&invocations) == 0 {
		runtime.Gosched()
	}
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&invocations))
	for _, v := range results {
		require.Equal(t, "value", v)
	}
}

func TestLoaderGroupPropagatesError(t *testing.T) {
	g := newLoaderGroup()
	wantErr := errors.New("boom")
	_, err, _ := g.do(context.Background(), "k", 1, func(context.Context, K) (V, error) {
		return nil, wantErr
	})
	require.Equal(t, wantErr, err)
}

func TestLoaderGroupDistinctKeysDoNotCoalesce(t *testing.T) {
	g := newLoaderGroup()
	var invocations int32
	fn := func(ctx context.Context, key K) (V, error) {
		atomic.AddInt32(&invocations, 1)
		return key, nil
	}

	v1, _, _ := g.do(context.Background(), "a", 1, fn)
	v2, _, _ := g.do(context.Background(), "b", 2, fn)
	require.Equal(t, "a", v1)
	require.Equal(t, "b", v2)
	require.Equal(t, int32(2), atomic.LoadInt32(&invocations))
}

func TestFutureWaitReturnsOnCompletion(t *testing.T) {
	f := newFuture()
	go f.complete("v", nil)

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestFutureWaitRespectsContextCancellation(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFutureDoneClosesOnCompletion(t *testing.T) {
	f := newFuture()
	select {
	case <-f.Done():
		t.Fatal("future should not be done yet")
	default:
	}
	f.complete("v", nil)
	<-f.Done()
}
