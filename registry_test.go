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

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := &registry{byName: make(map[string]*Cache)}
	c := &Cache{}
	r.Register("main", c)

	got, ok := r.Lookup("main")
	require.True(t, ok)
	require.Same(t, c, got)
}

func TestRegistryRegisterEmptyNameIsANoOp(t *testing.T) {
	r := &registry{byName: make(map[string]*Cache)}
	r.Register("", &Cache{})
	require.Empty(t, r.Names())
}

func TestRegistryUnregister(t *testing.T) {
	r := &registry{byName: make(map[string]*Cache)}
	r.Register("main", &Cache{})
	r.Unregister("main")

	_, ok := r.Lookup("main")
	require.False(t, ok)
}

func TestRegistryNames(t *testing.T) {
	r := &registry{byName: make(map[string]*Cache)}
	r.Register("a", &Cache{})
	r.Register("b", &Cache{})
	require.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
