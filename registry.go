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

import "sync"

// registry is the process-global, optional stats-aggregation point named
// in spec section 5 ("a registry keyed by cache name") -- the only
// process-global state the core keeps.
type registry struct {
	mu    sync.RWMutex
	byName map[string]*Cache
}

// Registry is the default global registry instance.
var Registry = &registry{byName: make(map[string]*Cache)}

// Register records c under name, replacing any previous entry with the
// same name.
func (r *registry) Register(name string, c *Cache) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = c
}

// Lookup returns the Cache registered under name, if any.
func (r *registry) Lookup(name string) (*Cache, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Unregister removes name from the registry.
func (r *registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// Names returns every currently registered cache name.
func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
