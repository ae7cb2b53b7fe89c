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

import "github.com/pkg/errors"

// Construction-time configuration errors.
var (
	ErrInvalidMaxSize          = errors.New("nyxcache: maximum size must be positive")
	ErrInvalidMaxWeight        = errors.New("nyxcache: maximum weight must be positive")
	ErrMissingWeigher          = errors.New("nyxcache: weight-based mode requires a Weigher")
	ErrConflictingCapacityMode = errors.New("nyxcache: maximum size and maximum weight are mutually exclusive")
	ErrCacheClosed             = errors.New("nyxcache: cache is closed")
)

// LoadError wraps a failure returned by a caller-supplied loader function
// (ComputeIfAbsent or GetOrLoadAsync), along with the key that triggered it.
type LoadError struct {
	Key K
	Err error
}

func (e *LoadError) Error() string {
	return errors.Wrapf(e.Err, "nyxcache: load failed for key %v", e.Key).Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(key K, err error) *LoadError {
	return &LoadError{Key: key, Err: err}
}
