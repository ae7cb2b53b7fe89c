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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	farm "github.com/dgryski/go-farm"
)

// K and V are opaque key/value types, kept as interface{} (rather than a
// generic type parameter) so a single Cache value can be shared across
// call sites the way the teacher's original, pre-generics cache.go is
// shaped -- every lookup is addressed by a pre-computed hash, never by a
// comparison on K itself.
type K = interface{}
type V = interface{}

// KeyHasher produces the two independent 64-bit hashes nyxcache addresses
// every record by: a primary hash used to place the record in the entry
// index/policy/sketch, and a secondary "conflict" hash used to detect two
// distinct keys landing on the same primary hash.
type KeyHasher func(key K) (keyHash uint64, conflict uint64)

// defaultKeyHash hashes a key's natural byte representation with xxhash
// for placement and go-farm's fingerprint for conflict detection -- two
// unrelated hash families, so a collision in one is vanishingly unlikely
// to also collide in the other.
func defaultKeyHash(key K) (uint64, uint64) {
	b := keyBytes(key)
	return xxhash.Sum64(b), farm.Fingerprint64(b)
}

// keyBytes converts common key types to bytes without going through
// fmt.Sprintf in the hot path; anything else falls back to its string
// representation, which is still stable and deterministic.
func keyBytes(key K) []byte {
	switch k := key.(type) {
	case string:
		return []byte(k)
	case []byte:
		return k
	case int:
		return uint64Bytes(uint64(k))
	case int32:
		return uint64Bytes(uint64(k))
	case int64:
		return uint64Bytes(uint64(k))
	case uint:
		return uint64Bytes(uint64(k))
	case uint32:
		return uint64Bytes(uint64(k))
	case uint64:
		return uint64Bytes(k)
	case float64:
		return uint64Bytes(math.Float64bits(k))
	default:
		return []byte(fmt.Sprintf("%v", k))
	}
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
