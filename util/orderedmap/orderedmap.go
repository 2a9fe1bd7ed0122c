//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package orderedmap implements a generic map that remembers the order in which keys were first
// stored. Iteration over the map, as well as its gob encoding, follows that order so that results
// built from the map are reproducible from run to run.
package orderedmap

import (
	"bytes"
	"encoding/gob"
	"io"
	"slices"
)

// OrderedMap is a map whose iteration order is the insertion order of its keys. The zero value
// is not usable, construct one with New.
type OrderedMap[K comparable, V any] struct {
	inner map[K]V
	keys  []K
}

// New returns an empty ordered map.
func New[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored for key and whether it was present.
func (m *OrderedMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Value returns the value stored for key, or the zero value if absent.
func (m *OrderedMap[K, V]) Value(key K) V {
	return m.inner[key]
}

// Store sets the value for key. A new key is appended to the iteration order, an existing key
// keeps its position.
func (m *OrderedMap[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = value
}

// LoadOrStore returns the existing value for key if present. Otherwise it stores and returns
// the value produced by create. The boolean reports whether the value was loaded.
func (m *OrderedMap[K, V]) LoadOrStore(key K, create func() V) (V, bool) {
	if v, ok := m.inner[key]; ok {
		return v, true
	}
	v := create()
	m.Store(key, v)
	return v, false
}

// Delete removes key from the map. Deleting an absent key is a no-op.
func (m *OrderedMap[K, V]) Delete(key K) {
	if _, ok := m.inner[key]; !ok {
		return
	}
	delete(m.inner, key)
	i := slices.Index(m.keys, key)
	m.keys = slices.Delete(m.keys, i, i+1)
}

// DeleteFunc removes every entry for which del returns true, preserving the relative order of
// the remaining keys.
func (m *OrderedMap[K, V]) DeleteFunc(del func(key K, value V) bool) {
	m.keys = slices.DeleteFunc(m.keys, func(k K) bool {
		if del(k, m.inner[k]) {
			delete(m.inner, k)
			return true
		}
		return false
	})
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in iteration order.
func (m *OrderedMap[K, V]) Keys() []K {
	return slices.Clone(m.keys)
}

// SortKeys reorders the iteration order with the given comparison function.
func (m *OrderedMap[K, V]) SortKeys(cmp func(a, b K) int) {
	slices.SortStableFunc(m.keys, cmp)
}

// OrderedRange calls f for every entry in iteration order until f returns false. f must not
// store or delete entries.
func (m *OrderedMap[K, V]) OrderedRange(f func(key K, value V) bool) {
	for _, k := range m.keys {
		if !f(k, m.inner[k]) {
			return
		}
	}
}

// GobEncode encodes the entries as an alternating key / value gob stream in iteration order.
func (m *OrderedMap[K, V]) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, k := range m.keys {
		// Pointers keep interface-typed keys and values encoded with their concrete type names.
		v := m.inner[k]
		if err := enc.Encode(&k); err != nil {
			return nil, err
		}
		if err := enc.Encode(&v); err != nil {
			return nil, err
		}
	}

	if buf.Len() == 0 {
		return nil, nil
	}
	return buf.Bytes(), nil
}

// GobDecode decodes a stream produced by GobEncode, appending the entries to the map.
func (m *OrderedMap[K, V]) GobDecode(b []byte) error {
	if m.inner == nil {
		m.inner = make(map[K]V)
	}
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	for {
		var k K
		if err := dec.Decode(&k); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return err
		}
		m.Store(k, v)
	}

	return nil
}
