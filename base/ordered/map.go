// Copyright 2025 Google LLC
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
// Package ordered provides ordered data structures.
package ordered

import "iter"

type entry[K comparable, V any] struct {
	key     K
	value   V
	deleted bool
}

// Map is an ordered map. Iterators visit the entries
// in the order in which their keys have been first stored.
type Map[K comparable, V any] struct {
	entries []entry[K, V]
	index   map[K]int
	size    int
}

// NewMap returns a new ordered map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]int)}
}

// Store a key,value pair.
// Storing an existing key keeps its position.
func (m *Map[K, V]) Store(k K, v V) {
	if i, ok := m.index[k]; ok {
		m.entries[i].value = v
		return
	}
	m.index[k] = len(m.entries)
	m.entries = append(m.entries, entry[K, V]{key: k, value: v})
	m.size++
}

// Load returns a value given a key.
func (m *Map[K, V]) Load(k K) (v V, ok bool) {
	i, ok := m.index[k]
	if !ok {
		return
	}
	return m.entries[i].value, true
}

// Delete removes a key from the map.
// It returns true if the key was present.
func (m *Map[K, V]) Delete(k K) bool {
	i, ok := m.index[k]
	if !ok {
		return false
	}
	delete(m.index, k)
	m.entries[i] = entry[K, V]{deleted: true}
	m.size--
	if m.size < len(m.entries)/2 {
		m.compact()
	}
	return true
}

func (m *Map[K, V]) compact() {
	live := make([]entry[K, V], 0, m.size)
	for _, e := range m.entries {
		if e.deleted {
			continue
		}
		m.index[e.key] = len(live)
		live = append(live, e)
	}
	m.entries = live
}

// Iter returns an iterator to range over the elements of the map.
func (m *Map[K, V]) Iter() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, e := range m.entries {
			if e.deleted {
				continue
			}
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Keys returns an iterator to range over the keys of the map.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.Iter() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns an iterator to range over the values of the map.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.Iter() {
			if !yield(v) {
				return
			}
		}
	}
}

// Clone creates a new map with the same keys and values.
// This is a shallow clone.
func (m *Map[K, V]) Clone() *Map[K, V] {
	r := NewMap[K, V]()
	for k, v := range m.Iter() {
		r.Store(k, v)
	}
	return r
}

// Size returns the number of elements in the map.
func (m *Map[K, V]) Size() int {
	return m.size
}
