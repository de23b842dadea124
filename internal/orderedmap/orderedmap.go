// Package orderedmap provides a map that remembers the insertion order of
// its elements.
package orderedmap

import "container/list"

type entry[K comparable, V any] struct {
	key K
	val V
}

// Map is a map datastructure that allows accessing it's element in a
// fixed order.
// It is not safe for concurrent use.
type Map[K comparable, V any] struct {
	order *list.List
	m     map[K]*list.Element
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		order: list.New(),
		m:     map[K]*list.Element{},
	}
}

// EnqueueIfNotExist adds val to the end of the map if key does not exist.
func (m *Map[K, V]) EnqueueIfNotExist(key K, val V) (added bool) {
	if _, exist := m.m[key]; exist {
		return false
	}

	m.m[key] = m.order.PushBack(&entry[K, V]{key: key, val: val})

	return true
}

// Set replaces the value of an existing key without changing its position.
// If the key does not exist, it is appended.
func (m *Map[K, V]) Set(key K, val V) {
	if e, exist := m.m[key]; exist {
		e.Value.(*entry[K, V]).val = val
		return
	}

	m.m[key] = m.order.PushBack(&entry[K, V]{key: key, val: val})
}

// Get returns the value for the given key.
func (m *Map[K, V]) Get(key K) (val V, exist bool) {
	e, exist := m.m[key]
	if !exist {
		return val, false
	}

	return e.Value.(*entry[K, V]).val, true
}

// Dequeue removes the value with the key from the map and returns it.
func (m *Map[K, V]) Dequeue(key K) (removed V, exist bool) {
	e, exist := m.m[key]
	if !exist {
		return removed, false
	}

	delete(m.m, key)
	m.order.Remove(e)

	return e.Value.(*entry[K, V]).val, true
}

// First returns the first element in the map.
func (m *Map[K, V]) First() (key K, val V, exist bool) {
	e := m.order.Front()
	if e == nil {
		return key, val, false
	}

	en := e.Value.(*entry[K, V])
	return en.key, en.val, true
}

// Len returns the number of elements in the maps.
func (m *Map[K, V]) Len() int {
	return m.order.Len()
}

// Foreach itereates through the map in order.
// When fn returns false the iteration is aborted.
func (m *Map[K, V]) Foreach(fn func(K, V) bool) {
	for e := m.order.Front(); e != nil; e = e.Next() {
		en := e.Value.(*entry[K, V])
		if !fn(en.key, en.val) {
			return
		}
	}
}

// AsSlice returns a new slice containing the values of the map in order.
func (m *Map[K, V]) AsSlice() []V {
	result := make([]V, 0, m.order.Len())

	for e := m.order.Front(); e != nil; e = e.Next() {
		result = append(result, e.Value.(*entry[K, V]).val)
	}

	return result
}
