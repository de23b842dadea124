package orderedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueKeepsOrder(t *testing.T) {
	m := New[int, string]()

	assert.True(t, m.EnqueueIfNotExist(3, "c"))
	assert.True(t, m.EnqueueIfNotExist(1, "a"))
	assert.True(t, m.EnqueueIfNotExist(2, "b"))
	assert.False(t, m.EnqueueIfNotExist(1, "x"))

	assert.Equal(t, []string{"c", "a", "b"}, m.AsSlice())

	k, v, ok := m.First()
	require.True(t, ok)
	assert.Equal(t, 3, k)
	assert.Equal(t, "c", v)
}

func TestSetKeepsPosition(t *testing.T) {
	m := New[int, string]()
	m.Set(1, "a")
	m.Set(2, "b")
	m.Set(1, "A")

	assert.Equal(t, []string{"A", "b"}, m.AsSlice())
}

func TestDequeue(t *testing.T) {
	m := New[int, string]()
	m.EnqueueIfNotExist(1, "a")
	m.EnqueueIfNotExist(2, "b")

	v, ok := m.Dequeue(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = m.Dequeue(1)
	assert.False(t, ok)

	_, ok = m.Get(1)
	assert.False(t, ok)

	assert.Equal(t, 1, m.Len())

	k, _, ok := m.First()
	require.True(t, ok)
	assert.Equal(t, 2, k)
}

func TestForeachAbort(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 5; i++ {
		m.EnqueueIfNotExist(i, i*10)
	}

	var seen []int
	m.Foreach(func(k, _ int) bool {
		seen = append(seen, k)
		return k < 2
	})

	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestEmptyMap(t *testing.T) {
	m := New[string, int]()

	_, _, ok := m.First()
	assert.False(t, ok)
	assert.Empty(t, m.AsSlice())
}
