package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	a := New[string]()

	h := a.Insert("publisher")
	require.False(t, h.IsZero())

	v, ok := a.Get(h)
	require.True(t, ok)
	assert.Equal(t, "publisher", v)
	assert.Equal(t, 1, a.Len())

	removed, ok := a.Remove(h)
	require.True(t, ok)
	assert.Equal(t, "publisher", removed)
	assert.Equal(t, 0, a.Len())

	_, ok = a.Get(h)
	assert.False(t, ok, "removed handle must not resolve")
}

func TestStaleHandleDoesNotAliasReusedSlot(t *testing.T) {
	a := New[int]()

	old := a.Insert(1)
	_, ok := a.Remove(old)
	require.True(t, ok)

	fresh := a.Insert(2)
	assert.Equal(t, old.Index, fresh.Index, "slot should be reused")
	assert.NotEqual(t, old.Generation, fresh.Generation)

	_, ok = a.Get(old)
	assert.False(t, ok)

	_, ok = a.Remove(old)
	assert.False(t, ok, "stale handle must not free the new occupant")

	v, ok := a.Get(fresh)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestZeroHandleNeverResolves(t *testing.T) {
	a := New[int]()
	a.Insert(7)

	_, ok := a.Get(Handle{})
	assert.False(t, ok)
}

func TestEachVisitsLiveValues(t *testing.T) {
	a := New[string]()
	h1 := a.Insert("a")
	a.Insert("b")
	a.Remove(h1)
	a.Insert("c")

	seen := map[string]bool{}
	a.Each(func(_ Handle, v string) { seen[v] = true })

	assert.Equal(t, map[string]bool{"b": true, "c": true}, seen)
}

func TestConcurrentInsertRemove(t *testing.T) {
	a := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h := a.Insert(n)
				v, ok := a.Get(h)
				assert.True(t, ok)
				assert.Equal(t, n, v)
				a.Remove(h)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, a.Len())
}
