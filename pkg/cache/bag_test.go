package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBag_Push(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		b := newBag(nil)
		assert.Zero(t, b.Len())
		assert.Empty(t, b.snapshot())
	})

	t.Run("insertion order", func(t *testing.T) {
		b := newBag([]uint64{1, 2})
		b.push(3)
		b.pushMany([]uint64{4, 5})
		assert.Equal(t, 5, b.Len())
		assert.Equal(t, []uint64{1, 2, 3, 4, 5}, b.snapshot())
	})

	t.Run("duplicates are kept", func(t *testing.T) {
		b := newBag([]uint64{7, 7})
		b.push(7)
		assert.Equal(t, []uint64{7, 7, 7}, b.snapshot())
	})
}

func TestBag_SnapshotIsACopy(t *testing.T) {
	b := newBag([]uint64{1, 2, 3})
	snapshot := b.snapshot()
	snapshot[0] = 100
	b.push(4)
	assert.Equal(t, []uint64{1, 2, 3}, snapshot[1:])
	assert.Equal(t, []uint64{1, 2, 3, 4}, b.snapshot())
}

func TestBag_ConcurrentPush(t *testing.T) {
	const numGoroutines = 64
	const itemsPerGoroutine = 200

	b := newBag(nil)
	var wg sync.WaitGroup
	for i := range numGoroutines {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := range itemsPerGoroutine {
				b.push(uint64(goroutineID*itemsPerGoroutine + j))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*itemsPerGoroutine, b.Len())
	expected := make([]uint64, 0, numGoroutines*itemsPerGoroutine)
	for i := range numGoroutines * itemsPerGoroutine {
		expected = append(expected, uint64(i))
	}
	assert.ElementsMatch(t, expected, b.snapshot(), "No concurrent push may be lost")
}
