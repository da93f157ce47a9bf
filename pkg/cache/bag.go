package cache

import (
	"slices"
	"sync/atomic"
)

// bagNode represents a node in the bag's singly linked list. Nodes are immutable once published.
type bagNode struct {
	next  *bagNode
	value uint64
}

// bag is an append-only, unordered multiset of secondary IDs. Appends are lock-free: a new node is linked in front
// of the current head and published with a compare-and-swap, so concurrent appends never lose a value.
type bag struct {
	head atomic.Pointer[bagNode]
	size atomic.Int64
}

// newBag returns a bag holding the given values.
func newBag(values []uint64) *bag {
	b := new(bag)
	b.pushMany(values)
	return b
}

// push adds a value to the bag.
func (b *bag) push(value uint64) {
	n := &bagNode{value: value}
	for {
		head := b.head.Load()
		n.next = head
		if b.head.CompareAndSwap(head, n) {
			b.size.Add(1)
			return
		}
	}
}

// pushMany adds all the given values to the bag.
func (b *bag) pushMany(values []uint64) {
	for _, value := range values {
		b.push(value)
	}
}

// Len returns the number of values pushed so far. It may lag behind a concurrent push.
func (b *bag) Len() int {
	return int(b.size.Load())
}

// snapshot copies the bag's values in insertion order. A concurrent push is either fully visible or not at all.
func (b *bag) snapshot() []uint64 {
	values := make([]uint64, 0, b.Len())
	for n := b.head.Load(); n != nil; n = n.next {
		values = append(values, n.value)
	}
	// The list is newest-first.
	slices.Reverse(values)
	return values
}
