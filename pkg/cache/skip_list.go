// This file implements the ordered key index of the association cache as a skip list. A skip list maintains
// multiple forward-pointer layers over a sorted linked list. Each key may be promoted to higher levels with
// probability p, forming express lanes that let searches skip over large ranges.
//
// Properties
// - Expected time complexity for Get/Set/Delete: O(log n)
// - Ascending iteration walks level 0 only, so finding the n oldest keys costs O(n)
// - Not thread-safe; the owning cache guards it with its own lock

package cache

import (
	"errors"
	"iter"
	"math/rand"
	"time"

	"github.com/nobletooth/cmdcache/pkg/utils"
)

var errKeyNotIndexed = errors.New("key is not indexed")

// skipListNode represents a node in the skip list.
type skipListNode[K any, V any] struct {
	key      K
	value    V
	forwards []*skipListNode[K, V] // Forward pointers per level (0..level-1).
}

// skipList is a probabilistically balanced ordered map over keys ordered by `compare`.
type skipList[K any, V any] struct {
	head            *skipListNode[K, V]
	level, maxLevel int
	p               float64 // Probability that a node is promoted to the next level.
	size            int
	compare         utils.CompareFn[K]
	rnd             *rand.Rand
}

// newSkipList creates a new empty skip list.
// Defaults: maxLevel=16, p=0.25.
func newSkipList[K any, V any](compare utils.CompareFn[K]) *skipList[K, V] {
	const defaultMaxLevel = 16
	const defaultP = 0.25
	return &skipList[K, V]{
		head:     &skipListNode[K, V]{forwards: make([]*skipListNode[K, V], defaultMaxLevel)},
		level:    1,
		maxLevel: defaultMaxLevel,
		p:        defaultP,
		compare:  compare,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// randomLevel generates a random level based on the skip list's probability p.
func (s *skipList[K, V]) randomLevel() int {
	lvl := 1
	for lvl < s.maxLevel && s.rnd.Float64() < s.p {
		lvl++
	}
	return lvl
}

// Len returns the number of indexed keys.
func (s *skipList[K, V]) Len() int {
	return s.size
}

// Set inserts a new key/value or updates an existing one. It returns true if the key already existed.
func (s *skipList[K, V]) Set(key K, value V) ( /*existed*/ bool, error) {
	// Track the last nodes before the position at each level.
	update := make([]*skipListNode[K, V], s.maxLevel)
	node := s.head
	for lvl := s.level - 1; lvl >= 0; lvl-- {
		for next := node.forwards[lvl]; next != nil && s.compare(next.key, key) < 0; next = node.forwards[lvl] {
			node = next
		}
		update[lvl] = node
	}
	if next := node.forwards[0]; next != nil && s.compare(next.key, key) == 0 {
		next.value = value
		return true, nil
	}
	// Insert a new node with a random level.
	lvl := s.randomLevel()
	if lvl > s.level {
		for i := s.level; i < lvl; i++ {
			update[i] = s.head
		}
		s.level = lvl
	}
	newNode := &skipListNode[K, V]{key: key, value: value, forwards: make([]*skipListNode[K, V], lvl)}
	for i := 0; i < lvl; i++ {
		newNode.forwards[i] = update[i].forwards[i]
		update[i].forwards[i] = newNode
	}
	s.size++
	return false, nil
}

// Delete removes key from the list or returns errKeyNotIndexed.
func (s *skipList[K, V]) Delete(key K) error {
	update := make([]*skipListNode[K, V], s.maxLevel)
	n := s.head
	for lvl := s.level - 1; lvl >= 0; lvl-- {
		for next := n.forwards[lvl]; next != nil && s.compare(next.key, key) < 0; next = n.forwards[lvl] {
			n = next
		}
		update[lvl] = n
	}
	target := n.forwards[0]
	if target == nil || s.compare(target.key, key) != 0 {
		return errKeyNotIndexed
	}
	for i := 0; i < s.level; i++ {
		if update[i].forwards[i] == target {
			update[i].forwards[i] = target.forwards[i]
		}
	}
	// Decrease level if the top levels are now empty.
	for s.level > 1 && s.head.forwards[s.level-1] == nil {
		s.level--
	}
	s.size--
	return nil
}

// Reset drops every node.
func (s *skipList[K, V]) Reset() {
	clear(s.head.forwards)
	s.level = 1
	s.size = 0
}

// Iterate yields key/value pairs in ascending key order. The list must not be mutated while iterating.
func (s *skipList[K, V]) Iterate() iter.Seq[utils.Pair[K, V]] {
	return func(yield func(utils.Pair[K, V]) bool) {
		for n := s.head.forwards[0]; n != nil; n = n.forwards[0] {
			if !yield(utils.Pair[K, V]{Key: n.key, Value: n.value}) {
				return
			}
		}
	}
}
