// Nothing to see here in this module. Couldn't find a better place for Pair.

package utils

// Pair holds a key and its value, e.g. a cache entry copied out of its map.
type Pair[K any, V any] struct {
	Key   K
	Value V
}
