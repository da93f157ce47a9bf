// cmdcache remembers which messages were produced in response to a command so that they can be reaped once the
// command itself is deleted. This module provides the interface command handlers and the deletion cascade use,
// keeping them independent of the concrete cache implementation.

package cache

import (
	"errors"

	"github.com/nobletooth/cmdcache/pkg/utils"
)

var (
	// ErrInvalidConfiguration is returned when a cache is constructed with out-of-domain parameters.
	ErrInvalidConfiguration = errors.New("invalid cache configuration")
	// ErrNullAssociation is returned when a nil batch of secondary IDs is recorded.
	ErrNullAssociation = errors.New("secondary collection can not be nil")
)

// Associations maps primary snowflake IDs to the secondary IDs recorded under them.
type Associations interface {
	// Record adds `secondary` under `primary`, creating the entry if needed.
	Record(primary, secondary uint64)
	// RecordMany adds all `secondaries` under `primary`. A nil slice is rejected with ErrNullAssociation.
	RecordMany(primary uint64, secondaries []uint64) error
	Contains(primary uint64) bool
	// Lookup returns a copy of the secondary IDs under `primary` and whether the entry exists.
	Lookup(primary uint64) ([]uint64, bool)
	// Remove drops the entry for `primary` and reports whether it existed.
	Remove(primary uint64) bool
	Clear()     // Removes all entries.
	Count() int // Returns the number of primary IDs currently stored.
	// Keys returns a snapshot of the stored primary IDs, oldest first.
	Keys() []uint64
	// Snapshot copies every entry, oldest first. It is not a live view.
	Snapshot() []utils.Pair[uint64, []uint64]
	// Sweep removes entries older than the configured max age and returns how many were removed.
	Sweep() int
}
