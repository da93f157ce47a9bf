// Cached IDs are snowflakes: the leading 42 bits hold the creation time in milliseconds since Epoch and the
// trailing 22 bits hold worker, process and sequence data we don't care about. Every age-related decision in
// cmdcache is derived from the ID alone, so nothing needs to store a creation time next to a key.

package snowflake

import "time"

const (
	// Epoch is 2015-01-01T00:00:00Z as milliseconds since the Unix epoch.
	Epoch int64 = 1420070400000
	// TimestampShift is the number of low bits that don't belong to the timestamp.
	TimestampShift = 22
	// maxSequence masks the low bits below the timestamp.
	maxSequence uint64 = 1<<TimestampShift - 1
)

// TimestampMillis returns the Unix millisecond timestamp embedded in the given `id`.
func TimestampMillis(id uint64) int64 {
	return int64(id>>TimestampShift) + Epoch
}

// Timestamp returns the creation time embedded in the given `id`.
func Timestamp(id uint64) time.Time {
	return time.UnixMilli(TimestampMillis(id))
}

// Age returns how long ago the given `id` was created relative to `now`. IDs from the future have a negative age.
func Age(id uint64, now time.Time) time.Duration {
	return now.Sub(Timestamp(id))
}

// FromTime builds the smallest ID created at `t`. Times before Epoch clamp to the zero ID.
func FromTime(t time.Time) uint64 {
	return FromTimeWithSequence(t, 0)
}

// FromTimeWithSequence builds an ID created at `t` whose low bits are `sequence`; bits above the 22 low bits of
// `sequence` are dropped.
func FromTimeWithSequence(t time.Time, sequence uint64) uint64 {
	sinceEpoch := t.UnixMilli() - Epoch
	if sinceEpoch < 0 {
		sinceEpoch = 0
	}
	return uint64(sinceEpoch)<<TimestampShift | sequence&maxSequence
}
