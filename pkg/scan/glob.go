// Operators list cached primary IDs with glob patterns over their decimal form (e.g. `KEYS 1234*`); the following
// module implements glob matching over key streams.

package scan

import (
	"iter"
	"strconv"

	"v.io/v23/glob"
)

// MatchGlob yields the `keys` whose decimal representation matches the given `pattern`. An invalid pattern matches
// nothing.
func MatchGlob(pattern []byte, keys iter.Seq[uint64]) iter.Seq[uint64] {
	parsedPattern, err := glob.Parse(string(pattern))
	if err != nil { // If pattern is invalid, return empty sequence.
		return func(yield func(uint64) bool) {}
	}
	return func(yield func(uint64) bool) {
		for key := range keys {
			if parsedPattern.Head().Match(strconv.FormatUint(key, 10)) {
				if !yield(key) {
					return
				}
			}
		}
	}
}
