package snowflake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampMillis(t *testing.T) {
	for _, testCase := range []struct {
		name     string
		id       uint64
		expected int64
	}{
		{
			name:     "zero id is the epoch",
			id:       0,
			expected: Epoch,
		},
		{
			name:     "low bits are ignored",
			id:       maxSequence,
			expected: Epoch,
		},
		{
			name:     "discord documentation example",
			id:       175928847299117063,
			expected: 1462015105796,
		},
		{
			name:     "shifted milliseconds",
			id:       uint64(1700000000000-Epoch) << TimestampShift,
			expected: 1700000000000,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, TimestampMillis(testCase.id))
			assert.Equal(t, time.UnixMilli(testCase.expected), Timestamp(testCase.id))
		})
	}
}

func TestFromTime(t *testing.T) {
	now := time.UnixMilli(1760000000123)
	id := FromTime(now)
	assert.Equal(t, now.UnixMilli(), TimestampMillis(id))
	assert.Zero(t, id&maxSequence, "FromTime should leave the sequence bits empty")

	t.Run("sequence bits keep the timestamp", func(t *testing.T) {
		withSequence := FromTimeWithSequence(now, 42)
		assert.Equal(t, id+42, withSequence)
		assert.Equal(t, now.UnixMilli(), TimestampMillis(withSequence))
	})
	t.Run("oversized sequence is masked", func(t *testing.T) {
		assert.Equal(t, id, FromTimeWithSequence(now, maxSequence+1))
	})
	t.Run("before epoch clamps to zero", func(t *testing.T) {
		assert.Zero(t, FromTime(time.UnixMilli(Epoch-1)))
	})
}

func TestAge(t *testing.T) {
	now := time.UnixMilli(1760000000000)
	assert.Equal(t, 2*time.Hour, Age(FromTime(now.Add(-2*time.Hour)), now))
	assert.Negative(t, Age(FromTime(now.Add(time.Minute)), now), "IDs from the future have a negative age")
}
