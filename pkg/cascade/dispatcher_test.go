package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatcher_Invalid(t *testing.T) {
	reaper := NewReaper(newTestCache(t), nil)
	for _, testCase := range []struct {
		name      string
		reaper    *Reaper
		workers   int
		queueSize int
	}{
		{name: "nil reaper", workers: 1},
		{name: "no workers", reaper: reaper, workers: 0},
		{name: "negative queue", reaper: reaper, workers: 1, queueSize: -1},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			dispatcher, err := NewDispatcher(testCase.reaper, testCase.workers, testCase.queueSize)
			assert.ErrorIs(t, err, errInvalidDispatcher)
			assert.Nil(t, dispatcher)
		})
	}
}

func TestDispatcher_WorkerIndex(t *testing.T) {
	dispatcher, err := NewDispatcher(NewReaper(newTestCache(t), nil), 8, 0)
	require.NoError(t, err)

	used := make(map[int]bool)
	for primary := range uint64(1_000) {
		index := dispatcher.workerIndex(primary)
		assert.GreaterOrEqual(t, index, 0)
		assert.Less(t, index, 8)
		assert.Equal(t, index, dispatcher.workerIndex(primary), "A primary must always map to the same worker")
		used[index] = true
	}
	assert.Len(t, used, 8, "Keys should spread over every worker")
}

func TestDispatcher_ReapsFeed(t *testing.T) {
	associations := newTestCache(t)
	const primaries = 200
	for primary := range uint64(primaries) {
		require.NoError(t, associations.RecordMany(primary, []uint64{primary * 10, primary*10 + 1}))
	}
	channel := new(fakeChannel)
	dispatcher, err := NewDispatcher(NewReaper(associations, nil), 4, 16)
	require.NoError(t, err)

	feed := make(chan Deletion)
	runErr := make(chan error, 1)
	go func() { runErr <- dispatcher.Run(context.Background(), feed) }()
	for primary := range uint64(primaries) {
		feed <- Deletion{Primary: primary, Channel: channel}
		// Duplicate notifications must not delete anything twice.
		feed <- Deletion{Primary: primary, Channel: channel}
	}
	close(feed)

	require.NoError(t, <-runErr)
	assert.Zero(t, associations.Count(), "Every notified primary should be reaped")
	assert.Len(t, channel.deletedItems(), 2*primaries, "Each secondary should be deleted exactly once")
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	dispatcher, err := NewDispatcher(NewReaper(newTestCache(t), nil), 2, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- dispatcher.Run(ctx, make(chan Deletion)) }()
	cancel()

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Dispatcher didn't stop after its context was cancelled")
	}
}

func TestDispatcher_SurvivesPanickingChannel(t *testing.T) {
	associations := newTestCache(t)
	require.NoError(t, associations.RecordMany(7, []uint64{1, 2, 3}))
	require.NoError(t, associations.RecordMany(8, []uint64{4}))
	dispatcher, err := NewDispatcher(NewReaper(associations, nil), 1, 1)
	require.NoError(t, err)
	var attempted []uint64
	channel := panickyChannel(2, &attempted)

	feed := make(chan Deletion, 2)
	feed <- Deletion{Primary: 7, Channel: channel}
	feed <- Deletion{Primary: 8, Channel: channel}
	close(feed)
	require.NoError(t, dispatcher.Run(context.Background(), feed))

	assert.ElementsMatch(t, []uint64{1, 3, 4}, attempted, "The worker should keep reaping after a panic")
	assert.Zero(t, associations.Count())
}
