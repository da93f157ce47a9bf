// This module fans deletion notifications out to a fixed set of workers. Each primary ID always lands on the same
// worker, so duplicate notifications for one primary run one after the other (and the second one finds nothing to
// reap), while cascades for different primaries run in parallel and a stalled deletion only holds up its own worker.

package cascade

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var errInvalidDispatcher = errors.New("invalid dispatcher configuration")

// Dispatcher runs cascades for a deletion feed on a pool of workers.
type Dispatcher struct {
	reaper    *Reaper
	workers   int
	queueSize int
}

// NewDispatcher builds a Dispatcher running `workers` goroutines, each buffering up to `queueSize` notifications.
func NewDispatcher(reaper *Reaper, workers, queueSize int) (*Dispatcher, error) {
	if reaper == nil {
		return nil, fmt.Errorf("%w: expected a non-nil reaper", errInvalidDispatcher)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count %d must be positive", errInvalidDispatcher, workers)
	}
	if queueSize < 0 {
		return nil, fmt.Errorf("%w: queue size %d must not be negative", errInvalidDispatcher, queueSize)
	}
	return &Dispatcher{reaper: reaper, workers: workers, queueSize: queueSize}, nil
}

// workerIndex maps a primary ID to its worker.
func (d *Dispatcher) workerIndex(primary uint64) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], primary)
	return int(xxhash.Sum64(b[:]) % uint64(d.workers))
}

// Run consumes `feed` until it's closed or `ctx` is done, then waits for the workers to finish what they already
// accepted. Notifications still queued when `ctx` is done are reaped with the cancelled context, so their deletions
// likely fail but their entries still leave the cache.
func (d *Dispatcher) Run(ctx context.Context, feed <-chan Deletion) error {
	queues := make([]chan Deletion, d.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan Deletion, d.queueSize)
		wg.Add(1)
		go func(queue <-chan Deletion) {
			defer wg.Done()
			for deletion := range queue {
				d.reaper.Reap(ctx, deletion)
			}
		}(queues[i])
	}
	defer func() {
		for _, queue := range queues {
			close(queue)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case deletion, ok := <-feed:
			if !ok {
				return nil // Feed closed.
			}
			select {
			case queues[d.workerIndex(deletion.Primary)] <- deletion:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
