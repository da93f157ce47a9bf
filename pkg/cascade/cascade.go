// When a command message is deleted upstream, every response recorded for it in the command cache should go too.
// This module implements that cascade: look the command up, delete each response through the channel it lives in,
// then forget the command. A response that can't be found or deleted is logged and skipped; it never stops the
// cascade or keeps the command in the cache.

package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nobletooth/cmdcache/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrItemNotFound is returned by a Channel when the item to delete can't be resolved.
var ErrItemNotFound = errors.New("item was not found")

var errChannelPanicked = errors.New("channel panicked")

var (
	cascadesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascades_total",
		Help: "Total number of deletion notifications handled.",
	}, []string{"status" /* hit | miss */})
	itemDeletionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_item_deletions_total",
		Help: "Total number of secondary item deletions attempted by cascades.",
	}, []string{"status" /* deleted | not_found | failed */})
)

// Channel owns the secondary items and can delete them, e.g. a chat channel holding response messages.
type Channel interface {
	// DeleteItem resolves the item with the given `id` and deletes it.
	// Returns an error wrapping ErrItemNotFound if the item doesn't exist.
	DeleteItem(ctx context.Context, id uint64) error
}

// Deletion notifies that the upstream item `Primary` was deleted from `Channel`.
type Deletion struct {
	Primary uint64
	Channel Channel
}

// Associations is the part of the command cache a cascade needs.
type Associations interface {
	Lookup(primary uint64) ([]uint64, bool)
	Remove(primary uint64) bool
}

// Result summarises one cascade.
type Result struct {
	Found    bool // False if the primary wasn't cached; nothing else happened then.
	Deleted  int
	NotFound int
	Failed   int
}

// Reaper runs deletion cascades against a command cache.
type Reaper struct {
	associations Associations
	logger       *slog.Logger
}

// NewReaper builds a Reaper over the given `associations`. A nil `logger` discards logs.
func NewReaper(associations Associations, logger *slog.Logger) *Reaper {
	return &Reaper{associations: associations, logger: utils.NewModuleLogger(logger, "cascade")}
}

// Reap deletes every secondary item recorded for `deletion.Primary` and then removes the primary from the cache.
// Deletions are attempted once each, in no particular order; the cache lock is never held while deleting.
func (r *Reaper) Reap(ctx context.Context, deletion Deletion) Result {
	secondaries, found := r.associations.Lookup(deletion.Primary)
	if !found { // Never cached, already reaped, or expired.
		cascadesMetric.WithLabelValues("miss").Inc()
		return Result{}
	}
	cascadesMetric.WithLabelValues("hit").Inc()

	result := Result{Found: true}
	logger := r.logger.With("cascadeId", uuid.NewString(), "primary", deletion.Primary)
	if deletion.Channel == nil {
		logger.Warn("Deletion arrived without a channel; skipping secondary items.", "secondaries", len(secondaries))
	} else {
		for _, secondary := range secondaries {
			err := deleteItem(ctx, deletion.Channel, secondary)
			switch {
			case err == nil:
				result.Deleted++
				itemDeletionsMetric.WithLabelValues("deleted").Inc()
			case errors.Is(err, ErrItemNotFound):
				result.NotFound++
				itemDeletionsMetric.WithLabelValues("not_found").Inc()
				logger.Warn("Primary deleted but secondary does not exist.", "secondary", secondary)
			default:
				result.Failed++
				itemDeletionsMetric.WithLabelValues("failed").Inc()
				logger.Error("Failed to delete secondary item.", "secondary", secondary, "error", err)
			}
		}
	}

	r.associations.Remove(deletion.Primary)
	logger.Debug("Cascade finished.",
		"deleted", result.Deleted, "notFound", result.NotFound, "failed", result.Failed)
	return result
}

// deleteItem asks `channel` to delete `id`. A panicking channel is reported as a failed deletion.
func deleteItem(ctx context.Context, channel Channel, id uint64) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", errChannelPanicked, recovered)
		}
	}()
	return channel.DeleteItem(ctx, id)
}
