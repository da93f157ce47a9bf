package cache

import (
	"log/slog"
	"time"
)

const (
	// Unbounded disables the capacity bound of an Expiring cache.
	Unbounded = -1

	defaultPurgeInterval = 30 * time.Minute
	defaultMaxAge        = 2 * time.Hour
)

// config holds the optional settings of an Expiring cache.
type config struct {
	purgeInterval time.Duration
	maxAge        time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func defaultConfig() *config {
	return &config{
		purgeInterval: defaultPurgeInterval,
		maxAge:        defaultMaxAge,
		now:           time.Now,
	}
}

// Option configures an Expiring cache.
type Option func(*config)

// WithPurgeInterval sets how often the background sweep runs. Default is 30 minutes.
func WithPurgeInterval(interval time.Duration) Option {
	return func(c *config) {
		c.purgeInterval = interval
	}
}

// WithMaxAge sets the age, derived from the key's embedded timestamp, at which entries are swept. Default is 2 hours.
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *config) {
		c.maxAge = maxAge
	}
}

// WithLogger sets the logger the cache reports to. Without it, or with a nil logger, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock overrides the wall clock used to compute entry ages.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
