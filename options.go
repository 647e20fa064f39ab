package nar

import "log/slog"

// DefaultMaxEntries is the default limit on the number of entries an index
// may hold.
const DefaultMaxEntries = 1_000_000

// Option configures an Accessor.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	maxEntries int
}

func newConfig(opts []Option) config {
	cfg := config{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// builderLimit converts the configured limit to tree.Builder semantics.
func (c config) builderLimit() int {
	if c.maxEntries < 0 {
		return 0
	}
	return c.maxEntries
}

// WithLogger sets the logger used during construction and for listing
// warnings. If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxEntries limits the number of entries (files, directories and
// symlinks) an index may hold. Construction fails with ErrTooManyEntries when
// the limit is exceeded. Negative values disable the limit; zero restores
// DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n == 0 {
			n = DefaultMaxEntries
		}
		c.maxEntries = n
	}
}
