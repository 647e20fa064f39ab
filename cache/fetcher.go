package cache

import (
	"bytes"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/nar"
)

// Fetcher serves ranges from a Cache and falls back to an underlying
// nar.Fetcher on a miss. It is safe for concurrent use when the underlying
// fetcher is.
type Fetcher struct {
	src      nar.Fetcher
	cache    Cache
	sourceID string
	group    singleflight.Group
	logger   *slog.Logger

	requests *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// Interface compliance.
var _ nar.Fetcher = (*Fetcher)(nil)

// Option configures a Fetcher.
type Option func(*fetcherConfig)

type fetcherConfig struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithLogger sets the logger for cache diagnostics.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *fetcherConfig) {
		c.logger = logger
	}
}

// WithRegisterer registers the fetcher's metrics with reg. By default the
// metrics are collected but not registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *fetcherConfig) {
		c.registerer = reg
	}
}

// NewFetcher returns a Fetcher that caches ranges of src in c. sourceID must
// identify the archive behind src; ranges of different archives must never
// share an ID.
func NewFetcher(src nar.Fetcher, c Cache, sourceID string, opts ...Option) *Fetcher {
	var cfg fetcherConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	factory := promauto.With(cfg.registerer)
	return &Fetcher{
		src:      src,
		cache:    c,
		sourceID: sourceID,
		logger:   cfg.logger,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nar",
			Subsystem: "fetch_cache",
			Name:      "requests_total",
			Help:      "Number of range fetches by cache result",
		}, []string{"result"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nar",
			Subsystem: "fetch_cache",
			Name:      "bytes_total",
			Help:      "Number of bytes served by cache result",
		}, []string{"result"}),
	}
}

// Fetch implements nar.Fetcher.
func (f *Fetcher) Fetch(offset, length uint64) ([]byte, error) {
	key := Key(f.sourceID, offset, length)

	if data, ok := f.cache.Get(key); ok {
		if uint64(len(data)) == length {
			f.observe("hit", length)
			f.logger.Debug("range cache hit",
				slog.Uint64("offset", offset),
				slog.Uint64("length", length))
			return data, nil
		}
		f.logger.Warn("discarding cached range of wrong length",
			slog.String("key", key.String()),
			slog.Int("cached", len(data)),
			slog.Uint64("want", length))
		_ = f.cache.Delete(key) //nolint:errcheck // refetched below either way
	}

	v, err, shared := f.group.Do(key.String(), func() (any, error) {
		data, err := f.src.Fetch(offset, length)
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) == length {
			if err := f.cache.Put(key, data); err != nil {
				f.logger.Warn("failed to cache range",
					slog.String("key", key.String()),
					slog.Any("error", err))
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	f.observe("miss", length)
	f.logger.Debug("range cache miss",
		slog.Uint64("offset", offset),
		slog.Uint64("length", length),
		slog.Bool("shared", shared))

	data := v.([]byte) //nolint:errcheck,forcetypeassert // only []byte is stored
	if shared {
		data = bytes.Clone(data)
	}
	return data, nil
}

func (f *Fetcher) observe(result string, n uint64) {
	f.requests.WithLabelValues(result).Inc()
	f.bytes.WithLabelValues(result).Add(float64(n))
}

// Collectors returns the fetcher's metrics, for registration with a custom
// registry after construction.
func (f *Fetcher) Collectors() []prometheus.Collector {
	return []prometheus.Collector{f.requests, f.bytes}
}
