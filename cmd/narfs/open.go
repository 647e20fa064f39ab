package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/nar"
	"github.com/meigma/nar/cache"
	"github.com/meigma/nar/cache/disk"
	"github.com/meigma/nar/cache/memory"
	narhttp "github.com/meigma/nar/http"
)

// environment is shared by all commands of one invocation.
type environment struct {
	opts   options
	logger *slog.Logger
	stdout io.Writer

	closers []io.Closer
}

func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			e.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	e.closers = nil
}

// source is an opened archive: a way to stream it once for indexing and a
// fetcher for content ranges.
type source struct {
	id      string
	fetcher nar.Fetcher
	stream  func() (io.ReadCloser, error)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (e *environment) openSource(ctx context.Context) (*source, error) {
	if isURL(e.opts.archive) {
		src, err := narhttp.NewSource(ctx, e.opts.archive)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("opened remote archive",
			slog.String("url", e.opts.archive),
			slog.Int64("size", src.Size()))
		return &source{id: src.SourceID(), fetcher: src, stream: src.Open}, nil
	}

	f, err := os.Open(e.opts.archive)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, f)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(e.opts.archive)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("file:%s|size:%d|mtime:%d", abs, info.Size(), info.ModTime().UnixNano())
	stream := func() (io.ReadCloser, error) {
		return io.NopCloser(io.NewSectionReader(f, 0, info.Size())), nil
	}
	return &source{id: id, fetcher: nar.ReaderAtFetcher(io.NewSectionReader(f, 0, info.Size())), stream: stream}, nil
}

// cached wraps f in the configured caches. The memory cache sits in front
// of the disk cache when both are enabled.
func (e *environment) cached(f nar.Fetcher, sourceID string) (nar.Fetcher, error) {
	if e.opts.cacheDir != "" {
		var opts []disk.Option
		if e.opts.cacheMaxBytes > 0 {
			opts = append(opts, disk.WithMaxBytes(e.opts.cacheMaxBytes))
		}
		dc, err := disk.New(e.opts.cacheDir, opts...)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		f = cache.NewFetcher(f, dc, sourceID, cache.WithLogger(e.logger))
	}
	if e.opts.memoryCacheEntries > 0 {
		mc, err := memory.New(e.opts.memoryCacheEntries)
		if err != nil {
			return nil, err
		}
		f = cache.NewFetcher(f, mc, sourceID, cache.WithLogger(e.logger))
	}
	return f, nil
}

// openAccessor indexes the archive, either from --listing or by streaming
// the archive once.
func (e *environment) openAccessor(ctx context.Context) (*nar.Accessor, error) {
	src, err := e.openSource(ctx)
	if err != nil {
		return nil, err
	}
	fetcher, err := e.cached(src.fetcher, src.id)
	if err != nil {
		return nil, err
	}
	opts := []nar.Option{nar.WithLogger(e.logger), nar.WithMaxEntries(e.opts.maxEntries)}

	if e.opts.listing != "" {
		data, err := os.ReadFile(e.opts.listing)
		if err != nil {
			return nil, err
		}
		return nar.NewFromListing(data, fetcher, opts...)
	}

	rc, err := src.stream()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return nar.NewFromReader(bufio.NewReaderSize(rc, 1<<20), fetcher, opts...)
}
