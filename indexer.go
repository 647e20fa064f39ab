package nar

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/nar/archive"
	"github.com/meigma/nar/internal/tree"
)

// indexer builds a tree from archive events. File content is discarded;
// only its size and position in the stream are recorded.
type indexer struct {
	builder *tree.Builder
	counter *archive.CountingReader
}

// Interface compliance.
var _ archive.Sink = (*indexer)(nil)

func (ix *indexer) EnterDirectory(path string) error {
	return ix.builder.Add(path, tree.NewDirectory())
}

func (ix *indexer) EnterRegularFile(path string) error {
	return ix.builder.Add(path, tree.NewRegular())
}

func (ix *indexer) MarkExecutable() error {
	n, err := ix.builder.CurrentRegular()
	if err != nil {
		return err
	}
	n.Stat.IsExecutable = true
	return nil
}

// DeclareContentSize records the current stream position as the offset of
// the file's first content byte.
func (ix *indexer) DeclareContentSize(size uint64) error {
	n, err := ix.builder.CurrentRegular()
	if err != nil {
		return err
	}
	n.Stat.FileSize = size
	n.Stat.HasFileSize = true
	n.Stat.NarOffset = ix.counter.N
	n.Stat.HasNarOffset = true
	return nil
}

func (ix *indexer) ReceiveContents([]byte) error {
	return nil
}

func (ix *indexer) EnterSymlink(path, target string) error {
	return ix.builder.Add(path, tree.NewSymlink(target))
}

// index parses the archive in r and returns the root of its tree.
func index(r io.Reader, cfg config) (*tree.Node, error) {
	counter := &archive.CountingReader{R: r}
	ix := &indexer{
		builder: tree.NewBuilder(cfg.builderLimit()),
		counter: counter,
	}
	if err := archive.Parse(counter, ix); err != nil {
		return nil, fmt.Errorf("index archive: %w", err)
	}
	root, err := ix.builder.Root()
	if err != nil {
		return nil, fmt.Errorf("index archive: %w", err)
	}
	cfg.logger.Debug("indexed archive",
		slog.Int("entries", ix.builder.Entries()),
		slog.Uint64("bytes", counter.N))
	return root, nil
}
