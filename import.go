package nar

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/meigma/nar/fsaccess"
	"github.com/meigma/nar/internal/tree"
)

// NewFromListing builds an Accessor from a JSON listing, optionally
// zstd-compressed. File content is resolved through f.
func NewFromListing(listing []byte, f Fetcher, opts ...Option) (*Accessor, error) {
	l, err := ParseListing(listing)
	if err != nil {
		return nil, err
	}
	return FromListing(l, f, opts...)
}

// FromListing builds an Accessor from a decoded listing. File content is
// resolved through f.
//
// Entries of an unrecognized type are kept as placeholders of unknown type
// and logged at warn level, so that listings from newer producers still load.
func FromListing(l *Listing, f Fetcher, opts ...Option) (*Accessor, error) {
	cfg := newConfig(opts)
	imp := &importer{logger: cfg.logger, max: cfg.builderLimit()}
	root, err := imp.node(l, "")
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("imported listing",
		slog.Int("entries", imp.entries),
		slog.Int("skipped", imp.skipped))
	return &Accessor{root: root, fetcher: f, logger: cfg.logger}, nil
}

type importer struct {
	logger  *slog.Logger
	max     int
	entries int
	skipped int
}

func (imp *importer) node(l *Listing, path string) (*tree.Node, error) {
	if imp.max > 0 && imp.entries >= imp.max {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyEntries, imp.max)
	}
	imp.entries++

	if l == nil {
		return nil, fmt.Errorf("%w: null entry at %q", ErrInvalidListing, displayPath(path))
	}

	switch l.Type {
	case ListingDirectory:
		n := tree.NewDirectory()
		for name, child := range l.Entries {
			if err := validListingName(name); err != nil {
				return nil, fmt.Errorf("%w in %q", err, displayPath(path))
			}
			c, err := imp.node(child, path+"/"+name)
			if err != nil {
				return nil, err
			}
			n.AddChild(name, c)
		}
		return n, nil

	case ListingRegular:
		n := tree.NewRegular()
		n.Stat.IsExecutable = l.Executable
		if l.Size != nil {
			n.Stat.FileSize = *l.Size
			n.Stat.HasFileSize = true
		}
		if l.NarOffset != 0 {
			n.Stat.NarOffset = l.NarOffset
			n.Stat.HasNarOffset = true
		}
		return n, nil

	case ListingSymlink:
		var target string
		if l.Target != nil {
			target = *l.Target
		}
		return tree.NewSymlink(target), nil

	case "":
		return nil, fmt.Errorf("%w: missing type at %q", ErrInvalidListing, displayPath(path))

	default:
		imp.skipped++
		imp.logger.Warn("skipping listing entry of unknown type",
			slog.String("path", displayPath(path)),
			slog.String("type", l.Type))
		return &tree.Node{Stat: fsaccess.Stat{Type: fsaccess.TypeUnknown}}, nil
	}
}

func validListingName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: invalid entry name %q", ErrInvalidListing, name)
	}
	return nil
}

// displayPath renders an internal entry path with a leading slash.
func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
