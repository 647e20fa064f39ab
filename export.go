package nar

import (
	"fmt"

	"github.com/meigma/nar/fsaccess"
)

// List describes the entry at p of any accessor as a Listing.
//
// With recursive set, directories embed the full listing of every
// descendant. Otherwise only the immediate children of p are named, each as
// an empty Listing. A NarOffset of zero is never emitted.
//
// List panics if acc reports an entry of unknown type; archive-backed
// accessors never produce one.
func List(acc fsaccess.Accessor, p fsaccess.Path, recursive bool) (*Listing, error) {
	st, err := acc.Stat(p)
	if err != nil {
		return nil, err
	}

	switch st.Type {
	case fsaccess.TypeRegular:
		l := &Listing{Type: ListingRegular, Executable: st.IsExecutable}
		if size, ok := st.Size(); ok {
			l.Size = &size
		}
		if off, ok := st.Offset(); ok {
			l.NarOffset = off
		}
		return l, nil

	case fsaccess.TypeDirectory:
		entries, err := acc.ReadDirectory(p)
		if err != nil {
			return nil, err
		}
		l := &Listing{Type: ListingDirectory, Entries: make(map[string]*Listing, len(entries))}
		for _, name := range entries.Names() {
			if !recursive {
				l.Entries[name] = &Listing{}
				continue
			}
			child, err := List(acc, p.Join(name), true)
			if err != nil {
				return nil, err
			}
			l.Entries[name] = child
		}
		return l, nil

	case fsaccess.TypeSymlink:
		target, err := acc.ReadLink(p)
		if err != nil {
			return nil, err
		}
		return &Listing{Type: ListingSymlink, Target: &target}, nil

	default:
		panic(fmt.Sprintf("nar: cannot list %s: entry type %s", p, st.Type))
	}
}
