package archive

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/nar/fsaccess"
)

// Dump writes the subtree of acc rooted at root to w as an archive.
//
// Directory entries are written in ascending byte order of their names and
// only regular files, directories and symlinks are supported. File content is
// read whole through acc.ReadFile.
//
// The context can be used for cancellation of long-running dumps; it is
// checked before each entry.
func Dump(ctx context.Context, w io.Writer, acc fsaccess.Accessor, root fsaccess.Path) error {
	d := &dumper{ctx: ctx, w: bufio.NewWriter(w), acc: acc}
	if err := d.writeString(Magic); err != nil {
		return err
	}
	if err := d.node(root); err != nil {
		return err
	}
	return d.w.Flush()
}

type dumper struct {
	ctx context.Context
	w   *bufio.Writer
	acc fsaccess.Accessor
	num [8]byte
}

func (d *dumper) node(p fsaccess.Path) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	st, err := d.acc.Stat(p)
	if err != nil {
		return err
	}
	if err := d.writeStrings("(", "type"); err != nil {
		return err
	}

	switch st.Type {
	case fsaccess.TypeRegular:
		err = d.regular(p, st)
	case fsaccess.TypeDirectory:
		err = d.directory(p)
	case fsaccess.TypeSymlink:
		err = d.symlink(p)
	default:
		err = fmt.Errorf("dump %s: unsupported entry type %s", p, st.Type)
	}
	if err != nil {
		return err
	}
	return d.writeString(")")
}

func (d *dumper) regular(p fsaccess.Path, st fsaccess.Stat) error {
	if err := d.writeString("regular"); err != nil {
		return err
	}
	if st.IsExecutable {
		if err := d.writeStrings("executable", ""); err != nil {
			return err
		}
	}
	data, err := d.acc.ReadFile(p)
	if err != nil {
		return err
	}
	if err := d.writeString("contents"); err != nil {
		return err
	}
	return d.writeBytes(data)
}

func (d *dumper) directory(p fsaccess.Path) error {
	if err := d.writeString("directory"); err != nil {
		return err
	}
	entries, err := d.acc.ReadDirectory(p)
	if err != nil {
		return err
	}
	for _, name := range entries.Names() {
		if err := d.writeStrings("entry", "(", "name", name, "node"); err != nil {
			return err
		}
		if err := d.node(p.Join(name)); err != nil {
			return err
		}
		if err := d.writeString(")"); err != nil {
			return err
		}
	}
	return nil
}

func (d *dumper) symlink(p fsaccess.Path) error {
	target, err := d.acc.ReadLink(p)
	if err != nil {
		return err
	}
	return d.writeStrings("symlink", "target", target)
}

func (d *dumper) writeStrings(ss ...string) error {
	for _, s := range ss {
		if err := d.writeString(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *dumper) writeString(s string) error {
	return d.writeBytes([]byte(s))
}

func (d *dumper) writeBytes(b []byte) error {
	binary.LittleEndian.PutUint64(d.num[:], uint64(len(b)))
	if _, err := d.w.Write(d.num[:]); err != nil {
		return err
	}
	if _, err := d.w.Write(b); err != nil {
		return err
	}
	var zero [8]byte
	_, err := d.w.Write(zero[:padLen(uint64(len(b)))])
	return err
}
