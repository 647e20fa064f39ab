package fsaccess

import (
	"errors"
	"io/fs"
	"syscall"
)

// fsAccessor adapts an io/fs filesystem to Accessor.
type fsAccessor struct {
	fsys fs.FS
}

// Interface compliance.
var _ Accessor = (*fsAccessor)(nil)

// FS returns an Accessor backed by fsys.
//
// Symlinks are reported as such (not followed) when fsys implements
// fs.ReadLinkFS, as os.DirFS and fstest.MapFS do. Other filesystems report
// the followed entry. Regular files never carry a NarOffset.
func FS(fsys fs.FS) Accessor {
	return &fsAccessor{fsys: fsys}
}

func (a *fsAccessor) MaybeStat(p Path) (Stat, bool, error) {
	info, err := fs.Lstat(a.fsys, p.Rel())
	if err != nil {
		if isNotFound(err) {
			return Stat{}, false, nil
		}
		return Stat{}, false, err
	}
	return statFromInfo(info), true, nil
}

func (a *fsAccessor) Stat(p Path) (Stat, error) {
	return StatOrNotFound(a, p)
}

func (a *fsAccessor) ReadDirectory(p Path) (DirEntries, error) {
	if err := a.expect(p, "readdir", TypeDirectory, ErrNotDirectory); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(a.fsys, p.Rel())
	if err != nil {
		return nil, err
	}
	res := make(DirEntries, len(entries))
	for _, entry := range entries {
		t := typeFromMode(entry.Type())
		res[entry.Name()] = &t
	}
	return res, nil
}

func (a *fsAccessor) ReadFile(p Path) ([]byte, error) {
	if err := a.expect(p, "readfile", TypeRegular, ErrNotRegular); err != nil {
		return nil, err
	}
	return fs.ReadFile(a.fsys, p.Rel())
}

func (a *fsAccessor) ReadLink(p Path) (string, error) {
	if err := a.expect(p, "readlink", TypeSymlink, ErrNotSymlink); err != nil {
		return "", err
	}
	return fs.ReadLink(a.fsys, p.Rel())
}

// expect checks that p resolves to an entry of type want.
func (a *fsAccessor) expect(p Path, op string, want Type, wrongType error) error {
	st, ok, err := a.MaybeStat(p)
	if err != nil {
		return err
	}
	if !ok {
		return &fs.PathError{Op: op, Path: p.String(), Err: ErrNotFound}
	}
	if st.Type != want {
		return &fs.PathError{Op: op, Path: p.String(), Err: wrongType}
	}
	return nil
}

// isNotFound reports whether err means the path does not resolve. A
// non-directory in the middle of the path counts as absence.
func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func statFromInfo(info fs.FileInfo) Stat {
	mode := info.Mode()
	st := Stat{Type: typeFromMode(mode)}
	if st.Type == TypeRegular {
		st.IsExecutable = mode.Perm()&0o111 != 0
		if size := info.Size(); size >= 0 {
			st.FileSize = uint64(size)
			st.HasFileSize = true
		}
	}
	return st
}

func typeFromMode(mode fs.FileMode) Type {
	switch {
	case mode.IsRegular():
		return TypeRegular
	case mode.IsDir():
		return TypeDirectory
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	default:
		return TypeUnknown
	}
}
