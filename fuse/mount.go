package fuse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/meigma/nar/fsaccess"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted. It is
	// created if it does not exist.
	Mountpoint string

	// Accessor serves the mounted tree.
	Accessor fsaccess.Accessor

	// Root selects the subtree to mount. The zero value mounts the whole
	// tree. The entry at Root must be a directory.
	Root fsaccess.Path

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a discard logger is used.
	Logger *slog.Logger
}

// Mount mounts the accessor at the configured mountpoint. The caller must
// call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, errors.New("mountpoint is required")
	}
	if options.Accessor == nil {
		return nil, errors.New("accessor is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	st, err := options.Accessor.Stat(options.Root)
	if err != nil {
		return nil, fmt.Errorf("stat mount root: %w", err)
	}
	if st.Type != fsaccess.TypeDirectory {
		return nil, fmt.Errorf("mount root %s is a %s, not a directory", options.Root, st.Type)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	fsys := &filesystem{acc: options.Accessor, logger: options.Logger}
	root := &node{fsys: fsys, path: options.Root, stat: st}

	// Content never changes, so entries and attributes can be cached for long.
	timeout := time.Hour
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &timeout,
		AttrTimeout:     &timeout,
		NegativeTimeout: &timeout,
		MountOptions: fuse.MountOptions{
			FsName:     "nar",
			Name:       "nar",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("archive mounted", slog.String("mountpoint", options.Mountpoint))
	return server, nil
}

// filesystem is shared by every node of one mount.
type filesystem struct {
	acc    fsaccess.Accessor
	logger *slog.Logger
}

// node is one entry of the mounted tree.
type node struct {
	gofuse.Inode
	fsys *filesystem
	path fsaccess.Path
	stat fsaccess.Stat

	// mu protects content (lazy initialization).
	mu      sync.Mutex
	content []byte
	loaded  bool
}

var (
	_ gofuse.InodeEmbedder  = (*node)(nil)
	_ gofuse.NodeLookuper   = (*node)(nil)
	_ gofuse.NodeReaddirer  = (*node)(nil)
	_ gofuse.NodeGetattrer  = (*node)(nil)
	_ gofuse.NodeOpener     = (*node)(nil)
	_ gofuse.NodeReader     = (*node)(nil)
	_ gofuse.NodeReadlinker = (*node)(nil)
)

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if n.stat.Type != fsaccess.TypeDirectory {
		return nil, syscall.ENOTDIR
	}
	childPath := n.path.Join(name)
	st, ok, err := n.fsys.acc.MaybeStat(childPath)
	if err != nil {
		return nil, n.fsys.errno("lookup", childPath, err)
	}
	if !ok {
		return nil, syscall.ENOENT
	}
	mode := fileMode(st)
	if mode == 0 {
		return nil, syscall.ENOENT
	}

	child := &node{fsys: n.fsys, path: childPath, stat: st}
	n.fsys.fill(child, &out.Attr)
	return n.NewInode(ctx, child, gofuse.StableAttr{Mode: mode & syscall.S_IFMT}), 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.fsys.acc.ReadDirectory(n.path)
	if err != nil {
		return nil, n.fsys.errno("readdir", n.path, err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, name := range entries.Names() {
		var st fsaccess.Stat
		if hint := entries[name]; hint != nil {
			st.Type = *hint
		} else if st, err = n.fsys.acc.Stat(n.path.Join(name)); err != nil {
			return nil, n.fsys.errno("readdir", n.path.Join(name), err)
		}
		mode := fileMode(st)
		if mode == 0 {
			continue
		}
		list = append(list, fuse.DirEntry{Name: name, Mode: mode & syscall.S_IFMT})
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fsys.fill(n, &out.Attr)
	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	if n.stat.Type != fsaccess.TypeRegular {
		return nil, 0, syscall.EISDIR
	}
	if _, errno := n.load(); errno != 0 {
		return nil, 0, errno
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	content, errno := n.load()
	if errno != 0 {
		return nil, errno
	}
	if off < 0 {
		return nil, syscall.EINVAL
	}
	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := min(off+int64(len(dest)), int64(len(content)))
	return fuse.ReadResultData(content[off:end]), 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.fsys.acc.ReadLink(n.path)
	if err != nil {
		return nil, n.fsys.errno("readlink", n.path, err)
	}
	return []byte(target), 0
}

// load fetches the file content once per node.
func (n *node) load() ([]byte, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.loaded {
		return n.content, 0
	}
	data, err := n.fsys.acc.ReadFile(n.path)
	if err != nil {
		return nil, n.fsys.errno("read", n.path, err)
	}
	n.content = data
	n.loaded = true
	return data, 0
}

// fill sets the attributes of n.
func (fsys *filesystem) fill(n *node, out *fuse.Attr) {
	out.Mode = fileMode(n.stat)
	out.Nlink = 1
	switch n.stat.Type {
	case fsaccess.TypeRegular:
		out.Size = n.stat.FileSize
	case fsaccess.TypeSymlink:
		if target, err := fsys.acc.ReadLink(n.path); err == nil {
			out.Size = uint64(len(target))
		}
	case fsaccess.TypeDirectory:
		out.Nlink = 2
	}
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = 65536
}

// errno maps an accessor error to a FUSE status, logging unexpected ones.
func (fsys *filesystem) errno(op string, p fsaccess.Path, err error) syscall.Errno {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, fsaccess.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, fsaccess.ErrWrongType):
		return syscall.EINVAL
	}
	fsys.logger.Error("archive access failed",
		slog.String("op", op),
		slog.String("path", p.String()),
		slog.Any("error", err))
	return syscall.EIO
}

// fileMode returns the kernel mode bits for st, or 0 for entry types that
// cannot be represented.
func fileMode(st fsaccess.Stat) uint32 {
	switch st.Type {
	case fsaccess.TypeDirectory:
		return syscall.S_IFDIR | 0o555
	case fsaccess.TypeRegular:
		if st.IsExecutable {
			return syscall.S_IFREG | 0o555
		}
		return syscall.S_IFREG | 0o444
	case fsaccess.TypeSymlink:
		return syscall.S_IFLNK | 0o777
	default:
		return 0
	}
}
