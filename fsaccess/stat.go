package fsaccess

// Type identifies the kind of an entry.
type Type uint8

// Entry kinds. TypeUnknown is the zero value and covers entries that archives
// cannot represent (devices, sockets, pipes).
const (
	TypeUnknown Type = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
)

func (t Type) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Stat is the metadata of a single entry.
//
// IsExecutable, FileSize and NarOffset are only meaningful for regular files.
// FileSize and NarOffset are optional; HasFileSize and HasNarOffset report
// whether they are known.
type Stat struct {
	Type         Type
	IsExecutable bool

	FileSize    uint64
	HasFileSize bool

	// NarOffset is the offset of the first content byte within the archive.
	NarOffset    uint64
	HasNarOffset bool
}

// Size returns the file size and whether it is known.
func (s Stat) Size() (uint64, bool) {
	return s.FileSize, s.HasFileSize
}

// Offset returns the archive content offset and whether it is known.
func (s Stat) Offset() (uint64, bool) {
	return s.NarOffset, s.HasNarOffset
}
