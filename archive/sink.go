package archive

// Sink receives the structural events of an archive in depth-first preorder.
//
// Paths are "" for the root entry and parent + "/" + name below it, so the
// number of separators equals the nesting depth. MarkExecutable,
// DeclareContentSize and ReceiveContents apply to the most recently entered
// regular file. DeclareContentSize is delivered after the size field has been
// read and before any content byte is consumed.
type Sink interface {
	EnterDirectory(path string) error
	EnterRegularFile(path string) error
	MarkExecutable() error
	DeclareContentSize(size uint64) error
	ReceiveContents(data []byte) error
	EnterSymlink(path, target string) error
}
