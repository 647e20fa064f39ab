package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Magic is the version string every archive starts with.
const Magic = "nix-archive-1"

const (
	// maxTokenLen bounds structural strings ("(", "type", "directory", ...).
	maxTokenLen = 64

	// maxNameLen bounds entry names and symlink targets.
	maxNameLen = 64 << 10

	// contentChunkSize is the size of the slices passed to ReceiveContents.
	contentChunkSize = 64 << 10
)

// Parse reads one archive from r and reports its entries to sink.
//
// Parse reads exactly the bytes of the archive and nothing after it. Grammar
// violations return an error wrapping ErrMalformed; errors returned by sink
// are passed through unchanged.
func Parse(r io.Reader, sink Sink) error {
	p := &parser{r: r, sink: sink}
	magic, err := p.readString(maxTokenLen)
	if err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrMalformed, magic)
	}
	return p.node("")
}

type parser struct {
	r    io.Reader
	sink Sink
	num  [8]byte
	buf  []byte
}

func (p *parser) node(path string) error {
	if err := p.expect("("); err != nil {
		return err
	}
	if err := p.expect("type"); err != nil {
		return err
	}
	kind, err := p.readString(maxTokenLen)
	if err != nil {
		return err
	}

	switch kind {
	case "regular":
		return p.regular(path)
	case "directory":
		return p.directory(path)
	case "symlink":
		return p.symlink(path)
	default:
		return fmt.Errorf("%w: unknown entry type %q at %q", ErrMalformed, kind, path)
	}
}

func (p *parser) regular(path string) error {
	if err := p.sink.EnterRegularFile(path); err != nil {
		return err
	}

	tok, err := p.readString(maxTokenLen)
	if err != nil {
		return err
	}
	if tok == "executable" {
		marker, err := p.readString(maxTokenLen)
		if err != nil {
			return err
		}
		if marker != "" {
			return fmt.Errorf("%w: executable marker is %q, want empty", ErrMalformed, marker)
		}
		if err := p.sink.MarkExecutable(); err != nil {
			return err
		}
		if tok, err = p.readString(maxTokenLen); err != nil {
			return err
		}
	}
	if tok != "contents" {
		return fmt.Errorf("%w: expected \"contents\" at %q, got %q", ErrMalformed, path, tok)
	}

	size, err := p.readUint64()
	if err != nil {
		return err
	}
	if err := p.sink.DeclareContentSize(size); err != nil {
		return err
	}
	if err := p.contents(size); err != nil {
		return err
	}
	if err := p.padding(size); err != nil {
		return err
	}
	return p.expect(")")
}

func (p *parser) contents(size uint64) error {
	if p.buf == nil && size > 0 {
		p.buf = make([]byte, contentChunkSize)
	}
	for remaining := size; remaining > 0; {
		n := uint64(len(p.buf))
		if remaining < n {
			n = remaining
		}
		chunk := p.buf[:n]
		if err := p.readFull(chunk); err != nil {
			return err
		}
		if err := p.sink.ReceiveContents(chunk); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

func (p *parser) directory(path string) error {
	if err := p.sink.EnterDirectory(path); err != nil {
		return err
	}

	prev := ""
	for {
		tok, err := p.readString(maxTokenLen)
		if err != nil {
			return err
		}
		if tok == ")" {
			return nil
		}
		if tok != "entry" {
			return fmt.Errorf("%w: expected \"entry\" in %q, got %q", ErrMalformed, path, tok)
		}
		if err := p.expect("("); err != nil {
			return err
		}
		if err := p.expect("name"); err != nil {
			return err
		}
		name, err := p.readString(maxNameLen)
		if err != nil {
			return err
		}
		if err := validateName(name); err != nil {
			return fmt.Errorf("%w in %q", err, path)
		}
		if prev != "" && name <= prev {
			return fmt.Errorf("%w: entry %q out of order after %q in %q", ErrMalformed, name, prev, path)
		}
		prev = name

		if err := p.expect("node"); err != nil {
			return err
		}
		if err := p.node(path + "/" + name); err != nil {
			return err
		}
		if err := p.expect(")"); err != nil {
			return err
		}
	}
}

func (p *parser) symlink(path string) error {
	if err := p.expect("target"); err != nil {
		return err
	}
	target, err := p.readString(maxNameLen)
	if err != nil {
		return err
	}
	if err := p.sink.EnterSymlink(path, target); err != nil {
		return err
	}
	return p.expect(")")
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty entry name", ErrMalformed)
	case name == "." || name == "..":
		return fmt.Errorf("%w: invalid entry name %q", ErrMalformed, name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: invalid entry name %q", ErrMalformed, name)
	}
	return nil
}

func (p *parser) expect(want string) error {
	got, err := p.readString(maxTokenLen)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %q, got %q", ErrMalformed, want, got)
	}
	return nil
}

func (p *parser) readString(maxLen uint64) (string, error) {
	n, err := p.readUint64()
	if err != nil {
		return "", err
	}
	if n > maxLen {
		return "", fmt.Errorf("%w: string of %d bytes exceeds limit %d", ErrMalformed, n, maxLen)
	}
	s := make([]byte, n)
	if err := p.readFull(s); err != nil {
		return "", err
	}
	if err := p.padding(n); err != nil {
		return "", err
	}
	return string(s), nil
}

func (p *parser) readUint64() (uint64, error) {
	if err := p.readFull(p.num[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p.num[:]), nil
}

func (p *parser) padding(n uint64) error {
	pad := padLen(n)
	if pad == 0 {
		return nil
	}
	b := p.num[:pad]
	if err := p.readFull(b); err != nil {
		return err
	}
	for _, c := range b {
		if c != 0 {
			return fmt.Errorf("%w: non-zero padding", ErrMalformed)
		}
	}
	return nil
}

func (p *parser) readFull(b []byte) error {
	if _, err := io.ReadFull(p.r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrMalformed, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("read archive: %w", err)
	}
	return nil
}

// padLen returns the zero bytes that follow n bytes of string data.
func padLen(n uint64) uint64 {
	return (8 - n%8) % 8
}
