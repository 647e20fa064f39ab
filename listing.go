package nar

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
)

// Listing type names.
const (
	ListingRegular   = "regular"
	ListingDirectory = "directory"
	ListingSymlink   = "symlink"
)

// maxListingSize bounds the decompressed size of a listing.
const maxListingSize = 256 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// zstdMagic is the frame header of zstd-compressed data.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Listing is the JSON description of an archive subtree.
//
// A directory always carries Entries, possibly empty. In a shallow listing
// the entries of a directory are empty Listings that only name the children.
// NarOffset zero means the offset is unknown.
type Listing struct {
	Type       string              `json:"type,omitempty"`
	Size       *uint64             `json:"size,omitempty"`
	Executable bool                `json:"executable,omitempty"`
	NarOffset  uint64              `json:"narOffset,omitempty"`
	Target     *string             `json:"target,omitempty"`
	Entries    map[string]*Listing `json:"entries,omitempty"`
}

// plainListing has the fields of Listing without its methods.
type plainListing Listing

// MarshalJSON implements json.Marshaler. Directories always emit "entries".
func (l *Listing) MarshalJSON() ([]byte, error) {
	if l.Type != ListingDirectory {
		return json.Marshal((*plainListing)(l))
	}
	entries := l.Entries
	if entries == nil {
		entries = map[string]*Listing{}
	}
	return json.Marshal(struct {
		Type    string              `json:"type"`
		Entries map[string]*Listing `json:"entries"`
	}{Type: l.Type, Entries: entries})
}

// MarshalListing encodes l as JSON. Object keys are sorted, so equal
// listings encode to equal bytes.
func MarshalListing(l *Listing) ([]byte, error) {
	return json.Marshal(l)
}

// ParseListing decodes a JSON listing. Input starting with a zstd frame
// header is decompressed first.
func ParseListing(data []byte) (*Listing, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		var err error
		if data, err = decompress(data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidListing, err)
		}
	}
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidListing, err)
	}
	return &l, nil
}

// CompressListing encodes l as zstd-compressed JSON.
func CompressListing(l *Listing) ([]byte, error) {
	raw, err := MarshalListing(l)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxListingSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
