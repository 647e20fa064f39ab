package nar

import "github.com/meigma/nar/fsaccess"

// Stat is the metadata of a single entry.
type Stat = fsaccess.Stat

// Type identifies the kind of an entry.
type Type = fsaccess.Type

// Entry kinds.
const (
	TypeUnknown   = fsaccess.TypeUnknown
	TypeRegular   = fsaccess.TypeRegular
	TypeDirectory = fsaccess.TypeDirectory
	TypeSymlink   = fsaccess.TypeSymlink
)

// Path is a root-relative path inside an archive.
type Path = fsaccess.Path
