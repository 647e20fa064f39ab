package archive

import "github.com/meigma/nar/internal/nartype"

// ErrMalformed is returned when an archive violates the NAR grammar.
var ErrMalformed = nartype.ErrMalformedArchive
