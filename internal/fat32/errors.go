package fat32

import "github.com/pkg/errors"

// Sentinel errors matching the taxonomy in spec.md §7. Callers compare
// with errors.Is; call sites wrap these with path/cluster context via
// errors.Wrapf rather than inventing new error types per call site.
var (
	ErrEntryNotFound       = errors.New("fat32: entry not found")
	ErrNotAFile            = errors.New("fat32: not a file")
	ErrNotADirectory       = errors.New("fat32: not a directory")
	ErrInvalidEncoding     = errors.New("fat32: invalid encoding")
	ErrMalformedBootSector = errors.New("fat32: malformed boot sector")
)
