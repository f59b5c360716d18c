// Package diskimage wraps an immutable, in-memory FAT32 disk image and
// provides random byte access, bounds-checked against the image length
// (spec.md §3, DiskImage).
package diskimage

import "github.com/pkg/errors"

// ErrOutOfBounds is returned when a read would run past the end of the
// image — spec.md §7 treats this as a recoverable error from a
// malformed image, not a crash.
var ErrOutOfBounds = errors.New("diskimage: read out of bounds")

// Image is a read-only view over raw FAT32 bytes.
type Image struct {
	data []byte
}

// New wraps data as an Image. data is not copied; callers must not
// mutate it afterward.
func New(data []byte) *Image {
	return &Image{data: data}
}

// Len returns the total length of the image in bytes.
func (img *Image) Len() int {
	return len(img.data)
}

// Slice returns the size bytes starting at offset, or ErrOutOfBounds if
// that range exceeds the image.
func (img *Image) Slice(offset, size int) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > len(img.data) {
		return nil, errors.Wrapf(ErrOutOfBounds, "offset=%d size=%d len=%d", offset, size, len(img.data))
	}
	return img.data[offset : offset+size], nil
}
