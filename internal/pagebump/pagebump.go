// Package pagebump implements a monotonic, non-reclaiming page allocator
// over a fixed-size arena — the PageBump component of spec.md §4.1.
//
// In the original design this hands out raw virtual addresses carved out
// of [heap_start, heap_end) by a frame allocator / page-table mapper that
// live outside this subsystem (spec.md §1, §6). A hosted Go process has
// no such collaborator, so Arena owns its backing storage directly as a
// single []byte obtained once in New, and "addresses" handed out by
// AllocPages are offsets into that slice rather than process addresses —
// the sidetable substitute spec.md §9 allows for languages that forbid
// raw address arithmetic.
package pagebump

import "fmt"

// PageSize is the allocator's atomic unit of supply (spec.md §6).
const PageSize = 4096

// Arena is a PAGE_SIZE-aligned byte range handed out page at a time.
// There is no Free: large allocations are never reclaimed (spec.md §4.1).
type Arena struct {
	data []byte
	next uint32
	end  uint32
}

// New reserves an arena of at least size bytes, rounded up to a whole
// number of pages, and returns it ready for AllocPages.
func New(size uint32) (*Arena, error) {
	if size == 0 {
		return nil, fmt.Errorf("pagebump: arena size must be > 0")
	}
	pages := (size + PageSize - 1) / PageSize
	total := pages * PageSize
	return &Arena{
		data: make([]byte, total),
		next: 0,
		end:  total,
	}, nil
}

// AllocPages reserves n contiguous pages and returns the offset of the
// first one within the arena's backing slice. ok is false if the arena
// is exhausted; next is left unchanged on failure.
func (a *Arena) AllocPages(n uint32) (offset uint32, ok bool) {
	if n == 0 {
		return 0, false
	}
	need := uint64(n) * PageSize
	if uint64(a.next)+need > uint64(a.end) {
		return 0, false
	}
	offset = a.next
	a.next += uint32(need)
	return offset, true
}

// Bytes returns the full backing slice, for callers (internal/kheap's
// Allocator.Bytes) that need to read and write object bytes at an offset
// returned by AllocPages.
func (a *Arena) Bytes() []byte {
	return a.data
}

// Remaining reports how many bytes are still available to AllocPages,
// mostly useful in tests asserting exhaustion behavior.
func (a *Arena) Remaining() uint32 {
	return a.end - a.next
}
