// Package kheap implements SlabAllocator, the process-wide allocation
// façade from spec.md §4.4: one Cache per power-of-two size class up to
// MaxSlabSize, large requests bypassing straight to the page-bump arena.
//
// This is the Go port of allocator/slab.rs's unsafe impl GlobalAlloc for
// Locked<SlabAllocator>: the lock there (a spin::Mutex, required because
// the allocator must remain usable from interrupt-free kernel contexts
// with no blocking primitive available) becomes a plain sync.Mutex here
// — a hosted Go process has no such restriction, and spec.md §5 only
// requires that entering alloc/dealloc to returning be one exclusive
// region, which sync.Mutex gives directly without reinventing a spinlock
// the standard library already provides correctly.
package kheap

import (
	"math/bits"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iansmith/fat32kit/internal/kheap/slab"
	"github.com/iansmith/fat32kit/internal/pagebump"
)

// MaxSlabSize is the largest request served by a Cache; anything larger
// bypasses straight to whole pages (spec.md §6).
const MaxSlabSize = 2048

// MaxClasses is the number of power-of-two size classes, 8 bytes through
// MaxSlabSize inclusive (spec.md §6).
const MaxClasses = 9

// ErrOutOfMemory names the condition where the backing arena cannot
// satisfy a request. Alloc itself does not return this error: on both
// the small (cache growth) and large (direct page) paths it reports
// exhaustion as (NullAddr, false) and never panics.
var ErrOutOfMemory = errors.New("kheap: out of memory")

// NullAddr stands in for spec.md's "null" pointer: Go offsets have no
// natural null value (0 is a legitimate arena offset), so this sentinel
// plays the same "nothing here" role BufCtlEnd plays for free chains.
// Dealloc(NullAddr, size) is a no-op, matching spec.md §4.4.
const NullAddr uint32 = 0xFFFFFFFF

// Allocator is the process-wide slab allocator. The zero value is not
// ready for use; construct one with NewAllocator.
type Allocator struct {
	mu      sync.Mutex
	arena   *pagebump.Arena
	classes [MaxClasses]*slab.Cache
	log     *logrus.Entry
}

// NewAllocator installs a heap of the given size and returns an
// Allocator ready to serve Alloc/Dealloc. In the original design this is
// SlabAllocator::init, called exactly once per boot against a caller-
// supplied [heap_start, heap_start+heap_size) range; here the Allocator
// owns that range itself (see package pagebump's doc comment).
func NewAllocator(heapSize uint32, log *logrus.Logger) (*Allocator, error) {
	arena, err := pagebump.New(heapSize)
	if err != nil {
		return nil, errors.Wrap(err, "kheap: initializing arena")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{
		arena: arena,
		log:   log.WithField("component", "kheap"),
	}, nil
}

// classIndex returns the size-class index for a rounded-up size, per
// spec.md §4.4: idx = max(0, trailing_zeros(size) - 3), class 0 == 8
// bytes ... class 8 == 2048 bytes.
func classIndex(sizeRoundedUp uint32) int {
	idx := bits.TrailingZeros32(sizeRoundedUp) - 3
	if idx < 0 {
		idx = 0
	}
	return idx
}

func roundUpSize(size uint32) uint32 {
	if size < 8 {
		return 8
	}
	if size&(size-1) == 0 {
		return size
	}
	return 1 << bits.Len32(size)
}

// Alloc returns size bytes as an offset into the allocator's arena.
// align is accepted for ABI parity with spec.md §6 but is advisory: every
// object in a class is ObjSize-aligned within its page, which satisfies
// any alignment up to that class's size (spec.md §4.4).
func (a *Allocator) Alloc(size, align uint32) (uint32, bool) {
	if size == 0 {
		panic("kheap: Alloc called with size == 0")
	}
	_ = align

	a.mu.Lock()
	defer a.mu.Unlock()

	if size > MaxSlabSize {
		pages := (size + pagebump.PageSize - 1) / pagebump.PageSize
		off, ok := a.arena.AllocPages(pages)
		if !ok {
			return NullAddr, false
		}
		return off, ok
	}

	rounded := roundUpSize(size)
	idx := classIndex(rounded)
	c := a.classOrCreate(idx, rounded)

	off, err := c.Alloc(a.arena)
	if err != nil {
		return NullAddr, false
	}
	return off, true
}

// Dealloc returns an object previously obtained from Alloc with the same
// size to its class's free list. Requests above MaxSlabSize, and
// NullAddr, are no-ops: large allocations are never reclaimed (spec.md
// §4.4).
func (a *Allocator) Dealloc(ptr, size uint32) {
	if size > MaxSlabSize || ptr == NullAddr {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rounded := roundUpSize(size)
	idx := classIndex(rounded)
	c := a.classes[idx]
	if c == nil {
		return
	}
	if err := c.Dealloc(ptr); err != nil {
		a.log.WithError(err).WithField("size_class", c.Name).Warn("dealloc of unrecognized pointer ignored")
	}
}

// classOrCreate lazily constructs the Cache for idx on first use, naming
// it "size-<N>" per spec.md §6.
func (a *Allocator) classOrCreate(idx int, objSize uint32) *slab.Cache {
	if a.classes[idx] == nil {
		name := "size-" + itoa(objSize)
		a.classes[idx] = slab.NewCache(name, objSize)
		a.log.WithField("size_class", name).Debug("created cache")
	}
	return a.classes[idx]
}

// Bytes exposes the arena's backing storage so callers that need a real
// []byte view of an allocated object (e.g. internal/fat32's buffers, if
// ever routed through this allocator instead of Go's own heap) can slice
// into it directly.
func (a *Allocator) Bytes() []byte {
	return a.arena.Bytes()
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
