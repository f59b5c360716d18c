// Package slab implements the per-size-class slab allocator described in
// spec.md §3–§4: a Cache owns three rings of Slabs (full/partial/free),
// and each Slab serves fixed-size objects out of one page, threading its
// unallocated objects through a BufCtl free list. It is a direct
// translation of original_source/src/allocator/slab.rs's Slab/Cache/
// cache_grow/alloc/dealloc into Go.
//
// The Rust original recovers a Slab from any object pointer it owns with
// slab_of(obj) = obj & ~(PAGE_SIZE-1) — the page header sits at the base
// of its own page. Go forbids that kind of address arithmetic on a
// (potentially moving) GC heap, so this package keeps each Slab's
// bookkeeping (its BufCtl free-list array, its object count, which page
// backs it) as an ordinary Go struct, and recovers it from an arena
// offset via a small sidetable keyed by page number instead of a
// pointer mask — the substitute spec.md §9's Design Notes explicitly
// sanctions for languages that forbid raw address arithmetic. Only the
// object bytes actually handed to callers live in the arena's backing
// slice; everything else is ordinary (GC-managed) Go state.
package slab

import (
	"fmt"
	"unsafe"

	"github.com/iansmith/fat32kit/internal/kheap/list"
	"github.com/iansmith/fat32kit/internal/pagebump"
)

// BufCtl indexes into a slab's object array to thread its free list.
type BufCtl uint32

// BufCtlEnd marks the end of a free chain (spec.md §3).
const BufCtlEnd BufCtl = 0xFFFFFFFF

// nominalHeaderSize and nominalBufCtlSize stand in for sizeof(Slab) and
// sizeof(BufCtl) in the Num formula from spec.md §4.3 step 3. Go does not
// lay a Slab header out in the page itself (see package doc), but the
// formula is kept so each cache's object count per page matches what a
// byte-exact implementation would compute, rather than over-packing a
// page just because this port frees up the header's in-page space.
const (
	nominalHeaderSize = 40 // ListNode(16) + SMem(8) + Free(4) + InUse(8), aligned
	nominalBufCtlSize = 4
)

// Slab owns one page's worth of fixed-size objects for a single Cache.
type Slab struct {
	List   list.Node
	base   uint32 // arena offset of the page this slab owns
	sMem   uint32 // arena offset of the first object
	free   BufCtl
	inUse  uint32
	bufctl []BufCtl
}

// InUse reports how many objects in this slab are currently allocated.
func (s *Slab) InUse() uint32 { return s.inUse }

// Cache is the per-size-class container of slabs, partitioned into three
// rings by fill level (spec.md §3).
type Cache struct {
	Full, Partial, Free list.Node
	ObjSize             uint32
	Num                 uint32
	Name                string

	bySlabBase map[uint32]*Slab
}

// NewCache computes the object count per page for objSize (already
// rounded to a power of two by the caller) and returns an empty Cache.
func NewCache(name string, objSize uint32) *Cache {
	c := &Cache{
		ObjSize:    objSize,
		Num:        (pagebump.PageSize - nominalHeaderSize) / (objSize + nominalBufCtlSize),
		Name:       name,
		bySlabBase: make(map[uint32]*Slab),
	}
	list.Init(&c.Full)
	list.Init(&c.Partial)
	list.Init(&c.Free)
	return c
}

// Grow obtains one fresh page from the arena, threads its bufctl free
// chain 0 -> 1 -> ... -> num-1 -> END, and links the new slab onto
// c.Free (spec.md §4.3).
func (c *Cache) Grow(arena *pagebump.Arena) (*Slab, error) {
	page, ok := arena.AllocPages(1)
	if !ok {
		return nil, fmt.Errorf("slab: out of memory growing cache %q", c.Name)
	}

	s := &Slab{
		base:   page,
		sMem:   page,
		free:   0,
		inUse:  0,
		bufctl: make([]BufCtl, c.Num),
	}
	for i := uint32(0); i < c.Num; i++ {
		if i+1 == c.Num {
			s.bufctl[i] = BufCtlEnd
		} else {
			s.bufctl[i] = BufCtl(i + 1)
		}
	}

	list.Add(&s.List, &c.Free)
	c.bySlabBase[page] = s
	return s, nil
}

// Alloc returns the arena offset of a free object of this cache's size,
// growing the cache if no partial or free slab is available.
func (c *Cache) Alloc(arena *pagebump.Arena) (uint32, error) {
	var s *Slab
	if !list.Empty(&c.Partial) {
		s = slabFromNode(c.Partial.Next)
	} else {
		if list.Empty(&c.Free) {
			grown, err := c.Grow(arena)
			if err != nil {
				return 0, err
			}
			s = grown
			list.Del(&s.List)
			list.Add(&s.List, &c.Partial)
		} else {
			node := c.Free.Next
			s = slabFromNode(node)
			list.Del(node)
			list.Add(node, &c.Partial)
		}
	}

	objIdx := uint32(s.free)
	obj := s.sMem + objIdx*c.ObjSize
	s.free = s.bufctl[objIdx]
	s.inUse++

	if s.inUse == c.Num {
		list.Del(&s.List)
		list.Add(&s.List, &c.Full)
	}

	return obj, nil
}

// Dealloc returns the object at arena offset ptr to its owning slab's
// free list, transitioning the slab between rings as its fill level
// crosses a boundary (spec.md §4.4).
func (c *Cache) Dealloc(ptr uint32) error {
	pageBase := ptr &^ (pagebump.PageSize - 1)
	s, ok := c.bySlabBase[pageBase]
	if !ok {
		return fmt.Errorf("slab: dealloc of %d does not belong to cache %q", ptr, c.Name)
	}

	objIdx := (ptr - s.sMem) / c.ObjSize
	s.bufctl[objIdx] = s.free
	s.free = BufCtl(objIdx)

	wasFull := s.inUse == c.Num
	s.inUse--

	switch {
	case wasFull:
		list.Del(&s.List)
		list.Add(&s.List, &c.Partial)
	case s.inUse == 0:
		list.Del(&s.List)
		list.Add(&s.List, &c.Free)
	}

	return nil
}

// slabFromNode recovers the owning *Slab from a pointer to its embedded
// List field. List is Slab's first field, so the two share an address —
// the Go-safe analogue of the original's `slab_node as *mut Slab` cast,
// used here instead of a sidetable because we already hold a pointer
// (not a bare integer offset) at this call site.
func slabFromNode(node *list.Node) *Slab {
	return (*Slab)(unsafe.Pointer(node))
}
