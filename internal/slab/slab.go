// Package slab implements the tiny-node table (spec.md C3): two parallel
// fixed-size-part slab arrays (one per node kind) that hand out stable slot
// indices and recycle freed ones through a free list threaded through the
// slot payloads themselves.
package slab

const defaultPartSize = 256

// Entry is the per-slot bookkeeping every slab payload type must support: a
// free-list link field reused once a slot is freed. It is parameterized by
// the payload type T and implemented by *T, since NextFree/SetNextFree
// mutate the slot in place; PT is that pointer type, threaded through Slab
// so Get's returned *T can be used directly as an Entry without copying.
type Entry[T any] interface {
	*T
	NextFree() uint32
	SetNextFree(uint32)
}

// Slab is a fixed-part-size array of T, indexed by a slot number that is
// never invalidated by growth: once a part is appended, earlier parts are
// never reallocated, so a pointer into part i survives slabs growing new
// parts (spec.md §4.3 "Pointer stability").
//
// Slot index 0 is never allocated; it is reserved so that NodeHandle 0
// (NullHandle) never aliases a real slot.
type Slab[T any, PT Entry[T]] struct {
	parts    [][]T
	partSize int
	freeHead uint32 // 0 = empty free list
	len      uint32 // next never-yet-used slot index
}

// New creates an empty slab with the default part size.
func New[T any, PT Entry[T]]() *Slab[T, PT] {
	return &Slab[T, PT]{partSize: defaultPartSize, len: 1} // slot 0 reserved
}

func (s *Slab[T, PT]) partAndOffset(slot uint32) (int, int) {
	return int(slot) / s.partSize, int(slot) % s.partSize
}

func (s *Slab[T, PT]) ensurePart(part int) {
	for len(s.parts) <= part {
		s.parts = append(s.parts, make([]T, s.partSize))
	}
}

// Get returns a pointer to the slot's payload.
func (s *Slab[T, PT]) Get(slot uint32) *T {
	p, o := s.partAndOffset(slot)
	s.ensurePart(p)
	return &s.parts[p][o]
}

// Alloc returns a slot index: either a recycled slot popped off the free
// list, or a freshly extended one. The returned slot's payload is the zero
// value of T.
func (s *Slab[T, PT]) Alloc() uint32 {
	if s.freeHead != 0 {
		slot := s.freeHead
		ptr := s.Get(slot)
		s.freeHead = PT(ptr).NextFree()
		var zero T
		*ptr = zero
		return slot
	}
	slot := s.len
	s.len++
	return slot
}

// Restore writes payload directly into slot, bypassing the free list, and
// extends len so that slot (and everything below it) is considered in use.
// Used when reloading a tiny-node table from a cache file, where each
// record's dataIndex dictates the slot it must land in rather than letting
// Alloc hand one out (spec.md §4.11).
func (s *Slab[T, PT]) Restore(slot uint32, payload T) {
	*s.Get(slot) = payload
	if slot >= s.len {
		s.len = slot + 1
	}
}

// Free returns slot to the free list. The caller must have already released
// any resources the slot's payload owned (heap record, chunk record, style
// and font refs) — Free only makes the slot eligible for reuse.
func (s *Slab[T, PT]) Free(slot uint32) {
	entry := PT(s.Get(slot))
	entry.SetNextFree(s.freeHead)
	s.freeHead = slot
}

// Len returns the number of slots ever handed out (including currently-free
// ones), i.e. one past the highest slot index in use.
func (s *Slab[T, PT]) Len() uint32 { return s.len }
