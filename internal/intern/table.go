// Package intern implements the bidirectional name/value interning tables
// (spec.md C1): element names, attribute names, namespaces and attribute
// values all share the same table shape, parameterized over the small
// integer ID type they mint.
package intern

import (
	"sort"

	"github.com/KrasK/coolreader/internal/serial"
	"github.com/KrasK/coolreader/internal/types"
)

const magic = 0x494E5452 // "INTR"

// ID is any of the 16-bit identifier types minted by an interning table.
type ID interface {
	~uint16
}

// Table maps names to small integer IDs and back. IDs in [1, known] are
// seeded from a well-known table at construction time and are stable across
// runs; IDs in [unknownBase, 0xFFFE] are allocated on first sight of a name
// this process hasn't seen before and are only stable for the lifetime of
// one document (including across a persist/restore of that same document,
// since the whole table round-trips through Serialize/Deserialize).
type Table[T ID] struct {
	byName map[string]T
	byID   map[T]string
	next   T
}

// New creates a table seeded with the given well-known name list. seed[i]
// is assigned ID i+1; seed must not exceed types.MaxKnownID entries.
func New[T ID](seed []string) *Table[T] {
	t := &Table[T]{
		byName: make(map[string]T, len(seed)*2),
		byID:   make(map[T]string, len(seed)*2),
		next:   types.UnknownBase,
	}
	for i, name := range seed {
		id := T(i + 1)
		t.byName[name] = id
		t.byID[id] = name
	}
	return t
}

// IDOf returns the existing ID for name, or allocates and returns the next
// unknown ID if name hasn't been seen before.
func (t *Table[T]) IDOf(name string) T {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := t.next
	t.next++
	t.byName[name] = id
	t.byID[id] = name
	return id
}

// LookupID returns the ID for name without allocating one, reporting
// whether name is known.
func (t *Table[T]) LookupID(name string) (T, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// NameOf returns the name for id, or "" if id is unknown.
func (t *Table[T]) NameOf(id T) string {
	return t.byID[id]
}

// Len returns the number of interned names (known + unknown).
func (t *Table[T]) Len() int { return len(t.byName) }

// Serialize writes the table between a magic marker and a trailing CRC32,
// per spec.md §4.1 ("bit-stable, enclosed between magic markers and a
// trailing CRC").
func (t *Table[T]) Serialize(w *serial.Writer) {
	start := w.Len()
	w.PutMagic(magic)
	w.PutUint32(uint32(t.next))
	w.PutUint32(uint32(len(t.byID)))
	ids := make([]T, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		w.PutUint16(uint16(id))
		w.PutString(t.byID[id])
	}
	w.PutCRC(start)
}

// Deserialize reads a table previously written by Serialize, replacing the
// receiver's contents. It returns false (without modifying t) on magic or
// CRC mismatch.
func (t *Table[T]) Deserialize(r *serial.Reader) bool {
	start := r.Pos()
	if !r.CheckMagic(magic) {
		return false
	}
	next := T(r.Uint32())
	count := r.Uint32()
	byName := make(map[string]T, count)
	byID := make(map[T]string, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		id := T(r.Uint16())
		name := r.String()
		byName[name] = id
		byID[id] = name
	}
	if r.Err() != nil {
		return false
	}
	if !r.CheckCRC(start) {
		return false
	}
	t.byName = byName
	t.byID = byID
	t.next = next
	return true
}
