package storage

import (
	"bytes"
	"container/list"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DefaultChunkCapacity is the default chunk size (spec.md §4.2): 64 KiB.
const DefaultChunkCapacity = 64 * 1024

type chunkState int

const (
	stateEmpty chunkState = iota
	stateActive
	stateSealed
	stateCompressed
)

// chunk is one fixed-capacity buffer holding a sequence of length-prefixed
// records for one record kind (text or element).
type chunk struct {
	state    chunkState
	capacity uint32

	// data holds the uncompressed record bytes while state is active,
	// sealed or (after ensureUnpacked) compressed-but-inflated.
	data []byte

	// compressed holds the last known-good compressed representation, or
	// nil if the chunk has never been compacted or has been modified since.
	compressed []byte

	mruElem *list.Element // this chunk's node in the manager's MRU list
}

func newChunk(capacity uint32) *chunk {
	return &chunk{state: stateEmpty, capacity: capacity}
}

// append appends a pre-built record (header+payload) to the chunk, returning
// its 16-aligned offset divided by 16. It only succeeds while the chunk is
// active (freshly created or reopened) and the record fits.
func (c *chunk) append(record []byte) (offsetDiv16 uint32, ok bool) {
	if c.state == stateEmpty {
		c.state = stateActive
		c.data = make([]byte, 0, c.capacity)
	}
	if c.state != stateActive {
		return 0, false
	}
	if uint32(len(c.data)+len(record)) > c.capacity {
		return 0, false
	}
	off := len(c.data)
	c.data = append(c.data, record...)
	return uint32(off) / 16, true
}

// seal transitions an active chunk to sealed, after which no more appends
// are accepted (the manager opens a new chunk for further writes).
func (c *chunk) seal() {
	if c.state == stateActive {
		c.state = stateSealed
	}
}

// uncompressedLen returns the number of live bytes counted against the
// manager's MAX_UNCOMPRESSED working-set budget, or 0 if compressed.
func (c *chunk) uncompressedLen() uint32 {
	if c.data == nil {
		return 0
	}
	return uint32(len(c.data))
}

// compact zlib-compresses the chunk's contents into its side buffer and
// frees the uncompressed buffer. A compression attempt that doesn't shrink
// the data stores the raw bytes as the "compressed" form instead;
// ensureUnpacked takes those raw bytes as they are when they do not parse
// as a zlib stream (spec.md §4.2 compression policy).
func (c *chunk) compact() error {
	if c.state != stateSealed && c.state != stateActive {
		return nil // already compressed, or empty
	}
	if c.compressed == nil {
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression-3) // level 6
		if err != nil {
			return err
		}
		if _, err := zw.Write(c.data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if buf.Len() < len(c.data) {
			c.compressed = buf.Bytes()
		} else {
			raw := make([]byte, len(c.data))
			copy(raw, c.data)
			c.compressed = raw
		}
	}
	c.data = nil
	c.state = stateCompressed
	return nil
}

// ensureUnpacked inflates the chunk back into an uncompressed buffer if it
// is currently compressed. The manager calls this after making room in the
// working set via compact() on colder chunks.
func (c *chunk) ensureUnpacked() error {
	if c.state != stateCompressed {
		return nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(c.compressed))
	if err != nil {
		// The stored bytes might be the "compression didn't help" raw
		// fallback rather than real zlib output; try that before giving up.
		if len(c.compressed) > 0 {
			c.data = append([]byte(nil), c.compressed...)
			c.state = stateSealed
			return nil
		}
		return err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return err
	}
	c.data = data
	c.state = stateSealed
	return nil
}

// freeNode marks the record at the given byte offset as freed. The caller
// (Manager) must have called ensureUnpacked first.
func (c *chunk) freeNode(offset int) {
	if offset+2 > len(c.data) {
		return
	}
	c.data[offset] = byte(NoData)
	c.data[offset+1] = byte(NoData >> 8)
	c.modified()
}

// setParent overwrites the parentIndex field of the record at offset.
func (c *chunk) setParent(offset int, newParent uint32) {
	if offset+headerSize > len(c.data) {
		return
	}
	h := unmarshalHeader(c.data[offset : offset+headerSize])
	h.ParentIndex = newParent
	h.marshal(c.data[offset : offset+headerSize])
	c.modified()
}

// modified discards any stale compressed copy so the next compact() re-packs
// from the mutated uncompressed data.
func (c *chunk) modified() {
	c.compressed = nil
}

// first returns the offset of the first record in the chunk, or -1 if the
// chunk is empty. The chunk must be uncompressed.
func (c *chunk) first() int {
	if len(c.data) == 0 {
		return -1
	}
	return 0
}

// next returns the offset of the record following the one at offset, or -1
// if there is none. Aborts (returns -2) on a zero sizeDiv16, which spec.md
// §4.2 calls out as corruption.
func (c *chunk) next(offset int) int {
	if offset < 0 || offset+headerSize > len(c.data) {
		return -1
	}
	h := unmarshalHeader(c.data[offset : offset+headerSize])
	if h.SizeDiv16 == 0 {
		return -2
	}
	n := offset + int(h.SizeDiv16)*16
	if n >= len(c.data) {
		return -1
	}
	return n
}
