// Package storage implements the chunked text/element record storage
// (spec.md C2): variable-sized records packed into 64 KiB chunks, with cold
// chunks transparently zlib-compressed and a bounded working set of hot,
// uncompressed chunks.
package storage

import (
	"container/list"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/KrasK/coolreader/internal/serial"
	"github.com/KrasK/coolreader/internal/types"
)

// DefaultMaxUncompressed is MAX_UNCOMPRESSED from spec.md §4.2: roughly 8
// chunks' worth of hot data kept inflated at once.
const DefaultMaxUncompressed = 512 * 1024

// RecordType distinguishes text records from element records; it is stored
// verbatim in the common header's Type field as the record "kind" is always
// known from which Manager holds it, but the field is part of the on-disk
// shape either way.
type RecordType uint16

const (
	RecordText RecordType = 1
	RecordElem RecordType = 2
)

// Manager packs records of one kind into an ordered list of chunks and
// tracks a most-recently-used order so it knows which chunks to compress
// when the working set grows too large.
type Manager struct {
	recordType      RecordType
	chunkCapacity   uint32
	maxUncompressed uint32

	chunks []*chunk
	mru    *list.List // front = most recently used

	active    *chunk
	activeIdx uint32
}

// NewManager creates a Manager for one record kind.
func NewManager(rt RecordType) *Manager {
	return &Manager{
		recordType:      rt,
		chunkCapacity:   DefaultChunkCapacity,
		maxUncompressed: DefaultMaxUncompressed,
		mru:             list.New(),
	}
}

// SetChunkCapacity overrides the default 64 KiB chunk size; used by tests
// exercising chunk-packing behavior (spec.md S3) without allocating 10,000
// real records.
func (m *Manager) SetChunkCapacity(n uint32) { m.chunkCapacity = n }

// SetMaxUncompressed overrides MAX_UNCOMPRESSED.
func (m *Manager) SetMaxUncompressed(n uint32) { m.maxUncompressed = n }

func (m *Manager) touch(c *chunk) {
	if c.mruElem != nil {
		m.mru.MoveToFront(c.mruElem)
		return
	}
	c.mruElem = m.mru.PushFront(c)
}

// uncompressedTotal sums the live uncompressed bytes across all chunks.
func (m *Manager) uncompressedTotal() uint32 {
	var total uint32
	for _, c := range m.chunks {
		total += c.uncompressedLen()
	}
	return total
}

// Compact walks the MRU list from the coldest end, compressing chunks until
// the working set (plus reserve bytes about to be used) fits within
// MAX_UNCOMPRESSED. The chunk currently being returned to a caller (if any)
// must have already been touched so it sorts as warm and survives.
func (m *Manager) Compact(reserve uint32) error {
	skipped := 0
	for m.uncompressedTotal()+reserve > m.maxUncompressed {
		e := m.mru.Back()
		if e == nil {
			break
		}
		coldest := e.Value.(*chunk)
		if coldest == m.active || coldest.uncompressedLen() == 0 {
			// Don't evict the active chunk or an already-compressed one;
			// once every chunk has been looked at, nothing colder is left
			// to try.
			m.mru.MoveToFront(e)
			skipped++
			if skipped >= m.mru.Len() {
				break
			}
			continue
		}
		if err := coldest.compact(); err != nil {
			return xerrors.Errorf("compact chunk: %w", err)
		}
	}
	return nil
}

// CompactAll force-compacts every chunk, the active one included,
// regardless of the working-set budget. Nothing in this module calls it;
// the cache save path dumps chunks uncompressed. Chunks are compressed concurrently with an errgroup since this is a bulk batch
// pass with no live tree access in flight — not the kind of concurrent
// mutation spec.md §5 forbids.
func (m *Manager) CompactAll() error {
	var g errgroup.Group
	for _, c := range m.chunks {
		c := c
		g.Go(func() error { return c.compact() })
	}
	return g.Wait()
}

func (m *Manager) openNewChunk() {
	c := newChunk(m.chunkCapacity)
	m.chunks = append(m.chunks, c)
	m.active = c
	m.activeIdx = uint32(len(m.chunks) - 1)
	m.touch(c)
}

// Alloc appends a new record to the active chunk, sealing and opening a new
// chunk if it doesn't fit. Out-of-space for a single record larger than a
// whole chunk is reported as an error; per spec.md §4.12 that situation is
// normal at the chunk level (seal + new chunk) and only escalates further up
// the stack (swap-to-cache) if it recurs for the whole document.
func (m *Manager) Alloc(dataIndex uint32, parent types.NodeHandle, payload []byte) (types.StorageAddress, error) {
	total := headerSize + len(payload)
	if uint32(total) > m.chunkCapacity {
		return 0, xerrors.Errorf("record of %d bytes exceeds chunk capacity %d", total, m.chunkCapacity)
	}
	record := make([]byte, total)
	h := recordHeader{
		Type:        uint16(m.recordType),
		SizeDiv16:   div16RoundUp(total),
		DataIndex:   dataIndex,
		ParentIndex: uint32(parent),
	}
	h.marshal(record[:headerSize])
	copy(record[headerSize:], payload)
	// Re-pad to the rounded size so sizeDiv16*16 bytes are actually present.
	padded := int(h.SizeDiv16) * 16
	if padded > len(record) {
		record = append(record, make([]byte, padded-len(record))...)
	}

	if m.active == nil {
		m.openNewChunk()
	}
	if err := m.Compact(uint32(len(record))); err != nil {
		return 0, err
	}
	off, ok := m.active.append(record)
	if !ok {
		m.active.seal()
		m.openNewChunk()
		off, ok = m.active.append(record)
		if !ok {
			return 0, xerrors.New("record does not fit even in a fresh chunk")
		}
	}
	return types.NewAddress(m.activeIdx, off*16), nil
}

// Get resolves addr, promotes its chunk to the MRU head, ensures it is
// uncompressed, and returns a slice of the record's payload bytes (after the
// common header). The slice runs to the end of the record's 16-byte-rounded
// size, so it ends with the zero padding Alloc added after the payload. The
// returned slice is valid only until the next call that may allocate or
// compact (spec.md §5 pointer-validity rule).
func (m *Manager) Get(addr types.StorageAddress) ([]byte, uint32, error) {
	c, off, err := m.resolve(addr)
	if err != nil {
		return nil, 0, err
	}
	h := unmarshalHeader(c.data[off : off+headerSize])
	if h.SizeDiv16 == 0 {
		return nil, 0, xerrors.New("corrupted record: sizeDiv16 is zero")
	}
	end := off + int(h.SizeDiv16)*16
	if end > len(c.data) {
		return nil, 0, xerrors.New("corrupted record: extends past chunk end")
	}
	return c.data[off+headerSize : end], h.ParentIndex, nil
}

// Header returns the decoded common header for addr.
func (m *Manager) Header(addr types.StorageAddress) (recordHeaderView, error) {
	c, off, err := m.resolve(addr)
	if err != nil {
		return recordHeaderView{}, err
	}
	h := unmarshalHeader(c.data[off : off+headerSize])
	return recordHeaderView{DataIndex: h.DataIndex, ParentIndex: h.ParentIndex}, nil
}

type recordHeaderView struct {
	DataIndex   uint32
	ParentIndex uint32
}

func (m *Manager) resolve(addr types.StorageAddress) (*chunk, int, error) {
	idx := addr.ChunkIndex()
	if int(idx) >= len(m.chunks) {
		return nil, 0, fmt.Errorf("storage: chunk index %d out of range (%d chunks)", idx, len(m.chunks))
	}
	c := m.chunks[idx]
	m.touch(c)
	if err := m.ensureRoomAndUnpack(c); err != nil {
		return nil, 0, err
	}
	return c, int(addr.Offset()), nil
}

func (m *Manager) ensureRoomAndUnpack(c *chunk) error {
	if c.state != stateCompressed {
		return nil
	}
	if err := m.Compact(c.capacity); err != nil {
		return err
	}
	return c.ensureUnpacked()
}

// SetParent overwrites the parentIndex of the record at addr and marks its
// chunk modified, invalidating any stale compressed copy.
func (m *Manager) SetParent(addr types.StorageAddress, newParent types.NodeHandle) error {
	c, off, err := m.resolve(addr)
	if err != nil {
		return err
	}
	c.setParent(off, uint32(newParent))
	return nil
}

// Modified invalidates the compressed copy of addr's chunk without changing
// any bytes, for callers (e.g. in-place attribute overwrites) that mutate a
// record's payload directly via a slice returned from Get.
func (m *Manager) Modified(addr types.StorageAddress) error {
	c, _, err := m.resolve(addr)
	if err != nil {
		return err
	}
	c.modified()
	return nil
}

// Free marks the record at addr deleted; iteration skips it afterward.
func (m *Manager) Free(addr types.StorageAddress) error {
	c, off, err := m.resolve(addr)
	if err != nil {
		return err
	}
	c.freeNode(off)
	return nil
}

// ChunkCount returns the number of chunks currently held.
func (m *Manager) ChunkCount() int { return len(m.chunks) }

// ChunkUncompressedBytes reports how many bytes are currently held
// uncompressed in the working set (test/diagnostic helper for spec.md S3).
func (m *Manager) ChunkUncompressedBytes() uint32 { return m.uncompressedTotal() }

// ChunkIsCompressed reports whether chunk i is currently compressed.
func (m *Manager) ChunkIsCompressed(i int) bool {
	if i < 0 || i >= len(m.chunks) {
		return false
	}
	return m.chunks[i].state == stateCompressed
}

// DumpChunks writes every chunk's raw uncompressed bytes to w, preceded by
// the chunk count and each chunk's byte length. Chunk index and byte offset
// are preserved exactly, so StorageAddress values computed before the dump
// still resolve correctly after a matching LoadChunks (spec.md §4.11: the
// cache file's data region is "the concatenated chunk contents").
func (m *Manager) DumpChunks(w *serial.Writer) error {
	w.PutUint32(uint32(len(m.chunks)))
	for _, c := range m.chunks {
		if err := m.ensureRoomAndUnpack(c); err != nil {
			return xerrors.Errorf("storage: dumping chunk: %w", err)
		}
		w.PutUint32(uint32(len(c.data)))
		w.PutBytes(c.data)
	}
	return nil
}

// LoadChunks replaces the manager's chunks with ones read back from r, as
// previously written by DumpChunks. The manager is left with no active
// chunk, so the next Alloc opens a fresh one rather than resuming the old
// last chunk's free space.
func (m *Manager) LoadChunks(r *serial.Reader) error {
	n := r.Uint32()
	m.chunks = make([]*chunk, 0, n)
	m.mru = list.New()
	m.active = nil
	m.activeIdx = 0
	for i := uint32(0); i < n && r.Err() == nil; i++ {
		size := r.Uint32()
		data := r.Bytes(int(size))
		c := &chunk{state: stateSealed, capacity: m.chunkCapacity, data: append([]byte(nil), data...)}
		m.chunks = append(m.chunks, c)
		m.touch(c)
	}
	if r.Err() != nil {
		return xerrors.Errorf("storage: loading chunks: %w", r.Err())
	}
	return nil
}

// ForEach walks every live (non-freed) record across all chunks in order,
// calling fn with its address, dataIndex and parentIndex header fields, and
// payload (zero-padded as with Get). Iteration aborts on the first corrupted (zero sizeDiv16) record,
// per spec.md §4.2.
func (m *Manager) ForEach(fn func(addr types.StorageAddress, dataIndex uint32, parent uint32, payload []byte) error) error {
	for idx, c := range m.chunks {
		if err := m.ensureRoomAndUnpack(c); err != nil {
			return err
		}
		m.touch(c)
		off := c.first()
		for off >= 0 {
			h := unmarshalHeader(c.data[off : off+headerSize])
			if h.SizeDiv16 == 0 {
				return xerrors.New("storage: corrupted chunk, zero sizeDiv16 during iteration")
			}
			if h.Type != NoData {
				end := off + int(h.SizeDiv16)*16
				addr := types.NewAddress(uint32(idx), uint32(off))
				if err := fn(addr, h.DataIndex, h.ParentIndex, c.data[off+headerSize:end]); err != nil {
					return err
				}
			}
			off = c.next(off)
			if off == -2 {
				return xerrors.New("storage: corrupted chunk, zero sizeDiv16 during iteration")
			}
		}
	}
	return nil
}
