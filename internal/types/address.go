package types

// StorageAddress locates a record inside a chunked storage manager
// (internal/storage). The high 16 bits are the chunk index; the low 16 bits
// are the byte offset within the chunk, divided by 16 — so the addressable
// range per chunk is 16*65536 = 1 MiB even though the default chunk capacity
// is 64 KiB.
type StorageAddress uint32

// NilAddress is not a valid record location; it is used as the marker for
// "not yet persisted". It differs from the zero StorageAddress, which is
// chunk 0, offset 0.
const NilAddress StorageAddress = 0xFFFFFFFF

// NewAddress packs a chunk index and a 16-byte-aligned offset into an
// address. offset must already be a multiple of 16.
func NewAddress(chunkIndex uint32, offset uint32) StorageAddress {
	return StorageAddress(chunkIndex)<<16 | StorageAddress(offset/16)
}

// ChunkIndex returns the chunk component of the address.
func (a StorageAddress) ChunkIndex() uint32 { return uint32(a >> 16) }

// Offset returns the byte offset within the chunk.
func (a StorageAddress) Offset() uint32 { return (uint32(a) & 0xFFFF) * 16 }
