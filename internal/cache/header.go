package cache

import (
	"github.com/KrasK/coolreader/internal/serial"
)

// headerMagic is the fixed literal the cache file opens with (spec.md §6.3).
const headerMagic = "CoolReader3 Document Cache File\nformat version 3.01.06\n"

// headerSize is the header's fixed, zero-padded on-disk size.
const headerSize = 4096

// sectionAlign is the alignment every section's size is rounded up to.
const sectionAlign = 4096

// Header is the cache file's fixed-size preamble (spec.md §6.3): offsets and
// sizes of the four sections that follow it, plus CRC/size bookkeeping and
// the rendering collaborator's advisory fields.
type Header struct {
	SrcFileSize  uint32
	SrcFileCRC32 uint32

	PropsOffset uint32
	PropsSize   uint32

	IDTableOffset uint32
	IDTableSize   uint32

	PageTableOffset uint32
	PageTableSize   uint32

	DataOffset uint32
	DataSize   uint32
	DataCRC32  uint32

	// DataIndexSize records the combined element+text tiny-node slab length
	// at save time: the sum of slab.Slab.Len() for the two tables. Load
	// reads it back but does not check it, and it is not load-bearing for
	// reconstruction: RestoreFromStorage rebuilds each slot from its own
	// record's dataIndex field.
	DataIndexSize uint32

	FileSize uint32

	RenderDX        uint32
	RenderDY        uint32
	RenderDocFlags  uint32
	RenderStyleHash uint32

	SrcFileName string
}

func alignUp(n uint32) uint32 {
	return (n + sectionAlign - 1) &^ (sectionAlign - 1)
}

func marshalHeader(h Header) ([]byte, error) {
	w := serial.NewWriter()
	start := w.Len()
	w.PutBytes([]byte(headerMagic))
	w.PutUint32(h.SrcFileSize)
	w.PutUint32(h.SrcFileCRC32)
	w.PutUint32(h.PropsOffset)
	w.PutUint32(h.PropsSize)
	w.PutUint32(h.IDTableOffset)
	w.PutUint32(h.IDTableSize)
	w.PutUint32(h.PageTableOffset)
	w.PutUint32(h.PageTableSize)
	w.PutUint32(h.DataOffset)
	w.PutUint32(h.DataSize)
	w.PutUint32(h.DataCRC32)
	w.PutUint32(h.DataIndexSize)
	w.PutUint32(h.FileSize)
	w.PutUint32(h.RenderDX)
	w.PutUint32(h.RenderDY)
	w.PutUint32(h.RenderDocFlags)
	w.PutUint32(h.RenderStyleHash)
	w.PutString(h.SrcFileName)
	w.PutCRC(start)

	raw := w.Bytes()
	if len(raw) > headerSize {
		return nil, ErrSize
	}
	out := make([]byte, headerSize)
	copy(out, raw)
	return out, nil
}

func unmarshalHeader(b []byte) (Header, error) {
	r := serial.NewReader(b)
	start := r.Pos()
	magic := r.Bytes(len(headerMagic))
	if r.Err() != nil || string(magic) != headerMagic {
		return Header{}, ErrMagic
	}
	var h Header
	h.SrcFileSize = r.Uint32()
	h.SrcFileCRC32 = r.Uint32()
	h.PropsOffset = r.Uint32()
	h.PropsSize = r.Uint32()
	h.IDTableOffset = r.Uint32()
	h.IDTableSize = r.Uint32()
	h.PageTableOffset = r.Uint32()
	h.PageTableSize = r.Uint32()
	h.DataOffset = r.Uint32()
	h.DataSize = r.Uint32()
	h.DataCRC32 = r.Uint32()
	h.DataIndexSize = r.Uint32()
	h.FileSize = r.Uint32()
	h.RenderDX = r.Uint32()
	h.RenderDY = r.Uint32()
	h.RenderDocFlags = r.Uint32()
	h.RenderStyleHash = r.Uint32()
	h.SrcFileName = r.String()
	if r.Err() != nil {
		return Header{}, r.Err()
	}
	if !r.CheckCRC(start) {
		return Header{}, ErrCRC
	}
	return h, nil
}
