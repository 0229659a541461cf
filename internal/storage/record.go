package storage

import "encoding/binary"

// headerSize is the on-disk size of the common record header shared by text
// and element records (spec.md §6.4): type, sizeDiv16, dataIndex,
// parentIndex, each a fixed-width little-endian field.
const headerSize = 12

// NoData marks a freed record slot; iteration skips it.
const NoData uint16 = 0xFFFF

type recordHeader struct {
	Type        uint16
	SizeDiv16   uint16
	DataIndex   uint32
	ParentIndex uint32
}

func (h recordHeader) marshal(b []byte) {
	_ = b[headerSize-1]
	binary.LittleEndian.PutUint16(b[0:], h.Type)
	binary.LittleEndian.PutUint16(b[2:], h.SizeDiv16)
	binary.LittleEndian.PutUint32(b[4:], h.DataIndex)
	binary.LittleEndian.PutUint32(b[8:], h.ParentIndex)
}

func unmarshalHeader(b []byte) recordHeader {
	_ = b[headerSize-1]
	return recordHeader{
		Type:        binary.LittleEndian.Uint16(b[0:]),
		SizeDiv16:   binary.LittleEndian.Uint16(b[2:]),
		DataIndex:   binary.LittleEndian.Uint32(b[4:]),
		ParentIndex: binary.LittleEndian.Uint32(b[8:]),
	}
}

// div16RoundUp rounds n up to the nearest multiple of 16 and returns it divided
// by 16, per the common_header.sizeDiv16 contract in spec.md §6.4.
func div16RoundUp(n int) uint16 {
	return uint16((n + 15) / 16)
}
