package node

import (
	"encoding/binary"

	"github.com/KrasK/coolreader/internal/types"
)

// Byte offsets within an element record's payload (i.e. after the common
// header), matching the elem_record layout in spec.md §6.4:
//
//	id:u16 | nsid:u16 | attrCount:i16 | rendMethod:u8 | _:u8
//	| childCount:u32 | renderData(16 bytes)
//	| children[childCount]:u32
//	| attrs[attrCount]:{nsid:u16, id:u16, valueIdx:u16}
const (
	offTag         = 0
	offNS          = 2
	offAttrCount   = 4
	offRendMethod  = 6
	offChildCount  = 8
	offRenderData  = 12
	renderDataSize = 16
	elemFixedSize  = offRenderData + renderDataSize // 28
	attrRecordSize = 6
)

func encodeElemPayload(ns types.NsID, tag types.NameID, attrs []attr, children []types.NodeHandle, rendMethod types.RenderMethod, rd types.RenderData) []byte {
	size := elemFixedSize + 4*len(children) + attrRecordSize*len(attrs)
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b[offTag:], uint16(tag))
	binary.LittleEndian.PutUint16(b[offNS:], uint16(ns))
	binary.LittleEndian.PutUint16(b[offAttrCount:], uint16(int16(len(attrs))))
	b[offRendMethod] = byte(rendMethod)
	binary.LittleEndian.PutUint32(b[offChildCount:], uint32(len(children)))
	putRenderData(b[offRenderData:offRenderData+renderDataSize], rd)
	childOff := elemFixedSize
	for _, c := range children {
		binary.LittleEndian.PutUint32(b[childOff:], uint32(c))
		childOff += 4
	}
	attrOff := childOff
	for _, a := range attrs {
		binary.LittleEndian.PutUint16(b[attrOff:], uint16(a.ns))
		binary.LittleEndian.PutUint16(b[attrOff+2:], uint16(a.id))
		binary.LittleEndian.PutUint16(b[attrOff+4:], uint16(a.value))
		attrOff += attrRecordSize
	}
	return b
}

func putRenderData(b []byte, rd types.RenderData) {
	binary.LittleEndian.PutUint32(b[0:], uint32(rd.X))
	binary.LittleEndian.PutUint32(b[4:], uint32(rd.Y))
	binary.LittleEndian.PutUint32(b[8:], uint32(rd.Width))
	binary.LittleEndian.PutUint32(b[12:], uint32(rd.Height))
}

func getRenderData(b []byte) types.RenderData {
	return types.RenderData{
		X:      int32(binary.LittleEndian.Uint32(b[0:])),
		Y:      int32(binary.LittleEndian.Uint32(b[4:])),
		Width:  int32(binary.LittleEndian.Uint32(b[8:])),
		Height: int32(binary.LittleEndian.Uint32(b[12:])),
	}
}

func elemChildCount(b []byte) int {
	return int(binary.LittleEndian.Uint32(b[offChildCount:]))
}

func elemAttrCount(b []byte) int {
	return int(int16(binary.LittleEndian.Uint16(b[offAttrCount:])))
}

func elemTag(b []byte) types.NameID { return types.NameID(binary.LittleEndian.Uint16(b[offTag:])) }
func elemNS(b []byte) types.NsID    { return types.NsID(binary.LittleEndian.Uint16(b[offNS:])) }
func elemRendMethod(b []byte) types.RenderMethod {
	return types.RenderMethod(b[offRendMethod])
}

func elemChildrenOffset() int { return elemFixedSize }

func elemChild(b []byte, i int) types.NodeHandle {
	off := elemChildrenOffset() + 4*i
	return types.NodeHandle(binary.LittleEndian.Uint32(b[off:]))
}

func elemAttrsOffset(b []byte) int {
	return elemChildrenOffset() + 4*elemChildCount(b)
}

func elemAttr(b []byte, i int) attr {
	off := elemAttrsOffset(b) + attrRecordSize*i
	return attr{
		ns:    types.NsID(binary.LittleEndian.Uint16(b[off:])),
		id:    types.AttrID(binary.LittleEndian.Uint16(b[off+2:])),
		value: types.AttrValueID(binary.LittleEndian.Uint16(b[off+4:])),
	}
}

func setElemAttrValue(b []byte, i int, value types.AttrValueID) {
	off := elemAttrsOffset(b) + attrRecordSize*i + 4
	binary.LittleEndian.PutUint16(b[off:], uint16(value))
}

func decodeElem(b []byte) (ns types.NsID, tag types.NameID, attrs []attr, children []types.NodeHandle, rendMethod types.RenderMethod, rd types.RenderData) {
	ns = elemNS(b)
	tag = elemTag(b)
	rendMethod = elemRendMethod(b)
	rd = getRenderData(b[offRenderData : offRenderData+renderDataSize])
	cc := elemChildCount(b)
	children = make([]types.NodeHandle, cc)
	for i := 0; i < cc; i++ {
		children[i] = elemChild(b, i)
	}
	ac := elemAttrCount(b)
	attrs = make([]attr, ac)
	for i := 0; i < ac; i++ {
		attrs[i] = elemAttr(b, i)
	}
	return
}

// Text records: length:u16 | utf8_bytes[length], per spec.md §6.4.
func encodeTextPayload(s []byte) []byte {
	b := make([]byte, 2+len(s))
	binary.LittleEndian.PutUint16(b, uint16(len(s)))
	copy(b[2:], s)
	return b
}

func decodeTextPayload(b []byte) []byte {
	n := binary.LittleEndian.Uint16(b)
	return b[2 : 2+int(n)]
}
