// Package serial implements the framed byte buffer used to persist interning
// tables and cache sections (spec.md C10): fixed-endian integers,
// length-prefixed strings, magic markers and running CRC32 checkpoints. Once
// a read fails, every subsequent read on that buffer is a no-op returning
// the zero value — errors are sticky, per spec.md §4.10 and §7.
package serial

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// Writer accumulates a little-endian byte stream with typed append
// operations.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

func (w *Writer) PutUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) PutInt32(v int32) { w.PutUint32(uint32(v)) }

func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutString writes a {len:u32, utf8 bytes} string, per spec.md §6.3.
func (w *Writer) PutString(s string) {
	w.PutUint32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *Writer) PutBytes(b []byte) { w.buf.Write(b) }

// PutMagic writes a fixed magic marker value.
func (w *Writer) PutMagic(magic uint32) { w.PutUint32(magic) }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the accumulated byte stream.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// PutCRC appends the CRC32 (IEEE) of every byte written so far to fromOffset
// (inclusive). Callers bracket a section with PutMagic at fromOffset and
// PutCRC at the end to get the "magic + trailing CRC" framing spec.md
// requires for every cache section and interning table.
func (w *Writer) PutCRC(fromOffset int) uint32 {
	sum := crc32.ChecksumIEEE(w.buf.Bytes()[fromOffset:])
	w.PutUint32(sum)
	return sum
}

// Reader consumes a byte stream produced by Writer. A failed read poisons
// all subsequent reads (they return the zero value without consuming
// bytes); call Err after a sequence of reads to check whether any of them
// failed.
type Reader struct {
	b   []byte
	pos int
	err error
}

func NewReader(b []byte) *Reader { return &Reader{b: b} }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail() {
	if r.err == nil {
		r.err = ErrShortBuffer
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil || r.pos+n > len(r.b) {
		r.fail()
		return nil
	}
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) String() string {
	n := r.Uint32()
	if r.err != nil {
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// CheckMagic reads a magic marker and records an error if it doesn't match
// want.
func (r *Reader) CheckMagic(want uint32) bool {
	got := r.Uint32()
	if r.err != nil {
		return false
	}
	if got != want {
		r.err = ErrBadMagic
		return false
	}
	return true
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// CheckCRC reads a trailing CRC32 and compares it against the CRC32 of
// r.b[fromOffset:r.pos] (i.e. everything consumed since fromOffset).
func (r *Reader) CheckCRC(fromOffset int) bool {
	if r.err != nil {
		return false
	}
	want := crc32.ChecksumIEEE(r.b[fromOffset:r.pos])
	got := r.Uint32()
	if r.err != nil {
		return false
	}
	if got != want {
		r.err = ErrBadCRC
		return false
	}
	return true
}
