package serial

import "errors"

var (
	// ErrShortBuffer is returned when a read runs past the end of the buffer.
	ErrShortBuffer = errors.New("serial: short buffer")
	// ErrBadMagic is returned when a magic marker doesn't match.
	ErrBadMagic = errors.New("serial: magic mismatch")
	// ErrBadCRC is returned when a trailing CRC32 doesn't match.
	ErrBadCRC = errors.New("serial: crc mismatch")
)
