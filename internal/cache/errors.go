package cache

import "golang.org/x/xerrors"

// Validation errors (spec.md §4.12): any of these aborts the load cleanly,
// and the caller falls back to re-parsing from the original source.
var (
	ErrMagic     = xerrors.New("cache: magic mismatch")
	ErrCRC       = xerrors.New("cache: CRC32 mismatch")
	ErrTruncated = xerrors.New("cache: file shorter than header")
	ErrSize      = xerrors.New("cache: recorded file size does not match buffer length")
)
