package node

import "golang.org/x/xerrors"

// Sentinel errors returned by the node facade. The root package re-exports
// these under its own names (spec.md C4's public error surface) rather than
// forcing callers to import this internal package.
var (
	ErrNullNode      = xerrors.New("node: operation on a null node")
	ErrChildIndex    = xerrors.New("node: child index out of range")
	ErrNotElement    = xerrors.New("node: not an element node")
	ErrNotMutable    = xerrors.New("node: node is persistent")
	ErrDuplicateAttr = xerrors.New("node: duplicate attribute")
)
