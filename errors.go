package coolreader

import (
	"errors"

	"github.com/KrasK/coolreader/internal/cache"
	"github.com/KrasK/coolreader/internal/node"
)

// Structural errors (§7): null-node access, out-of-range child index, and
// element-only operations on a text node. These are programmer errors.
// internal/node's facade methods return them as error values next to the
// zero value (null node, empty string); they are not swallowed and do not
// panic. A build tagged coolreader_debug adds a single fatal assertion, on a
// broken parent/child link in RemoveChild (see internal/node's
// debugAssert). ErrNotMutable and ErrDuplicateAttr are declared, but no
// node method returns them.
//
// These are aliases of the internal/node and internal/cache sentinels
// Document's own methods actually return — Root() hands back a node.Node
// directly, and OpenFromCache returns cache.Load's error unwrapped — so
// errors.Is(err, coolreader.ErrNullNode) (and friends) matches what callers
// of this package actually see.
var (
	ErrNullNode      = node.ErrNullNode
	ErrChildIndex    = node.ErrChildIndex
	ErrNotMutable    = node.ErrNotMutable
	ErrNotElement    = node.ErrNotElement
	ErrDuplicateAttr = node.ErrDuplicateAttr
	ErrCacheMagic    = cache.ErrMagic
	ErrCacheCRC      = cache.ErrCRC
	ErrCacheStale    = errors.New("coolreader: cache file does not match current source file")
)
