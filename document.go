// Package coolreader implements a small document-object-model engine for
// e-book-style markup: a chunked, cache-backed DOM (FictionBook/EPUB-shaped
// documents in mind, though the model is format-agnostic) with tiny-node
// handles, XPointer addressing, and a binary cache file format that lets a
// previously parsed document reload without re-running the parser.
//
// The root Document type wires together internal/node's tree, internal/
// builder's SAX-driven construction, internal/xpointer's addressing and
// internal/cache's save/load — the C8 "document container" role from the
// design this package follows.
package coolreader

import (
	"log"

	"github.com/google/renameio"
	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"

	"github.com/KrasK/coolreader/internal/builder"
	"github.com/KrasK/coolreader/internal/cache"
	"github.com/KrasK/coolreader/internal/content"
	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/xpointer"
)

// Verbose enables debugf logging for cache load/save.
// It mirrors the commented-out trace logging left in squashfs's reader: off
// by default, a single package-level flag to flip on for diagnosis.
var Verbose = false

func debugf(format string, args ...interface{}) {
	if Verbose {
		log.Printf(format, args...)
	}
}

// Document owns a tree's tables plus the builder that constructs it,
// corresponding to spec.md §4.8's "owns all tables, both storages, the
// tiny-node collection, and a root node".
type Document struct {
	tree    *node.Tree
	builder *builder.Builder
}

// NewDocument creates an empty document with a fresh mutable root element,
// ready to be fed through its Builder.
func NewDocument() *Document {
	tree := node.NewTree()
	return &Document{tree: tree, builder: builder.New(tree)}
}

// Tree returns the document's underlying node tree, for callers that need
// direct access to the interning tables or storage managers.
func (d *Document) Tree() *node.Tree { return d.tree }

// Builder returns the SAX-driven DOM builder that constructs this
// document; feed it parser callbacks (spec.md §6.1).
func (d *Document) Builder() *builder.Builder { return d.builder }

// Root returns the document's root element node.
func (d *Document) Root() node.Node { return d.tree.Root() }

// Persist walks the whole tree in document order, persisting every
// non-persistent node (spec.md §4.8 persist()). Required before
// SwapToCache, since the cache file's data section is a dump of the chunk
// storage managers and mutable (heap-only) nodes have no storage record.
func (d *Document) Persist() error {
	return persistSubtree(d.Root())
}

func persistSubtree(n node.Node) error {
	if n.IsElement() {
		cc, err := n.GetChildCount()
		if err != nil {
			return err
		}
		for i := 0; i < cc; i++ {
			c, err := n.GetChildNode(i)
			if err != nil {
				return err
			}
			if err := persistSubtree(c); err != nil {
				return err
			}
		}
	}
	return n.Persist()
}

// Compact requests both storage managers to compress cold chunks back down
// to MAX_UNCOMPRESSED, without reserving room for any pending allocation
// (spec.md §4.8 compact()).
func (d *Document) Compact() error {
	if err := d.tree.ElemStore.Compact(0); err != nil {
		return xerrors.Errorf("coolreader: compacting element storage: %w", err)
	}
	if err := d.tree.TextStore.Compact(0); err != nil {
		return xerrors.Errorf("coolreader: compacting text storage: %w", err)
	}
	return nil
}

// CreateXPointer parses an XPointer path string (spec.md §6.2 grammar)
// anchored at this document's tree.
func (d *Document) CreateXPointer(path string) (xpointer.Ex, error) {
	return xpointer.Parse(d.tree, path)
}

// ContentStream opens a read-seekable base64-decoded view over n's
// descendant text content (spec.md C9).
func (d *Document) ContentStream(n node.Node) (*content.Reader, error) {
	return content.NewReader(n)
}

// SwapToCache persists the document and atomically writes a cache file to
// dest (spec.md §4.8 swapToCache; §4.12 "out-of-space for the whole
// document triggers swap-to-cache"). props and pageTable are opaque to
// this package beyond round-tripping them; src identifies the original
// document this cache is valid for, checked by OpenFromCache.
func (d *Document) SwapToCache(dest string, props map[string]string, pageTable []byte, src cache.SourceInfo, render cache.RenderInfo) error {
	if err := d.Persist(); err != nil {
		return xerrors.Errorf("coolreader: persisting before cache swap: %w", err)
	}
	debugf("coolreader: swapping document to cache file %s", dest)
	buf, err := cache.Save(d.tree, props, pageTable, src, render)
	if err != nil {
		return xerrors.Errorf("coolreader: saving cache: %w", err)
	}
	f, err := renameio.TempFile("", dest)
	if err != nil {
		return xerrors.Errorf("coolreader: opening cache temp file: %w", err)
	}
	defer f.Cleanup()
	if _, err := f.Write(buf); err != nil {
		return xerrors.Errorf("coolreader: writing cache: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("coolreader: replacing cache file: %w", err)
	}
	return nil
}

// OpenFromCache loads a document previously written by SwapToCache from
// path, via a memory-mapped read, rejecting the cache if it was built from
// a different source file (size/CRC32 mismatch) — spec.md §4.12 "CRC
// mismatch or magic mismatch aborts the load, document falls back to
// re-parsing from source" extends naturally to a stale source check.
func OpenFromCache(path string, src cache.SourceInfo) (*Document, *cache.Result, error) {
	debugf("coolreader: opening cache file %s", path)
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, xerrors.Errorf("coolreader: opening cache: %w", err)
	}
	defer r.Close()
	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, nil, xerrors.Errorf("coolreader: reading cache: %w", err)
	}
	result, err := cache.Load(buf)
	if err != nil {
		return nil, nil, err
	}
	if result.Header.SrcFileSize != src.Size || result.Header.SrcFileCRC32 != src.CRC32 {
		return nil, nil, ErrCacheStale
	}
	doc := &Document{tree: result.Tree, builder: builder.New(result.Tree)}
	return doc, result, nil
}
