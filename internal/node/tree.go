// Package node implements the uniform node facade (spec.md C4) over the two
// concrete representations — mutable (heap-owned) and persistent (chunk
// storage) — for both element and text nodes, backed by the tiny-node slabs
// (C3), chunked storage managers (C2) and interning/style caches (C1/C5).
package node

import (
	"github.com/KrasK/coolreader/internal/intern"
	"github.com/KrasK/coolreader/internal/slab"
	"github.com/KrasK/coolreader/internal/storage"
	"github.com/KrasK/coolreader/internal/stylecache"
	"github.com/KrasK/coolreader/internal/types"
)

// Policy bundles the document-wide behavior toggles the node facade
// consults (spec.md §4.4 "policy USE_PERSISTENT_TEXT").
type Policy struct {
	// UsePersistentText, when true, makes newly inserted text children
	// persistent immediately instead of mutable.
	UsePersistentText bool
}

// Tree owns every table a document needs to give nodes identity and
// content: the element/text tiny-node slabs, the element/text chunked
// storage managers, the four interning tables, and the style/font caches.
// It corresponds to spec.md C8's "owns all tables, both storages, the
// tiny-node collection" responsibility; the root package's Document adds
// cache I/O orchestration on top.
type Tree struct {
	Elements *slab.Slab[ElementSlot, *ElementSlot]
	Texts    *slab.Slab[TextSlot, *TextSlot]

	ElemStore *storage.Manager
	TextStore *storage.Manager

	Names  *intern.Table[types.NameID]
	Attrs  *intern.Table[types.AttrID]
	NS     *intern.Table[types.NsID]
	Values *intern.Table[types.AttrValueID]

	Styles *stylecache.Cache
	Fonts  *stylecache.Cache

	Policy Policy

	root types.NodeHandle
}

// NewTree creates an empty tree with one mutable root element.
func NewTree() *Tree {
	t := &Tree{
		Elements:  slab.New[ElementSlot, *ElementSlot](),
		Texts:     slab.New[TextSlot, *TextSlot](),
		ElemStore: storage.NewManager(storage.RecordElem),
		TextStore: storage.NewManager(storage.RecordText),
		Names:     intern.NewElementNames(),
		Attrs:     intern.NewAttrNames(),
		NS:        intern.NewNamespaces(),
		Values:    intern.NewAttrValues(),
		Styles:    stylecache.New(),
		Fonts:     stylecache.New(),
	}
	root := t.allocMutableElement(types.NullHandle, 0, 0)
	t.root = root
	return t
}

// NewEmptyTree creates a tree with every table initialized but no root node
// allocated yet, for use by a cache loader that is about to call
// LoadChunks on ElemStore/TextStore followed by RestoreFromStorage.
func NewEmptyTree() *Tree {
	return &Tree{
		Elements:  slab.New[ElementSlot, *ElementSlot](),
		Texts:     slab.New[TextSlot, *TextSlot](),
		ElemStore: storage.NewManager(storage.RecordElem),
		TextStore: storage.NewManager(storage.RecordText),
		Names:     intern.NewElementNames(),
		Attrs:     intern.NewAttrNames(),
		NS:        intern.NewNamespaces(),
		Values:    intern.NewAttrValues(),
		Styles:    stylecache.New(),
		Fonts:     stylecache.New(),
	}
}

// Root returns the document's root node.
func (t *Tree) Root() Node { return Node{t: t, h: t.root} }

// Node wraps a handle into a node facade value bound to t.
func (t *Tree) Node(h types.NodeHandle) Node { return Node{t: t, h: h} }

func (t *Tree) allocMutableElement(parent types.NodeHandle, ns types.NsID, tag types.NameID) types.NodeHandle {
	slot := t.Elements.Alloc()
	h := types.NewHandle(slot, true, false)
	e := t.Elements.Get(slot)
	e.handle = h
	e.parent = parent
	e.mutable = &mutableElement{ns: ns, tag: tag}
	e.persistentAddr = types.NilAddress
	return h
}

func (t *Tree) allocMutableText(parent types.NodeHandle, content string) types.NodeHandle {
	slot := t.Texts.Alloc()
	h := types.NewHandle(slot, false, false)
	s := t.Texts.Get(slot)
	s.handle = h
	s.parent = parent
	s.mutable = []byte(content)
	s.persistentAddr = types.NilAddress
	return h
}

// RestoreFromStorage rebuilds the element and text tiny-node slabs after
// ElemStore/TextStore have been repopulated by storage.Manager.LoadChunks,
// by walking every live record and reconstructing its slot at the record
// header's dataIndex (spec.md §4.11: "each record's dataIndex places its
// pointer into the correct tiny-node slot"). root is the persistent handle
// of the document root, recovered by the caller from the cache header.
// Style and font slots are left at 0 (no style): the cache file's
// styleHash only tells the caller whether a re-style pass is needed, it
// does not carry per-node style/font assignments.
func (t *Tree) RestoreFromStorage(root types.NodeHandle) error {
	if err := t.ElemStore.ForEach(func(addr types.StorageAddress, dataIndex, parent uint32, _ []byte) error {
		t.Elements.Restore(dataIndex, ElementSlot{
			handle:         types.NewHandle(dataIndex, true, true),
			parent:         types.NodeHandle(parent),
			persistentAddr: addr,
		})
		return nil
	}); err != nil {
		return err
	}
	if err := t.TextStore.ForEach(func(addr types.StorageAddress, dataIndex, parent uint32, _ []byte) error {
		t.Texts.Restore(dataIndex, TextSlot{
			handle:         types.NewHandle(dataIndex, false, true),
			parent:         types.NodeHandle(parent),
			persistentAddr: addr,
		})
		return nil
	}); err != nil {
		return err
	}
	t.root = root
	return nil
}

// elemSlot returns the slab entry for an element handle.
func (t *Tree) elemSlot(h types.NodeHandle) *ElementSlot {
	return t.Elements.Get(h.Slot())
}

// textSlot returns the slab entry for a text handle.
func (t *Tree) textSlot(h types.NodeHandle) *TextSlot {
	return t.Texts.Get(h.Slot())
}
