package node

import "github.com/KrasK/coolreader/internal/types"

// attr is one (namespace, name) -> interned value entry in a mutable
// element's attribute collection. spec.md §3.3 requires (nsId, attrId) to
// be unique within one element.
type attr struct {
	ns    types.NsID
	id    types.AttrID
	value types.AttrValueID
}

// mutableElement is the heap-owned record backing a MutableElement node
// (spec.md §3.2).
type mutableElement struct {
	ns         types.NsID
	tag        types.NameID
	children   []types.NodeHandle
	attrs      []attr
	rendMethod types.RenderMethod
	renderData types.RenderData
}

// ElementSlot is one entry of the element tiny-node slab. Exactly one of
// mutable (heap record) or persistentAddr (chunk record) is live at a time;
// the node facade decides which by nil-checking mutable: a nil mutable
// means the chunk record at persistentAddr is current.
type ElementSlot struct {
	handle types.NodeHandle
	parent types.NodeHandle

	mutable        *mutableElement
	persistentAddr types.StorageAddress

	styleSlot uint32
	fontSlot  uint32

	next uint32 // free-list link
}

func (e *ElementSlot) NextFree() uint32     { return e.next }
func (e *ElementSlot) SetNextFree(n uint32) { e.next = n }

// TextSlot is one entry of the text tiny-node slab.
type TextSlot struct {
	handle types.NodeHandle
	parent types.NodeHandle

	mutable        []byte // nil when persistent
	persistentAddr types.StorageAddress

	next uint32
}

func (t *TextSlot) NextFree() uint32     { return t.next }
func (t *TextSlot) SetNextFree(n uint32) { t.next = n }
