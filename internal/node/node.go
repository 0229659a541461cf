package node

import (
	"encoding/binary"
	"strings"

	"github.com/KrasK/coolreader/internal/types"
)

// Node is the uniform facade (spec.md C4) over one slot in a Tree: either an
// element or a text node, in either mutable or persistent representation.
// It is a small value type — a tree pointer plus a handle — so it is cheap
// to pass around; compare two nodes with Equal, which goes by slot.
type Node struct {
	t *Tree
	h types.NodeHandle
}

// Handle returns the node's current handle, with the persistent nibble bit
// always reflecting live state (spec.md invariant 3): persist()/modify()
// update the handle stored on the slot itself, so this re-reads it rather
// than trusting whatever handle n was constructed with.
func (n Node) Handle() types.NodeHandle {
	if n.IsNull() {
		return types.NullHandle
	}
	if n.h.IsElement() {
		return n.t.elemSlot(n.h).handle
	}
	return n.t.textSlot(n.h).handle
}

// Equal reports whether two nodes refer to the same slot in the same tree.
// Comparison is by slot, not raw handle bits, since the persistent nibble
// legitimately differs across a persist()/modify() call without the node's
// identity changing.
func (n Node) Equal(o Node) bool {
	return n.t == o.t && n.h.IsElement() == o.h.IsElement() && n.h.Slot() == o.h.Slot()
}

func (n Node) IsNull() bool { return n.t == nil || n.h.IsNull() }
func (n Node) IsElement() bool { return !n.IsNull() && n.h.IsElement() }
func (n Node) IsText() bool    { return !n.IsNull() && n.h.IsText() }
func (n Node) IsRoot() bool    { return !n.IsNull() && n.h == n.t.root }

// IsPersistent reports whether the node currently holds its content in
// chunk storage. This is determined by inspecting the slot, not n.h's
// persistent bit: Persist/Modify flip the bit only on the handle stored in
// the slot, so the handle value n was built from can be out of date.
func (n Node) IsPersistent() bool {
	if n.IsNull() {
		return false
	}
	if n.h.IsElement() {
		return n.t.elemSlot(n.h).mutable == nil
	}
	return n.t.textSlot(n.h).mutable == nil
}

// GetParent returns the parent node, or a null Node for the root (and for a
// null receiver).
func (n Node) GetParent() Node {
	if n.IsNull() {
		return Node{}
	}
	var parent types.NodeHandle
	if n.h.IsElement() {
		parent = n.t.elemSlot(n.h).parent
	} else {
		parent = n.t.textSlot(n.h).parent
	}
	return Node{t: n.t, h: parent}
}

// ParentIndex returns the raw handle value of the parent (0 for the root),
// matching the parentIndex field stored in a persisted record's header.
func (n Node) ParentIndex() uint32 { return uint32(n.GetParent().h) }

// IndexInParent returns n's position in its parent's child list, or -1 if n
// is the root or otherwise has no parent.
func (n Node) IndexInParent() int {
	p := n.GetParent()
	if p.IsNull() {
		return -1
	}
	children, err := p.childrenHandles()
	if err != nil {
		return -1
	}
	for i, c := range children {
		if c.Slot() == n.h.Slot() && c.IsElement() == n.h.IsElement() {
			return i
		}
	}
	return -1
}

func (n Node) childrenHandles() ([]types.NodeHandle, error) {
	if !n.IsElement() {
		return nil, nil
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		return e.mutable.children, nil
	}
	if e.persistentAddr == types.NilAddress {
		return nil, nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return nil, err
	}
	cc := elemChildCount(payload)
	out := make([]types.NodeHandle, cc)
	for i := 0; i < cc; i++ {
		out[i] = elemChild(payload, i)
	}
	return out, nil
}

// GetChildCount returns the number of children; always 0 for text nodes.
func (n Node) GetChildCount() (int, error) {
	if n.IsNull() || !n.IsElement() {
		return 0, nil
	}
	c, err := n.childrenHandles()
	return len(c), err
}

// GetChildNode returns the i'th child.
func (n Node) GetChildNode(i int) (Node, error) {
	if n.IsNull() {
		return Node{}, ErrNullNode
	}
	c, err := n.childrenHandles()
	if err != nil {
		return Node{}, err
	}
	if i < 0 || i >= len(c) {
		return Node{}, ErrChildIndex
	}
	return Node{t: n.t, h: c[i]}, nil
}

// InsertChildElement inserts a new mutable element child at position i (a
// negative i, or one past the last child, appends), converting the receiver
// to mutable first if needed.
func (n Node) InsertChildElement(i int, ns types.NsID, tag types.NameID) (Node, error) {
	if n.IsNull() {
		return Node{}, ErrNullNode
	}
	if !n.IsElement() {
		return Node{}, ErrNotElement
	}
	if err := n.Modify(); err != nil {
		return Node{}, err
	}
	e := n.t.elemSlot(n.h)
	child := n.t.allocMutableElement(n.h, ns, tag)
	m := e.mutable
	if i < 0 || i > len(m.children) {
		i = len(m.children)
	}
	m.children = append(m.children, types.NullHandle)
	copy(m.children[i+1:], m.children[i:])
	m.children[i] = child
	return Node{t: n.t, h: child}, nil
}

// InsertChildText inserts a new text child at position i. When
// Policy.UsePersistentText is set the child is created directly in
// persistent form; otherwise it starts mutable.
func (n Node) InsertChildText(i int, content string) (Node, error) {
	if n.IsNull() {
		return Node{}, ErrNullNode
	}
	if !n.IsElement() {
		return Node{}, ErrNotElement
	}
	if err := n.Modify(); err != nil {
		return Node{}, err
	}
	e := n.t.elemSlot(n.h)

	var child types.NodeHandle
	if n.t.Policy.UsePersistentText {
		slot := n.t.Texts.Alloc()
		addr, err := n.t.TextStore.Alloc(slot, n.h, encodeTextPayload([]byte(content)))
		if err != nil {
			n.t.Texts.Free(slot)
			return Node{}, err
		}
		child = types.NewHandle(slot, false, true)
		ts := n.t.Texts.Get(slot)
		ts.handle = child
		ts.parent = n.h
		ts.persistentAddr = addr
	} else {
		child = n.t.allocMutableText(n.h, content)
	}

	m := e.mutable
	if i < 0 || i > len(m.children) {
		i = len(m.children)
	}
	m.children = append(m.children, types.NullHandle)
	copy(m.children[i+1:], m.children[i:])
	m.children[i] = child
	return Node{t: n.t, h: child}, nil
}

// RemoveChild detaches the i'th child and returns it, still alive; the
// caller must call Destroy on it to actually free it.
func (n Node) RemoveChild(i int) (Node, error) {
	if n.IsNull() {
		return Node{}, ErrNullNode
	}
	if !n.IsElement() {
		return Node{}, ErrNotElement
	}
	if err := n.Modify(); err != nil {
		return Node{}, err
	}
	e := n.t.elemSlot(n.h)
	m := e.mutable
	if i < 0 || i >= len(m.children) {
		return Node{}, ErrChildIndex
	}
	child := m.children[i]
	m.children = append(m.children[:i], m.children[i+1:]...)
	cn := Node{t: n.t, h: child}
	debugAssert(cn.GetParent().Handle() == n.Handle(), "removeChild: child %v's parent does not point back to %v", child, n.h)
	if err := cn.setParentHandle(types.NullHandle); err != nil {
		return Node{}, err
	}
	return cn, nil
}

// MoveChildrenRangeTo moves children [lo, hi) from n to the end of dst's
// child list, converting both to mutable first.
func (n Node) MoveChildrenRangeTo(dst Node, lo, hi int) error {
	if n.IsNull() || dst.IsNull() {
		return ErrNullNode
	}
	if !n.IsElement() || !dst.IsElement() {
		return ErrNotElement
	}
	if err := n.Modify(); err != nil {
		return err
	}
	if err := dst.Modify(); err != nil {
		return err
	}
	se := n.t.elemSlot(n.h)
	de := n.t.elemSlot(dst.h)
	sm := se.mutable
	if lo < 0 || hi > len(sm.children) || lo > hi {
		return ErrChildIndex
	}
	moved := append([]types.NodeHandle(nil), sm.children[lo:hi]...)
	sm.children = append(sm.children[:lo], sm.children[hi:]...)
	dm := de.mutable
	dm.children = append(dm.children, moved...)
	for _, c := range moved {
		if err := (Node{t: n.t, h: c}).setParentHandle(dst.h); err != nil {
			return err
		}
	}
	return nil
}

func (n Node) setParentHandle(p types.NodeHandle) error {
	if n.h.IsElement() {
		e := n.t.elemSlot(n.h)
		e.parent = p
		if e.mutable == nil && e.persistentAddr != types.NilAddress {
			return n.t.ElemStore.SetParent(e.persistentAddr, p)
		}
		return nil
	}
	s := n.t.textSlot(n.h)
	s.parent = p
	if s.mutable == nil && s.persistentAddr != types.NilAddress {
		return n.t.TextStore.SetParent(s.persistentAddr, p)
	}
	return nil
}

// GetAttribute returns the string value of attribute (ns, id), or "" if
// absent.
func (n Node) GetAttribute(ns types.NsID, id types.AttrID) (string, error) {
	if n.IsNull() || !n.IsElement() {
		return "", nil
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		for _, a := range e.mutable.attrs {
			if a.ns == ns && a.id == id {
				return n.t.Values.NameOf(a.value), nil
			}
		}
		return "", nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return "", err
	}
	ac := elemAttrCount(payload)
	for i := 0; i < ac; i++ {
		a := elemAttr(payload, i)
		if a.ns == ns && a.id == id {
			return n.t.Values.NameOf(a.value), nil
		}
	}
	return "", nil
}

// SetAttributeValue sets attribute (ns, id) to value, interning it. If the
// receiver is persistent and the attribute already exists, the value is
// patched in place (fixed-size field); otherwise the receiver is converted
// to mutable first, since adding an attribute changes the record's size.
func (n Node) SetAttributeValue(ns types.NsID, id types.AttrID, value string) error {
	if n.IsNull() {
		return ErrNullNode
	}
	if !n.IsElement() {
		return ErrNotElement
	}
	valueID := n.t.Values.IDOf(value)
	e := n.t.elemSlot(n.h)
	if e.mutable == nil {
		payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
		if err != nil {
			return err
		}
		ac := elemAttrCount(payload)
		for i := 0; i < ac; i++ {
			a := elemAttr(payload, i)
			if a.ns == ns && a.id == id {
				setElemAttrValue(payload, i, valueID)
				return n.t.ElemStore.Modified(e.persistentAddr)
			}
		}
		if err := n.Modify(); err != nil {
			return err
		}
		e = n.t.elemSlot(n.h)
	}
	m := e.mutable
	for i := range m.attrs {
		if m.attrs[i].ns == ns && m.attrs[i].id == id {
			m.attrs[i].value = valueID
			return nil
		}
	}
	m.attrs = append(m.attrs, attr{ns: ns, id: id, value: valueID})
	return nil
}

func (n Node) GetNodeId() (types.NameID, error) {
	if n.IsNull() || !n.IsElement() {
		return 0, ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		return e.mutable.tag, nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return 0, err
	}
	return elemTag(payload), nil
}

// TagName returns the interned string for an element's tag id ("" for a
// text node or a null node).
func (n Node) TagName() string {
	if n.IsNull() || !n.IsElement() {
		return ""
	}
	tag, err := n.GetNodeId()
	if err != nil {
		return ""
	}
	return n.t.Names.NameOf(tag)
}

func (n Node) GetNodeNsId() (types.NsID, error) {
	if n.IsNull() || !n.IsElement() {
		return 0, ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		return e.mutable.ns, nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return 0, err
	}
	return elemNS(payload), nil
}

// SetNodeId patches the tag/namespace ids in place; these are fixed-size
// fields in both representations.
func (n Node) SetNodeId(ns types.NsID, id types.NameID) error {
	if n.IsNull() || !n.IsElement() {
		return ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		e.mutable.ns = ns
		e.mutable.tag = id
		return nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(payload[offTag:], uint16(id))
	binary.LittleEndian.PutUint16(payload[offNS:], uint16(ns))
	return n.t.ElemStore.Modified(e.persistentAddr)
}

// GetText returns a text node's own content, or — for an element — the
// concatenation of its descendant text in document order, with
// blockTextDelimiter inserted before a block-displayed child's contribution
// (spec.md §4.4: "optional block-level delimiter inserted between
// block-displayed children during collection"). GetText8 is the same
// operation: Go strings are always UTF-8, so there is no separate narrow
// encoding to expose.
func (n Node) GetText() (string, error) {
	if n.IsNull() {
		return "", nil
	}
	if n.h.IsText() {
		return n.getOwnText()
	}
	var buf strings.Builder
	if err := n.appendText(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// getOwnText returns a text node's content without descending into
// children (it has none); GetText's element branch never calls this
// directly on an element.
func (n Node) getOwnText() (string, error) {
	s := n.t.textSlot(n.h)
	if s.mutable != nil {
		return string(s.mutable), nil
	}
	payload, _, err := n.t.TextStore.Get(s.persistentAddr)
	if err != nil {
		return "", err
	}
	return string(decodeTextPayload(payload)), nil
}

// blockTextDelimiter separates a block-displayed child's aggregated text
// from whatever text GetText has already collected, per spec.md §4.4.
const blockTextDelimiter = "\n"

// appendText walks n's subtree in document order, writing every text leaf's
// content into buf and inserting blockTextDelimiter ahead of a
// block-displayed element child's contribution, provided buf already holds
// something for the delimiter to separate.
func (n Node) appendText(buf *strings.Builder) error {
	if n.h.IsText() {
		t, err := n.getOwnText()
		if err != nil {
			return err
		}
		buf.WriteString(t)
		return nil
	}
	count, err := n.GetChildCount()
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		child, err := n.GetChildNode(i)
		if err != nil {
			return err
		}
		if child.IsElement() {
			rm, err := child.GetRendMethod()
			if err != nil {
				return err
			}
			if buf.Len() > 0 && rm != types.RendInvisible && rm != types.RendInline {
				buf.WriteString(blockTextDelimiter)
			}
		}
		if err := child.appendText(buf); err != nil {
			return err
		}
	}
	return nil
}

func (n Node) GetText8() (string, error) { return n.GetText() }

// GetTextBytes returns a text node's content without copying it when the
// node is persistent: the returned slice aliases the chunk's decompressed
// buffer directly and is only valid until the next call that mutates or
// evicts that chunk (Modify, Persist, Free, or a cache compaction pass). A
// mutable node's backing slice is returned as-is, with the same caveat
// against the next SetText.
func (n Node) GetTextBytes() ([]byte, error) {
	if n.IsNull() || !n.h.IsText() {
		return nil, nil
	}
	s := n.t.textSlot(n.h)
	if s.mutable != nil {
		return s.mutable, nil
	}
	payload, _, err := n.t.TextStore.Get(s.persistentAddr)
	if err != nil {
		return nil, err
	}
	return decodeTextPayload(payload), nil
}

// SetText replaces a text node's content, converting a persistent node to
// mutable first.
func (n Node) SetText(content string) error {
	if n.IsNull() || !n.h.IsText() {
		return ErrNullNode
	}
	s := n.t.textSlot(n.h)
	if s.mutable != nil {
		s.mutable = []byte(content)
		return nil
	}
	if err := n.Modify(); err != nil {
		return err
	}
	n.t.textSlot(n.h).mutable = []byte(content)
	return nil
}

func (n Node) SetText8(content string) error { return n.SetText(content) }

// GetStyle returns the interned style blob, or nil if none is set.
func (n Node) GetStyle() ([]byte, error) {
	if n.IsNull() || !n.IsElement() {
		return nil, ErrNotElement
	}
	return n.t.Styles.Get(n.t.elemSlot(n.h).styleSlot), nil
}

// SetStyle interns data and releases any previously held style reference.
func (n Node) SetStyle(data []byte) error {
	if n.IsNull() || !n.IsElement() {
		return ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	old := e.styleSlot
	e.styleSlot = n.t.Styles.Intern(data)
	n.t.Styles.Release(old)
	return nil
}

// GetFont returns the interned font blob, or nil if none is set.
func (n Node) GetFont() ([]byte, error) {
	if n.IsNull() || !n.IsElement() {
		return nil, ErrNotElement
	}
	return n.t.Fonts.Get(n.t.elemSlot(n.h).fontSlot), nil
}

// SetFont interns data and releases any previously held font reference.
func (n Node) SetFont(data []byte) error {
	if n.IsNull() || !n.IsElement() {
		return ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	old := e.fontSlot
	e.fontSlot = n.t.Fonts.Intern(data)
	n.t.Fonts.Release(old)
	return nil
}

func (n Node) GetRendMethod() (types.RenderMethod, error) {
	if n.IsNull() || !n.IsElement() {
		return types.RendInvisible, ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		return e.mutable.rendMethod, nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return types.RendInvisible, err
	}
	return elemRendMethod(payload), nil
}

func (n Node) SetRendMethod(rm types.RenderMethod) error {
	if n.IsNull() || !n.IsElement() {
		return ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		e.mutable.rendMethod = rm
		return nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return err
	}
	payload[offRendMethod] = byte(rm)
	return n.t.ElemStore.Modified(e.persistentAddr)
}

func (n Node) GetRenderData() (types.RenderData, error) {
	if n.IsNull() || !n.IsElement() {
		return types.RenderData{}, ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		return e.mutable.renderData, nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return types.RenderData{}, err
	}
	return getRenderData(payload[offRenderData : offRenderData+renderDataSize]), nil
}

func (n Node) SetRenderData(rd types.RenderData) error {
	if n.IsNull() || !n.IsElement() {
		return ErrNotElement
	}
	e := n.t.elemSlot(n.h)
	if e.mutable != nil {
		e.mutable.renderData = rd
		return nil
	}
	payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
	if err != nil {
		return err
	}
	putRenderData(payload[offRenderData:offRenderData+renderDataSize], rd)
	return n.t.ElemStore.Modified(e.persistentAddr)
}

func (n Node) ClearRenderData() error { return n.SetRenderData(types.RenderData{}) }

// Persist converts a mutable node to its persistent (chunk-storage) form.
// A no-op if the node is already persistent.
func (n Node) Persist() error {
	if n.IsNull() {
		return ErrNullNode
	}
	if n.h.IsElement() {
		e := n.t.elemSlot(n.h)
		if e.mutable == nil {
			return nil
		}
		m := e.mutable
		payload := encodeElemPayload(m.ns, m.tag, m.attrs, m.children, m.rendMethod, m.renderData)
		addr, err := n.t.ElemStore.Alloc(n.h.Slot(), e.parent, payload)
		if err != nil {
			return err
		}
		e.persistentAddr = addr
		e.mutable = nil
		e.handle = e.handle.WithPersistent(true)
		return nil
	}
	s := n.t.textSlot(n.h)
	if s.mutable == nil {
		return nil
	}
	addr, err := n.t.TextStore.Alloc(n.h.Slot(), s.parent, encodeTextPayload(s.mutable))
	if err != nil {
		return err
	}
	s.persistentAddr = addr
	s.mutable = nil
	s.handle = s.handle.WithPersistent(true)
	return nil
}

// Modify converts a persistent node to its mutable (heap) form, freeing its
// chunk record. A no-op if the node is already mutable.
func (n Node) Modify() error {
	if n.IsNull() {
		return ErrNullNode
	}
	if n.h.IsElement() {
		e := n.t.elemSlot(n.h)
		if e.mutable != nil {
			return nil
		}
		payload, _, err := n.t.ElemStore.Get(e.persistentAddr)
		if err != nil {
			return err
		}
		ns, tag, attrs, children, rm, rd := decodeElem(payload)
		addr := e.persistentAddr
		e.mutable = &mutableElement{ns: ns, tag: tag, attrs: attrs, children: children, rendMethod: rm, renderData: rd}
		e.persistentAddr = types.NilAddress
		e.handle = e.handle.WithPersistent(false)
		return n.t.ElemStore.Free(addr)
	}
	s := n.t.textSlot(n.h)
	if s.mutable != nil {
		return nil
	}
	payload, _, err := n.t.TextStore.Get(s.persistentAddr)
	if err != nil {
		return err
	}
	content := append([]byte(nil), decodeTextPayload(payload)...)
	addr := s.persistentAddr
	s.mutable = content
	s.persistentAddr = types.NilAddress
	s.handle = s.handle.WithPersistent(false)
	return n.t.TextStore.Free(addr)
}

// Destroy recursively destroys an element's children, releases its style
// and font references, frees its storage record (if persistent), and
// returns its slot to the free list. For a text node it just frees the
// storage record (if any) and the slot.
func (n Node) Destroy() error {
	if n.IsNull() {
		return ErrNullNode
	}
	if n.h.IsElement() {
		e := n.t.elemSlot(n.h)
		children, err := n.childrenHandles()
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := (Node{t: n.t, h: c}).Destroy(); err != nil {
				return err
			}
		}
		if e.mutable == nil && e.persistentAddr != types.NilAddress {
			if err := n.t.ElemStore.Free(e.persistentAddr); err != nil {
				return err
			}
		}
		n.t.Styles.Release(e.styleSlot)
		n.t.Fonts.Release(e.fontSlot)
		n.t.Elements.Free(n.h.Slot())
		return nil
	}
	s := n.t.textSlot(n.h)
	if s.mutable == nil && s.persistentAddr != types.NilAddress {
		if err := n.t.TextStore.Free(s.persistentAddr); err != nil {
			return err
		}
	}
	n.t.Texts.Free(n.h.Slot())
	return nil
}
