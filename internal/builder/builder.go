// Package builder implements the SAX-driven DOM builder (spec.md C6): a
// stack of in-progress element writers fed by onTagOpen/onAttribute/onText/
// onTagClose events, with an optional loose-HTML auto-close filter layered
// on top.
package builder

import (
	"strings"

	"golang.org/x/xerrors"

	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/types"
)

// TextFlags mirrors the onText flag bits from spec.md §6.1.
type TextFlags uint32

const (
	NoSpaceText TextFlags = 1 << iota
	PreText
	PreParaSplitting
	TrimText
)

type frame struct {
	n             node.Node
	preserveSpace bool
}

// Builder drives DOM construction from SAX-style parser callbacks. It is
// not safe for concurrent use, matching the single-threaded document model
// (spec.md §5).
type Builder struct {
	tree *node.Tree

	stack []frame

	headerOnlyTag string
	stopped       bool

	unbalancedClose bool

	useHTMLHacks bool
	autoClose    map[string][]string

	encodingName string
}

// New creates a Builder that appends onto tree's root.
func New(tree *node.Tree) *Builder {
	b := &Builder{tree: tree}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.stack = []frame{{n: b.tree.Root()}}
	b.stopped = false
	b.unbalancedClose = false
}

// SetHeaderOnly stops parsing once tagName's closing tag is seen (used for
// e.g. FictionBook's "description" element).
func (b *Builder) SetHeaderOnly(tagName string) { b.headerOnlyTag = tagName }

// SetAutoClose installs the loose-HTML auto-close rule table: for each key
// tag, the listed ancestor tags force an implicit close when the key tag is
// opened while that ancestor is still on the stack. Passing a non-empty
// table also turns on the small site-specific HTML hacks (br/pre
// substitution, right-aligned table discard).
func (b *Builder) SetAutoClose(rules map[string][]string) {
	b.autoClose = rules
	b.useHTMLHacks = len(rules) > 0
}

// UnbalancedClose reports whether any onTagClose call failed to find a
// matching open tag. The caller should check this after OnStop.
func (b *Builder) UnbalancedClose() bool { return b.unbalancedClose }

// Stop cooperatively cancels parsing: subsequent OnTagOpen, OnAttribute,
// OnText and OnTagClose calls become no-ops until the next OnStart.
func (b *Builder) Stop() { b.stopped = true }

// Stopped reports whether parsing has stopped, either via Stop or because
// the header-only tag closed.
func (b *Builder) Stopped() bool { return b.stopped }

func (b *Builder) top() *frame { return &b.stack[len(b.stack)-1] }

// nsID maps a parser namespace name to its ID; the empty name (no
// namespace) is NsID 0.
func (b *Builder) nsID(nsName string) types.NsID {
	if nsName == "" {
		return 0
	}
	return b.tree.NS.IDOf(nsName)
}

// OnStart (re)initializes the builder for a fresh parse.
func (b *Builder) OnStart() { b.reset() }

// OnTagOpen creates a new child element under the current stack top and
// pushes it, after running the auto-close filter (if installed).
func (b *Builder) OnTagOpen(nsName, tagName string) error {
	if b.stopped {
		return nil
	}
	if b.useHTMLHacks {
		tagName = htmlHackSubstitute(tagName)
	}
	tag := b.tree.Names.IDOf(tagName)
	if b.autoClose != nil {
		if err := b.applyAutoClose(tagName); err != nil {
			return err
		}
	}
	ns := b.nsID(nsName)
	top := b.top().n
	child, err := top.InsertChildElement(-1, ns, tag)
	if err != nil {
		return xerrors.Errorf("builder: onTagOpen %q: %w", tagName, err)
	}
	preserve := b.top().preserveSpace || strings.EqualFold(tagName, "pre")
	b.stack = append(b.stack, frame{n: child, preserveSpace: preserve})
	return nil
}

// htmlHackSubstitute implements the small site-specific tag substitutions
// mentioned in spec.md §4.6: <br> becomes <p>, <pre> becomes <div> (the
// layout engine these hacks originally served renders both the same way,
// but only one of them participates in reflow).
func htmlHackSubstitute(tagName string) string {
	switch strings.ToLower(tagName) {
	case "br":
		return "p"
	case "pre":
		return "div"
	}
	return tagName
}

// applyAutoClose pops the stack (persisting each popped frame) through the
// nearest ancestor that forces an implicit close of newTag, if any.
func (b *Builder) applyAutoClose(newTagName string) error {
	ancestors := b.autoClose[strings.ToLower(newTagName)]
	if len(ancestors) == 0 {
		return nil
	}
	for i := len(b.stack) - 1; i >= 1; i-- {
		tag, err := b.stack[i].n.GetNodeId()
		if err != nil {
			return err
		}
		name := b.tree.Names.NameOf(tag)
		if !containsFold(ancestors, name) {
			continue
		}
		for j := len(b.stack) - 1; j >= i; j-- {
			if err := b.stack[j].n.Persist(); err != nil {
				return err
			}
		}
		b.stack = b.stack[:i]
		return nil
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// OnAttribute sets an attribute on the current stack top.
func (b *Builder) OnAttribute(nsName, attrName, value string) error {
	if b.stopped {
		return nil
	}
	ns := b.nsID(nsName)
	id := b.tree.Attrs.IDOf(attrName)
	if err := b.top().n.SetAttributeValue(ns, id, value); err != nil {
		return xerrors.Errorf("builder: onAttribute %q: %w", attrName, err)
	}
	return nil
}

// OnText appends a text child under the current stack top, applying
// whitespace normalization per flags and the top frame's inherited
// preserve-space state.
func (b *Builder) OnText(buf string, flags TextFlags) error {
	if b.stopped {
		return nil
	}
	top := b.top()
	preserve := top.preserveSpace || flags&PreText != 0
	if flags&NoSpaceText != 0 && strings.TrimSpace(buf) == "" {
		return nil
	}
	if flags&TrimText != 0 {
		buf = strings.TrimSpace(buf)
	}
	if !preserve {
		buf = collapseWhitespace(buf)
	}
	if buf == "" {
		return nil
	}
	if _, err := top.n.InsertChildText(-1, buf); err != nil {
		return xerrors.Errorf("builder: onText: %w", err)
	}
	return nil
}

// collapseWhitespace replaces every run of Unicode whitespace with a single
// space, the default HTML-style text normalization for non-PRE content.
func collapseWhitespace(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// OnTagClose pops the stack until an element with matching tag is on top,
// persisting each popped element. If no match is found, the close is
// dropped and UnbalancedClose latches true, but parsing continues.
func (b *Builder) OnTagClose(nsName, tagName string) error {
	if b.stopped {
		return nil
	}
	ns := b.nsID(nsName)
	tag := b.tree.Names.IDOf(tagName)

	idx := -1
	for i := len(b.stack) - 1; i >= 1; i-- {
		id, err := b.stack[i].n.GetNodeId()
		if err != nil {
			return err
		}
		nsid, err := b.stack[i].n.GetNodeNsId()
		if err != nil {
			return err
		}
		if id == tag && nsid == ns {
			idx = i
			break
		}
	}
	if idx == -1 {
		b.unbalancedClose = true
		return nil
	}

	if b.useHTMLHacks && strings.EqualFold(tagName, "table") {
		if align, err := b.stack[idx].n.GetAttribute(0, b.tree.Attrs.IDOf("align")); err == nil && strings.EqualFold(align, "right") {
			return b.discardFrame(idx)
		}
	}

	for i := len(b.stack) - 1; i >= idx; i-- {
		if err := b.stack[i].n.Persist(); err != nil {
			return err
		}
	}
	b.stack = b.stack[:idx]

	if b.headerOnlyTag != "" && strings.EqualFold(tagName, b.headerOnlyTag) {
		b.stopped = true
	}
	return nil
}

// discardFrame removes stack[idx] (a right-aligned table, per the HTML
// hack) from its parent and destroys it instead of persisting it.
func (b *Builder) discardFrame(idx int) error {
	target := b.stack[idx].n
	b.stack = b.stack[:idx]
	parent := target.GetParent()
	pos := target.IndexInParent()
	if pos < 0 {
		return nil
	}
	removed, err := parent.RemoveChild(pos)
	if err != nil {
		return err
	}
	return removed.Destroy()
}

// OnEncoding records the parser's advisory encoding hint. It has no effect
// on tree construction.
func (b *Builder) OnEncoding(name, alias string) { b.encodingName = name }

// Encoding returns the last encoding name seen via OnEncoding.
func (b *Builder) Encoding() string { return b.encodingName }

// OnStop pops and persists the remaining stack, including the root.
func (b *Builder) OnStop() error {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if err := b.stack[i].n.Persist(); err != nil {
			return err
		}
	}
	b.stack = b.stack[:0]
	b.stopped = true
	return nil
}
