// Package xpointer implements XPointer/XPointerEx node-and-offset
// addressing and XRange/XRangeList range operations (spec.md C7) over the
// node facade.
package xpointer

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/xerrors"

	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/types"
)

// Unspecified marks an XPath-style whole-node pointer with no particular
// offset within it.
const Unspecified int32 = -1

// Pointer is the plain (NodeHandle, offset) address from spec.md §4.7. For
// an element, offset addresses an inter-child gap (0 = before first child);
// for text, a character index.
type Pointer struct {
	Node   node.Node
	Offset int32
}

// IsNull reports whether p addresses no node.
func (p Pointer) IsNull() bool { return p.Node.IsNull() }

// Ex caches p's ancestor-index path, turning it into a PointerEx.
func (p Pointer) Ex() Ex { return newEx(p.Node, p.Offset) }

// Ex is XPointerEx: a Pointer plus the vector of child indices from the
// root down to Node, so that navigation never has to re-walk parents.
type Ex struct {
	Pointer
	path []int32
}

func newEx(n node.Node, offset int32) Ex {
	var path []int32
	for cur := n; !cur.IsNull() && !cur.IsRoot(); {
		idx := cur.IndexInParent()
		if idx < 0 {
			break
		}
		path = append(path, int32(idx))
		cur = cur.GetParent()
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Ex{Pointer: Pointer{Node: n, Offset: offset}, path: path}
}

// New builds an XPointerEx over n at offset.
func New(n node.Node, offset int32) Ex { return newEx(n, offset) }

func withPath(n node.Node, offset int32, path []int32) Ex {
	return Ex{Pointer: Pointer{Node: n, Offset: offset}, path: path}
}

// Compare returns a document-order sign comparing a and b: -1 if a precedes
// b, +1 if it follows, 0 if equal, using path comparison with offset as
// tiebreaker (spec.md §4.7).
func Compare(a, b Ex) int {
	for i := 0; ; i++ {
		switch {
		case i >= len(a.path) && i >= len(b.path):
			if a.Offset == b.Offset {
				return 0
			}
			if a.Offset < b.Offset {
				return -1
			}
			return 1
		case i >= len(a.path):
			return -1
		case i >= len(b.path):
			return 1
		case a.path[i] != b.path[i]:
			if a.path[i] < b.path[i] {
				return -1
			}
			return 1
		}
	}
}

func (p Ex) childCount() int {
	cc, _ := p.Node.GetChildCount()
	return cc
}

// FirstChild returns the first child of p.Node.
func (p Ex) FirstChild() (Ex, bool) {
	if p.childCount() == 0 {
		return Ex{}, false
	}
	c, err := p.Node.GetChildNode(0)
	if err != nil {
		return Ex{}, false
	}
	return withPath(c, Unspecified, append(append([]int32{}, p.path...), 0)), true
}

// LastChild returns the last child of p.Node.
func (p Ex) LastChild() (Ex, bool) {
	n := p.childCount()
	if n == 0 {
		return Ex{}, false
	}
	c, err := p.Node.GetChildNode(n - 1)
	if err != nil {
		return Ex{}, false
	}
	return withPath(c, Unspecified, append(append([]int32{}, p.path...), int32(n-1))), true
}

// FirstElementChild returns the first child that is an element.
func (p Ex) FirstElementChild() (Ex, bool) {
	n := p.childCount()
	for i := 0; i < n; i++ {
		c, err := p.Node.GetChildNode(i)
		if err != nil {
			return Ex{}, false
		}
		if c.IsElement() {
			return withPath(c, Unspecified, append(append([]int32{}, p.path...), int32(i))), true
		}
	}
	return Ex{}, false
}

// LastElementChild returns the last child that is an element.
func (p Ex) LastElementChild() (Ex, bool) {
	n := p.childCount()
	for i := n - 1; i >= 0; i-- {
		c, err := p.Node.GetChildNode(i)
		if err != nil {
			return Ex{}, false
		}
		if c.IsElement() {
			return withPath(c, Unspecified, append(append([]int32{}, p.path...), int32(i))), true
		}
	}
	return Ex{}, false
}

// Parent returns p.Node's parent, or false at the root.
func (p Ex) Parent() (Ex, bool) {
	if len(p.path) == 0 {
		return Ex{}, false
	}
	parent := p.Node.GetParent()
	if parent.IsNull() {
		return Ex{}, false
	}
	return withPath(parent, Unspecified, p.path[:len(p.path)-1]), true
}

// Child returns the i'th child of p.Node.
func (p Ex) Child(i int) (Ex, bool) {
	if i < 0 || i >= p.childCount() {
		return Ex{}, false
	}
	c, err := p.Node.GetChildNode(i)
	if err != nil {
		return Ex{}, false
	}
	return withPath(c, Unspecified, append(append([]int32{}, p.path...), int32(i))), true
}

// Sibling returns the i'th child of p.Node's parent.
func (p Ex) Sibling(i int) (Ex, bool) {
	parent, ok := p.Parent()
	if !ok {
		return Ex{}, false
	}
	return parent.Child(i)
}

// NextSibling returns the next child of p.Node's parent.
func (p Ex) NextSibling() (Ex, bool) {
	if len(p.path) == 0 {
		return Ex{}, false
	}
	return p.Sibling(int(p.path[len(p.path)-1]) + 1)
}

// PrevSibling returns the previous child of p.Node's parent.
func (p Ex) PrevSibling() (Ex, bool) {
	if len(p.path) == 0 {
		return Ex{}, false
	}
	return p.Sibling(int(p.path[len(p.path)-1]) - 1)
}

// nextDoc steps to the next node in document (pre-order) traversal order.
func (p Ex) nextDoc() (Ex, bool) {
	if c, ok := p.FirstChild(); ok {
		return c, true
	}
	cur := p
	for {
		if s, ok := cur.NextSibling(); ok {
			return s, true
		}
		parent, ok := cur.Parent()
		if !ok {
			return Ex{}, false
		}
		cur = parent
	}
}

// prevDoc steps to the previous node in document traversal order.
func (p Ex) prevDoc() (Ex, bool) {
	s, ok := p.PrevSibling()
	if !ok {
		return p.Parent()
	}
	cur := s
	for {
		last, ok := cur.LastChild()
		if !ok {
			return cur, true
		}
		cur = last
	}
}

// NextElement returns the next element node in document order.
func (p Ex) NextElement() (Ex, bool) { return p.nextMatching((Ex).nextDoc, node.Node.IsElement) }

// PrevElement returns the previous element node in document order.
func (p Ex) PrevElement() (Ex, bool) { return p.nextMatching((Ex).prevDoc, node.Node.IsElement) }

// NextText returns the next text node in document order.
func (p Ex) NextText() (Ex, bool) { return p.nextMatching((Ex).nextDoc, node.Node.IsText) }

// PrevText returns the previous text node in document order.
func (p Ex) PrevText() (Ex, bool) { return p.nextMatching((Ex).prevDoc, node.Node.IsText) }

// NextVisibleText returns the next visible text node.
func (p Ex) NextVisibleText() (Ex, bool) {
	return p.nextMatching((Ex).nextDoc, func(n node.Node) bool { return n.IsText() && IsVisible(n) })
}

// PrevVisibleText returns the previous visible text node.
func (p Ex) PrevVisibleText() (Ex, bool) {
	return p.nextMatching((Ex).prevDoc, func(n node.Node) bool { return n.IsText() && IsVisible(n) })
}

// NextVisibleFinal returns the next visible "final" element (one whose
// rendMethod is RendFinal — a leaf of the block layout tree).
func (p Ex) NextVisibleFinal() (Ex, bool) { return p.nextMatching((Ex).nextDoc, isVisibleFinal) }

// PrevVisibleFinal returns the previous visible final element.
func (p Ex) PrevVisibleFinal() (Ex, bool) { return p.nextMatching((Ex).prevDoc, isVisibleFinal) }

func isVisibleFinal(n node.Node) bool {
	if !n.IsElement() {
		return false
	}
	rm, err := n.GetRendMethod()
	if err != nil || rm != types.RendFinal {
		return false
	}
	return IsVisible(n)
}

func (p Ex) nextMatching(step func(Ex) (Ex, bool), match func(node.Node) bool) (Ex, bool) {
	cur := p
	for {
		next, ok := step(cur)
		if !ok {
			return Ex{}, false
		}
		if match(next.Node) {
			return next, true
		}
		cur = next
	}
}

// IsVisible reports whether no element from n up to the root has
// rendMethod == RendInvisible (spec.md §4.7).
func IsVisible(n node.Node) bool {
	for cur := n; !cur.IsNull(); cur = cur.GetParent() {
		if cur.IsElement() {
			rm, err := cur.GetRendMethod()
			if err == nil && rm == types.RendInvisible {
				return false
			}
		}
	}
	return true
}

func isWordChar(r rune) bool { return !unicode.IsSpace(r) }

// NextVisibleWordStart returns the pointer just after the next
// space-to-non-space transition in the visible text following p.
func (p Ex) NextVisibleWordStart() (Ex, bool) { return p.wordBoundary(true, true) }

// NextVisibleWordEnd returns the pointer just after the next
// non-space-to-space transition in the visible text following p.
func (p Ex) NextVisibleWordEnd() (Ex, bool) { return p.wordBoundary(true, false) }

// PrevVisibleWordStart returns the pointer at the previous word start.
func (p Ex) PrevVisibleWordStart() (Ex, bool) { return p.wordBoundary(false, true) }

// PrevVisibleWordEnd returns the pointer at the previous word end.
func (p Ex) PrevVisibleWordEnd() (Ex, bool) { return p.wordBoundary(false, false) }

// wordBoundary walks the visible text stream from p in the given direction,
// looking for a space<->non-space transition (start looks for
// space-then-word, end looks for word-then-space).
func (p Ex) wordBoundary(forward, wantStart bool) (Ex, bool) {
	cur := p
	text, err := cur.Node.GetText()
	if err != nil {
		text = ""
	}
	offset := int(cur.Offset)
	if offset < 0 || offset > len(runesOf(text)) {
		offset = 0
	}
	runes := runesOf(text)

	step := 1
	if !forward {
		step = -1
	}
	for {
		for (forward && offset < len(runes)) || (!forward && offset > 0) {
			i := offset
			if !forward {
				i = offset - 1
			}
			prevSpace := i == 0 || !isWordChar(runes[i-1])
			curWord := i < len(runes) && isWordChar(runes[i])
			if wantStart && prevSpace && curWord {
				return withPath(cur.Node, int32(i), cur.path), true
			}
			curSpace := i >= len(runes) || !isWordChar(runes[i])
			prevWord := i > 0 && isWordChar(runes[i-1])
			if !wantStart && prevWord && curSpace {
				return withPath(cur.Node, int32(i), cur.path), true
			}
			offset += step
		}
		var next Ex
		var ok bool
		if forward {
			next, ok = cur.NextVisibleText()
		} else {
			next, ok = cur.PrevVisibleText()
		}
		if !ok {
			return Ex{}, false
		}
		cur = next
		text, _ = cur.Node.GetText()
		runes = runesOf(text)
		if forward {
			offset = 0
		} else {
			offset = len(runes)
		}
	}
}

func runesOf(s string) []rune { return []rune(s) }

// ancestorChain returns the nodes from the root's first real child down to
// p.Node (the wrapper root itself, tag 0, is never part of the rendered
// path, matching the grammar's examples which start directly with the
// document element).
func (p Ex) ancestorChain() []node.Node {
	var chain []node.Node
	for cur := p.Node; !cur.IsNull() && !cur.IsRoot(); cur = cur.GetParent() {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// needsIndex reports whether n needs an explicit [i] suffix: it does unless
// it is the only same-named (same tag, or text()) child of parent.
func needsIndex(parent, n node.Node) bool {
	if parent.IsNull() {
		return false
	}
	cc, _ := parent.GetChildCount()
	count := 0
	for i := 0; i < cc; i++ {
		c, err := parent.GetChildNode(i)
		if err != nil {
			continue
		}
		if n.IsText() {
			if c.IsText() {
				count++
			}
			continue
		}
		if c.IsElement() && c.TagName() == n.TagName() {
			count++
		}
	}
	return count > 1
}

// String serializes p as a path of the form /tag[i]/tag[i]/text()[i].offset,
// omitting the [i] index when it is unambiguous (the only child of its name
// among its siblings).
func (p Ex) String() string {
	var b strings.Builder
	for _, n := range p.ancestorChain() {
		parent := n.GetParent()
		idx := n.IndexInParent()
		b.WriteByte('/')
		if n.IsText() {
			b.WriteString("text()")
		} else {
			b.WriteString(n.TagName())
		}
		if needsIndex(parent, n) {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(idx + 1))
			b.WriteByte(']')
		}
	}
	if p.Offset >= 0 {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(int(p.Offset)))
	}
	return b.String()
}

// Parse parses a path string produced by String back into an XPointerEx
// over tree, per the grammar in spec.md §6.2.
func Parse(tree *node.Tree, s string) (Ex, error) {
	s = strings.TrimSpace(s)
	offset := Unspecified
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 {
		if n, err := strconv.Atoi(s[dot+1:]); err == nil {
			offset = int32(n)
			s = s[:dot]
		}
	}
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Ex{}, xerrors.New("xpointer: empty path")
	}

	cur := tree.Root()
	var path []int32
	for _, step := range strings.Split(s, "/") {
		name := step
		want := -1
		if lb := strings.IndexByte(step, '['); lb >= 0 {
			name = step[:lb]
			if rb := strings.IndexByte(step, ']'); rb > lb {
				if n, err := strconv.Atoi(step[lb+1 : rb]); err == nil {
					want = n
				}
			}
		}
		cc, err := cur.GetChildCount()
		if err != nil {
			return Ex{}, err
		}
		matchIdx := -1
		occurrence := 0
		for i := 0; i < cc; i++ {
			c, err := cur.GetChildNode(i)
			if err != nil {
				return Ex{}, err
			}
			var isMatch bool
			if name == "text()" {
				isMatch = c.IsText()
			} else {
				isMatch = c.IsElement() && c.TagName() == name
			}
			if !isMatch {
				continue
			}
			occurrence++
			if want == -1 || occurrence == want {
				matchIdx = i
				break
			}
		}
		if matchIdx == -1 {
			return Ex{}, xerrors.Errorf("xpointer: no match for step %q", step)
		}
		path = append(path, int32(matchIdx))
		child, err := cur.GetChildNode(matchIdx)
		if err != nil {
			return Ex{}, err
		}
		cur = child
	}
	return withPath(cur, int32(offset), path), nil
}
