package xpointer

import (
	"sort"
	"strings"
	"unicode"

	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/types"
)

// XRange is an ordered pair of pointers plus a caller-defined flag set
// (spec.md §4.7), e.g. for marking a selection or a highlight.
type XRange struct {
	Start, End Ex
	Flags      uint32
}

// Sort returns r with Start <= End in document order.
func (r XRange) Sort() XRange {
	if Compare(r.Start, r.End) <= 0 {
		return r
	}
	return XRange{Start: r.End, End: r.Start, Flags: r.Flags}
}

// Intersects reports whether r and o overlap.
func (r XRange) Intersects(o XRange) bool {
	a, b := r.Sort(), o.Sort()
	return Compare(a.Start, b.End) <= 0 && Compare(b.Start, a.End) <= 0
}

// Intersection returns the overlapping sub-range of r and o, with flags
// OR-ed, or false if they don't intersect.
func (r XRange) Intersection(o XRange) (XRange, bool) {
	a, b := r.Sort(), o.Sort()
	if !a.Intersects(b) {
		return XRange{}, false
	}
	start := a.Start
	if Compare(b.Start, start) > 0 {
		start = b.Start
	}
	end := a.End
	if Compare(b.End, end) < 0 {
		end = b.End
	}
	return XRange{Start: start, End: end, Flags: a.Flags | b.Flags}, true
}

// advanceSkippingChildren steps to the next node in document order without
// descending into cur's children (used when ForEach's onElement callback
// declines to recurse).
func advanceSkippingChildren(cur Ex) (Ex, bool) {
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

// ForEach walks r in document order, calling onElement for each element
// (if it returns false, that element's children are skipped) and onText
// for each text node.
func (r XRange) ForEach(onElement func(Ex) bool, onText func(XRange)) {
	sorted := r.Sort()
	cur := sorted.Start
	for {
		atEnd := cur.Node.Equal(sorted.End.Node)
		descend := true
		if cur.Node.IsElement() {
			if onElement != nil {
				descend = onElement(cur)
			}
		} else if onText != nil {
			onText(XRange{Start: cur, End: cur, Flags: sorted.Flags})
		}
		if atEnd {
			return
		}
		var next Ex
		var ok bool
		if descend {
			next, ok = cur.nextDoc()
		} else {
			next, ok = advanceSkippingChildren(cur)
		}
		if !ok {
			return
		}
		cur = next
	}
}

// GetRangeText flattens r to text using visibility rules, inserting
// blockDelim before the text of each visible block-level element, and
// truncating to maxLen bytes (0 = unbounded).
func (r XRange) GetRangeText(blockDelim string, maxLen int) (string, error) {
	var b strings.Builder
	var outerErr error
	r.ForEach(func(e Ex) bool {
		if !IsVisible(e.Node) {
			return false
		}
		rm, _ := e.Node.GetRendMethod()
		if (rm == types.RendBlock || rm == types.RendFinal) && b.Len() > 0 {
			b.WriteString(blockDelim)
		}
		return true
	}, func(tr XRange) {
		if !IsVisible(tr.Start.Node) {
			return
		}
		txt, err := tr.Start.Node.GetText()
		if err != nil {
			outerErr = err
			return
		}
		b.WriteString(txt)
	})
	s := b.String()
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s, outerErr
}

// Word is one alpha run found by GetRangeWords or one match found by
// FindText, with the sub-range it occupies.
type Word struct {
	Text  string
	Range XRange
}

// GetRangeWords collects word-granularity (alpha run) spans in r. Words are
// found independently within each visible text node; a word that happens to
// span two adjacent text nodes is reported as two words, matching the
// node-local nature of the underlying text records.
func (r XRange) GetRangeWords() ([]Word, error) {
	var words []Word
	var outerErr error
	r.ForEach(func(e Ex) bool { return IsVisible(e.Node) }, func(tr XRange) {
		if !IsVisible(tr.Start.Node) {
			return
		}
		txt, err := tr.Start.Node.GetText()
		if err != nil {
			outerErr = err
			return
		}
		runes := []rune(txt)
		i := 0
		for i < len(runes) {
			if !unicode.IsLetter(runes[i]) {
				i++
				continue
			}
			j := i
			for j < len(runes) && unicode.IsLetter(runes[j]) {
				j++
			}
			words = append(words, Word{
				Text:  string(runes[i:j]),
				Range: XRange{Start: withPath(tr.Start.Node, int32(i), tr.Start.path), End: withPath(tr.Start.Node, int32(j), tr.Start.path), Flags: tr.Flags},
			})
			i = j
		}
	})
	return words, outerErr
}

// FindText performs a naive forward search for pattern across r's visible
// text nodes (not across node boundaries), returning every occurrence up to
// max (0 = unbounded).
func (r XRange) FindText(pattern string, caseInsensitive bool, max int) ([]Word, error) {
	if pattern == "" {
		return nil, nil
	}
	needle := []rune(pattern)
	if caseInsensitive {
		needle = []rune(strings.ToLower(pattern))
	}
	var results []Word
	var outerErr error
	r.ForEach(func(e Ex) bool { return IsVisible(e.Node) }, func(tr XRange) {
		if max > 0 && len(results) >= max {
			return
		}
		if !IsVisible(tr.Start.Node) {
			return
		}
		txt, err := tr.Start.Node.GetText()
		if err != nil {
			outerErr = err
			return
		}
		runes := []rune(txt)
		hay := runes
		if caseInsensitive {
			hay = []rune(strings.ToLower(txt))
		}
		i := 0
		for i+len(needle) <= len(hay) {
			if max > 0 && len(results) >= max {
				return
			}
			if runesEqual(hay[i:i+len(needle)], needle) {
				results = append(results, Word{
					Text:  string(runes[i : i+len(needle)]),
					Range: XRange{Start: withPath(tr.Start.Node, int32(i), tr.Start.path), End: withPath(tr.Start.Node, int32(i+len(needle)), tr.Start.path), Flags: tr.Flags},
				})
				i += len(needle)
				continue
			}
			i++
		}
	})
	return results, outerErr
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetNearestCommonParent returns the deepest node that is an ancestor of
// (or equal to) both r.Start.Node and r.End.Node.
func (r XRange) GetNearestCommonParent() node.Node {
	sorted := r.Sort()
	a, b := sorted.Start.path, sorted.End.path
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	common := 0
	for common < n && a[common] == b[common] {
		common++
	}
	cur := sorted.Start
	for len(cur.path) > common {
		p, ok := cur.Parent()
		if !ok {
			break
		}
		cur = p
	}
	return cur.Node
}

// GetWordRange expands p to the enclosing whitespace-delimited word within
// its text node.
func GetWordRange(p Ex) (XRange, error) {
	txt, err := p.Node.GetText()
	if err != nil {
		return XRange{}, err
	}
	runes := []rune(txt)
	off := int(p.Offset)
	if off < 0 || off > len(runes) {
		off = 0
	}
	start := off
	for start > 0 && isWordChar(runes[start-1]) {
		start--
	}
	end := off
	for end < len(runes) && isWordChar(runes[end]) {
		end++
	}
	return XRange{
		Start: withPath(p.Node, int32(start), p.path),
		End:   withPath(p.Node, int32(end), p.path),
	}, nil
}

// RangeList holds a set of ranges (spec.md §4.7 XRangeList).
type RangeList []XRange

// Split inserts r into the list, splitting every intersecting entry into up
// to three pieces (before/overlap/after) so that afterward every point is
// covered by at most one entry, with flags OR-ed across the overlap
// (spec.md §4.7, invariant 10: "the union of resulting ranges equals the
// union of inputs"). remaining tracks the portion of the new range not yet
// accounted for by some entry, so that a piece of r left uncovered by any
// intersecting entry — whether a gap between two old entries, or r's own
// tail once it outlasts every entry that touches it — still makes it into
// the output instead of being silently dropped.
func (l RangeList) Split(r XRange) RangeList {
	sorted := r.Sort()
	ordered := make(RangeList, len(l))
	copy(ordered, l)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Compare(ordered[i].Sort().Start, ordered[j].Sort().Start) < 0
	})

	out := make(RangeList, 0, len(l)+2)
	remaining := sorted
	for _, e := range ordered {
		es := e.Sort()
		if Compare(remaining.Start, remaining.End) >= 0 || !es.Intersects(remaining) {
			out = append(out, e)
			continue
		}
		// A gap in the new range before this entry starts belongs to r alone.
		if Compare(remaining.Start, es.Start) < 0 {
			out = append(out, XRange{Start: remaining.Start, End: es.Start, Flags: remaining.Flags})
			remaining.Start = es.Start
		}
		if Compare(es.Start, remaining.Start) < 0 {
			out = append(out, XRange{Start: es.Start, End: remaining.Start, Flags: es.Flags})
		}
		lo := es.Start
		if Compare(remaining.Start, lo) > 0 {
			lo = remaining.Start
		}
		hi := es.End
		if Compare(remaining.End, hi) < 0 {
			hi = remaining.End
		}
		out = append(out, XRange{Start: lo, End: hi, Flags: es.Flags | remaining.Flags})
		if Compare(es.End, remaining.End) > 0 {
			out = append(out, XRange{Start: remaining.End, End: es.End, Flags: es.Flags})
			remaining.Start = remaining.End
		} else {
			remaining.Start = hi
		}
	}
	if Compare(remaining.Start, remaining.End) < 0 {
		out = append(out, remaining)
	}
	return out
}
