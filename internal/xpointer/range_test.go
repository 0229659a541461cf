package xpointer_test

import (
	"testing"

	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/types"
	"github.com/KrasK/coolreader/internal/xpointer"
)

// buildText returns a lone text child of a fresh root, holding content. The
// root is marked RendInline so IsVisible-gated range operations (FindText,
// GetRangeText) see it as visible without needing a real style pass.
func buildText(t *testing.T, content string) node.Node {
	t.Helper()
	tr := node.NewTree()
	root := tr.Root()
	if err := root.SetRendMethod(types.RendInline); err != nil {
		t.Fatalf("SetRendMethod(root): %v", err)
	}
	text, err := root.InsertChildText(0, content)
	if err != nil {
		t.Fatalf("InsertChildText: %v", err)
	}
	return text
}

func rng(n node.Node, start, end int32, flags uint32) xpointer.XRange {
	return xpointer.XRange{Start: xpointer.New(n, start), End: xpointer.New(n, end), Flags: flags}
}

// TestRangeListSplitLiteralS4 reproduces the literal S4 scenario: on a
// length-10 text node, splitting R2=[4,8)flag=2 into a list already holding
// R1=[2,5)flag=1 must produce [[2,4)1, [4,5)3, [5,8)2].
func TestRangeListSplitLiteralS4(t *testing.T) {
	text := buildText(t, "abcdefghij")
	r1 := rng(text, 2, 5, 1)
	r2 := rng(text, 4, 8, 2)

	got := xpointer.RangeList{r1}.Split(r2)
	want := [][3]int32{{2, 4, 1}, {4, 5, 3}, {5, 8, 2}}
	if len(got) != len(want) {
		t.Fatalf("Split() = %+v, want %d entries", got, len(want))
	}
	for i, w := range want {
		if got[i].Start.Offset != w[0] || got[i].End.Offset != w[1] || got[i].Flags != uint32(w[2]) {
			t.Errorf("Split()[%d] = [%d,%d) flag=%d, want [%d,%d) flag=%d",
				i, got[i].Start.Offset, got[i].End.Offset, got[i].Flags, w[0], w[1], w[2])
		}
	}
}

// TestRangeListSplitCoversGapsAndTail exercises a new range that spans a gap
// between two existing non-adjacent entries and outlasts both: every point
// of the union must still appear exactly once afterward (spec.md invariant
// 10), including the stretches the new range alone covers.
func TestRangeListSplitCoversGapsAndTail(t *testing.T) {
	text := buildText(t, "abcdefghijklmnop")
	e1 := rng(text, 2, 3, 1)
	e2 := rng(text, 6, 7, 4)
	newRange := rng(text, 1, 8, 2)

	got := xpointer.RangeList{e1, e2}.Split(newRange)
	want := [][3]int32{
		{1, 2, 2},
		{2, 3, 3}, // 1|2
		{3, 6, 2},
		{6, 7, 6}, // 4|2
		{7, 8, 2},
	}
	if len(got) != len(want) {
		t.Fatalf("Split() = %+v, want %d entries", got, len(want))
	}
	for i, w := range want {
		if got[i].Start.Offset != w[0] || got[i].End.Offset != w[1] || got[i].Flags != uint32(w[2]) {
			t.Errorf("Split()[%d] = [%d,%d) flag=%d, want [%d,%d) flag=%d",
				i, got[i].Start.Offset, got[i].End.Offset, got[i].Flags, w[0], w[1], w[2])
		}
	}
}

// TestRangeListSplitNoIntersectionAppendsBoth checks that a new range
// disjoint from every existing entry is simply appended, untouched.
func TestRangeListSplitNoIntersectionAppendsBoth(t *testing.T) {
	text := buildText(t, "abcdefghij")
	e := rng(text, 0, 1, 1)
	newRange := rng(text, 5, 6, 2)

	got := xpointer.RangeList{e}.Split(newRange)
	if len(got) != 2 {
		t.Fatalf("Split() = %+v, want 2 entries", got)
	}
	if got[0].Start.Offset != 0 || got[0].End.Offset != 1 || got[0].Flags != 1 {
		t.Errorf("Split()[0] = %+v, want the untouched original entry", got[0])
	}
	if got[1].Start.Offset != 5 || got[1].End.Offset != 6 || got[1].Flags != 2 {
		t.Errorf("Split()[1] = %+v, want the new range appended untouched", got[1])
	}
}

func TestIntersectionUnionsFlags(t *testing.T) {
	text := buildText(t, "abcdefghij")
	a := rng(text, 2, 6, 1)
	b := rng(text, 4, 8, 2)

	got, ok := a.Intersection(b)
	if !ok {
		t.Fatal("Intersection() should report an overlap")
	}
	if got.Start.Offset != 4 || got.End.Offset != 6 || got.Flags != 3 {
		t.Fatalf("Intersection() = [%d,%d) flag=%d, want [4,6) flag=3", got.Start.Offset, got.End.Offset, got.Flags)
	}

	c := rng(text, 8, 9, 4)
	if _, ok := a.Intersection(c); ok {
		t.Fatal("Intersection() should report no overlap for disjoint ranges")
	}
}

// TestGetRangeTextInsertsBlockDelimiter walks a body containing two
// non-block <p> elements followed by a block-rendered <div>, checking that
// GetRangeText only inserts its delimiter ahead of the block child.
func TestGetRangeTextInsertsBlockDelimiter(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	firstP, _ := body.GetChildNode(0)
	secondP, _ := body.GetChildNode(1)
	div, _ := body.GetChildNode(2)
	for _, n := range []node.Node{tr.Root(), body, firstP, secondP} {
		if err := n.SetRendMethod(types.RendInline); err != nil {
			t.Fatalf("SetRendMethod: %v", err)
		}
	}
	if err := div.SetRendMethod(types.RendBlock); err != nil {
		t.Fatalf("SetRendMethod(div): %v", err)
	}
	divText, err := div.GetChildNode(0)
	if err != nil {
		t.Fatalf("GetChildNode(divText): %v", err)
	}

	r := xpointer.XRange{
		Start: xpointer.New(body, xpointer.Unspecified),
		End:   xpointer.New(divText, xpointer.Unspecified),
	}
	got, err := r.GetRangeText("\n", 0)
	if err != nil {
		t.Fatalf("GetRangeText: %v", err)
	}
	if want := "onetwo\nthree"; got != want {
		t.Fatalf("GetRangeText() = %q, want %q", got, want)
	}
}

func TestFindTextFindsOccurrences(t *testing.T) {
	text := buildText(t, "the cat sat on the mat")
	r := xpointer.XRange{
		Start: xpointer.New(text, 0),
		End:   xpointer.New(text, int32(len("the cat sat on the mat"))),
	}
	words, err := r.FindText("the", false, 0)
	if err != nil {
		t.Fatalf("FindText: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("FindText() found %d occurrences, want 2: %+v", len(words), words)
	}
	if words[0].Range.Start.Offset != 0 || words[1].Range.Start.Offset != 15 {
		t.Fatalf("FindText() offsets = (%d, %d), want (0, 15)",
			words[0].Range.Start.Offset, words[1].Range.Start.Offset)
	}
}
