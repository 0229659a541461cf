package xpointer_test

import (
	"testing"

	"github.com/KrasK/coolreader/internal/builder"
	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/types"
	"github.com/KrasK/coolreader/internal/xpointer"
)

// buildSample constructs:
//
//	<body>
//	  <p>one</p>
//	  <p>two</p>
//	  <div>three</div>
//	</body>
func buildSample(t *testing.T) *node.Tree {
	t.Helper()
	tr := node.NewTree()
	b := builder.New(tr)
	b.OnStart()
	must(t, b.OnTagOpen("", "body"))
	must(t, b.OnTagOpen("", "p"))
	must(t, b.OnText("one", builder.TrimText))
	must(t, b.OnTagClose("", "p"))
	must(t, b.OnTagOpen("", "p"))
	must(t, b.OnText("two", builder.TrimText))
	must(t, b.OnTagClose("", "p"))
	must(t, b.OnTagOpen("", "div"))
	must(t, b.OnText("three", builder.TrimText))
	must(t, b.OnTagClose("", "div"))
	must(t, b.OnTagClose("", "body"))
	must(t, b.OnStop())
	return tr
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNavigationPrimitives(t *testing.T) {
	tr := buildSample(t)
	body, err := tr.Root().GetChildNode(0)
	if err != nil {
		t.Fatalf("GetChildNode: %v", err)
	}
	ex := xpointer.New(body, xpointer.Unspecified)

	first, ok := ex.FirstChild()
	if !ok || first.Node.TagName() != "p" {
		t.Fatalf("FirstChild() = (%v, %v), want the first <p>", first, ok)
	}
	last, ok := ex.LastChild()
	if !ok || last.Node.TagName() != "div" {
		t.Fatalf("LastChild() = (%v, %v), want the <div>", last, ok)
	}
	second, ok := first.NextSibling()
	if !ok || second.Node.TagName() != "p" {
		t.Fatalf("NextSibling() from first <p> = (%v, %v), want second <p>", second, ok)
	}
	back, ok := second.PrevSibling()
	if !ok || !back.Node.Equal(first.Node) {
		t.Fatal("PrevSibling() from second <p> should return the first <p>")
	}
	parent, ok := first.Parent()
	if !ok || !parent.Node.Equal(body) {
		t.Fatal("Parent() from first <p> should return body")
	}
}

func TestNextPrevElementDocumentOrder(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	ex := xpointer.New(body, xpointer.Unspecified)

	cur := ex
	var tags []string
	for {
		tags = append(tags, cur.Node.TagName())
		next, ok := cur.NextElement()
		if !ok {
			break
		}
		cur = next
	}
	want := []string{"body", "p", "p", "div"}
	if len(tags) != len(want) {
		t.Fatalf("visited tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}

	prev, ok := cur.PrevElement()
	if !ok || prev.Node.TagName() != "p" {
		t.Fatalf("PrevElement() from <div> = (%v, %v), want the second <p>", prev, ok)
	}
}

func TestNextPrevText(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	ex := xpointer.New(body, xpointer.Unspecified)

	first, _ := ex.NextText()
	got, _ := first.Node.GetText()
	if got != "one" {
		t.Fatalf("NextText() from body = %q, want one", got)
	}
	second, ok := first.NextText()
	if !ok {
		t.Fatal("NextText() from first text node should find the second")
	}
	got, _ = second.Node.GetText()
	if got != "two" {
		t.Fatalf("NextText() chained = %q, want two", got)
	}
	back, ok := second.PrevText()
	if !ok {
		t.Fatal("PrevText() should step back to the first text node")
	}
	got, _ = back.Node.GetText()
	if got != "one" {
		t.Fatalf("PrevText() = %q, want one", got)
	}
}

func TestCompareOrdersByPathThenOffset(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	first, _ := body.GetChildNode(0)
	second, _ := body.GetChildNode(1)

	a := xpointer.New(first, 0)
	b := xpointer.New(second, 0)
	if xpointer.Compare(a, b) >= 0 {
		t.Fatal("Compare(first <p>, second <p>) should be negative")
	}
	if xpointer.Compare(b, a) <= 0 {
		t.Fatal("Compare(second <p>, first <p>) should be positive")
	}
	if xpointer.Compare(a, a) != 0 {
		t.Fatal("Compare(a, a) should be zero")
	}

	low := xpointer.New(first, 0)
	high := xpointer.New(first, 2)
	if xpointer.Compare(low, high) >= 0 {
		t.Fatal("Compare should use offset as a tiebreaker within the same node")
	}
}

func TestIsVisibleRespectsAncestorRendMethod(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	p, _ := body.GetChildNode(0)
	// Elements start out RendInvisible (the zero value), so mark the whole
	// ancestor chain inline first.
	for _, n := range []node.Node{tr.Root(), body, p} {
		if err := n.SetRendMethod(types.RendInline); err != nil {
			t.Fatalf("SetRendMethod: %v", err)
		}
	}
	if !xpointer.IsVisible(p) {
		t.Fatal("IsVisible() should be true when no ancestor is invisible")
	}
	if err := body.SetRendMethod(types.RendInvisible); err != nil {
		t.Fatalf("SetRendMethod: %v", err)
	}
	if xpointer.IsVisible(p) {
		t.Fatal("IsVisible() should be false once an ancestor is marked invisible")
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	second, _ := body.GetChildNode(1)
	ex := xpointer.New(second, 2)

	s := ex.String()
	parsed, err := xpointer.Parse(tr, s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if !parsed.Node.Equal(second) {
		t.Fatalf("Parse(%q) resolved to a different node than expected", s)
	}
	if parsed.Offset != 2 {
		t.Fatalf("Parse(%q).Offset = %d, want 2", s, parsed.Offset)
	}
}

func TestStringOmitsIndexForUniqueChild(t *testing.T) {
	tr := buildSample(t)
	body, _ := tr.Root().GetChildNode(0)
	div, _ := body.GetChildNode(2)
	ex := xpointer.New(div, xpointer.Unspecified)
	s := ex.String()
	if got := s; got == "" {
		t.Fatal("String() returned empty")
	}
	// div is the only <div> among body's children, so its step must carry no [i].
	if contains(s, "div[") {
		t.Errorf("String() = %q, want no index suffix on the unique <div>", s)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
