package builder_test

import (
	"testing"

	"github.com/KrasK/coolreader/internal/builder"
	"github.com/KrasK/coolreader/internal/node"
)

func build(t *testing.T, fn func(b *builder.Builder)) *node.Tree {
	t.Helper()
	tr := node.NewTree()
	b := builder.New(tr)
	b.OnStart()
	fn(b)
	if err := b.OnStop(); err != nil {
		t.Fatalf("OnStop: %v", err)
	}
	return tr
}

func TestBasicTagsAttributesAndText(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		must(t, b.OnTagOpen("", "p"))
		must(t, b.OnAttribute("", "class", "intro"))
		must(t, b.OnText("  hello   world  ", 0))
		must(t, b.OnTagClose("", "p"))
	})
	root := tr.Root()
	n, _ := root.GetChildCount()
	if n != 1 {
		t.Fatalf("GetChildCount() = %d, want 1", n)
	}
	p, _ := root.GetChildNode(0)
	if p.TagName() != "p" {
		t.Fatalf("TagName() = %q, want p", p.TagName())
	}
	cls, err := p.GetAttribute(0, tr.Attrs.IDOf("class"))
	if err != nil || cls != "intro" {
		t.Fatalf("GetAttribute(class) = (%q, %v), want (intro, nil)", cls, err)
	}
	text, _ := p.GetChildNode(0)
	got, _ := text.GetText()
	if got != " hello world " {
		t.Fatalf("GetText() = %q, want %q (collapsed whitespace)", got, " hello world ")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTrimTextFlagTrimsEnds(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		must(t, b.OnTagOpen("", "p"))
		must(t, b.OnText("  trimmed  ", builder.TrimText))
		must(t, b.OnTagClose("", "p"))
	})
	p, _ := tr.Root().GetChildNode(0)
	text, _ := p.GetChildNode(0)
	got, _ := text.GetText()
	if got != "trimmed" {
		t.Fatalf("GetText() = %q, want trimmed", got)
	}
}

func TestNoSpaceTextFlagDropsWhitespaceOnlyText(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		must(t, b.OnTagOpen("", "p"))
		must(t, b.OnText("   \n\t  ", builder.NoSpaceText))
		must(t, b.OnTagClose("", "p"))
	})
	p, _ := tr.Root().GetChildNode(0)
	n, _ := p.GetChildCount()
	if n != 0 {
		t.Fatalf("GetChildCount() = %d, want 0 (whitespace-only text dropped)", n)
	}
}

func TestPreTextPreservesWhitespace(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		must(t, b.OnTagOpen("", "pre"))
		must(t, b.OnText("line1\n   line2", builder.PreText))
		must(t, b.OnTagClose("", "pre"))
	})
	p, _ := tr.Root().GetChildNode(0)
	text, _ := p.GetChildNode(0)
	got, _ := text.GetText()
	if got != "line1\n   line2" {
		t.Fatalf("GetText() = %q, want preserved whitespace", got)
	}
}

func TestUnbalancedCloseLatchesAndContinues(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		must(t, b.OnTagOpen("", "p"))
		must(t, b.OnTagClose("", "div")) // no matching open div
		if !b.UnbalancedClose() {
			t.Fatal("UnbalancedClose() should be true after a close with no matching open")
		}
		must(t, b.OnTagClose("", "p"))
	})
	n, _ := tr.Root().GetChildCount()
	if n != 1 {
		t.Fatalf("GetChildCount() = %d, want 1", n)
	}
}

func TestHeaderOnlyStopsParsing(t *testing.T) {
	tr := node.NewTree()
	b := builder.New(tr)
	b.OnStart()
	b.SetHeaderOnly("description")
	must(t, b.OnTagOpen("", "description"))
	must(t, b.OnTagOpen("", "title-info"))
	must(t, b.OnTagClose("", "title-info"))
	must(t, b.OnTagClose("", "description"))
	if !b.Stopped() {
		t.Fatal("Stopped() should be true once the header-only tag closes")
	}
	// Further calls after stop must be no-ops, not errors.
	if err := b.OnTagOpen("", "body"); err != nil {
		t.Fatalf("OnTagOpen after stop: %v", err)
	}
	n, _ := tr.Root().GetChildCount()
	if n != 1 {
		t.Fatalf("GetChildCount() = %d, want 1 (body should not have been added after stop)", n)
	}
}

func TestAutoCloseClosesOpenAncestor(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		b.SetAutoClose(map[string][]string{"p": {"p"}})
		must(t, b.OnTagOpen("", "p"))
		must(t, b.OnText("first", builder.TrimText))
		must(t, b.OnTagOpen("", "p")) // implicitly closes the first <p>
		must(t, b.OnText("second", builder.TrimText))
		must(t, b.OnTagClose("", "p"))
	})
	n, _ := tr.Root().GetChildCount()
	if n != 2 {
		t.Fatalf("GetChildCount() = %d, want 2 (auto-close should have produced two sibling <p>s)", n)
	}
	first, _ := tr.Root().GetChildNode(0)
	second, _ := tr.Root().GetChildNode(1)
	ft, _ := first.GetChildNode(0)
	st, _ := second.GetChildNode(0)
	fg, _ := ft.GetText()
	sg, _ := st.GetText()
	if fg != "first" || sg != "second" {
		t.Fatalf("texts = %q, %q; want first, second", fg, sg)
	}
}

func TestHTMLHacksSubstituteTags(t *testing.T) {
	tr := build(t, func(b *builder.Builder) {
		b.SetAutoClose(map[string][]string{"li": {"li"}}) // any non-empty table turns on HTML hacks
		must(t, b.OnTagOpen("", "br"))
		must(t, b.OnTagClose("", "p"))
	})
	n, _ := tr.Root().GetChildCount()
	if n != 1 {
		t.Fatalf("GetChildCount() = %d, want 1", n)
	}
	child, _ := tr.Root().GetChildNode(0)
	if child.TagName() != "p" {
		t.Fatalf("TagName() = %q, want p (br should be substituted)", child.TagName())
	}
}
