package cache_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KrasK/coolreader/internal/builder"
	"github.com/KrasK/coolreader/internal/cache"
	"github.com/KrasK/coolreader/internal/node"
)

func buildAndPersist(t *testing.T) *node.Tree {
	t.Helper()
	tr := node.NewTree()
	tr.Policy.UsePersistentText = true
	b := builder.New(tr)
	b.OnStart()
	must(t, b.OnTagOpen("", "book"))
	must(t, b.OnAttribute("", "lang", "en"))
	must(t, b.OnTagOpen("", "p"))
	must(t, b.OnText("hello cache", builder.TrimText))
	must(t, b.OnTagClose("", "p"))
	must(t, b.OnTagClose("", "book"))
	must(t, b.OnStop()) // persists the whole stack, including the root
	return tr
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tr := buildAndPersist(t)
	props := map[string]string{"title": "Test Book", "author": "Nobody"}
	pageTable := []byte{1, 2, 3, 4, 5}
	src := cache.SourceInfo{Size: 1234, CRC32: 0xDEADBEEF, Name: "book.fb2"}
	render := cache.RenderInfo{DX: 600, DY: 800, DocFlags: 1, StyleHash: 42}

	data, err := cache.Save(tr, props, pageTable, src, render)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := cache.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if result.Header.SrcFileSize != src.Size || result.Header.SrcFileCRC32 != src.CRC32 {
		t.Errorf("Header source fields = (%d, %x), want (%d, %x)",
			result.Header.SrcFileSize, result.Header.SrcFileCRC32, src.Size, src.CRC32)
	}
	if result.Header.RenderDX != render.DX || result.Header.RenderStyleHash != render.StyleHash {
		t.Errorf("Header render fields did not round trip: %+v", result.Header)
	}
	if len(result.PageTable) != len(pageTable) {
		t.Fatalf("PageTable length = %d, want %d", len(result.PageTable), len(pageTable))
	}
	for i := range pageTable {
		if result.PageTable[i] != pageTable[i] {
			t.Fatalf("PageTable[%d] = %d, want %d", i, result.PageTable[i], pageTable[i])
		}
	}
	if diff := cmp.Diff(props, result.Props); diff != "" {
		t.Fatalf("Props round trip mismatch (-want +got):\n%s", diff)
	}

	root := result.Tree.Root()
	book, err := root.GetChildNode(0)
	if err != nil {
		t.Fatalf("GetChildNode(book): %v", err)
	}
	if book.TagName() != "book" {
		t.Fatalf("TagName() = %q, want book", book.TagName())
	}
	lang, err := book.GetAttribute(0, result.Tree.Attrs.IDOf("lang"))
	if err != nil || lang != "en" {
		t.Fatalf("GetAttribute(lang) = (%q, %v), want (en, nil)", lang, err)
	}
	p, err := book.GetChildNode(0)
	if err != nil {
		t.Fatalf("GetChildNode(p): %v", err)
	}
	text, err := p.GetChildNode(0)
	if err != nil {
		t.Fatalf("GetChildNode(text): %v", err)
	}
	got, err := text.GetText()
	if err != nil || got != "hello cache" {
		t.Fatalf("GetText() = (%q, %v), want (hello cache, nil)", got, err)
	}
}

func TestLoadRejectsTruncatedData(t *testing.T) {
	if _, err := cache.Load([]byte{1, 2, 3}); err != cache.ErrTruncated {
		t.Fatalf("Load(truncated) = %v, want ErrTruncated", err)
	}
}

func TestLoadRejectsCorruptedHeaderMagic(t *testing.T) {
	tr := buildAndPersist(t)
	data, err := cache.Save(tr, nil, nil, cache.SourceInfo{}, cache.RenderInfo{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	corrupted := append([]byte(nil), data...)
	corrupted[0] ^= 0xFF
	if _, err := cache.Load(corrupted); err != cache.ErrMagic {
		t.Fatalf("Load(corrupted magic) = %v, want ErrMagic", err)
	}
}

func TestLoadRejectsCorruptedDataSection(t *testing.T) {
	tr := buildAndPersist(t)
	data, err := cache.Save(tr, nil, nil, cache.SourceInfo{}, cache.RenderInfo{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	corrupted := append([]byte(nil), data...)
	// Flip a byte well past the header and every other section to hit the
	// data section's CRC check without also tripping the header's own CRC.
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, err := cache.Load(corrupted); err != cache.ErrCRC {
		t.Fatalf("Load(corrupted data) = %v, want ErrCRC", err)
	}
}

func TestLoadRejectsMismatchedFileSize(t *testing.T) {
	tr := buildAndPersist(t)
	data, err := cache.Save(tr, nil, nil, cache.SourceInfo{}, cache.RenderInfo{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	truncated := data[:len(data)-4096]
	if _, err := cache.Load(truncated); err != cache.ErrSize {
		t.Fatalf("Load(truncated by one section) = %v, want ErrSize", err)
	}
}
