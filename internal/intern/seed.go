package intern

import (
	"golang.org/x/net/html/atom"

	"github.com/KrasK/coolreader/internal/types"
)

// knownElementAtoms lists the HTML5 element vocabulary (via x/net/html/atom)
// that seeds the element-name table's well-known ID range. Using the atom
// package's constants rather than hand-typed strings keeps this list free of
// typos.
var knownElementAtoms = []atom.Atom{
	atom.Html, atom.Head, atom.Body, atom.Title, atom.Meta, atom.Link,
	atom.Div, atom.Span, atom.P, atom.Br, atom.Hr,
	atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
	atom.Ul, atom.Ol, atom.Li, atom.Dl, atom.Dt, atom.Dd,
	atom.Table, atom.Thead, atom.Tbody, atom.Tfoot, atom.Tr, atom.Td, atom.Th,
	atom.A, atom.B, atom.I, atom.U, atom.Em, atom.Strong, atom.Sub, atom.Sup,
	atom.Img, atom.Pre, atom.Blockquote, atom.Code, atom.Font,
}

// knownFB2Elements extends the seed with the FictionBook element vocabulary
// the original CoolReader engine parses (spec.md §6.2/§8 XPointer examples
// reference these tag names directly).
var knownFB2Elements = []string{
	"FictionBook", "description", "title-info", "document-info",
	"publish-info", "custom-info", "author", "first-name", "middle-name",
	"last-name", "nickname", "email", "book-title", "annotation", "keywords",
	"date", "coverpage", "lang", "src-lang", "translator", "sequence",
	"genre", "body", "section", "title", "subtitle", "epigraph", "image",
	"text-author", "cite", "poem", "stanza", "v", "table-of-contents",
	"binary",
}

// knownAttrNames seeds the attribute-name table.
var knownAttrNames = []string{
	"id", "class", "style", "href", "src", "alt", "title", "name", "lang",
	"xml:lang", "xml:id", "xml:space", "type", "value", "rowspan", "colspan",
	"align", "width", "height", "genre", "number", "l-lang",
}

// knownNamespaces seeds the namespace table with the fixed XML namespace and
// an empty string for "no namespace".
var knownNamespaces = []string{
	"",
	"http://www.w3.org/XML/1998/namespace",
	"http://www.gribuser.ru/xml/fictionbook/2.0",
}

func elementSeed() []string {
	names := make([]string, 0, len(knownElementAtoms)+len(knownFB2Elements))
	for _, a := range knownElementAtoms {
		names = append(names, a.String())
	}
	names = append(names, knownFB2Elements...)
	return names
}

// NewElementNames returns a NameID table seeded with the known element
// vocabulary.
func NewElementNames() *Table[types.NameID] { return New[types.NameID](elementSeed()) }

// NewAttrNames returns an AttrID table seeded with the known attribute
// vocabulary.
func NewAttrNames() *Table[types.AttrID] { return New[types.AttrID](knownAttrNames) }

// NewNamespaces returns an NsID table seeded with the known namespaces.
func NewNamespaces() *Table[types.NsID] { return New[types.NsID](knownNamespaces) }

// NewAttrValues returns an empty AttrValueID table (attribute value
// literals have no well-known seed; every document mints its own).
func NewAttrValues() *Table[types.AttrValueID] { return New[types.AttrValueID](nil) }
