// Package cache implements the document cache file (spec.md C8's I/O half,
// §4.11/§6.3): a fixed header followed by four 4 KiB-aligned, individually
// magic-and-CRC-bracketed sections (properties, ID/name tables, an opaque
// pagination blob, and the element/text chunk data region), giving a parsed
// document a fast binary reload path that bypasses re-running the parser
// and DOM builder.
package cache

import (
	"hash/crc32"
	"sort"

	"golang.org/x/xerrors"

	"github.com/KrasK/coolreader/internal/node"
	"github.com/KrasK/coolreader/internal/serial"
	"github.com/KrasK/coolreader/internal/types"
)

const (
	magicProps     = 0x53504F52 // "ROPS"; value only needs to be stable
	magicIDTable   = 0x42544449 // "IDTB"
	magicPageTable = 0x54474150 // "PAGT"
	magicData      = 0x41544144 // "DATA"
)

// SourceInfo identifies the original (non-cache) document this cache file
// was built from, checked on load so a changed source invalidates the
// cache (spec.md §4.12).
type SourceInfo struct {
	Size  uint32
	CRC32 uint32
	Name  string
}

// RenderInfo carries the rendering collaborator's advisory fields, opaque
// to this package beyond round-tripping them (spec.md §4.8/§6.3).
type RenderInfo struct {
	DX        uint32
	DY        uint32
	DocFlags  uint32
	StyleHash uint32
}

// Result is what Load hands back: a tree ready to serve node operations,
// plus the document-level properties and pagination blob it was saved
// with.
type Result struct {
	Tree      *node.Tree
	Header    Header
	Props     map[string]string
	PageTable []byte
}

// buildSection frames body between magic and a trailing CRC32, then pads
// the result up to a 4 KiB boundary (spec.md §6.3 "section sizes are 4 KiB
// aligned").
func buildSection(magic uint32, body func(w *serial.Writer) error) ([]byte, error) {
	w := serial.NewWriter()
	start := w.Len()
	w.PutMagic(magic)
	if err := body(w); err != nil {
		return nil, err
	}
	w.PutCRC(start)
	raw := w.Bytes()
	padded := alignUp(uint32(len(raw)))
	if int(padded) > len(raw) {
		raw = append(raw, make([]byte, int(padded)-len(raw))...)
	}
	return raw, nil
}

// Save serializes tree (which must already be fully persisted — see the
// root package's Document.Persist) plus document properties, an opaque
// pagination blob and rendering/source bookkeeping into one cache file
// byte buffer.
func Save(tree *node.Tree, props map[string]string, pageTable []byte, src SourceInfo, render RenderInfo) ([]byte, error) {
	propsSec, err := buildSection(magicProps, func(w *serial.Writer) error {
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.PutUint32(uint32(len(keys)))
		for _, k := range keys {
			w.PutString(k)
			w.PutString(props[k])
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("cache: building props section: %w", err)
	}

	idtableSec, err := buildSection(magicIDTable, func(w *serial.Writer) error {
		tree.Names.Serialize(w)
		tree.Attrs.Serialize(w)
		tree.NS.Serialize(w)
		tree.Values.Serialize(w)
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("cache: building idtable section: %w", err)
	}

	pagetableSec, err := buildSection(magicPageTable, func(w *serial.Writer) error {
		w.PutUint32(uint32(len(pageTable)))
		w.PutBytes(pageTable)
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("cache: building pagetable section: %w", err)
	}

	dataSec, err := buildSection(magicData, func(w *serial.Writer) error {
		if err := tree.ElemStore.DumpChunks(w); err != nil {
			return err
		}
		return tree.TextStore.DumpChunks(w)
	})
	if err != nil {
		return nil, xerrors.Errorf("cache: building data section: %w", err)
	}

	h := Header{
		SrcFileSize:     src.Size,
		SrcFileCRC32:    src.CRC32,
		PropsOffset:     headerSize,
		PropsSize:       uint32(len(propsSec)),
		PageTableSize:   uint32(len(pagetableSec)),
		DataCRC32:       crc32.ChecksumIEEE(dataSec),
		DataIndexSize:   tree.Elements.Len() + tree.Texts.Len(),
		RenderDX:        render.DX,
		RenderDY:        render.DY,
		RenderDocFlags:  render.DocFlags,
		RenderStyleHash: render.StyleHash,
		SrcFileName:     src.Name,
	}
	h.IDTableOffset = h.PropsOffset + h.PropsSize
	h.IDTableSize = uint32(len(idtableSec))
	h.PageTableOffset = h.IDTableOffset + h.IDTableSize
	h.DataOffset = h.PageTableOffset + h.PageTableSize
	h.DataSize = uint32(len(dataSec))
	h.FileSize = h.DataOffset + h.DataSize

	headerBytes, err := marshalHeader(h)
	if err != nil {
		return nil, xerrors.Errorf("cache: marshaling header: %w", err)
	}

	out := make([]byte, 0, h.FileSize)
	out = append(out, headerBytes...)
	out = append(out, propsSec...)
	out = append(out, idtableSec...)
	out = append(out, pagetableSec...)
	out = append(out, dataSec...)
	return out, nil
}

// Load parses a cache file previously produced by Save, validating every
// section's magic and CRC. Header, magic, CRC and size failures return one
// of this package's sentinel errors; a section body that ends early comes
// back as internal/serial's read error, wrapped, and a failure to rebuild
// the tiny-node tables is returned wrapped as well. Per spec.md §4.12 the
// caller should treat any of these as "fall back to re-parsing from
// source", not propagate it as fatal.
func Load(data []byte) (*Result, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	h, err := unmarshalHeader(data[:headerSize])
	if err != nil {
		return nil, err
	}
	if uint64(h.FileSize) != uint64(len(data)) {
		return nil, ErrSize
	}

	props, err := loadProps(sectionBytes(data, h.PropsOffset, h.PropsSize))
	if err != nil {
		return nil, xerrors.Errorf("cache: props section: %w", err)
	}

	tree := node.NewEmptyTree()
	idr := serial.NewReader(sectionBytes(data, h.IDTableOffset, h.IDTableSize))
	idStart := idr.Pos()
	if !idr.CheckMagic(magicIDTable) {
		return nil, ErrMagic
	}
	if !tree.Names.Deserialize(idr) || !tree.Attrs.Deserialize(idr) || !tree.NS.Deserialize(idr) || !tree.Values.Deserialize(idr) {
		return nil, xerrors.Errorf("cache: idtable section: %w", ErrCRC)
	}
	if !idr.CheckCRC(idStart) {
		return nil, ErrCRC
	}

	pageTable, err := loadPageTable(sectionBytes(data, h.PageTableOffset, h.PageTableSize))
	if err != nil {
		return nil, xerrors.Errorf("cache: pagetable section: %w", err)
	}

	dataBody := sectionBytes(data, h.DataOffset, h.DataSize)
	if crc32.ChecksumIEEE(dataBody) != h.DataCRC32 {
		return nil, ErrCRC
	}
	dr := serial.NewReader(dataBody)
	dStart := dr.Pos()
	if !dr.CheckMagic(magicData) {
		return nil, ErrMagic
	}
	if err := tree.ElemStore.LoadChunks(dr); err != nil {
		return nil, xerrors.Errorf("cache: data section: %w", err)
	}
	if err := tree.TextStore.LoadChunks(dr); err != nil {
		return nil, xerrors.Errorf("cache: data section: %w", err)
	}
	if !dr.CheckCRC(dStart) {
		return nil, ErrCRC
	}

	// The root element is always the first slot either tree ever hands out
	// (spec.md §4.8 "allocated eagerly with handle 17"), so its slot index
	// is stable across a save/load round trip.
	root := types.NewHandle(1, true, true)
	if err := tree.RestoreFromStorage(root); err != nil {
		return nil, xerrors.Errorf("cache: reconstructing tiny-node tables: %w", err)
	}

	return &Result{Tree: tree, Header: h, Props: props, PageTable: pageTable}, nil
}

func sectionBytes(data []byte, offset, size uint32) []byte {
	if uint64(offset)+uint64(size) > uint64(len(data)) {
		return nil
	}
	return data[offset : offset+size]
}

func loadProps(body []byte) (map[string]string, error) {
	r := serial.NewReader(body)
	start := r.Pos()
	if !r.CheckMagic(magicProps) {
		return nil, ErrMagic
	}
	n := r.Uint32()
	m := make(map[string]string, n)
	for i := uint32(0); i < n && r.Err() == nil; i++ {
		k := r.String()
		v := r.String()
		m[k] = v
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	if !r.CheckCRC(start) {
		return nil, ErrCRC
	}
	return m, nil
}

func loadPageTable(body []byte) ([]byte, error) {
	r := serial.NewReader(body)
	start := r.Pos()
	if !r.CheckMagic(magicPageTable) {
		return nil, ErrMagic
	}
	n := r.Uint32()
	b := r.Bytes(int(n))
	if r.Err() != nil {
		return nil, r.Err()
	}
	if !r.CheckCRC(start) {
		return nil, ErrCRC
	}
	return b, nil
}
