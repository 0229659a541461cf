// Package content implements the base64 node-content stream (spec.md C9): a
// read-only seekable view over the concatenated text content of an
// element's descendant text nodes, decoded as base64.
package content

import (
	"encoding/base64"
	"io"

	"golang.org/x/xerrors"

	"github.com/KrasK/coolreader/internal/node"
)

// Reader is an io.ReadSeeker over the decoded bytes of root's descendant
// text content. Its size is precomputed at construction, per spec.md §4.9.
type Reader struct {
	texts []string
	size  int64

	pos int64
	dec io.Reader // lazily (re)built at the current position
}

// NewReader builds a Reader over root's descendant text, decoding once to
// determine Size.
func NewReader(root node.Node) (*Reader, error) {
	var texts []string
	if err := collectText(root, &texts); err != nil {
		return nil, xerrors.Errorf("content: collecting text: %w", err)
	}
	r := &Reader{texts: texts}
	n, err := io.Copy(io.Discard, r.rawStream())
	if err != nil {
		return nil, xerrors.Errorf("content: measuring decoded size: %w", err)
	}
	r.size = n
	return r, nil
}

func collectText(n node.Node, out *[]string) error {
	if n.IsText() {
		s, err := n.GetText()
		if err != nil {
			return err
		}
		*out = append(*out, s)
		return nil
	}
	cc, err := n.GetChildCount()
	if err != nil {
		return err
	}
	for i := 0; i < cc; i++ {
		c, err := n.GetChildNode(i)
		if err != nil {
			return err
		}
		if err := collectText(c, out); err != nil {
			return err
		}
	}
	return nil
}

// rawStream returns a fresh base64 decoder over the whole concatenated text,
// from the beginning. Seeking forward to an arbitrary position is done by
// building a fresh one of these and discarding up to the target, per
// spec.md §4.9 ("seek backward rewinds to the start and decodes forward").
func (r *Reader) rawStream() io.Reader {
	readers := make([]io.Reader, len(r.texts))
	for i, t := range r.texts {
		readers[i] = &stringReader{s: t}
	}
	return base64.NewDecoder(base64.StdEncoding, &whitespaceFilter{r: io.MultiReader(readers...)})
}

type stringReader struct {
	s   string
	pos int
}

func (sr *stringReader) Read(p []byte) (int, error) {
	if sr.pos >= len(sr.s) {
		return 0, io.EOF
	}
	n := copy(p, sr.s[sr.pos:])
	sr.pos += n
	return n, nil
}

// whitespaceFilter strips whitespace bytes, which standard base64 encoding
// does not tolerate embedded between groups but which real FB2/EPUB
// binary sections commonly wrap with for line-length limits.
type whitespaceFilter struct{ r io.Reader }

func (w *whitespaceFilter) Read(p []byte) (int, error) {
	buf := make([]byte, len(p))
	n, err := w.r.Read(buf)
	out := 0
	for i := 0; i < n; i++ {
		switch buf[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			p[out] = buf[i]
			out++
		}
	}
	return out, err
}

// Size returns the total decoded byte length.
func (r *Reader) Size() int64 { return r.size }

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if r.dec == nil {
		s := r.rawStream()
		if r.pos > 0 {
			if _, err := io.CopyN(io.Discard, s, r.pos); err != nil {
				return 0, xerrors.Errorf("content: reseeking: %w", err)
			}
		}
		r.dec = s
	}
	if remaining := r.size - r.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.dec.Read(p)
	r.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker. A forward or backward seek both invalidate the
// current decoder; the next Read rebuilds one from the start and discards
// up to the new position, since base64 decoding is not randomly
// addressable.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.size + offset
	default:
		return 0, xerrors.New("content: invalid whence")
	}
	if target < 0 || target > r.size {
		return 0, xerrors.New("content: seek target out of range")
	}
	r.pos = target
	r.dec = nil
	return target, nil
}
