package node

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ansi color codes used by DumpTree when the destination is a terminal.
const (
	ansiReset      = "\x1b[0m"
	ansiMutable    = "\x1b[33m" // yellow: heap-owned, not yet persisted
	ansiPersistent = "\x1b[32m" // green: chunk-backed
)

// DumpTree writes an indented tree of n and its descendants to w, one line
// per node, color-coding persistent vs. mutable nodes when w is a terminal.
// It's a debugging aid, not part of the document model, and it's safe to
// call from an interactive debugger session.
func DumpTree(w io.Writer, n Node) {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	dumpNode(w, n, 0, colorize)
}

func dumpNode(w io.Writer, n Node, depth int, colorize bool) {
	if n.IsNull() {
		return
	}
	indent := strings.Repeat("  ", depth)
	color, reset := "", ""
	if colorize {
		reset = ansiReset
		if n.IsPersistent() {
			color = ansiPersistent
		} else {
			color = ansiMutable
		}
	}
	if n.IsText() {
		text, _ := n.GetText()
		fmt.Fprintf(w, "%s%s#text %q%s\n", indent, color, text, reset)
		return
	}
	fmt.Fprintf(w, "%s%s<%s>%s\n", indent, color, n.TagName(), reset)
	cc, err := n.GetChildCount()
	if err != nil {
		return
	}
	for i := 0; i < cc; i++ {
		c, err := n.GetChildNode(i)
		if err != nil {
			return
		}
		dumpNode(w, c, depth+1, colorize)
	}
}
