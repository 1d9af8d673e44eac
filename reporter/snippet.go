package reporter

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/structuredgen/gbnf/ast"
)

// Snippet renders the source line containing pos with a caret marking the
// offending location, for inclusion in diagnostics:
//
//	 2 | root ::= "a" %
//	   |              ^
//
// The caret is placed using terminal display widths, so lines containing
// wide characters (CJK, emoji) still point at the right spot. Returns ""
// if pos does not fall within info.
func Snippet(info *ast.FileInfo, pos ast.SourcePos) string {
	line := info.LineText(pos.Line)
	if line == "" && pos.Line <= 0 {
		return ""
	}

	// Byte offset of pos within its line.
	lineStart := pos.Offset - byteColumn(info, pos)
	prefix := string(info.Data()[lineStart:min(pos.Offset, lineStart+len(line))])

	gutter := fmt.Sprintf("%d", pos.Line)
	pad := strings.Repeat(" ", len(gutter))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s | %s\n", gutter, expandTabs(line))
	fmt.Fprintf(&sb, "%s | %s^", pad, strings.Repeat(" ", uniseg.StringWidth(expandTabs(prefix))))
	return sb.String()
}

// byteColumn returns the byte offset of pos from the start of its line.
func byteColumn(info *ast.FileInfo, pos ast.SourcePos) int {
	off := pos.Offset
	data := info.Data()
	n := 0
	for off-n-1 >= 0 && off-n-1 < len(data) && data[off-n-1] != '\n' {
		n++
	}
	return n
}

func expandTabs(s string) string {
	if !strings.ContainsRune(s, '\t') {
		return s
	}
	var sb strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := 8 - (col % 8)
			sb.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		sb.WriteRune(r)
		col += uniseg.StringWidth(string(r))
	}
	return sb.String()
}
