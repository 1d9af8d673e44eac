package ast

import (
	"fmt"
	"sort"
)

// FileInfo contains information about the contents of a grammar source
// file. A lexer accumulates line offsets as it scans the contents, which
// allows source positions to be represented as plain byte offsets and
// resolved to line and column on demand.
type FileInfo struct {
	// The name of the source file.
	name string
	// The raw contents of the source file.
	data []byte
	// The offsets for each line in the file. The value is the zero-based
	// byte offset for a given line. The line is given by its index. So the
	// value at index 0 is the offset for the first line (which is always
	// zero), the value at index 1 is the offset at which the second line
	// begins, etc.
	lines []int
}

// NewFileInfo creates a new instance for the given file.
func NewFileInfo(filename string, contents []byte) *FileInfo {
	return &FileInfo{
		name:  filename,
		data:  contents,
		lines: []int{0},
	}
}

func (f *FileInfo) Name() string {
	return f.name
}

// Data returns the raw contents of the source file.
func (f *FileInfo) Data() []byte {
	return f.data
}

// AddLine adds the offset representing the beginning of the "next" line in
// the file. The first line always starts at offset 0; the second line
// starts at offset-of-newline-char+1.
func (f *FileInfo) AddLine(offset int) {
	if offset < 0 {
		panic(fmt.Sprintf("invalid offset: %d must not be negative", offset))
	}
	if offset > len(f.data) {
		panic(fmt.Sprintf("invalid offset: %d is greater than file size %d", offset, len(f.data)))
	}

	if len(f.lines) > 0 {
		lastOffset := f.lines[len(f.lines)-1]
		if offset <= lastOffset {
			panic(fmt.Sprintf("invalid offset: %d is not greater than previously observed line offset %d", offset, lastOffset))
		}
	}

	f.lines = append(f.lines, offset)
}

// SourcePos returns the line and column information for the given byte
// offset into the file.
func (f *FileInfo) SourcePos(offset int) SourcePos {
	lineNumber := sort.Search(len(f.lines), func(n int) bool {
		return f.lines[n] > offset
	})

	// If it weren't for tabs, we could trivially compute the column just
	// from the offset of the line start. Tabs advance to the next multiple
	// of eight, so we have to walk the line.
	col := 0
	for i := f.lines[lineNumber-1]; i < offset; i++ {
		if f.data[i] == '\t' {
			nextTabStop := 8 - (col % 8)
			col += nextTabStop
		} else {
			col++
		}
	}

	return SourcePos{
		Filename: f.name,
		Offset:   offset,
		Line:     lineNumber,
		Col:      col + 1,
	}
}

// LineText returns the text of the given one-based line, without its
// trailing newline. It returns "" for out-of-range lines.
func (f *FileInfo) LineText(line int) string {
	if line < 1 || line > len(f.lines) {
		return ""
	}
	start := f.lines[line-1]
	end := len(f.data)
	if line < len(f.lines) {
		end = f.lines[line] - 1
	}
	for end > start && (f.data[end-1] == '\n' || f.data[end-1] == '\r') {
		end--
	}
	return string(f.data[start:end])
}

// SourcePos identifies a location in a grammar source file.
type SourcePos struct {
	Filename string
	// The line and column numbers for this position. These are
	// one-based, so the first line and column is 1 (not zero). Columns
	// are expressed in terms of characters, not bytes, with tabs
	// advancing to the next multiple of eight.
	Line, Col int
	// The offset, in bytes, from the beginning of the file.
	Offset int
}

func (pos SourcePos) String() string {
	if pos.Line <= 0 || pos.Col <= 0 {
		return pos.Filename
	}
	if pos.Filename == "" {
		return fmt.Sprintf("%d:%d", pos.Line, pos.Col)
	}
	return fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Col)
}
