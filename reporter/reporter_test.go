package reporter_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/reporter"
)

func pos(line, col, offset int) ast.SourcePos {
	return ast.SourcePos{Filename: "test.ebnf", Line: line, Col: col, Offset: offset}
}

func TestErrorWithPos(t *testing.T) {
	underlying := errors.New("something broke")
	ewp := reporter.Error(pos(3, 7, 42), underlying)

	assert.Equal(t, "test.ebnf:3:7: something broke", ewp.Error())
	assert.Equal(t, 3, ewp.GetPosition().Line)
	assert.ErrorIs(t, ewp, underlying)

	ewp = reporter.Errorf(pos(1, 1, 0), "bad %s", "token")
	assert.Equal(t, "test.ebnf:1:1: bad token", ewp.Error())
}

func TestHandlerAbortsWithNilReporter(t *testing.T) {
	h := reporter.NewHandler(nil)
	err := h.HandleErrorf(pos(1, 1, 0), "first")
	require.Error(t, err)

	// Once aborted, later errors are swallowed and the first is sticky.
	again := h.HandleErrorf(pos(2, 1, 10), "second")
	assert.Equal(t, err, again)
	assert.Equal(t, err, h.Error())
	assert.Equal(t, err, h.ReporterError())
}

func TestHandlerCollectsWithLenientReporter(t *testing.T) {
	var seen []reporter.ErrorWithPos
	rep := reporter.NewReporter(func(err reporter.ErrorWithPos) error {
		seen = append(seen, err)
		return nil
	}, nil)
	h := reporter.NewHandler(rep)

	assert.NoError(t, h.HandleErrorf(pos(1, 1, 0), "first"))
	assert.NoError(t, h.HandleErrorf(pos(2, 1, 10), "second"))
	assert.Len(t, seen, 2)

	// Errors were reported, so the overall result is still a failure.
	assert.ErrorIs(t, h.Error(), reporter.ErrInvalidSource)
	assert.NoError(t, h.ReporterError())
}

func TestHandlerStopsWhenReporterAborts(t *testing.T) {
	abort := errors.New("too many errors")
	calls := 0
	rep := reporter.NewReporter(func(reporter.ErrorWithPos) error {
		calls++
		if calls >= 2 {
			return abort
		}
		return nil
	}, nil)
	h := reporter.NewHandler(rep)

	assert.NoError(t, h.HandleErrorf(pos(1, 1, 0), "first"))
	assert.Equal(t, abort, h.HandleErrorf(pos(2, 1, 10), "second"))
	assert.Equal(t, abort, h.HandleErrorf(pos(3, 1, 20), "third"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, abort, h.Error())
}

func TestHandlerWarnings(t *testing.T) {
	var warnings []reporter.ErrorWithPos
	rep := reporter.NewReporter(nil, func(err reporter.ErrorWithPos) {
		warnings = append(warnings, err)
	})
	h := reporter.NewHandler(rep)

	h.HandleWarning(pos(1, 5, 4), errors.New("dubious"))
	require.Len(t, warnings, 1)
	assert.Equal(t, "test.ebnf:1:5: dubious", warnings[0].Error())
	// Warnings alone do not fail the handler.
	assert.NoError(t, h.Error())
}

func TestSnippet(t *testing.T) {
	src := []byte("root ::= \"a\"\nnext ::= @\n")
	info := ast.NewFileInfo("test.ebnf", src)
	info.AddLine(13) // after the first newline

	p := info.SourcePos(22) // the @
	got := reporter.Snippet(info, p)
	want := "2 | next ::= @\n" +
		"  | " + strings.Repeat(" ", len("next ::= ")) + "^"
	assert.Equal(t, want, got)
}

func TestSnippetWideCharacters(t *testing.T) {
	// 中 is two columns wide; the caret must account for that.
	src := []byte("r ::= [中] %\n")
	info := ast.NewFileInfo("test.ebnf", src)

	p := info.SourcePos(len("r ::= [中] "))
	got := reporter.Snippet(info, p)
	// The prefix "r ::= [中] " occupies 11 columns on screen.
	want := "1 | r ::= [中] %\n" +
		"  | " + strings.Repeat(" ", 11) + "^"
	assert.Equal(t, want, got)
}

func TestSnippetTabs(t *testing.T) {
	src := []byte("r ::=\t\"a\" %\n")
	info := ast.NewFileInfo("test.ebnf", src)

	p := info.SourcePos(len("r ::=\t\"a\" "))
	got := reporter.Snippet(info, p)
	// The tab expands to three spaces, reaching column eight.
	want := "1 | r ::=   \"a\" %\n" +
		"  | " + strings.Repeat(" ", len("r ::=   \"a\" ")) + "^"
	assert.Equal(t, want, got)
}

func TestSnippetOutOfRange(t *testing.T) {
	info := ast.NewFileInfo("test.ebnf", []byte("r ::= \"a\"\n"))
	assert.Equal(t, "", reporter.Snippet(info, ast.SourcePos{}))
}
