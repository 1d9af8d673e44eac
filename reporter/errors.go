// Package reporter contains the types for reporting errors and warnings
// encountered while parsing and compiling grammar sources.
package reporter

import (
	"errors"
	"fmt"

	"github.com/structuredgen/gbnf/ast"
)

// ErrInvalidSource is a sentinel error that is returned by compile
// operations in the event that syntax or resolution errors are
// encountered but the configured ErrorReporter always returns nil.
var ErrInvalidSource = errors.New("parse failed: invalid grammar source")

// ErrorWithPos is an error about a grammar source file that includes
// information about the location in the file that caused the error.
//
// The value of Error() will contain both the SourcePos and the underlying
// error. The value of Unwrap() will only be the underlying error.
type ErrorWithPos interface {
	error
	GetPosition() ast.SourcePos
	Unwrap() error
}

// Error creates a new ErrorWithPos from the given error and source position.
func Error(pos ast.SourcePos, err error) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: err}
}

// Errorf creates a new ErrorWithPos whose underlying error is created using
// the given message format and arguments (via fmt.Errorf).
func Errorf(pos ast.SourcePos, format string, args ...any) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: fmt.Errorf(format, args...)}
}

type errorWithSourcePos struct {
	underlying error
	pos        ast.SourcePos
}

func (e errorWithSourcePos) Error() string {
	return fmt.Sprintf("%s: %v", e.GetPosition(), e.underlying)
}

// GetPosition implements the ErrorWithPos interface, supplying a location
// in grammar source that caused the error.
func (e errorWithSourcePos) GetPosition() ast.SourcePos {
	return e.pos
}

// Unwrap implements the ErrorWithPos interface, supplying the underlying
// error. This error will not include location information.
func (e errorWithSourcePos) Unwrap() error {
	return e.underlying
}

var _ ErrorWithPos = errorWithSourcePos{}
