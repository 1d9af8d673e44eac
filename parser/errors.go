package parser

import "errors"

// ErrSyntax is wrapped by all syntax errors reported by the lexer and
// parser, so callers can test for the category with errors.Is.
var ErrSyntax = errors.New("syntax error")
