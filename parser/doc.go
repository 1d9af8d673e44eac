// Package parser contains the logic for parsing EBNF grammar source into
// an AST (abstract syntax tree).
//
// The parser is tolerant of a grammar's layout: rules are separated by
// newlines, but an alternative may continue onto the next line when that
// line begins with a pipe, and newlines are insignificant inside
// parentheses. Errors carry source positions and are delivered through a
// reporter.Handler, so a caller can choose between fail-fast behavior and
// collecting as many errors as possible in one pass.
package parser
