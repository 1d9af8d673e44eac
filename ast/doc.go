// Package ast defines types for modeling the parse tree of an EBNF
// grammar source, before any normalization is applied.
//
// This is the observable form of a grammar: repetition operators, groups,
// and nested alternations appear exactly as written. The normalized form
// used for matching lives in the grammar package; callers that want to
// inspect or pretty-print a grammar as authored should use this package
// via Parse, not Compile.
package ast
