// Package gbnf compiles EBNF grammars into a form that can constrain
// language model decoding, token by token.
//
// The compilation process involves three steps for each grammar:
//  1. Parsing the source into an AST (abstract syntax tree).
//  2. Normalizing the AST into a flat rule set of byte-level elements.
//  3. Validating the rule set: every referenced rule must exist, the
//     root rule must exist, and no rule may loop without consuming
//     input.
//
// A compiled grammar is immutable. Pairing it with a vocabulary index
// (see the vocab package) yields matchers (see the matcher package) that
// track a generation sequence and compute which tokens may come next.
//
// Most callers compile one grammar from an in-memory string with
// [CompileSource]. The [Compiler] type adds name resolution, custom
// error reporting, and parallelism for callers that compile many
// grammars, such as servers that receive one schema per request.
package gbnf
