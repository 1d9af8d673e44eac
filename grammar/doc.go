// Package grammar contains the normalized, immutable representation of a
// BNF/EBNF grammar used for matching.
//
// A Grammar is produced from a parsed AST by FromAST, which flattens
// nested expressions, rewrites repetition operators into synthesized
// recursive rules, validates every rule reference, and removes rules that
// are unreachable from the root. The resulting form is rigid: every rule
// body is a choice of sequences whose elements are atomic (literal bytes,
// a character class, a character class repeat, or a rule reference). The
// matcher package depends on this shape for its traversal.
//
// A Grammar is immutable after construction and safe for unlimited
// concurrent readers; any number of matchers may share one.
package grammar
