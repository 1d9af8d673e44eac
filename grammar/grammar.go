package grammar

import (
	"fmt"

	"github.com/tidwall/btree"

	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/internal/arena"
	"github.com/structuredgen/gbnf/internal/interval"
)

// RuleID identifies a rule of a Grammar. IDs are contiguous from 0 to
// NumRules-1.
type RuleID int32

// ExprRef is a compressed pointer to an expression in a Grammar's
// expression arena.
type ExprRef = arena.Pointer[Expr]

// ExprKind discriminates the closed set of normalized expression forms.
type ExprKind uint8

const (
	// KindEmpty matches the empty string. It appears only as an
	// alternative of a KindChoices.
	KindEmpty ExprKind = iota
	// KindByteString matches a fixed run of bytes.
	KindByteString
	// KindCharClass matches a single character drawn from (or excluded
	// from) a set of rune ranges.
	KindCharClass
	// KindCharClassRepeat matches zero or more characters of a class.
	KindCharClassRepeat
	// KindRuleRef matches the language of another rule.
	KindRuleRef
	// KindSequence matches its elements one after another. It appears
	// only as an alternative of a KindChoices.
	KindSequence
	// KindChoices matches any one of its alternatives. It appears only
	// as a rule body.
	KindChoices
)

func (k ExprKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindByteString:
		return "byte string"
	case KindCharClass:
		return "character class"
	case KindCharClassRepeat:
		return "character class repeat"
	case KindRuleRef:
		return "rule reference"
	case KindSequence:
		return "sequence"
	case KindChoices:
		return "choices"
	default:
		return fmt.Sprintf("ExprKind(%d)", uint8(k))
	}
}

// Expr is one normalized grammar expression. Which fields are meaningful
// depends on Kind.
type Expr struct {
	Kind ExprKind

	// Bytes is the literal content of a KindByteString.
	Bytes []byte
	// Class describes a KindCharClass or KindCharClassRepeat.
	Class *CharClass
	// Rule is the target of a KindRuleRef.
	Rule RuleID
	// Elems are the children of a KindSequence or KindChoices.
	Elems []ExprRef
}

// CharClass is the matchable form of a character class. The authored
// ranges are retained for printing; membership queries go through the
// coalesced interval set.
type CharClass struct {
	Ranges  []ast.CharRange
	Negated bool

	set interval.Set[rune]
}

// NewCharClass builds a CharClass from authored ranges.
func NewCharClass(ranges []ast.CharRange, negated bool) *CharClass {
	c := &CharClass{Ranges: ranges, Negated: negated}
	for _, r := range ranges {
		c.set.Insert(r.Lo, r.Hi)
	}
	return c
}

// Matches reports whether the class accepts the given rune.
func (c *CharClass) Matches(r rune) bool {
	return c.set.Contains(r) != c.Negated
}

// MatchesAny reports whether the class accepts at least one rune in the
// inclusive range [lo, hi]. The matcher uses this to decide whether a
// partially-read UTF-8 sequence can still complete into an accepted rune.
func (c *CharClass) MatchesAny(lo, hi rune) bool {
	if c.Negated {
		return !c.set.Covers(lo, hi)
	}
	return c.set.Overlaps(lo, hi)
}

// Rule is a single rule of a normalized Grammar. Body always refers to a
// KindChoices expression.
type Rule struct {
	Name string
	Body ExprRef
}

// Grammar is the normalized, immutable form of an EBNF grammar.
type Grammar struct {
	exprs arena.Arena[Expr]
	rules []Rule
	names btree.Map[string, RuleID]
	root  RuleID
}

// Root returns the id of the grammar's root rule.
func (g *Grammar) Root() RuleID {
	return g.root
}

// NumRules returns the number of rules, including rules synthesized by
// normalization.
func (g *Grammar) NumRules() int {
	return len(g.rules)
}

// Rule returns the rule with the given id.
func (g *Grammar) Rule(id RuleID) Rule {
	return g.rules[id]
}

// RuleNamed returns the id of the rule with the given name.
func (g *Grammar) RuleNamed(name string) (RuleID, bool) {
	return g.names.Get(name)
}

// Expr resolves an expression reference. The returned value must be
// treated as read-only; it aliases the grammar's internal storage.
func (g *Grammar) Expr(ref ExprRef) *Expr {
	return ref.In(&g.exprs)
}
