package ast

// Node is the interface implemented by all nodes in the parse tree.
type Node interface {
	Pos() SourcePos
}

type node struct {
	pos SourcePos
}

func (n node) Pos() SourcePos {
	return n.pos
}

// GrammarNode is the root of a parsed grammar: an ordered list of rule
// definitions.
type GrammarNode struct {
	node
	Rules []*RuleNode

	byName map[string]*RuleNode
}

func NewGrammarNode(rules []*RuleNode) *GrammarNode {
	g := &GrammarNode{Rules: rules, byName: make(map[string]*RuleNode, len(rules))}
	if len(rules) > 0 {
		g.pos = rules[0].Pos()
	}
	for _, r := range rules {
		// First definition wins, matching lookup order everywhere else.
		if _, ok := g.byName[r.Name]; !ok {
			g.byName[r.Name] = r
		}
	}
	return g
}

// Rule returns the definition of the named rule, or nil if the grammar has
// no such rule.
func (g *GrammarNode) Rule(name string) *RuleNode {
	return g.byName[name]
}

// RuleNode is a single rule definition: name ::= expr.
type RuleNode struct {
	node
	Name string
	Expr ExprNode
}

func NewRuleNode(name string, expr ExprNode, pos SourcePos) *RuleNode {
	return &RuleNode{node: node{pos: pos}, Name: name, Expr: expr}
}

// ExprNode is the interface implemented by all expression nodes.
type ExprNode interface {
	Node
	exprNode()
}

// ChoiceNode is an alternation: expr | expr | ...
//
// A well-formed choice has at least two alternatives; the parser does not
// produce single-element choices.
type ChoiceNode struct {
	node
	Alts []ExprNode
}

func NewChoiceNode(alts []ExprNode) *ChoiceNode {
	n := &ChoiceNode{Alts: alts}
	if len(alts) > 0 {
		n.pos = alts[0].Pos()
	}
	return n
}

// SeqNode is a sequence of expressions matched one after another. An empty
// sequence matches the empty string; this is how "" literals and empty
// alternatives are represented.
type SeqNode struct {
	node
	Items []ExprNode
}

func NewSeqNode(items []ExprNode, pos SourcePos) *SeqNode {
	n := &SeqNode{node: node{pos: pos}, Items: items}
	if len(items) > 0 {
		n.pos = items[0].Pos()
	}
	return n
}

// RepeatUnbounded is the Max value of a RepeatNode with no upper bound.
const RepeatUnbounded = -1

// RepeatNode applies a repetition operator to an expression: e*, e+, e?,
// or a bounded form e{m}, e{m,}, e{m,n}. Max is RepeatUnbounded when there
// is no upper bound.
type RepeatNode struct {
	node
	Expr     ExprNode
	Min, Max int
}

func NewRepeatNode(expr ExprNode, minCount, maxCount int) *RepeatNode {
	return &RepeatNode{node: node{pos: expr.Pos()}, Expr: expr, Min: minCount, Max: maxCount}
}

// LiteralNode is a string literal. Value holds the decoded bytes, with all
// escape sequences resolved.
type LiteralNode struct {
	node
	Value []byte
}

func NewLiteralNode(value []byte, pos SourcePos) *LiteralNode {
	return &LiteralNode{node: node{pos: pos}, Value: value}
}

// CharRange is one inclusive rune range of a character class. A singleton
// character is represented with Lo == Hi.
type CharRange struct {
	Lo, Hi rune
}

// CharClassNode is a character class: [a-z0-9] or, negated, [^...].
type CharClassNode struct {
	node
	Ranges  []CharRange
	Negated bool
}

func NewCharClassNode(ranges []CharRange, negated bool, pos SourcePos) *CharClassNode {
	return &CharClassNode{node: node{pos: pos}, Ranges: ranges, Negated: negated}
}

// RuleRefNode is a reference to another rule by name.
type RuleRefNode struct {
	node
	Name string
}

func NewRuleRefNode(name string, pos SourcePos) *RuleRefNode {
	return &RuleRefNode{node: node{pos: pos}, Name: name}
}

func (*ChoiceNode) exprNode()    {}
func (*SeqNode) exprNode()       {}
func (*RepeatNode) exprNode()    {}
func (*LiteralNode) exprNode()   {}
func (*CharClassNode) exprNode() {}
func (*RuleRefNode) exprNode()   {}
