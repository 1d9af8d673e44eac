package grammar

import (
	"fmt"

	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/internal/arena"
	"github.com/structuredgen/gbnf/reporter"
)

// FromAST normalizes the given parse tree into a Grammar rooted at the
// named rule.
//
// Normalization flattens nested alternations and sequences, rewrites
// repetition operators into synthesized recursive rules, validates that
// every rule reference resolves, removes rules unreachable from the root,
// and rejects grammars containing zero-width cycles.
func FromAST(src *ast.GrammarNode, rootRule string, handler *reporter.Handler) (*Grammar, error) {
	if handler == nil {
		handler = reporter.NewHandler(nil)
	}

	b := &builder{
		handler: handler,
		defined: make(map[string]*ast.RuleNode, len(src.Rules)),
		ids:     make(map[string]RuleID),
	}

	// Collect definitions, rejecting duplicates.
	for _, r := range src.Rules {
		if prev, ok := b.defined[r.Name]; ok {
			if err := handler.HandleErrorf(r.Pos(), "rule %q already defined at %v", r.Name, prev.Pos()); err != nil {
				return nil, err
			}
			continue
		}
		b.defined[r.Name] = r
	}

	// Every reference must resolve, whether or not the referencing rule
	// survives dead-rule elimination.
	for _, r := range src.Rules {
		var abort error
		ast.Walk(r.Expr, func(e ast.ExprNode) bool {
			ref, ok := e.(*ast.RuleRefNode)
			if !ok || abort != nil {
				return true
			}
			if _, ok := b.defined[ref.Name]; !ok {
				abort = handler.HandleErrorf(ref.Pos(), "%w: rule %q is not defined", ErrUndefinedRule, ref.Name)
			}
			return true
		})
		if abort != nil {
			return nil, abort
		}
	}

	root, ok := b.defined[rootRule]
	if !ok {
		return nil, handler.HandleErrorf(src.Pos(), "%w: no rule named %q", ErrMissingRootRule, rootRule)
	}
	if err := handler.Error(); err != nil {
		return nil, err
	}

	// Only rules reachable from the root are lowered; the rest are
	// dropped here so the final rule ids stay contiguous.
	reachable := reachableRules(b.defined, rootRule)
	for _, r := range src.Rules {
		if _, ok := reachable[r.Name]; ok && b.defined[r.Name] == r {
			b.addRule(r.Name, r.Pos())
		}
	}
	for _, r := range src.Rules {
		id, ok := b.ids[r.Name]
		if ok && b.defined[r.Name] == r {
			b.rules[id].body = b.lowerBody(r.Name, r.Expr)
		}
	}
	if err := handler.Error(); err != nil {
		return nil, err
	}

	if err := b.checkEmptyLoops(b.ids[rootRule]); err != nil {
		return nil, err
	}
	if err := handler.Error(); err != nil {
		return nil, err
	}

	g := &Grammar{
		exprs: b.exprs,
		rules: make([]Rule, len(b.rules)),
		root:  b.ids[root.Name],
	}
	for i, r := range b.rules {
		g.rules[i] = Rule{Name: r.name, Body: r.body}
		g.names.Set(r.name, RuleID(i))
	}
	return g, nil
}

// reachableRules returns the names of all rules reachable from root
// through rule references.
func reachableRules(defined map[string]*ast.RuleNode, root string) map[string]struct{} {
	reachable := map[string]struct{}{root: {}}
	work := []string{root}
	for len(work) > 0 {
		name := work[len(work)-1]
		work = work[:len(work)-1]
		ast.Walk(defined[name].Expr, func(e ast.ExprNode) bool {
			if ref, ok := e.(*ast.RuleRefNode); ok {
				if _, seen := reachable[ref.Name]; !seen {
					reachable[ref.Name] = struct{}{}
					work = append(work, ref.Name)
				}
			}
			return true
		})
	}
	return reachable
}

type builderRule struct {
	name string
	pos  ast.SourcePos
	body ExprRef
}

type builder struct {
	handler *reporter.Handler
	defined map[string]*ast.RuleNode
	exprs   arena.Arena[Expr]
	rules   []builderRule
	ids     map[string]RuleID
}

func (b *builder) addRule(name string, pos ast.SourcePos) RuleID {
	id := RuleID(len(b.rules))
	b.rules = append(b.rules, builderRule{name: name, pos: pos})
	b.ids[name] = id
	return id
}

// synthRule reserves a fresh rule derived from parent's name. The body is
// assigned by the caller, which allows self-referential bodies.
func (b *builder) synthRule(parent string, pos ast.SourcePos) RuleID {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s_%d", parent, n)
		if _, taken := b.ids[name]; taken {
			continue
		}
		if _, taken := b.defined[name]; taken {
			continue
		}
		return b.addRule(name, pos)
	}
}

func (b *builder) alloc(e Expr) ExprRef {
	return b.exprs.New(e)
}

// lowerBody lowers a rule body into a KindChoices of KindSequence /
// KindEmpty alternatives.
func (b *builder) lowerBody(name string, e ast.ExprNode) ExprRef {
	var alts []ast.ExprNode
	flattenChoice(e, &alts)

	elems := make([]ExprRef, 0, len(alts))
	for _, alt := range alts {
		elems = append(elems, b.lowerAlt(name, alt))
	}
	return b.alloc(Expr{Kind: KindChoices, Elems: elems})
}

func flattenChoice(e ast.ExprNode, out *[]ast.ExprNode) {
	if c, ok := e.(*ast.ChoiceNode); ok {
		for _, alt := range c.Alts {
			flattenChoice(alt, out)
		}
		return
	}
	*out = append(*out, e)
}

// lowerAlt lowers one alternative into a KindSequence, or KindEmpty if the
// alternative matches only the empty string.
func (b *builder) lowerAlt(name string, e ast.ExprNode) ExprRef {
	var items []ast.ExprNode
	flattenSeq(e, &items)

	var elems []ExprRef
	for _, item := range items {
		b.lowerElem(name, item, &elems)
	}
	if len(elems) == 0 {
		return b.alloc(Expr{Kind: KindEmpty})
	}
	return b.alloc(Expr{Kind: KindSequence, Elems: elems})
}

func flattenSeq(e ast.ExprNode, out *[]ast.ExprNode) {
	if s, ok := e.(*ast.SeqNode); ok {
		for _, item := range s.Items {
			flattenSeq(item, out)
		}
		return
	}
	*out = append(*out, e)
}

// lowerElem lowers a single sequence element, appending zero or more
// atomic expressions to out.
func (b *builder) lowerElem(name string, e ast.ExprNode, out *[]ExprRef) {
	switch e := e.(type) {
	case *ast.LiteralNode:
		if len(e.Value) == 0 {
			return // "" contributes nothing to a sequence
		}
		val := make([]byte, len(e.Value))
		copy(val, e.Value)
		*out = append(*out, b.alloc(Expr{Kind: KindByteString, Bytes: val}))
	case *ast.CharClassNode:
		*out = append(*out, b.alloc(Expr{Kind: KindCharClass, Class: NewCharClass(e.Ranges, e.Negated)}))
	case *ast.RuleRefNode:
		*out = append(*out, b.alloc(Expr{Kind: KindRuleRef, Rule: b.ids[e.Name]}))
	case *ast.ChoiceNode:
		id := b.synthRule(name, e.Pos())
		b.rules[id].body = b.lowerBody(b.rules[id].name, e)
		*out = append(*out, b.alloc(Expr{Kind: KindRuleRef, Rule: id}))
	case *ast.SeqNode:
		// Nested sequences were flattened by flattenSeq; an empty one
		// is epsilon.
		for _, item := range e.Items {
			b.lowerElem(name, item, out)
		}
	case *ast.RepeatNode:
		b.lowerRepeat(name, e, out)
	default:
		panic(fmt.Sprintf("grammar: unknown AST node %T", e))
	}
}

func (b *builder) lowerRepeat(name string, rep *ast.RepeatNode, out *[]ExprRef) {
	// A starred character class stays a single matcher-friendly element
	// rather than a synthesized recursion.
	if cc, ok := rep.Expr.(*ast.CharClassNode); ok && rep.Max == ast.RepeatUnbounded && rep.Min <= 1 {
		class := NewCharClass(cc.Ranges, cc.Negated)
		if rep.Min == 1 {
			*out = append(*out, b.alloc(Expr{Kind: KindCharClass, Class: class}))
		}
		*out = append(*out, b.alloc(Expr{Kind: KindCharClassRepeat, Class: class}))
		return
	}

	// Lower one copy of the repeated expression. Expressions are
	// immutable, so the required copies can all share it.
	var sub []ExprRef
	b.lowerElem(name, rep.Expr, &sub)

	for range rep.Min {
		*out = append(*out, sub...)
	}

	switch {
	case rep.Max == ast.RepeatUnbounded:
		// e{m,} = e repeated m times, then e*.
		star := b.synthRule(name, rep.Pos())
		loop := append(append([]ExprRef{}, sub...), b.alloc(Expr{Kind: KindRuleRef, Rule: star}))
		b.rules[star].body = b.alloc(Expr{Kind: KindChoices, Elems: []ExprRef{
			b.alloc(Expr{Kind: KindSequence, Elems: loop}),
			b.alloc(Expr{Kind: KindEmpty}),
		}})
		*out = append(*out, b.alloc(Expr{Kind: KindRuleRef, Rule: star}))
	case rep.Max > rep.Min:
		// e{m,n} = e repeated m times, then a chain of n-m optionals:
		// opt_k ::= e opt_(k-1) | "" with opt_1 ::= e | "".
		var next RuleID = -1
		for range rep.Max - rep.Min {
			opt := b.synthRule(name, rep.Pos())
			seq := append([]ExprRef{}, sub...)
			if next >= 0 {
				seq = append(seq, b.alloc(Expr{Kind: KindRuleRef, Rule: next}))
			}
			b.rules[opt].body = b.alloc(Expr{Kind: KindChoices, Elems: []ExprRef{
				b.alloc(Expr{Kind: KindSequence, Elems: seq}),
				b.alloc(Expr{Kind: KindEmpty}),
			}})
			next = opt
		}
		*out = append(*out, b.alloc(Expr{Kind: KindRuleRef, Rule: next}))
	}
	// rep.Max == rep.Min needs nothing beyond the copies above.
}

// checkEmptyLoops rejects grammars in which some rule's entry can be
// re-entered without consuming a byte. The matcher's zero-width closure
// would otherwise never terminate.
//
// An edge R -> S exists when some alternative of R references S after a
// prefix of elements that can all match the empty string; a cycle over
// such edges is exactly a zero-width loop.
func (b *builder) checkEmptyLoops(root RuleID) error {
	nullable := b.nullability()

	// Zero-width edges per rule.
	edges := make([][]RuleID, len(b.rules))
	for id := range b.rules {
		body := b.rules[id].body.In(&b.exprs)
		for _, altRef := range body.Elems {
			alt := altRef.In(&b.exprs)
			if alt.Kind != KindSequence {
				continue
			}
			for _, elemRef := range alt.Elems {
				elem := elemRef.In(&b.exprs)
				if elem.Kind == KindRuleRef {
					edges[id] = append(edges[id], elem.Rule)
				}
				if !b.elemNullable(elem, nullable) {
					break
				}
			}
		}
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make([]uint8, len(b.rules))
	var visit func(RuleID) RuleID
	visit = func(id RuleID) RuleID {
		state[id] = inProgress
		for _, next := range edges[id] {
			switch state[next] {
			case inProgress:
				return next
			case unvisited:
				if bad := visit(next); bad >= 0 {
					return bad
				}
			}
		}
		state[id] = done
		return -1
	}
	if bad := visit(root); bad >= 0 {
		r := b.rules[bad]
		return b.handler.HandleErrorf(r.pos, "%w: rule %q can derive itself without consuming input", ErrEmptyLoop, r.name)
	}
	return nil
}

// nullability computes, for every rule, whether it can match the empty
// string, as a least fixed point.
func (b *builder) nullability() []bool {
	nullable := make([]bool, len(b.rules))
	for changed := true; changed; {
		changed = false
		for id := range b.rules {
			if nullable[id] {
				continue
			}
			body := b.rules[id].body.In(&b.exprs)
			for _, altRef := range body.Elems {
				alt := altRef.In(&b.exprs)
				if alt.Kind == KindEmpty {
					nullable[id] = true
					changed = true
					break
				}
				all := true
				for _, elemRef := range alt.Elems {
					if !b.elemNullable(elemRef.In(&b.exprs), nullable) {
						all = false
						break
					}
				}
				if all {
					nullable[id] = true
					changed = true
					break
				}
			}
		}
	}
	return nullable
}

func (b *builder) elemNullable(e *Expr, nullable []bool) bool {
	switch e.Kind {
	case KindEmpty, KindCharClassRepeat:
		return true
	case KindRuleRef:
		return nullable[e.Rule]
	default:
		return false
	}
}
