package grammar

import (
	"fmt"
	"strings"

	"github.com/structuredgen/gbnf/ast"
)

// String prints the normalized grammar as EBNF source text, one rule per
// line, in rule id order. Synthesized rules appear under their generated
// names, so the output shows exactly what the matcher will traverse.
func (g *Grammar) String() string {
	var sb strings.Builder
	for id := range g.rules {
		g.writeRule(&sb, RuleID(id))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (g *Grammar) writeRule(sb *strings.Builder, id RuleID) {
	r := g.rules[id]
	sb.WriteString(r.Name)
	sb.WriteString(" ::= ")

	body := g.Expr(r.Body)
	for i, altRef := range body.Elems {
		if i > 0 {
			sb.WriteString(" | ")
		}
		g.writeAlt(sb, altRef)
	}
}

func (g *Grammar) writeAlt(sb *strings.Builder, ref ExprRef) {
	alt := g.Expr(ref)
	if alt.Kind == KindEmpty {
		sb.WriteString(`""`)
		return
	}
	for i, elemRef := range alt.Elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		g.writeElem(sb, elemRef)
	}
}

func (g *Grammar) writeElem(sb *strings.Builder, ref ExprRef) {
	e := g.Expr(ref)
	switch e.Kind {
	case KindByteString:
		sb.WriteString(ast.QuoteLiteral(e.Bytes))
	case KindCharClass:
		sb.WriteString(ast.FormatCharClass(e.Class.Ranges, e.Class.Negated))
	case KindCharClassRepeat:
		sb.WriteString(ast.FormatCharClass(e.Class.Ranges, e.Class.Negated))
		sb.WriteByte('*')
	case KindRuleRef:
		sb.WriteString(g.rules[e.Rule].Name)
	default:
		panic(fmt.Sprintf("grammar: unexpected %v in sequence", e.Kind))
	}
}
