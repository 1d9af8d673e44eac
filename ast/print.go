package ast

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// String prints the grammar back as EBNF source text, one rule per line.
// The output parses to an equivalent tree, though whitespace and escape
// choices may differ from the original source.
func (g *GrammarNode) String() string {
	var sb strings.Builder
	for _, r := range g.Rules {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (r *RuleNode) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	sb.WriteString(" ::= ")
	writeExpr(&sb, r.Expr, precChoice)
	return sb.String()
}

// Operator precedence levels used to decide when a printed subexpression
// needs parentheses.
const (
	precChoice = iota
	precSeq
	precRepeat
)

func writeExpr(sb *strings.Builder, e ExprNode, prec int) {
	switch e := e.(type) {
	case *ChoiceNode:
		if prec > precChoice {
			sb.WriteByte('(')
		}
		for i, alt := range e.Alts {
			if i > 0 {
				sb.WriteString(" | ")
			}
			writeExpr(sb, alt, precSeq)
		}
		if prec > precChoice {
			sb.WriteByte(')')
		}
	case *SeqNode:
		if len(e.Items) == 0 {
			sb.WriteString(`""`)
			return
		}
		if prec > precSeq {
			sb.WriteByte('(')
		}
		for i, item := range e.Items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			writeExpr(sb, item, precRepeat)
		}
		if prec > precSeq {
			sb.WriteByte(')')
		}
	case *RepeatNode:
		writeExpr(sb, e.Expr, precRepeat)
		switch {
		case e.Min == 0 && e.Max == RepeatUnbounded:
			sb.WriteByte('*')
		case e.Min == 1 && e.Max == RepeatUnbounded:
			sb.WriteByte('+')
		case e.Min == 0 && e.Max == 1:
			sb.WriteByte('?')
		case e.Max == RepeatUnbounded:
			fmt.Fprintf(sb, "{%d,}", e.Min)
		case e.Min == e.Max:
			fmt.Fprintf(sb, "{%d}", e.Min)
		default:
			fmt.Fprintf(sb, "{%d,%d}", e.Min, e.Max)
		}
	case *LiteralNode:
		sb.WriteString(QuoteLiteral(e.Value))
	case *CharClassNode:
		sb.WriteString(FormatCharClass(e.Ranges, e.Negated))
	case *RuleRefNode:
		sb.WriteString(e.Name)
	default:
		panic(fmt.Sprintf("ast: unknown expression node %T", e))
	}
}

// QuoteLiteral renders literal bytes as a double-quoted EBNF string,
// escaping as needed. Bytes that do not form valid UTF-8 are emitted as
// \xNN escapes.
func QuoteLiteral(value []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(value); {
		r, sz := utf8.DecodeRune(value[i:])
		if r == utf8.RuneError && sz <= 1 {
			fmt.Fprintf(&sb, `\x%02x`, value[i])
			i++
			continue
		}
		writeEscapedRune(&sb, r, '"')
		i += sz
	}
	sb.WriteByte('"')
	return sb.String()
}

// FormatCharClass renders a character class in EBNF syntax.
func FormatCharClass(ranges []CharRange, negated bool) string {
	var sb strings.Builder
	sb.WriteByte('[')
	if negated {
		sb.WriteByte('^')
	}
	for _, cr := range ranges {
		writeEscapedRune(&sb, cr.Lo, ']')
		if cr.Hi != cr.Lo {
			sb.WriteByte('-')
			writeEscapedRune(&sb, cr.Hi, ']')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func writeEscapedRune(sb *strings.Builder, r rune, quote rune) {
	switch r {
	case '\n':
		sb.WriteString(`\n`)
		return
	case '\r':
		sb.WriteString(`\r`)
		return
	case '\t':
		sb.WriteString(`\t`)
		return
	case '\\':
		sb.WriteString(`\\`)
		return
	case quote:
		sb.WriteByte('\\')
		sb.WriteRune(r)
		return
	}
	if quote == ']' && r == '-' {
		sb.WriteString(`\-`)
		return
	}
	switch {
	case r < 0x20 || r == 0x7f:
		fmt.Fprintf(sb, `\x%02x`, r)
	case r < 0x80:
		sb.WriteRune(r)
	case r <= 0xffff && isPrintableClass(r):
		sb.WriteRune(r)
	case r <= 0xffff:
		fmt.Fprintf(sb, `\u%04x`, r)
	default:
		fmt.Fprintf(sb, `\U%08x`, r)
	}
}

func isPrintableClass(r rune) bool {
	// Anything outside the surrogate range is fine to emit literally;
	// surrogates cannot be encoded as UTF-8.
	return r < 0xd800 || r > 0xdfff
}
