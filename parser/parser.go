package parser

import (
	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/reporter"
)

// Parse parses the given grammar source into an AST. The given filename
// is used to annotate all source positions in error messages.
//
// If the given handler's reporter returns nil from its error callback,
// the parser attempts to recover at the next rule boundary and report
// further errors; the returned AST then contains the rules that parsed
// cleanly and the returned error summarizes the failure. With a nil or
// fail-fast reporter, the first syntax error is returned immediately.
func Parse(filename string, contents []byte, handler *reporter.Handler) (*ast.GrammarNode, error) {
	lex := newLexer(contents, filename, handler)

	var toks []token
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokenEOF {
			break
		}
	}

	p := &ebnfParser{toks: toks, lex: lex, handler: handler}
	res := p.parseGrammar()
	return res, handler.Error()
}

type ebnfParser struct {
	toks    []token
	pos     int
	lex     *ebnfLex
	handler *reporter.Handler

	// set when the handler aborted; stops all further parsing
	aborted bool
}

func (p *ebnfParser) cur() token {
	return p.toks[p.pos]
}

func (p *ebnfParser) peek(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos+n]
}

func (p *ebnfParser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *ebnfParser) skipNewlines() {
	for p.cur().kind == tokenNewline {
		p.advance()
	}
}

func (p *ebnfParser) posOf(tok token) ast.SourcePos {
	return p.lex.info.SourcePos(tok.offset)
}

// errf reports a syntax error at the given token. If the handler aborts,
// the parser stops producing further nodes.
func (p *ebnfParser) errf(tok token, format string, args ...any) {
	args = append([]any{ErrSyntax}, args...)
	if p.handler.HandleErrorf(p.posOf(tok), "%w: "+format, args...) != nil {
		p.aborted = true
	}
}

func (p *ebnfParser) parseGrammar() *ast.GrammarNode {
	var rules []*ast.RuleNode
	p.skipNewlines()
	for p.cur().kind != tokenEOF && !p.aborted {
		rule, ok := p.parseRule()
		if ok {
			rules = append(rules, rule)
		} else {
			// Recover at the next rule boundary.
			for p.cur().kind != tokenNewline && p.cur().kind != tokenEOF {
				p.advance()
			}
		}
		p.skipNewlines()
	}
	return ast.NewGrammarNode(rules)
}

func (p *ebnfParser) parseRule() (*ast.RuleNode, bool) {
	name := p.cur()
	if name.kind != tokenIdent {
		p.errf(name, "expected rule name, got %v", name.kind)
		return nil, false
	}
	p.advance()

	if tok := p.cur(); tok.kind != tokenDefine {
		p.errf(tok, `expected "::=" after rule name, got %v`, tok.kind)
		return nil, false
	}
	p.advance()

	expr, ok := p.parseChoice(false)
	if !ok {
		return nil, false
	}

	if tok := p.cur(); tok.kind != tokenNewline && tok.kind != tokenEOF {
		p.errf(tok, "unexpected %v at end of rule", tok.kind)
		return nil, false
	}

	return ast.NewRuleNode(name.text, expr, p.posOf(name)), true
}

// parseChoice parses a sequence of alternatives separated by pipes. At the
// top level of a rule, a newline ends the rule unless the next non-blank
// line begins with a pipe; inside parentheses newlines are insignificant.
func (p *ebnfParser) parseChoice(inParens bool) (ast.ExprNode, bool) {
	first, ok := p.parseSeq(inParens)
	if !ok {
		return nil, false
	}
	alts := []ast.ExprNode{first}

	for {
		if inParens {
			p.skipNewlines()
		} else if p.cur().kind == tokenNewline {
			// Look past blank lines for a continuation pipe.
			n := 0
			for p.peek(n).kind == tokenNewline {
				n++
			}
			if p.peek(n).kind != tokenPipe {
				break
			}
			p.skipNewlines()
		}
		if p.cur().kind != tokenPipe {
			break
		}
		p.advance()
		if inParens {
			p.skipNewlines()
		}

		alt, ok := p.parseSeq(inParens)
		if !ok {
			return nil, false
		}
		alts = append(alts, alt)
	}

	if len(alts) == 1 {
		return alts[0], true
	}
	return ast.NewChoiceNode(alts), true
}

func (p *ebnfParser) parseSeq(inParens bool) (ast.ExprNode, bool) {
	start := p.cur()
	var items []ast.ExprNode

	for {
		if inParens {
			p.skipNewlines()
		}

		var atom ast.ExprNode
		tok := p.cur()
		switch tok.kind {
		case tokenString:
			atom = ast.NewLiteralNode(tok.value, p.posOf(tok))
			p.advance()
		case tokenClass:
			atom = ast.NewCharClassNode(tok.ranges, tok.negated, p.posOf(tok))
			p.advance()
		case tokenIdent:
			if p.peek(1).kind == tokenDefine {
				// Start of the next rule; let the caller handle it.
				return p.finishSeq(items, start)
			}
			atom = ast.NewRuleRefNode(tok.text, p.posOf(tok))
			p.advance()
		case tokenLParen:
			p.advance()
			inner, ok := p.parseChoice(true)
			if !ok {
				return nil, false
			}
			if closer := p.cur(); closer.kind != tokenRParen {
				p.errf(closer, `expected ")", got %v`, closer.kind)
				return nil, false
			}
			p.advance()
			atom = inner
		default:
			return p.finishSeq(items, start)
		}

		atom, ok := p.parseRepetition(atom)
		if !ok {
			return nil, false
		}
		items = append(items, atom)
	}
}

func (p *ebnfParser) finishSeq(items []ast.ExprNode, start token) (ast.ExprNode, bool) {
	if len(items) == 0 {
		p.errf(start, "expected expression, got %v", start.kind)
		return nil, false
	}
	if len(items) == 1 {
		return items[0], true
	}
	return ast.NewSeqNode(items, p.posOf(start)), true
}

// parseRepetition applies any trailing repetition operators to expr.
func (p *ebnfParser) parseRepetition(expr ast.ExprNode) (ast.ExprNode, bool) {
	for {
		switch p.cur().kind {
		case tokenStar:
			p.advance()
			expr = ast.NewRepeatNode(expr, 0, ast.RepeatUnbounded)
		case tokenPlus:
			p.advance()
			expr = ast.NewRepeatNode(expr, 1, ast.RepeatUnbounded)
		case tokenQuestion:
			p.advance()
			expr = ast.NewRepeatNode(expr, 0, 1)
		case tokenLBrace:
			var ok bool
			expr, ok = p.parseBracedRepetition(expr)
			if !ok {
				return nil, false
			}
		default:
			return expr, true
		}
	}
}

func (p *ebnfParser) parseBracedRepetition(expr ast.ExprNode) (ast.ExprNode, bool) {
	p.advance() // consume "{"

	lo := p.cur()
	if lo.kind != tokenInt {
		p.errf(lo, "expected repetition count, got %v", lo.kind)
		return nil, false
	}
	p.advance()
	minCount := int(lo.num)
	maxCount := minCount

	if p.cur().kind == tokenComma {
		p.advance()
		maxCount = ast.RepeatUnbounded
		if hi := p.cur(); hi.kind == tokenInt {
			maxCount = int(hi.num)
			p.advance()
			if maxCount < minCount {
				p.errf(hi, "repetition bound {%d,%d} is inverted", minCount, maxCount)
				return nil, false
			}
		}
	}

	if closer := p.cur(); closer.kind != tokenRBrace {
		p.errf(closer, `expected "}" in repetition bound, got %v`, closer.kind)
		return nil, false
	}
	p.advance()

	return ast.NewRepeatNode(expr, minCount, maxCount), true
}
