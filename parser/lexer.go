package parser

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/structuredgen/gbnf/ast"
	"github.com/structuredgen/gbnf/reporter"
)

type runeReader struct {
	data []byte
	pos  int
	err  error
	mark int
}

func (rr *runeReader) readRune() (r rune, size int, err error) {
	if rr.err != nil {
		return 0, 0, rr.err
	}
	if rr.pos == len(rr.data) {
		rr.err = io.EOF
		return 0, 0, rr.err
	}
	r, sz := utf8.DecodeRune(rr.data[rr.pos:])
	if r == utf8.RuneError && sz <= 1 {
		rr.err = fmt.Errorf("invalid UTF8 at offset %d: %x", rr.pos, rr.data[rr.pos])
		return 0, 0, rr.err
	}
	rr.pos += sz
	return r, sz, nil
}

func (rr *runeReader) offset() int {
	return rr.pos
}

func (rr *runeReader) unreadRune(sz int) {
	newPos := rr.pos - sz
	if newPos < rr.mark {
		panic("unread past mark")
	}
	rr.pos = newPos
}

func (rr *runeReader) setMark() {
	rr.mark = rr.pos
}

func (rr *runeReader) getMark() string {
	return string(rr.data[rr.mark:rr.pos])
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNewline
	tokenIdent
	tokenDefine // ::=
	tokenPipe
	tokenLParen
	tokenRParen
	tokenStar
	tokenPlus
	tokenQuestion
	tokenLBrace
	tokenRBrace
	tokenComma
	tokenInt
	tokenString
	tokenClass
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenNewline:
		return "newline"
	case tokenIdent:
		return "identifier"
	case tokenDefine:
		return `"::="`
	case tokenPipe:
		return `"|"`
	case tokenLParen:
		return `"("`
	case tokenRParen:
		return `")"`
	case tokenStar:
		return `"*"`
	case tokenPlus:
		return `"+"`
	case tokenQuestion:
		return `"?"`
	case tokenLBrace:
		return `"{"`
	case tokenRBrace:
		return `"}"`
	case tokenComma:
		return `","`
	case tokenInt:
		return "integer"
	case tokenString:
		return "string literal"
	case tokenClass:
		return "character class"
	default:
		return "unknown token"
	}
}

type token struct {
	kind   tokenKind
	offset int

	text    string          // identifier name or digits, as written
	value   []byte          // decoded bytes of a string literal
	ranges  []ast.CharRange // ranges of a character class
	negated bool            // character class negation
	num     uint64          // value of an integer token
}

type ebnfLex struct {
	input   *runeReader
	info    *ast.FileInfo
	handler *reporter.Handler
}

func newLexer(contents []byte, filename string, handler *reporter.Handler) *ebnfLex {
	return &ebnfLex{
		input:   &runeReader{data: contents},
		info:    ast.NewFileInfo(filename, contents),
		handler: handler,
	}
}

func (l *ebnfLex) maybeNewLine(r rune) {
	if r == '\n' {
		l.info.AddLine(l.input.offset())
	}
}

// errf reports a syntax error at the given offset. The returned error is
// non-nil if the handler wants to abort.
func (l *ebnfLex) errf(offset int, format string, args ...any) error {
	args = append([]any{ErrSyntax}, args...)
	return l.handler.HandleErrorf(l.info.SourcePos(offset), "%w: "+format, args...)
}

// next scans the next token. At end of input it returns a tokenEOF token.
// A non-nil error means the error handler aborted; the caller should stop.
func (l *ebnfLex) next() (token, error) {
	for {
		l.input.setMark()
		start := l.input.offset()
		c, _, err := l.input.readRune()
		if err == io.EOF {
			return token{kind: tokenEOF, offset: start}, nil
		} else if err != nil {
			return token{}, l.errf(start, "%v", err)
		}

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			continue
		case c == '\n':
			l.maybeNewLine(c)
			return token{kind: tokenNewline, offset: start}, nil
		case c == '#':
			l.skipLineComment()
			continue
		case c == ':':
			if err := l.finishDefine(start); err != nil {
				return token{}, err
			}
			return token{kind: tokenDefine, offset: start}, nil
		case c == '|':
			return token{kind: tokenPipe, offset: start}, nil
		case c == '(':
			return token{kind: tokenLParen, offset: start}, nil
		case c == ')':
			return token{kind: tokenRParen, offset: start}, nil
		case c == '*':
			return token{kind: tokenStar, offset: start}, nil
		case c == '+':
			return token{kind: tokenPlus, offset: start}, nil
		case c == '?':
			return token{kind: tokenQuestion, offset: start}, nil
		case c == '{':
			return token{kind: tokenLBrace, offset: start}, nil
		case c == '}':
			return token{kind: tokenRBrace, offset: start}, nil
		case c == ',':
			return token{kind: tokenComma, offset: start}, nil
		case c == '"':
			return l.readStringLiteral(start)
		case c == '[':
			return l.readCharClass(start)
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			l.readIdentifier()
			return token{kind: tokenIdent, offset: start, text: l.input.getMark()}, nil
		case c >= '0' && c <= '9':
			l.readNumber()
			text := l.input.getMark()
			n, err := strconv.ParseUint(text, 10, 32)
			if err != nil {
				if err := l.errf(start, "malformed integer %q", text); err != nil {
					return token{}, err
				}
				continue
			}
			return token{kind: tokenInt, offset: start, text: text, num: n}, nil
		default:
			if err := l.errf(start, "invalid character %q", c); err != nil {
				return token{}, err
			}
			continue
		}
	}
}

func (l *ebnfLex) skipLineComment() {
	for {
		c, sz, err := l.input.readRune()
		if err != nil {
			return
		}
		if c == '\n' {
			l.input.unreadRune(sz)
			return
		}
	}
}

func (l *ebnfLex) finishDefine(start int) error {
	for _, want := range ":=" {
		c, _, err := l.input.readRune()
		if err != nil || c != want {
			return l.errf(start, `expected "::="`)
		}
	}
	return nil
}

func (l *ebnfLex) readIdentifier() {
	for {
		c, sz, err := l.input.readRune()
		if err != nil {
			return
		}
		if c == '_' || c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		l.input.unreadRune(sz)
		return
	}
}

func (l *ebnfLex) readNumber() {
	for {
		c, sz, err := l.input.readRune()
		if err != nil {
			return
		}
		if c < '0' || c > '9' {
			l.input.unreadRune(sz)
			return
		}
	}
}

func (l *ebnfLex) readStringLiteral(start int) (token, error) {
	var value []byte
	for {
		c, _, err := l.input.readRune()
		if err != nil {
			return token{}, l.errf(start, "unterminated string literal")
		}
		switch c {
		case '\n':
			return token{}, l.errf(start, "unterminated string literal")
		case '"':
			return token{kind: tokenString, offset: start, value: value}, nil
		case '\\':
			r, isByte, err := l.readEscape()
			if err != nil {
				return token{}, err
			}
			if isByte {
				value = append(value, byte(r))
			} else {
				value = utf8.AppendRune(value, r)
			}
		default:
			value = utf8.AppendRune(value, c)
		}
	}
}

func (l *ebnfLex) readCharClass(start int) (token, error) {
	var (
		ranges  []ast.CharRange
		negated bool
	)

	c, sz, err := l.input.readRune()
	if err != nil {
		return token{}, l.errf(start, "unterminated character class")
	}
	if c == '^' {
		negated = true
	} else {
		l.input.unreadRune(sz)
	}

	for {
		lo, done, err := l.readClassChar(start)
		if err != nil {
			return token{}, err
		}
		if done {
			return token{kind: tokenClass, offset: start, ranges: ranges, negated: negated}, nil
		}

		hi := lo
		// A '-' not at the end of the class introduces a range.
		c, sz, err := l.input.readRune()
		if err != nil {
			return token{}, l.errf(start, "unterminated character class")
		}
		if c == '-' {
			hi, done, err = l.readClassChar(start)
			if err != nil {
				return token{}, err
			}
			if done {
				// Trailing '-' is a literal.
				ranges = append(ranges, ast.CharRange{Lo: lo, Hi: lo}, ast.CharRange{Lo: '-', Hi: '-'})
				return token{kind: tokenClass, offset: start, ranges: ranges, negated: negated}, nil
			}
			if hi < lo {
				if err := l.errf(start, "invalid character class range %q-%q", lo, hi); err != nil {
					return token{}, err
				}
				lo, hi = hi, lo
			}
		} else {
			l.input.unreadRune(sz)
		}
		ranges = append(ranges, ast.CharRange{Lo: lo, Hi: hi})
	}
}

// readClassChar reads a single (possibly escaped) character of a character
// class. done is true when the closing bracket was consumed instead.
func (l *ebnfLex) readClassChar(start int) (r rune, done bool, err error) {
	c, _, rerr := l.input.readRune()
	if rerr != nil || c == '\n' {
		return 0, false, l.errf(start, "unterminated character class")
	}
	switch c {
	case ']':
		return 0, true, nil
	case '\\':
		r, _, err := l.readEscape()
		return r, false, err
	default:
		return c, false, nil
	}
}

// readEscape decodes the escape sequence following a backslash. isByte is
// true for \xNN escapes, whose value is a raw byte rather than a rune.
func (l *ebnfLex) readEscape() (r rune, isByte bool, err error) {
	start := l.input.offset() - 1
	c, _, rerr := l.input.readRune()
	if rerr != nil {
		return 0, false, l.errf(start, "incomplete escape sequence")
	}
	switch c {
	case 'n':
		return '\n', false, nil
	case 'r':
		return '\r', false, nil
	case 't':
		return '\t', false, nil
	case '0':
		return 0, true, nil
	case '\\':
		return '\\', false, nil
	case '/':
		return '/', false, nil
	case '"', '\'', ']', '[', '^', '-':
		return c, false, nil
	case 'x':
		v, err := l.readHex(start, 2)
		return rune(v), true, err
	case 'u':
		v, err := l.readHex(start, 4)
		if err != nil {
			return 0, false, err
		}
		return l.checkRune(start, v)
	case 'U':
		v, err := l.readHex(start, 8)
		if err != nil {
			return 0, false, err
		}
		return l.checkRune(start, v)
	default:
		return 0, false, l.errf(start, `invalid escape sequence \%c`, c)
	}
}

func (l *ebnfLex) checkRune(start int, v uint32) (rune, bool, error) {
	r := rune(v)
	if r > utf8.MaxRune || (r >= 0xd800 && r <= 0xdfff) {
		return 0, false, l.errf(start, "escape sequence is not a valid code point: %#x", v)
	}
	return r, false, nil
}

func (l *ebnfLex) readHex(start, n int) (uint32, error) {
	var v uint32
	for range n {
		c, _, err := l.input.readRune()
		if err != nil {
			return 0, l.errf(start, "incomplete escape sequence")
		}
		var d uint32
		switch {
		case c >= '0' && c <= '9':
			d = uint32(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint32(c-'A') + 10
		default:
			return 0, l.errf(start, "invalid hex digit %q in escape sequence", c)
		}
		v = v<<4 | d
	}
	return v, nil
}
