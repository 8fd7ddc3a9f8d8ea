package mtt

import (
	"fmt"
	"strings"
)

// Predicate is the parsed form of a guard or test expression (§6, §9
// Design Notes). Keeping an AST instead of the raw text is what lets the
// type-preservation validator reconcile a guard against a target
// restriction (§4.D step 2) and lets the preimage builder deduplicate
// predicates by structural equality (§4.E) instead of string slicing.
type Predicate interface {
	// String renders the predicate in a single normalized form: `=`
	// rewritten to `==`, entity escapes decoded, operands trimmed. Two
	// predicates are defined to be equal iff their String forms match,
	// which is the equality §4.E's deduplication step relies on.
	String() string
	isPredicate()
}

// Compare is an atomic `EXPR OP LITERAL` test.
type Compare struct {
	Path    string
	Op      string
	Literal string
}

func (c *Compare) String() string { return c.Path + " " + c.Op + " " + c.Literal }
func (*Compare) isPredicate()     {}

// And is a linear conjunction of terms, in source order.
type And struct{ Terms []Predicate }

func (a *And) String() string { return joinTerms(a.Terms, " and ") }
func (*And) isPredicate()     {}

// Or is a linear disjunction of terms, in source order.
type Or struct{ Terms []Predicate }

func (o *Or) String() string { return joinTerms(o.Terms, " or ") }
func (*Or) isPredicate()     {}

func joinTerms(terms []Predicate, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// Equal reports whether a and b are the same predicate after
// normalization, by comparing their String forms. The determinism check
// uses it; §4.E's deduplication compares the same String forms directly.
func Equal(a, b Predicate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

var entityUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// normalizeOp rewrites the legacy `=` spelling and decodes the entity
// escapes the mini-language must tolerate (§6).
func normalizeOp(op string) string {
	op = entityUnescaper.Replace(op)
	if op == "=" {
		return "=="
	}
	return op
}

var validOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// guardLexer tokenizes the guard mini-language, modeled on nihei9-vartan's
// hand-written lexer shape (grammar/lexical/parser.lexer): a small
// stateless scanner producing one token kind at a time, no
// external lexer generator.
type guardLexer struct {
	src []rune
	pos int
}

type gTokenKind string

const (
	gTokEOF   gTokenKind = "eof"
	gTokIdent gTokenKind = "ident"
	gTokOp    gTokenKind = "op"
	gTokNum   gTokenKind = "number"
	gTokStr   gTokenKind = "string"
	gTokAnd   gTokenKind = "and"
	gTokOr    gTokenKind = "or"
)

type gToken struct {
	kind gTokenKind
	text string
}

func newGuardLexer(src string) *guardLexer {
	return &guardLexer{src: []rune(entityUnescaper.Replace(src))}
}

func (l *guardLexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *guardLexer) skipSpace() {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
		l.pos++
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || r == '/' || r == '@' || r == ':' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-'
}

func (l *guardLexer) next() (gToken, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return gToken{kind: gTokEOF}, nil
	}
	r := l.peekRune()

	switch r {
	case '\'':
		return l.lexString()
	case '=', '!', '<', '>':
		return l.lexOp()
	}
	if r >= '0' && r <= '9' {
		return l.lexNumber()
	}
	if isIdentRune(r) {
		return l.lexIdentOrKeyword()
	}
	return gToken{}, fmt.Errorf("guard: unexpected character %q at offset %d", r, l.pos)
}

func (l *guardLexer) lexString() (gToken, error) {
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\'' {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return gToken{}, fmt.Errorf("guard: unterminated string literal")
	}
	text := string(l.src[start:l.pos])
	l.pos++ // closing quote
	return gToken{kind: gTokStr, text: "'" + text + "'"}, nil
}

func (l *guardLexer) lexNumber() (gToken, error) {
	start := l.pos
	for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
		l.pos++
	}
	return gToken{kind: gTokNum, text: string(l.src[start:l.pos])}, nil
}

func (l *guardLexer) lexOp() (gToken, error) {
	start := l.pos
	l.pos++
	if l.pos < len(l.src) && l.src[l.pos] == '=' {
		l.pos++
	}
	op := string(l.src[start:l.pos])
	if op == "!" {
		return gToken{}, fmt.Errorf("guard: bare %q is not a valid operator", op)
	}
	return gToken{kind: gTokOp, text: normalizeOp(op)}, nil
}

func (l *guardLexer) lexIdentOrKeyword() (gToken, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentRune(l.src[l.pos]) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	switch strings.ToLower(text) {
	case "and":
		return gToken{kind: gTokAnd, text: text}, nil
	case "or":
		return gToken{kind: gTokOr, text: text}, nil
	}
	return gToken{kind: gTokIdent, text: text}, nil
}

// guardParser is a small recursive-descent parser over the guard grammar:
//
//	predicate  = orExpr
//	orExpr     = andExpr ( "or" andExpr )*
//	andExpr    = comparison ( "and" comparison )*
//	comparison = IDENT OP (NUMBER | STRING)
type guardParser struct {
	lex *guardLexer
	tok gToken
}

// ParseGuard parses a guard/test expression into a Predicate (§6). An
// empty string is not a valid guard; callers check for that before
// calling this.
func ParseGuard(src string) (Predicate, error) {
	p := &guardParser{lex: newGuardLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != gTokEOF {
		return nil, fmt.Errorf("guard: unexpected trailing token %q", p.tok.text)
	}
	return pred, nil
}

func (p *guardParser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *guardParser) parseOr() (Predicate, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{first}
	for p.tok.kind == gTokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return &Or{Terms: terms}, nil
}

func (p *guardParser) parseAnd() (Predicate, error) {
	first, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{first}
	for p.tok.kind == gTokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return &And{Terms: terms}, nil
}

func (p *guardParser) parseComparison() (Predicate, error) {
	if p.tok.kind != gTokIdent {
		return nil, fmt.Errorf("guard: expected a path expression, got %q", p.tok.text)
	}
	path := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != gTokOp || !validOps[p.tok.text] {
		return nil, fmt.Errorf("guard: expected a comparison operator after %q, got %q", path, p.tok.text)
	}
	op := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != gTokNum && p.tok.kind != gTokStr {
		return nil, fmt.Errorf("guard: expected a literal after %q %s, got %q", path, op, p.tok.text)
	}
	literal := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &Compare{Path: path, Op: op, Literal: literal}, nil
}
