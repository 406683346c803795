package koat

import (
	"math/big"
	"strings"
	"unicode"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/variable"
)

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) []token {
	var toks []token

	r := []rune(s)

	for i := 0; i < len(r); {
		c := r[i]

		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '+' || c == '-' || c == '*' || c == '^':
			toks = append(toks, token{tokOp, string(c)})
			i++
		case unicode.IsDigit(c):
			j := i
			for j < len(r) && unicode.IsDigit(r[j]) {
				j++
			}

			toks = append(toks, token{tokNum, string(r[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(r) && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_') {
				j++
			}

			toks = append(toks, token{tokIdent, string(r[i:j])})
			i = j
		default:
			i++
		}
	}

	toks = append(toks, token{tokEOF, ""})

	return toks
}

type exprParser struct {
	line    int
	toks    []token
	pos     int
	resolve func(string) variable.ID
}

func (p *exprParser) peek() token {
	return p.toks[p.pos]
}

func (p *exprParser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}

	return t
}

func (p *exprParser) errf(format string, args ...any) error {
	return errf(p.line, format, args...)
}

// parseExprString parses a single arithmetic expression: sums/differences
// of products of integer literals, variables, and at most one base^var
// exponential factor per term (spec.md §6's grammar; the base must reduce
// to an integer literal and the exponent to a bare variable, matching
// pkg/expr's deliberately restricted exponential representation).
func parseExprString(line int, s string, resolve func(string) variable.ID) (expr.Expr, error) {
	p := &exprParser{line: line, toks: tokenize(s), resolve: resolve}

	e, err := p.parseExpression()
	if err != nil {
		return expr.Expr{}, err
	}

	if p.peek().kind != tokEOF {
		return expr.Expr{}, p.errf("unexpected trailing input in expression %q", s)
	}

	return e, nil
}

func (p *exprParser) parseExpression() (expr.Expr, error) {
	e, err := p.parseTerm()
	if err != nil {
		return expr.Expr{}, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			break
		}

		p.next()

		rhs, err := p.parseTerm()
		if err != nil {
			return expr.Expr{}, err
		}

		if t.text == "+" {
			e = e.Add(rhs)
		} else {
			e = e.Sub(rhs)
		}
	}

	return e, nil
}

func (p *exprParser) parseTerm() (expr.Expr, error) {
	e, err := p.parseFactor()
	if err != nil {
		return expr.Expr{}, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp || t.text != "*" {
			break
		}

		p.next()

		rhs, err := p.parseFactor()
		if err != nil {
			return expr.Expr{}, err
		}

		e = e.Mul(rhs)
	}

	return e, nil
}

func (p *exprParser) parseFactor() (expr.Expr, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.next()

		e, err := p.parseFactor()
		if err != nil {
			return expr.Expr{}, err
		}

		return e.Neg(), nil
	}

	return p.parsePower()
}

func (p *exprParser) parsePower() (expr.Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return expr.Expr{}, err
	}

	t := p.peek()
	if t.kind != tokOp || t.text != "^" {
		return base, nil
	}

	p.next()

	expTok := p.next()
	if expTok.kind != tokIdent {
		return expr.Expr{}, p.errf("exponent must be a variable, got %q", expTok.text)
	}

	baseConst, ok := base.AsConstant()
	if !ok {
		return expr.Expr{}, p.errf("exponential base must be an integer literal")
	}

	v := p.resolve(expTok.text)

	return expr.Geometric(big.NewInt(1), baseConst, v), nil
}

func (p *exprParser) parseAtom() (expr.Expr, error) {
	t := p.next()

	switch t.kind {
	case tokNum:
		n := new(big.Int)
		if _, ok := n.SetString(t.text, 10); !ok {
			return expr.Expr{}, p.errf("malformed integer literal %q", t.text)
		}

		return expr.Const(n), nil
	case tokIdent:
		return expr.Var(p.resolve(t.text)), nil
	case tokLParen:
		e, err := p.parseExpression()
		if err != nil {
			return expr.Expr{}, err
		}

		if p.peek().kind != tokRParen {
			return expr.Expr{}, p.errf("expected closing ')'")
		}

		p.next()

		return e, nil
	default:
		return expr.Expr{}, p.errf("unexpected token %q", t.text)
	}
}

// parseGuardAtoms splits guardText into individual atoms using the
// conjunction separator implied by style ("slash" for "/\", "amp" for
// "&&"), then parses each as `lhs REL rhs`.
func parseGuardAtoms(line int, guardText, style string, resolve func(string) variable.ID) (guard.Guard, error) {
	sep := "/\\"
	if style == "amp" {
		sep = "&&"
	}

	var atoms []guard.Atom

	for _, part := range strings.Split(guardText, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		a, err := parseGuardAtom(line, part, resolve)
		if err != nil {
			return guard.Guard{}, err
		}

		atoms = append(atoms, a)
	}

	return guard.New(atoms...), nil
}

type relToken struct {
	text string
	rel  guard.Relation
	swap bool
}

var relTokens = []relToken{
	{">=", guard.GE, false},
	{"<=", guard.GE, true},
	{"==", guard.EQ, false},
	{"=", guard.EQ, false},
	{">", guard.GT, false},
	{"<", guard.GT, true},
}

func parseGuardAtom(line int, s string, resolve func(string) variable.ID) (guard.Atom, error) {
	for _, rt := range relTokens {
		idx := strings.Index(s, rt.text)
		if idx < 0 {
			continue
		}

		lhsStr := s[:idx]
		rhsStr := s[idx+len(rt.text):]

		lhs, err := parseExprString(line, lhsStr, resolve)
		if err != nil {
			return guard.Atom{}, err
		}

		rhs, err := parseExprString(line, rhsStr, resolve)
		if err != nil {
			return guard.Atom{}, err
		}

		if rt.swap {
			lhs, rhs = rhs, lhs
		}

		return guard.NewAtom(lhs.Sub(rhs), rt.rel), nil
	}

	return guard.Atom{}, errf(line, "missing relational operator in guard atom %q", s)
}
