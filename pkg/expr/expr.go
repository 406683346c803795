// Package expr implements the symbolic polynomial expressions of spec.md
// §3/§4.B: polynomials over program and temporary variables with integer
// coefficients, a distinguished INF sentinel for unbounded costs, and the
// substitution/equality/complexity/linearity queries every other component
// relies on. Grounded on the teacher's pkg/util/poly (Monomial/Polynomial
// split, Add/Sub/Mul, three-valued IsZero collapsed here to a plain bool
// since our arithmetic is exact big.Int, not field arithmetic).
package expr

import (
	"bytes"
	"fmt"
	"math/big"
	"slices"

	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/variable"
)

// Expr is an immutable polynomial expression, or the distinguished Inf
// sentinel.
type Expr struct {
	terms []term
	inf   bool
}

// Inf is the distinguished unbounded-cost sentinel (spec.md §3).
var Inf = Expr{inf: true}

// Zero is the empty polynomial (additive identity).
var Zero = Expr{}

// ConstInt constructs the constant polynomial n.
func ConstInt(n int64) Expr {
	return constant(big.NewInt(n))
}

// Const constructs the constant polynomial n, for values too large for
// ConstInt's int64 parameter (e.g. an oracle-produced coefficient).
func Const(n *big.Int) Expr {
	return constant(n)
}

func constant(n *big.Int) Expr {
	if n.Sign() == 0 {
		return Zero
	}

	return Expr{terms: []term{{coefficient: new(big.Int).Set(n)}}}
}

// Var constructs the polynomial consisting of exactly one variable.
func Var(id variable.ID) Expr {
	return Expr{terms: []term{newTerm(big.NewInt(1), id)}}
}

// IsInf reports whether this is the distinguished INF expression.
func (e Expr) IsInf() bool {
	return e.inf
}

// IsZero reports whether this polynomial is identically zero.
func (e Expr) IsZero() bool {
	return !e.inf && len(e.terms) == 0
}

// AsConstant returns the constant value of e, if e is a degree-0 polynomial
// (no variables, no exponential factor, not INF).
func (e Expr) AsConstant() (*big.Int, bool) {
	if e.inf {
		return nil, false
	}

	if len(e.terms) == 0 {
		return big.NewInt(0), true
	}

	if len(e.terms) == 1 && e.terms[0].degree() == 0 && e.terms[0].exp == nil {
		return new(big.Int).Set(e.terms[0].coefficient), true
	}

	return nil, false
}

// normalize sorts terms, combines matching ones, and drops zero-coefficient
// terms, producing the canonical representation used for structural
// equality.
func normalize(ts []term) []term {
	slices.SortFunc(ts, func(a, b term) int { return a.cmp(b) })

	out := ts[:0]

	for _, t := range ts {
		if len(out) > 0 && out[len(out)-1].matches(t) {
			last := &out[len(out)-1]
			last.coefficient.Add(last.coefficient, t.coefficient)
		} else {
			out = append(out, t)
		}
	}

	result := out[:0:0]

	for _, t := range out {
		if !t.isZero() {
			result = append(result, t)
		}
	}

	return result
}

// Add returns e + o.
func (e Expr) Add(o Expr) Expr {
	if e.inf || o.inf {
		return Inf
	}

	ts := make([]term, 0, len(e.terms)+len(o.terms))
	for _, t := range e.terms {
		ts = append(ts, t.clone())
	}

	for _, t := range o.terms {
		ts = append(ts, t.clone())
	}

	return Expr{terms: normalize(ts)}
}

// Neg returns -e.
func (e Expr) Neg() Expr {
	if e.inf {
		return Inf
	}

	ts := make([]term, len(e.terms))
	for i, t := range e.terms {
		ts[i] = t.clone()
		ts[i].coefficient.Neg(ts[i].coefficient)
	}

	return Expr{terms: ts}
}

// Sub returns e - o.
func (e Expr) Sub(o Expr) Expr {
	return e.Add(o.Neg())
}

// Mul returns e * o.
func (e Expr) Mul(o Expr) Expr {
	if e.IsZero() || o.IsZero() {
		return Zero
	}

	if e.inf || o.inf {
		return Inf
	}

	ts := make([]term, 0, len(e.terms)*len(o.terms))
	for _, a := range e.terms {
		for _, b := range o.terms {
			ts = append(ts, a.mul(b))
		}
	}

	return Expr{terms: normalize(ts)}
}

// MulConst returns e scaled by the integer constant k.
func (e Expr) MulConst(k *big.Int) Expr {
	return e.Mul(constant(k))
}

// Equals performs structural equality, modulo simplification (spec.md §3
// "equality-modulo-simplification"): both sides are already maintained in
// canonical normal form, so this is exact.
func (e Expr) Equals(o Expr) bool {
	if e.inf || o.inf {
		return e.inf == o.inf
	}

	if len(e.terms) != len(o.terms) {
		return false
	}

	for i := range e.terms {
		a, b := e.terms[i], o.terms[i]
		if !a.matches(b) || a.coefficient.Cmp(b.coefficient) != 0 {
			return false
		}
	}

	return true
}

// Cmp provides a total order over expressions, used by guard.Guard to keep
// its atom list canonically sorted without depending on variable names.
func (e Expr) Cmp(o Expr) int {
	switch {
	case e.inf && o.inf:
		return 0
	case e.inf:
		return 1
	case o.inf:
		return -1
	}

	if len(e.terms) != len(o.terms) {
		return len(e.terms) - len(o.terms)
	}

	for i := range e.terms {
		if c := e.terms[i].cmp(o.terms[i]); c != 0 {
			return c
		}

		if c := e.terms[i].coefficient.Cmp(o.terms[i].coefficient); c != 0 {
			return c
		}
	}

	return 0
}

// Variables returns the free variables of e (deduplicated, ascending id
// order), including any appearing solely in an exponential exponent.
func (e Expr) Variables() []variable.ID {
	if e.inf {
		return nil
	}

	seen := map[variable.ID]bool{}

	var out []variable.ID

	add := func(v variable.ID) {
		if !seen[v] {
			seen[v] = true

			out = append(out, v)
		}
	}

	for _, t := range e.terms {
		for _, v := range t.vars {
			add(v)
		}

		if t.exp != nil {
			add(t.exp.v)
		}
	}

	slices.Sort(out)

	return out
}

// IsLinear reports whether e is a linear polynomial (total degree at most 1
// in every term, no exponential factor), per spec.md §3.
func (e Expr) IsLinear() bool {
	if e.inf {
		return false
	}

	for _, t := range e.terms {
		if t.degree() > 1 || t.exp != nil {
			return false
		}
	}

	return true
}

// LinearCoefficients decomposes a linear expression into its per-variable
// coefficients plus a constant term. Panics if e is not linear; callers
// must check IsLinear first (this mirrors spec.md §4.E step 3's "build a
// linear template over relevant variables", which only ever runs after a
// linearity check).
func (e Expr) LinearCoefficients() (coeffs map[variable.ID]*big.Int, constant *big.Int) {
	coeffs = map[variable.ID]*big.Int{}
	constant = big.NewInt(0)

	for _, t := range e.terms {
		switch t.degree() {
		case 0:
			constant.Add(constant, t.coefficient)
		case 1:
			coeffs[t.vars[0]] = new(big.Int).Set(t.coefficient)
		default:
			panic("LinearCoefficients called on a non-linear expression")
		}
	}

	return coeffs, constant
}

// Complexity returns the syntactic (sound upper-bound) complexity class of
// e, per spec.md §3/§4.B.
func (e Expr) Complexity() complexity.Class {
	if e.inf {
		return complexity.ClassInfty
	}

	var (
		maxDegree int
		hasExp    bool
	)

	for _, t := range e.terms {
		if t.exp != nil {
			hasExp = true
		}

		if d := t.degree(); d > maxDegree {
			maxDegree = d
		}
	}

	switch {
	case hasExp:
		return complexity.ClassExp
	case maxDegree == 0:
		return complexity.ClassConst
	default:
		return complexity.ClassPoly(uint32(maxDegree))
	}
}

// Substitute applies a simultaneous substitution, replacing every free
// occurrence of a variable in env by its image, and expanding the resulting
// polynomial product. Returns ok=false if a variable inside an exponential
// exponent would need to be replaced by anything other than an affine shift
// of a single variable (spec.md §7: a non-error "failure" outcome — see
// exponential in term.go).
func (e Expr) Substitute(env map[variable.ID]Expr) (Expr, bool) {
	if e.inf {
		return Inf, true
	}

	result := Zero

	for _, t := range e.terms {
		acc := constant(t.coefficient)

		for _, v := range t.vars {
			factor, present := env[v]
			if !present {
				factor = Var(v)
			}

			acc = acc.Mul(factor)

			if acc.inf {
				return Inf, true
			}
		}

		if t.exp != nil {
			shiftVar, k, ok := affineShiftOf(env, t.exp.v)
			if !ok || k.Sign() < 0 {
				return Expr{}, false
			}

			scale := new(big.Int).Exp(t.exp.base, k, nil)
			acc = acc.MulConst(scale)

			var fail bool

			acc, fail = attachExponential(acc, t.exp.base, shiftVar)
			if fail {
				return Expr{}, false
			}
		}

		result = result.Add(acc)
	}

	return result, true
}

// affineShiftOf determines, for variable v under substitution env, the
// variable w and constant shift k such that env[v] == w + k (or v itself
// with k=0 if v is not substituted).
func affineShiftOf(env map[variable.ID]Expr, v variable.ID) (w variable.ID, k *big.Int, ok bool) {
	factor, present := env[v]
	if !present {
		return v, big.NewInt(0), true
	}

	if factor.inf {
		return 0, nil, false
	}

	switch len(factor.terms) {
	case 0:
		return 0, nil, false
	case 1:
		t := factor.terms[0]
		if t.degree() == 1 && t.exp == nil && t.coefficient.Cmp(big.NewInt(1)) == 0 {
			return t.vars[0], big.NewInt(0), true
		}

		return 0, nil, false
	case 2:
		var (
			varTerm   *term
			constTerm *term
		)

		for i := range factor.terms {
			switch factor.terms[i].degree() {
			case 0:
				constTerm = &factor.terms[i]
			case 1:
				varTerm = &factor.terms[i]
			}
		}

		if varTerm == nil || constTerm == nil || varTerm.exp != nil {
			return 0, nil, false
		}

		if varTerm.coefficient.Cmp(big.NewInt(1)) != 0 {
			return 0, nil, false
		}

		return varTerm.vars[0], new(big.Int).Set(constTerm.coefficient), true
	default:
		return 0, nil, false
	}
}

// attachExponential multiplies every term of acc by the exponential factor
// base^v. Fails if any term of acc already carries an exponential factor
// (this engine never needs to combine two independent exponentials).
func attachExponential(acc Expr, base *big.Int, v variable.ID) (Expr, bool) {
	ts := make([]term, len(acc.terms))

	for i, t := range acc.terms {
		if t.exp != nil {
			return Expr{}, true
		}

		nt := t.clone()
		nt.exp = &exponential{new(big.Int).Set(base), v}
		ts[i] = nt
	}

	return Expr{terms: normalize(ts)}, false
}

// String renders e using names(id) to print variables.
func (e Expr) String(names func(variable.ID) string) string {
	if e.inf {
		return "INF"
	}

	if len(e.terms) == 0 {
		return "0"
	}

	var buf bytes.Buffer

	for i, t := range e.terms {
		if i != 0 && t.coefficient.Sign() >= 0 {
			buf.WriteString("+")
		}

		buf.WriteString(termString(t, names))
	}

	return buf.String()
}

func termString(t term, names func(variable.ID) string) string {
	var buf bytes.Buffer

	one := big.NewInt(1)
	hasVars := len(t.vars) > 0 || t.exp != nil

	switch {
	case !hasVars:
		buf.WriteString(t.coefficient.String())
	case t.coefficient.CmpAbs(one) == 0 && t.coefficient.Sign() > 0:
	case t.coefficient.Sign() < 0 && t.coefficient.CmpAbs(one) == 0:
		buf.WriteString("-")
	default:
		buf.WriteString(t.coefficient.String())
		buf.WriteString("*")
	}

	parts := make([]string, 0, len(t.vars)+1)
	for _, v := range t.vars {
		parts = append(parts, names(v))
	}

	if t.exp != nil {
		parts = append(parts, fmt.Sprintf("%s^%s", t.exp.base.String(), names(t.exp.v)))
	}

	for i, p := range parts {
		if i != 0 {
			buf.WriteString("*")
		}

		buf.WriteString(p)
	}

	return buf.String()
}
