package oracle

import (
	"math/big"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/variable"
)

func bigZero() *big.Int { return big.NewInt(0) }
func bigOne() *big.Int  { return big.NewInt(1) }

// Recurrence is the recurrence-relation oracle of spec.md §6: "solve
// (rhs_of_recurrence, initial_condition) → closed_form | failure". Close
// is asked to solve v(n) = rhs(v(n-1)), v(0) = v, for n a fresh iteration
// variable: rhs is the update's right-hand side for v with every other
// variable it mentions already substituted by its own closed form (a
// function of n), so rhs depends only on v itself (and possibly n). The
// returned closed form expresses v(n) in terms of v (standing for the
// pre-loop value) and n.
type Recurrence interface {
	Close(v variable.ID, rhs expr.Expr, n variable.ID) (closedForm expr.Expr, ok bool)
}

// ClosedForm recognises the two recurrence shapes spec.md §4.F's update
// and cost closed forms reduce to: arithmetic (v(n) = v(n-1) + k) and
// geometric (v(n) = c·v(n-1)), plus the constant case v(n) = k. The rhs
// may mention no variable other than v: a rhs that mentions n or any other
// variable is reported as a failure, as is anything else (a genuinely
// mixed affine recurrence c·v(n-1)+k with c∉{0,1} and k≠0, or a
// non-linear rhs), matching spec.md §4.F "if still unsolvable, fail".
type ClosedForm struct{}

// Close implements Recurrence.
func (ClosedForm) Close(v variable.ID, rhs expr.Expr, n variable.ID) (expr.Expr, bool) {
	if rhs.IsInf() || !rhs.IsLinear() {
		return expr.Expr{}, false
	}

	coeffs, k := rhs.LinearCoefficients()

	c, hasV := coeffs[v]
	if !hasV {
		c = bigZero()
	}

	for w := range coeffs {
		if w != v {
			// rhs must already be purely in terms of v (and constants);
			// any other variable must have been substituted away by the
			// caller before invoking Close.
			return expr.Expr{}, false
		}
	}

	switch {
	case c.Sign() == 0:
		// v(n) = k for n >= 1; only sound if k does not itself depend on
		// n (the caller never substitutes n into rhs, so this always
		// holds here), closed form is simply the constant.
		return expr.Const(k), true
	case c.Cmp(bigOne()) == 0:
		// arithmetic: v(n) = v + k*n
		return expr.Var(v).Add(expr.Var(n).MulConst(k)), true
	case k.Sign() == 0:
		// geometric: v(n) = v * c^n
		return expr.Geometric(bigOne(), c, n).Mul(expr.Var(v)), true
	default:
		// mixed affine recurrence v(n) = c*v(n-1) + k, c not in {0,1},
		// k != 0: not one of the two shapes this oracle solves.
		return expr.Expr{}, false
	}
}
