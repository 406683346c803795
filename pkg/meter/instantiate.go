package meter

import (
	"context"
	"math/big"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

var bigOne = big.NewInt(1)

// tryInstantiateTemporaries implements spec.md §4.E step 5: when the
// guard bounds a temporary variable to a small range, enumerate its
// possible values (up to instantiationCap) and retry synthesis with each
// value fixed, taking the first that succeeds.
func tryInstantiateTemporaries(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g guard.Guard, u update.Update, relevant []variable.ID) (Function, bool) {
	for _, v := range relevant {
		if !reg.IsTemp(v) {
			continue
		}

		lo, hi, ok := boundedRange(g, v)
		if !ok || new(big.Int).Sub(hi, lo).Cmp(big.NewInt(instantiationCap-1)) > 0 {
			continue
		}

		for n := new(big.Int).Set(lo); n.Cmp(hi) <= 0; n.Add(n, bigOne) {
			fixed := g.Add(guard.NewAtom(expr.Var(v).Sub(expr.Const(n)), guard.EQ))

			reduced := reduceGuard(ctx, smt, fixed, u, reg)
			newRelevant := findRelevantVariables(reduced, u)

			if fn, ok := trySynthesize(ctx, reg, smt, reduced, u, newRelevant); ok {
				return fn, true
			}
		}
	}

	return Function{}, false
}

// boundedRange recognises a pair of atoms `v - lo >= 0` and `hi - v >= 0`
// in g, returning the tightest such (lo, hi) bounds on v found directly in
// the guard.
func boundedRange(g guard.Guard, v variable.ID) (lo, hi *big.Int, ok bool) {
	for _, a := range g.Atoms() {
		if a.Relation != guard.GE || !a.Expr.IsLinear() {
			continue
		}

		coeffs, k := a.Expr.LinearCoefficients()
		if len(coeffs) != 1 {
			continue
		}

		c, present := coeffs[v]
		if !present {
			continue
		}

		switch {
		case c.Cmp(bigOne) == 0:
			// v + k >= 0  =>  v >= -k
			bound := new(big.Int).Neg(k)
			if lo == nil || bound.Cmp(lo) > 0 {
				lo = bound
			}
		case new(big.Int).Neg(c).Cmp(bigOne) == 0:
			// -v + k >= 0  =>  v <= k
			if hi == nil || k.Cmp(hi) < 0 {
				hi = new(big.Int).Set(k)
			}
		}
	}

	return lo, hi, lo != nil && hi != nil
}
