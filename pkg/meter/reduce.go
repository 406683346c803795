package meter

import (
	"context"
	"math/big"
	"sort"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

// eliminateTempVars substitutes away any EQ atom defining a temporary
// variable (spec.md §4.E step 1 eliminate_temp_vars), so the template built
// in step 3 ranges only over variables with a durable meaning across
// iterations.
func eliminateTempVars(reg *variable.Registry, g guard.Guard, u update.Update) (guard.Guard, update.Update) {
	for {
		v, rhs, atom, found := findTempDefinition(reg, g)
		if !found {
			break
		}

		env := map[variable.ID]expr.Expr{v: rhs}

		ng, ok := g.Without(func(a guard.Atom) bool { return !a.Equals(atom) }).Map(
			func(e expr.Expr) (expr.Expr, bool) { return e.Substitute(env) },
		)
		if !ok {
			break
		}

		nu := make(update.Update, len(u))

		for w, e := range u {
			if w == v {
				continue
			}

			if ne, ok := e.Substitute(env); ok {
				nu[w] = ne
			} else {
				nu[w] = e
			}
		}

		g, u = ng, nu
	}

	return g, u
}

func findTempDefinition(reg *variable.Registry, g guard.Guard) (v variable.ID, rhs expr.Expr, atom guard.Atom, ok bool) {
	for _, a := range g.Atoms() {
		if a.Relation != guard.EQ || !a.Expr.IsLinear() {
			continue
		}

		coeffs, k := a.Expr.LinearCoefficients()
		if len(coeffs) != 1 {
			continue
		}

		for w, c := range coeffs {
			if !reg.IsTemp(w) {
				continue
			}

			if c.Cmp(bigOne) == 0 {
				return w, expr.Const(new(big.Int).Neg(k)), a, true
			}

			if new(big.Int).Neg(c).Cmp(bigOne) == 0 {
				return w, expr.Const(k), a, true
			}
		}
	}

	return 0, expr.Expr{}, guard.Atom{}, false
}

// reduceGuard drops guard atoms that add nothing to the metering problem:
// those that mention no temporary variable and are already implied by the
// guard itself once the update has been applied (spec.md §4.E step 1
// reduce_guard — they can never tighten the post-iteration state further).
func reduceGuard(ctx context.Context, smt oracle.SMT, g guard.Guard, u update.Update, reg *variable.Registry) guard.Guard {
	return g.Without(func(a guard.Atom) bool {
		for _, v := range a.Expr.Variables() {
			if reg.IsTemp(v) {
				return true
			}
		}

		shifted, ok := u.ApplySimultaneously(a.Expr)
		if !ok {
			return true
		}

		return !oracle.Implies(ctx, smt, g, guard.New(guard.NewAtom(shifted, a.Relation)))
	})
}

// findRelevantVariables computes the fixpoint closure of the guard's free
// variables under the update's "uses" relation (spec.md §4.E step 1
// find_relevant_variables): if x is relevant and U[x] mentions y, y is
// relevant too.
func findRelevantVariables(g guard.Guard, u update.Update) []variable.ID {
	relevant := map[variable.ID]bool{}

	for _, v := range g.Variables() {
		relevant[v] = true
	}

	for changed := true; changed; {
		changed = false

		for v := range relevant {
			for _, used := range u.Get(v).Variables() {
				if !relevant[used] {
					relevant[used] = true
					changed = true
				}
			}
		}
	}

	out := make([]variable.ID, 0, len(relevant))
	for v := range relevant {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
