// Package preprocess implements the guard/update simplification passes of
// spec.md §4.D, applied once up front and again implicitly after every
// rewrite step of the simplification driver (pkg/driver).
package preprocess

import (
	"context"
	"math/big"

	"github.com/bits-and-blooms/bitset"

	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/variable"
)

var bigOne = big.NewInt(1)

func negate(n *big.Int) *big.Int {
	return new(big.Int).Neg(n)
}

// RemoveLeavesAndUnreachable runs a BFS from initial, drops every rule not
// reachable from it, then repeatedly drops rules whose target has no live
// outgoing rule and whose cost is at most Const (a dead-end contributing
// only O(1), dominated by keeping the graph smaller). Returns whether
// anything changed.
func RemoveLeavesAndUnreachable(g *its.Graph, initial its.LocationID) bool {
	changed := removeUnreachable(g, initial)

	for removeOneLeaf(g) {
		changed = true
	}

	return changed
}

func removeUnreachable(g *its.Graph, initial its.LocationID) bool {
	visitedLoc := bitset.New(uint(g.NumLocations()))
	visitedLoc.Set(uint(initial))

	visitedRule := map[its.RuleID]bool{}

	queue := []its.LocationID{initial}

	for len(queue) > 0 {
		loc := queue[0]
		queue = queue[1:]

		for _, rid := range g.RulesFrom(loc) {
			visitedRule[rid] = true

			to := g.Rule(rid).To
			if !visitedLoc.Test(uint(to)) {
				visitedLoc.Set(uint(to))

				queue = append(queue, to)
			}
		}
	}

	changed := false

	for _, rid := range g.AllRuleIDs() {
		if !visitedRule[rid] {
			g.RemoveRule(rid)
			changed = true
		}
	}

	return changed
}

func removeOneLeaf(g *its.Graph) bool {
	for _, rid := range g.AllRuleIDs() {
		r := g.Rule(rid)
		if len(g.RulesFrom(r.To)) == 0 && r.Cost.Complexity().LessEq(complexity.ClassConst) {
			g.RemoveRule(rid)
			return true
		}
	}

	return false
}

// RemoveUnsatInitialRules drops every rule out of initial whose guard is
// proven SMT-unsat.
func RemoveUnsatInitialRules(ctx context.Context, g *its.Graph, initial its.LocationID, smt oracle.SMT) bool {
	changed := false

	for _, rid := range g.RulesFrom(initial) {
		if oracle.IsUnsat(ctx, smt, g.Rule(rid).Guard) {
			g.RemoveRule(rid)
			changed = true
		}
	}

	return changed
}

// RemoveDuplicateRules drops, among rules sharing the same source and
// target, every rule whose (guard, cost[, update]) duplicates one already
// kept.
func RemoveDuplicateRules(g *its.Graph, compareUpdates bool) bool {
	type key struct{ from, to its.LocationID }

	groups := map[key][]its.RuleID{}

	for _, rid := range g.AllRuleIDs() {
		r := g.Rule(rid)
		k := key{r.From, r.To}
		groups[k] = append(groups[k], rid)
	}

	changed := false

	for _, ids := range groups {
		var kept []its.Rule

		for _, rid := range ids {
			r := g.Rule(rid)

			dup := false

			for _, k := range kept {
				if ruleEquals(k, r, compareUpdates) {
					dup = true
					break
				}
			}

			if dup {
				g.RemoveRule(rid)
				changed = true
			} else {
				kept = append(kept, r)
			}
		}
	}

	return changed
}

func ruleEquals(a, b its.Rule, compareUpdates bool) bool {
	if !sameGuard(a.Guard, b.Guard) || !a.Cost.Equals(b.Cost) {
		return false
	}

	if !compareUpdates {
		return true
	}

	return sameUpdate(a, b)
}

func sameGuard(a, b guard.Guard) bool {
	aa, bb := a.Atoms(), b.Atoms()
	if len(aa) != len(bb) {
		return false
	}

	for i := range aa {
		if !aa[i].Equals(bb[i]) {
			return false
		}
	}

	return true
}

func sameUpdate(a, b its.Rule) bool {
	av, bv := a.Update.Variables(), b.Update.Variables()
	if len(av) != len(bv) {
		return false
	}

	for i := range av {
		if av[i] != bv[i] || !a.Update[av[i]].Equals(b.Update[bv[i]]) {
			return false
		}
	}

	return true
}

// SimplifyRule drops trivial guard atoms, identity updates, and guard
// atoms proven redundant by implication from the rest of the guard
// (spec.md §4.D simplify_rule). Returns whether anything changed.
func SimplifyRule(ctx context.Context, smt oracle.SMT, r *its.Rule) bool {
	changed := false

	if withoutIDs := r.Update.WithoutIdentities(); len(withoutIDs) != len(r.Update) {
		r.Update = withoutIDs
		changed = true
	}

	if ng, did := substituteEqualities(r); did {
		r.Guard = ng
		changed = true
	}

	if ng, did := dropTrivialAtoms(r.Guard); did {
		r.Guard = ng
		changed = true
	}

	if ng, did := dropImpliedAtoms(ctx, smt, r.Guard); did {
		r.Guard = ng
		changed = true
	}

	return changed
}

// dropTrivialAtoms removes atoms whose expression is already a
// known-satisfied constant (spec.md §4.D: "c >= 0 with c a non-negative
// constant, x <= x+c" — the latter, once built through expr's arithmetic,
// already reduces to the former).
func dropTrivialAtoms(g guard.Guard) (guard.Guard, bool) {
	changed := false

	ng := g.Without(func(a guard.Atom) bool {
		c, ok := a.Expr.AsConstant()
		if !ok {
			return true
		}

		trivial := (a.Relation == guard.GE && c.Sign() >= 0) || (a.Relation == guard.GT && c.Sign() > 0)
		if trivial {
			changed = true
		}

		return !trivial
	})

	return ng, changed
}

// substituteEqualities finds an EQ atom of the shape `v + k = 0` or
// `-v + k = 0` (v a single variable with unit coefficient, k a constant),
// removes it, and substitutes v := -k or v := k throughout the rest of the
// rule (guard, cost, update). Equalities that mention more than one
// variable are left in the guard. Repeats until no further equality can be eliminated this way.
func substituteEqualities(r *its.Rule) (guard.Guard, bool) {
	g := r.Guard
	changed := false

	for {
		v, rhs, atom, found := findSubstitutableEquality(g)
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

		if nc, ok := r.Cost.Substitute(env); ok {
			r.Cost = nc
		}

		nu := map[variable.ID]expr.Expr{}

		for w, e := range r.Update {
			if w == v {
				continue
			}

			if ne, ok := e.Substitute(env); ok {
				nu[w] = ne
			} else {
				nu[w] = e
			}
		}

		r.Update = nu
		g = ng
		changed = true
	}

	return g, changed
}

func findSubstitutableEquality(g guard.Guard) (v variable.ID, rhs expr.Expr, atom guard.Atom, ok bool) {
	for _, a := range g.Atoms() {
		if a.Relation != guard.EQ {
			continue
		}

		if w, e, isSimple := asVariableDefinition(a.Expr); isSimple {
			return w, e, a, true
		}
	}

	return 0, expr.Expr{}, guard.Atom{}, false
}

// asVariableDefinition recognises e = ±v + k (a single unit-coefficient
// variable plus a constant), returning v and the constant it equals.
func asVariableDefinition(e expr.Expr) (variable.ID, expr.Expr, bool) {
	if !e.IsLinear() {
		return 0, expr.Expr{}, false
	}

	coeffs, k := e.LinearCoefficients()
	if len(coeffs) != 1 {
		return 0, expr.Expr{}, false
	}

	for v, c := range coeffs {
		if c.Sign() == 1 && c.Cmp(bigOne) == 0 {
			// e = v + k = 0  =>  v = -k
			return v, expr.Const(negate(k)), true
		}

		if c.Sign() == -1 && negate(c).Cmp(bigOne) == 0 {
			// e = -v + k = 0  =>  v = k
			return v, expr.Const(k), true
		}
	}

	return 0, expr.Expr{}, false
}

// TryToRemoveCost removes a "cost >= 0" guard atom when it is implied by
// the remainder of the guard. It acts only on such an atom already present
// in the guard; preprocessing does not append one. Guard is an unordered conjunction
// (spec.md §3), so "the last guard atom is cost >= 0" is read structurally
// as "some atom is exactly cost >= 0", not by list position.
func TryToRemoveCost(ctx context.Context, smt oracle.SMT, r *its.Rule) bool {
	for _, a := range r.Guard.Atoms() {
		if a.Relation != guard.GE || !a.Expr.Equals(r.Cost) {
			continue
		}

		rest := r.Guard.Without(func(o guard.Atom) bool { return !o.Equals(a) })
		if oracle.Implies(ctx, smt, rest, guard.New(a)) {
			r.Guard = rest
			return true
		}
	}

	return false
}

// dropImpliedAtoms removes, one at a time, any atom implied by the
// remainder of the guard (spec.md §4.D "SMT is used to test implication
// when comparing weak vs. strong guards").
func dropImpliedAtoms(ctx context.Context, smt oracle.SMT, g guard.Guard) (guard.Guard, bool) {
	changed := false

	for _, a := range g.Atoms() {
		rest := g.Without(func(o guard.Atom) bool { return !o.Equals(a) })
		if oracle.Implies(ctx, smt, rest, guard.New(a)) {
			g = rest
			changed = true
		}
	}

	return g, changed
}
