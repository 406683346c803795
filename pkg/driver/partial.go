package driver

import (
	"context"

	"github.com/costbound/costbound/pkg/chain"
	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/variable"
)

// partialResultPath implements spec.md §4.J's partial-result extraction,
// taken when the soft budget expires before the graph is fully
// simplified: repeatedly contract the initial location's own outgoing
// rules (chain_initial_successors) until no more progress is possible or
// the hard deadline is reached, then remove_constant_paths_after_timeout
// and report the worst remaining complexity reachable from the initial
// location.
func partialResultPath(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g *its.Graph, initial its.LocationID, budget Budget) RuntimeResult {
	for !budget.HardExpired() {
		if !chainInitialSuccessors(ctx, reg, smt, g, initial) {
			break
		}
	}

	removeConstantPathsAfterTimeout(g, initial)

	return getMaxRuntime(ctx, smt, g, initial)
}

// chainInitialSuccessors composes each rule leaving initial with one of
// its own successors' outgoing rules, narrower than ChainTreePaths (which
// considers every interior location) because under a blown soft budget
// only reducing the branching directly visible from initial is still
// cheap enough to attempt (spec.md §4.J "partial-result path").
func chainInitialSuccessors(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g *its.Graph, initial its.LocationID) bool {
	for _, rid := range g.RulesFrom(initial) {
		if g.IsRemoved(rid) {
			continue
		}

		r1 := g.Rule(rid)
		if r1.To == initial {
			continue
		}

		succs := g.RulesFrom(r1.To)
		if len(succs) == 0 {
			continue
		}

		for _, sid := range succs {
			r2 := g.Rule(sid)

			combined, ok := chain.Compose(ctx, reg, smt, r1, r2)
			if !ok {
				continue
			}

			g.RemoveRule(rid)
			g.AddRule(combined)

			return true
		}
	}

	return false
}

// removeConstantPathsAfterTimeout implements spec.md §4.J: once the
// budget forces an early stop, any rule whose target location's entire
// remaining reachable subgraph has Const complexity contributes nothing
// beyond its own cost, so its update can be discarded, shrinking the
// witness without changing the reported complexity. Cycles (which should
// be rare this late, after acceleration) are treated conservatively as
// Infty so the DFS never loops.
func removeConstantPathsAfterTimeout(g *its.Graph, initial its.LocationID) bool {
	memo := make(map[its.LocationID]complexity.Class)
	onStack := make(map[its.LocationID]bool)
	changed := false

	for loc := its.LocationID(0); loc < its.LocationID(g.NumLocations()); loc++ {
		subtreeMaxClass(g, loc, memo, onStack)
	}

	for _, rid := range g.AllRuleIDs() {
		r := g.RuleMut(rid)
		if len(r.Update) == 0 {
			continue
		}

		if memo[r.To].Equal(complexity.ClassConst) {
			r.Update = nil
			changed = true
		}
	}

	return changed
}

// subtreeMaxClass computes, with memoization, the join of a location's
// outgoing rule costs' complexities and its successors' subtreeMaxClass,
// i.e. the worst-case growth class reachable starting at loc.
func subtreeMaxClass(g *its.Graph, loc its.LocationID, memo map[its.LocationID]complexity.Class, onStack map[its.LocationID]bool) complexity.Class {
	if c, ok := memo[loc]; ok {
		return c
	}

	if onStack[loc] {
		return complexity.ClassInfty
	}

	onStack[loc] = true
	defer delete(onStack, loc)

	best := complexity.ClassConst

	for _, rid := range g.RulesFrom(loc) {
		r := g.Rule(rid)

		best = best.Join(r.Cost.Complexity())
		best = best.Join(subtreeMaxClass(g, r.To, memo, onStack))
	}

	memo[loc] = best

	return best
}
