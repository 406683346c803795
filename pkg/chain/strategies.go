package chain

import (
	"context"

	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/variable"
)

// hasSelfLoop reports whether any rule incident to loc starts and ends at
// loc itself.
func hasSelfLoop(g *its.Graph, loc its.LocationID) bool {
	for _, rid := range g.RulesFrom(loc) {
		if g.Rule(rid).To == loc {
			return true
		}
	}

	return false
}

// ChainLinearPaths contracts every interior location with exactly one
// predecessor rule and one successor rule and no self-loop (spec.md §4.G
// chain_linear_paths). Returns whether anything changed.
func ChainLinearPaths(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g *its.Graph, initial its.LocationID) bool {
	changed := false
	skip := map[its.LocationID]bool{}

	for {
		loc, rid1, rid2, found := findLinearInterior(g, initial, skip)
		if !found {
			break
		}

		composed, ok := Compose(ctx, reg, smt, g.Rule(rid1), g.Rule(rid2))
		if !ok {
			skip[loc] = true
			continue
		}

		g.AddRule(composed)
		g.RemoveRule(rid1)
		g.RemoveRule(rid2)

		changed = true
	}

	return changed
}

func findLinearInterior(g *its.Graph, initial its.LocationID, skip map[its.LocationID]bool) (loc its.LocationID, rid1, rid2 its.RuleID, found bool) {
	for l := its.LocationID(0); l < its.LocationID(g.NumLocations()); l++ {
		if l == initial || skip[l] || hasSelfLoop(g, l) {
			continue
		}

		in, out := g.RulesTo(l), g.RulesFrom(l)
		if len(in) == 1 && len(out) == 1 {
			return l, in[0], out[0], true
		}
	}

	return 0, 0, 0, false
}

// ChainTreePaths contracts an interior location ℓ with no self-loop by
// replacing every (predecessor, successor) rule pair by their composition
// (spec.md §4.G chain_tree_paths). Rule count may grow (|pred|·|succ|).
func ChainTreePaths(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g *its.Graph, initial its.LocationID) bool {
	changed := false
	skip := map[its.LocationID]bool{}

	for {
		loc, found := findTreeInterior(g, initial, skip)
		if !found {
			break
		}

		in, out := g.RulesTo(loc), g.RulesFrom(loc)

		any := false

		for _, rid1 := range in {
			for _, rid2 := range out {
				if composed, ok := Compose(ctx, reg, smt, g.Rule(rid1), g.Rule(rid2)); ok {
					g.AddRule(composed)
					any = true
				}
			}
		}

		for _, rid1 := range in {
			g.RemoveRule(rid1)
		}

		for _, rid2 := range out {
			g.RemoveRule(rid2)
		}

		if !any {
			skip[loc] = true
		}

		changed = true
	}

	return changed
}

func findTreeInterior(g *its.Graph, initial its.LocationID, skip map[its.LocationID]bool) (loc its.LocationID, found bool) {
	for l := its.LocationID(0); l < its.LocationID(g.NumLocations()); l++ {
		if l == initial || skip[l] || hasSelfLoop(g, l) {
			continue
		}

		if len(g.RulesTo(l)) > 0 && len(g.RulesFrom(l)) > 0 {
			return l, true
		}
	}

	return 0, false
}

// EliminateALocation is the last-resort strategy (spec.md §4.G
// eliminate_a_location): pick the interior location minimizing the
// product |pred|·|succ| of its incoming and outgoing rule counts and
// contract it via ChainTreePaths-style composition. The initial location
// and every location that still has a self-loop (a rule with
// From==To==loc) are never picked. Returns whether a location was
// contracted.
func EliminateALocation(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g *its.Graph, initial its.LocationID) bool {
	loc, found := findEliminationCandidate(g, initial)
	if !found {
		return false
	}

	in, out := g.RulesTo(loc), g.RulesFrom(loc)

	for _, rid1 := range in {
		for _, rid2 := range out {
			if composed, ok := Compose(ctx, reg, smt, g.Rule(rid1), g.Rule(rid2)); ok {
				g.AddRule(composed)
			}
		}
	}

	for _, rid1 := range in {
		g.RemoveRule(rid1)
	}

	for _, rid2 := range out {
		g.RemoveRule(rid2)
	}

	return true
}

func findEliminationCandidate(g *its.Graph, initial its.LocationID) (its.LocationID, bool) {
	var (
		best      its.LocationID
		bestCost  = -1
		foundBest bool
	)

	for l := its.LocationID(0); l < its.LocationID(g.NumLocations()); l++ {
		if l == initial || hasSelfLoop(g, l) {
			continue
		}

		in, out := len(g.RulesTo(l)), len(g.RulesFrom(l))
		if in == 0 && out == 0 {
			continue
		}

		cost := in * out
		if !foundBest || cost < bestCost {
			best, bestCost, foundBest = l, cost, true
		}
	}

	return best, foundBest
}

// ChainAcceleratedRules chains every rule in accelerated (freshly
// summarized self-loops) with each of its incoming rules, folding the
// loop's one-shot effect into every path that enters it (spec.md §4.G
// chain_accelerated_rules). Returns whether anything changed.
func ChainAcceleratedRules(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g *its.Graph, accelerated []its.RuleID) bool {
	changed := false

	for _, rid := range accelerated {
		if g.IsRemoved(rid) {
			continue
		}

		r := g.Rule(rid)

		in := g.RulesTo(r.From)

		for _, predID := range in {
			if predID == rid {
				continue
			}

			composed, ok := Compose(ctx, reg, smt, g.Rule(predID), r)
			if !ok {
				continue
			}

			g.AddRule(composed)
			g.RemoveRule(predID)

			changed = true
		}
	}

	return changed
}
