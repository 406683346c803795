// Package prune implements the pruning passes of spec.md §4.H: keeping
// the rule count manageable once acceleration and chaining have run, by
// dropping dominated parallel rules and update components nothing will
// ever read again.
package prune

import (
	"sort"

	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/update"
)

// DefaultParallelKeep is the number of rules ParallelRules keeps per
// (source, target) pair when the caller has no stronger preference
// (spec.md §4.H "keep a small fixed number (e.g. the top K)"; the spec
// leaves the exact K to the implementation — see DESIGN.md).
const DefaultParallelKeep = 3

// ParallelRules implements prune_parallel_rules: among rules sharing a
// source and target, keeps the keep highest-complexity-cost rules and
// removes the rest. Ties are broken by rule id so the result is
// deterministic. Returns whether any rule was removed.
func ParallelRules(g *its.Graph, keep int) bool {
	if keep < 1 {
		keep = DefaultParallelKeep
	}

	groups := groupBySourceTarget(g)

	changed := false

	for _, ids := range groups {
		if len(ids) <= keep {
			continue
		}

		sort.SliceStable(ids, func(i, j int) bool {
			ci := g.Rule(ids[i]).Cost.Complexity()
			cj := g.Rule(ids[j]).Cost.Complexity()

			if ci.Equal(cj) {
				return ids[i] < ids[j]
			}

			return cj.Less(ci)
		})

		for _, id := range ids[keep:] {
			g.RemoveRule(id)
			changed = true
		}
	}

	return changed
}

func groupBySourceTarget(g *its.Graph) map[[2]its.LocationID][]its.RuleID {
	groups := map[[2]its.LocationID][]its.RuleID{}

	for _, id := range g.AllRuleIDs() {
		r := g.Rule(id)
		key := [2]its.LocationID{r.From, r.To}
		groups[key] = append(groups[key], id)
	}

	return groups
}

// RemoveSinkRHSs implements remove_sink_rhss (spec.md §4.H, "non-linear
// variant"): for any rule whose target location has no outgoing rules,
// its update's right-hand sides can never be read by a later step, so
// they are dropped to the identity update — they contribute no cost and
// only add noise to subsequent guard/cost substitutions. Returns whether
// any rule's update was cleared.
func RemoveSinkRHSs(g *its.Graph) bool {
	changed := false

	for _, id := range g.AllRuleIDs() {
		r := g.RuleMut(id)
		if len(r.Update) == 0 {
			continue
		}

		if len(g.RulesFrom(r.To)) > 0 {
			continue
		}

		r.Update = update.Empty
		changed = true
	}

	return changed
}
