// Package its implements the Integer Transition System graph of spec.md
// §3/§4.C: a mutable directed multigraph of locations and rules, with fast
// indexed queries (rules-from, rules-to, rules-from-to, successors,
// predecessors). Grounded on the shape of the teacher's schema/graph layer
// (monotone handle allocation, adjacency indices maintained alongside a
// flat backing slice), generalised from "columns/constraints" to
// "locations/rules".
package its

import (
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/update"
)

// LocationID identifies a location. Ids are monotone and never recycled.
type LocationID uint64

// RuleID identifies a rule. Stable as long as the rule is not removed;
// callers must not reuse an id after RemoveRule (spec.md §4.C).
type RuleID uint64

// Location is an opaque identity with a human name (spec.md §3 Location).
type Location struct {
	Name string
}

// Rule is a transition-system edge: a tuple (source, guard, cost, update,
// target) (spec.md §3 Rule).
type Rule struct {
	From   LocationID
	Guard  guard.Guard
	Cost   expr.Expr
	Update update.Update
	To     LocationID
}

type ruleSlot struct {
	rule    Rule
	removed bool
}

// Graph is the mutable ITS: locations, rules, and the adjacency indices
// needed to answer rules-from/rules-to/successors/predecessors in
// sublinear time (spec.md §4.C).
type Graph struct {
	locations []Location
	initial   LocationID
	hasInit   bool

	rules []ruleSlot

	from map[LocationID][]RuleID
	to   map[LocationID][]RuleID
}

// New constructs an empty ITS graph.
func New() *Graph {
	return &Graph{
		from: make(map[LocationID][]RuleID),
		to:   make(map[LocationID][]RuleID),
	}
}

// AddLocation inserts a new location named name, returning its id.
func (g *Graph) AddLocation(name string) LocationID {
	id := LocationID(len(g.locations))
	g.locations = append(g.locations, Location{Name: name})

	return id
}

// SetInitial designates loc as the initial location.
func (g *Graph) SetInitial(loc LocationID) {
	g.initial = loc
	g.hasInit = true
}

// Initial returns the initial location, if one has been designated.
func (g *Graph) Initial() (LocationID, bool) {
	return g.initial, g.hasInit
}

// LocationName returns the human name of loc.
func (g *Graph) LocationName(loc LocationID) string {
	return g.locations[loc].Name
}

// NumLocations returns the number of locations in the graph.
func (g *Graph) NumLocations() int {
	return len(g.locations)
}

// AddRule inserts r into the graph, returning its stable id.
func (g *Graph) AddRule(r Rule) RuleID {
	id := RuleID(len(g.rules))
	g.rules = append(g.rules, ruleSlot{rule: r})

	g.from[r.From] = append(g.from[r.From], id)
	g.to[r.To] = append(g.to[r.To], id)

	return id
}

// RemoveRule deletes the rule at id. The id must not be reused afterwards
// (spec.md §4.C "callers must not use an index after remove_rule").
func (g *Graph) RemoveRule(id RuleID) {
	slot := &g.rules[id]
	if slot.removed {
		return
	}

	slot.removed = true

	g.from[slot.rule.From] = removeID(g.from[slot.rule.From], id)
	g.to[slot.rule.To] = removeID(g.to[slot.rule.To], id)
}

func removeID(ids []RuleID, target RuleID) []RuleID {
	out := ids[:0]

	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}

	return out
}

// Rule returns a copy of the rule at id.
func (g *Graph) Rule(id RuleID) Rule {
	return g.rules[id].rule
}

// RuleMut returns a pointer to the live rule at id, for in-place mutation
// by preprocessing and acceleration (spec.md §4.C "mutable access
// rule_mut").
func (g *Graph) RuleMut(id RuleID) *Rule {
	return &g.rules[id].rule
}

// IsRemoved reports whether the rule at id has been removed.
func (g *Graph) IsRemoved(id RuleID) bool {
	return g.rules[id].removed
}

// RulesFrom returns a snapshot of the (non-removed) rule ids whose source
// is loc.
func (g *Graph) RulesFrom(loc LocationID) []RuleID {
	return g.liveSnapshot(g.from[loc])
}

// RulesTo returns a snapshot of the (non-removed) rule ids whose target is
// loc.
func (g *Graph) RulesTo(loc LocationID) []RuleID {
	return g.liveSnapshot(g.to[loc])
}

// RulesFromTo returns the (non-removed) rule ids from src directly to dst.
func (g *Graph) RulesFromTo(src, dst LocationID) []RuleID {
	out := make([]RuleID, 0)

	for _, id := range g.from[src] {
		if !g.rules[id].removed && g.rules[id].rule.To == dst {
			out = append(out, id)
		}
	}

	return out
}

func (g *Graph) liveSnapshot(ids []RuleID) []RuleID {
	out := make([]RuleID, 0, len(ids))

	for _, id := range ids {
		if !g.rules[id].removed {
			out = append(out, id)
		}
	}

	return out
}

// Successors returns the deduplicated set of locations reachable from loc
// via a single rule.
func (g *Graph) Successors(loc LocationID) []LocationID {
	seen := map[LocationID]bool{}

	var out []LocationID

	for _, id := range g.RulesFrom(loc) {
		to := g.rules[id].rule.To
		if !seen[to] {
			seen[to] = true

			out = append(out, to)
		}
	}

	return out
}

// Predecessors returns the deduplicated set of locations with a rule
// targeting loc.
func (g *Graph) Predecessors(loc LocationID) []LocationID {
	seen := map[LocationID]bool{}

	var out []LocationID

	for _, id := range g.RulesTo(loc) {
		from := g.rules[id].rule.From
		if !seen[from] {
			seen[from] = true

			out = append(out, from)
		}
	}

	return out
}

// IsEmpty reports whether the graph has no live rules.
func (g *Graph) IsEmpty() bool {
	for _, s := range g.rules {
		if !s.removed {
			return false
		}
	}

	return true
}

// IsLinear reports whether every live location has at most one outgoing
// rule (spec.md §4.C "all rules have exactly one right-hand side").
func (g *Graph) IsLinear() bool {
	for loc := range g.locations {
		if len(g.RulesFrom(LocationID(loc))) > 1 {
			return false
		}
	}

	return true
}

// AllRuleIDs returns a snapshot of every non-removed rule id in the graph.
func (g *Graph) AllRuleIDs() []RuleID {
	out := make([]RuleID, 0, len(g.rules))

	for i, s := range g.rules {
		if !s.removed {
			out = append(out, RuleID(i))
		}
	}

	return out
}
