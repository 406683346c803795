// Package accelerate implements recurrence acceleration (spec.md §4.F):
// turning a self-loop, once a metering function has been found for it,
// into a single rule summarizing an arbitrary number of iterations.
package accelerate

import (
	"context"
	"sort"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/meter"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

// Accelerate attempts to summarize the self-loop r (r.From must equal
// r.To) into a new rule with the same source and target, guard
// `G ∧ m ≥ 1`, update `v ↦ v(m)` and cost `c(m)`, where m is a metering
// function synthesized for r. Returns ok=false (a non-error outcome) if
// metering or recurrence solving fails for any variable.
func Accelerate(ctx context.Context, reg *variable.Registry, smt oracle.SMT, rec oracle.Recurrence, r its.Rule) (its.Rule, bool) {
	if r.From != r.To {
		return its.Rule{}, false
	}

	m, ok := meter.Synthesize(ctx, reg, smt, r.Guard, r.Update)
	if !ok {
		return its.Rule{}, false
	}

	n := reg.Fresh("n", true)

	closedUpdate, ok := closeUpdates(rec, r.Update, n)
	if !ok {
		return its.Rule{}, false
	}

	closedCost, ok := closeCost(reg, rec, r.Cost, r.Update, n)
	if !ok {
		return its.Rule{}, false
	}

	env := map[variable.ID]expr.Expr{n: m.Expr()}

	newUpdate := make(update.Update, len(closedUpdate))

	for v, cf := range closedUpdate {
		instantiated, ok := cf.Substitute(env)
		if !ok {
			return its.Rule{}, false
		}

		newUpdate[v] = instantiated
	}

	newCost, ok := closedCost.Substitute(env)
	if !ok {
		return its.Rule{}, false
	}

	mAtLeastOne := guard.NewAtom(m.Expr().Sub(expr.ConstInt(1)), guard.GE)

	return its.Rule{
		From:   r.From,
		Guard:  r.Guard.Add(mAtLeastOne),
		Cost:   newCost,
		Update: newUpdate,
		To:     r.To,
	}, true
}

// closeUpdates computes, for every variable assigned by u, the closed
// form v(n) of the recurrence v(n) = U[v](v(n-1), ...), per spec.md §4.F:
// topologically ordered by the "uses" relation so each variable's
// right-hand side has every other assigned variable it reads already
// substituted by its own closed form before being handed to the
// recurrence oracle. A cycle in "uses" is broken by asserting equality
// among the cyclic variables and retrying with them unified; this
// reference implementation instead reports failure on any cycle, matching
// the spec's "if still unsolvable, fail" for the case where the
// equality-assertion fallback does not apply (no additional guard
// evidence to introduce here without a caller-supplied guard to enrich).
// Substituting a dependency's closed form necessarily introduces n into
// the recurrence oracle's input whenever that dependency is itself
// accelerating (non-constant in n) — pkg/oracle's Close only solves
// autonomous single-variable recurrences, so a genuine cross-variable
// dependency between two looping variables is reported as failure here
// rather than solved, a deliberate scope limit consistent with the rest
// of the oracle's "arithmetic and geometric only" coverage.
func closeUpdates(rec oracle.Recurrence, u update.Update, n variable.ID) (map[variable.ID]expr.Expr, bool) {
	order, ok := topologicalOrder(u)
	if !ok {
		return nil, false
	}

	closed := make(map[variable.ID]expr.Expr, len(order))

	for _, v := range order {
		rhs := u.Get(v)

		substituted, ok := rhs.Substitute(closed)
		if !ok {
			return nil, false
		}

		cf, ok := rec.Close(v, substituted, n)
		if !ok {
			return nil, false
		}

		closed[v] = cf
	}

	// Every relevant variable needs a closed form so a later substitution
	// through n can resolve it, even variables the update never assigns
	// (identity: v(n) = v).
	for _, v := range u.Uses() {
		if _, present := closed[v]; !present {
			closed[v] = expr.Var(v)
		}
	}

	return closed, true
}

// topologicalOrder orders u's assigned variables so that each variable's
// right-hand side is processed only after every other assigned variable
// it reads.
func topologicalOrder(u update.Update) ([]variable.ID, bool) {
	assigned := u.Variables()

	isAssigned := make(map[variable.ID]bool, len(assigned))
	for _, v := range assigned {
		isAssigned[v] = true
	}

	deps := make(map[variable.ID][]variable.ID, len(assigned))
	for _, v := range assigned {
		for _, used := range u.Get(v).Variables() {
			if used != v && isAssigned[used] {
				deps[v] = append(deps[v], used)
			}
		}
	}

	var (
		order    []variable.ID
		visited  = make(map[variable.ID]int) // 0=unvisited, 1=visiting, 2=done
		hasCycle bool
	)

	var visit func(v variable.ID)

	visit = func(v variable.ID) {
		switch visited[v] {
		case 2:
			return
		case 1:
			hasCycle = true

			return
		}

		visited[v] = 1

		for _, d := range deps[v] {
			visit(d)
		}

		visited[v] = 2

		order = append(order, v)
	}

	sort.Slice(assigned, func(i, j int) bool { return assigned[i] < assigned[j] })

	for _, v := range assigned {
		visit(v)
	}

	return order, !hasCycle
}

// closeCost solves the cost recurrence c(n) = c(n-1) + c[U](n-1), c(0) = 0
// (spec.md §4.F), by handing the running total to the same recurrence
// oracle used for updates, with the running total as the recurred
// variable seeded at 0. Succeeds only when the per-iteration increment
// c[U] does not itself depend on a variable the loop mutates (the
// recurrence oracle's Close only solves autonomous recurrences in the one
// variable it is asked to close, per pkg/oracle's documented scope) — the
// common "count iterations" cost shape, and the general case where cost
// grows with an accelerated variable is reported as failure rather than
// attempted with an unsound approximation.
func closeCost(reg *variable.Registry, rec oracle.Recurrence, cost expr.Expr, u update.Update, n variable.ID) (expr.Expr, bool) {
	costAfterOneStep, ok := u.ApplySimultaneously(cost)
	if !ok {
		return expr.Expr{}, false
	}

	total := reg.Fresh("cost_acc", true)

	rhs := expr.Var(total).Add(costAfterOneStep)

	closedTotal, ok := rec.Close(total, rhs, n)
	if !ok {
		return expr.Expr{}, false
	}

	return closedTotal.Substitute(map[variable.ID]expr.Expr{total: expr.Zero})
}
