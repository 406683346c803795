// Package driver implements the simplification driver of spec.md §4.J:
// the fixpoint loop that orchestrates metering/acceleration (E), chaining
// (G), pruning (H) and the asymptotic check (I) under a time budget,
// producing a single RuntimeResult.
package driver

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/costbound/costbound/pkg/accelerate"
	"github.com/costbound/costbound/pkg/asymptotic"
	"github.com/costbound/costbound/pkg/chain"
	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/preprocess"
	"github.com/costbound/costbound/pkg/proof"
	"github.com/costbound/costbound/pkg/prune"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

// Config toggles the optional passes spec.md §6's CLI surface exposes.
type Config struct {
	// Preprocess runs preprocess_all_rules up front (default true).
	Preprocess bool
	// EliminateCost runs try_to_remove_cost during preprocessing
	// (default true).
	EliminateCost bool
}

// DefaultConfig is Preprocess=true, EliminateCost=true, the CLI's
// defaults.
var DefaultConfig = Config{Preprocess: true, EliminateCost: true}

// RuntimeResult is the driver's final answer (spec.md §3 RuntimeResult):
// a complexity class together with the guard and cost expression that
// witness it, and whether the witnessed class is below the cost's
// syntactic (sound upper-bound) complexity.
type RuntimeResult struct {
	Complexity   complexity.Class
	WitnessGuard guard.Guard
	WitnessCost  expr.Expr
	Reduced      bool
}

// Run executes the full pre/loop/post pipeline of spec.md §4.J over g,
// mutating it in place, and returns the resulting RuntimeResult. sink may
// be nil (equivalent to proof.Discard).
func Run(ctx context.Context, reg *variable.Registry, smt oracle.SMT, rec oracle.Recurrence, g *its.Graph, cfg Config, budget Budget, sink proof.Sink) RuntimeResult {
	if sink == nil {
		sink = proof.Discard
	}

	ctx, cancel := budget.Context(ctx)
	defer cancel()

	sink.Section("pre")

	hadRules := !g.IsEmpty()

	initial := ensureProperInitialLocation(g)

	preprocess.RemoveUnsatInitialRules(ctx, g, initial, smt)

	if cfg.Preprocess {
		preprocessAllRules(ctx, g, smt, cfg.EliminateCost)
	}

	acceleratedOnce := runSimplificationLoop(ctx, reg, smt, rec, g, initial, budget, sink)

	if budget.SoftExpired() && !fullySimplified(g, initial) {
		sink.Section("partial-result")

		result := partialResultPath(ctx, reg, smt, g, initial, budget)

		sink.Headline("partial result: %s", result.Complexity)

		return finalizeResult(hadRules, result, sink)
	}

	sink.Section("post")
	preprocess.RemoveDuplicateRules(g, false)

	log.WithFields(log.Fields{"accelerated": acceleratedOnce}).Debug("entering post phase")

	result := getMaxRuntime(ctx, smt, g, initial)

	return finalizeResult(hadRules, result, sink)
}

// runSimplificationLoop runs the outer `loop while not fully_simplified`
// of spec.md §4.J. Returns whether acceleration ever succeeded.
func runSimplificationLoop(ctx context.Context, reg *variable.Registry, smt oracle.SMT, rec oracle.Recurrence, g *its.Graph, initial its.LocationID, budget Budget, sink proof.Sink) bool {
	acceleratedOnce := false

outer:
	for !fullySimplified(g, initial) {
		for {
			changed := false

			if !g.IsLinear() {
				changed = prune.RemoveSinkRHSs(g) || changed
			}

			accelSet := accelerateAllSimpleLoops(ctx, reg, smt, rec, g, sink)
			if len(accelSet) > 0 {
				changed = true
				acceleratedOnce = true
			}

			changed = chain.ChainAcceleratedRules(ctx, reg, smt, g, accelSet) || changed
			changed = preprocess.RemoveLeavesAndUnreachable(g, initial) || changed
			changed = chain.ChainLinearPaths(ctx, reg, smt, g, initial) || changed

			log.WithFields(log.Fields{"changed": changed}).Debug("simplification iteration")

			if budget.SoftExpired() {
				break outer
			}

			if !changed {
				break
			}
		}

		if fullySimplified(g, initial) {
			break
		}

		if !chain.ChainTreePaths(ctx, reg, smt, g, initial) {
			chain.EliminateALocation(ctx, reg, smt, g, initial)
		}

		if acceleratedOnce {
			prune.ParallelRules(g, prune.DefaultParallelKeep)
		}

		if budget.SoftExpired() {
			break
		}
	}

	return acceleratedOnce
}

func finalizeResult(hadRules bool, result RuntimeResult, sink proof.Sink) RuntimeResult {
	if result.Complexity.Kind() == complexity.Unknown && hadRules {
		result = RuntimeResult{Complexity: complexity.ClassConst, WitnessCost: expr.ConstInt(1)}
	}

	log.WithFields(log.Fields{"complexity": result.Complexity.String()}).Info("analysis complete")
	sink.Headline("final complexity: %s", result.Complexity)

	return result
}

// ensureProperInitialLocation implements spec.md §3/§4.J's
// ensure_proper_initial_location: if the graph has no designated initial
// location, or the designated one has incoming rules, mint a fresh
// location with none and, if there was a previous initial location, an
// identity rule into it, preserving property 4's invariant that the
// initial location never has an incoming rule (spec.md §8 property 4).
func ensureProperInitialLocation(g *its.Graph) its.LocationID {
	if initial, ok := g.Initial(); ok && len(g.RulesTo(initial)) == 0 {
		return initial
	}

	old, hadOld := g.Initial()

	fresh := g.AddLocation("q_init")
	g.SetInitial(fresh)

	if hadOld {
		g.AddRule(its.Rule{From: fresh, To: old, Guard: guard.Empty, Cost: expr.Zero, Update: update.Empty})
	}

	return fresh
}

// fullySimplified implements spec.md §4.J's termination predicate: every
// non-initial location has no outgoing rules.
func fullySimplified(g *its.Graph, initial its.LocationID) bool {
	for loc := its.LocationID(0); loc < its.LocationID(g.NumLocations()); loc++ {
		if loc == initial {
			continue
		}

		if len(g.RulesFrom(loc)) > 0 {
			return false
		}
	}

	return true
}

// preprocessAllRules runs simplify_rule (and, if enabled,
// try_to_remove_cost) over every live rule (spec.md §4.J pre step).
func preprocessAllRules(ctx context.Context, g *its.Graph, smt oracle.SMT, eliminateCost bool) bool {
	changed := false

	for _, rid := range g.AllRuleIDs() {
		r := g.RuleMut(rid)
		if preprocess.SimplifyRule(ctx, smt, r) {
			changed = true
		}

		if eliminateCost && preprocess.TryToRemoveCost(ctx, smt, r) {
			changed = true
		}
	}

	return changed
}

// accelerateAllSimpleLoops attempts accelerate.Accelerate on every live
// self-loop rule, replacing it in place when acceleration produces
// something different from the rule it started from (comparing
// structurally guards it against re-accelerating an already-summarized
// loop forever). Returns the ids of the newly inserted accelerated rules
// (the "accel-set A" spec.md §4.J's pseudocode threads into
// chain_accelerated_rules).
func accelerateAllSimpleLoops(ctx context.Context, reg *variable.Registry, smt oracle.SMT, rec oracle.Recurrence, g *its.Graph, sink proof.Sink) []its.RuleID {
	var accelSet []its.RuleID

	for _, rid := range g.AllRuleIDs() {
		r := g.Rule(rid)
		if r.From != r.To {
			continue
		}

		accelerated, ok := accelerate.Accelerate(ctx, reg, smt, rec, r)
		if !ok || rulesEqual(r, accelerated) {
			continue
		}

		g.RemoveRule(rid)
		newID := g.AddRule(accelerated)
		accelSet = append(accelSet, newID)

		sink.Headline("accelerated self-loop at location %d", r.From)
	}

	return accelSet
}

func rulesEqual(a, b its.Rule) bool {
	if a.From != b.From || a.To != b.To {
		return false
	}

	if !a.Cost.Equals(b.Cost) {
		return false
	}

	ag, bg := a.Guard.Atoms(), b.Guard.Atoms()
	if len(ag) != len(bg) {
		return false
	}

	for i := range ag {
		if !ag[i].Equals(bg[i]) {
			return false
		}
	}

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

// getMaxRuntime implements spec.md §4.J's bound extraction: iterate over
// rules from the initial location, using the syntactic cost complexity as
// an early skip (a rule that cannot possibly exceed the best class found
// so far is not worth an asymptotic-check call), otherwise invoking
// asymptotic.Classify and keeping the largest witnessed complexity;
// stopping early once Infty is reached (nothing can exceed it).
func getMaxRuntime(ctx context.Context, smt oracle.SMT, g *its.Graph, initial its.LocationID) RuntimeResult {
	var best RuntimeResult

	for _, rid := range g.RulesFrom(initial) {
		r := g.Rule(rid)

		syn := r.Cost.Complexity()
		if best.Complexity.Kind() != complexity.Unknown && syn.LessEq(best.Complexity) {
			continue
		}

		classified := asymptotic.Classify(ctx, smt, r.Guard, r.Cost)

		if best.Complexity.Kind() == complexity.Unknown || best.Complexity.Less(classified.Complexity) {
			best = RuntimeResult{
				Complexity:   classified.Complexity,
				WitnessGuard: classified.WitnessGuard,
				WitnessCost:  classified.WitnessCost,
				Reduced:      classified.Reduced,
			}
		}

		if best.Complexity.Equal(complexity.ClassInfty) {
			break
		}
	}

	return best
}
