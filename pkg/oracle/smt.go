package oracle

import (
	"context"
	"math/big"

	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/variable"
)

// SMT is the satisfiability oracle of spec.md §6: "check_sat(formula) →
// {sat, unsat, unknown}; optionally get_model()". Every call takes a
// context derived from the driver's active time budget (spec.md §5), so a
// real external solver process could be cancelled cooperatively; the
// reference implementations here are synchronous and only check ctx at
// their own bounded-work boundaries.
type SMT interface {
	// CheckSat decides the satisfiability of g, the conjunction of its
	// atoms.
	CheckSat(ctx context.Context, g guard.Guard) Result
	// GetModel returns a satisfying assignment for g, if CheckSat(g) is
	// Sat and the oracle is able to reconstruct one.
	GetModel(ctx context.Context, g guard.Guard) (model map[variable.ID]*big.Int, ok bool)
}

// Implies decides premise ⇒ conclusion by checking that premise ∧ ¬a is
// unsat for every atom a of conclusion (conclusion is itself a conjunction,
// so implying it means implying each conjunct). Unknown is treated as
// "implication not proven" (spec.md §6: "the engine treats unknown as
// unsat for implication queries", which here means the *negation* check
// must come back definitively Unsat for the implication to hold — an
// Unknown or Sat answer to the negation check is not proof of implication).
func Implies(ctx context.Context, smt SMT, premise, conclusion guard.Guard) bool {
	for _, a := range conclusion.Atoms() {
		neg, ok := a.Negate()
		if !ok {
			// EQ atoms are not negatable as a single atom; conservatively
			// assume the implication is not provable.
			return false
		}

		check := premise.Add(neg)
		if smt.CheckSat(ctx, check) != Unsat {
			return false
		}
	}

	return true
}

// IsUnsat is a convenience wrapper that reports true only for a definite
// Unsat answer (Unknown counts as not unsat), matching the
// soundness-preserving policy spec.md §6 mandates for rules that remove
// something from the graph (a rule is only dropped when its guard is
// *proven* unsat).
func IsUnsat(ctx context.Context, smt SMT, g guard.Guard) bool {
	return smt.CheckSat(ctx, g) == Unsat
}

// IsFeasible is a convenience wrapper treating Unknown as Sat, matching the
// best-effort policy for acceleration/metering feasibility queries (spec.md
// §6: "and as sat for feasibility queries").
func IsFeasible(ctx context.Context, smt SMT, g guard.Guard) bool {
	return smt.CheckSat(ctx, g) != Unsat
}
