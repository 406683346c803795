package driver_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/driver"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/proof"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

// TestRunEmptyGraphReportsUnknown covers the degenerate case: a graph
// with only an initial location and no rules is vacuously fully
// simplified, and get_max_runtime has nothing to iterate over, so the
// result stays Unknown rather than being forced to the Const-1 fallback
// (that fallback is reserved for a non-empty graph that collapsed to
// nothing).
func TestRunEmptyGraphReportsUnknown(t *testing.T) {
	reg := variable.NewRegistry()
	g := its.New()
	l0 := g.AddLocation("l0")
	g.SetInitial(l0)

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, fm, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)
	require.Equal(t, complexity.Unknown, result.Complexity.Kind())
}

// TestRunConstantCostSingleRuleStaysConst is the simplest non-trivial
// scenario (akin to spec.md §8's S1 without a loop at all): one rule
// straight from the initial location to a terminal one, constant cost.
func TestRunConstantCostSingleRuleStaysConst(t *testing.T) {
	reg := variable.NewRegistry()
	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")
	g.SetInitial(l0)

	g.AddRule(its.Rule{From: l0, To: l1, Guard: guard.Empty, Cost: expr.ConstInt(5), Update: update.Empty})

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, fm, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)
	require.Equal(t, complexity.Const, result.Complexity.Kind())
	require.True(t, fullySimplified(g, l0))
}

// TestRunAcceleratesChainsAndCollapsesCounterLoop models spec.md §8's S1
// shape but with the decrementing loop on an interior location rather
// than on the initial one directly: init enters loc1 unconditionally,
// loc1 decrements v down from its initial value at cost 1 per iteration,
// then exits unconditionally to a terminal location. The driver must
// accelerate the self-loop, fold it into the entry edge via
// chain_accelerated_rules, then contract the now-linear interior location
// away entirely, leaving only a rule out of the initial location.
func TestRunAcceleratesChainsAndCollapsesCounterLoop(t *testing.T) {
	reg := variable.NewRegistry()
	v := reg.Intern("v")

	g := its.New()
	l0 := g.AddLocation("init")
	l1 := g.AddLocation("loop")
	l2 := g.AddLocation("exit")
	g.SetInitial(l0)

	g.AddRule(its.Rule{From: l0, To: l1, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty})
	g.AddRule(its.Rule{
		From:   l1,
		To:     l1,
		Guard:  guard.New(guard.NewAtom(expr.Var(v), guard.GE)),
		Cost:   expr.ConstInt(1),
		Update: update.Update{v: expr.Var(v).Sub(expr.ConstInt(1))},
	})
	g.AddRule(its.Rule{From: l1, To: l2, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty})

	scripted := oracle.Scripted{
		SatFunc: func(guard.Guard) oracle.Result { return oracle.Sat },
		ModelFunc: func(guard.Guard) (map[variable.ID]*big.Int, bool) {
			model := map[variable.ID]*big.Int{
				reg.Intern("meter_a0"):      big.NewInt(0),
				reg.Intern("meter_a_v"):     big.NewInt(1),
				reg.Intern("farkas_lo_l0"):  big.NewInt(1),
				reg.Intern("farkas_lo_l"):   big.NewInt(1),
				reg.Intern("farkas_dec_l0"): big.NewInt(0),
				reg.Intern("farkas_dec_l"):  big.NewInt(0),
				reg.Intern("farkas_en_l0"):  big.NewInt(0),
				reg.Intern("farkas_en_l"):   big.NewInt(1),
			}

			return model, true
		},
	}

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, scripted, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)

	require.True(t, fullySimplified(g, l0))
	require.NotEqual(t, complexity.Unknown, result.Complexity.Kind())

	for _, rid := range g.RulesFrom(l0) {
		r := g.Rule(rid)
		require.Equal(t, l2, r.To)
	}
}

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
