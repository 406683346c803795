package prune_test

import (
	"testing"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/prune"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

func TestParallelRulesKeepsHighestComplexity(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	g := its.New()
	s := g.AddLocation("s")
	d := g.AddLocation("d")

	constRule := g.AddRule(its.Rule{From: s, To: d, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty})
	linRule := g.AddRule(its.Rule{From: s, To: d, Guard: guard.Empty, Cost: expr.Var(x), Update: update.Empty})
	quadRule := g.AddRule(its.Rule{From: s, To: d, Guard: guard.Empty, Cost: expr.Var(x).Mul(expr.Var(x)), Update: update.Empty})

	changed := prune.ParallelRules(g, 2)
	require.True(t, changed)

	require.True(t, g.IsRemoved(constRule))
	require.False(t, g.IsRemoved(linRule))
	require.False(t, g.IsRemoved(quadRule))
}

func TestParallelRulesNoopBelowThreshold(t *testing.T) {
	g := its.New()
	s := g.AddLocation("s")
	d := g.AddLocation("d")

	g.AddRule(its.Rule{From: s, To: d, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty})

	require.False(t, prune.ParallelRules(g, 3))
}

func TestRemoveSinkRHSsClearsDeadEndUpdates(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	g := its.New()
	s := g.AddLocation("s")
	sink := g.AddLocation("sink")
	live := g.AddLocation("live")

	sinkRule := g.AddRule(its.Rule{
		From:   s,
		To:     sink,
		Guard:  guard.Empty,
		Cost:   expr.ConstInt(1),
		Update: update.Update{x: expr.Var(x).Add(expr.ConstInt(1))},
	})

	liveRule := g.AddRule(its.Rule{
		From:   s,
		To:     live,
		Guard:  guard.Empty,
		Cost:   expr.ConstInt(1),
		Update: update.Update{x: expr.Var(x).Add(expr.ConstInt(1))},
	})

	g.AddRule(its.Rule{From: live, To: sink, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty})

	changed := prune.RemoveSinkRHSs(g)
	require.True(t, changed)

	require.Empty(t, g.Rule(sinkRule).Update)
	require.NotEmpty(t, g.Rule(liveRule).Update)
}
