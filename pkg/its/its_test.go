package its_test

import (
	"testing"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/update"
	"github.com/stretchr/testify/require"
)

func simpleRule(from, to its.LocationID) its.Rule {
	return its.Rule{From: from, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty, To: to}
}

func TestAddLocationAndRule(t *testing.T) {
	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")
	g.SetInitial(l0)

	rid := g.AddRule(simpleRule(l0, l1))

	require.Equal(t, []its.RuleID{rid}, g.RulesFrom(l0))
	require.Equal(t, []its.RuleID{rid}, g.RulesTo(l1))
	require.Equal(t, []its.LocationID{l1}, g.Successors(l0))
	require.Equal(t, []its.LocationID{l0}, g.Predecessors(l1))
}

func TestRemoveRuleUpdatesIndices(t *testing.T) {
	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")

	rid := g.AddRule(simpleRule(l0, l1))
	g.RemoveRule(rid)

	require.Empty(t, g.RulesFrom(l0))
	require.Empty(t, g.RulesTo(l1))
	require.True(t, g.IsRemoved(rid))
	require.True(t, g.IsEmpty())
}

func TestRulesFromToIsDirected(t *testing.T) {
	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")
	l2 := g.AddLocation("l2")

	r01 := g.AddRule(simpleRule(l0, l1))
	g.AddRule(simpleRule(l1, l2))

	require.Equal(t, []its.RuleID{r01}, g.RulesFromTo(l0, l1))
	require.Empty(t, g.RulesFromTo(l0, l2))
}

func TestIsLinear(t *testing.T) {
	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")
	l2 := g.AddLocation("l2")

	g.AddRule(simpleRule(l0, l1))
	require.True(t, g.IsLinear())

	g.AddRule(simpleRule(l0, l2))
	require.False(t, g.IsLinear())
}

func TestRuleMutMutatesInPlace(t *testing.T) {
	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")

	rid := g.AddRule(simpleRule(l0, l1))

	g.RuleMut(rid).Cost = expr.ConstInt(42)

	require.True(t, g.Rule(rid).Cost.Equals(expr.ConstInt(42)))
}
