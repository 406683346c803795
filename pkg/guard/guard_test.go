package guard_test

import (
	"testing"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

func TestNewDeduplicatesAndSorts(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	a1 := guard.NewAtom(expr.Var(x), guard.GE)
	a2 := guard.NewAtom(expr.Var(x), guard.GE)
	a3 := guard.NewAtom(expr.Var(x), guard.GT)

	g := guard.New(a1, a2, a3)

	require.Equal(t, 2, g.Len())
}

func TestAndMerges(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	g1 := guard.New(guard.NewAtom(expr.Var(x), guard.GE))
	g2 := guard.New(guard.NewAtom(expr.Var(y), guard.GE))

	merged := g1.And(g2)
	require.Equal(t, 2, merged.Len())
}

func TestWithoutFilters(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	g := guard.New(
		guard.NewAtom(expr.Var(x), guard.GE),
		guard.NewAtom(expr.Var(y), guard.GT),
	)

	filtered := g.Without(func(a guard.Atom) bool { return a.Relation == guard.GE })
	require.Equal(t, 1, filtered.Len())
	require.Equal(t, guard.GE, filtered.Atoms()[0].Relation)
}

func TestVariablesDeduped(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	g := guard.New(
		guard.NewAtom(expr.Var(x), guard.GE),
		guard.NewAtom(expr.Var(x).Add(expr.ConstInt(1)), guard.GT),
	)

	require.Equal(t, []variable.ID{x}, g.Variables())
}

func TestMapSubstitutes(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	g := guard.New(guard.NewAtom(expr.Var(x), guard.GE))

	env := map[variable.ID]expr.Expr{x: expr.Var(y)}

	mapped, ok := g.Map(func(e expr.Expr) (expr.Expr, bool) { return e.Substitute(env) })
	require.True(t, ok)
	require.Equal(t, []variable.ID{y}, mapped.Variables())
}

func TestEmptyGuardIsTrue(t *testing.T) {
	require.Equal(t, "true", guard.Empty.String(func(variable.ID) string { return "?" }))
}
