package update_test

import (
	"testing"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToIdentity(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	require.True(t, update.Empty.Get(x).Equals(expr.Var(x)))
}

func TestApplySimultaneouslySwapsWithoutAliasing(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	// swap: x' = y, y' = x
	u := update.Update{x: expr.Var(y), y: expr.Var(x)}

	got, ok := u.ApplySimultaneously(expr.Var(x).Sub(expr.Var(y)))
	require.True(t, ok)
	require.True(t, got.Equals(expr.Var(y).Sub(expr.Var(x))))
}

func TestUsesCollectsRHSVariables(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	u := update.Update{x: expr.Var(y).Add(expr.ConstInt(1))}

	require.Equal(t, []variable.ID{y}, u.Uses())
}

func TestWithoutIdentitiesDropsTrivialAssignments(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	u := update.Update{x: expr.Var(x), y: expr.Var(x)}

	filtered := u.WithoutIdentities()
	require.Equal(t, 1, len(filtered))
	require.True(t, filtered[y].Equals(expr.Var(x)))
}
