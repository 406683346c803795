package asymptotic_test

import (
	"context"
	"testing"

	"github.com/costbound/costbound/pkg/asymptotic"
	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

// TestClassifyConstantCost checks the no-free-variable fast path.
func TestClassifyConstantCost(t *testing.T) {
	var fm oracle.FourierMotzkin

	result := asymptotic.Classify(context.Background(), fm, guard.Empty, expr.ConstInt(5))
	require.True(t, result.Complexity.Equal(complexity.ClassConst))
	require.False(t, result.Reduced)
}

// TestClassifyInfCost checks the INF sentinel short-circuit.
func TestClassifyInfCost(t *testing.T) {
	var fm oracle.FourierMotzkin

	result := asymptotic.Classify(context.Background(), fm, guard.Empty, expr.Inf)
	require.True(t, result.Complexity.Equal(complexity.ClassInfty))
}

// TestClassifyUnboundedVariableWitnessesSyntacticClass checks that a cost
// linear in a variable the guard leaves unconstrained above is reported at
// its full syntactic class, unreduced.
func TestClassifyUnboundedVariableWitnessesSyntacticClass(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	var fm oracle.FourierMotzkin

	g := guard.New(guard.NewAtom(expr.Var(x), guard.GE))

	result := asymptotic.Classify(context.Background(), fm, g, expr.Var(x))
	require.True(t, result.Complexity.Equal(complexity.ClassPoly(1)))
	require.False(t, result.Reduced)
}

// TestClassifyBoundedVariableReducesClass checks that a variable the
// guard pins into a small finite range collapses out of the growth class:
// cost is x·y+y (degree 2), but the guard confines x to [0,10], so only y
// can drive growth and the reported class reduces to that of y (degree 1).
func TestClassifyBoundedVariableReducesClass(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")
	y := reg.Intern("y")

	var fm oracle.FourierMotzkin

	g := guard.New(
		guard.NewAtom(expr.Var(x), guard.GE),
		guard.NewAtom(expr.ConstInt(10).Sub(expr.Var(x)), guard.GE),
		guard.NewAtom(expr.Var(y), guard.GE),
	)

	result := asymptotic.Classify(context.Background(), fm, g, expr.Var(x).Mul(expr.Var(y)).Add(expr.Var(y)))
	require.True(t, result.Reduced)
	require.True(t, result.WitnessCost.Equals(expr.Var(y)))
}

// TestClassifyEverythingBoundedCollapsesToConstant checks that when every
// cost variable is individually bounded, the witness cost collapses to a
// pure constant.
func TestClassifyEverythingBoundedCollapsesToConstant(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	var fm oracle.FourierMotzkin

	g := guard.New(
		guard.NewAtom(expr.Var(x), guard.GE),
		guard.NewAtom(expr.ConstInt(3).Sub(expr.Var(x)), guard.GE),
	)

	result := asymptotic.Classify(context.Background(), fm, g, expr.Var(x))
	require.True(t, result.Reduced)
	require.True(t, result.Complexity.Equal(complexity.ClassConst))
}
