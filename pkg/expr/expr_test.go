package expr_test

import (
	"math/big"
	"testing"

	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

// checkEquiv asserts that every expression in exprs reduces to the same
// canonical form, mirroring the teacher's pkg/util/poly/poly_struct_test.go
// checkEquiv table-test idiom.
func checkEquiv(t *testing.T, mk func() expr.Expr, exprs ...expr.Expr) {
	t.Helper()

	want := mk()
	for i, e := range exprs {
		require.Truef(t, want.Equals(e), "case %d: %v != %v", i, e, want)
	}
}

func TestZeroEquivalences(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	checkEquiv(t, func() expr.Expr { return expr.Zero },
		expr.ConstInt(0),
		expr.ConstInt(1).Sub(expr.ConstInt(1)),
		expr.Var(x).Sub(expr.Var(x)),
		expr.Var(x).Mul(expr.ConstInt(2)).Sub(expr.Var(x)).Sub(expr.Var(x)),
	)
}

func TestLinearCombination(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	lhs := expr.Var(x).Add(expr.Var(y))
	rhs := expr.Var(y).Add(expr.Var(x))

	require.True(t, lhs.Equals(rhs))
}

func TestMultiplicationDistributes(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	lhs := expr.Var(x).Add(expr.Var(y)).Mul(expr.Var(x).Sub(expr.Var(y)))
	rhs := expr.Var(x).Mul(expr.Var(x)).Sub(expr.Var(y).Mul(expr.Var(y)))

	require.True(t, lhs.Equals(rhs))
}

func TestComplexityClasses(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	require.True(t, expr.ConstInt(5).Complexity().Equal(complexity.ClassConst))
	require.True(t, expr.Var(x).Complexity().Equal(complexity.ClassPoly(1)))
	require.True(t, expr.Var(x).Mul(expr.Var(y)).Complexity().Equal(complexity.ClassPoly(2)))
	require.True(t, expr.Inf.Complexity().Equal(complexity.ClassInfty))
	require.True(t, expr.Geometric(big.NewInt(1), big.NewInt(2), x).Complexity().Equal(complexity.ClassExp))
}

func TestSubstituteAffineShiftsExponent(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	cost := expr.Geometric(big.NewInt(1), big.NewInt(2), x)
	env := map[variable.ID]expr.Expr{x: expr.Var(x).Add(expr.ConstInt(1))}

	got, ok := cost.Substitute(env)
	require.True(t, ok)

	// base^(x+1) = base^1 * base^x
	want := expr.Geometric(big.NewInt(2), big.NewInt(2), x)
	require.True(t, got.Equals(want))
}

func TestSubstitutePolynomial(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")
	y := r.Intern("y")

	e := expr.Var(x).Add(expr.ConstInt(1))
	env := map[variable.ID]expr.Expr{x: expr.Var(y).Mul(expr.ConstInt(2))}

	got, ok := e.Substitute(env)
	require.True(t, ok)
	require.True(t, got.Equals(expr.Var(y).Mul(expr.ConstInt(2)).Add(expr.ConstInt(1))))
}

func TestEvalComputesPolynomialValue(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	e := expr.Var(x).Mul(expr.Var(x)).Add(expr.ConstInt(3))
	got := expr.Eval(e, map[variable.ID]*big.Int{x: big.NewInt(4)})

	require.Equal(t, big.NewInt(19), got)
}

func TestIsLinear(t *testing.T) {
	r := variable.NewRegistry()
	x := r.Intern("x")

	require.True(t, expr.Var(x).Add(expr.ConstInt(1)).IsLinear())
	require.False(t, expr.Var(x).Mul(expr.Var(x)).IsLinear())
	require.False(t, expr.Inf.IsLinear())
}
