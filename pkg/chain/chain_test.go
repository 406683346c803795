package chain_test

import (
	"context"
	"testing"

	"github.com/costbound/costbound/pkg/chain"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

// TestComposeRejectsMismatchedEndpoints checks the r1.To == r2.From
// precondition.
func TestComposeRejectsMismatchedEndpoints(t *testing.T) {
	reg := variable.NewRegistry()

	var fm oracle.FourierMotzkin

	r1 := its.Rule{From: 0, To: 1, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty}
	r2 := its.Rule{From: 2, To: 3, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty}

	_, ok := chain.Compose(context.Background(), reg, fm, r1, r2)
	require.False(t, ok)
}

// TestComposeCombinesGuardCostUpdate hand-verifies the composition algebra:
// r1: loc0 -[x>=0 / cost 1 / x'=x-1]-> loc1
// r2: loc1 -[x>=0 / cost x  / x'=x+2]-> loc2
// Pushing r2's guard through r1's update gives x-1>=0, so the combined
// guard is {x>=0, x-1>=0}. Pushing r2's cost through r1's update gives
// x-1, so the combined cost is 1+(x-1)=x. Composing the updates gives
// x ↦ (x-1)+2 = x+1.
func TestComposeCombinesGuardCostUpdate(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	r1 := its.Rule{
		From:   0,
		To:     1,
		Guard:  guard.New(guard.NewAtom(expr.Var(x), guard.GE)),
		Cost:   expr.ConstInt(1),
		Update: update.Update{x: expr.Var(x).Sub(expr.ConstInt(1))},
	}

	r2 := its.Rule{
		From:   1,
		To:     2,
		Guard:  guard.New(guard.NewAtom(expr.Var(x), guard.GE)),
		Cost:   expr.Var(x),
		Update: update.Update{x: expr.Var(x).Add(expr.ConstInt(2))},
	}

	var fm oracle.FourierMotzkin

	composed, ok := chain.Compose(context.Background(), reg, fm, r1, r2)
	require.True(t, ok)
	require.Equal(t, its.LocationID(0), composed.From)
	require.Equal(t, its.LocationID(2), composed.To)

	wantGuard := guard.New(
		guard.NewAtom(expr.Var(x), guard.GE),
		guard.NewAtom(expr.Var(x).Sub(expr.ConstInt(1)), guard.GE),
	)
	require.Equal(t, wantGuard.Atoms(), composed.Guard.Atoms())

	require.True(t, composed.Cost.Equals(expr.Var(x)))

	wantUpdate := expr.Var(x).Add(expr.ConstInt(1))
	require.True(t, composed.Update.Get(x).Equals(wantUpdate))
}

// TestComposeFailsOnUnsatGuard checks that a combined guard the SMT oracle
// reports unsat causes Compose to fail rather than return a dead rule.
func TestComposeFailsOnUnsatGuard(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	r1 := its.Rule{
		From:   0,
		To:     1,
		Guard:  guard.New(guard.NewAtom(expr.Var(x), guard.GE), guard.NewAtom(expr.ConstInt(2).Sub(expr.Var(x)), guard.GE)),
		Cost:   expr.ConstInt(1),
		Update: update.Empty,
	}

	r2 := its.Rule{
		From:   1,
		To:     2,
		Guard:  guard.New(guard.NewAtom(expr.Var(x).Sub(expr.ConstInt(10)), guard.GE)),
		Cost:   expr.ConstInt(1),
		Update: update.Empty,
	}

	var fm oracle.FourierMotzkin

	_, ok := chain.Compose(context.Background(), reg, fm, r1, r2)
	require.False(t, ok)
}

// TestComposeRenamesTemporaries verifies that composing the same rule
// object twice (as if reached via two different incoming paths) produces
// independent temporary-variable instances rather than aliasing them.
func TestComposeRenamesTemporaries(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")
	t1 := reg.Fresh("t", true)

	r1a := its.Rule{From: 0, To: 1, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty}
	r1b := its.Rule{From: 5, To: 1, Guard: guard.Empty, Cost: expr.ConstInt(1), Update: update.Empty}

	shared := its.Rule{
		From:   1,
		To:     2,
		Guard:  guard.New(guard.NewAtom(expr.Var(t1), guard.GE)),
		Cost:   expr.ConstInt(1),
		Update: update.Update{x: expr.Var(t1)},
	}

	var fm oracle.FourierMotzkin

	c1, ok1 := chain.Compose(context.Background(), reg, fm, r1a, shared)
	require.True(t, ok1)

	c2, ok2 := chain.Compose(context.Background(), reg, fm, r1b, shared)
	require.True(t, ok2)

	v1 := c1.Update.Get(x).Variables()
	v2 := c2.Update.Get(x).Variables()
	require.Len(t, v1, 1)
	require.Len(t, v2, 1)
	require.NotEqual(t, v1[0], v2[0], "each composition must mint its own fresh temporary")
}
