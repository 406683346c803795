package oracle

import (
	"context"
	"math/big"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/variable"
)

// Scripted is a deterministic, canned-response test double implementing
// both SMT and Recurrence, for engine-level unit tests that need to drive
// metering/chaining/pruning down a specific path without depending on
// FourierMotzkin's or ClosedForm's actual decidable fragment.
type Scripted struct {
	// SatFunc decides CheckSat; if nil, every query answers Sat.
	SatFunc func(g guard.Guard) Result
	// ModelFunc supplies GetModel; if nil, GetModel always fails.
	ModelFunc func(g guard.Guard) (map[variable.ID]*big.Int, bool)
	// CloseFunc supplies Recurrence.Close; if nil, every query fails.
	CloseFunc func(v variable.ID, rhs expr.Expr, n variable.ID) (expr.Expr, bool)
}

// CheckSat implements SMT.
func (s Scripted) CheckSat(_ context.Context, g guard.Guard) Result {
	if s.SatFunc == nil {
		return Sat
	}

	return s.SatFunc(g)
}

// GetModel implements SMT.
func (s Scripted) GetModel(_ context.Context, g guard.Guard) (map[variable.ID]*big.Int, bool) {
	if s.ModelFunc == nil {
		return nil, false
	}

	return s.ModelFunc(g)
}

// Close implements Recurrence.
func (s Scripted) Close(v variable.ID, rhs expr.Expr, n variable.ID) (expr.Expr, bool) {
	if s.CloseFunc == nil {
		return expr.Expr{}, false
	}

	return s.CloseFunc(v, rhs, n)
}
