package expr

import (
	"math/big"

	"github.com/costbound/costbound/pkg/variable"
)

// Geometric constructs coefficient * base^v, the shape produced by the
// recurrence oracle (pkg/oracle) when closing a geometric update or cost
// recurrence (spec.md §4.F).
func Geometric(coefficient *big.Int, base *big.Int, v variable.ID) Expr {
	t := term{coefficient: new(big.Int).Set(coefficient), exp: &exponential{new(big.Int).Set(base), v}}
	return Expr{terms: normalize([]term{t})}
}

// Eval evaluates e under a total environment mapping every free variable to
// a concrete integer value. Panics if e is INF or if env is missing a
// variable e depends on; callers (tests, the property-based simulator)
// are expected to supply a complete environment.
func Eval(e Expr, env map[variable.ID]*big.Int) *big.Int {
	if e.inf {
		panic("cannot evaluate INF")
	}

	sum := big.NewInt(0)

	for _, t := range e.terms {
		val := new(big.Int).Set(t.coefficient)

		for _, v := range t.vars {
			x, ok := env[v]
			if !ok {
				panic("missing variable in evaluation environment")
			}

			val.Mul(val, x)
		}

		if t.exp != nil {
			x, ok := env[t.exp.v]
			if !ok {
				panic("missing variable in evaluation environment")
			}

			if x.Sign() < 0 {
				panic("negative exponent")
			}

			val.Mul(val, new(big.Int).Exp(t.exp.base, x, nil))
		}

		sum.Add(sum, val)
	}

	return sum
}
