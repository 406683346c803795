package oracle

import (
	"context"
	"math/big"
	"sort"

	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/variable"
)

// FourierMotzkin decides satisfiability of conjunctions of *linear*
// arithmetic atoms by variable elimination over math/big.Rat (spec.md §4.E
// step 4's "encode ... hand to the SMT oracle" and §4.I's limit-problem
// solving are both linear feasibility problems, so this single decision
// procedure backs both call sites, per SPEC_FULL.md §4.E/4.I). It decides
// the *rational relaxation*: a relaxation-infeasible formula is definitely
// integer-infeasible (Unsat is sound), but a relaxation-feasible formula
// might still have no integer point, so CheckSat only reports Sat when it
// can exhibit an actual integer model; otherwise it reports Unknown. Any
// atom outside the linear fragment makes the whole query Unknown.
type FourierMotzkin struct{}

// linAtom is one atom normalised to `coeffs·x + const OP 0`.
type linAtom struct {
	coeffs map[variable.ID]*big.Rat
	const_ *big.Rat
	strict bool // OP is "> 0" instead of ">= 0"
}

func toLinAtom(a guard.Atom) (linAtom, bool) {
	if !a.Expr.IsLinear() {
		return linAtom{}, false
	}

	ic, k := a.Expr.LinearCoefficients()

	coeffs := make(map[variable.ID]*big.Rat, len(ic))
	for v, c := range ic {
		coeffs[v] = new(big.Rat).SetInt(c)
	}

	rk := new(big.Rat).SetInt(k)

	switch a.Relation {
	case guard.GE:
		return linAtom{coeffs, rk, false}, true
	case guard.GT:
		return linAtom{coeffs, rk, true}, true
	case guard.EQ:
		// handled by caller as two atoms (>= 0 and <= 0); EQ itself isn't
		// representable as one linAtom.
		return linAtom{}, false
	default:
		return linAtom{}, false
	}
}

// toLinAtoms expands a guard into its linAtom system, splitting EQ atoms
// into a pair of opposing GE atoms.
func toLinAtoms(g guard.Guard) ([]linAtom, bool) {
	var out []linAtom

	for _, a := range g.Atoms() {
		if a.Relation == guard.EQ {
			ge, ok1 := toLinAtom(guard.NewAtom(a.Expr, guard.GE))
			le, ok2 := toLinAtom(guard.NewAtom(a.Expr.Neg(), guard.GE))

			if !ok1 || !ok2 {
				return nil, false
			}

			out = append(out, ge, le)

			continue
		}

		la, ok := toLinAtom(a)
		if !ok {
			return nil, false
		}

		out = append(out, la)
	}

	return out, true
}

func variablesOf(atoms []linAtom) []variable.ID {
	seen := map[variable.ID]bool{}

	var out []variable.ID

	for _, a := range atoms {
		for v := range a.coeffs {
			if !seen[v] {
				seen[v] = true

				out = append(out, v)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// eliminationStep records, for one eliminated variable, the lower- and
// upper-bound atoms it was eliminated from, so CheckSat can back-substitute
// a concrete model once feasibility is established.
type eliminationStep struct {
	v      variable.ID
	lowers []linAtom // coeff on v is > 0: v >= -rest/coeff
	uppers []linAtom // coeff on v is < 0: v <= rest/(-coeff)
}

// eliminate performs one round of Fourier-Motzkin elimination of v from
// atoms, returning the projected system (not mentioning v) and the bound
// atoms removed (for back-substitution).
func eliminate(atoms []linAtom, v variable.ID) ([]linAtom, eliminationStep) {
	step := eliminationStep{v: v}

	var (
		rest   []linAtom
		lowers []linAtom
		uppers []linAtom
	)

	for _, a := range atoms {
		c, ok := a.coeffs[v]
		if !ok || c.Sign() == 0 {
			rest = append(rest, a)
			continue
		}

		if c.Sign() > 0 {
			lowers = append(lowers, a)
		} else {
			uppers = append(uppers, a)
		}
	}

	step.lowers = lowers
	step.uppers = uppers

	for _, lo := range lowers {
		for _, up := range uppers {
			rest = append(rest, combine(lo, up, v))
		}
	}

	return rest, step
}

// combine derives the constraint implied by eliminating v between a lower
// bound atom lo (coeff on v positive) and an upper bound atom up (coeff on
// v negative): lo/cLo - up/(-cUp) ... concretely, scale both to unit
// coefficient on v and add.
func combine(lo, up linAtom, v variable.ID) linAtom {
	cLo := lo.coeffs[v]
	cUp := up.coeffs[v]

	// Normalise both atoms so the coefficient of v is +1 and -1
	// respectively, then add: (v + restLo >= 0) + (-v + restUp >= 0) =>
	// restLo + restUp >= 0, eliminating v.
	normLo := scaleAtom(lo, new(big.Rat).Inv(cLo))
	normUp := scaleAtom(up, new(big.Rat).Inv(new(big.Rat).Neg(cUp)))

	delete(normLo.coeffs, v)
	delete(normUp.coeffs, v)

	return addAtoms(normLo, normUp)
}

func scaleAtom(a linAtom, k *big.Rat) linAtom {
	out := linAtom{coeffs: make(map[variable.ID]*big.Rat, len(a.coeffs)), const_: new(big.Rat).Mul(a.const_, k), strict: a.strict}
	for v, c := range a.coeffs {
		out.coeffs[v] = new(big.Rat).Mul(c, k)
	}

	return out
}

func addAtoms(a, b linAtom) linAtom {
	out := linAtom{coeffs: make(map[variable.ID]*big.Rat, len(a.coeffs)+len(b.coeffs)), const_: new(big.Rat).Add(a.const_, b.const_), strict: a.strict || b.strict}
	for v, c := range a.coeffs {
		out.coeffs[v] = new(big.Rat).Set(c)
	}

	for v, c := range b.coeffs {
		if e, ok := out.coeffs[v]; ok {
			e.Add(e, c)
		} else {
			out.coeffs[v] = new(big.Rat).Set(c)
		}
	}

	return out
}

// evalRest evaluates a linAtom's coefficient·x + const under a partial
// assignment, restricted to the variables already present in env; returns
// ok=false if some coefficient's variable is missing from env.
func evalRest(a linAtom, env map[variable.ID]*big.Rat) (*big.Rat, bool) {
	sum := new(big.Rat).Set(a.const_)

	for v, c := range a.coeffs {
		x, ok := env[v]
		if !ok {
			return nil, false
		}

		sum.Add(sum, new(big.Rat).Mul(c, x))
	}

	return sum, true
}

// CheckSat implements SMT.CheckSat for conjunctions of linear atoms.
func (FourierMotzkin) CheckSat(ctx context.Context, g guard.Guard) Result {
	atoms, ok := toLinAtoms(g)
	if !ok {
		return Unknown
	}

	if len(atoms) == 0 {
		return Sat
	}

	vars := variablesOf(atoms)

	cur := atoms

	var steps []eliminationStep

	for _, v := range vars {
		select {
		case <-ctx.Done():
			return Unknown
		default:
		}

		var step eliminationStep

		cur, step = eliminate(cur, v)
		steps = append(steps, step)
	}

	// cur now contains only constant atoms: const_ OP 0.
	for _, a := range cur {
		sign := a.const_.Sign()
		if sign < 0 || (sign == 0 && a.strict) {
			return Unsat
		}
	}

	if _, ok := model(steps, vars); ok {
		return Sat
	}

	return Unknown
}

// GetModel implements SMT.GetModel by back-substituting through the
// elimination steps recorded by CheckSat.
func (f FourierMotzkin) GetModel(ctx context.Context, g guard.Guard) (map[variable.ID]*big.Int, bool) {
	atoms, ok := toLinAtoms(g)
	if !ok {
		return nil, false
	}

	vars := variablesOf(atoms)
	cur := atoms

	var steps []eliminationStep

	for _, v := range vars {
		var step eliminationStep

		cur, step = eliminate(cur, v)
		steps = append(steps, step)
	}

	for _, a := range cur {
		sign := a.const_.Sign()
		if sign < 0 || (sign == 0 && a.strict) {
			return nil, false
		}
	}

	rat, ok := model(steps, vars)
	if !ok {
		return nil, false
	}

	out := make(map[variable.ID]*big.Int, len(rat))

	for v, r := range rat {
		if !r.IsInt() {
			return nil, false
		}

		out[v] = new(big.Int).Set(r.Num())
	}

	return out, true
}

// model back-substitutes a concrete rational assignment from the recorded
// elimination steps, in reverse elimination order, then attempts to round
// every coordinate to an integer point (checked against the original
// bounds it was derived from). Returns ok=false if no integer witness was
// found (the rational relaxation may still be feasible; this procedure
// does not implement full integer Fourier-Motzkin / Omega-test cuts).
func model(steps []eliminationStep, _ []variable.ID) (map[variable.ID]*big.Rat, bool) {
	env := map[variable.ID]*big.Rat{}

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]

		var lo, hi *big.Rat

		for _, a := range step.lowers {
			rest, ok := evalRest(linAtomWithout(a, step.v), env)
			if !ok {
				return nil, false
			}

			bound := new(big.Rat).Quo(new(big.Rat).Neg(rest), new(big.Rat).Abs(a.coeffs[step.v]))
			if a.strict {
				bound.Add(bound, smallEpsilon)
			}

			if lo == nil || bound.Cmp(lo) > 0 {
				lo = bound
			}
		}

		for _, a := range step.uppers {
			rest, ok := evalRest(linAtomWithout(a, step.v), env)
			if !ok {
				return nil, false
			}

			bound := new(big.Rat).Quo(rest, new(big.Rat).Abs(a.coeffs[step.v]))
			if a.strict {
				bound.Sub(bound, smallEpsilon)
			}

			if hi == nil || bound.Cmp(hi) < 0 {
				hi = bound
			}
		}

		val := pickInRange(lo, hi)
		if val == nil {
			return nil, false
		}

		env[step.v] = val
	}

	return env, true
}

// smallEpsilon nudges a strict bound's rational witness away from the
// boundary; 1/2 is large enough to cross any integer gap yet small enough
// not to cross a second one for the unit-coefficient systems this oracle
// normalises to.
var smallEpsilon = big.NewRat(1, 2)

func linAtomWithout(a linAtom, v variable.ID) linAtom {
	out := linAtom{coeffs: make(map[variable.ID]*big.Rat, len(a.coeffs)), const_: a.const_, strict: a.strict}
	for k, c := range a.coeffs {
		if k != v {
			out.coeffs[k] = c
		}
	}

	return out
}

// pickInRange returns an integer point in [lo, hi] (ceil(lo) if that still
// satisfies hi), or nil if the range contains none, or the midpoint if
// either bound is absent (variable unconstrained on that side — pick 0,
// clamped into whatever bound exists).
func pickInRange(lo, hi *big.Rat) *big.Rat {
	switch {
	case lo == nil && hi == nil:
		return big.NewRat(0, 1)
	case lo == nil:
		return new(big.Rat).Set(floorRat(hi))
	case hi == nil:
		return new(big.Rat).Set(ceilRat(lo))
	default:
		c := ceilRat(lo)
		if c.Cmp(hi) <= 0 {
			return c
		}

		return nil
	}
}

func ceilRat(r *big.Rat) *big.Rat {
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(r.Num(), r.Denom(), m)

	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}

	return new(big.Rat).SetInt(q)
}

func floorRat(r *big.Rat) *big.Rat {
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(r.Num(), r.Denom(), m)

	return new(big.Rat).SetInt(q)
}
