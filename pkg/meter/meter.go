// Package meter implements the metering-function synthesis of spec.md
// §4.E: given a self-loop's guard, update and cost, find a linear
// polynomial m over the loop's variables that is bounded below, strictly
// decreasing by at least 1 per iteration, and at least 1 whenever the
// guard holds — so m itself is a sound bound on the number of times the
// loop can fire.
package meter

import (
	"context"
	"math/big"
	"sort"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

// Function is a synthesized metering function m = Σ Coeffs[x]·x + Const.
type Function struct {
	Coeffs map[variable.ID]*big.Int
	Const  *big.Int
}

// Expr renders the metering function as an expr.Expr.
func (f Function) Expr() expr.Expr {
	e := expr.Const(f.Const)

	vars := make([]variable.ID, 0, len(f.Coeffs))
	for v := range f.Coeffs {
		vars = append(vars, v)
	}

	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

	for _, v := range vars {
		e = e.Add(expr.Var(v).MulConst(f.Coeffs[v]))
	}

	return e
}

// instantiationCap bounds the small fixed number of candidate values tried
// per temporary variable during the retry step of spec.md §4.E step 5.
const instantiationCap = 4

// Synthesize attempts to find a metering function for a self-loop with
// guard g, update u and relevant-variable set seeded by g/u, per spec.md
// §4.E. Returns ok=false (a non-error outcome, spec.md §4.E "Failure is a
// non-error outcome") if no metering function could be found.
func Synthesize(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g guard.Guard, u update.Update) (Function, bool) {
	g2, u2 := eliminateTempVars(reg, g, u)
	reduced := reduceGuard(ctx, smt, g2, u2, reg)
	relevant := findRelevantVariables(reduced, u2)

	if fn, ok := trySynthesize(ctx, reg, smt, reduced, u2, relevant); ok {
		return fn, true
	}

	return tryInstantiateTemporaries(ctx, reg, smt, reduced, u2, relevant)
}

// trySynthesize builds and solves the Farkas encoding directly, with no
// temporary-instantiation retry.
func trySynthesize(ctx context.Context, reg *variable.Registry, smt oracle.SMT, g guard.Guard, u update.Update, relevant []variable.ID) (Function, bool) {
	gForms, ok := normalizeToGE(g)
	if !ok {
		return Function{}, false
	}

	aConst := reg.Fresh("meter_a0", true)

	aCoeff := make(map[variable.ID]variable.ID, len(relevant))
	for _, v := range relevant {
		aCoeff[v] = reg.Fresh("meter_a_"+reg.Name(v), true)
	}

	uLinear := make(map[variable.ID]linearForm, len(relevant))

	for _, v := range relevant {
		rhs := u.Get(v)
		if !rhs.IsLinear() {
			return Function{}, false
		}

		c, k := rhs.LinearCoefficients()
		uLinear[v] = linearForm{coeffs: c, constant: k}
	}

	mCoeff, mConst := templateExprs(relevant, aCoeff, aConst, nil, nil, 0)
	dCoeff, dConst := templateExprs(relevant, aCoeff, aConst, uLinear, nil, 0)
	eCoeff, eConst := templateExprs(relevant, aCoeff, aConst, nil, nil, -1)

	var atoms []guard.Atom
	atoms = append(atoms, farkasEncode(reg, "lo", relevant, gForms, mCoeff, mConst)...)
	atoms = append(atoms, farkasEncode(reg, "dec", relevant, gForms, dCoeff, dConst)...)
	atoms = append(atoms, farkasEncode(reg, "en", relevant, gForms, eCoeff, eConst)...)

	combined := guard.New(atoms...)

	if smt.CheckSat(ctx, combined) != oracle.Sat {
		return Function{}, false
	}

	model, ok := smt.GetModel(ctx, combined)
	if !ok {
		return Function{}, false
	}

	fn := Function{Coeffs: make(map[variable.ID]*big.Int, len(relevant)), Const: model[aConst]}
	if fn.Const == nil {
		return Function{}, false
	}

	for _, v := range relevant {
		c, present := model[aCoeff[v]]
		if !present {
			return Function{}, false
		}

		fn.Coeffs[v] = c
	}

	return fn, true
}

// templateExprs builds the symbolic per-variable coefficient expressions
// (over the meta a-namespace) and constant expression of one of the three
// targets of spec.md §4.E:
//   - uLinear == nil, constShift == 0: the template m itself.
//   - uLinear != nil: the decrease target d = m - m[U] - 1.
//   - uLinear == nil, constShift == -1: the enabling target m - 1.
func templateExprs(relevant []variable.ID, aCoeff map[variable.ID]variable.ID, aConst variable.ID, uLinear map[variable.ID]linearForm, _ []variable.ID, constShift int64) (map[variable.ID]expr.Expr, expr.Expr) {
	coeffExpr := make(map[variable.ID]expr.Expr, len(relevant))

	if uLinear == nil {
		for _, v := range relevant {
			coeffExpr[v] = expr.Var(aCoeff[v])
		}

		return coeffExpr, expr.Var(aConst).Add(expr.ConstInt(constShift))
	}

	// d_coeff(x_k) = a_k - Σ_j a_j * uLinear[x_j].coeffs[x_k]
	for _, xk := range relevant {
		e := expr.Var(aCoeff[xk])

		for _, xj := range relevant {
			if c, ok := uLinear[xj].coeffs[xk]; ok && c.Sign() != 0 {
				e = e.Sub(expr.Var(aCoeff[xj]).MulConst(c))
			}
		}

		coeffExpr[xk] = e
	}

	// d_const = -Σ_j a_j * uLinear[x_j].constant - 1
	constE := expr.ConstInt(-1)
	for _, xj := range relevant {
		constE = constE.Sub(expr.Var(aCoeff[xj]).MulConst(uLinear[xj].constant))
	}

	return coeffExpr, constE
}

// linearForm is a linear function over program variables with known
// (constant) integer coefficients, e.g. one atom of a guard or one
// variable's update right-hand side.
type linearForm struct {
	coeffs   map[variable.ID]*big.Int
	constant *big.Int
}

// normalizeToGE converts every atom of g into a linearForm g_i(x) >= 0,
// splitting EQ into two atoms and turning GT into GE under integer
// semantics (spec.md §4.E step 2: `x < y` ⇔ `x ≤ y - 1`). Fails if any
// atom is not linear.
func normalizeToGE(g guard.Guard) ([]linearForm, bool) {
	var out []linearForm

	for _, a := range g.Atoms() {
		switch a.Relation {
		case guard.GE:
			lf, ok := toLinearForm(a.Expr)
			if !ok {
				return nil, false
			}

			out = append(out, lf)
		case guard.GT:
			// e > 0  ⇔  e - 1 >= 0
			lf, ok := toLinearForm(a.Expr.Sub(expr.ConstInt(1)))
			if !ok {
				return nil, false
			}

			out = append(out, lf)
		case guard.EQ:
			lf1, ok1 := toLinearForm(a.Expr)
			lf2, ok2 := toLinearForm(a.Expr.Neg())

			if !ok1 || !ok2 {
				return nil, false
			}

			out = append(out, lf1, lf2)
		}
	}

	return out, true
}

func toLinearForm(e expr.Expr) (linearForm, bool) {
	if !e.IsLinear() {
		return linearForm{}, false
	}

	c, k := e.LinearCoefficients()

	return linearForm{coeffs: c, constant: k}, true
}

// farkasEncode builds the Farkas-lemma encoding of "g_1≥0 ∧ ... ∧ g_n≥0 ⇒
// targetCoeff(x)·x + targetConst ≥ 0" (spec.md §4.E step 4): fresh
// nonnegative multipliers λ_0 (the constant slack) and λ_1..λ_n (one per
// atom of gForms), plus one equality atom per relevant variable (matching
// coefficients) and one for the constant term.
func farkasEncode(reg *variable.Registry, label string, relevant []variable.ID, gForms []linearForm, targetCoeff map[variable.ID]expr.Expr, targetConst expr.Expr) []guard.Atom {
	lambda0 := reg.Fresh("farkas_"+label+"_l0", true)
	lambdas := make([]variable.ID, len(gForms))

	for i := range gForms {
		lambdas[i] = reg.Fresh("farkas_"+label+"_l", true)
	}

	var atoms []guard.Atom

	atoms = append(atoms, guard.NewAtom(expr.Var(lambda0), guard.GE))
	for _, l := range lambdas {
		atoms = append(atoms, guard.NewAtom(expr.Var(l), guard.GE))
	}

	for _, xk := range relevant {
		rhs := expr.Zero
		for i, l := range lambdas {
			if c, ok := gForms[i].coeffs[xk]; ok && c.Sign() != 0 {
				rhs = rhs.Add(expr.Var(l).MulConst(c))
			}
		}

		atoms = append(atoms, guard.NewAtom(targetCoeff[xk].Sub(rhs), guard.EQ))
	}

	rhsConst := expr.Var(lambda0)
	for i, l := range lambdas {
		rhsConst = rhsConst.Add(expr.Var(l).MulConst(gForms[i].constant))
	}

	atoms = append(atoms, guard.NewAtom(targetConst.Sub(rhsConst), guard.EQ))

	return atoms
}
