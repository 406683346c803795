// Package chain implements rule composition and the path-contraction
// strategies of spec.md §4.G: collapsing a sequence of rules along a path
// into one, so the simplification driver can eventually reduce the whole
// graph to rules leaving the initial location directly.
package chain

import (
	"context"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

// Compose chains r1: s -> t and r2: t -> u (r1.To must equal r2.From) into
// s -> u with guard `G1 ∧ G2[U1]`, cost `c1 + c2[U1]`, update `U2 ∘ U1`
// (spec.md §4.G). r2's temporaries are renamed fresh first to avoid
// capture when the same rule object is chained along more than one path.
// Fails (ok=false) if the composed guard is SMT-unsat.
func Compose(ctx context.Context, reg *variable.Registry, smt oracle.SMT, r1, r2 its.Rule) (its.Rule, bool) {
	if r1.To != r2.From {
		return its.Rule{}, false
	}

	r2 = renameTemporaries(reg, r2)

	g2Pushed, ok := r2.Guard.Map(func(e expr.Expr) (expr.Expr, bool) { return r1.Update.ApplySimultaneously(e) })
	if !ok {
		return its.Rule{}, false
	}

	combinedGuard := r1.Guard.And(g2Pushed)

	if oracle.IsUnsat(ctx, smt, combinedGuard) {
		return its.Rule{}, false
	}

	c2Pushed, ok := r1.Update.ApplySimultaneously(r2.Cost)
	if !ok {
		return its.Rule{}, false
	}

	combinedUpdate, ok := composeUpdates(r1.Update, r2.Update)
	if !ok {
		return its.Rule{}, false
	}

	return its.Rule{
		From:   r1.From,
		Guard:  combinedGuard,
		Cost:   r1.Cost.Add(c2Pushed),
		Update: combinedUpdate,
		To:     r2.To,
	}, true
}

// composeUpdates builds U2 ∘ U1: for every variable either update
// touches, U1's pre-state value substituted into U2's right-hand side
// (identity if one side does not mention the variable).
func composeUpdates(u1, u2 update.Update) (update.Update, bool) {
	seen := map[variable.ID]bool{}

	for _, v := range u1.Variables() {
		seen[v] = true
	}

	for _, v := range u2.Variables() {
		seen[v] = true
	}

	out := make(update.Update, len(seen))

	for v := range seen {
		rhs2 := u2.Get(v)

		composed, ok := u1.ApplySimultaneously(rhs2)
		if !ok {
			return nil, false
		}

		out[v] = composed
	}

	return out.WithoutIdentities(), true
}

// renameTemporaries substitutes every temporary variable appearing in r
// (guard, cost, update) by a freshly minted one, so chaining the same
// rule object along two different paths (e.g. two incoming edges into an
// accelerated self-loop) never aliases their existentially-quantified
// temporaries.
func renameTemporaries(reg *variable.Registry, r its.Rule) its.Rule {
	temps := temporaryVariablesOf(reg, r)
	if len(temps) == 0 {
		return r
	}

	env := make(map[variable.ID]expr.Expr, len(temps))
	for _, v := range temps {
		env[v] = expr.Var(reg.Fresh(reg.Name(v), true))
	}

	ng, ok := r.Guard.Map(func(e expr.Expr) (expr.Expr, bool) { return e.Substitute(env) })
	if !ok {
		return r
	}

	nc, ok := r.Cost.Substitute(env)
	if !ok {
		return r
	}

	nu := make(update.Update, len(r.Update))

	for v, e := range r.Update {
		ne, ok := e.Substitute(env)
		if !ok {
			return r
		}

		if repl, renamed := env[v]; renamed {
			v = repl.Variables()[0]
		}

		nu[v] = ne
	}

	return its.Rule{From: r.From, Guard: ng, Cost: nc, Update: nu, To: r.To}
}

func temporaryVariablesOf(reg *variable.Registry, r its.Rule) []variable.ID {
	seen := map[variable.ID]bool{}

	var out []variable.ID

	add := func(v variable.ID) {
		if reg.IsTemp(v) && !seen[v] {
			seen[v] = true

			out = append(out, v)
		}
	}

	for _, v := range r.Guard.Variables() {
		add(v)
	}

	for _, v := range r.Cost.Variables() {
		add(v)
	}

	for v, e := range r.Update {
		add(v)

		for _, w := range e.Variables() {
			add(w)
		}
	}

	return out
}
