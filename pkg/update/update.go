// Package update implements the simultaneous variable updates of spec.md
// §3/§4.F: a partial map from variable to expression, applied all-at-once
// (a variable's new value never sees another variable's new value, only its
// old one).
package update

import (
	"bytes"
	"sort"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/variable"
)

// Update is a partial map from variable to its post-state expression.
// Variables not present are identity-updated (spec.md §3 Update).
type Update map[variable.ID]expr.Expr

// Empty is the identity update (every variable unchanged).
var Empty = Update{}

// Get returns the post-state expression for v: its mapped expression if
// present, or Var(v) (identity) otherwise.
func (u Update) Get(v variable.ID) expr.Expr {
	if e, ok := u[v]; ok {
		return e
	}

	return expr.Var(v)
}

// Variables returns the variables explicitly assigned by u, ascending.
func (u Update) Variables() []variable.ID {
	out := make([]variable.ID, 0, len(u))
	for v := range u {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Uses returns the deduplicated, sorted set of variables read by any
// right-hand side of u — the "uses" relation of spec.md §4.F's topological
// ordering step.
func (u Update) Uses() []variable.ID {
	seen := map[variable.ID]bool{}

	var out []variable.ID

	for _, rhs := range u {
		for _, v := range rhs.Variables() {
			if !seen[v] {
				seen[v] = true

				out = append(out, v)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// ApplySimultaneously substitutes u's right-hand sides (evaluated against
// the pre-state) for every occurrence of a variable it assigns in e,
// implementing the simultaneous-update semantics of spec.md §3: e never
// sees one variable's post-value through another's substitution.
func (u Update) ApplySimultaneously(e expr.Expr) (expr.Expr, bool) {
	env := make(map[variable.ID]expr.Expr, len(u))
	for v, rhs := range u {
		env[v] = rhs
	}

	return e.Substitute(env)
}

// IsIdentity reports whether u assigns no variable a value other than
// itself.
func (u Update) IsIdentity() bool {
	for v, rhs := range u {
		if !rhs.Equals(expr.Var(v)) {
			return false
		}
	}

	return true
}

// WithoutIdentities returns u with every entry that maps a variable to
// itself removed.
func (u Update) WithoutIdentities() Update {
	out := make(Update, len(u))

	for v, rhs := range u {
		if !rhs.Equals(expr.Var(v)) {
			out[v] = rhs
		}
	}

	return out
}

// String renders u as "x := rhs, y := rhs, ...", in ascending variable order.
func (u Update) String(names func(variable.ID) string) string {
	vars := u.Variables()
	if len(vars) == 0 {
		return "{}"
	}

	var buf bytes.Buffer

	for i, v := range vars {
		if i != 0 {
			buf.WriteString(", ")
		}

		buf.WriteString(names(v))
		buf.WriteString(" := ")
		buf.WriteString(u[v].String(names))
	}

	return buf.String()
}
