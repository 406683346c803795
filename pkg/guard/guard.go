// Package guard implements the conjunctive guards of spec.md §3/§4.D: an
// unordered set of atomic arithmetic constraints over expr.Expr. The
// simplification applied up front and after every rewrite step lives in
// pkg/preprocess.
// Guard is modelled as a sorted, duplicate-free slice of Atom in the style of
// the teacher's pkg/util/collection/set.SortedSet — but hand-rolled rather
// than instantiating that generic directly, since Atom is a struct and
// SortedSet's type parameter is constrained to cmp.Ordered (built-in ordered
// scalars only).
package guard

import (
	"bytes"
	"sort"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/variable"
)

// Relation is the comparison operator of an atom.
type Relation uint8

const (
	// GE is e >= 0.
	GE Relation = iota
	// GT is e > 0.
	GT
	// EQ is e = 0.
	EQ
)

func (r Relation) String() string {
	switch r {
	case GE:
		return ">="
	case GT:
		return ">"
	case EQ:
		return "="
	default:
		return "?"
	}
}

// Atom is a single arithmetic constraint e R 0.
type Atom struct {
	Expr     expr.Expr
	Relation Relation
}

// NewAtom constructs the atom e R 0.
func NewAtom(e expr.Expr, r Relation) Atom {
	return Atom{e, r}
}

// Equals reports structural equality of two atoms.
func (a Atom) Equals(o Atom) bool {
	return a.Relation == o.Relation && a.Expr.Equals(o.Expr)
}

// Negate returns ¬a as a single atom under integer semantics (`x < y` ⇔
// `x ≤ y - 1`, spec.md §4.E step 2), used to turn an implication query
// `G ⇒ a` into the unsatisfiability query `G ∧ ¬a`. Fails for EQ, since
// disequality is not representable as a single atom (spec.md §3 Guard).
func (a Atom) Negate() (Atom, bool) {
	switch a.Relation {
	case GE:
		// ¬(e >= 0) = e <= -1 = -e - 1 >= 0
		return Atom{a.Expr.Neg().Sub(expr.ConstInt(1)), GE}, true
	case GT:
		// ¬(e > 0) = e <= 0 = -e >= 0
		return Atom{a.Expr.Neg(), GE}, true
	default:
		return Atom{}, false
	}
}

// cmp provides the total order used to keep a Guard's atom list canonical:
// first by relation, then by the expression's own structural order.
func (a Atom) cmp(o Atom) int {
	if a.Relation != o.Relation {
		return int(a.Relation) - int(o.Relation)
	}

	return a.Expr.Cmp(o.Expr)
}

// Guard is a conjunction (unordered set) of atoms, stored sorted and
// duplicate-free (spec.md §3 Guard).
type Guard struct {
	atoms []Atom
}

// Empty is the trivially true guard (empty conjunction).
var Empty = Guard{}

// New builds a guard from a list of atoms, deduplicating and canonically
// sorting them.
func New(atoms ...Atom) Guard {
	g := Guard{atoms: append([]Atom(nil), atoms...)}
	g.normalize()

	return g
}

func (g *Guard) normalize() {
	sort.SliceStable(g.atoms, func(i, j int) bool { return g.atoms[i].cmp(g.atoms[j]) < 0 })

	out := g.atoms[:0]

	for _, a := range g.atoms {
		if len(out) > 0 && out[len(out)-1].Equals(a) {
			continue
		}

		out = append(out, a)
	}

	g.atoms = out
}

// Atoms returns the atoms of g in canonical order. The caller must not
// mutate the returned slice.
func (g Guard) Atoms() []Atom {
	return g.atoms
}

// Len returns the number of atoms in g.
func (g Guard) Len() int {
	return len(g.atoms)
}

// Add returns the guard g ∧ a.
func (g Guard) Add(a Atom) Guard {
	ng := New(append(append([]Atom(nil), g.atoms...), a)...)
	return ng
}

// And returns the conjunction of g and o.
func (g Guard) And(o Guard) Guard {
	merged := make([]Atom, 0, len(g.atoms)+len(o.atoms))
	merged = append(merged, g.atoms...)
	merged = append(merged, o.atoms...)

	return New(merged...)
}

// Without returns g with every atom for which keep returns false removed.
func (g Guard) Without(keep func(Atom) bool) Guard {
	out := make([]Atom, 0, len(g.atoms))

	for _, a := range g.atoms {
		if keep(a) {
			out = append(out, a)
		}
	}

	return Guard{atoms: out}
}

// Map returns a new guard obtained by applying fn to every atom's
// expression, keeping the relation unchanged. Used by substitution
// (chaining, acceleration) to push a rule's update/closed form through its
// successor's guard.
func (g Guard) Map(fn func(expr.Expr) (expr.Expr, bool)) (Guard, bool) {
	out := make([]Atom, len(g.atoms))

	for i, a := range g.atoms {
		e, ok := fn(a.Expr)
		if !ok {
			return Guard{}, false
		}

		out[i] = Atom{e, a.Relation}
	}

	return New(out...), true
}

// Variables returns the deduplicated, sorted free variables mentioned
// anywhere in g.
func (g Guard) Variables() []variable.ID {
	seen := map[variable.ID]bool{}

	var out []variable.ID

	for _, a := range g.atoms {
		for _, v := range a.Expr.Variables() {
			if !seen[v] {
				seen[v] = true

				out = append(out, v)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// String renders g as a conjunction, e.g. "x >= 0 && y > 0".
func (g Guard) String(names func(variable.ID) string) string {
	if len(g.atoms) == 0 {
		return "true"
	}

	var buf bytes.Buffer

	for i, a := range g.atoms {
		if i != 0 {
			buf.WriteString(" && ")
		}

		buf.WriteString(a.Expr.String(names))
		buf.WriteString(" ")
		buf.WriteString(a.Relation.String())
		buf.WriteString(" 0")
	}

	return buf.String()
}
