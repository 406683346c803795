// Package complexity implements the complexity-class lattice used both as
// the syntactic (sound upper-bound) complexity of an expression (spec.md
// §3/§4.B: O(1), O(n^k), O(n^n), Ω(∞)) and as the final RuntimeResult class
// (spec.md §6: {Unknown, Const, Poly(k), Exp, Infty}). The two enumerations
// in spec.md are isomorphic modulo Unknown (which only ever appears as the
// RuntimeResult's initial value, never as an expression's syntactic
// complexity) so this package models them with a single tagged type,
// avoiding a duplicate lattice. Grounded on the design note in spec.md §9:
// "Model with a tagged variant ... and explicit lattice ops; avoid floating
// point."
package complexity

import "fmt"

// Kind distinguishes the members of the complexity lattice.
type Kind uint8

const (
	// Unknown is the bottom element used only before any bound has been
	// established (spec.md §3 RuntimeResult "Initial value is Unknown").
	Unknown Kind = iota
	// Const is O(1).
	Const
	// Poly is O(n^k) for some k carried in Class.degree.
	Poly
	// Exp is O(2^n) / exponential growth.
	Exp
	// Infty is Ω(∞): unboundedly growing, no finite witness suffices.
	Infty
)

// Class is one member of the complexity lattice, e.g. Unknown, Const,
// Poly(2), Exp or Infty.
type Class struct {
	kind   Kind
	degree uint32
}

// ClassUnknown is the bottom element.
var ClassUnknown = Class{kind: Unknown}

// ClassConst is O(1).
var ClassConst = Class{kind: Const}

// ClassExp is O(2^n).
var ClassExp = Class{kind: Exp}

// ClassInfty is Ω(∞), the top element.
var ClassInfty = Class{kind: Infty}

// ClassPoly constructs O(n^degree). degree 0 is equivalent to Const.
func ClassPoly(degree uint32) Class {
	if degree == 0 {
		return ClassConst
	}

	return Class{kind: Poly, degree: degree}
}

// Kind returns the tag of this class.
func (c Class) Kind() Kind {
	return c.kind
}

// Degree returns k for Poly(k); zero for every other kind.
func (c Class) Degree() uint32 {
	if c.kind == Poly {
		return c.degree
	}

	return 0
}

// rank orders the lattice linearly: Unknown < Const < Poly(1) < Poly(2) <
// ... < Exp < Infty, per spec.md §6's "ordered set".
func (c Class) rank() uint64 {
	switch c.kind {
	case Unknown:
		return 0
	case Const:
		return 1
	case Poly:
		return 1 + uint64(c.degree)
	case Exp:
		return 1<<32 + 1
	case Infty:
		return 1<<32 + 2
	default:
		return 0
	}
}

// Less reports whether c is strictly below o in the complexity lattice.
func (c Class) Less(o Class) bool {
	return c.rank() < o.rank()
}

// LessEq reports whether c is at or below o in the complexity lattice.
func (c Class) LessEq(o Class) bool {
	return c.rank() <= o.rank()
}

// Equal reports whether c and o denote the same class.
func (c Class) Equal(o Class) bool {
	return c.kind == o.kind && (c.kind != Poly || c.degree == o.degree)
}

// Join returns the least upper bound of c and o (the larger of the two).
func (c Class) Join(o Class) Class {
	if c.Less(o) {
		return o
	}

	return c
}

// String renders the class as in spec.md §6: Unknown, O(1), O(n^k), O(2^n),
// Infty.
func (c Class) String() string {
	switch c.kind {
	case Unknown:
		return "Unknown"
	case Const:
		return "O(1)"
	case Poly:
		return fmt.Sprintf("O(n^%d)", c.degree)
	case Exp:
		return "O(2^n)"
	case Infty:
		return "Infty"
	default:
		return "?"
	}
}
