// Package variable implements the interning registry for program and
// temporary variables used throughout an Integer Transition System.
package variable

import "fmt"

// ID uniquely identifies an interned variable. Ids are never recycled: once
// minted, an id remains valid (and its name resolvable) for the lifetime of
// the registry, even after every rule referencing it has been removed.
type ID uint64

// Kind distinguishes program variables (bound by the initial location's
// signature) from temporary variables (minted during acceleration and
// chaining, universally/existentially quantified on the rule introducing
// them).
type Kind uint8

const (
	// Program identifies a variable bound by the start location's signature.
	Program Kind = iota
	// Temporary identifies a freshly minted variable local to a rule.
	Temporary
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == Temporary {
		return "temp"
	}

	return "program"
}

type entry struct {
	name string
	kind Kind
}

// Registry interns variable names to stable ids, and mints fresh
// (disambiguated) names for temporaries and other freshly introduced
// variables. A Registry is never reset: locations, rules and variables are
// monotone-growing for the lifetime of an analysis (spec.md §3 Lifecycle).
type Registry struct {
	entries []entry
	byName  map[string]ID
}

// NewRegistry constructs an empty variable registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ID)}
}

// Intern returns the id for a given variable name, creating a new program
// variable if the name has not been seen before.
func (r *Registry) Intern(name string) ID {
	if id, ok := r.byName[name]; ok {
		return id
	}

	return r.add(name, Program)
}

// Fresh mints a new variable whose base name is disambiguated (by appending
// "_k" for increasing k) until it no longer clashes with any existing
// variable name, per spec.md §4.A.
func (r *Registry) Fresh(basename string, temporary bool) ID {
	name := r.freshName(basename)

	kind := Program
	if temporary {
		kind = Temporary
	}

	return r.add(name, kind)
}

func (r *Registry) freshName(basename string) string {
	if _, used := r.byName[basename]; !used {
		return basename
	}

	for k := 1; ; k++ {
		candidate := fmt.Sprintf("%s_%d", basename, k)
		if _, used := r.byName[candidate]; !used {
			return candidate
		}
	}
}

func (r *Registry) add(name string, kind Kind) ID {
	id := ID(len(r.entries))
	r.entries = append(r.entries, entry{name, kind})
	r.byName[name] = id

	return id
}

// IsTemp reports whether id was minted as a temporary variable.
func (r *Registry) IsTemp(id ID) bool {
	return r.entries[id].kind == Temporary
}

// Name returns the (unique) interned name of id.
func (r *Registry) Name(id ID) string {
	return r.entries[id].name
}

// Kind returns whether id is a program or temporary variable.
func (r *Registry) Kind(id ID) Kind {
	return r.entries[id].kind
}

// All returns every variable id minted so far, in id (creation) order.
func (r *Registry) All() []ID {
	ids := make([]ID, len(r.entries))
	for i := range r.entries {
		ids[i] = ID(i)
	}

	return ids
}

// Len returns the number of interned variables.
func (r *Registry) Len() int {
	return len(r.entries)
}
