// Package dotgraph implements the minimal Graphviz emitter of spec.md §6
// ("the dot emitter is an out-of-scope collaborator"): a thin, read-only
// rendering of an its.Graph for the `--dot` CLI flag, deliberately not a
// general-purpose graph-layout library.
package dotgraph

import (
	"fmt"
	"io"

	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/variable"
)

// Write renders g as a Graphviz digraph to w. names is used to print
// variables in guard/cost/update labels.
func Write(w io.Writer, g *its.Graph, names func(variable.ID) string) {
	fmt.Fprintln(w, "digraph its {")
	fmt.Fprintln(w, "  rankdir=LR;")

	for loc := its.LocationID(0); loc < its.LocationID(g.NumLocations()); loc++ {
		shape := "ellipse"
		if initial, ok := g.Initial(); ok && initial == loc {
			shape = "doublecircle"
		}

		fmt.Fprintf(w, "  n%d [label=%q shape=%s];\n", loc, g.LocationName(loc), shape)
	}

	for _, rid := range g.AllRuleIDs() {
		r := g.Rule(rid)
		label := fmt.Sprintf("%s | cost %s | %s", r.Guard.String(names), r.Cost.String(names), r.Update.String(names))
		fmt.Fprintf(w, "  n%d -> n%d [label=%q];\n", r.From, r.To, label)
	}

	fmt.Fprintln(w, "}")
}
