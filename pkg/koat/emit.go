package koat

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/variable"
)

// Emit re-serialises g back to KoAT text (spec.md §6, the
// --print-simplified flag). The output is not guaranteed to be
// byte-identical to whatever file g was parsed from — rule count and
// location variable sets may have changed under simplification — but it
// is valid, re-parseable KoAT.
func Emit(w io.Writer, reg *variable.Registry, g *its.Graph) error {
	fmt.Fprintln(w, "(GOAL COMPLEXITY)")

	start := "l_init"
	if initial, ok := g.Initial(); ok {
		start = g.LocationName(initial)
	}

	fmt.Fprintf(w, "(STARTTERM (FUNCTIONSYMBOLS %s))\n", start)

	locVars := collectLocationVars(g)

	fmt.Fprintf(w, "(VAR %s)\n", strings.Join(sortedVarNames(reg, locVars), " "))

	fmt.Fprintln(w, "(RULES")

	names := reg.Name

	for _, rid := range g.AllRuleIDs() {
		r := g.Rule(rid)

		// default cost 1 keeps the plain arrow; any other cost replaces it
		// with the cost block
		arrow := "->"
		if !r.Cost.Equals(expr.ConstInt(1)) {
			arrow = fmt.Sprintf("-{ %s }>", r.Cost.String(names))
		}

		fmt.Fprintf(w, "    %s(%s) %s Com_1(%s(%s))", g.LocationName(r.From), joinVarNames(names, locVars[r.From]), arrow, g.LocationName(r.To), joinUpdateExprs(names, r, locVars[r.To]))

		if guardText := r.Guard.String(names); guardText != "true" {
			fmt.Fprintf(w, " :|: %s", guardText)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, ")")

	return nil
}

func collectLocationVars(g *its.Graph) map[its.LocationID][]variable.ID {
	sets := map[its.LocationID]map[variable.ID]bool{}

	add := func(loc its.LocationID, v variable.ID) {
		if sets[loc] == nil {
			sets[loc] = map[variable.ID]bool{}
		}

		sets[loc][v] = true
	}

	for _, rid := range g.AllRuleIDs() {
		r := g.Rule(rid)

		for _, v := range r.Guard.Variables() {
			add(r.From, v)
		}

		for _, v := range r.Cost.Variables() {
			add(r.From, v)
		}

		for _, v := range r.Update.Uses() {
			add(r.From, v)
		}

		for _, v := range r.Update.Variables() {
			add(r.To, v)
		}
	}

	out := make(map[its.LocationID][]variable.ID, len(sets))

	for loc, set := range sets {
		vars := make([]variable.ID, 0, len(set))
		for v := range set {
			vars = append(vars, v)
		}

		sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
		out[loc] = vars
	}

	return out
}

func sortedVarNames(reg *variable.Registry, locVars map[its.LocationID][]variable.ID) []string {
	seen := map[variable.ID]bool{}

	var ids []variable.ID

	for _, vars := range locVars {
		for _, v := range vars {
			if !seen[v] {
				seen[v] = true

				ids = append(ids, v)
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := make([]string, len(ids))
	for i, v := range ids {
		names[i] = reg.Name(v)
	}

	return names
}

func joinVarNames(names func(variable.ID) string, vars []variable.ID) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = names(v)
	}

	return strings.Join(parts, ",")
}

func joinUpdateExprs(names func(variable.ID) string, r its.Rule, targetVars []variable.ID) string {
	parts := make([]string, len(targetVars))

	for i, v := range targetVars {
		e := r.Update.Get(v)
		parts[i] = e.String(names)
	}

	return strings.Join(parts, ",")
}
