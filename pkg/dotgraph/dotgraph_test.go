package dotgraph_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/costbound/costbound/pkg/dotgraph"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

func TestWriteRendersLocationsAndRules(t *testing.T) {
	reg := variable.NewRegistry()
	x := reg.Intern("x")

	g := its.New()
	l0 := g.AddLocation("l0")
	l1 := g.AddLocation("l1")
	g.SetInitial(l0)

	g.AddRule(its.Rule{
		From:   l0,
		To:     l1,
		Guard:  guard.New(guard.NewAtom(expr.Var(x), guard.GE)),
		Cost:   expr.ConstInt(1),
		Update: update.Empty,
	})

	var buf bytes.Buffer
	dotgraph.Write(&buf, g, reg.Name)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "digraph its {"))
	require.True(t, strings.Contains(out, "doublecircle"))
	require.True(t, strings.Contains(out, "n0 -> n1"))
}
