package koat_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/costbound/costbound/pkg/complexity"
	"github.com/costbound/costbound/pkg/driver"
	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/koat"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/proof"
	"github.com/costbound/costbound/pkg/variable"
	"github.com/stretchr/testify/require"
)

// TestParseSingleCounter parses spec.md §8's S1 scenario and checks the
// resulting graph structure directly (one location, one self-loop rule
// with the expected guard/update shape).
func TestParseSingleCounter(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -> l0(x-1) [x>0]
)
`

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 1, g.NumLocations())

	rules := g.AllRuleIDs()
	require.Len(t, rules, 1)

	r := g.Rule(rules[0])
	require.Equal(t, r.From, r.To)

	x := reg.Intern("x")
	require.True(t, r.Cost.Equals(expr.ConstInt(1)))
	require.Equal(t, x, r.Update.Variables()[0])
	require.True(t, r.Update.Get(x).Equals(expr.Var(x).Sub(expr.ConstInt(1))))
}

// TestParseRejectsDivision checks spec.md §6/§7's "division is rejected"
// fatal-parse rule.
func TestParseRejectsDivision(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -> l0(x/2) [x>0]
)
`

	reg := variable.NewRegistry()

	_, err := koat.Parse(reg, strings.NewReader(src))
	require.Error(t, err)

	var perr *koat.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 5, perr.Line)
}

// TestParseMalformedDeclarationOrder checks that an out-of-order
// declaration is a fatal, line-tagged error.
func TestParseMalformedDeclarationOrder(t *testing.T) {
	const src = `(VAR x)
(GOAL COMPLEXITY)
`

	reg := variable.NewRegistry()

	_, err := koat.Parse(reg, strings.NewReader(src))
	require.Error(t, err)

	var perr *koat.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 1, perr.Line)
}

// TestParseAndRunS4BranchingWithoutProgress covers spec.md §8's S4:
// two rules out of the initial location with constant cost and
// together-unsatisfiable guards collapse to Const.
func TestParseAndRunS4BranchingWithoutProgress(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -> l1(x) [x>0]
  l0(x) -> l2(x) [x<=0]
)
`

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, strings.NewReader(src))
	require.NoError(t, err)

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, fm, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)
	require.Equal(t, complexity.Const, result.Complexity.Kind())
}

// TestParseAndRunS3Exponential covers spec.md §8's S3: a rule whose cost
// is an exponential term in an unbounded variable classifies as Exp.
func TestParseAndRunS3Exponential(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -{ 2^x }> l1(x) [x>0]
)
`

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, strings.NewReader(src))
	require.NoError(t, err)

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, fm, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)
	require.Equal(t, complexity.Exp, result.Complexity.Kind())
}

// TestParseRuleTempCostIsInfinite covers spec.md §8's S5: a cost given
// directly as an identifier with no binding on the rule's own left-hand
// side has no defining recurrence, so it parses as the distinguished
// INF cost rather than an ordinary polynomial term.
func TestParseRuleTempCostIsInfinite(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -{ y }> l1(x)
)
`

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, strings.NewReader(src))
	require.NoError(t, err)

	rules := g.AllRuleIDs()
	require.Len(t, rules, 1)

	r := g.Rule(rules[0])
	require.True(t, r.Cost.Equals(expr.Inf))

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, fm, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)
	require.Equal(t, complexity.Infty, result.Complexity.Kind())
}

// TestParseAndRunS6TreePath covers spec.md §8's S6: a loop-free tree of
// unit-cost rules classifies as Const. Leaf pruning removes every rule of
// the tree, so the result is the Const fallback for an input graph that had
// rules, whose witness cost is 1.
func TestParseAndRunS6TreePath(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -> l1(x)
  l1(x) -> l2(x)
  l1(x) -> l3(x)
)
`

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 4, g.NumLocations())
	require.Len(t, g.AllRuleIDs(), 3)

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	result := driver.Run(context.Background(), reg, fm, cf, g, driver.DefaultConfig, driver.Budget{}, proof.Discard)
	require.Equal(t, complexity.Const, result.Complexity.Kind())
}

// TestEmitRoundTripsParseable checks that Emit's output is itself valid
// KoAT that Parse accepts.
func TestEmitRoundTripsParseable(t *testing.T) {
	const src = `(GOAL COMPLEXITY)
(STARTTERM (FUNCTIONSYMBOLS l0))
(VAR x)
(RULES
  l0(x) -> l1(x-1) [x>0]
)
`

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, strings.NewReader(src))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, koat.Emit(&buf, reg, g))

	reg2 := variable.NewRegistry()
	_, err = koat.Parse(reg2, strings.NewReader(buf.String()))
	require.NoError(t, err)
}
