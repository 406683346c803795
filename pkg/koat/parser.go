// Package koat implements the textual KoAT input/output format of
// spec.md §6: the four ordered top-level declarations, -{ cost }>/->
// rules, [ ... ]/:|: guard syntax, variable escaping, and the
// re-emission of a simplified its.Graph back to the same notation.
package koat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/costbound/costbound/pkg/expr"
	"github.com/costbound/costbound/pkg/guard"
	"github.com/costbound/costbound/pkg/its"
	"github.com/costbound/costbound/pkg/update"
	"github.com/costbound/costbound/pkg/variable"
)

// ParseError is a fatal, line-tagged parse failure (spec.md §7 "Input
// malformed").
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func errf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

type locInfo struct {
	id   its.LocationID
	vars []variable.ID
}

type parser struct {
	reg *variable.Registry
	g   *its.Graph

	locations map[string]*locInfo

	startSymbol string // "" means CONSTRUCTOR-BASED
	sawAnyLHS   bool
	initialSet  bool
}

// Parse reads a KoAT-format program from r, interning its variables into
// reg and building an its.Graph.
func Parse(reg *variable.Registry, r io.Reader) (*its.Graph, error) {
	p := &parser{
		reg:       reg,
		g:         its.New(),
		locations: map[string]*locInfo{},
	}

	const (
		seekGoal = iota
		seekStartterm
		seekVar
		seekRules
		inRules
		done
	)

	state := seekGoal

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0

scanLoop:
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}

		switch state {
		case seekGoal:
			if !strings.HasPrefix(line, "(GOAL") {
				return nil, errf(lineNo, "expected (GOAL COMPLEXITY), got %q", line)
			}

			state = seekStartterm
		case seekStartterm:
			if !strings.HasPrefix(line, "(STARTTERM") {
				return nil, errf(lineNo, "expected (STARTTERM ...), got %q", line)
			}

			if err := p.parseStartterm(lineNo, line); err != nil {
				return nil, err
			}

			state = seekVar
		case seekVar:
			if !strings.HasPrefix(line, "(VAR") {
				return nil, errf(lineNo, "expected (VAR ...), got %q", line)
			}

			if err := p.parseVar(lineNo, line); err != nil {
				return nil, err
			}

			state = seekRules
		case seekRules:
			if !strings.HasPrefix(line, "(RULES") {
				return nil, errf(lineNo, "expected (RULES, got %q", line)
			}

			line = strings.TrimSpace(strings.TrimPrefix(line, "(RULES"))
			state = inRules

			if line == "" {
				continue
			}

			fallthrough
		case inRules:
			open, closeCount := strings.Count(line, "("), strings.Count(line, ")")

			switch net := open - closeCount; {
			case net == 0:
				if err := p.parseRuleLine(lineNo, line); err != nil {
					return nil, err
				}
			case net == -1:
				rest := strings.TrimSpace(strings.TrimSuffix(line, ")"))
				if rest != "" {
					if err := p.parseRuleLine(lineNo, rest); err != nil {
						return nil, err
					}
				}

				state = done

				break scanLoop
			default:
				return nil, errf(lineNo, "unbalanced parentheses: %q", line)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if state != done {
		return nil, errf(lineNo, "unexpected end of input while parsing (RULES")
	}

	return p.g, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}

	return line
}

func (p *parser) parseStartterm(line int, text string) error {
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "(STARTTERM"), ")")
	inner = strings.TrimSpace(inner)

	if strings.HasPrefix(inner, "CONSTRUCTOR-BASED") {
		p.startSymbol = ""
		return nil
	}

	inner = strings.TrimPrefix(inner, "(FUNCTIONSYMBOLS")
	inner = strings.TrimSuffix(inner, ")")
	inner = strings.TrimSpace(inner)

	if inner == "" {
		return errf(line, "(STARTTERM (FUNCTIONSYMBOLS f)) names no function symbol")
	}

	fields := strings.Fields(inner)
	p.startSymbol = fields[0]

	return nil
}

func (p *parser) parseVar(line int, text string) error {
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "(VAR"), ")")

	for _, name := range strings.Fields(inner) {
		p.reg.Intern(escapeVarName(name))
	}

	return nil
}

// parseRuleLine parses one "LHS -> RHS [GUARD]" or "LHS -{ cost }> RHS
// [GUARD]" line.
func (p *parser) parseRuleLine(line int, text string) error {
	if hasUnescapedDivision(text) {
		return errf(line, "division is not supported: %q", text)
	}

	lhsText, rhsAndGuard, costText, hasCost, err := splitRule(line, text)
	if err != nil {
		return err
	}

	rhsText, guardText, guardStyle := splitGuard(rhsAndGuard)

	lhsName, lhsArgs, err := parseTermHead(line, lhsText)
	if err != nil {
		return err
	}

	lhsNames := make(map[string]variable.ID, len(lhsArgs))
	lhsVars := make([]variable.ID, len(lhsArgs))

	for i, arg := range lhsArgs {
		if !isIdentifier(arg) {
			return errf(line, "left-hand side argument %q is not a plain variable", arg)
		}

		esc := escapeVarName(arg)
		id := p.reg.Intern(esc)
		lhsNames[esc] = id
		lhsVars[i] = id
	}

	from := p.resolveLocation(lhsName, lhsVars, true)

	ruleTemps := map[string]variable.ID{}

	resolve := func(raw string) variable.ID {
		esc := escapeVarName(raw)
		if id, ok := lhsNames[esc]; ok {
			return id
		}

		if id, ok := ruleTemps[esc]; ok {
			return id
		}

		id := p.reg.Fresh(esc, true)
		ruleTemps[esc] = id

		return id
	}

	var costExpr expr.Expr

	if hasCost {
		costExpr, err = parseExprString(line, costText, resolve)
		if err != nil {
			return err
		}

		if referencesRuleTemp(costExpr, ruleTemps) {
			// spec.md §8 S5: a cost expressed directly in terms of a
			// temporary variable unbound by the rule's own left-hand side
			// has no defining recurrence and no upper bound at all - not
			// merely "large", genuinely unbounded - so it is the
			// distinguished INF cost rather than an ordinary polynomial
			// term in that variable.
			costExpr = expr.Inf
		}
	} else {
		costExpr = expr.ConstInt(1)
	}

	var ruleGuard guard.Guard

	if guardText != "" {
		ruleGuard, err = parseGuardAtoms(line, guardText, guardStyle, resolve)
		if err != nil {
			return err
		}
	}

	targets, err := splitRHSTerms(rhsText)
	if err != nil {
		return errf(line, "%s", err)
	}

	if len(targets) == 0 {
		return errf(line, "right-hand side has no target term: %q", rhsText)
	}

	for _, t := range targets {
		toName, toArgs, err := parseTermHead(line, t)
		if err != nil {
			return err
		}

		u, err := p.resolveUpdate(line, toName, toArgs, resolve)
		if err != nil {
			return err
		}

		to := p.resolveLocation(toName, u.canonicalVars, false)

		p.g.AddRule(its.Rule{
			From:   from,
			To:     to,
			Guard:  ruleGuard,
			Cost:   costExpr,
			Update: u.update.WithoutIdentities(),
		})
	}

	return nil
}

type resolvedUpdate struct {
	canonicalVars []variable.ID
	update        update.Update
}

// resolveUpdate binds a right-hand-side target term's arguments to the
// target location's canonical variables, establishing that location's
// canonical variable list on its first occurrence (as either an LHS or
// an RHS target) from its argument names when they are plain
// identifiers, synthesizing `name_i` otherwise.
func (p *parser) resolveUpdate(line int, name string, args []string, resolve func(string) variable.ID) (resolvedUpdate, error) {
	info, known := p.locations[name]

	var canonical []variable.ID

	if known {
		if len(info.vars) != len(args) {
			return resolvedUpdate{}, errf(line, "location %q used with %d arguments, previously declared with %d", name, len(args), len(info.vars))
		}

		canonical = info.vars
	} else {
		canonical = make([]variable.ID, len(args))

		for i, a := range args {
			slotName := a
			if !isIdentifier(slotName) {
				slotName = name + "_" + strconv.Itoa(i)
			}

			canonical[i] = p.reg.Intern(escapeVarName(slotName))
		}
	}

	u := update.Update{}

	for i, a := range args {
		e, err := parseExprString(line, a, resolve)
		if err != nil {
			return resolvedUpdate{}, err
		}

		u[canonical[i]] = e
	}

	return resolvedUpdate{canonicalVars: canonical, update: u}, nil
}

// referencesRuleTemp reports whether e mentions any variable minted by
// ruleTemps (a rule-local identifier with no binding on the rule's own
// left-hand side).
func referencesRuleTemp(e expr.Expr, ruleTemps map[string]variable.ID) bool {
	if len(ruleTemps) == 0 {
		return false
	}

	temps := make(map[variable.ID]bool, len(ruleTemps))
	for _, id := range ruleTemps {
		temps[id] = true
	}

	for _, v := range e.Variables() {
		if temps[v] {
			return true
		}
	}

	return false
}

func (p *parser) resolveLocation(name string, vars []variable.ID, isLHS bool) its.LocationID {
	info, ok := p.locations[name]
	if !ok {
		info = &locInfo{id: p.g.AddLocation(name), vars: vars}
		p.locations[name] = info
	}

	if isLHS && !p.initialSet {
		if p.startSymbol == name || (p.startSymbol == "" && !p.sawAnyLHS) {
			p.g.SetInitial(info.id)
			p.initialSet = true
		}
	}

	if isLHS {
		p.sawAnyLHS = true
	}

	return info.id
}

func splitRule(line int, text string) (lhs, rhsAndGuard, cost string, hasCost bool, err error) {
	if idx := strings.Index(text, "-{"); idx >= 0 {
		end := strings.Index(text[idx:], "}>")
		if end < 0 {
			return "", "", "", false, errf(line, "unterminated cost block in %q", text)
		}

		lhs = strings.TrimSpace(text[:idx])
		cost = strings.TrimSpace(text[idx+2 : idx+end])
		rhsAndGuard = strings.TrimSpace(text[idx+end+2:])

		return lhs, rhsAndGuard, cost, true, nil
	}

	if idx := strings.Index(text, "->"); idx >= 0 {
		lhs = strings.TrimSpace(text[:idx])
		rhsAndGuard = strings.TrimSpace(text[idx+2:])

		return lhs, rhsAndGuard, "", false, nil
	}

	return "", "", "", false, errf(line, "missing -> or -{ cost }> separator in %q", text)
}

func splitGuard(rhsAndGuard string) (rhs, guardText, style string) {
	if gi := strings.IndexByte(rhsAndGuard, '['); gi >= 0 {
		gend := strings.LastIndexByte(rhsAndGuard, ']')
		if gend > gi {
			return strings.TrimSpace(rhsAndGuard[:gi]), strings.TrimSpace(rhsAndGuard[gi+1 : gend]), "slash"
		}
	}

	if gi := strings.Index(rhsAndGuard, ":|:"); gi >= 0 {
		return strings.TrimSpace(rhsAndGuard[:gi]), strings.TrimSpace(rhsAndGuard[gi+3:]), "amp"
	}

	return strings.TrimSpace(rhsAndGuard), "", ""
}

func splitRHSTerms(rhs string) ([]string, error) {
	rhs = strings.TrimSpace(rhs)

	if strings.HasPrefix(rhs, "Com_") {
		open := strings.IndexByte(rhs, '(')
		if open < 0 || !strings.HasSuffix(rhs, ")") {
			return nil, fmt.Errorf("malformed Com_N wrapper: %q", rhs)
		}

		inner := rhs[open+1 : len(rhs)-1]

		return splitTopLevel(inner, ','), nil
	}

	return []string{rhs}, nil
}

func parseTermHead(line int, s string) (name string, args []string, err error) {
	s = strings.TrimSpace(s)

	i := strings.IndexByte(s, '(')
	if i < 0 || !strings.HasSuffix(s, ")") {
		return "", nil, errf(line, "expected a function application, got %q", s)
	}

	name = strings.TrimSpace(s[:i])

	inner := strings.TrimSpace(s[i+1 : len(s)-1])
	if inner == "" {
		return name, nil, nil
	}

	parts := splitTopLevel(inner, ',')
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return name, parts, nil
}

// splitTopLevel splits s on sep at parenthesis depth 0.
func splitTopLevel(s string, sep byte) []string {
	var (
		out   []string
		depth int
		start int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}

	out = append(out, s[start:])

	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		case r == '_' && i > 0:
		default:
			return false
		}
	}

	return true
}

// hasUnescapedDivision reports a bare '/' that is not the first character
// of the "/\" guard-conjunction operator (spec.md §6 "division is
// rejected").
func hasUnescapedDivision(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '/' {
			continue
		}

		if i+1 < len(s) && s[i+1] == '\\' {
			i++
			continue
		}

		return true
	}

	return false
}

// escapeVarName applies spec.md §6's variable-name escaping: letters and
// digits are preserved, every other character becomes '_', a leading
// non-letter character is prefixed with 'q', and 'I' is replaced by 'Q'.
func escapeVarName(name string) string {
	var b strings.Builder

	for _, r := range name {
		switch {
		case r == 'I':
			b.WriteRune('Q')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := b.String()
	if out == "" {
		return "q"
	}

	if first := []rune(out)[0]; !unicode.IsLetter(first) {
		out = "q" + out
	}

	return out
}
