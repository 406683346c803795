// Package proof implements the write-only proof-text sink of spec.md §6
// ("additional artifacts ... produced through a write-only sink") and §9's
// design note promoting the source's global proof stream to an explicit
// context argument threaded through the driver.
package proof

import (
	"fmt"
	"io"
)

// Sink receives human-readable proof output as the simplification driver
// runs. Implementations never fail a call; a broken underlying writer is
// the caller's problem, not the engine's (matching spec.md §7: nothing in
// this component is a fatal error path).
type Sink interface {
	// Section starts a new named section of the proof (e.g. one per
	// simplification phase).
	Section(name string)
	// Headline records a one-line summary within the current section.
	Headline(format string, args ...any)
	// Line records a single detail line within the current section,
	// indented beneath the last Headline.
	Line(format string, args ...any)
}

// Discard is the no-op sink, the default when the caller wants no proof
// output.
var Discard Sink = discard{}

type discard struct{}

func (discard) Section(string)          {}
func (discard) Headline(string, ...any) {}
func (discard) Line(string, ...any)     {}

// Text is a plain-text Sink writing to an io.Writer, one section per
// blank-line-delimited block, matching the teacher's own convention of a
// flat append-only proof log (see pkg/cmd's verbose logging style).
type Text struct {
	w io.Writer
}

// NewText constructs a Text sink writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (t *Text) Section(name string) {
	fmt.Fprintf(t.w, "\n== %s ==\n", name)
}

func (t *Text) Headline(format string, args ...any) {
	fmt.Fprintf(t.w, "%s\n", fmt.Sprintf(format, args...))
}

func (t *Text) Line(format string, args ...any) {
	fmt.Fprintf(t.w, "  %s\n", fmt.Sprintf(format, args...))
}
