package proof_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/costbound/costbound/pkg/proof"
	"github.com/stretchr/testify/require"
)

func TestTextRendersSectionsHeadlinesAndLines(t *testing.T) {
	var buf bytes.Buffer

	sink := proof.NewText(&buf)
	sink.Section("acceleration")
	sink.Headline("accelerated self-loop at l0")
	sink.Line("metering function: x")

	out := buf.String()
	require.True(t, strings.Contains(out, "== acceleration =="))
	require.True(t, strings.Contains(out, "accelerated self-loop at l0"))
	require.True(t, strings.Contains(out, "  metering function: x"))
}

func TestDiscardNeverPanics(t *testing.T) {
	proof.Discard.Section("x")
	proof.Discard.Headline("y")
	proof.Discard.Line("z")
}
