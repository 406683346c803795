package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/costbound/costbound/pkg/config"
)

func newAnalyzeFlagsForTest() *cobra.Command {
	c := &cobra.Command{}
	c.Flags().Bool("preprocess", true, "")
	c.Flags().Bool("eliminate-cost", true, "")
	c.Flags().Bool("print-simplified", false, "")
	c.Flags().String("dot", "", "")
	c.Flags().Uint("soft-timeout", 0, "")
	c.Flags().Uint("hard-timeout", 0, "")

	return c
}

func boolPtr(b bool) *bool { return &b }
func uintPtr(u uint) *uint { return &u }

// TestAnalyzeConfigFileOnlySetsChangedFields checks that a config file
// leaving a field unset does not disturb analyzeConfig's defaults.
func TestAnalyzeConfigFileOnlySetsChangedFields(t *testing.T) {
	cfg := analyzeConfig{preprocess: true, eliminateCost: true}

	cfg.applyFile(config.Config{SoftTimeoutSeconds: uintPtr(30)})

	require.True(t, cfg.preprocess)
	require.True(t, cfg.eliminateCost)
	require.Equal(t, uint(30), cfg.softTimeoutSecs)
	require.Equal(t, uint(0), cfg.hardTimeoutSecs)
}

// TestAnalyzeConfigFlagsOverrideFile checks spec.md §6's "flags always
// override file values" rule: an explicitly-passed flag wins over
// whatever the config file set, but an unpassed flag leaves the file's
// value (or the built-in default) alone.
func TestAnalyzeConfigFlagsOverrideFile(t *testing.T) {
	cfg := analyzeConfig{preprocess: true, eliminateCost: true}
	cfg.applyFile(config.Config{Preprocess: boolPtr(false), SoftTimeoutSeconds: uintPtr(30)})
	require.False(t, cfg.preprocess)

	cmd := newAnalyzeFlagsForTest()
	require.NoError(t, cmd.Flags().Parse([]string{"--preprocess=true"}))

	cfg.applyFlags(cmd)

	require.True(t, cfg.preprocess)
	require.Equal(t, uint(30), cfg.softTimeoutSecs)
}

// TestAnalyzeConfigDefaultsWithoutFileOrFlags checks that omitting both
// the config file and every flag leaves the built-in defaults in place.
func TestAnalyzeConfigDefaultsWithoutFileOrFlags(t *testing.T) {
	cfg := analyzeConfig{preprocess: true, eliminateCost: true}

	cmd := newAnalyzeFlagsForTest()
	require.NoError(t, cmd.Flags().Parse(nil))

	cfg.applyFlags(cmd)

	require.True(t, cfg.preprocess)
	require.True(t, cfg.eliminateCost)
	require.Equal(t, uint(0), cfg.softTimeoutSecs)
	require.False(t, cfg.printSimplified)
	require.Equal(t, "", cfg.dotPath)
}
