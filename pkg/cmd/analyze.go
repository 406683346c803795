package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/costbound/costbound/pkg/config"
	"github.com/costbound/costbound/pkg/dotgraph"
	"github.com/costbound/costbound/pkg/driver"
	"github.com/costbound/costbound/pkg/koat"
	"github.com/costbound/costbound/pkg/oracle"
	"github.com/costbound/costbound/pkg/proof"
	"github.com/costbound/costbound/pkg/variable"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] file.koat",
	Short: "Derive an asymptotic lower bound on the worst-case cost of an ITS.",
	Long: `Analyze reads an Integer Transition System in KoAT format and runs the
simplification driver (metering, acceleration, chaining, pruning) until it
collapses to a single bound on the cost reachable from the start location,
or the time budget runs out.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}

		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}

		cfg := analyzeConfig{
			preprocess:    true,
			eliminateCost: true,
		}

		if path := GetString(cmd, "config"); path != "" {
			fileCfg, err := config.Load(path)
			if err != nil {
				fmt.Println(err)
				os.Exit(2)
			}

			cfg.applyFile(fileCfg)
		}

		cfg.applyFlags(cmd)

		runAnalyze(args[0], cfg)
	},
}

// analyzeConfig collects the resolved preprocess/eliminate-cost toggles
// and timeouts from the optional --config file and the flags, flags
// always winning (spec.md §6 "flags always override file values").
type analyzeConfig struct {
	preprocess      bool
	eliminateCost   bool
	softTimeoutSecs uint
	hardTimeoutSecs uint
	printSimplified bool
	dotPath         string
}

func (c *analyzeConfig) applyFile(fileCfg config.Config) {
	if fileCfg.Preprocess != nil {
		c.preprocess = *fileCfg.Preprocess
	}

	if fileCfg.EliminateCost != nil {
		c.eliminateCost = *fileCfg.EliminateCost
	}

	if fileCfg.SoftTimeoutSeconds != nil {
		c.softTimeoutSecs = *fileCfg.SoftTimeoutSeconds
	}

	if fileCfg.HardTimeoutSeconds != nil {
		c.hardTimeoutSecs = *fileCfg.HardTimeoutSeconds
	}
}

func (c *analyzeConfig) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("preprocess") {
		c.preprocess = GetFlag(cmd, "preprocess")
	}

	if flags.Changed("eliminate-cost") {
		c.eliminateCost = GetFlag(cmd, "eliminate-cost")
	}

	if flags.Changed("soft-timeout") {
		c.softTimeoutSecs = GetUint(cmd, "soft-timeout")
	}

	if flags.Changed("hard-timeout") {
		c.hardTimeoutSecs = GetUint(cmd, "hard-timeout")
	}

	c.printSimplified = GetFlag(cmd, "print-simplified")
	c.dotPath = GetString(cmd, "dot")
}

func runAnalyze(path string, cfg analyzeConfig) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("%s: %s\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	reg := variable.NewRegistry()

	g, err := koat.Parse(reg, f)
	if err != nil {
		fmt.Printf("%s: %s\n", path, err)
		os.Exit(1)
	}

	driverCfg := driver.Config{Preprocess: cfg.preprocess, EliminateCost: cfg.eliminateCost}
	budget := driver.NewBudget(0,
		time.Duration(cfg.softTimeoutSecs)*time.Second,
		time.Duration(cfg.hardTimeoutSecs)*time.Second)

	var fm oracle.FourierMotzkin

	var cf oracle.ClosedForm

	sink := proof.NewText(os.Stdout)

	result := driver.Run(context.Background(), reg, fm, cf, g, driverCfg, budget, sink)

	fmt.Printf("runtime bound: %s\n", result.Complexity)

	if cfg.printSimplified {
		if err := koat.Emit(os.Stdout, reg, g); err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
	}

	if cfg.dotPath != "" {
		dotFile, err := os.Create(cfg.dotPath)
		if err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
		defer dotFile.Close()

		dotgraph.Write(dotFile, g, reg.Name)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Bool("preprocess", true, "run preprocessing simplification before the main loop")
	analyzeCmd.Flags().Bool("eliminate-cost", true, "attempt to remove cost entirely from rules during preprocessing")
	analyzeCmd.Flags().Bool("print-simplified", false, "re-emit the simplified ITS in KoAT format")
	analyzeCmd.Flags().String("dot", "", "write the simplified ITS as a Graphviz dot file to this path")
	analyzeCmd.Flags().Uint("soft-timeout", 0, "soft simplification budget in seconds (0 = no limit)")
	analyzeCmd.Flags().Uint("hard-timeout", 0, "hard wall-clock budget in seconds (0 = no limit)")
	analyzeCmd.Flags().String("config", "", "TOML config file overlaying the flags above")
}
