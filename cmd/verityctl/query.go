package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verityengine/pkg/verity"
)

// runToCompletion compiles and runs irPath's campaign synchronously, for
// the findings/coverage/analytics subcommands that report on a single
// one-shot run rather than polling a long-lived process.
func runToCompletion(irPath string) (*verity.Manager, string, error) {
	mgr := verity.NewManager()
	id, mem, store, err := compileAndRegister(mgr, irPath)
	if err != nil {
		return nil, "", err
	}
	defer store.Close()

	if err := mgr.PhaseTransition(id, verity.PhaseDutLoaded); err != nil {
		return nil, "", err
	}
	if err := mgr.PhaseTransition(id, verity.PhaseRunning); err != nil {
		return nil, "", err
	}
	if err := recordFindingsToMemory(mgr, id, mem, store); err != nil {
		fmt.Printf("warning: failed to persist cross-campaign memory: %v\n", err)
	}
	return mgr, id, nil
}

var findingsCmd = &cobra.Command{
	Use:   "findings <ir-file>",
	Short: "Run a campaign and list its findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, id, err := runToCompletion(args[0])
		if err != nil {
			return err
		}
		findings, err := mgr.Findings(id, 0)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			fmt.Println("no findings")
			return nil
		}
		for _, f := range findings {
			fmt.Printf("#%d [thread %d] %s: %s\n", f.Seqno, f.Thread, f.Signal.Action, f.Signal.Message)
		}
		return nil
	},
}

var coverageCmd = &cobra.Command{
	Use:   "coverage <ir-file>",
	Short: "Run a campaign and report bound-action coverage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, id, err := runToCompletion(args[0])
		if err != nil {
			return err
		}
		cov, err := mgr.Coverage(id)
		if err != nil {
			return err
		}
		for _, action := range cov.Targets {
			state := "pending"
			if cov.Hit[action] {
				state = "hit"
			}
			fmt.Printf("%-30s %s\n", action, state)
		}
		fmt.Printf("\n%d/%d hit, %d unreachable, %.1f%%\n",
			cov.Summary.Hit, len(cov.Targets), cov.Summary.Unreachable, cov.Summary.Percent)
		return nil
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics <ir-file>",
	Short: "Run a campaign and print its summary analytics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, id, err := runToCompletion(args[0])
		if err != nil {
			return err
		}
		an, err := mgr.Analytics(id)
		if err != nil {
			return err
		}
		fmt.Printf("state:                    %s\n", an.State)
		fmt.Printf("steps:                    %d\n", an.Steps)
		fmt.Printf("findings:                 %d\n", an.Findings)
		fmt.Printf("peak coverage:            %.1f%%\n", an.PeakCoverage)
		fmt.Printf("elapsed:                  %s\n", an.Elapsed)
		fmt.Printf("finding rate / 1k steps:  %.3f\n", an.FindingRatePer1000Steps)
		fmt.Printf("coverage velocity:        %.3f/s\n", an.CoverageVelocity)
		fmt.Printf("adaptation effectiveness: %.3f\n", an.AdaptationEffectiveness)
		fmt.Printf("epochs completed:         %d\n", an.EpochsCompleted)
		return nil
	},
}
