package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/flowverify/core/logging"
	"github.com/flowverify/core/simulate"
)

func runSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "output the simulation result as JSON")
	outputFile := fs.String("output", "", "write output to file instead of stdout")
	seed := fs.Int64("seed", 0, "deterministic mode seed (0 = time-derived)")
	maxSteps := fs.Int("max-steps", 1000, "maximum steps before MaxStepsReached")
	interactive := fs.Bool("interactive", false, "use Interactive mode (defaults selection to the first enabled id)")
	verbose := fs.Bool("verbose", false, "log every fired transition to stderr")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flowverify simulate <spec.json|workflow.yml|net.net.json> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("spec file required")
	}

	net, err := loadNet(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg := simulate.DefaultConfig(*seed)
	cfg.MaxSteps = *maxSteps
	cfg.Verbose = *verbose
	if *interactive {
		cfg.Mode = simulate.Interactive
	}
	if *verbose {
		cfg.Logger = logging.New(os.Stderr, logging.DebugLevel)
	}

	result := simulate.New(net, cfg, nil).Run(false)

	if *outputJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(*outputFile, out)
	}

	fmt.Printf("final phase: %s (steps: %d, seed: %d)\n", result.FinalPhase, result.StepsExecuted, result.Seed)
	fmt.Printf("final marking: %s\n", result.FinalMarking)
	for _, e := range result.Trace {
		if e.Type == "TransitionFired" {
			fmt.Printf("  [%d] fired %s: %s -> %s\n", e.Seq, e.Transition, e.MarkingBefore, e.MarkingAfter)
		}
	}
	return nil
}
