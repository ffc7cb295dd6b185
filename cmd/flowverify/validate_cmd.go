package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/flowverify/core/explore"
	"github.com/flowverify/core/logging"
	"github.com/flowverify/core/validate"
)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "output the validation result as JSON")
	outputFile := fs.String("output", "", "write output to file instead of stdout")
	kBound := fs.Int("kbound", 200, "state-count budget for the exploratory checks")
	maxTimeMs := fs.Int64("max-time-ms", 30_000, "time budget in milliseconds for the exploratory checks")
	checksFlag := fs.String("checks", "", "comma-separated subset of Structural,Deadlock,Reachability,Liveness,Boundedness (default: all)")
	verbose := fs.Bool("verbose", false, "log traversal telemetry to stderr")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flowverify validate <spec.json|workflow.yml|net.net.json> [options]\n\nOptions:\n")
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

	cfg := validate.Config{KBound: *kBound, MaxTimeMs: *maxTimeMs}
	if *verbose {
		cfg.Logger = logging.New(os.Stderr, logging.DebugLevel)
	}
	if *checksFlag != "" {
		for _, name := range strings.Split(*checksFlag, ",") {
			cfg.EnabledChecks = append(cfg.EnabledChecks, explore.Check(strings.TrimSpace(name)))
		}
	}

	result := validate.Validate(net, cfg, nil)

	if *outputJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(*outputFile, out)
	}

	fmt.Printf("overall: %s (states explored: %d, elapsed: %dms)\n", result.OverallStatus, result.StatesExplored, result.ElapsedMs)
	if len(result.Structural.Failures) > 0 {
		fmt.Println("structural failures:")
		for _, f := range result.Structural.Failures {
			fmt.Printf("  - %s\n", f)
		}
	}
	for check, cr := range result.Checks {
		fmt.Printf("%-14s %-20s %s\n", check, cr.Status, cr.Message)
	}
	for _, hint := range result.Hints {
		fmt.Printf("hint: %s\n", hint)
	}
	if result.OverallStatus != validate.Pass {
		os.Exit(1)
	}
	return nil
}
