package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/flowverify/core/dagproj"
)

func runProject(args []string) error {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "output the projected DAG as JSON")
	outputFile := fs.String("output", "", "write output to file instead of stdout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flowverify project <spec.json|workflow.yml|net.net.json> [options]\n\nOptions:\n")
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

	dag, err := dagproj.Project(net)
	if err != nil {
		return fmt.Errorf("project: %w", err)
	}

	if *outputJSON {
		out, err := json.MarshalIndent(dag, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(*outputFile, out)
	}

	for _, n := range dag.Nodes {
		rootTag := ""
		if n.IsRoot {
			rootTag = " (root)"
		}
		fmt.Printf("%s%s\n", n.TransitionID, rootTag)
	}
	for _, e := range dag.Edges {
		fmt.Printf("  %s -> %s (via %v)\n", e.From, e.To, e.BridgedByPlace)
	}
	return nil
}
