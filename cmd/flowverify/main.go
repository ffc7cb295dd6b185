// Command flowverify is the CLI front-end exercising the whole
// pipeline (compile, validate, simulate, project) from a JSON
// IntentSpec or a GitHub Actions workflow YAML file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "compile":
		err = runCompile(args)
	case "validate":
		err = runValidate(args)
	case "simulate":
		err = runSimulate(args)
	case "project":
		err = runProject(args)
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Println("flowverify version 0.1.0")
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`flowverify - workflow verification and simulation core

Usage:
  flowverify <command> [options]

Commands:
  compile   <spec.json|workflow.yml|net.net.json>   compile/load a Petri net and print a summary
  validate  <spec.json|workflow.yml|net.net.json>   run the structural check and the four exploratory checks
  simulate  <spec.json|workflow.yml|net.net.json>   run the token simulator and print the resulting trace
  project   <spec.json|workflow.yml|net.net.json>   project the compiled net onto a transition DAG
  version                                           print the version
  help                                               show this message

A "*.net.json" path is loaded directly as a fully-built Petri net
(package netjson), bypassing IntentSpec compilation entirely.

Run "flowverify <command> -h" for command-specific options.`)
}
