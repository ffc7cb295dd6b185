package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowverify/core/ciyaml"
	"github.com/flowverify/core/compile"
	"github.com/flowverify/core/intent"
	"github.com/flowverify/core/netjson"
	"github.com/flowverify/core/petri"
	"github.com/flowverify/core/rules"
)

// loadSpec reads path and parses it as either a JSON-encoded
// intent.IntentSpec or, for a .yml/.yaml file, a GitHub Actions
// workflow via package ciyaml — the only two producers of an IntentSpec
// this CLI knows about.
func loadSpec(path string) (*intent.IntentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ciyaml.Parse(data)
	default:
		var spec intent.IntentSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		return &spec, nil
	}
}

// buildNet runs the full compile -> rule-engine -> freeze pipeline,
// mirroring package rules.Apply's documented chaining into Freeze.
func buildNet(spec *intent.IntentSpec) (*petri.PetriNet, error) {
	res, err := compile.Compile(*spec)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	b := rules.Apply(res)
	net, err := b.Freeze()
	if err != nil {
		return nil, fmt.Errorf("freeze: %w", err)
	}
	return net, nil
}

// loadNet resolves a subcommand's single positional argument to a
// *petri.PetriNet, honoring the input-side's dual shape: a
// ".net.json" path is parsed directly as a fully-built PetriNet via
// package netjson, bypassing the IntentSpec/compile/rules pipeline
// entirely; anything else goes through loadSpec and buildNet as usual.
func loadNet(path string) (*petri.PetriNet, error) {
	if strings.HasSuffix(strings.ToLower(path), ".net.json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return netjson.FromJSON(data)
	}
	spec, err := loadSpec(path)
	if err != nil {
		return nil, err
	}
	return buildNet(spec)
}

func writeOutput(outputFile string, data []byte) error {
	if outputFile == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(outputFile, data, 0o644)
}
