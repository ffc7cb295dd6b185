// Package ciyaml bridges a GitHub Actions-shaped workflow YAML file to
// an intent.IntentSpec. It depends on package intent but is
// never imported by it, or by any other core package (petri, compile,
// rules, explore, validate, simulate, dagproj) — keeping parsing
// concerns out of the core data model. ParseError's shape follows a
// plain flag-parsing error convention; line/column tracking for
// 1-based error locations comes from gopkg.in/yaml.v3's yaml.Node.
package ciyaml

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flowverify/core/intent"
)

// ParseError carries a 1-based line number, a message, and an optional
// fix hint — exactly the shape an external front-end parser is expected
// to report so the core can propagate it verbatim.
type ParseError struct {
	Line    int
	Message string
	Hint    string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("ciyaml: line %d: %s (hint: %s)", e.Line, e.Message, e.Hint)
	}
	return fmt.Sprintf("ciyaml: line %d: %s", e.Line, e.Message)
}

type workflowFile struct {
	Name string             `yaml:"name"`
	Jobs map[string]jobNode `yaml:"jobs"`
}

type jobNode struct {
	Needs          yamlStringList `yaml:"needs"`
	If             string         `yaml:"if"`
	TimeoutMinutes int            `yaml:"timeout-minutes"`
	Strategy       struct {
		Matrix map[string][]string `yaml:"matrix"`
	} `yaml:"strategy"`
}

// yamlStringList accepts both a single scalar string and a YAML
// sequence for the "needs" field, matching GitHub Actions' own
// permissiveness on that field.
type yamlStringList []string

func (l *yamlStringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = []string{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	default:
		return fmt.Errorf("ciyaml: needs: unsupported YAML node kind %v", node.Kind)
	}
}

// Parse converts raw GitHub Actions workflow YAML into an
// intent.IntentSpec using the following mapping: jobs -> Action steps;
// needs -> prerequisites; strategy.matrix -> Parallel; if -> Choice
// guard; timeout-minutes -> step timeout in milliseconds (minutes *
// 60000).
func Parse(data []byte) (*intent.IntentSpec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, wrapYAMLError(err)
	}
	if len(root.Content) == 0 {
		return nil, &ParseError{Line: 1, Message: "empty document", Hint: "a workflow file must declare at least one job"}
	}
	doc := root.Content[0]

	var wf workflowFile
	if err := doc.Decode(&wf); err != nil {
		return nil, wrapYAMLError(err)
	}
	if len(wf.Jobs) == 0 {
		return nil, &ParseError{Line: doc.Line, Message: "no jobs declared", Hint: "add a top-level \"jobs:\" map with at least one entry"}
	}

	jobsNode := findMappingValue(doc, "jobs")

	names := make([]string, 0, len(wf.Jobs))
	for name := range wf.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	spec := &intent.IntentSpec{Name: wf.Name}
	if spec.Name == "" {
		spec.Name = "workflow"
	}

	for _, name := range names {
		job := wf.Jobs[name]
		thisJobLine := 1
		if jobsNode != nil {
			if n := findMappingValue(jobsNode, name); n != nil {
				thisJobLine = n.Line
			}
		}
		if job.TimeoutMinutes < 0 {
			return nil, &ParseError{
				Line:    thisJobLine,
				Message: fmt.Sprintf("job %q: timeout-minutes must be >= 0, got %d", name, job.TimeoutMinutes),
				Hint:    "remove the negative timeout or set it to 0 for no timeout",
			}
		}

		// strategy.matrix takes precedence over if: a matrixed job still
		// fans out (Parallel), just with its fork transition gated by the
		// guard below, rather than losing the fan-out to a plain Choice.
		stepType := intent.Action
		switch {
		case len(job.Strategy.Matrix) > 0:
			stepType = intent.Parallel
		case job.If != "":
			stepType = intent.Choice
		}

		step := intent.IntentStep{
			ID:          name,
			Type:        stepType,
			Description: name,
			Needs:       append([]string(nil), job.Needs...),
			Guard:       job.If,
		}
		if job.TimeoutMinutes > 0 {
			step.TimeoutMs = job.TimeoutMinutes * 60000
		}
		spec.Steps = append(spec.Steps, step)
	}

	if err := spec.Validate(); err != nil {
		if ve, ok := err.(*intent.ValidationError); ok {
			return nil, &ParseError{Line: jobLine(jobsNode, wf, ve.StepID), Message: ve.Message, Hint: "check the \"needs\" references and job names for typos"}
		}
		return nil, err
	}
	return spec, nil
}

func jobLine(jobsNode *yaml.Node, wf workflowFile, stepID string) int {
	if jobsNode != nil {
		if n := findMappingValue(jobsNode, stepID); n != nil {
			return n.Line
		}
	}
	return 1
}

// findMappingValue returns the value node paired with key inside a
// YAML mapping node, or nil if absent or node is not a mapping.
func findMappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func wrapYAMLError(err error) error {
	if te, ok := err.(*yaml.TypeError); ok && len(te.Errors) > 0 {
		return &ParseError{Line: 1, Message: te.Errors[0]}
	}
	return &ParseError{Line: 1, Message: err.Error(), Hint: "check the YAML is well-formed"}
}
