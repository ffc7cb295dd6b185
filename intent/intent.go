// Package intent defines IntentSpec, the front-end-agnostic declarative
// workflow description that is the input to the grammar compiler
// (package compile). Its shape is narrowed to the fields the
// compiler's fragment table actually consumes: steps, dependencies,
// and per-step parallel/choice/guard metadata.
package intent

import "fmt"

// StepType tags the canonical Petri-net fragment a step expands to.
type StepType string

// Recognized step types.
const (
	Action              StepType = "Action"
	Sequence            StepType = "Sequence"
	Choice              StepType = "Choice"
	Parallel            StepType = "Parallel"
	Sync                StepType = "Sync"
	NestedConditional   StepType = "NestedConditional"
	Loop                StepType = "Loop"
	EventTrigger        StepType = "EventTrigger"
	ErrorHandler        StepType = "ErrorHandler"
	Compensation        StepType = "Compensation"
	CircuitBreaker      StepType = "CircuitBreaker"
	FanOutFanIn         StepType = "FanOutFanIn"
	PipelineStage       StepType = "PipelineStage"
	ResourceConstrained StepType = "ResourceConstrained"
)

// JoinDiscipline annotates a Sync or FanOutFanIn step's join semantics.
// It is recorded as "joinDiscipline" metadata on the join (Sync) or
// fork (FanOutFanIn) transition; firing always follows All (AND-join)
// semantics, and no rule reads the annotation.
type JoinDiscipline string

const (
	JoinAll  JoinDiscipline = "all"
	JoinAny  JoinDiscipline = "any"
	JoinNOfM JoinDiscipline = "n_of_m"
)

// FailureAction annotates error-handling steps. An ErrorHandler step
// with a RetryPolicy records its OnExhausted value as "onFailure"
// metadata on its catch transition; no rule reads it.
type FailureAction string

const (
	FailureRetry      FailureAction = "retry"
	FailureSkip       FailureAction = "skip"
	FailureAbort      FailureAction = "abort"
	FailureEscalate   FailureAction = "escalate"
	FailureCompensate FailureAction = "compensate"
)

// RetryPolicy describes how many times and with what action an
// ErrorHandler/Compensation step should be retried.
type RetryPolicy struct {
	MaxAttempts int
	OnExhausted FailureAction
}

// IntentStep is one node of an IntentSpec.
type IntentStep struct {
	ID                  string
	Type                StepType
	Description         string
	Needs               []string
	Guard               string
	LoopCondition       string
	TimeoutMs           int
	RetryPolicy         *RetryPolicy
	CompensationActions []string
	ResourceConstraints map[string]int // resource name -> capacity
	JoinDiscipline      JoinDiscipline // only meaningful for Sync/FanOutFanIn
	Meta                map[string]string
}

// IntentSpec is a named, ordered list of IntentStep records.
type IntentSpec struct {
	Name  string
	Steps []IntentStep
}

// ByID indexes steps by id for O(1) lookup.
func (s IntentSpec) ByID() map[string]IntentStep {
	out := make(map[string]IntentStep, len(s.Steps))
	for _, st := range s.Steps {
		out[st.ID] = st
	}
	return out
}

// ValidationError reports a structural problem with an IntentSpec
// itself, detected before compilation ever runs.
type ValidationError struct {
	StepID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.StepID == "" {
		return e.Message
	}
	return fmt.Sprintf("intent: step %q: %s", e.StepID, e.Message)
}

// Validate checks the declared invariants: step ids unique and
// non-empty, every `needs` entry refers to a declared step, the
// dependency graph is acyclic, and step-type-specific required fields
// are present (e.g. Loop needs a LoopCondition).
func (s IntentSpec) Validate() error {
	seen := make(map[string]bool, len(s.Steps))
	for _, st := range s.Steps {
		if st.ID == "" {
			return &ValidationError{Message: "step id must not be empty"}
		}
		if seen[st.ID] {
			return &ValidationError{StepID: st.ID, Message: "duplicate step id"}
		}
		seen[st.ID] = true
	}
	byID := s.ByID()
	for _, st := range s.Steps {
		for _, dep := range st.Needs {
			if _, ok := byID[dep]; !ok {
				return &ValidationError{StepID: st.ID, Message: fmt.Sprintf("needs unknown step %q", dep)}
			}
		}
		if st.Type == Loop && st.LoopCondition == "" {
			return &ValidationError{StepID: st.ID, Message: "Loop step must declare a loop condition"}
		}
	}
	if cyc := findCycle(s); cyc != nil {
		return &ValidationError{StepID: cyc[0], Message: fmt.Sprintf("cycle detected in needs graph: %v", cyc)}
	}
	return nil
}

// findCycle runs a DFS over the needs graph and returns an offending
// cycle (as a slice of step ids) if one exists, else nil.
func findCycle(s IntentSpec) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(s.Steps))
	byID := s.ByID()
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, dep := range byID[id].Needs {
			switch color[dep] {
			case gray:
				cycle = append(append([]string(nil), path...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, st := range s.Steps {
		if color[st.ID] == white {
			if visit(st.ID) {
				return cycle
			}
		}
	}
	return nil
}
