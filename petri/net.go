// Package petri implements the core Petri net data structures: places,
// transitions, weighted arcs, markings, and the firing rule. A frozen
// PetriNet is immutable and safe to share across goroutines; a Builder
// is the only mutable entity in the package.
package petri

import (
	"fmt"
	"sort"
)

// Place is a token container identified by a stable id.
type Place struct {
	ID       string
	Name     string
	Capacity int // 0 means unbounded
	Meta     map[string]string
}

// Transition is a firing atom identified by a stable id. Guard is an
// opaque boolean expression: the core never interprets it directly,
// only through a GuardEvaluator supplied by the caller (see PetriNet.Enabled).
type Transition struct {
	ID     string
	Name   string
	Guard  string
	Action string
	Meta   map[string]string
}

// Arc is a weighted directed edge between a place and a transition (or
// vice versa). Weight defaults to 1 and must be >= 1.
type Arc struct {
	From   string
	To     string
	Weight int
}

// Net metadata flags recognized by the core.
const (
	MetaIsSource              = "isSource"
	MetaIsSink                = "isSink"
	MetaIsFork                = "isFork"
	MetaIsJoin                = "isJoin"
	MetaIsDependencyConnector = "isDependencyConnector"
	MetaStepID                = "stepId"
)

// PetriNet is the composed, immutable model produced by Builder.Freeze.
// Places and Transitions are kept in insertion order so that id-sorted
// iteration is reproducible, and each is additionally assigned a dense
// 0-based index (Place/Transition order of first insertion) used by the
// explorer's bitset- and slice-backed observation structures.
type PetriNet struct {
	Name            string
	places          []*Place
	transitions     []*Transition
	arcs            []Arc
	placeIndex      map[string]int
	transitionIndex map[string]int
	inputArcs       map[string][]Arc // keyed by transition id: place -> transition
	outputArcs      map[string][]Arc // keyed by transition id: transition -> place
	initial         Marking
	Meta            map[string]string
}

// Places returns the declared places in insertion order.
func (n *PetriNet) Places() []*Place { return n.places }

// Transitions returns the declared transitions in insertion order.
func (n *PetriNet) Transitions() []*Transition { return n.transitions }

// Arcs returns all declared arcs.
func (n *PetriNet) Arcs() []Arc { return n.arcs }

// PlaceIndex returns the dense index of a place id, or -1 if absent.
func (n *PetriNet) PlaceIndex(id string) int {
	if idx, ok := n.placeIndex[id]; ok {
		return idx
	}
	return -1
}

// TransitionIndex returns the dense index of a transition id, or -1 if absent.
func (n *PetriNet) TransitionIndex(id string) int {
	if idx, ok := n.transitionIndex[id]; ok {
		return idx
	}
	return -1
}

// NumPlaces is the dense-index arena size for places.
func (n *PetriNet) NumPlaces() int { return len(n.places) }

// NumTransitions is the dense-index arena size for transitions.
func (n *PetriNet) NumTransitions() int { return len(n.transitions) }

// Place looks up a place by id.
func (n *PetriNet) Place(id string) (*Place, bool) {
	idx, ok := n.placeIndex[id]
	if !ok {
		return nil, false
	}
	return n.places[idx], true
}

// Transition looks up a transition by id.
func (n *PetriNet) Transition(id string) (*Transition, bool) {
	idx, ok := n.transitionIndex[id]
	if !ok {
		return nil, false
	}
	return n.transitions[idx], true
}

// Initial returns the net's initial marking.
func (n *PetriNet) Initial() Marking { return n.initial }

// InputArcs returns arcs place->transition for the given transition id.
func (n *PetriNet) InputArcs(transitionID string) []Arc { return n.inputArcs[transitionID] }

// OutputArcs returns arcs transition->place for the given transition id.
func (n *PetriNet) OutputArcs(transitionID string) []Arc { return n.outputArcs[transitionID] }

// GuardEvaluator decides whether a guarded transition's opaque guard
// expression holds against a marking. Absent, guards are ignored: a
// transition is treated as enabled whenever it is structurally enabled
// (a documented conservative over-approximation).
type GuardEvaluator func(m Marking, guard string) bool

// Enabled returns the ids of transitions enabled in marking m, sorted in
// strict lexicographic order. A transition
// is structurally enabled iff every input place holds at least the arc
// weight in tokens, and every output place either has no capacity or
// will not exceed it after firing. If eval is non-nil and the
// transition carries a non-empty guard, the guard must also evaluate
// true.
func (n *PetriNet) Enabled(m Marking, eval GuardEvaluator) []string {
	var out []string
	for _, t := range n.transitions {
		if n.structurallyEnabled(t.ID, m) && n.guardHolds(t, m, eval) {
			out = append(out, t.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (n *PetriNet) guardHolds(t *Transition, m Marking, eval GuardEvaluator) bool {
	if t.Guard == "" || eval == nil {
		return true
	}
	return eval(m, t.Guard)
}

func (n *PetriNet) structurallyEnabled(transitionID string, m Marking) bool {
	for _, a := range n.inputArcs[transitionID] {
		if m.Get(a.From) < a.Weight {
			return false
		}
	}
	for _, a := range n.outputArcs[transitionID] {
		p, ok := n.Place(a.To)
		if !ok || p.Capacity == 0 {
			continue
		}
		if m.Get(a.To)+a.Weight > p.Capacity {
			return false
		}
	}
	return true
}

// Fire applies transitionID's firing rule to m, producing a new marking.
// Precondition: transitionID must be enabled in m (see Enabled); firing
// a disabled transition is a programmer error and panics
func (n *PetriNet) Fire(m Marking, transitionID string) Marking {
	if _, ok := n.transitionIndex[transitionID]; !ok {
		panic(fmt.Sprintf("petri: fire: unknown transition %q", transitionID))
	}
	if !n.structurallyEnabled(transitionID, m) {
		panic(fmt.Sprintf("petri: fire: transition %q is not enabled in marking %s", transitionID, m.String()))
	}
	next := m.clone()
	for _, a := range n.inputArcs[transitionID] {
		next.sub(a.From, a.Weight)
	}
	for _, a := range n.outputArcs[transitionID] {
		next.add(a.To, a.Weight)
	}
	next.normalize()
	return next
}

// IsTerminal reports whether m is a valid completion state: it holds a
// token in at least one place flagged isSink, or (absent any declared
// sinks) has no enabled transitions and no non-sink tokens remain at
// all. Without that second clause, a deadlocked marking with tokens
// stranded in ordinary places (e.g. a fork with no matching join) would
// be misclassified as terminal merely for having no enabled transitions.
func (n *PetriNet) IsTerminal(m Marking, eval GuardEvaluator) bool {
	hasSink := false
	for _, p := range n.places {
		if p.Meta[MetaIsSink] != "" {
			hasSink = true
			if m.Get(p.ID) > 0 {
				return true
			}
		}
	}
	if hasSink {
		return false
	}
	return len(n.Enabled(m, eval)) == 0 && m.Total() == 0
}
