// Package dagproj projects a frozen Petri net onto a DAG of transitions:
// nodes are transitions, edges are transitive dependencies bridged by
// a shared place. This is a static transition-dependency graph, not a
// state-space graph — no marking is involved.
package dagproj

import (
	"fmt"
	"sort"

	"github.com/flowverify/core/petri"
)

// Node is one DAG node, corresponding to a transition.
type Node struct {
	TransitionID string
	ActionLabel  string
	IsRoot       bool
}

// Edge is one surviving DAG edge after transitive reduction.
type Edge struct {
	From           string
	To             string
	BridgedByPlace []string // places whose t1->p->t2 arcs justified this edge
}

// DAG is the projected output.
type DAG struct {
	Nodes []Node
	Edges []Edge
}

// CyclicProjection reports that the transition graph contains a cycle
// surviving transitive reduction.
type CyclicProjection struct {
	Cycle []string
}

func (e *CyclicProjection) Error() string {
	return fmt.Sprintf("dagproj: cyclic projection: %v", e.Cycle)
}

// successorEdge records, before transitive reduction, every place that
// bridges a given (t1, t2) pair — a pair can be bridged by more than one
// place, and all of them are preserved as metadata on the surviving edge.
type successorEdge struct {
	places []string
}

// Project builds the DAG for net: collect successor edges, transitively
// reduce them, check for cycles, then identify roots. Transitions
// tagged isDependencyConnector are skipped as graph nodes;
// their places are still traversed through when discovering t1->p->t2
// bridges, exactly as the grammar compiler's synthetic connectors are
// meant to be transparent scaffolding rather than domain steps.
func Project(net *petri.PetriNet) (*DAG, error) {
	nodeIDs := realTransitionIDs(net)

	succ := make(map[string]map[string]*successorEdge)
	for _, id := range nodeIDs {
		succ[id] = make(map[string]*successorEdge)
	}

	for _, p := range net.Places() {
		producers := producersOf(net, p.ID, nodeIDs)
		consumers := consumersOf(net, p.ID, nodeIDs)
		for _, t1 := range producers {
			for _, t2 := range consumers {
				if t1 == t2 {
					continue
				}
				e, ok := succ[t1][t2]
				if !ok {
					e = &successorEdge{}
					succ[t1][t2] = e
				}
				e.places = append(e.places, p.ID)
			}
		}
	}

	reduced, err := transitiveReduce(nodeIDs, succ)
	if err != nil {
		return nil, err
	}

	roots := identifyRoots(net, nodeIDs, reduced)

	nodes := make([]Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		t, _ := net.Transition(id)
		nodes = append(nodes, Node{TransitionID: id, ActionLabel: t.Action, IsRoot: roots[id]})
	}

	var edges []Edge
	for _, from := range nodeIDs {
		tos := make([]string, 0, len(reduced[from]))
		for to := range reduced[from] {
			tos = append(tos, to)
		}
		sort.Strings(tos)
		for _, to := range tos {
			places := append([]string(nil), succ[from][to].places...)
			sort.Strings(places)
			edges = append(edges, Edge{From: from, To: to, BridgedByPlace: places})
		}
	}

	return &DAG{Nodes: nodes, Edges: edges}, nil
}

func realTransitionIDs(net *petri.PetriNet) []string {
	var ids []string
	for _, t := range net.Transitions() {
		if t.Meta[petri.MetaIsDependencyConnector] != "" {
			continue
		}
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

// producersOf returns the real (non-connector) transitions that produce
// tokens into place, traversing through any chain of connector
// transitions so a connector's bridging places are seen through rather
// than surfaced as graph nodes.
func producersOf(net *petri.PetriNet, place string, realIDs []string) []string {
	real := make(map[string]bool, len(realIDs))
	for _, id := range realIDs {
		real[id] = true
	}
	seen := make(map[string]bool)
	var out []string
	var visit func(p string)
	visit = func(p string) {
		for _, a := range inputArcsInto(net, p) {
			t := a
			if seen[t] {
				continue
			}
			seen[t] = true
			if real[t] {
				out = append(out, t)
				continue
			}
			for _, inPlace := range inputPlacesFeeding(net, t) {
				visit(inPlace)
			}
		}
	}
	visit(place)
	sort.Strings(out)
	return dedup(out)
}

// consumersOf returns the real transitions that consume tokens from
// place, traversing forward through connector transitions.
func consumersOf(net *petri.PetriNet, place string, realIDs []string) []string {
	real := make(map[string]bool, len(realIDs))
	for _, id := range realIDs {
		real[id] = true
	}
	seen := make(map[string]bool)
	var out []string
	var visit func(p string)
	visit = func(p string) {
		for _, t := range transitionsConsuming(net, p) {
			if seen[t] {
				continue
			}
			seen[t] = true
			if real[t] {
				out = append(out, t)
				continue
			}
			for _, outPlace := range outputPlacesFrom(net, t) {
				visit(outPlace)
			}
		}
	}
	visit(place)
	sort.Strings(out)
	return dedup(out)
}

func inputArcsInto(net *petri.PetriNet, place string) []string {
	var out []string
	for _, t := range net.Transitions() {
		for _, a := range net.OutputArcs(t.ID) {
			if a.To == place {
				out = append(out, t.ID)
			}
		}
	}
	return out
}

func transitionsConsuming(net *petri.PetriNet, place string) []string {
	var out []string
	for _, t := range net.Transitions() {
		for _, a := range net.InputArcs(t.ID) {
			if a.From == place {
				out = append(out, t.ID)
			}
		}
	}
	return out
}

func outputPlacesFrom(net *petri.PetriNet, transitionID string) []string {
	var out []string
	for _, a := range net.OutputArcs(transitionID) {
		out = append(out, a.To)
	}
	return out
}

func inputPlacesFeeding(net *petri.PetriNet, transitionID string) []string {
	var out []string
	for _, a := range net.InputArcs(transitionID) {
		out = append(out, a.From)
	}
	return out
}

func dedup(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// transitiveReduce removes an edge a->b whenever another path from a to
// b survives, via a straightforward O(V*(V+E)) DFS
// reachability check per edge — ample for the size of nets this module
// targets.
func transitiveReduce(nodeIDs []string, succ map[string]map[string]*successorEdge) (map[string]map[string]bool, error) {
	reduced := make(map[string]map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		reduced[id] = make(map[string]bool)
		for to := range succ[id] {
			reduced[id][to] = true
		}
	}

	for _, a := range nodeIDs {
		for b := range reduced[a] {
			if hasAlternatePath(reduced, a, b) {
				delete(reduced[a], b)
			}
		}
	}

	if cycle := findCycle(nodeIDs, reduced); cycle != nil {
		return nil, &CyclicProjection{Cycle: cycle}
	}
	return reduced, nil
}

// hasAlternatePath reports whether b is reachable from a via some path
// that does not consist solely of the direct edge a->b.
func hasAlternatePath(graph map[string]map[string]bool, a, b string) bool {
	visited := make(map[string]bool)
	var dfs func(node string, depth int) bool
	dfs = func(node string, depth int) bool {
		for next := range graph[node] {
			if depth == 0 && next == b {
				// the direct edge itself; keep looking through others
				continue
			}
			if next == b {
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if dfs(next, depth+1) {
				return true
			}
		}
		return false
	}
	return dfs(a, 0)
}

func findCycle(nodeIDs []string, graph map[string]map[string]bool) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodeIDs))
	var path []string
	var cycle []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		color[node] = gray
		path = append(path, node)
		next := make([]string, 0, len(graph[node]))
		for n := range graph[node] {
			next = append(next, n)
		}
		sort.Strings(next)
		for _, n := range next {
			if color[n] == gray {
				cycle = append(cycle, n)
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append(cycle, path[i])
					if path[i] == n {
						break
					}
				}
				return true
			}
			if color[n] == white {
				if dfs(n) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[node] = black
		return false
	}

	for _, id := range nodeIDs {
		if color[id] == white {
			if dfs(id) {
				return cycle
			}
		}
	}
	return nil
}

// identifyRoots finds transitions with no incoming reduced edge whose
// input places are all initially marked.
func identifyRoots(net *petri.PetriNet, nodeIDs []string, reduced map[string]map[string]bool) map[string]bool {
	hasIncoming := make(map[string]bool)
	for _, tos := range reduced {
		for to := range tos {
			hasIncoming[to] = true
		}
	}
	roots := make(map[string]bool)
	for _, id := range nodeIDs {
		if hasIncoming[id] {
			continue
		}
		allMarked := true
		for _, a := range net.InputArcs(id) {
			if net.Initial().Get(a.From) < a.Weight {
				allMarked = false
				break
			}
		}
		if allMarked {
			roots[id] = true
		}
	}
	return roots
}
