package dagproj

import (
	"testing"

	"github.com/flowverify/core/petri"
)

func TestProjectSequentialChain(t *testing.T) {
	net, err := petri.NewBuilder("seq").
		Place("A_pre", 1).
		Place("A_post", 0).
		Place("B_pre", 0).
		Place("B_post", 0).
		Place("C_pre", 0).
		Place("C_post", 0).
		Transition("A_act").
		Transition("B_act").
		Transition("C_act").
		Arc("A_pre", "A_act", 1).Arc("A_act", "A_post", 1).
		Arc("A_post", "B_act", 1).Arc("B_act", "B_post", 1).
		Arc("B_post", "C_act", 1).Arc("C_act", "C_post", 1).
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(dag.Nodes) != 3 {
		t.Fatalf("len(Nodes) = %d, want 3", len(dag.Nodes))
	}
	if len(dag.Edges) != 2 {
		t.Fatalf("len(Edges) = %d, want 2 (A->B, B->C)", len(dag.Edges))
	}
	var rootCount int
	for _, n := range dag.Nodes {
		if n.IsRoot {
			rootCount++
			if n.TransitionID != "A_act" {
				t.Fatalf("root = %q, want A_act", n.TransitionID)
			}
		}
	}
	if rootCount != 1 {
		t.Fatalf("rootCount = %d, want 1", rootCount)
	}
}

func TestProjectSkipsConnectorAndTransitivelyReduces(t *testing.T) {
	net, err := petri.NewBuilder("withConnector").
		Place("A_pre", 1).
		Place("A_post", 0).
		Place("bridge", 0).
		Place("B_pre", 0).
		Place("B_post", 0).
		Transition("A_act").
		Transition("connector").
		Transition("B_act").
		Arc("A_pre", "A_act", 1).Arc("A_act", "A_post", 1).
		Arc("A_post", "connector", 1).Arc("connector", "bridge", 1).
		Arc("bridge", "B_act", 1).Arc("B_act", "B_post", 1).
		TransitionMeta("connector", petri.MetaIsDependencyConnector, "true").
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(dag.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2 (connector skipped)", len(dag.Nodes))
	}
	if len(dag.Edges) != 1 || dag.Edges[0].From != "A_act" || dag.Edges[0].To != "B_act" {
		t.Fatalf("Edges = %+v, want a single A_act->B_act edge", dag.Edges)
	}
}

func TestProjectRedundantEdgeIsReduced(t *testing.T) {
	// A -> B, A -> C, B -> C: the direct A->C edge must be removed since
	// A->B->C is an alternate path.
	net, err := petri.NewBuilder("diamond").
		Place("a_in", 1).
		Place("ab", 0).
		Place("ac", 0).
		Place("bc", 0).
		Place("c_out", 0).
		Transition("A").
		Transition("B").
		Transition("C").
		Arc("a_in", "A", 1).Arc("A", "ab", 1).Arc("A", "ac", 1).
		Arc("ab", "B", 1).Arc("B", "bc", 1).
		Arc("ac", "C", 1).Arc("bc", "C", 1).Arc("C", "c_out", 1).
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	dag, err := Project(net)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(dag.Edges) != 2 {
		t.Fatalf("len(Edges) = %d, want 2 (A->B, B->C; A->C reduced away), got %+v", len(dag.Edges), dag.Edges)
	}
	for _, e := range dag.Edges {
		if e.From == "A" && e.To == "C" {
			t.Fatalf("redundant edge A->C should have been transitively reduced away")
		}
	}
}

func TestProjectCyclicTransitionsReportCyclicProjection(t *testing.T) {
	net, err := petri.NewBuilder("loop").
		Place("p1", 1).
		Place("p2", 0).
		Transition("T1").
		Transition("T2").
		Arc("p1", "T1", 1).Arc("T1", "p2", 1).
		Arc("p2", "T2", 1).Arc("T2", "p1", 1).
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	_, err = Project(net)
	if err == nil {
		t.Fatal("expected CyclicProjection error")
	}
	if _, ok := err.(*CyclicProjection); !ok {
		t.Fatalf("err = %T, want *CyclicProjection", err)
	}
}
