package validate

import (
	"context"
	"testing"

	"github.com/flowverify/core/explore"
	"github.com/flowverify/core/petri"
)

func sequentialNet(t *testing.T) *petri.PetriNet {
	t.Helper()
	net, err := petri.NewBuilder("seq").
		Place("A_pre", 1).
		Place("A_post", 0).
		Place("B_pre", 0).
		Place("B_post", 0).
		Transition("A_act").
		Transition("connector").
		Transition("B_act").
		Arc("A_pre", "A_act", 1).Arc("A_act", "A_post", 1).
		Arc("A_post", "connector", 1).Arc("connector", "B_pre", 1).
		Arc("B_pre", "B_act", 1).Arc("B_act", "B_post", 1).
		PlaceMeta("B_post", petri.MetaIsSink, "true").
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	return net
}

func TestStructuralFailsOnEmptyPlacesAndTransitions(t *testing.T) {
	net, err := petri.NewBuilder("empty").Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	sr := Structural(net)
	if sr.Status != Fail {
		t.Fatalf("Status = %s, want Fail", sr.Status)
	}
	if len(sr.Failures) < 3 {
		t.Fatalf("expected failures for empty places/transitions/initial marking, got %v", sr.Failures)
	}
}

func TestStructuralWarnsOnDisconnectedTransition(t *testing.T) {
	net, err := petri.NewBuilder("disc").
		Place("p", 1).
		Transition("t").
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	sr := Structural(net)
	if sr.Status != Pass {
		t.Fatalf("Status = %s, want Pass (warnings don't fail)", sr.Status)
	}
	if len(sr.Warnings) != 2 {
		t.Fatalf("expected 2 warnings (no input, no output arcs), got %v", sr.Warnings)
	}
}

func TestValidatePassesOnScenario1(t *testing.T) {
	net := sequentialNet(t)
	result := Validate(net, DefaultConfig(), nil)
	if result.OverallStatus != Pass {
		t.Fatalf("OverallStatus = %s, want Pass", result.OverallStatus)
	}
	if result.Structural.Status != Pass {
		t.Fatalf("Structural.Status = %s, want Pass", result.Structural.Status)
	}
}

func TestAggregationFailDominatesInconclusive(t *testing.T) {
	r := ValidationResult{
		Structural: StructuralResult{Status: Pass},
		Checks: map[explore.Check]explore.CheckResult{
			explore.Deadlock:     {Status: Fail},
			explore.Reachability: {Status: InconclusiveTimeout},
		},
	}
	if got := aggregate(r); got != Fail {
		t.Fatalf("aggregate = %s, want Fail", got)
	}
}

func TestAggregationTimeoutDominatesBound(t *testing.T) {
	r := ValidationResult{
		Structural: StructuralResult{Status: Pass},
		Checks: map[explore.Check]explore.CheckResult{
			explore.Deadlock:     {Status: InconclusiveBound},
			explore.Reachability: {Status: InconclusiveTimeout},
		},
	}
	if got := aggregate(r); got != InconclusiveTimeout {
		t.Fatalf("aggregate = %s, want InconclusiveTimeout", got)
	}
}

func TestValidateNilNetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil net")
		}
	}()
	Validate(nil, DefaultConfig(), nil)
}

func TestValidateAllRunsConcurrently(t *testing.T) {
	nets := []*petri.PetriNet{sequentialNet(t), sequentialNet(t), sequentialNet(t)}
	results, err := ValidateAll(context.Background(), nets, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("ValidateAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, r := range results {
		if r.OverallStatus != Pass {
			t.Fatalf("results[%d].OverallStatus = %s, want Pass", i, r.OverallStatus)
		}
	}
}
