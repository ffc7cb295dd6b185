package petri

import (
	"encoding/json"
	"testing"
)

func sequentialNet(t *testing.T) *PetriNet {
	t.Helper()
	net, err := NewBuilder("sequential").
		Place("A_pre", 1).
		Place("A_post", 0).
		Place("B_pre", 0).
		Place("B_post", 0).
		Transition("A_act").
		Transition("B_act").
		Transition("connector").
		Arc("A_pre", "A_act", 1).
		Arc("A_act", "A_post", 1).
		Arc("A_post", "connector", 1).
		Arc("connector", "B_pre", 1).
		Arc("B_pre", "B_act", 1).
		Arc("B_act", "B_post", 1).
		PlaceMeta("B_post", MetaIsSink, "true").
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	return net
}

func TestEnabledSortedLexicographically(t *testing.T) {
	net := sequentialNet(t)
	got := net.Enabled(net.Initial(), nil)
	want := []string{"A_act"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("Enabled(initial) = %v, want %v", got, want)
	}

	m := NewMarking(map[string]int{"A_pre": 1, "A_post": 1, "B_pre": 1})
	got = net.Enabled(m, nil)
	want = []string{"A_act", "B_act", "connector"}
	if len(got) != len(want) {
		t.Fatalf("Enabled(%s) = %v, want %v", m, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Enabled(%s) = %v, want %v", m, got, want)
		}
	}
}

func TestFireProducesNormalizedMarking(t *testing.T) {
	net := sequentialNet(t)
	m1 := net.Fire(net.Initial(), "A_act")
	if m1.Get("A_pre") != 0 {
		t.Fatalf("A_pre should be removed from the map once empty, got %d", m1.Get("A_pre"))
	}
	if m1.Get("A_post") != 1 {
		t.Fatalf("A_post = %d, want 1", m1.Get("A_post"))
	}
}

func TestFireOnDisabledTransitionPanics(t *testing.T) {
	net := sequentialNet(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic firing a disabled transition")
		}
	}()
	net.Fire(net.Initial(), "B_act")
}

func TestMarkingEqualityRespectsNormalization(t *testing.T) {
	a := NewMarking(map[string]int{"a": 1, "b": 0})
	b := NewMarking(map[string]int{"a": 1})
	if !a.Equal(b) {
		t.Fatalf("Marking{a:1,b:0} should equal Marking{a:1}")
	}
}

func TestEndToEndScenario1Sequential(t *testing.T) {
	net := sequentialNet(t)
	if got, want := net.NumPlaces(), 4; got != want {
		t.Fatalf("NumPlaces() = %d, want %d", got, want)
	}
	if got, want := net.NumTransitions(), 3; got != want {
		t.Fatalf("NumTransitions() = %d, want %d", got, want)
	}
	m := net.Initial()
	m = net.Fire(m, "A_act")
	m = net.Fire(m, "connector")
	m = net.Fire(m, "B_act")
	want := NewMarking(map[string]int{"B_post": 1})
	if !m.Equal(want) {
		t.Fatalf("final marking = %s, want %s", m, want)
	}
}

func TestCapacityEnforcedAtEnableTime(t *testing.T) {
	net, err := NewBuilder("capacity").
		Place("in", 2).
		PlaceWithCapacity("out", 0, 1).
		Transition("t").
		Arc("in", "t", 1).
		Arc("t", "out", 1).
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	m := net.Initial()
	m = net.Fire(m, "t")
	if got := net.Enabled(m, nil); len(got) != 0 {
		t.Fatalf("t should be disabled once out is at capacity, got enabled=%v", got)
	}
}

func TestBipartiteRuleViolation(t *testing.T) {
	_, err := NewBuilder("bad").
		Place("p", 1).
		Transition("t").
		Arc("p", "p", 1).
		Freeze()
	if err == nil {
		t.Fatal("expected bipartite rule violation error")
	}
}

func TestMarkingJSONRoundTrip(t *testing.T) {
	m := NewMarking(map[string]int{"a": 2, "b": 0})
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Marking
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.Equal(m) {
		t.Fatalf("round-tripped marking = %s, want %s", got, m)
	}
	if got.Get("a") != 2 || got.Len() != 1 {
		t.Fatalf("round-tripped marking lost data: %s", got)
	}
}

func TestGuardEvaluatorGatesEnablement(t *testing.T) {
	net, err := NewBuilder("guarded").
		Place("pre", 1).
		TransitionWithGuard("t_a", "always_false").
		Arc("pre", "t_a", 1).
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	eval := func(m Marking, guard string) bool { return guard != "always_false" }
	if got := net.Enabled(net.Initial(), eval); len(got) != 0 {
		t.Fatalf("guard should disable t_a, got enabled=%v", got)
	}
	if got := net.Enabled(net.Initial(), nil); len(got) != 1 {
		t.Fatalf("without an evaluator, guards are ignored (conservative), got enabled=%v", got)
	}
}
