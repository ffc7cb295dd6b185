package simulate

import (
	"testing"

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

func forkWithoutJoinNet(t *testing.T) *petri.PetriNet {
	t.Helper()
	net, err := petri.NewBuilder("fork").
		Place("pre", 1).
		Place("branch1", 0).
		Place("branch2", 0).
		Transition("fork").
		Arc("pre", "fork", 1).Arc("fork", "branch1", 1).Arc("fork", "branch2", 1).
		Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	return net
}

func TestDeterministicRunCompletesSequentialNet(t *testing.T) {
	net := sequentialNet(t)
	cfg := DefaultConfig(42)
	sim := New(net, cfg, nil)
	result := sim.Run(true)
	if result.FinalPhase != Completed {
		t.Fatalf("FinalPhase = %s, want Completed", result.FinalPhase)
	}
	if result.StepsExecuted != 3 {
		t.Fatalf("StepsExecuted = %d, want 3", result.StepsExecuted)
	}
	if result.FinalMarking.Get("B_post") != 1 {
		t.Fatalf("final marking B_post = %d, want 1", result.FinalMarking.Get("B_post"))
	}
}

func TestDeterministicSameSeedProducesIdenticalTrace(t *testing.T) {
	net := sequentialNet(t)
	cfg := DefaultConfig(7)
	r1 := New(net, cfg, nil).Run(true)
	r2 := New(net, cfg, nil).Run(true)
	if len(r1.Trace) != len(r2.Trace) {
		t.Fatalf("trace length differs: %d vs %d", len(r1.Trace), len(r2.Trace))
	}
	for i := range r1.Trace {
		if r1.Trace[i].Transition != r2.Trace[i].Transition {
			t.Fatalf("trace[%d].Transition differs: %q vs %q", i, r1.Trace[i].Transition, r2.Trace[i].Transition)
		}
	}
}

func TestDeadlockedOnForkWithoutJoin(t *testing.T) {
	net := forkWithoutJoinNet(t)
	cfg := DefaultConfig(1)
	sim := New(net, cfg, nil)
	result := sim.Run(true)
	if result.FinalPhase != Deadlocked {
		t.Fatalf("FinalPhase = %s, want Deadlocked", result.FinalPhase)
	}
	if result.StepsExecuted != 1 {
		t.Fatalf("StepsExecuted = %d, want 1", result.StepsExecuted)
	}
}

func TestDeadlockEventRecordedOnlyWhenPauseOnDeadlock(t *testing.T) {
	net := forkWithoutJoinNet(t)

	withPause := DefaultConfig(1)
	r1 := New(net, withPause, nil).Run(true)
	if !hasEvent(r1.Trace, EventDeadlocked) {
		t.Fatal("with PauseOnDeadlock, expected an EventDeadlocked trace snapshot")
	}

	noPause := DefaultConfig(1)
	noPause.PauseOnDeadlock = false
	r2 := New(net, noPause, nil).Run(true)
	if r2.FinalPhase != Deadlocked {
		t.Fatalf("FinalPhase = %s, want Deadlocked regardless of PauseOnDeadlock", r2.FinalPhase)
	}
	if hasEvent(r2.Trace, EventDeadlocked) {
		t.Fatal("without PauseOnDeadlock, the run should end quietly with no EventDeadlocked snapshot")
	}
}

func hasEvent(trace []TraceEvent, typ EventType) bool {
	for _, e := range trace {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestMaxStepsReached(t *testing.T) {
	net := sequentialNet(t)
	cfg := DefaultConfig(1)
	cfg.MaxSteps = 2
	sim := New(net, cfg, nil)
	result := sim.Run(true)
	if result.FinalPhase != MaxStepsReached {
		t.Fatalf("FinalPhase = %s, want MaxStepsReached", result.FinalPhase)
	}
	if result.StepsExecuted != 2 {
		t.Fatalf("StepsExecuted = %d, want 2", result.StepsExecuted)
	}
}

func TestMaxStepsZeroBoundaryBehavior(t *testing.T) {
	net := sequentialNet(t)
	cfg := DefaultConfig(1)
	cfg.MaxSteps = 0
	sim := New(net, cfg, nil)
	result := sim.Run(true)
	if result.FinalPhase != MaxStepsReached {
		t.Fatalf("FinalPhase = %s, want MaxStepsReached", result.FinalPhase)
	}
	if result.StepsExecuted != 0 {
		t.Fatalf("StepsExecuted = %d, want 0", result.StepsExecuted)
	}
	for _, e := range result.Trace {
		if e.Type == EventTransitionFired {
			t.Fatalf("expected no fired transitions, found %v", e)
		}
	}
}

func TestStopRequestHaltsLoop(t *testing.T) {
	net := sequentialNet(t)
	cfg := DefaultConfig(1)
	sim := New(net, cfg, nil)
	sim.Stop()
	result := sim.Run(true)
	if result.FinalPhase != Stopped {
		t.Fatalf("FinalPhase = %s, want Stopped", result.FinalPhase)
	}
	if result.StepsExecuted != 0 {
		t.Fatalf("StepsExecuted = %d, want 0", result.StepsExecuted)
	}
}

func TestResetReturnsToInitializedMarking(t *testing.T) {
	net := sequentialNet(t)
	sim := New(net, DefaultConfig(3), nil)
	sim.Run(true)
	sim.Reset()
	if sim.Phase() != Initialized {
		t.Fatalf("Phase after Reset = %s, want Initialized", sim.Phase())
	}
	if !sim.Marking().Equal(net.Initial()) {
		t.Fatalf("Marking after Reset = %s, want initial %s", sim.Marking(), net.Initial())
	}
}

func TestInteractiveModeDefaultsToFirstEnabledWhenNoChooser(t *testing.T) {
	net := sequentialNet(t)
	cfg := DefaultConfig(0)
	cfg.Mode = Interactive
	sim := New(net, cfg, nil)
	result := sim.Run(true)
	if result.FinalPhase != Completed {
		t.Fatalf("FinalPhase = %s, want Completed", result.FinalPhase)
	}
}

func TestNilNetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil net")
		}
	}()
	New(nil, DefaultConfig(1), nil)
}
