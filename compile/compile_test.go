package compile

import (
	"testing"

	"github.com/flowverify/core/intent"
)

func TestCompileScenario1Sequential(t *testing.T) {
	spec := intent.IntentSpec{Name: "seq", Steps: []intent.IntentStep{
		{ID: "A", Type: intent.Action},
		{ID: "B", Type: intent.Action, Needs: []string{"A"}},
	}}
	res, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	net, err := res.Builder.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if got, want := net.NumPlaces(), 4; got != want {
		t.Fatalf("NumPlaces() = %d, want %d (A_pre,A_post,B_pre,B_post)", got, want)
	}
	if got, want := net.NumTransitions(), 3; got != want {
		t.Fatalf("NumTransitions() = %d, want %d (A_act,B_act,connector)", got, want)
	}
	if got, want := net.Initial().Total(), 1; got != want {
		t.Fatalf("initial marking total = %d, want %d", got, want)
	}
}

func TestCompileScenario3MissingDependency(t *testing.T) {
	spec := intent.IntentSpec{Name: "bad", Steps: []intent.IntentStep{
		{ID: "X", Type: intent.Action, Needs: []string{"nonexistent"}},
	}}
	_, err := Compile(spec)
	ud, ok := err.(*UnknownDependency)
	if !ok {
		t.Fatalf("expected *UnknownDependency, got %T: %v", err, err)
	}
	if ud.Step != "X" || ud.Dep != "nonexistent" {
		t.Fatalf("UnknownDependency = {Step:%q Dep:%q}, want {Step:\"X\" Dep:\"nonexistent\"}", ud.Step, ud.Dep)
	}
}

func TestCompileUnsupportedStepType(t *testing.T) {
	spec := intent.IntentSpec{Name: "bad", Steps: []intent.IntentStep{
		{ID: "X", Type: "NotARealType"},
	}}
	_, err := Compile(spec)
	if _, ok := err.(*UnsupportedStepType); !ok {
		t.Fatalf("expected *UnsupportedStepType, got %T: %v", err, err)
	}
}

func TestCompileParallelWithoutSyncLeavesDanglingBranches(t *testing.T) {
	spec := intent.IntentSpec{Name: "par", Steps: []intent.IntentStep{
		{ID: "A", Type: intent.Action},
		{ID: "P", Type: intent.Parallel, Needs: []string{"A"}},
	}}
	res, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	net, err := res.Builder.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	m := net.Initial()
	for {
		en := net.Enabled(m, nil)
		if len(en) == 0 {
			break
		}
		m = net.Fire(m, en[0])
	}
	if got := net.Enabled(m, nil); len(got) != 0 {
		t.Fatalf("expected a deadlock once both branches hold tokens with no join, got enabled=%v", got)
	}
	if net.IsTerminal(m, nil) {
		t.Fatalf("marking %s should not be terminal (no declared sinks, tokens remain)", m)
	}
}

func TestCompileCircuitBreakerInitialMarking(t *testing.T) {
	spec := intent.IntentSpec{Name: "cb", Steps: []intent.IntentStep{
		{ID: "CB", Type: intent.CircuitBreaker},
	}}
	res, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	net, err := res.Builder.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if got, want := net.Initial().Total(), 1; got != want {
		t.Fatalf("initial marking total = %d, want %d (token in closed)", got, want)
	}
}

func TestCompileResourceConstrainedSharesSemaphore(t *testing.T) {
	spec := intent.IntentSpec{Name: "res", Steps: []intent.IntentStep{
		{ID: "R1", Type: intent.ResourceConstrained, ResourceConstraints: map[string]int{"db": 2}},
		{ID: "R2", Type: intent.ResourceConstrained, ResourceConstraints: map[string]int{"db": 2}},
	}}
	res, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	net, err := res.Builder.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if _, ok := net.Place("resource__db"); !ok {
		t.Fatal("expected a shared resource__db semaphore place")
	}
}
