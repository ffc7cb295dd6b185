package intent

import "testing"

func TestValidateRejectsUnknownDependency(t *testing.T) {
	spec := IntentSpec{Steps: []IntentStep{
		{ID: "A", Type: Action},
		{ID: "B", Type: Action, Needs: []string{"nonexistent"}},
	}}
	err := spec.Validate()
	if err == nil {
		t.Fatal("expected validation error for unknown dependency")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	spec := IntentSpec{Steps: []IntentStep{
		{ID: "A", Type: Action, Needs: []string{"B"}},
		{ID: "B", Type: Action, Needs: []string{"A"}},
	}}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected cycle validation error")
	}
}

func TestValidateRequiresLoopCondition(t *testing.T) {
	spec := IntentSpec{Steps: []IntentStep{
		{ID: "L", Type: Loop},
	}}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected missing loop condition error")
	}
}

func TestValidateAcceptsWellFormedSpec(t *testing.T) {
	spec := IntentSpec{Steps: []IntentStep{
		{ID: "A", Type: Action},
		{ID: "B", Type: Action, Needs: []string{"A"}},
	}}
	if err := spec.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
