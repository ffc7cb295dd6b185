package logging

import "testing"

func TestNopLoggerIsSilent(t *testing.T) {
	nop := Nop()
	if nop.GetLevel().String() != "disabled" {
		t.Fatalf("Nop().GetLevel() = %v, want disabled", nop.GetLevel())
	}
}

func TestDefaultLoggerIsAtInfoLevel(t *testing.T) {
	log := Default()
	if log.GetLevel() != InfoLevel {
		t.Fatalf("Default().GetLevel() = %v, want InfoLevel", log.GetLevel())
	}
}
