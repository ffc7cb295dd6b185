// Package explore implements the shared BFS core behind the four
// exploratory checks (Deadlock, Reachability, Liveness, Boundedness):
// a single breadth-first traversal visits each distinct marking once
// and feeds observations to all four checks simultaneously, rather
// than running four separate traversals. The visited-set key is the
// marking's sha256-based Hash.
package explore

import (
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/flowverify/core/petri"
)

// Check names one of the four exploratory properties.
type Check string

const (
	Deadlock     Check = "Deadlock"
	Reachability Check = "Reachability"
	Liveness     Check = "Liveness"
	Boundedness  Check = "Boundedness"
)

// Status is the decision a check reaches.
type Status string

const (
	Pass                Status = "Pass"
	Fail                Status = "Fail"
	InconclusiveTimeout Status = "InconclusiveTimeout"
	InconclusiveBound   Status = "InconclusiveBound"
)

// Config bounds a single exploration.
type Config struct {
	KBound        int     // default 200
	MaxTimeMs     int64   // default 30_000
	EnabledChecks []Check // default: all four
}

// DefaultConfig returns the standard defaults.
func DefaultConfig() Config {
	return Config{
		KBound:        200,
		MaxTimeMs:     30_000,
		EnabledChecks: []Check{Deadlock, Reachability, Liveness, Boundedness},
	}
}

func (c Config) enables(check Check) bool {
	if len(c.EnabledChecks) == 0 {
		return true
	}
	for _, e := range c.EnabledChecks {
		if e == check {
			return true
		}
	}
	return false
}

// FiredStep is one (marking, transition) pair in a counter-example
// trace: transition fired FROM the paired marking to reach the next one.
type FiredStep struct {
	Marking    petri.Marking
	Transition string
}

// PlaceObservation records a place id and its observed maximum token
// count during the traversal, for boundedness counter-examples.
type PlaceObservation struct {
	Place string
	Max   int
}

// CheckResult is one check's outcome.
type CheckResult struct {
	Check           Check
	Status          Status
	Message         string
	CounterExample  []FiredStep        // Deadlock failures; Reachability passes (path to the first terminal marking)
	DeadTransitions []string           // Liveness failures
	OffendingPlaces []PlaceObservation // Boundedness failures
	ElapsedMs       int64
}

// Result is the full exploration outcome: every requested check's
// CheckResult plus traversal-wide statistics.
type Result struct {
	StatesExplored    int
	Checks            map[Check]CheckResult
	ElapsedMs         int64
	TerminationReason string // "exhausted", "timeout", "bound"
}

type parentEntry struct {
	parentHash string
	parent     petri.Marking
	transition string
}

// clock abstracts monotonic time so tests can inject a fake one.
type clock func() time.Time

// Explore performs exactly one BFS traversal over net starting from its
// initial marking, feeding all requested checks simultaneously, and
// returns the aggregated decisions. eval may be nil
// (guards ignored).
func Explore(net *petri.PetriNet, cfg Config, eval petri.GuardEvaluator) Result {
	return explore(net, cfg, eval, time.Now)
}

func explore(net *petri.PetriNet, cfg Config, eval petri.GuardEvaluator, now clock) Result {
	start := now()

	visited := make(map[string]petri.Marking)
	parents := make(map[string]parentEntry)
	queue := []petri.Marking{net.Initial()}
	initialHash := net.Initial().Hash()
	visited[initialHash] = net.Initial()

	everEnabled := bitset.New(uint(max(net.NumTransitions(), 1)))
	maxTokens := make([]int, net.NumPlaces())

	var deadlockWitness *petri.Marking
	var deadlockWitnessHash string
	var terminalWitness *petri.Marking
	var terminalWitnessHash string

	reason := "exhausted"

loop:
	for {
		elapsed := now().Sub(start).Milliseconds()
		if elapsed >= cfg.MaxTimeMs {
			reason = "timeout"
			break loop
		}
		if cfg.KBound > 0 && len(visited) >= cfg.KBound {
			reason = "bound"
			break loop
		}
		if len(queue) == 0 {
			reason = "exhausted"
			break loop
		}

		m := queue[0]
		queue = queue[1:]
		mHash := m.Hash()

		enabled := net.Enabled(m, eval)
		if len(enabled) == 0 {
			if net.IsTerminal(m, eval) {
				if terminalWitness == nil {
					w := m
					terminalWitness = &w
					terminalWitnessHash = mHash
				}
			} else if deadlockWitness == nil {
				w := m
				deadlockWitness = &w
				deadlockWitnessHash = mHash
			}
			continue
		}

		for _, t := range enabled {
			if idx := net.TransitionIndex(t); idx >= 0 {
				everEnabled.Set(uint(idx))
			}
			next := net.Fire(m, t)
			for _, p := range next.NonZeroPlaces() {
				if idx := net.PlaceIndex(p); idx >= 0 {
					if c := next.Get(p); c > maxTokens[idx] {
						maxTokens[idx] = c
					}
				}
			}
			nextHash := next.Hash()
			if _, ok := visited[nextHash]; !ok {
				visited[nextHash] = next
				parents[nextHash] = parentEntry{parentHash: mHash, parent: m, transition: t}
				queue = append(queue, next)
			}
		}
	}

	elapsedMs := now().Sub(start).Milliseconds()

	result := Result{
		StatesExplored:    len(visited),
		Checks:            make(map[Check]CheckResult),
		ElapsedMs:         elapsedMs,
		TerminationReason: reason,
	}

	if cfg.enables(Deadlock) {
		result.Checks[Deadlock] = decideDeadlock(reason, deadlockWitness, deadlockWitnessHash, parents, net.Initial(), initialHash, elapsedMs)
	}
	if cfg.enables(Reachability) {
		result.Checks[Reachability] = decideReachability(reason, terminalWitness, terminalWitnessHash, parents, net.Initial(), initialHash, elapsedMs)
	}
	if cfg.enables(Liveness) {
		result.Checks[Liveness] = decideLiveness(reason, net, everEnabled, elapsedMs)
	}
	if cfg.enables(Boundedness) {
		result.Checks[Boundedness] = decideBoundedness(reason, net, maxTokens, cfg.KBound, elapsedMs)
	}
	return result
}

func decideDeadlock(reason string, witness *petri.Marking, witnessHash string, parents map[string]parentEntry, initial petri.Marking, initialHash string, elapsedMs int64) CheckResult {
	r := CheckResult{Check: Deadlock, ElapsedMs: elapsedMs}
	if witness == nil {
		if reason == "exhausted" {
			r.Status = Pass
			r.Message = "no reachable deadlock found; exploration was exhaustive"
		} else {
			r.Status = inconclusiveStatus(reason)
			r.Message = "exploration was cut off before a deadlock (if any) could be found"
		}
		return r
	}
	r.Status = Fail
	r.Message = "a reachable non-terminal marking with no enabled transitions was found"
	r.CounterExample = reconstruct(witnessHash, parents, initial, initialHash)
	return r
}

func decideReachability(reason string, witness *petri.Marking, witnessHash string, parents map[string]parentEntry, initial petri.Marking, initialHash string, elapsedMs int64) CheckResult {
	r := CheckResult{Check: Reachability, ElapsedMs: elapsedMs}
	if witness != nil {
		r.Status = Pass
		r.Message = "at least one terminal marking is reachable"
		r.CounterExample = reconstruct(witnessHash, parents, initial, initialHash)
		return r
	}
	if reason == "exhausted" {
		r.Status = Fail
		r.Message = "exhaustive exploration found no terminal marking"
	} else {
		r.Status = inconclusiveStatus(reason)
		r.Message = "exploration was cut off before any terminal marking was found"
	}
	return r
}

func decideLiveness(reason string, net *petri.PetriNet, everEnabled *bitset.BitSet, elapsedMs int64) CheckResult {
	r := CheckResult{Check: Liveness, ElapsedMs: elapsedMs}
	var dead []string
	for _, t := range net.Transitions() {
		idx := net.TransitionIndex(t.ID)
		if idx < 0 || !everEnabled.Test(uint(idx)) {
			dead = append(dead, t.ID)
		}
	}
	if len(dead) == 0 {
		r.Status = Pass
		r.Message = "every transition was enabled in some reachable marking (L1-liveness)"
		return r
	}
	if reason == "exhausted" {
		r.Status = Fail
		r.Message = "some transitions were never enabled in any reachable marking"
		r.DeadTransitions = dead
		return r
	}
	r.Status = inconclusiveStatus(reason)
	r.Message = "exploration was cut off; some transitions not yet seen enabled might still fire later"
	r.DeadTransitions = dead
	return r
}

func decideBoundedness(reason string, net *petri.PetriNet, maxTokens []int, kBound int, elapsedMs int64) CheckResult {
	r := CheckResult{Check: Boundedness, ElapsedMs: elapsedMs}
	threshold := kBound / 10
	var offending []PlaceObservation
	for _, p := range net.Places() {
		idx := net.PlaceIndex(p.ID)
		if idx < 0 {
			continue
		}
		if maxTokens[idx] >= threshold && threshold > 0 {
			offending = append(offending, PlaceObservation{Place: p.ID, Max: maxTokens[idx]})
		}
	}
	if reason == "exhausted" {
		if len(offending) == 0 {
			r.Status = Pass
			r.Message = "exhaustive exploration found all per-place maxima within bound"
		} else {
			r.Status = Fail
			r.Message = "exhaustive exploration found places exceeding the boundedness threshold"
			r.OffendingPlaces = offending
		}
		return r
	}
	r.Status = inconclusiveStatus(reason)
	r.Message = "boundedness is a conservative heuristic: cut off before exhaustive completion (kBound/10 threshold)"
	r.OffendingPlaces = offending
	return r
}

func inconclusiveStatus(reason string) Status {
	if reason == "timeout" {
		return InconclusiveTimeout
	}
	return InconclusiveBound
}

// reconstruct walks the parent map backward from witnessHash to the
// initial marking, producing an ordered (initial -> witness) sequence of
// (marking, firedTransition) pairs suitable for replay.
func reconstruct(witnessHash string, parents map[string]parentEntry, initial petri.Marking, initialHash string) []FiredStep {
	if witnessHash == initialHash {
		return nil
	}
	var reversed []FiredStep
	hash := witnessHash
	for hash != initialHash {
		entry, ok := parents[hash]
		if !ok {
			break
		}
		reversed = append(reversed, FiredStep{Marking: entry.parent, Transition: entry.transition})
		hash = entry.parentHash
	}
	out := make([]FiredStep, len(reversed))
	for i, step := range reversed {
		out[len(reversed)-1-i] = step
	}
	return out
}
