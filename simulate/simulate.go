// Package simulate implements the deterministic/interactive token
// simulator: a step loop driving a mutex-guarded State through
// Initialized -> Running -> {Completed, Deadlocked, MaxStepsReached,
// Stopped, Failed}, with pause/stop signaled through atomic flags
// rather than context cancellation so a caller can request either
// without taking the state's lock.
package simulate

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowverify/core/petri"
)

// Mode selects how transition conflicts are resolved.
type Mode string

const (
	Deterministic Mode = "Deterministic"
	Interactive   Mode = "Interactive"
)

// Phase is one of the simulator's state-machine states.
type Phase string

const (
	Initialized     Phase = "Initialized"
	Running         Phase = "Running"
	Completed       Phase = "Completed"
	Deadlocked      Phase = "Deadlocked"
	MaxStepsReached Phase = "MaxStepsReached"
	Stopped         Phase = "Stopped"
	Failed          Phase = "Failed"
)

// Chooser resolves a conflict among enabled transitions in Interactive
// mode. When nil, the default fallback is used: the
// lexicographically-first enabled id, logged as a defaulted selection.
type Chooser func(enabled []string, m petri.Marking) string

// Config is the simulation config.
type Config struct {
	Mode            Mode
	Seed            int64 // auto-generated if zero
	MaxSteps        int   // default 1000
	StepDelayMs     int64 // default 0
	EnableTracing   bool  // default true
	PauseOnDeadlock bool  // default true
	Verbose         bool  // default false
	Chooser         Chooser
	Logger          zerolog.Logger // defaults to zerolog.Nop()
}

// DefaultConfig returns the standard defaults for Deterministic mode.
func DefaultConfig(seed int64) Config {
	return Config{
		Mode:            Deterministic,
		Seed:            seed,
		MaxSteps:        1000,
		StepDelayMs:     0,
		EnableTracing:   true,
		PauseOnDeadlock: true,
		Verbose:         false,
	}
}

// EventType names the kind of a TraceEvent.
type EventType string

const (
	EventStarted         EventType = "Started"
	EventTransitionFired EventType = "TransitionFired"
	EventCompleted       EventType = "Completed"
	EventDeadlocked      EventType = "Deadlocked"
)

// TraceEvent is one record in a simulation trace.
type TraceEvent struct {
	Type          EventType
	Seq           int64
	Timestamp     time.Time
	Transition    string
	InputPlaces   []string
	OutputPlaces  []string
	MarkingBefore petri.Marking
	MarkingAfter  petri.Marking
	EnabledAtFire []string
	ResolverMode  Mode
}

// Result is the full outcome of a completed (or halted) simulation.
type Result struct {
	FinalPhase    Phase
	StepsExecuted int
	FinalMarking  petri.Marking
	Trace         []TraceEvent
	Seed          int64
	Cause         string // populated on Failed
}

// State is the live, owned-by-one-caller simulation handle returned by
// New. pause/resume/stop are atomic flags read once per step, letting
// an external caller request either without contending for the mutex
// guarding the rest of the state.
type State struct {
	net     *petri.PetriNet
	cfg     Config
	eval    petri.GuardEvaluator
	rng     *rand.Rand
	initial petri.Marking

	mu      sync.Mutex
	phase   Phase
	current petri.Marking
	steps   int
	trace   []TraceEvent
	seq     int64
	cause   string

	pauseRequested int32
	stopRequested  int32
}

// New constructs a simulator in the Initialized phase. net must be
// non-nil (a nil net is a tier-1 programmer error and panics, mirroring
// package validate's Validate).
func New(net *petri.PetriNet, cfg Config, eval petri.GuardEvaluator) *State {
	if net == nil {
		panic("simulate: net must not be nil")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &State{
		net:     net,
		cfg:     cfg,
		eval:    eval,
		rng:     rand.New(rand.NewSource(seed)),
		initial: net.Initial(),
		phase:   Initialized,
		current: net.Initial(),
	}
}

// Pause requests a pause; only meaningful in Interactive mode.
func (s *State) Pause() {
	if s.cfg.Mode == Interactive {
		atomic.StoreInt32(&s.pauseRequested, 1)
	}
}

// Resume clears a pending pause request.
func (s *State) Resume() {
	atomic.StoreInt32(&s.pauseRequested, 0)
}

// Stop cooperatively requests the step loop halt at its next loop head.
func (s *State) Stop() {
	atomic.StoreInt32(&s.stopRequested, 1)
}

// Reset returns the simulator to Initialized with the net's original
// initial marking, clearing any accumulated trace and step count.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Initialized
	s.current = s.initial
	s.steps = 0
	s.trace = nil
	s.seq = 0
	s.cause = ""
	atomic.StoreInt32(&s.pauseRequested, 0)
	atomic.StoreInt32(&s.stopRequested, 0)
}

// Phase reports the current simulator phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Marking reports the current marking.
func (s *State) Marking() petri.Marking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run drives the step loop to completion: Initialized -> Running, then
// iterates until one of Completed/Deadlocked/MaxStepsReached/Stopped/
// Failed is reached. stepDelayMs is honored
// only in Interactive mode or when skipDelay is false, so deterministic
// tests can request delay-free execution.
func (s *State) Run(skipDelay bool) Result {
	log := s.cfg.Logger
	s.mu.Lock()
	s.phase = Running
	s.mu.Unlock()
	log.Info().Str("phase", string(Running)).Msg("simulate: started")
	s.record(TraceEvent{Type: EventStarted, Seq: s.nextSeq(), Timestamp: time.Now(), MarkingBefore: s.current, MarkingAfter: s.current})

loop:
	for {
		if atomic.LoadInt32(&s.stopRequested) != 0 {
			s.setPhase(Stopped, "")
			break loop
		}
		if s.cfg.Mode == Interactive {
			for atomic.LoadInt32(&s.pauseRequested) != 0 {
				if atomic.LoadInt32(&s.stopRequested) != 0 {
					s.setPhase(Stopped, "")
					break loop
				}
				time.Sleep(time.Millisecond)
			}
		}

		s.mu.Lock()
		current := s.current
		steps := s.steps
		s.mu.Unlock()

		if steps >= s.cfg.MaxSteps {
			s.setPhase(MaxStepsReached, "")
			break loop
		}

		enabled := s.net.Enabled(current, s.eval)
		if len(enabled) == 0 {
			if s.net.IsTerminal(current, s.eval) {
				s.record(TraceEvent{Type: EventCompleted, Seq: s.nextSeq(), Timestamp: time.Now(), MarkingBefore: current, MarkingAfter: current})
				s.setPhase(Completed, "")
				log.Info().Str("phase", string(Completed)).Int("steps", steps).Msg("simulate: completed")
			} else {
				// PauseOnDeadlock controls whether the deadlock is surfaced
				// as a trace snapshot (event + info log) or the run just
				// ends quietly in the Deadlocked phase.
				if s.cfg.PauseOnDeadlock {
					s.record(TraceEvent{Type: EventDeadlocked, Seq: s.nextSeq(), Timestamp: time.Now(), MarkingBefore: current, MarkingAfter: current})
					log.Info().Str("phase", string(Deadlocked)).Int("steps", steps).Msg("simulate: deadlocked")
				}
				s.setPhase(Deadlocked, "")
			}
			break loop
		}

		chosen := s.choose(enabled, current)
		next, failed := s.fireSafely(current, chosen)
		if failed != "" {
			s.setPhase(Failed, failed)
			break loop
		}

		if s.cfg.Verbose {
			log.Debug().Str("transition", chosen).Str("before", current.String()).Str("after", next.String()).Msg("simulate: fired")
		}

		if s.cfg.EnableTracing {
			s.record(TraceEvent{
				Type:          EventTransitionFired,
				Seq:           s.nextSeq(),
				Timestamp:     time.Now(),
				Transition:    chosen,
				InputPlaces:   placesOf(s.net.InputArcs(chosen)),
				OutputPlaces:  placesOfOut(s.net.OutputArcs(chosen)),
				MarkingBefore: current,
				MarkingAfter:  next,
				EnabledAtFire: enabled,
				ResolverMode:  s.cfg.Mode,
			})
		}

		s.mu.Lock()
		s.current = next
		s.steps++
		s.mu.Unlock()

		if s.cfg.StepDelayMs > 0 && !(s.cfg.Mode == Deterministic && skipDelay) {
			time.Sleep(time.Duration(s.cfg.StepDelayMs) * time.Millisecond)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{
		FinalPhase:    s.phase,
		StepsExecuted: s.steps,
		FinalMarking:  s.current,
		Trace:         append([]TraceEvent(nil), s.trace...),
		Seed:          s.cfg.Seed,
		Cause:         s.cause,
	}
}

func (s *State) setPhase(p Phase, cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	s.cause = cause
}

func (s *State) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *State) record(e TraceEvent) {
	if !s.cfg.EnableTracing && e.Type != EventStarted {
		return
	}
	s.mu.Lock()
	s.trace = append(s.trace, e)
	s.mu.Unlock()
}

// choose picks one transition from the sorted enabled list per the
// mode's conflict-resolution policy. Deterministic mode
// draws from config.seed's pseudo-random generator; Interactive mode
// defers to the configured Chooser, falling back to the
// lexicographically-first id (already the case since Enabled sorts)
// and logging that the selection was defaulted.
func (s *State) choose(enabled []string, m petri.Marking) string {
	if s.cfg.Mode == Deterministic {
		return enabled[s.rng.Intn(len(enabled))]
	}
	if s.cfg.Chooser != nil {
		return s.cfg.Chooser(enabled, m)
	}
	s.cfg.Logger.Debug().Str("selected", enabled[0]).Msg("simulate: interactive chooser absent, defaulted to first enabled id")
	return enabled[0]
}

// fireSafely fires chosen against current, recovering from the panic
// petri.PetriNet.Fire raises for an unknown or disabled transition and
// turning it into a Failed cause instead of propagating. Deterministic
// mode and the default fallback always pick from the enabled list just
// recomputed from current, so only a Chooser returning an id outside
// that list can trigger it.
func (s *State) fireSafely(current petri.Marking, chosen string) (next petri.Marking, failCause string) {
	defer func() {
		if r := recover(); r != nil {
			failCause = "fire-time inconsistency: " + toString(r)
		}
	}()
	next = s.net.Fire(current, chosen)
	return next, ""
}

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}

func placesOf(arcs []petri.Arc) []string {
	out := make([]string, len(arcs))
	for i, a := range arcs {
		out[i] = a.From
	}
	return out
}

func placesOfOut(arcs []petri.Arc) []string {
	out := make([]string, len(arcs))
	for i, a := range arcs {
		out[i] = a.To
	}
	return out
}
