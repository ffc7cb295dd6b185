// Package validate implements a non-exploratory structural check and
// the validator façade that aggregates it with the four exploratory
// checks from package explore. The structural-check shape (pure static
// inspection, no traversal) and the façade's top-level entry point
// follow the same pure-builder-inspection idiom seen across this
// module's packages.
package validate

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/flowverify/core/explore"
	"github.com/flowverify/core/petri"
)

// Status mirrors explore.Status plus the structural check's binary
// outcome, widened to the same four-value domain so a ValidationResult
// has one consistent overall-status type.
type Status = explore.Status

const (
	Pass                = explore.Pass
	Fail                = explore.Fail
	InconclusiveTimeout = explore.InconclusiveTimeout
	InconclusiveBound   = explore.InconclusiveBound
)

// StructuralCheck is the check name for the non-exploratory check,
// alongside explore.Deadlock/Reachability/Liveness/Boundedness.
const StructuralCheck explore.Check = "Structural"

// Config is the validator config.
type Config struct {
	KBound        int
	MaxTimeMs     int64
	EnabledChecks []explore.Check // default: all five, including Structural
	Logger        zerolog.Logger  // defaults to zerolog.Nop(); side-effect-free by default
}

// DefaultConfig returns the standard defaults with all five checks enabled.
func DefaultConfig() Config {
	return Config{
		KBound:    200,
		MaxTimeMs: 30_000,
		EnabledChecks: []explore.Check{
			StructuralCheck, explore.Deadlock, explore.Reachability, explore.Liveness, explore.Boundedness,
		},
	}
}

func (c Config) enables(check explore.Check) bool {
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

func (c Config) toExploreConfig() explore.Config {
	var checks []explore.Check
	for _, ch := range c.EnabledChecks {
		if ch != StructuralCheck {
			checks = append(checks, ch)
		}
	}
	return explore.Config{KBound: c.KBound, MaxTimeMs: c.MaxTimeMs, EnabledChecks: checks}
}

// Warning is a non-failing structural observation.
type Warning struct {
	Message string
}

// StructuralResult is the structural check's outcome.
type StructuralResult struct {
	Status   Status
	Failures []string
	Warnings []Warning
}

// ValidationResult is the full façade outcome.
type ValidationResult struct {
	OverallStatus  Status
	Structural     StructuralResult
	Checks         map[explore.Check]explore.CheckResult
	StatesExplored int
	ElapsedMs      int64
	Hints          []string
}

// Structural runs a pure static inspection of net. It never traverses
// the net and never panics on a well-formed *petri.PetriNet (a frozen
// net is, by construction, bipartite with every arc endpoint declared
// — see petri.Builder.Freeze); it exists to catch degenerate nets
// (empty places/transitions/initial marking) that Freeze intentionally
// still allows to construct, so those boundary cases remain reachable
// through Freeze while still being flagged here. Its negative-capacity
// and non-positive-weight checks are defensive: petri.Builder already
// rejects both before Freeze.
func Structural(net *petri.PetriNet) StructuralResult {
	var failures []string
	var warnings []Warning

	if len(net.Places()) == 0 {
		failures = append(failures, "places list is empty")
	}
	if len(net.Transitions()) == 0 {
		failures = append(failures, "transitions list is empty")
	}
	if net.Initial().Len() == 0 {
		failures = append(failures, "initial marking is empty")
	}
	for _, p := range net.Places() {
		if p.Capacity < 0 {
			failures = append(failures, fmt.Sprintf("place %q has non-positive capacity %d", p.ID, p.Capacity))
		}
	}
	for _, a := range net.Arcs() {
		if a.Weight <= 0 {
			failures = append(failures, fmt.Sprintf("arc %s->%s has non-positive weight %d", a.From, a.To, a.Weight))
		}
	}
	for _, t := range net.Transitions() {
		if len(net.InputArcs(t.ID)) == 0 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("transition %q has no input arcs", t.ID)})
		}
		if len(net.OutputArcs(t.ID)) == 0 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("transition %q has no output arcs", t.ID)})
		}
	}

	status := Pass
	if len(failures) > 0 {
		status = Fail
	}
	return StructuralResult{Status: status, Failures: failures, Warnings: warnings}
}

// Validate runs the structural check and, for enabled exploratory
// checks, a single shared BFS traversal via package explore, then
// aggregates everything into one ValidationResult using the priority
// rule: Fail dominates, then InconclusiveTimeout, then
// InconclusiveBound, else Pass. net must be non-nil — a nil net is a
// tier-1 programmer error and panics rather than producing a result.
func Validate(net *petri.PetriNet, cfg Config, eval petri.GuardEvaluator) ValidationResult {
	if net == nil {
		panic("validate: net must not be nil")
	}
	log := cfg.Logger

	result := ValidationResult{Checks: make(map[explore.Check]explore.CheckResult)}

	if cfg.enables(StructuralCheck) {
		result.Structural = Structural(net)
	} else {
		result.Structural = StructuralResult{Status: Pass}
	}

	needsExploration := false
	for _, ch := range []explore.Check{explore.Deadlock, explore.Reachability, explore.Liveness, explore.Boundedness} {
		if cfg.enables(ch) {
			needsExploration = true
			break
		}
	}

	if needsExploration {
		expResult := explore.Explore(net, cfg.toExploreConfig(), eval)
		result.Checks = expResult.Checks
		result.StatesExplored = expResult.StatesExplored
		result.ElapsedMs = expResult.ElapsedMs

		log.Debug().
			Str("termination", expResult.TerminationReason).
			Int("statesExplored", expResult.StatesExplored).
			Int64("elapsedMs", expResult.ElapsedMs).
			Msg("validator: traversal terminated")

		switch expResult.TerminationReason {
		case "timeout":
			result.Hints = append(result.Hints, fmt.Sprintf(
				"exploration timed out after %s having visited %s states",
				humanize.Comma(expResult.ElapsedMs)+"ms", humanize.Comma(int64(expResult.StatesExplored))))
		case "bound":
			result.Hints = append(result.Hints, fmt.Sprintf(
				"exploration hit the state-count bound after visiting %s states",
				humanize.Comma(int64(expResult.StatesExplored))))
		case "exhausted":
			result.Hints = append(result.Hints, fmt.Sprintf(
				"exploration completed exhaustively, visiting %s states in %s",
				humanize.Comma(int64(expResult.StatesExplored)), humanize.Comma(expResult.ElapsedMs)+"ms"))
		}
	}

	result.OverallStatus = aggregate(result)
	return result
}

func aggregate(r ValidationResult) Status {
	anyTimeout, anyBound, anyFail := false, false, false
	if r.Structural.Status == Fail {
		anyFail = true
	}
	for _, cr := range r.Checks {
		switch cr.Status {
		case Fail:
			anyFail = true
		case InconclusiveTimeout:
			anyTimeout = true
		case InconclusiveBound:
			anyBound = true
		}
	}
	switch {
	case anyFail:
		return Fail
	case anyTimeout:
		return InconclusiveTimeout
	case anyBound:
		return InconclusiveBound
	default:
		return Pass
	}
}

// ValidateAll runs Validate concurrently for each net, with the same cfg
// and eval for all of them, using golang.org/x/sync/errgroup,
// demonstrating that a frozen
// *petri.PetriNet is safely shareable across concurrent validations
// while each call still owns its own private visited
// set/queue/parent map inside package explore — no traversal state is
// shared across goroutines. eval may be nil; a nil net still panics inside
// the owning goroutine, same as a direct Validate call, and propagates
// through the errgroup.
func ValidateAll(ctx context.Context, nets []*petri.PetriNet, cfg Config, eval petri.GuardEvaluator) ([]ValidationResult, error) {
	results := make([]ValidationResult, len(nets))
	g, _ := errgroup.WithContext(ctx)
	for i, net := range nets {
		i, net := i, net
		g.Go(func() error {
			results[i] = Validate(net, cfg, eval)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
