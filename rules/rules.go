// Package rules implements the post-compile rule engine: seven
// fixed-order, idempotent rewrites applied to a compile.Result's
// builder before Freeze. Each rewrite walks the builder's accumulated
// state and synthesizes missing structure (joins, sinks) before the
// net is used.
package rules

import (
	"fmt"
	"sort"

	"github.com/flowverify/core/compile"
	"github.com/flowverify/core/intent"
	"github.com/flowverify/core/petri"
)

// Apply runs all seven rules, in the fixed order below,
// over res.Builder and returns the same builder (mutated in place) for
// convenience chaining into Builder.Freeze. Running Apply twice on
// output already rewritten once is a no-op beyond id generation, which
// is itself deterministic.
func Apply(res *compile.Result) *petri.Builder {
	synthesizeImplicitJoins(res)
	synthesizeChoiceMerges(res)
	markSinks(res)
	auditInitialMarkings(res)
	mergeResourcePools(res)
	synthesizeGlobalErrorHandler(res)
	synthesizeTimeoutManager(res)
	return res.Builder
}

// Rule 1 — Implicit join synthesis. For every Parallel/FanOutFanIn step
// without a declared matching Sync, synthesize a join transition
// connecting every branch place to a single post-join place. This
// restores 1-to-1 fork/join structure so the explorer's terminal-marking
// detection does not see permanently dangling branch tokens.
func synthesizeImplicitJoins(res *compile.Result) {
	for _, step := range res.Spec.Steps {
		if step.Type != intent.Parallel && step.Type != intent.FanOutFanIn {
			continue
		}
		if res.HasMatchingSync[step.ID] {
			continue
		}
		branches := res.StepExits[step.ID]
		if len(branches) < 2 {
			continue
		}
		joinT := fmt.Sprintf("%s__implicit_join", step.ID)
		if res.Builder.HasTransition(joinT) {
			continue
		}
		res.Builder.Transition(joinT)
		res.Builder.TransitionMeta(joinT, petri.MetaIsJoin, "true")
		post := fmt.Sprintf("%s__implicit_post", step.ID)
		if !res.Builder.HasPlace(post) {
			res.Builder.Place(post, 0)
		}
		for _, b := range branches {
			res.Builder.Arc(b, joinT, 1)
		}
		res.Builder.Arc(joinT, post, 1)
		res.StepExits[step.ID] = []string{post}
	}
}

// Rule 2 — Choice merge synthesis. When multiple downstream steps
// depend on the same Choice step, synthesize a merge transition per
// branch feeding one merged place, so dependents can stitch from a
// single node instead of each branch independently.
func synthesizeChoiceMerges(res *compile.Result) {
	dependentsOf := make(map[string]int)
	for _, step := range res.Spec.Steps {
		for _, dep := range step.Needs {
			dependentsOf[dep]++
		}
	}
	for _, step := range res.Spec.Steps {
		if step.Type != intent.Choice && step.Type != intent.NestedConditional {
			continue
		}
		if dependentsOf[step.ID] < 2 {
			continue
		}
		branches := res.StepExits[step.ID]
		if len(branches) < 2 {
			continue
		}
		merged := fmt.Sprintf("%s__merged", step.ID)
		if res.Builder.HasPlace(merged) {
			continue
		}
		// Only safe to synthesize when nothing has stitched from these
		// branch places yet: the grammar compiler fans a branching
		// dependency's exits out to each dependent directly (one
		// connector per branch per dependent) at compile time, and this
		// rule does not retarget arcs already wired that way. When that
		// has already happened, the per-branch wiring the compiler
		// produced is itself a correct (if less tidy) fan-in, so skip.
		if branchesAlreadyWired(res, branches) {
			continue
		}
		res.Builder.Place(merged, 0)
		for i, b := range branches {
			mergeT := fmt.Sprintf("%s__merge_%d", step.ID, i)
			res.Builder.Transition(mergeT)
			res.Builder.Arc(b, mergeT, 1)
			res.Builder.Arc(mergeT, merged, 1)
		}
		res.StepExits[step.ID] = []string{merged}
	}
}

func branchesAlreadyWired(res *compile.Result, branches []string) bool {
	wired := make(map[string]bool, len(branches))
	for _, b := range branches {
		wired[b] = true
	}
	for _, a := range res.Builder.ArcList() {
		if wired[a.From] {
			return true
		}
	}
	return false
}

// Rule 3 — Sink marking. Steps with no dependents have their exit
// place(s) tagged isSink in metadata.
func markSinks(res *compile.Result) {
	hasDependent := make(map[string]bool)
	for _, step := range res.Spec.Steps {
		for _, dep := range step.Needs {
			hasDependent[dep] = true
		}
	}
	for _, step := range res.Spec.Steps {
		if hasDependent[step.ID] {
			continue
		}
		for _, exit := range res.StepExits[step.ID] {
			res.Builder.PlaceMeta(exit, petri.MetaIsSink, "true")
		}
	}
}

// Rule 4 — Initial-marking audit. Every step with no needs must have
// exactly one token in its entry place; this is defensive re-assertion
// (the compiler already does this at stitch time) so that hand-edited
// compile.Result values are still corrected.
func auditInitialMarkings(res *compile.Result) {
	tokens := res.Builder.InitialTokens()
	for _, step := range res.Spec.Steps {
		if len(step.Needs) != 0 {
			continue
		}
		entry := res.StepEntry[step.ID]
		if entry == "" {
			continue
		}
		if tokens[entry] != 1 {
			res.Builder.InitialToken(entry, 1)
		}
	}
}

// Rule 5 — Shared resource pools. Groups of ResourceConstrained steps
// declaring the same resource type share one semaphore place already
// (compile.Compiler.resourceSemaphore unifies them by name); this rule
// re-seeds that shared place with the sum of the declared capacities,
// since a pool's true capacity is the total concurrent budget across
// all steps drawing on it, not any single step's locally-declared figure.
func mergeResourcePools(res *compile.Result) {
	totals := make(map[string]int)
	order := make([]string, 0)
	for _, step := range res.Spec.Steps {
		if step.Type != intent.ResourceConstrained {
			continue
		}
		names := make([]string, 0, len(step.ResourceConstraints))
		for name := range step.ResourceConstraints {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, seen := totals[name]; !seen {
				order = append(order, name)
			}
			totals[name] += step.ResourceConstraints[name]
		}
	}
	sort.Strings(order)
	for _, name := range order {
		placeID := "resource__" + name
		if res.Builder.HasPlace(placeID) {
			res.Builder.InitialToken(placeID, totals[name])
		}
	}
}

// Rule 6 — Global error handler. If >= 2 steps declare error handling
// (ErrorHandler or Compensation), a central error place and recovery
// transition are added. These are not wired into the enable graph by
// default — the place starts empty and the transition has no input
// arcs from existing error places, so exploration never reaches it
// unless a caller wires it deliberately.
func synthesizeGlobalErrorHandler(res *compile.Result) {
	count := 0
	for _, step := range res.Spec.Steps {
		if step.Type == intent.ErrorHandler || step.Type == intent.Compensation {
			count++
		}
	}
	if count < 2 {
		return
	}
	const centralPlace = "__global_error"
	const recoveryT = "__global_recovery"
	if res.Builder.HasPlace(centralPlace) {
		return
	}
	res.Builder.Place(centralPlace, 0)
	res.Builder.Transition(recoveryT)
	res.Builder.TransitionMeta(recoveryT, "informational", "true")
	// centralPlace starts empty and nothing produces into it by default,
	// so recoveryT is never structurally enabled unless a caller wires a
	// producer into centralPlace — this is the "not wired into the
	// enable graph by default" requirement, expressed as an arc rather
	// than an isolated (and therefore vacuously always-enabled) transition.
	res.Builder.Arc(centralPlace, recoveryT, 1)
}

// Rule 7 — Timeout manager synthesis. If >= 1 step declares a timeout,
// a single timeout-manager place and check transition are added as
// metadata carriers; they are informational, not enabled
// by default (the check transition's only input is the manager place,
// which starts empty and has no producer).
func synthesizeTimeoutManager(res *compile.Result) {
	hasTimeout := false
	for _, step := range res.Spec.Steps {
		if step.TimeoutMs > 0 {
			hasTimeout = true
			break
		}
	}
	if !hasTimeout {
		return
	}
	const managerPlace = "__timeout_manager"
	const checkT = "__timeout_check"
	if res.Builder.HasPlace(managerPlace) {
		return
	}
	res.Builder.Place(managerPlace, 0)
	res.Builder.Transition(checkT)
	res.Builder.TransitionMeta(checkT, "informational", "true")
	// Same inert-by-default wiring as the global error handler above.
	res.Builder.Arc(managerPlace, checkT, 1)
}
