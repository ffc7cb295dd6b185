// Package compile implements the grammar compiler: it expands an
// intent.IntentSpec into a petri.PetriNet by expanding each step into
// its canonical fragment — places and transitions named
// stepID__suffix_counter (e.g. A__pre_1, A__act_3), with stepID__dep_N
// connector transitions for dependencies — and stitching fragments
// together along declared dependencies, generalized across all fourteen
// step types.
package compile

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/flowverify/core/intent"
	"github.com/flowverify/core/petri"
)

// UnsupportedStepType is a tier-2 compilation failure for a step whose
// Type is not one of the fourteen recognized tags.
type UnsupportedStepType struct {
	StepID string
	Type   intent.StepType
}

func (e *UnsupportedStepType) Error() string {
	return fmt.Sprintf("compile: step %q: unsupported step type %q", e.StepID, e.Type)
}

// UnknownDependency is a tier-2 compilation failure for a `needs` entry
// that does not resolve to a declared step. The compiler resolves all
// `needs` references before any other spec validation runs, so an
// unresolved dependency always surfaces as this type rather than as a
// generic intent.ValidationError.
type UnknownDependency struct {
	Step string
	Dep  string
}

func (e *UnknownDependency) Error() string {
	return fmt.Sprintf("compile: step %q: unknown dependency %q", e.Step, e.Dep)
}

// CompilationInvariantViolation wraps a structural-invariant failure
// from the underlying petri.Builder.Freeze call.
type CompilationInvariantViolation struct {
	Description string
}

func (e *CompilationInvariantViolation) Error() string {
	return fmt.Sprintf("compile: resulting net violates a structural invariant: %s", e.Description)
}

// fragment records the entry and exit node(s) a compiled step exposes
// for dependency stitching: the source step's exit node is a
// post-place, join-result place, or path place, depending on step type.
type fragment struct {
	entry string   // place id that starts this step
	exits []string // place id(s) dependents may stitch from; len>1 for Choice/NestedConditional
}

// Compiler expands an IntentSpec into a petri.Builder. It does not call
// Freeze; callers typically hand the builder to package rules before
// freezing.
type Compiler struct {
	b               *petri.Builder
	fragments       map[string]fragment
	joinTransitions map[string]string // Sync step id -> its join transition id
	semaphores      map[string]string // resource name -> semaphore place id
	counter         int
}

// Result is what Compile hands to the rule engine (package rules): the
// builder accumulated so far, plus the per-step bookkeeping the rules
// need and cannot recover from net structure alone (which steps are
// Parallel without a matching Sync, which steps declared a resource
// constraint, etc).
type Result struct {
	Builder *petri.Builder
	Spec    intent.IntentSpec

	// StepExits maps a step id to the exit place id(s) its fragment
	// exposes for dependency stitching (len>1 for Choice/NestedConditional).
	StepExits map[string][]string
	// StepEntry maps a step id to its fragment's entry place id ("" for
	// a Sync step fed purely by dependency branches).
	StepEntry map[string]string
	// HasMatchingSync records, for each Parallel/FanOutFanIn step id,
	// whether some Sync step declares it in Needs.
	HasMatchingSync map[string]bool
}

// Compile runs the grammar compiler over spec, returning a Result ready
// for the rule engine (package rules) or direct Builder.Freeze.
func Compile(spec intent.IntentSpec) (*Result, error) {
	byID := spec.ByID()
	for _, st := range spec.Steps {
		for _, dep := range st.Needs {
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependency{Step: st.ID, Dep: dep}
			}
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	c := &Compiler{
		b:               petri.NewBuilder(spec.Name),
		fragments:       make(map[string]fragment, len(spec.Steps)),
		joinTransitions: make(map[string]string),
		semaphores:      make(map[string]string),
	}

	order, err := topologicalOrder(spec)
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		step := byID[id]
		frag, err := c.compileStep(step)
		if err != nil {
			return nil, err
		}
		c.fragments[step.ID] = frag
	}

	for _, id := range order {
		step := byID[id]
		if err := c.stitch(step); err != nil {
			return nil, err
		}
	}

	if c.b.Err() != nil {
		return nil, &CompilationInvariantViolation{Description: c.b.Err().Error()}
	}

	result := &Result{
		Builder:         c.b,
		Spec:            spec,
		StepExits:       make(map[string][]string, len(c.fragments)),
		StepEntry:       make(map[string]string, len(c.fragments)),
		HasMatchingSync: make(map[string]bool),
	}
	for id, frag := range c.fragments {
		result.StepExits[id] = frag.exits
		result.StepEntry[id] = frag.entry
	}
	for _, step := range spec.Steps {
		if step.Type != intent.Sync {
			continue
		}
		for _, dep := range step.Needs {
			if depStep, ok := byID[dep]; ok && (depStep.Type == intent.Parallel || depStep.Type == intent.FanOutFanIn) {
				result.HasMatchingSync[dep] = true
			}
		}
	}
	return result, nil
}

// topologicalOrder returns step ids such that every step appears after
// all of its dependencies. intent.Validate has already rejected cycles.
func topologicalOrder(spec intent.IntentSpec) ([]string, error) {
	byID := spec.ByID()
	visited := make(map[string]int) // 0=unvisited,1=visiting,2=done
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] == 2 {
			return nil
		}
		step, ok := byID[id]
		if !ok {
			return &UnknownDependency{Step: id, Dep: id}
		}
		visited[id] = 1
		deps := append([]string(nil), step.Needs...)
		sort.Strings(deps)
		for _, d := range deps {
			if _, ok := byID[d]; !ok {
				return &UnknownDependency{Step: id, Dep: d}
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		visited[id] = 2
		order = append(order, id)
		return nil
	}

	for _, step := range spec.Steps {
		if err := visit(step.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// fresh generates a deterministic, collision-free id in the
// stepID__suffix_counter namespacing scheme. If that name is already
// taken — which cannot happen within a single Compile call, but can
// when a caller merges builders from two separate compilations — a
// github.com/google/uuid v4 is appended as a uniqueness fallback.
// This is scaffolding for that merge case only, never the default path:
// default ids must stay deterministic for reproducible traces.
func (c *Compiler) fresh(stepID, suffix string) string {
	c.counter++
	id := fmt.Sprintf("%s__%s_%d", stepID, suffix, c.counter)
	if c.b.HasPlace(id) || c.b.HasTransition(id) {
		id = fmt.Sprintf("%s__%s_%s", stepID, suffix, uuid.New().String())
	}
	return id
}

func (c *Compiler) taggedPlace(stepID, suffix string, initial int) string {
	id := c.fresh(stepID, suffix)
	c.b.Place(id, initial)
	c.b.PlaceMeta(id, petri.MetaStepID, stepID)
	return id
}

func (c *Compiler) taggedTransition(stepID, suffix, guard string) string {
	id := c.fresh(stepID, suffix)
	c.b.TransitionWithGuard(id, guard)
	c.b.TransitionMeta(id, petri.MetaStepID, stepID)
	return id
}

func (c *Compiler) compileStep(step intent.IntentStep) (fragment, error) {
	switch step.Type {
	case intent.Action:
		return c.compileAction(step)
	case intent.PipelineStage:
		return c.compileAction(step) // same fragment shape, distinct provenance
	case intent.Sequence:
		return c.compileSequence(step)
	case intent.Choice:
		return c.compileChoice(step)
	case intent.Parallel, intent.FanOutFanIn:
		return c.compileParallel(step)
	case intent.Sync:
		return c.compileSync(step)
	case intent.NestedConditional:
		return c.compileNestedConditional(step)
	case intent.Loop:
		return c.compileLoop(step)
	case intent.EventTrigger:
		return c.compileEventTrigger(step)
	case intent.ErrorHandler:
		return c.compileErrorHandler(step)
	case intent.Compensation:
		return c.compileCompensation(step)
	case intent.CircuitBreaker:
		return c.compileCircuitBreaker(step)
	case intent.ResourceConstrained:
		return c.compileResourceConstrained(step)
	default:
		return fragment{}, &UnsupportedStepType{StepID: step.ID, Type: step.Type}
	}
}

func (c *Compiler) compileAction(step intent.IntentStep) (fragment, error) {
	pre := c.taggedPlace(step.ID, "pre", 0)
	post := c.taggedPlace(step.ID, "post", 0)
	act := c.taggedTransition(step.ID, "act", step.Guard)
	c.b.Flow(pre, act, post, 1)
	return fragment{entry: pre, exits: []string{post}}, nil
}

// compileSequence produces a single join place used both as entry and
// exit; it carries no transition of its own and exists purely to give
// dependents a place to stitch from.
func (c *Compiler) compileSequence(step intent.IntentStep) (fragment, error) {
	p := c.taggedPlace(step.ID, "sync", 0)
	return fragment{entry: p, exits: []string{p}}, nil
}

// branchNames derives a Choice/NestedConditional step's branch labels
// and per-branch guards from its metadata: Meta["branches"] is a
// comma-separated list of names; Meta["guard:"+name] is that branch's
// guard. Absent metadata, the step degrades to a two-way choice of
// "then" (guarded by step.Guard) and "else" (unguarded), which keeps a
// bare Choice step compilable without requiring callers to always spell
// out branch metadata.
func branchNames(step intent.IntentStep) []string {
	if raw, ok := step.Meta["branches"]; ok && raw != "" {
		var names []string
		start := 0
		for i := 0; i <= len(raw); i++ {
			if i == len(raw) || raw[i] == ',' {
				if i > start {
					names = append(names, raw[start:i])
				}
				start = i + 1
			}
		}
		return names
	}
	return []string{"then", "else"}
}

func branchGuard(step intent.IntentStep, name string) string {
	if g, ok := step.Meta["guard:"+name]; ok {
		return g
	}
	if name == "then" {
		return step.Guard
	}
	return ""
}

func (c *Compiler) compileChoice(step intent.IntentStep) (fragment, error) {
	pre := c.taggedPlace(step.ID, "pre", 0)
	var exits []string
	for _, name := range branchNames(step) {
		t := c.taggedTransition(step.ID, "branch_"+name, branchGuard(step, name))
		post := c.taggedPlace(step.ID, "path_"+name, 0)
		c.b.Arc(pre, t, 1).Arc(t, post, 1)
		exits = append(exits, post)
	}
	return fragment{entry: pre, exits: exits}, nil
}

func (c *Compiler) compileParallel(step intent.IntentStep) (fragment, error) {
	pre := c.taggedPlace(step.ID, "pre", 0)
	fork := c.taggedTransition(step.ID, "fork", step.Guard)
	c.b.Arc(pre, fork, 1)
	branches := branchNames(step)
	var exits []string
	for _, name := range branches {
		branch := c.taggedPlace(step.ID, "branch_"+name, 0)
		c.b.Arc(fork, branch, 1)
		exits = append(exits, branch)
	}
	if step.Type == intent.FanOutFanIn {
		c.b.TransitionMeta(fork, "joinDiscipline", string(step.JoinDiscipline))
	}
	return fragment{entry: pre, exits: exits}, nil
}

// compileSync expects its branch places to already exist as exits of
// whichever Parallel/FanOutFanIn step it depends on; the stitching pass
// (stitch) wires those branch exits as the join transition's inputs
// instead of synthesizing a connector, since Sync's whole purpose is to
// BE the join. A Sync step declared standalone (no needs) gets its own
// single pre place, matching the table's `{P_branch_i} -> T_join -> P_post`.
func (c *Compiler) compileSync(step intent.IntentStep) (fragment, error) {
	post := c.taggedPlace(step.ID, "post", 0)
	join := c.taggedTransition(step.ID, "join", step.Guard)
	c.joinTransitions[step.ID] = join
	c.b.TransitionMeta(join, "joinDiscipline", string(orDefault(step.JoinDiscipline, intent.JoinAll)))
	c.b.Arc(join, post, 1)
	if len(step.Needs) == 0 {
		pre := c.taggedPlace(step.ID, "pre", 0)
		c.b.Arc(pre, join, 1)
		return fragment{entry: pre, exits: []string{post}}, nil
	}
	// entry is meaningless when fed purely by dependency branches; exit
	// is the join's post place. stitch() wires join's inputs directly.
	return fragment{entry: "", exits: []string{post}}, nil
}

func orDefault(jd intent.JoinDiscipline, def intent.JoinDiscipline) intent.JoinDiscipline {
	if jd == "" {
		return def
	}
	return jd
}

func (c *Compiler) compileNestedConditional(step intent.IntentStep) (fragment, error) {
	root := c.taggedPlace(step.ID, "root", 0)
	var exits []string
	for _, name := range branchNames(step) {
		t := c.taggedTransition(step.ID, "cond_"+name, branchGuard(step, name))
		result := c.taggedPlace(step.ID, "result_"+name, 0)
		c.b.Arc(root, t, 1).Arc(t, result, 1)
		exits = append(exits, result)
	}
	return fragment{entry: root, exits: exits}, nil
}

func (c *Compiler) compileLoop(step intent.IntentStep) (fragment, error) {
	entryPlace := c.taggedPlace(step.ID, "entry", 0)
	body := c.taggedTransition(step.ID, "body", step.Guard)
	check := c.taggedTransition(step.ID, "check", step.LoopCondition)
	exit := c.taggedPlace(step.ID, "exit", 0)
	c.b.Arc(entryPlace, body, 1).Arc(body, entryPlace, 1)
	c.b.Arc(entryPlace, check, 1).Arc(check, exit, 1)
	return fragment{entry: entryPlace, exits: []string{exit}}, nil
}

func (c *Compiler) compileEventTrigger(step intent.IntentStep) (fragment, error) {
	wait := c.taggedPlace(step.ID, "wait", 0)
	fire := c.taggedTransition(step.ID, "fire", step.Guard)
	c.b.TransitionMeta(fire, "externallyFirable", "true")
	triggered := c.taggedPlace(step.ID, "triggered", 0)
	c.b.Arc(wait, fire, 1).Arc(fire, triggered, 1)
	return fragment{entry: wait, exits: []string{triggered}}, nil
}

func (c *Compiler) compileErrorHandler(step intent.IntentStep) (fragment, error) {
	try := c.taggedPlace(step.ID, "try", 0)
	exec := c.taggedTransition(step.ID, "exec", step.Guard)
	success := c.taggedPlace(step.ID, "success", 0)
	errPlace := c.taggedPlace(step.ID, "error", 0)
	c.b.Arc(try, exec, 1).Arc(exec, success, 1).Arc(exec, errPlace, 1)

	catch := c.taggedTransition(step.ID, "catch", "")
	caught := c.taggedPlace(step.ID, "caught", 0)
	c.b.Arc(errPlace, catch, 1).Arc(catch, caught, 1)

	complete := c.taggedPlace(step.ID, "complete", 0)
	finallyOK := c.taggedTransition(step.ID, "finally_ok", "")
	finallyErr := c.taggedTransition(step.ID, "finally_err", "")
	c.b.Arc(success, finallyOK, 1).Arc(finallyOK, complete, 1)
	c.b.Arc(caught, finallyErr, 1).Arc(finallyErr, complete, 1)

	if step.RetryPolicy != nil {
		c.b.TransitionMeta(catch, "onFailure", string(step.RetryPolicy.OnExhausted))
	}
	return fragment{entry: try, exits: []string{complete}}, nil
}

func (c *Compiler) compileCompensation(step intent.IntentStep) (fragment, error) {
	pre := c.taggedPlace(step.ID, "pre", 0)
	actions := step.CompensationActions
	if len(actions) == 0 {
		actions = []string{"default"}
	}
	if len(actions) == 1 {
		t := c.taggedTransition(step.ID, "comp_"+actions[0], "")
		post := c.taggedPlace(step.ID, "post", 0)
		c.b.Arc(pre, t, 1).Arc(t, post, 1)
		return fragment{entry: pre, exits: []string{post}}, nil
	}
	var branchPosts []string
	for _, action := range actions {
		t := c.taggedTransition(step.ID, "comp_"+action, "")
		post := c.taggedPlace(step.ID, "post_"+action, 0)
		c.b.Arc(pre, t, 1).Arc(t, post, 1)
		branchPosts = append(branchPosts, post)
	}
	joinT := c.taggedTransition(step.ID, "comp_join", "")
	final := c.taggedPlace(step.ID, "post", 0)
	for _, p := range branchPosts {
		c.b.Arc(p, joinT, 1)
	}
	c.b.Arc(joinT, final, 1)
	return fragment{entry: pre, exits: []string{final}}, nil
}

func (c *Compiler) compileCircuitBreaker(step intent.IntentStep) (fragment, error) {
	closed := c.taggedPlace(step.ID, "closed", 0)
	halfOpen := c.taggedPlace(step.ID, "half_open", 0)
	open := c.taggedPlace(step.ID, "open", 0)
	executed := c.taggedPlace(step.ID, "executed", 0)
	c.b.PlaceMeta(closed, "circuitBreakerInitial", "true")

	execT := c.taggedTransition(step.ID, "execute", step.Guard)
	c.b.Arc(closed, execT, 1).Arc(execT, executed, 1)

	trip := c.taggedTransition(step.ID, "trip", "")
	c.b.Arc(closed, trip, 1).Arc(trip, open, 1)

	reset := c.taggedTransition(step.ID, "reset_timeout", "")
	c.b.Arc(open, reset, 1).Arc(reset, halfOpen, 1)

	retryOK := c.taggedTransition(step.ID, "retry_ok", "")
	c.b.Arc(halfOpen, retryOK, 1).Arc(retryOK, closed, 1)

	retryFail := c.taggedTransition(step.ID, "retry_fail", "")
	c.b.Arc(halfOpen, retryFail, 1).Arc(retryFail, open, 1)

	return fragment{entry: closed, exits: []string{executed}}, nil
}

func (c *Compiler) compileResourceConstrained(step intent.IntentStep) (fragment, error) {
	pre := c.taggedPlace(step.ID, "pre", 0)
	post := c.taggedPlace(step.ID, "post", 0)
	running := c.taggedPlace(step.ID, "running", 0)

	resources := make([]string, 0, len(step.ResourceConstraints))
	for resource := range step.ResourceConstraints {
		resources = append(resources, resource)
	}
	sort.Strings(resources)
	for _, resource := range resources {
		capacity := step.ResourceConstraints[resource]
		sem := c.resourceSemaphore(resource, capacity)
		acquire := c.taggedTransition(step.ID, "acquire_"+resource, step.Guard)
		c.b.Arc(pre, acquire, 1).Arc(sem, acquire, 1).Arc(acquire, running, 1)

		release := c.taggedTransition(step.ID, "release_"+resource, "")
		c.b.Arc(running, release, 1).Arc(release, post, 1).Arc(release, sem, 1)
	}
	if len(step.ResourceConstraints) == 0 {
		// no declared resource: behaves like a plain Action.
		act := c.taggedTransition(step.ID, "act", step.Guard)
		c.b.Arc(pre, act, 1).Arc(act, post, 1)
	}
	return fragment{entry: pre, exits: []string{post}}, nil
}

// resourceSemaphore returns the place id for a shared semaphore for the
// given resource name, creating it (seeded with capacity) on first use.
// Multiple ResourceConstrained steps sharing a resource name reuse the
// same place, seeded with the first step's capacity; the rule engine's
// shared-resource-pool rule later re-seeds it with the sum of all the
// declared capacities.
func (c *Compiler) resourceSemaphore(resource string, capacity int) string {
	if id, ok := c.semaphores[resource]; ok {
		return id
	}
	id := "resource__" + resource
	c.semaphores[resource] = id
	c.b.Place(id, capacity)
	c.b.PlaceMeta(id, "isSemaphore", resource)
	return id
}

// stitch connects step's entry node to the exit node(s) of its
// dependencies, inserting an isDependencyConnector transition whenever
// both endpoints would otherwise be places. A Sync step
// wires its join transition directly to its dependencies' exit places
// instead of going through a connector, since the join transition IS
// the AND-join point.
func (c *Compiler) stitch(step intent.IntentStep) error {
	if len(step.Needs) == 0 {
		frag := c.fragments[step.ID]
		if frag.entry != "" {
			c.b.InitialToken(frag.entry, 1)
		}
		return nil
	}

	if step.Type == intent.Sync {
		return c.stitchSyncJoin(step)
	}

	entry := c.fragments[step.ID].entry
	if entry == "" {
		return nil
	}

	depExits := make([][]string, 0, len(step.Needs))
	for _, dep := range step.Needs {
		frag, ok := c.fragments[dep]
		if !ok {
			return &UnknownDependency{Step: step.ID, Dep: dep}
		}
		depExits = append(depExits, frag.exits)
	}

	allSingle := true
	for _, exits := range depExits {
		if len(exits) != 1 {
			allSingle = false
			break
		}
	}

	if allSingle {
		connector := c.taggedTransition(step.ID, "dep", "")
		c.b.TransitionMeta(connector, petri.MetaIsDependencyConnector, "true")
		for _, exits := range depExits {
			c.b.Arc(exits[0], connector, 1)
		}
		c.b.Arc(connector, entry, 1)
		return nil
	}

	// A branching dependency (Choice/NestedConditional) stitches via one
	// connector per exit place, so any branch alone can enable the
	// dependent step. These per-branch connectors are kept as they are:
	// the rule engine's choice-merge rule skips branch places that are
	// already wired, so no merged place is synthesized for them.
	for _, exits := range depExits {
		for _, exit := range exits {
			connector := c.taggedTransition(step.ID, "dep", "")
			c.b.TransitionMeta(connector, petri.MetaIsDependencyConnector, "true")
			c.b.Arc(exit, connector, 1)
			c.b.Arc(connector, entry, 1)
		}
	}
	return nil
}

func (c *Compiler) stitchSyncJoin(step intent.IntentStep) error {
	join, ok := c.joinTransitions[step.ID]
	if !ok {
		return fmt.Errorf("compile: internal error: Sync step %q has no join transition", step.ID)
	}
	for _, dep := range step.Needs {
		frag, ok := c.fragments[dep]
		if !ok {
			return &UnknownDependency{Step: step.ID, Dep: dep}
		}
		for _, exit := range frag.exits {
			c.b.Arc(exit, join, 1)
		}
	}
	return nil
}
