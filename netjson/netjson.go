// Package netjson serializes and parses a frozen *petri.PetriNet
// directly as JSON: a places-map plus transitions-map plus arcs-list
// shape carrying a single integer weight/capacity/marking per entry.
// This lets a caller hand the CLI a fully-built net directly instead
// of an IntentSpec run through compile and rules. Depended on only by
// cmd/ — like ciyaml, it is never imported by the core packages
// (petri, compile, rules, explore, validate, simulate, dagproj),
// keeping parsing concerns out of the core data model.
package netjson

import (
	"encoding/json"
	"fmt"

	"github.com/flowverify/core/petri"
)

type placeDoc struct {
	Initial  int               `json:"initial"`
	Capacity int               `json:"capacity"`
	Meta     map[string]string `json:"meta,omitempty"`
}

type transitionDoc struct {
	Guard  string            `json:"guard,omitempty"`
	Action string            `json:"action,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

type arcDoc struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

type netDoc struct {
	Name        string                   `json:"name"`
	Places      map[string]placeDoc      `json:"places"`
	Transitions map[string]transitionDoc `json:"transitions"`
	Arcs        []arcDoc                 `json:"arcs"`
	Meta        map[string]string        `json:"meta,omitempty"`
}

// FromJSON parses a frozen *petri.PetriNet from its JSON representation.
func FromJSON(data []byte) (*petri.PetriNet, error) {
	var doc netDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("netjson: invalid JSON: %w", err)
	}
	if len(doc.Places) == 0 {
		return nil, fmt.Errorf("netjson: no places declared")
	}

	b := petri.NewBuilder(doc.Name)
	for id, p := range doc.Places {
		b.PlaceWithCapacity(id, p.Initial, p.Capacity)
		for k, v := range p.Meta {
			b.PlaceMeta(id, k, v)
		}
	}
	for id, t := range doc.Transitions {
		b.TransitionWithGuard(id, t.Guard)
		for k, v := range t.Meta {
			b.TransitionMeta(id, k, v)
		}
	}
	for _, a := range doc.Arcs {
		b.Arc(a.From, a.To, a.Weight)
	}
	for k, v := range doc.Meta {
		b.Meta(k, v)
	}
	// Builder has no TransitionWithAction; set the field directly on the
	// not-yet-frozen Transition, as Builder.Transitions() exposes live
	// pointers up until Freeze copies them into the immutable net.
	for _, t := range b.Transitions() {
		if d, ok := doc.Transitions[t.ID]; ok {
			t.Action = d.Action
		}
	}

	net, err := b.Freeze()
	if err != nil {
		return nil, fmt.Errorf("netjson: %w", err)
	}
	return net, nil
}

// ToJSON serializes a frozen *petri.PetriNet to the same JSON shape FromJSON reads.
func ToJSON(net *petri.PetriNet) ([]byte, error) {
	doc := netDoc{
		Name:        net.Name,
		Places:      make(map[string]placeDoc, net.NumPlaces()),
		Transitions: make(map[string]transitionDoc, net.NumTransitions()),
		Meta:        net.Meta,
	}
	initial := net.Initial()
	for _, p := range net.Places() {
		doc.Places[p.ID] = placeDoc{Initial: initial.Get(p.ID), Capacity: p.Capacity, Meta: p.Meta}
	}
	for _, t := range net.Transitions() {
		doc.Transitions[t.ID] = transitionDoc{Guard: t.Guard, Action: t.Action, Meta: t.Meta}
	}
	for _, a := range net.Arcs() {
		doc.Arcs = append(doc.Arcs, arcDoc{From: a.From, To: a.To, Weight: a.Weight})
	}
	return json.MarshalIndent(doc, "", "  ")
}
