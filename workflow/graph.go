package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Definition is the raw table a Graph is built from.
type Definition struct {
	// Edges maps every canonical state to its allowed next states.
	// A state with no outgoing edges must still have an entry.
	Edges map[State][]State

	// Stages maps every state to its stage label. Optional.
	Stages map[State]Stage

	// Progress maps states to a completion percentage in [0,100].
	// States without an entry report 0.
	Progress map[State]int

	// Rejections lists rejection and cancellation states. They always
	// report progress 0.
	Rejections []State

	// Aliases maps legacy names to canonical states.
	Aliases map[State]State
}

// Graph is an immutable status transition table.
// It is safe for concurrent use.
type Graph struct {
	edges      map[State][]State
	stages     map[State]Stage
	progress   map[State]int
	rejections map[State]bool
	aliases    map[State]State
	states     []State
}

// TransitionInfo describes a requested transition.
type TransitionInfo struct {
	From        State   `json:"from"`
	To          State   `json:"to"`
	Valid       bool    `json:"valid"`
	AllowedNext []State `json:"allowedNext"`
	Reason      string  `json:"reason"`
}

// NewGraph builds a Graph from def after checking its invariants.
// The returned error wraps ErrInvalidGraph.
func NewGraph(def Definition) (*Graph, error) {
	if len(def.Edges) == 0 {
		return nil, fmt.Errorf("%w: no states", ErrInvalidGraph)
	}

	g := &Graph{
		edges:      make(map[State][]State, len(def.Edges)),
		stages:     make(map[State]Stage, len(def.Stages)),
		progress:   make(map[State]int, len(def.Progress)),
		rejections: make(map[State]bool, len(def.Rejections)),
		aliases:    make(map[State]State, len(def.Aliases)),
	}

	for alias, target := range def.Aliases {
		if _, ok := def.Edges[alias]; ok {
			return nil, fmt.Errorf("%w: alias %s shadows a canonical state", ErrInvalidGraph, alias)
		}
		if _, ok := def.Edges[target]; !ok {
			return nil, fmt.Errorf("%w: alias %s targets unknown state %s", ErrInvalidGraph, alias, target)
		}
		g.aliases[alias] = target
	}

	for from, next := range def.Edges {
		targets := make([]State, 0, len(next))
		for _, to := range next {
			to = g.canonical(to)
			if _, ok := def.Edges[to]; !ok {
				return nil, fmt.Errorf("%w: %s -> %s targets a state with no entry", ErrInvalidGraph, from, to)
			}
			if !slices.Contains(targets, to) {
				targets = append(targets, to)
			}
		}
		slices.Sort(targets)
		g.edges[from] = targets
		g.states = append(g.states, from)
	}
	slices.Sort(g.states)

	for _, s := range def.Rejections {
		g.rejections[g.canonical(s)] = true
	}

	for s, p := range def.Progress {
		if p < 0 || p > 100 {
			return nil, fmt.Errorf("%w: progress %d of %s out of range", ErrInvalidGraph, p, s)
		}
		g.progress[g.canonical(s)] = p
	}
	for s := range g.rejections {
		g.progress[s] = 0
	}

	if len(def.Stages) > 0 {
		for s, stage := range def.Stages {
			g.stages[g.canonical(s)] = stage
		}
		for _, s := range g.states {
			if _, ok := g.stages[s]; !ok {
				return nil, fmt.Errorf("%w: state %s has no stage", ErrInvalidGraph, s)
			}
		}
	}

	for _, from := range g.states {
		if g.rejections[from] {
			continue
		}
		for _, to := range g.edges[from] {
			if g.rejections[to] {
				continue
			}
			if g.progress[to] < g.progress[from] {
				return nil, fmt.Errorf("%w: progress decreases on %s (%d) -> %s (%d)",
					ErrInvalidGraph, from, g.progress[from], to, g.progress[to])
			}
		}
	}

	return g, nil
}

// MustGraph is like NewGraph but panics on an invalid definition.
func MustGraph(def Definition) *Graph {
	g, err := NewGraph(def)
	if err != nil {
		panic(err)
	}
	return g
}

// Canonical resolves s through the graph's aliases.
func (g *Graph) Canonical(s State) State {
	return g.canonical(s)
}

func (g *Graph) canonical(s State) State {
	if c, ok := g.aliases[s]; ok {
		return c
	}
	return s
}

// IsValidTransition reports whether to is an allowed next state of from.
// Unknown states have no allowed transitions.
func (g *Graph) IsValidTransition(from, to State) bool {
	return slices.Contains(g.edges[g.canonical(from)], g.canonical(to))
}

// NextStates returns the allowed next states of s, sorted.
// The result is a copy and may be modified by the caller.
func (g *Graph) NextStates(s State) []State {
	next := g.edges[g.canonical(s)]
	if len(next) == 0 {
		return []State{}
	}
	return slices.Clone(next)
}

// Validate returns a *ValidationError wrapping ErrInvalidTransition when
// the transition is not allowed.
func (g *Graph) Validate(from, to State) error {
	if g.IsValidTransition(from, to) {
		return nil
	}
	return &ValidationError{
		From:    from,
		To:      to,
		Allowed: g.NextStates(from),
		Err:     ErrInvalidTransition,
	}
}

// IsTerminal reports whether s has no outgoing transitions.
func (g *Graph) IsTerminal(s State) bool {
	return len(g.edges[g.canonical(s)]) == 0
}

// IsRejection reports whether s is a rejection or cancellation state.
func (g *Graph) IsRejection(s State) bool {
	return g.rejections[g.canonical(s)]
}

// IsKnown reports whether s or the state it aliases has a table entry.
func (g *Graph) IsKnown(s State) bool {
	_, ok := g.edges[g.canonical(s)]
	return ok
}

// StageOf returns the stage of s, or StageUnknown.
func (g *Graph) StageOf(s State) Stage {
	if stage, ok := g.stages[g.canonical(s)]; ok {
		return stage
	}
	return StageUnknown
}

// ProgressOf returns the completion percentage of s in [0,100].
// Unknown, rejection and cancellation states report 0.
func (g *Graph) ProgressOf(s State) int {
	return g.progress[g.canonical(s)]
}

// TransitionInfo describes the transition from -> to.
func (g *Graph) TransitionInfo(from, to State) TransitionInfo {
	info := TransitionInfo{
		From:        from,
		To:          to,
		Valid:       g.IsValidTransition(from, to),
		AllowedNext: g.NextStates(to),
		Reason:      "valid transition",
	}
	if !info.Valid {
		info.Reason = fmt.Sprintf("invalid transition; allowed from %s: %s", from, joinStates(g.NextStates(from)))
	}
	return info
}

// Transitions returns a copy of the full transition table.
func (g *Graph) Transitions() map[State][]State {
	out := make(map[State][]State, len(g.edges))
	for s, next := range g.edges {
		out[s] = slices.Clone(next)
	}
	return out
}

// States returns every canonical state, sorted.
func (g *Graph) States() []State {
	return slices.Clone(g.states)
}

// Path returns a shortest chain of legal transitions from -> to, both
// ends included. It returns nil when to is unreachable.
func (g *Graph) Path(from, to State) []State {
	from, to = g.canonical(from), g.canonical(to)
	if !g.IsKnown(from) || !g.IsKnown(to) {
		return nil
	}

	prev := map[State]State{from: from}
	queue := []State{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			break
		}
		for _, next := range g.edges[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}

	if _, ok := prev[to]; !ok {
		return nil
	}
	var path []State
	for s := to; s != from; s = prev[s] {
		path = append(path, s)
	}
	path = append(path, from)
	slices.Reverse(path)
	return path
}

// IsInvalidTransition reports whether err is a rejected transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func joinStates(states []State) string {
	if len(states) == 0 {
		return "none"
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
