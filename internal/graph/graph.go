// Package graph implements a small LangGraph-inspired state-graph engine:
// nodes mutate a shared state value, edges (plain or conditional) route
// between them, and CompiledGraph.Invoke runs frontier-by-frontier until
// the graph reaches End or exhausts its iteration budget.
package graph

import (
	"context"
	"fmt"
)

// Start and End are sentinel node names. Start never runs a function —
// add_edge(Start, "node") only designates the entry point. End halts
// execution along whatever branch reaches it.
const (
	Start = "__start__"
	End   = "__end__"
)

// NodeFunc processes state and returns a partial update to merge in.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// ConditionFunc inspects state and returns the name of the next node
// (or a key resolved through a path map).
type ConditionFunc[S any] func(ctx context.Context, state S) (string, error)

type edgeType int

const (
	edgeNormal edgeType = iota
	edgeConditional
)

type edge[S any] struct {
	source    string
	target    string
	edgeType  edgeType
	condition ConditionFunc[S]
	pathMap   map[string]string
}

type node[S any] struct {
	name string
	fn   NodeFunc[S]
}

// Reducer merges a node's update into the accumulated value of one
// state field. Go has no structural field introspection, so reducers
// are registered explicitly by field name rather than inferred from a
// type annotation the way the reference implementation reads one off
// typing.Annotated.
type Reducer func(current, update any) any

// StateGraph builds a graph of nodes and edges over state type S.
// Call Compile to produce an executable CompiledGraph.
type StateGraph[S any] struct {
	nodes       map[string]node[S]
	edges       []edge[S]
	entryPoint  string
	reducers    map[string]Reducer
	merge       func(current, update S, reducers map[string]Reducer) S
}

// New builds an empty StateGraph. merge combines a node's returned
// update into the running state; most callers can pass a function that
// just returns update (full replacement) or one that shallow-merges via
// reflection/struct-specific logic plus any registered Reducers.
func New[S any](merge func(current, update S, reducers map[string]Reducer) S) *StateGraph[S] {
	return &StateGraph[S]{
		nodes:    make(map[string]node[S]),
		reducers: make(map[string]Reducer),
		merge:    merge,
	}
}

// AddReducer registers a merge function for one named state field, used
// by callers whose merge function consults g.reducers (e.g. to combine
// parallel branch updates to the same field, such as appending to a
// shared list instead of overwriting it).
func (g *StateGraph[S]) AddReducer(field string, fn Reducer) *StateGraph[S] {
	g.reducers[field] = fn
	return g
}

// AddNode registers a node's processing function. Adding a node under a
// name that already exists panics immediately rather than waiting for
// Compile.
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *StateGraph[S] {
	if _, exists := g.nodes[name]; exists {
		panic(fmt.Sprintf("graph: node %q already exists", name))
	}
	g.nodes[name] = node[S]{name: name, fn: fn}
	return g
}

// AddEdge adds an unconditional edge. AddEdge(Start, "node") also sets
// the entry point.
func (g *StateGraph[S]) AddEdge(source, target string) *StateGraph[S] {
	if source == Start {
		g.entryPoint = target
	}
	g.edges = append(g.edges, edge[S]{source: source, target: target, edgeType: edgeNormal})
	return g
}

// AddConditionalEdges adds a conditional edge: condition's return value
// is looked up in pathMap (nil pathMap means the condition's return
// value IS the target name).
func (g *StateGraph[S]) AddConditionalEdges(source string, condition ConditionFunc[S], pathMap map[string]string) *StateGraph[S] {
	g.edges = append(g.edges, edge[S]{
		source:    source,
		edgeType:  edgeConditional,
		condition: condition,
		pathMap:   pathMap,
	})
	return g
}

// SetEntryPoint overrides the entry point determined by AddEdge(Start, ...).
func (g *StateGraph[S]) SetEntryPoint(name string) *StateGraph[S] {
	g.entryPoint = name
	return g
}

// Nodes returns every registered node name.
func (g *StateGraph[S]) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	return names
}

// Edges returns every unconditional (source, target) pair.
func (g *StateGraph[S]) Edges() [][2]string {
	var out [][2]string
	for _, e := range g.edges {
		if e.edgeType == edgeNormal {
			out = append(out, [2]string{e.source, e.target})
		}
	}
	return out
}

// Compile validates the graph (an entry point exists and names a real
// node, every normal edge's endpoints are valid) and returns an
// executable CompiledGraph.
func (g *StateGraph[S]) Compile() (*CompiledGraph[S], error) {
	entryPoint := g.entryPoint
	if entryPoint == "" {
		for _, e := range g.edges {
			if e.source == Start {
				entryPoint = e.target
				break
			}
		}
	}
	if entryPoint == "" {
		return nil, fmt.Errorf("graph: no entry point defined; use AddEdge(Start, node) or SetEntryPoint")
	}
	if entryPoint != End {
		if _, ok := g.nodes[entryPoint]; !ok {
			return nil, fmt.Errorf("graph: entry point %q is not a valid node", entryPoint)
		}
	}

	for _, e := range g.edges {
		if e.edgeType != edgeNormal {
			continue
		}
		if e.source != Start {
			if _, ok := g.nodes[e.source]; !ok {
				return nil, fmt.Errorf("graph: edge source %q is not a valid node", e.source)
			}
		}
		if e.target != End {
			if _, ok := g.nodes[e.target]; !ok {
				return nil, fmt.Errorf("graph: edge target %q is not a valid node", e.target)
			}
		}
	}

	adjacency := make(map[string][]edge[S])
	for _, e := range g.edges {
		adjacency[e.source] = append(adjacency[e.source], e)
	}

	return &CompiledGraph[S]{
		nodes:      g.nodes,
		adjacency:  adjacency,
		entryPoint: entryPoint,
		merge:      g.merge,
		reducers:   g.reducers,
	}, nil
}
