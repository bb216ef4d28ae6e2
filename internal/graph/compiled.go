package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// CompiledGraph is an executable, validated StateGraph. Build one via
// StateGraph.Compile.
type CompiledGraph[S any] struct {
	nodes      map[string]node[S]
	adjacency  map[string][]edge[S]
	entryPoint string
	merge      func(current, update S, reducers map[string]Reducer) S
	reducers   map[string]Reducer
}

// RunConfig bounds one Invoke/Stream call.
type RunConfig struct {
	MaxIterations int
}

// DefaultRunConfig matches the reference implementation's default
// iteration budget.
func DefaultRunConfig() RunConfig {
	return RunConfig{MaxIterations: 100}
}

// EventType labels a StreamEvent.
type EventType string

const (
	EventNodeStart EventType = "node_start"
	EventNodeEnd   EventType = "node_end"
	EventDone      EventType = "done"
)

// StreamEvent reports one step of a Stream call.
type StreamEvent[S any] struct {
	Type  EventType
	Node  string
	State S
	Err   error
}

func (g *CompiledGraph[S]) nextNodes(ctx context.Context, current string, state S) ([]string, error) {
	var next []string
	for _, e := range g.adjacency[current] {
		switch e.edgeType {
		case edgeNormal:
			next = append(next, e.target)
		case edgeConditional:
			key, err := e.condition(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("graph: condition at node %q: %w", current, err)
			}
			target := key
			if e.pathMap != nil {
				mapped, ok := e.pathMap[key]
				if !ok {
					return nil, fmt.Errorf("graph: condition at node %q returned %q, not present in path map", current, key)
				}
				target = mapped
			}
			next = append(next, target)
		}
	}
	return next, nil
}

func (g *CompiledGraph[S]) executeNode(ctx context.Context, name string, state S) (S, error) {
	if name == End {
		var zero S
		return zero, nil
	}
	n, ok := g.nodes[name]
	if !ok {
		var zero S
		return zero, fmt.Errorf("graph: unknown node %q", name)
	}
	return n.fn(ctx, state)
}

// Invoke runs the graph to completion (End reached on every live branch,
// or cfg.MaxIterations exhausted) and returns the final merged state.
func (g *CompiledGraph[S]) Invoke(ctx context.Context, initial S, cfg RunConfig) (S, error) {
	if cfg.MaxIterations <= 0 {
		cfg = DefaultRunConfig()
	}

	state := initial
	current := []string{g.entryPoint}
	visitedEnd := false

	for i := 0; i < cfg.MaxIterations && !visitedEnd; i++ {
		executable := dedupeLive(current)
		if len(executable) == 0 {
			break
		}

		switch len(executable) {
		case 1:
			name := executable[0]
			if name == End {
				visitedEnd = true
				break
			}
			update, err := g.executeNode(ctx, name, state)
			if err != nil {
				var zero S
				return zero, fmt.Errorf("graph: node %q: %w", name, err)
			}
			state = g.merge(state, update, g.reducers)
			next, err := g.nextNodes(ctx, name, state)
			if err != nil {
				var zero S
				return zero, err
			}
			current = next
		default:
			updates := make([]S, len(executable))
			group, gctx := errgroup.WithContext(ctx)
			for idx, name := range executable {
				idx, name := idx, name
				if name == End {
					continue
				}
				group.Go(func() error {
					update, err := g.executeNode(gctx, name, state)
					if err != nil {
						return fmt.Errorf("graph: node %q: %w", name, err)
					}
					updates[idx] = update
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				var zero S
				return zero, err
			}

			var nextSet []string
			seen := make(map[string]bool)
			for idx, name := range executable {
				if name == End {
					// End terminates only this branch; the others go on.
					continue
				}
				state = g.merge(state, updates[idx], g.reducers)
				next, err := g.nextNodes(ctx, name, state)
				if err != nil {
					var zero S
					return zero, err
				}
				for _, n := range next {
					if !seen[n] {
						seen[n] = true
						nextSet = append(nextSet, n)
					}
				}
			}
			current = nextSet
		}

		if visitedEnd {
			break
		}
		if len(current) == 1 && current[0] == End {
			visitedEnd = true
		}
	}

	return state, nil
}

// dedupeLive removes duplicate node names while preserving order.
func dedupeLive(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Stream runs the graph like Invoke but emits a StreamEvent per node
// executed, on the returned channel, which is closed when the run ends
// (with a final EventDone event) or ctx is cancelled.
func (g *CompiledGraph[S]) Stream(ctx context.Context, initial S, cfg RunConfig) <-chan StreamEvent[S] {
	if cfg.MaxIterations <= 0 {
		cfg = DefaultRunConfig()
	}
	events := make(chan StreamEvent[S])

	go func() {
		defer close(events)

		state := initial
		current := []string{g.entryPoint}

		for i := 0; i < cfg.MaxIterations; i++ {
			executable := dedupeLive(current)
			if len(executable) == 0 {
				break
			}
			if len(executable) == 1 && executable[0] == End {
				break
			}

			var nextSet []string
			seen := make(map[string]bool)
			for _, name := range executable {
				if name == End {
					continue
				}
				select {
				case events <- StreamEvent[S]{Type: EventNodeStart, Node: name, State: state}:
				case <-ctx.Done():
					return
				}

				update, err := g.executeNode(ctx, name, state)
				if err != nil {
					select {
					case events <- StreamEvent[S]{Type: EventNodeEnd, Node: name, Err: err}:
					case <-ctx.Done():
					}
					return
				}
				state = g.merge(state, update, g.reducers)

				select {
				case events <- StreamEvent[S]{Type: EventNodeEnd, Node: name, State: state}:
				case <-ctx.Done():
					return
				}

				next, err := g.nextNodes(ctx, name, state)
				if err != nil {
					select {
					case events <- StreamEvent[S]{Type: EventNodeEnd, Node: name, Err: err}:
					case <-ctx.Done():
					}
					return
				}
				for _, n := range next {
					if !seen[n] {
						seen[n] = true
						nextSet = append(nextSet, n)
					}
				}
			}
			current = nextSet
		}

		select {
		case events <- StreamEvent[S]{Type: EventDone, State: state}:
		case <-ctx.Done():
		}
	}()

	return events
}

// GraphStructure describes a compiled graph for visualization.
type GraphStructure struct {
	Nodes      []string
	Edges      [][2]string
	EntryPoint string
}

// GetGraphStructure returns the node/edge layout for visualization or
// introspection tooling.
func (g *CompiledGraph[S]) GetGraphStructure() GraphStructure {
	nodes := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		nodes = append(nodes, name)
	}
	var edges [][2]string
	for _, es := range g.adjacency {
		for _, e := range es {
			if e.edgeType == edgeNormal {
				edges = append(edges, [2]string{e.source, e.target})
			}
		}
	}
	return GraphStructure{Nodes: nodes, Edges: edges, EntryPoint: g.entryPoint}
}
