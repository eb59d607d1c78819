package convert

import (
	"strings"

	"github.com/goliatone/go-docfill/pkg/document"
)

// Edge is a single conversion a backend can perform.
type Edge struct {
	From document.Format
	To   document.Format
}

func (e Edge) String() string {
	return string(e.From) + "->" + string(e.To)
}

// Step is one hop of a planned route.
type Step struct {
	Backend string
	Edge
}

// Route is an ordered list of hops from a source to a target format.
type Route []Step

func (r Route) String() string {
	parts := make([]string, 0, len(r))
	for _, step := range r {
		parts = append(parts, step.Backend+":"+step.Edge.String())
	}
	return strings.Join(parts, ", ")
}

// plan runs a breadth-first search over backend edges. Backends are visited
// by name and edges in declared order, so equal-length routes resolve the
// same way every time.
func plan(backends []Backend, from, to document.Format) (Route, bool) {
	if from == to {
		return Route{}, true
	}

	type arrival struct {
		prev document.Format
		step Step
	}
	visited := map[document.Format]arrival{from: {}}
	queue := []document.Format{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, backend := range backends {
			for _, edge := range backend.Edges() {
				if edge.From != current {
					continue
				}
				if _, seen := visited[edge.To]; seen {
					continue
				}
				visited[edge.To] = arrival{prev: current, step: Step{Backend: backend.Name(), Edge: edge}}
				if edge.To == to {
					var route Route
					for at := to; at != from; at = visited[at].prev {
						route = append(Route{visited[at].step}, route...)
					}
					return route, true
				}
				queue = append(queue, edge.To)
			}
		}
	}
	return nil, false
}

// reachable lists every format some route leads to from the source.
func reachable(backends []Backend, from document.Format) []document.Format {
	seen := map[document.Format]struct{}{from: {}}
	queue := []document.Format{from}
	var out []document.Format
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, backend := range backends {
			for _, edge := range backend.Edges() {
				if edge.From != current {
					continue
				}
				if _, ok := seen[edge.To]; ok {
					continue
				}
				seen[edge.To] = struct{}{}
				out = append(out, edge.To)
				queue = append(queue, edge.To)
			}
		}
	}
	return out
}
