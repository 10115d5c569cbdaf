package policy

import (
	"github.com/openfroyo/solidgraph/pkg/dag"
)

// NodeSummary describes one reachable node.
type NodeSummary struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	Class     string `json:"class"`
	Operation string `json:"operation,omitempty"`
	Depth     int    `json:"depth"`
	Children  int    `json:"children"`
	Parents   int    `json:"parents"`
}

// Summary is a structural digest of a scene, the input of every policy.
type Summary struct {
	// Roots are the ids of the summarized roots.
	Roots []int `json:"roots"`

	// Nodes lists every node reachable from the roots, level by level.
	Nodes []NodeSummary `json:"nodes"`

	// Classes counts reachable nodes per class.
	Classes map[string]int `json:"classes"`

	// Edges is the number of parent/child edges between reachable nodes.
	Edges int `json:"edges"`

	// Shared is the number of nodes placed under more than one parent.
	Shared int `json:"shared"`

	// MaxDepth is the number of nodes on the longest root-to-leaf path.
	MaxDepth int `json:"max_depth"`
}

// Summarize digests the subgraphs below roots, or the whole graph when no
// roots are given.
func Summarize(g *dag.Graph, roots ...dag.NodeID) *Summary {
	if len(roots) == 0 {
		roots = g.Roots()
	}

	s := &Summary{
		Roots:   make([]int, 0, len(roots)),
		Nodes:   []NodeSummary{},
		Classes: make(map[string]int),
	}
	for _, r := range roots {
		if g.Contains(r) {
			s.Roots = append(s.Roots, int(r))
		}
	}

	levels := g.Levels(roots...)
	s.MaxDepth = len(levels)
	for depth, ids := range levels {
		for _, id := range ids {
			children := len(g.Children(id))
			parents := len(g.Parents(id))
			n := NodeSummary{
				ID:       int(id),
				Label:    g.Label(id),
				Class:    g.Class(id).String(),
				Depth:    depth,
				Children: children,
				Parents:  parents,
			}
			if op, ok := g.Payload(id).(dag.Operation); ok {
				n.Operation = string(op.Kind)
			}
			s.Nodes = append(s.Nodes, n)
			s.Classes[n.Class]++
			s.Edges += children
			if parents > 1 {
				s.Shared++
			}
		}
	}
	return s
}
