package dag

import (
	"fmt"
	"strings"
)

// Levels groups the live nodes reachable from roots by their depth, the
// length of the longest parent path back to a root. Level 0 holds the roots.
func (g *Graph) Levels(roots ...NodeID) [][]NodeID {
	if len(roots) == 0 {
		roots = g.Roots()
	}

	depth := make(map[NodeID]int)
	var order []NodeID
	var collect func(id NodeID, d int)
	collect = func(id NodeID, d int) {
		prev, seen := depth[id]
		if seen && prev >= d {
			return
		}
		if !seen {
			order = append(order, id)
		}
		depth[id] = d
		for _, c := range g.nodes[id].children {
			collect(c, d+1)
		}
	}
	for _, r := range roots {
		if g.Contains(r) {
			collect(r, 0)
		}
	}

	var levels [][]NodeID
	for _, id := range order {
		d := depth[id]
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	return levels
}

// ToDOT generates a DOT representation of the subgraphs below roots, or of
// the whole graph when no roots are given. Children are drawn left to right
// in insertion order. The output can be rendered with Graphviz tools.
func (g *Graph) ToDOT(roots ...NodeID) string {
	var sb strings.Builder

	sb.WriteString("digraph SceneGraph {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  ordering=out;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	levels := g.Levels(roots...)
	for level, ids := range levels {
		sb.WriteString(fmt.Sprintf("  subgraph level_%d {\n", level))
		sb.WriteString("    rank=same;\n")
		for _, id := range ids {
			n := g.nodes[id]
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				id, escapeDOT(g.Label(id)), classColor(n.class)))
		}
		sb.WriteString("  }\n\n")
	}

	for _, ids := range levels {
		for _, id := range ids {
			for _, c := range g.nodes[id].children {
				sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", id, c))
			}
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func classColor(c Class) string {
	switch c {
	case ClassLeaf:
		return "lightgreen"
	case ClassGroup:
		return "lightgrey"
	case ClassAnchor:
		return "orange"
	default:
		return "lightblue"
	}
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
