// Package dag implements the scene graph: an arena of nodes joined by ordered
// parent/child edges that is kept acyclic at all times.
//
// # Nodes
//
// Nodes are addressed by NodeID handles and carry an opaque payload. Their
// structural capability is one of four classes:
//
//   - ClassNode: an ordinary node that may have children
//   - ClassLeaf: a node that never has children
//   - ClassGroup: a generic container
//   - ClassAnchor: a leaf placeholder marking where a module accepts children
//
// A node may have several parents. Every parent sees the same child, so one
// shape can be placed in several places without copying it.
//
// # Attaching
//
// Every attach operation returns a Chain, the root of the expression just
// built together with its open fronts:
//
//	g := dag.NewGraph()
//	root := g.NewNode(dag.Name("root"))
//	c, err := g.Attach(root, g.NewLeaf(dag.Name("cube")))
//
// Then attaches a node under all fronts of a chain at once. Attach operations
// reject edges that would close a cycle or extend a leaf with a
// *TopologyError and leave the graph unchanged.
//
// # Sessions
//
// A Session keeps a stack of open scopes. Nodes created through the session
// are attached under the fronts of the innermost scope:
//
//	s := dag.NewSession(g)
//	err := s.ScopeNode(root, func() error {
//	    _, err := s.Leaf(dag.Name("sphere"))
//	    return err
//	})
//
// # Modules
//
// A module is a build function run inside a fresh group. Anchors created by
// the build mark where children of the instance will go; the anchors are
// removed and their containing nodes become the fronts of the returned chain.
//
// # Traversal
//
// VisitDescendants and VisitAncestors drive a Visitor depth first. A visit
// returns Continue, Prune or Abort to steer the walk.
package dag
