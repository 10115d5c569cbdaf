package dag

// Chain pairs the root of an expression with its open attachment fronts. It
// is the value of every attach operation, so a result can act both as "the
// whole thing just built" (Root) and as "where to keep attaching" (Fronts).
type Chain struct {
	Root   NodeID
	Fronts []NodeID
}

// Single returns the chain of a lone node: it is its own root and only front.
func Single(id NodeID) Chain {
	return Chain{Root: id, Fronts: []NodeID{id}}
}

// Attach makes child a child of parent and returns Chain{parent, [child]}.
//
// Attaching a pair that is already connected is a no-op. Extending a leaf
// fails with ErrLeafExtended, and an edge that would close a cycle fails with
// ErrCycle. On failure the graph is not modified.
func (g *Graph) Attach(parent, child NodeID) (Chain, error) {
	if err := g.checkEdge(parent, child); err != nil {
		return Chain{}, err
	}
	g.link(parent, child)
	return Chain{Root: parent, Fronts: []NodeID{child}}, nil
}

// AttachChain attaches the root of c under parent and returns a chain rooted
// at parent whose fronts are the fronts of c.
func (g *Graph) AttachChain(parent NodeID, c Chain) (Chain, error) {
	if _, err := g.Attach(parent, c.Root); err != nil {
		return Chain{}, err
	}
	return Chain{Root: parent, Fronts: append([]NodeID(nil), c.Fronts...)}, nil
}

// Then attaches next under every open front of c. The result keeps the root
// of c and takes its fronts from next. All edges are checked before any is
// added, so a failure leaves the graph unchanged.
func (g *Graph) Then(c Chain, next Chain) (Chain, error) {
	for _, front := range c.Fronts {
		if err := g.checkEdge(front, next.Root); err != nil {
			return Chain{}, err
		}
	}
	for _, front := range c.Fronts {
		g.link(front, next.Root)
	}
	return Chain{Root: c.Root, Fronts: append([]NodeID(nil), next.Fronts...)}, nil
}

// Unlink removes id from the children of every parent and clears its parent
// set. Its own children are kept, so the node becomes the root of a detached
// subgraph.
func (g *Graph) Unlink(id NodeID) {
	n := g.get(id)
	if n == nil {
		return
	}
	for _, p := range n.parents {
		if pn := g.get(p); pn != nil {
			pn.children = removeID(pn.children, id)
		}
	}
	n.parents = nil
	n.parentSet = nil
}

// Emplace splices replacement into the graph in place of target: the
// replacement is unlinked, takes the slot of target in each of its parents,
// and target becomes the last child of replacement.
//
// The edges into replacement are dropped first, so a replacement that only
// hangs below target can be spliced above it. A replacement that is a parent
// of target, or that reaches one of its parents, fails with ErrCycle. On
// failure the graph is not modified.
func (g *Graph) Emplace(target, replacement NodeID) error {
	tn, rn := g.get(target), g.get(replacement)
	if err := g.checkLive(target, replacement, tn, rn); err != nil {
		return err
	}
	if rn.class.IsLeaf() {
		return g.reject(newTopologyError(ErrLeafExtended, replacement, target))
	}
	if target == replacement {
		return g.reject(newTopologyError(ErrCycle, replacement, target))
	}

	// Snapshot the parents before any mutation. Once the edges into
	// replacement are gone, the splice closes a cycle only if replacement
	// is one of these parents or still reaches one of them.
	parents := append([]NodeID(nil), tn.parents...)
	for _, p := range parents {
		if p == replacement || g.HasDescendant(replacement, p) {
			return g.reject(newTopologyError(ErrCycle, p, replacement))
		}
	}

	g.Unlink(replacement)
	for _, p := range parents {
		pn := g.get(p)
		for i, c := range pn.children {
			if c == target {
				pn.children[i] = replacement
				break
			}
		}
		tn.removeParent(p)
		rn.addParent(p)
		g.notifyAttached(p, replacement)
	}
	g.Unlink(target)
	g.link(replacement, target)
	return nil
}

// checkEdge validates a proposed parent -> child edge without mutating.
func (g *Graph) checkEdge(parent, child NodeID) error {
	pn, cn := g.get(parent), g.get(child)
	if err := g.checkLive(parent, child, pn, cn); err != nil {
		return err
	}
	if pn.class.IsLeaf() {
		return g.reject(newTopologyError(ErrLeafExtended, parent, child))
	}
	if cn.hasParent(parent) {
		return nil
	}
	if g.HasDescendant(child, parent) {
		return g.reject(newTopologyError(ErrCycle, parent, child))
	}
	return nil
}

func (g *Graph) checkLive(a, b NodeID, an, bn *node) error {
	if an == nil {
		return g.reject(newTopologyError(ErrUnknownNode, a, b))
	}
	if bn == nil {
		return g.reject(newTopologyError(ErrUnknownNode, a, b))
	}
	if an.retired || bn.retired {
		return g.reject(newTopologyError(ErrRetired, a, b))
	}
	return nil
}

// link records parent -> child unless it already exists.
func (g *Graph) link(parent, child NodeID) {
	pn, cn := g.nodes[parent], g.nodes[child]
	if cn.hasParent(parent) {
		return
	}
	pn.children = append(pn.children, child)
	cn.addParent(parent)
	g.notifyAttached(parent, child)
}

func (g *Graph) notifyAttached(parent, child NodeID) {
	if g.observer != nil {
		g.observer.NodeAttached(parent, child)
	}
}

func (g *Graph) reject(err *TopologyError) *TopologyError {
	g.logger.Debug().
		Str("code", string(err.Code)).
		Str("parent", err.Parent.String()).
		Str("child", err.Child.String()).
		Msg("Attach rejected")
	if g.observer != nil {
		g.observer.AttachRejected(err.Parent, err.Child, err)
	}
	return err
}
