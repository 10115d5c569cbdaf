package dag

// OperationKind names a composition operation over several operands.
type OperationKind string

// Built-in composition operations.
const (
	OpUnion        OperationKind = "union"
	OpDifference   OperationKind = "difference"
	OpIntersection OperationKind = "intersection"
	OpHull         OperationKind = "hull"
	OpMinkowski    OperationKind = "minkowski"
)

// Operation is the default payload of a composition node. Backends that
// need their own node kinds register an OperationProvider instead.
type Operation struct {
	Kind OperationKind
}

// Label implements Labeler.
func (o Operation) Label() string {
	return string(o.Kind)
}

// OperationProvider supplies the payload and class for a composition node.
// It returns ok=false for operations it does not handle.
type OperationProvider interface {
	Operation(kind OperationKind) (class Class, payload interface{}, ok bool)
}

// OperationProviderFunc adapts a function to an OperationProvider.
type OperationProviderFunc func(kind OperationKind) (Class, interface{}, bool)

// Operation implements OperationProvider.
func (f OperationProviderFunc) Operation(kind OperationKind) (Class, interface{}, bool) {
	return f(kind)
}

// RegisterOperations appends p to the provider list. Providers are consulted
// in registration order and the first one to handle an operation wins. When
// none does, the operation node is an ordinary node with an Operation
// payload, except union, which is a plain group.
func (s *Session) RegisterOperations(p OperationProvider) {
	s.providers = append(s.providers, p)
}

func (s *Session) resolveOperation(kind OperationKind) (Class, interface{}) {
	for _, p := range s.providers {
		if class, payload, ok := p.Operation(kind); ok {
			return class, payload
		}
	}
	if kind == OpUnion {
		return ClassGroup, nil
	}
	return ClassNode, Operation{Kind: kind}
}

// Compose creates an activated operation node of the given kind and attaches
// the operands under it in order. The operation node is returned as a single
// chain. Every edge is checked before the node is created, so a failure
// leaves the graph unchanged.
func (s *Session) Compose(kind OperationKind, operands ...Chain) (Chain, error) {
	class, payload := s.resolveOperation(kind)
	if err := s.checkCompose(class, operands); err != nil {
		return Chain{}, err
	}
	id, err := s.Add(class, payload)
	if err != nil {
		return Chain{}, err
	}
	for _, op := range operands {
		if _, err := s.graph.AttachChain(id, op); err != nil {
			return Chain{}, err
		}
	}
	return Single(id), nil
}

// checkCompose validates the edges Compose adds for a node of class: the
// activation edges from the open fronts and one edge to every operand root.
// An operand that reaches an open front would close a cycle through the new
// node.
func (s *Session) checkCompose(class Class, operands []Chain) error {
	g := s.graph
	top, scoped := s.Top()
	if scoped {
		for _, front := range top.Fronts {
			fn := g.get(front)
			if err := g.checkLive(front, front, fn, fn); err != nil {
				return err
			}
			if fn.class.IsLeaf() {
				return g.reject(newTopologyError(ErrLeafExtended, front, NoNode))
			}
		}
	}
	for _, op := range operands {
		n := g.get(op.Root)
		if err := g.checkLive(op.Root, op.Root, n, n); err != nil {
			return err
		}
		if class.IsLeaf() {
			return g.reject(newTopologyError(ErrLeafExtended, NoNode, op.Root))
		}
		if !scoped {
			continue
		}
		for _, front := range top.Fronts {
			if g.HasDescendant(op.Root, front) {
				return g.reject(newTopologyError(ErrCycle, front, op.Root))
			}
		}
	}
	return nil
}

// Union groups the operands.
func (s *Session) Union(operands ...Chain) (Chain, error) {
	return s.Compose(OpUnion, operands...)
}

// Subtract removes every later operand from the first.
func (s *Session) Subtract(operands ...Chain) (Chain, error) {
	return s.Compose(OpDifference, operands...)
}

// Intersect keeps what all operands share.
func (s *Session) Intersect(operands ...Chain) (Chain, error) {
	return s.Compose(OpIntersection, operands...)
}

// Hull wraps the operands in their convex hull.
func (s *Session) Hull(operands ...Chain) (Chain, error) {
	return s.Compose(OpHull, operands...)
}

// Minkowski sums the operands.
func (s *Session) Minkowski(operands ...Chain) (Chain, error) {
	return s.Compose(OpMinkowski, operands...)
}

// EmplaceOperation wraps every front of the innermost scope in a new
// operation node of the given kind. Each operation node takes the place of
// its front in the graph, keeps the front as first operand and shares one
// detached appendix group as second operand. The appendix is returned so
// the remaining operands can be built inside a scope on it.
func (s *Session) EmplaceOperation(kind OperationKind) (NodeID, error) {
	top, ok := s.Top()
	if !ok {
		return NoNode, newTopologyError(ErrNoScope, NoNode, NoNode).WithDetail("operation", string(kind))
	}

	appendix := s.graph.NewGroup()
	for _, front := range top.Fronts {
		class, payload := s.resolveOperation(kind)
		op := s.graph.New(class, payload)
		if err := s.graph.Emplace(front, op); err != nil {
			return NoNode, err
		}
		if _, err := s.graph.Attach(op, appendix); err != nil {
			return NoNode, err
		}
	}
	return appendix, nil
}
