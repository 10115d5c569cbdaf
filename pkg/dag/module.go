package dag

// BuildFunc builds nodes through the session. It may place anchors wherever
// later attachments should go.
type BuildFunc func(s *Session) error

// Module is a reusable, anchor-parameterized subgraph template. Every
// Instantiate call runs the build function again and yields a fresh copy.
type Module struct {
	name  string
	build BuildFunc
}

// NewModule wraps build as a module.
func NewModule(name string, build BuildFunc) *Module {
	return &Module{name: name, build: build}
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Instantiate builds one instance of the module in s.
func (m *Module) Instantiate(s *Session) (Chain, error) {
	return s.Module(m.build)
}

// ModuleOf turns a parameterized build function into an instantiating
// function, the typed counterpart of Module.
func ModuleOf[A any](build func(s *Session, args A) error) func(s *Session, args A) (Chain, error) {
	return func(s *Session, args A) (Chain, error) {
		return s.Module(func(s *Session) error {
			return build(s, args)
		})
	}
}

// Module runs build inside a fresh root group and closes the result over its
// anchors.
//
// The root group is activated like any other node, so it lands in the
// enclosing scope if one is open. The returned chain is rooted at the group.
// Its fronts are the nearest containing node above each anchor; with no
// anchors the group is the only front. Anchors are removed from the graph.
func (s *Session) Module(build BuildFunc) (Chain, error) {
	root, err := s.Group()
	if err != nil {
		return Chain{}, err
	}
	if err := s.ScopeNode(root, func() error { return build(s) }); err != nil {
		return Chain{}, err
	}
	return s.graph.MakeModule(root), nil
}

// moduleFrame is one open level of the anchor scan.
type moduleFrame struct {
	node      NodeID
	hasAnchor bool
}

// moduleScanner finds anchors below a root and the node directly containing
// each of them.
type moduleScanner struct {
	current NodeID
	frames  []moduleFrame

	anchors    []NodeID
	anchorSeen map[NodeID]struct{}
	sites      []NodeID
	siteSeen   map[NodeID]struct{}
}

func (m *moduleScanner) Visit(g *Graph, id NodeID) Action {
	m.current = id
	if g.Class(id) == ClassAnchor {
		if _, ok := m.anchorSeen[id]; !ok {
			m.anchorSeen[id] = struct{}{}
			m.anchors = append(m.anchors, id)
		}
		if len(m.frames) > 0 {
			m.frames[len(m.frames)-1].hasAnchor = true
		}
	}
	return Continue
}

func (m *moduleScanner) Descend() {
	m.frames = append(m.frames, moduleFrame{node: m.current})
}

func (m *moduleScanner) Ascend() {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	if !f.hasAnchor {
		return
	}
	if _, ok := m.siteSeen[f.node]; ok {
		return
	}
	m.siteSeen[f.node] = struct{}{}
	m.sites = append(m.sites, f.node)
}

// MakeModule scans the subgraph below root for anchors, removes them and
// returns a chain rooted at root whose fronts are the attachment sites, in
// the order their scans completed. Without anchors it returns Single(root).
func (g *Graph) MakeModule(root NodeID) Chain {
	scan := &moduleScanner{
		current:    root,
		anchorSeen: make(map[NodeID]struct{}),
		siteSeen:   make(map[NodeID]struct{}),
	}
	g.walk(root, scan, Descendants)

	for _, a := range scan.anchors {
		g.Unlink(a)
		g.nodes[a].retired = true
	}

	g.logger.Debug().
		Str("root", root.String()).
		Int("anchors", len(scan.anchors)).
		Int("sites", len(scan.sites)).
		Msg("Module built")
	if g.observer != nil {
		g.observer.ModuleBuilt(root, len(scan.sites))
	}

	if len(scan.sites) == 0 {
		return Single(root)
	}
	return Chain{Root: root, Fronts: scan.sites}
}
