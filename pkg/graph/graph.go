package graph

import (
	"errors"
	"fmt"
	"slices"
)

// Link rejection reasons.
var (
	ErrUnknownPin   = errors.New("graph: unknown pin")
	ErrSamePin      = errors.New("graph: pin linked to itself")
	ErrSameKind     = errors.New("graph: pins have the same kind")
	ErrSameNode     = errors.New("graph: pins belong to the same node")
	ErrTypeMismatch = errors.New("graph: pin value types do not intersect")
	ErrCycle        = errors.New("graph: link would create a cycle")
	ErrRootExists   = errors.New("graph: material root already exists")
	ErrUnknownKind  = errors.New("graph: unknown node kind")
	ErrUnknownNode  = errors.New("graph: unknown node")
)

// defaultColors are the editor title colours per kind.
var defaultColors = map[NodeKind]RGBA{
	NodeMaterial:  {0.87, 0.35, 0.22, 1},
	NodeColor:     {0.75, 0.75, 0.75, 1},
	NodeTexture:   {0.30, 0.55, 0.85, 1},
	NodeSlider:    {0.45, 0.70, 0.35, 1},
	NodeOneMinusX: {0.60, 0.45, 0.80, 1},
	NodeMultiply:  {0.60, 0.45, 0.80, 1},
	NodeVector2:   {0.85, 0.70, 0.25, 1},
}

// System owns one material graph instance: id allocation, node factories,
// link validation and deletion cascades. It is not safe for concurrent
// use; callers mutate it from a single goroutine.
type System struct {
	nextID int

	nodes map[NodeID]*Node
	pins  map[PinID]*Pin
	links map[LinkID]*Link

	order []NodeID // creation order, used for persistence indices
}

// NewSystem creates an empty graph.
func NewSystem() *System {
	return &System{
		nextID: 1,
		nodes:  make(map[NodeID]*Node),
		pins:   make(map[PinID]*Pin),
		links:  make(map[LinkID]*Link),
	}
}

// nextIdent hands out ids from the single counter shared by nodes, pins and
// links, so no two entities of any kind collide.
func (s *System) nextIdent() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *System) newNode(kind NodeKind, name string) *Node {
	n := &Node{
		ID:    NodeID(s.nextIdent()),
		UUID:  NewUUID(),
		Name:  name,
		Kind:  kind,
		Color: defaultColors[kind],
		Data:  DefaultData(kind),
	}
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return n
}

func (s *System) addPin(n *Node, name string, kind PinKind, types ValueTypes) {
	p := &Pin{
		ID:    PinID(s.nextIdent()),
		Node:  n.ID,
		Name:  name,
		Kind:  kind,
		Types: types,
	}
	s.pins[p.ID] = p
	if kind == PinInput {
		n.Inputs = append(n.Inputs, p.ID)
	} else {
		n.Outputs = append(n.Outputs, p.ID)
	}
}

// ---------------------------------------------------------------------------
// Node factories
// ---------------------------------------------------------------------------

// SpawnMaterialNode creates the root node with one input per channel.
// A graph holds at most one root.
func (s *System) SpawnMaterialNode() (*Node, error) {
	if s.Root() != nil {
		return nil, ErrRootExists
	}
	n := s.newNode(NodeMaterial, "Material")
	n.IsRoot = true
	for _, ch := range Channels() {
		s.addPin(n, ch.PinName(), PinInput, ch.Types())
	}
	return n, nil
}

// SpawnColorNode creates a constant colour source.
func (s *System) SpawnColorNode() *Node {
	n := s.newNode(NodeColor, "Color")
	s.addPin(n, "Color", PinOutput, TypesOf(TypeTextureOrColor))
	return n
}

// SpawnTextureNode creates a texture source.
func (s *System) SpawnTextureNode() *Node {
	n := s.newNode(NodeTexture, "Texture")
	s.addPin(n, "Texture", PinOutput, TypesOf(TypeTextureOrColor))
	return n
}

// SpawnSliderNode creates a scalar source.
func (s *System) SpawnSliderNode() *Node {
	n := s.newNode(NodeSlider, "Slider")
	s.addPin(n, "Number", PinOutput, TypesOf(TypeNumber))
	return n
}

// SpawnOneMinusXNode creates a 1-x node.
func (s *System) SpawnOneMinusXNode() *Node {
	n := s.newNode(NodeOneMinusX, "One Minus X")
	s.addPin(n, "X", PinInput, TypesOf(TypeNumber))
	s.addPin(n, "1-x", PinOutput, TypesOf(TypeNumber))
	return n
}

// SpawnMultiplyNode creates a product node whose pins all accept numbers
// and colours.
func (s *System) SpawnMultiplyNode() *Node {
	generic := TypesOf(TypeNumber, TypeTextureOrColor)
	n := s.newNode(NodeMultiply, "Multiply")
	s.addPin(n, "A", PinInput, generic)
	s.addPin(n, "B", PinInput, generic)
	s.addPin(n, "Result", PinOutput, generic)
	return n
}

// SpawnVector2Node creates a two-component source.
func (s *System) SpawnVector2Node() *Node {
	n := s.newNode(NodeVector2, "Vector2")
	s.addPin(n, "Vector", PinOutput, TypesOf(TypeVector2))
	return n
}

// Spawn dispatches to the factory for kind.
func (s *System) Spawn(kind NodeKind) (*Node, error) {
	switch kind {
	case NodeMaterial:
		return s.SpawnMaterialNode()
	case NodeColor:
		return s.SpawnColorNode(), nil
	case NodeTexture:
		return s.SpawnTextureNode(), nil
	case NodeSlider:
		return s.SpawnSliderNode(), nil
	case NodeOneMinusX:
		return s.SpawnOneMinusXNode(), nil
	case NodeMultiply:
		return s.SpawnMultiplyNode(), nil
	case NodeVector2:
		return s.SpawnVector2Node(), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// FindNode returns the node with the given id, or nil.
func (s *System) FindNode(id NodeID) *Node {
	return s.nodes[id]
}

// FindNodeByUUID returns the node with the given UUID, or nil.
func (s *System) FindNodeByUUID(uuid string) *Node {
	for _, id := range s.order {
		if n := s.nodes[id]; n.UUID == uuid {
			return n
		}
	}
	return nil
}

// FindPin returns the pin with the given id, or nil.
func (s *System) FindPin(id PinID) *Pin {
	return s.pins[id]
}

// FindLink returns the link with the given id, or nil.
func (s *System) FindLink(id LinkID) *Link {
	return s.links[id]
}

// LinkForPin returns the first link touching pin p in creation order, or nil.
func (s *System) LinkForPin(p PinID) *Link {
	for _, l := range s.Links() {
		if l.Touches(p) {
			return l
		}
	}
	return nil
}

// IsPinLinked reports whether any link touches pin p. Editors use it to mark
// connected pins.
func (s *System) IsPinLinked(p PinID) bool {
	for _, l := range s.links {
		if l.Touches(p) {
			return true
		}
	}
	return false
}

// Nodes returns all nodes in creation order.
func (s *System) Nodes() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// Links returns all links ordered by id, which is creation order.
func (s *System) Links() []*Link {
	out := make([]*Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *Link) int { return int(a.ID) - int(b.ID) })
	return out
}

// Root returns the material root node, or nil.
func (s *System) Root() *Node {
	for _, id := range s.order {
		if n := s.nodes[id]; n.IsRoot {
			return n
		}
	}
	return nil
}

// NodeCount returns the number of nodes.
func (s *System) NodeCount() int {
	return len(s.nodes)
}

// LinkCount returns the number of links.
func (s *System) LinkCount() int {
	return len(s.links)
}

// PinSlot returns the position of pin p within its owner's input or output
// list, or -1 if the pin is unknown.
func (s *System) PinSlot(p PinID) int {
	pin := s.pins[p]
	if pin == nil {
		return -1
	}
	n := s.nodes[pin.Node]
	if n == nil {
		return -1
	}
	list := n.Outputs
	if pin.Kind == PinInput {
		list = n.Inputs
	}
	return slices.Index(list, p)
}

// NodeIndex returns the creation-order index of node id, or -1.
func (s *System) NodeIndex(id NodeID) int {
	return slices.Index(s.order, id)
}

// SetNodePosition moves a node in editor space.
func (s *System) SetNodePosition(id NodeID, pos Vec2) error {
	n := s.nodes[id]
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	n.Position = pos
	return nil
}

// SetNodeName renames a node.
func (s *System) SetNodeName(id NodeID, name string) error {
	n := s.nodes[id]
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	n.Name = name
	return nil
}

// ---------------------------------------------------------------------------
// Linking
// ---------------------------------------------------------------------------

// CanLink reports why pins a and b may not be joined, or nil if they may.
// The check is symmetric in a and b.
func (s *System) CanLink(a, b PinID) error {
	pa, pb := s.pins[a], s.pins[b]
	switch {
	case pa == nil || pb == nil:
		return ErrUnknownPin
	case pa.ID == pb.ID:
		return ErrSamePin
	case pa.Kind == pb.Kind:
		return ErrSameKind
	case pa.Node == pb.Node:
		return ErrSameNode
	case !pa.Types.Intersects(pb.Types):
		return ErrTypeMismatch
	}
	out, in := pa, pb
	if out.Kind == PinInput {
		out, in = in, out
	}
	if s.reaches(in.Node, out.Node) {
		return ErrCycle
	}
	return nil
}

// Link joins pins a and b in either drag direction. The stored link always
// starts at the output pin. An input holds at most one link, so an existing
// link into the input is replaced.
func (s *System) Link(a, b PinID) (*Link, error) {
	if err := s.CanLink(a, b); err != nil {
		return nil, err
	}
	start, end := a, b
	if s.pins[start].Kind == PinInput {
		start, end = end, start
	}
	for id, l := range s.links {
		if l.End == end {
			delete(s.links, id)
		}
	}
	l := &Link{ID: LinkID(s.nextIdent()), Start: start, End: end}
	s.links[l.ID] = l
	return l, nil
}

// reaches reports whether to is reachable from from by following links
// downstream (output to input).
func (s *System) reaches(from, to NodeID) bool {
	visited := make(map[NodeID]bool)
	var walk func(id NodeID) bool
	walk = func(id NodeID) bool {
		if id == to {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		n := s.nodes[id]
		if n == nil {
			return false
		}
		for _, out := range n.Outputs {
			for _, l := range s.links {
				if l.Start != out {
					continue
				}
				if p := s.pins[l.End]; p != nil && walk(p.Node) {
					return true
				}
			}
		}
		return false
	}
	return walk(from)
}

// ---------------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------------

// DeleteNode removes a node, every link touching its pins, and the pins.
// It reports false if the node does not exist.
func (s *System) DeleteNode(id NodeID) bool {
	n := s.nodes[id]
	if n == nil {
		return false
	}
	owned := make([]PinID, 0, len(n.Inputs)+len(n.Outputs))
	owned = append(owned, n.Inputs...)
	owned = append(owned, n.Outputs...)

	// Links go first while the pins they reference still resolve.
	for _, p := range owned {
		s.DeletePinLinks(p)
	}
	for _, p := range owned {
		delete(s.pins, p)
	}
	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(x NodeID) bool { return x == id })
	return true
}

// DeleteLink removes a link. It reports false if the link does not exist.
func (s *System) DeleteLink(id LinkID) bool {
	if _, ok := s.links[id]; !ok {
		return false
	}
	delete(s.links, id)
	return true
}

// DeletePinLinks removes every link touching pin p and returns how many
// were removed.
func (s *System) DeletePinLinks(p PinID) int {
	removed := 0
	for id, l := range s.links {
		if l.Touches(p) {
			delete(s.links, id)
			removed++
		}
	}
	return removed
}
