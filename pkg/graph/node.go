package graph

// Node is a typed vertex of the material graph.
type Node struct {
	ID       NodeID   `json:"id"`
	UUID     string   `json:"uuid"`
	Name     string   `json:"name"`
	Kind     NodeKind `json:"kind"`
	Position Vec2     `json:"position"` // editor only
	Color    RGBA     `json:"color"`    // editor only
	Inputs   []PinID  `json:"inputs,omitempty"`
	Outputs  []PinID  `json:"outputs,omitempty"`
	IsRoot   bool     `json:"is_root"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	Kind() NodeKind
	nodeData() // marker method restricting implementations to this package
}

// DataAs narrows a payload to a concrete type. ok is false when the payload
// is nil or of a different kind.
func DataAs[T NodeData](d NodeData) (T, bool) {
	v, ok := d.(T)
	return v, ok
}

// Pin is a typed connection point owned by a node.
type Pin struct {
	ID    PinID      `json:"id"`
	Node  NodeID     `json:"node"`
	Name  string     `json:"name"`
	Kind  PinKind    `json:"kind"`
	Types ValueTypes `json:"types"`
}

// Link joins one output pin to one input pin. Start is always the output.
type Link struct {
	ID    LinkID `json:"id"`
	Start PinID  `json:"start"`
	End   PinID  `json:"end"`
}

// Touches reports whether the link references pin p.
func (l *Link) Touches(p PinID) bool {
	return l.Start == p || l.End == p
}
