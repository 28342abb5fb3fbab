// Package graph defines the core material graph data structures.
package graph

import (
	"strings"

	"github.com/google/uuid"
)

// NodeID identifies a node within one System. IDs are not stable across
// save/load; persistence keys nodes by UUID.
type NodeID int

// PinID identifies a pin within one System.
type PinID int

// LinkID identifies a link within one System.
type LinkID int

// NewUUID mints a fresh node or blueprint UUID.
func NewUUID() string {
	return uuid.NewString()
}

// NodeKind enumerates the kinds of nodes a material graph may contain.
type NodeKind int

const (
	NodeMaterial  NodeKind = iota // the single root, gathers channels
	NodeColor                     // constant RGBA
	NodeTexture                   // sampled image
	NodeSlider                    // scalar literal
	NodeOneMinusX                 // 1 - x
	NodeMultiply                  // a * b
	NodeVector2                   // 2-component literal (tiling)
)

var kindNames = [...]string{
	NodeMaterial:  "Material",
	NodeColor:     "Color",
	NodeTexture:   "Texture",
	NodeSlider:    "Slider",
	NodeOneMinusX: "OneMinusX",
	NodeMultiply:  "Multiply",
	NodeVector2:   "Vector2",
}

// String returns the persisted type name of the kind.
func (k NodeKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// ParseNodeKind maps a persisted type name back to a NodeKind.
func ParseNodeKind(s string) (NodeKind, bool) {
	for i, name := range kindNames {
		if name == s {
			return NodeKind(i), true
		}
	}
	return 0, false
}

// Kinds returns every node kind in declaration order.
func Kinds() []NodeKind {
	kinds := make([]NodeKind, len(kindNames))
	for i := range kindNames {
		kinds[i] = NodeKind(i)
	}
	return kinds
}

// HasInstanceValue reports whether nodes of this kind carry a per-material
// value that a child material overrides.
func (k NodeKind) HasInstanceValue() bool {
	switch k {
	case NodeColor, NodeTexture, NodeSlider, NodeVector2:
		return true
	}
	return false
}

// PinKind says which way a pin faces. It never changes after creation.
type PinKind int

const (
	PinInput PinKind = iota
	PinOutput
)

func (k PinKind) String() string {
	switch k {
	case PinInput:
		return "input"
	case PinOutput:
		return "output"
	default:
		return "unknown"
	}
}

// ValueType is a single value category a pin can carry.
type ValueType uint8

const (
	TypeNumber ValueType = 1 << iota
	TypeTextureOrColor
	TypeVector2
)

// ValueTypes is a set of ValueType flags. Math pins accept more than one
// type so they stay generic.
type ValueTypes uint8

// TypesOf builds a set from individual value types.
func TypesOf(types ...ValueType) ValueTypes {
	var s ValueTypes
	for _, t := range types {
		s |= ValueTypes(t)
	}
	return s
}

// Has reports whether t is in the set.
func (s ValueTypes) Has(t ValueType) bool {
	return s&ValueTypes(t) != 0
}

// Intersects reports whether the two sets share at least one type.
func (s ValueTypes) Intersects(o ValueTypes) bool {
	return s&o != 0
}

func (s ValueTypes) String() string {
	var parts []string
	if s.Has(TypeNumber) {
		parts = append(parts, "Number")
	}
	if s.Has(TypeTextureOrColor) {
		parts = append(parts, "TextureOrColor")
	}
	if s.Has(TypeVector2) {
		parts = append(parts, "Vector2")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Vec2 is an editor-space position.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// RGBA is a linear colour with components in [0,1].
type RGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// White is the default colour of new colour values.
var White = RGBA{1, 1, 1, 1}
