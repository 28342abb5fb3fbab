package graph

import (
	"math"

	"github.com/chazu/matgraph/pkg/texture"
)

// Slider bounds.
const (
	SliderMin = -100.0
	SliderMax = 100.0
)

// MaterialData is the payload of the root node. The root holds no values;
// its inputs are the material channels.
type MaterialData struct{}

func (MaterialData) Kind() NodeKind { return NodeMaterial }
func (MaterialData) nodeData()      {}

// ColorData is a constant colour.
type ColorData struct {
	Color RGBA `json:"color"`
}

func (ColorData) Kind() NodeKind { return NodeColor }
func (ColorData) nodeData()      {}

// TextureData references an image on disk. Handle is filled in when the
// texture is resolved; it is never persisted.
type TextureData struct {
	Path   string         `json:"path"`
	Handle texture.Handle `json:"-"`
}

func (TextureData) Kind() NodeKind { return NodeTexture }
func (TextureData) nodeData()      {}

// SliderData is a scalar literal.
type SliderData struct {
	Value   float32 `json:"value"`
	IntOnly bool    `json:"int_only,omitempty"`
}

func (SliderData) Kind() NodeKind { return NodeSlider }
func (SliderData) nodeData()      {}

// Clamped returns the value limited to the slider range, rounded when the
// slider only admits integers.
func (s SliderData) Clamped() float32 {
	v := math.Max(SliderMin, math.Min(SliderMax, float64(s.Value)))
	if s.IntOnly {
		v = math.Round(v)
	}
	return float32(v)
}

// OneMinusXData holds the literal shown when the input is unlinked.
type OneMinusXData struct {
	X float32 `json:"x"`
}

func (OneMinusXData) Kind() NodeKind { return NodeOneMinusX }
func (OneMinusXData) nodeData()      {}

// MultiplyData carries no values; both operands come from links.
type MultiplyData struct{}

func (MultiplyData) Kind() NodeKind { return NodeMultiply }
func (MultiplyData) nodeData()      {}

// Vector2Data is a two-component literal.
type Vector2Data struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (Vector2Data) Kind() NodeKind { return NodeVector2 }
func (Vector2Data) nodeData()      {}

// DefaultData returns the zero-state payload for a kind.
func DefaultData(k NodeKind) NodeData {
	switch k {
	case NodeMaterial:
		return MaterialData{}
	case NodeColor:
		return ColorData{Color: White}
	case NodeTexture:
		return TextureData{}
	case NodeSlider:
		return SliderData{}
	case NodeOneMinusX:
		return OneMinusXData{}
	case NodeMultiply:
		return MultiplyData{}
	case NodeVector2:
		return Vector2Data{X: 1, Y: 1}
	}
	return nil
}
