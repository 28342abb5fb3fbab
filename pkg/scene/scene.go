// Package scene holds the renderable entity boundary the shader generator
// writes resolved texture bindings into.
package scene

import (
	"github.com/chazu/matgraph/pkg/graph"
	"github.com/chazu/matgraph/pkg/texture"
)

// SurfaceMaterial carries one texture slot and its source path per
// textured channel, plus the UV tiling.
type SurfaceMaterial struct {
	AlbedoTexture     texture.Handle
	AlbedoTexturePath string

	NormalTexture     texture.Handle
	NormalTexturePath string

	RoughnessTexture     texture.Handle
	RoughnessTexturePath string

	AmbientOcclusionTexture     texture.Handle
	AmbientOcclusionTexturePath string

	HeightTexture     texture.Handle
	HeightTexturePath string

	MetallicTexture     texture.Handle
	MetallicTexturePath string

	EmissionTexture     texture.Handle
	EmissionTexturePath string

	Tiling [2]float32
}

// DefaultTiling is the tiling of a surface no material has touched.
var DefaultTiling = [2]float32{1, 1}

// Entity is a scene object with a surface material.
type Entity struct {
	Name            string
	SurfaceMaterial SurfaceMaterial
}

// NewEntity returns an entity with an untextured surface and unit tiling.
func NewEntity(name string) *Entity {
	return &Entity{Name: name, SurfaceMaterial: SurfaceMaterial{Tiling: DefaultTiling}}
}

func (m *SurfaceMaterial) slot(ch graph.Channel) (*texture.Handle, *string) {
	switch ch {
	case graph.ChannelAlbedo:
		return &m.AlbedoTexture, &m.AlbedoTexturePath
	case graph.ChannelNormal:
		return &m.NormalTexture, &m.NormalTexturePath
	case graph.ChannelRoughness:
		return &m.RoughnessTexture, &m.RoughnessTexturePath
	case graph.ChannelAmbientOcclusion:
		return &m.AmbientOcclusionTexture, &m.AmbientOcclusionTexturePath
	case graph.ChannelHeight:
		return &m.HeightTexture, &m.HeightTexturePath
	case graph.ChannelMetallic:
		return &m.MetallicTexture, &m.MetallicTexturePath
	case graph.ChannelEmission:
		return &m.EmissionTexture, &m.EmissionTexturePath
	}
	return nil, nil
}

// Bind stores a texture for a textured channel. It reports false for
// channels without a texture slot.
func (m *SurfaceMaterial) Bind(ch graph.Channel, h texture.Handle, path string) bool {
	hp, pp := m.slot(ch)
	if hp == nil {
		return false
	}
	*hp, *pp = h, path
	return true
}

// Texture returns the binding of a textured channel.
func (m *SurfaceMaterial) Texture(ch graph.Channel) (texture.Handle, string) {
	hp, pp := m.slot(ch)
	if hp == nil {
		return texture.Handle{}, ""
	}
	return *hp, *pp
}
