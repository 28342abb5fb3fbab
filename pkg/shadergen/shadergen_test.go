package shadergen

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/graph"
	"github.com/chazu/matgraph/pkg/material"
	"github.com/chazu/matgraph/pkg/scene"
	"github.com/chazu/matgraph/pkg/texture"
)

type mapResolver map[string]*blueprint.Blueprint

func (m mapResolver) Blueprint(path string) (*blueprint.Blueprint, error) {
	if bp, ok := m[path]; ok {
		return bp, nil
	}
	return nil, os.ErrNotExist
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func link(t *testing.T, s *graph.System, from, to graph.PinID) {
	t.Helper()
	_, err := s.Link(from, to)
	require.NoError(t, err)
}

func writeTemplate(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fragment.glsl")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const template = "#version 330\n" + DefaultPlaceholder + "\nvoid main() {}\n"

// roughness builds Material.Roughness <- Multiply(Slider(0.5), OneMinusX(Slider(0.3))).
func roughness(t *testing.T) (*blueprint.Blueprint, *material.Child) {
	t.Helper()
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	a := s.SpawnSliderNode()
	b := s.SpawnSliderNode()
	omx := s.SpawnOneMinusXNode()
	mul := s.SpawnMultiplyNode()
	link(t, s, b.Outputs[0], omx.Inputs[0])
	link(t, s, a.Outputs[0], mul.Inputs[0])
	link(t, s, omx.Outputs[0], mul.Inputs[1])
	link(t, s, mul.Outputs[0], s.Root().Inputs[graph.ChannelRoughness])

	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, a.UUID, graph.SliderData{Value: 0.5}))
	require.NoError(t, c.Set(bp, b.UUID, graph.SliderData{Value: 0.3}))
	return bp, c
}

func TestRoughnessExpression(t *testing.T) {
	bp, c := roughness(t)
	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))

	code, err := g.GenerateCode(scene.NewEntity("e"), c)
	require.NoError(t, err)
	assert.Contains(t, code, "vec4 calcRoughnessMap(vec4 textureRGBA) { return (0.500000 * (1.0 - 0.300000)); }\n")
	assert.Contains(t, code, "vec4 calcDiffuseMap(vec4 textureRGBA) { return textureRGBA; }\n")
	assert.NotContains(t, code, "#define")
}

func TestGeneratedBlockLayout(t *testing.T) {
	_, c := roughness(t)
	bp := blueprint.New("Plain", "plain.bp")
	c.BlueprintPath = bp.Path
	c.Sync(bp)
	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))

	code, err := g.GenerateCode(scene.NewEntity("e"), c)
	require.NoError(t, err)
	want := strings.Join([]string{
		"vec4 calcDiffuseMap(vec4 textureRGBA) { return textureRGBA; }",
		"vec4 calcNormalMap(vec4 textureRGBA) { return textureRGBA; }",
		"vec4 calcRoughnessMap(vec4 textureRGBA) { return textureRGBA; }",
		"vec4 calcAmbientOcclusionMap(vec4 textureRGBA) { return textureRGBA; }",
		"vec4 calcHeightMap(vec4 textureRGBA) { return textureRGBA; }",
		"vec4 calcMetallicMap(vec4 textureRGBA) { return textureRGBA; }",
		"vec4 calcEmissionMap(vec4 textureRGBA) { return textureRGBA; }",
	}, "\n") + "\n"
	assert.Equal(t, want, code)
}

func TestAlbedoTextureBinding(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	tex := s.SpawnTextureNode()
	link(t, s, tex.Outputs[0], s.Root().Inputs[graph.ChannelAlbedo])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, tex.UUID, graph.TextureData{Path: "wood.png"}))

	g := New(mapResolver{bp.Path: bp}, WithTemplate(writeTemplate(t, template)), WithLogger(quietLogger()))
	e := scene.NewEntity("crate")
	out, err := g.Generate(e, c)
	require.NoError(t, err)

	assert.Contains(t, out, "#define ALBEDO\n")
	assert.Contains(t, out, "vec4 calcDiffuseMap(vec4 textureRGBA) { return textureRGBA; }")
	assert.True(t, strings.HasPrefix(out, "#version 330\n#define ALBEDO\n"))
	assert.True(t, strings.HasSuffix(out, "\nvoid main() {}\n"))
	assert.NotContains(t, out, DefaultPlaceholder)

	assert.Equal(t, "wood.png", e.SurfaceMaterial.AlbedoTexturePath)
	assert.Equal(t, "wood.png", e.SurfaceMaterial.AlbedoTexture.Path)
	assert.Empty(t, e.SurfaceMaterial.NormalTexturePath)
}

func TestTextureFoundUpstreamThroughMath(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "rough.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 4))))
	require.NoError(t, f.Close())

	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	tex := s.SpawnTextureNode()
	col := s.SpawnColorNode()
	mul := s.SpawnMultiplyNode()
	link(t, s, col.Outputs[0], mul.Inputs[0])
	link(t, s, tex.Outputs[0], mul.Inputs[1])
	link(t, s, mul.Outputs[0], s.Root().Inputs[graph.ChannelRoughness])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, tex.UUID, graph.TextureData{Path: "rough.png"}))
	require.NoError(t, c.Set(bp, col.UUID, graph.ColorData{Color: graph.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1}}))

	g := New(mapResolver{bp.Path: bp}, WithLoader(texture.NewFileLoader(dir)), WithLogger(quietLogger()))
	e := scene.NewEntity("crate")
	code, err := g.GenerateCode(e, c)
	require.NoError(t, err)

	assert.Contains(t, code, "#define ROUGHNESS\n")
	assert.Contains(t, code, "{ return (vec4(0.500000, 0.500000, 0.500000, 1.000000) * textureRGBA); }")
	assert.Equal(t, 8, e.SurfaceMaterial.RoughnessTexture.Width)
	assert.Equal(t, "png", e.SurfaceMaterial.RoughnessTexture.Format)
}

func TestMissingTextureKeepsPath(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	tex := s.SpawnTextureNode()
	link(t, s, tex.Outputs[0], s.Root().Inputs[graph.ChannelNormal])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, tex.UUID, graph.TextureData{Path: "missing.png"}))

	var logs bytes.Buffer
	g := New(mapResolver{bp.Path: bp},
		WithLoader(texture.NewFileLoader(t.TempDir())),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	e := scene.NewEntity("crate")
	code, err := g.GenerateCode(e, c)
	require.NoError(t, err)

	assert.Contains(t, code, "#define NORMAL\n")
	assert.Equal(t, "missing.png", e.SurfaceMaterial.NormalTexturePath)
	assert.Contains(t, logs.String(), "texture not loaded")
}

func TestTextureWithoutChildValueIsNotBound(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	tex := s.SpawnTextureNode()
	link(t, s, tex.Outputs[0], s.Root().Inputs[graph.ChannelEmission])
	c := material.New("Oak", "oak.mat", bp) // default texture has no path

	g := New(mapResolver{bp.Path: bp}, WithLoader(texture.NewFileLoader(t.TempDir())), WithLogger(quietLogger()))
	e := scene.NewEntity("e")
	code, err := g.GenerateCode(e, c)
	require.NoError(t, err)
	assert.NotContains(t, code, "#define EMISSIVE")
	assert.Contains(t, code, "vec4 calcEmissionMap(vec4 textureRGBA) { return textureRGBA; }")
	h, path := e.SurfaceMaterial.Texture(graph.ChannelEmission)
	assert.True(t, h.IsZero())
	assert.Empty(t, path)
}

func TestTextureOutsideProjectIsNotBound(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))
	f, err := os.Create(filepath.Join(base, "secret.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 7, 7))))
	require.NoError(t, f.Close())

	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	tex := s.SpawnTextureNode()
	link(t, s, tex.Outputs[0], s.Root().Inputs[graph.ChannelAlbedo])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, tex.UUID, graph.TextureData{Path: "../secret.png"}))

	var logs bytes.Buffer
	g := New(mapResolver{bp.Path: bp},
		WithLoader(texture.NewFileLoader(root)),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	e := scene.NewEntity("crate")
	code, err := g.GenerateCode(e, c)
	require.NoError(t, err)

	assert.NotContains(t, code, "#define ALBEDO")
	assert.Empty(t, e.SurfaceMaterial.AlbedoTexturePath)
	assert.Zero(t, e.SurfaceMaterial.AlbedoTexture.Width)
	assert.Contains(t, logs.String(), "texture path escapes the project")
}

func TestNestedOneMinusXKeepsPrecedence(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	sl := s.SpawnSliderNode()
	inner := s.SpawnOneMinusXNode()
	outer := s.SpawnOneMinusXNode()
	lone := s.SpawnOneMinusXNode()
	mul := s.SpawnMultiplyNode()
	link(t, s, sl.Outputs[0], inner.Inputs[0])
	link(t, s, inner.Outputs[0], outer.Inputs[0])
	link(t, s, outer.Outputs[0], mul.Inputs[0])
	link(t, s, lone.Outputs[0], mul.Inputs[1])
	link(t, s, mul.Outputs[0], s.Root().Inputs[graph.ChannelHeight])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, sl.UUID, graph.SliderData{Value: 0.2}))

	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))
	code, err := g.GenerateCode(scene.NewEntity("e"), c)
	require.NoError(t, err)
	assert.Contains(t, code, "vec4 calcHeightMap(vec4 textureRGBA) { return ((1.0 - (1.0 - 0.200000)) * 1.0); }\n")
}

func TestUnconnectedMultiply(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	mul := s.SpawnMultiplyNode()
	link(t, s, mul.Outputs[0], s.Root().Inputs[graph.ChannelMetallic])
	c := material.New("Oak", "oak.mat", bp)

	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))
	code, err := g.GenerateCode(scene.NewEntity("e"), c)
	require.NoError(t, err)
	assert.Contains(t, code, "vec4 calcMetallicMap(vec4 textureRGBA) { return (0.0 * 0.0); }")
}

func TestDefaultsForMissingValues(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	omx := s.SpawnOneMinusXNode()
	col := s.SpawnColorNode()
	slider := s.SpawnSliderNode()
	mul := s.SpawnMultiplyNode()
	link(t, s, omx.Outputs[0], s.Root().Inputs[graph.ChannelHeight])
	link(t, s, col.Outputs[0], mul.Inputs[0])
	link(t, s, slider.Outputs[0], mul.Inputs[1])
	link(t, s, mul.Outputs[0], s.Root().Inputs[graph.ChannelAmbientOcclusion])

	// A child that never synced holds no values at all.
	c, _, err := material.Decode("oak.mat", []byte(`{"Blueprint":"wood.bp"}`), bp, quietLogger())
	require.NoError(t, err)

	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))
	code, err := g.GenerateCode(scene.NewEntity("e"), c)
	require.NoError(t, err)
	assert.Contains(t, code, "calcHeightMap(vec4 textureRGBA) { return 1.0; }")
	assert.Contains(t, code, "calcAmbientOcclusionMap(vec4 textureRGBA) { return (vec4(0.0) * 0.0); }")
}

func TestSliderIsClamped(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	slider := s.SpawnSliderNode()
	link(t, s, slider.Outputs[0], s.Root().Inputs[graph.ChannelHeight])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, slider.UUID, graph.SliderData{Value: 250}))

	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))
	code, err := g.GenerateCode(scene.NewEntity("e"), c)
	require.NoError(t, err)
	assert.Contains(t, code, "{ return 100.000000; }")
}

func TestTiling(t *testing.T) {
	bp := blueprint.New("Wood", "wood.bp")
	s := bp.System
	vec := s.SpawnVector2Node()
	tex := s.SpawnTextureNode()
	link(t, s, vec.Outputs[0], s.Root().Inputs[graph.ChannelTiling])
	link(t, s, tex.Outputs[0], s.Root().Inputs[graph.ChannelAlbedo])
	c := material.New("Oak", "oak.mat", bp)
	require.NoError(t, c.Set(bp, vec.UUID, graph.Vector2Data{X: 2, Y: 3}))
	require.NoError(t, c.Set(bp, tex.UUID, graph.TextureData{Path: "wood.png"}))

	g := New(mapResolver{bp.Path: bp}, WithLogger(quietLogger()))
	e := scene.NewEntity("e")
	code, err := g.GenerateCode(e, c)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code, "#define ALBEDO\n#define TILING\nvec2 tiling = vec2(2.000000, 3.000000);\nvec4 calcDiffuseMap"))
	assert.Equal(t, [2]float32{2, 3}, e.SurfaceMaterial.Tiling)
}

func TestDeterministic(t *testing.T) {
	bp, c := roughness(t)
	g := New(mapResolver{bp.Path: bp}, WithTemplate(writeTemplate(t, template)), WithLogger(quietLogger()))

	first, err := g.Generate(scene.NewEntity("a"), c)
	require.NoError(t, err)
	for range 5 {
		again, err := g.Generate(scene.NewEntity("a"), c)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTemplateWithoutPlaceholder(t *testing.T) {
	bp, c := roughness(t)
	body := "#version 330\nvoid main() {}\n"
	var logs bytes.Buffer
	g := New(mapResolver{bp.Path: bp},
		WithTemplate(writeTemplate(t, body)),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	out, err := g.Generate(scene.NewEntity("e"), c)
	require.NoError(t, err)
	assert.Equal(t, body, out)
	assert.Contains(t, logs.String(), "no placeholder")
}

func TestFailures(t *testing.T) {
	bp, c := roughness(t)

	g := New(mapResolver{}, WithLogger(quietLogger()))
	out, err := g.Generate(scene.NewEntity("e"), c)
	assert.ErrorIs(t, err, ErrUnknownBlueprint)
	assert.Empty(t, out)

	rootless := blueprint.New("Wood", "wood.bp")
	rootless.System.DeleteNode(rootless.System.Root().ID)
	g = New(mapResolver{bp.Path: rootless}, WithLogger(quietLogger()))
	out, err = g.Generate(scene.NewEntity("e"), c)
	assert.ErrorIs(t, err, ErrInvalidTree)
	assert.Empty(t, out)

	g = New(mapResolver{bp.Path: bp}, WithTemplate(filepath.Join(t.TempDir(), "absent.glsl")), WithLogger(quietLogger()))
	out, err = g.Generate(scene.NewEntity("e"), c)
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestInsertGeneratedReplacesFirstOnly(t *testing.T) {
	tmpl := "a\nMARK\nb\nMARK\n"
	assert.Equal(t, "a\nCODE\nb\nMARK\n", InsertGenerated(tmpl, "MARK", "CODE"))
	assert.Equal(t, "plain", InsertGenerated("plain", "MARK", "CODE"))
}
