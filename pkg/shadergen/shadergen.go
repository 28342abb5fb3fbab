// Package shadergen turns a child material and its blueprint graph into
// GLSL fragment shader source.
//
// Generation is a pure function of the blueprint graph, the child's values
// and the template file: the same inputs always produce byte-identical
// output. Textured channels are bound onto the target entity as a side
// effect.
package shadergen

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/graph"
	"github.com/chazu/matgraph/pkg/material"
	"github.com/chazu/matgraph/pkg/scene"
	"github.com/chazu/matgraph/pkg/texture"
	"github.com/chazu/matgraph/pkg/tree"
)

// DefaultPlaceholder marks where generated code goes in the template.
const DefaultPlaceholder = "// [ INSERT GENERATED CODE BELOW ]"

// DefaultTemplate is the base fragment shader, relative to the working
// directory.
const DefaultTemplate = "assets/shaders/material_fragment.glsl"

var (
	ErrUnknownBlueprint = errors.New("shadergen: child material references an unknown blueprint")
	ErrInvalidTree      = errors.New("shadergen: blueprint has no valid material root")
)

// Resolver looks up the blueprint a child material references.
// *store.Store satisfies it.
type Resolver interface {
	Blueprint(path string) (*blueprint.Blueprint, error)
}

// Generator produces fragment shaders.
type Generator struct {
	resolver     Resolver
	templatePath string
	placeholder  string
	loader       texture.Loader
	logger       *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemplate sets the base shader file.
func WithTemplate(path string) Option { return func(g *Generator) { g.templatePath = path } }

// WithPlaceholder sets the marker replaced by generated code.
func WithPlaceholder(p string) Option { return func(g *Generator) { g.placeholder = p } }

// WithLoader sets how texture handles are resolved. Without a loader,
// bindings carry the path only.
func WithLoader(l texture.Loader) Option { return func(g *Generator) { g.loader = l } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// New creates a Generator that resolves blueprints through r.
func New(r Resolver, opts ...Option) *Generator {
	g := &Generator{
		resolver:     r,
		templatePath: DefaultTemplate,
		placeholder:  DefaultPlaceholder,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "shadergen")
	return g
}

// Generate builds the full shader for child c and binds its textures onto
// e. On error the result is empty and callers should keep the previous
// shader.
func (g *Generator) Generate(e *scene.Entity, c *material.Child) (string, error) {
	code, err := g.GenerateCode(e, c)
	if err != nil {
		return "", err
	}
	tmpl, err := LoadTemplate(g.templatePath)
	if err != nil {
		g.logger.Error("shader template unreadable", "path", g.templatePath, "err", err)
		return "", err
	}
	if !strings.Contains(tmpl, g.placeholder) {
		g.logger.Warn("shader template has no placeholder", "path", g.templatePath, "placeholder", g.placeholder)
	}
	return InsertGenerated(tmpl, g.placeholder, code), nil
}

// GenerateCode builds only the generated block: channel defines, the
// tiling literal and one wrapper function per textured channel.
func (g *Generator) GenerateCode(e *scene.Entity, c *material.Child) (string, error) {
	bp, err := g.resolver.Blueprint(c.BlueprintPath)
	if err != nil || bp == nil {
		g.logger.Error("child material does not inherit any blueprint", "child", c.Path, "blueprint", c.BlueprintPath, "err", err)
		return "", errors.Wrapf(ErrUnknownBlueprint, "%s", c.BlueprintPath)
	}
	tr, err := bp.Tree()
	if err != nil {
		g.logger.Error("material tree has no valid root", "blueprint", bp.Path, "err", err)
		return "", errors.Wrapf(ErrInvalidTree, "%s: %v", bp.Path, err)
	}

	r := &renderer{
		sys:     bp.System,
		tr:      tr,
		child:   c,
		logger:  g.logger,
		onStack: make(map[graph.NodeID]bool),
	}
	root := bp.System.FindNode(tr.Root().ID)

	var b strings.Builder
	for _, ch := range graph.Channels() {
		src := r.upstream(root, int(ch))
		if src == nil {
			continue
		}
		if ch == graph.ChannelTiling {
			g.writeTiling(&b, r, e, src)
			continue
		}
		g.bindTexture(&b, r, e, ch, src)
	}

	for _, ch := range graph.Channels() {
		if ch > graph.LastTextureChannel {
			break
		}
		body := "textureRGBA"
		if src := r.upstream(root, int(ch)); src != nil {
			body = r.expr(src)
		}
		fmt.Fprintf(&b, "vec4 %s(vec4 textureRGBA) { return %s; }\n", ch.FuncName(), body)
	}
	return b.String(), nil
}

// bindTexture looks for the first texture feeding channel ch and, when the
// child holds a path for it, binds it on e and emits the channel define.
// Empty paths and paths outside the loader root are not bound.
func (g *Generator) bindTexture(b *strings.Builder, r *renderer, e *scene.Entity, ch graph.Channel, src *graph.Node) {
	tn := r.find(src, graph.NodeTexture)
	if tn == nil {
		return
	}
	td, ok := material.Get[graph.TextureData](r.child, tn.UUID)
	if !ok || td.Path == "" {
		return
	}
	h := td.Handle
	if g.loader != nil {
		loaded, err := g.loader.Load(td.Path)
		if errors.Is(err, texture.ErrOutsideRoot) {
			g.logger.Error("texture path escapes the project", "channel", ch.String(), "path", td.Path)
			return
		}
		if err != nil {
			g.logger.Warn("texture not loaded", "channel", ch.String(), "path", td.Path, "err", err)
		} else {
			h = loaded
		}
	}
	if h.IsZero() {
		h.Path = td.Path
	}
	e.SurfaceMaterial.Bind(ch, h, td.Path)
	fmt.Fprintf(b, "#define %s\n", ch.Define())
}

func (g *Generator) writeTiling(b *strings.Builder, r *renderer, e *scene.Entity, src *graph.Node) {
	vn := r.find(src, graph.NodeVector2)
	if vn == nil {
		return
	}
	v, ok := material.Get[graph.Vector2Data](r.child, vn.UUID)
	if !ok {
		return
	}
	e.SurfaceMaterial.Tiling = [2]float32{v.X, v.Y}
	fmt.Fprintf(b, "#define %s\n", graph.ChannelTiling.Define())
	fmt.Fprintf(b, "vec2 tiling = vec2(%f, %f);\n", v.X, v.Y)
}

// LoadTemplate reads a shader template from disk.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "load shader template %s", path)
	}
	return string(data), nil
}

// InsertGenerated replaces the first occurrence of placeholder in tmpl with
// code. A template without the placeholder is returned unchanged.
func InsertGenerated(tmpl, placeholder, code string) string {
	return strings.Replace(tmpl, placeholder, code, 1)
}

// renderer walks one blueprint graph for one child.
type renderer struct {
	sys     *graph.System
	tr      *tree.Tree
	child   *material.Child
	logger  *slog.Logger
	onStack map[graph.NodeID]bool
}

// upstream returns the node linked into input slot of n, or nil.
func (r *renderer) upstream(n *graph.Node, slot int) *graph.Node {
	if n == nil || slot < 0 || slot >= len(n.Inputs) {
		return nil
	}
	tn := r.tr.Node(n.ID)
	if tn == nil {
		return nil
	}
	conns := tn.Inputs(n.Inputs[slot])
	if len(conns) == 0 {
		return nil
	}
	return r.sys.FindNode(conns[0].Node)
}

// find returns start if it is of kind k, otherwise the first node of kind k
// upstream of start.
func (r *renderer) find(start *graph.Node, k graph.NodeKind) *graph.Node {
	if start.Kind == k {
		return start
	}
	tn, ok := r.tr.FindUpstream(start.ID, func(t *tree.TreeNode) bool {
		n := r.sys.FindNode(t.ID)
		return n != nil && n.Kind == k
	})
	if !ok {
		return nil
	}
	return r.sys.FindNode(tn.ID)
}

// expr renders the value of n as a GLSL expression.
func (r *renderer) expr(n *graph.Node) string {
	if r.onStack[n.ID] {
		r.logger.Warn("cycle while rendering expression", "node", n.UUID)
		return "vec4(0.0)"
	}
	r.onStack[n.ID] = true
	defer delete(r.onStack, n.ID)

	switch n.Kind {
	case graph.NodeTexture:
		return "textureRGBA"
	case graph.NodeColor:
		v, ok := material.Get[graph.ColorData](r.child, n.UUID)
		if !ok {
			return "vec4(0.0)"
		}
		c := v.Color
		return fmt.Sprintf("vec4(%f, %f, %f, %f)", c.R, c.G, c.B, c.A)
	case graph.NodeSlider:
		v, ok := material.Get[graph.SliderData](r.child, n.UUID)
		if !ok {
			return "0.0"
		}
		return fmt.Sprintf("%f", v.Clamped())
	case graph.NodeVector2:
		v, ok := material.Get[graph.Vector2Data](r.child, n.UUID)
		if !ok {
			return "vec2(0.0)"
		}
		return fmt.Sprintf("vec2(%f, %f)", v.X, v.Y)
	case graph.NodeOneMinusX:
		in := r.upstream(n, 0)
		if in == nil {
			return "1.0"
		}
		return "(1.0 - " + r.expr(in) + ")"
	case graph.NodeMultiply:
		return "(" + r.operand(n, 0) + " * " + r.operand(n, 1) + ")"
	}
	r.logger.Warn("unsupported node in expression", "node", n.UUID, "kind", n.Kind.String())
	return "vec4(0.0)"
}

func (r *renderer) operand(n *graph.Node, slot int) string {
	in := r.upstream(n, slot)
	if in == nil {
		return "0.0"
	}
	return r.expr(in)
}
