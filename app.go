package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/config"
	"github.com/chazu/matgraph/pkg/engine"
	"github.com/chazu/matgraph/pkg/graph"
	"github.com/chazu/matgraph/pkg/kernel"
	"github.com/chazu/matgraph/pkg/kernel/sdfx"
	"github.com/chazu/matgraph/pkg/material"
	"github.com/chazu/matgraph/pkg/preview"
	"github.com/chazu/matgraph/pkg/scene"
	"github.com/chazu/matgraph/pkg/shadergen"
	"github.com/chazu/matgraph/pkg/store"
	"github.com/chazu/matgraph/pkg/texture"
)

// App is the Wails backend. It exposes one binding per editor action.
// Bindings may be called concurrently by the frontend; mu serializes them.
type App struct {
	ctx    context.Context
	mu     sync.Mutex
	cfg    config.Config
	logger *slog.Logger

	store  *store.Store
	gen    *shadergen.Generator
	engine *engine.Engine
	kernel kernel.Kernel
}

// PinView is a pin as the node editor draws it.
type PinView struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Types  string `json:"types"`
	Linked bool   `json:"linked"`
}

// NodeView is a node as the node editor draws it.
type NodeView struct {
	ID      int        `json:"id"`
	UUID    string     `json:"uuid"`
	Kind    string     `json:"kind"`
	Name    string     `json:"name"`
	X       float32    `json:"x"`
	Y       float32    `json:"y"`
	Color   graph.RGBA `json:"color"`
	IsRoot  bool       `json:"isRoot"`
	Inputs  []PinView  `json:"inputs"`
	Outputs []PinView  `json:"outputs"`
}

// LinkView is a link between an output pin and an input pin.
type LinkView struct {
	ID    int `json:"id"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// GraphView is a whole blueprint.
type GraphView struct {
	Path  string     `json:"path"`
	Name  string     `json:"name"`
	UUID  string     `json:"uuid"`
	Nodes []NodeView `json:"nodes"`
	Links []LinkView `json:"links"`
}

// ValueView is one overridden value of a child material.
type ValueView struct {
	UUID string         `json:"uuid"`
	Kind string         `json:"kind"`
	Data graph.NodeData `json:"data"`
}

// ChildView is a child material.
type ChildView struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Blueprint string      `json:"blueprint"`
	Values    []ValueView `json:"values"`
}

// TextureView is a texture bound to a channel by compilation.
type TextureView struct {
	Channel string `json:"channel"`
	Path    string `json:"path"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// CompileResult is a generated shader and the bindings it expects.
type CompileResult struct {
	Shader   string        `json:"shader"`
	Textures []TextureView `json:"textures"`
	Tiling   [2]float32    `json:"tiling"`
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	UVs      []float32 `json:"uvs"`
	Indices  []uint32  `json:"indices"`
	Shape    string    `json:"shape"`
}

// EvalErrorData is a JSON-serializable script error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the outcome of evaluating a material script.
type EvalResult struct {
	Graph  *GraphView      `json:"graph"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp opens the project named by cfg.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.New(cfg.ProjectRoot, logger)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:    cfg,
		logger: logger.With("component", "app"),
		store:  st,
		gen: shadergen.New(st,
			shadergen.WithTemplate(cfg.ShaderTemplate),
			shadergen.WithPlaceholder(cfg.Placeholder),
			shadergen.WithLoader(texture.NewFileLoader(st.Root())),
			shadergen.WithLogger(logger),
		),
		engine: engine.NewEngine(),
		kernel: sdfx.New(cfg.Preview.Cells),
	}, nil
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.logger.Info("project opened", "root", a.store.Root())
}

// shutdown drops the project registry. Unsaved edits are lost.
func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close failed", "err", err)
	}
}

// ---------------------------------------------------------------------------
// Blueprint editing
// ---------------------------------------------------------------------------

// CreateBlueprint registers a blueprint holding only a root.
func (a *App) CreateBlueprint(name, path string) (GraphView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.CreateBlueprint(name, path)
	if err != nil {
		return GraphView{}, err
	}
	return graphView(bp), nil
}

// OpenBlueprint loads a blueprint from the project.
func (a *App) OpenBlueprint(path string) (GraphView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.Blueprint(path)
	if err != nil {
		return GraphView{}, err
	}
	return graphView(bp), nil
}

// SpawnNode adds a node of the named kind at (x, y).
func (a *App) SpawnNode(bpPath, kind string, x, y float32) (NodeView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.Blueprint(bpPath)
	if err != nil {
		return NodeView{}, err
	}
	k, ok := graph.ParseNodeKind(kind)
	if !ok {
		return NodeView{}, fmt.Errorf("unknown node kind %q", kind)
	}
	n, err := bp.System.Spawn(k)
	if err != nil {
		return NodeView{}, err
	}
	n.Position = graph.Vec2{X: x, Y: y}
	a.logger.Debug("node spawned", "blueprint", bp.Path, "kind", kind, "uuid", n.UUID)
	return nodeView(bp.System, n), nil
}

// Connect links two pins in either order. An existing link into the input
// is replaced.
func (a *App) Connect(bpPath string, pinA, pinB int) (LinkView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.Blueprint(bpPath)
	if err != nil {
		return LinkView{}, err
	}
	l, err := bp.System.Link(graph.PinID(pinA), graph.PinID(pinB))
	if err != nil {
		return LinkView{}, err
	}
	return linkView(l), nil
}

// DeleteNode removes a node and its links. The root cannot be deleted.
func (a *App) DeleteNode(bpPath string, id int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.Blueprint(bpPath)
	if err != nil {
		return false, err
	}
	if n := bp.System.FindNode(graph.NodeID(id)); n != nil && n.IsRoot {
		return false, errors.New("the material root cannot be deleted")
	}
	return bp.System.DeleteNode(graph.NodeID(id)), nil
}

// DeleteLink removes one link.
func (a *App) DeleteLink(bpPath string, id int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.Blueprint(bpPath)
	if err != nil {
		return false, err
	}
	return bp.System.DeleteLink(graph.LinkID(id)), nil
}

// MoveNode sets a node's editor position.
func (a *App) MoveNode(bpPath string, id int, x, y float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	bp, err := a.store.Blueprint(bpPath)
	if err != nil {
		return err
	}
	return bp.System.SetNodePosition(graph.NodeID(id), graph.Vec2{X: x, Y: y})
}

// SaveBlueprint writes the blueprint and re-syncs its open children.
func (a *App) SaveBlueprint(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.SaveBlueprint(path)
}

// ---------------------------------------------------------------------------
// Child materials
// ---------------------------------------------------------------------------

// CreateChild registers a child of the blueprint at bpPath with default
// values.
func (a *App) CreateChild(name, path, bpPath string) (ChildView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.store.CreateChild(name, path, bpPath)
	if err != nil {
		return ChildView{}, err
	}
	return childView(c), nil
}

// OpenChild loads a child material and its blueprint.
func (a *App) OpenChild(path string) (ChildView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.store.Child(path)
	if err != nil {
		return ChildView{}, err
	}
	return childView(c), nil
}

// SetSlider overrides a slider value. An integer flag already held in memory
// is kept, but neither file format stores it, so reloaded sliders are
// continuous.
func (a *App) SetSlider(childPath, uuid string, v float32) error {
	return a.setValue(childPath, uuid, func(bp *blueprint.Blueprint, c *material.Child) graph.NodeData {
		sd, ok := material.Get[graph.SliderData](c, uuid)
		if !ok {
			if n := bp.System.FindNodeByUUID(uuid); n != nil {
				sd, _ = graph.DataAs[graph.SliderData](n.Data)
			}
		}
		sd.Value = v
		return sd
	})
}

// SetColor overrides a colour value.
func (a *App) SetColor(childPath, uuid string, r, g, b, alpha float32) error {
	return a.setValue(childPath, uuid, func(*blueprint.Blueprint, *material.Child) graph.NodeData {
		return graph.ColorData{Color: graph.RGBA{R: r, G: g, B: b, A: alpha}}
	})
}

// SetVector2 overrides a vector value.
func (a *App) SetVector2(childPath, uuid string, x, y float32) error {
	return a.setValue(childPath, uuid, func(*blueprint.Blueprint, *material.Child) graph.NodeData {
		return graph.Vector2Data{X: x, Y: y}
	})
}

// SetTexture overrides a texture path.
func (a *App) SetTexture(childPath, uuid, path string) error {
	if path == "" {
		return errors.New("texture path is empty")
	}
	return a.setValue(childPath, uuid, func(*blueprint.Blueprint, *material.Child) graph.NodeData {
		return graph.TextureData{Path: path}
	})
}

func (a *App) setValue(childPath, uuid string, value func(*blueprint.Blueprint, *material.Child) graph.NodeData) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.store.Child(childPath)
	if err != nil {
		return err
	}
	bp, err := a.store.Blueprint(c.BlueprintPath)
	if err != nil {
		return err
	}
	return c.Set(bp, uuid, value(bp, c))
}

// SaveChild writes a child material.
func (a *App) SaveChild(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.SaveChild(path)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// Compile generates the fragment shader for a child material.
func (a *App) Compile(childPath string) (CompileResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.store.Child(childPath)
	if err != nil {
		return CompileResult{}, err
	}
	e := scene.NewEntity(c.Name)
	src, err := a.gen.Generate(e, c)
	if err != nil {
		return CompileResult{}, err
	}
	res := CompileResult{Shader: src, Textures: []TextureView{}, Tiling: e.SurfaceMaterial.Tiling}
	for _, ch := range graph.Channels() {
		if ch > graph.LastTextureChannel {
			break
		}
		if h, path := e.SurfaceMaterial.Texture(ch); path != "" {
			res.Textures = append(res.Textures, TextureView{
				Channel: ch.Key(),
				Path:    path,
				Width:   h.Width,
				Height:  h.Height,
			})
		}
	}
	return res, nil
}

// Preview builds the preview mesh for a child material. An empty shape uses
// the configured one.
func (a *App) Preview(childPath, shape string) (MeshData, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.store.Child(childPath)
	if err != nil {
		return MeshData{}, err
	}
	if shape == "" {
		shape = a.cfg.Preview.Shape
	}
	sh, err := preview.ParseShape(shape)
	if err != nil {
		return MeshData{}, err
	}

	// Tiling comes from generation, so the mesh matches the shader.
	e := scene.NewEntity(c.Name)
	if _, err := a.gen.GenerateCode(e, c); err != nil {
		return MeshData{}, err
	}
	m, err := preview.Build(a.kernel, sh, e.SurfaceMaterial.Tiling)
	if err != nil {
		a.logger.Error("preview failed", "child", c.Path, "shape", shape, "err", err)
		return MeshData{}, err
	}
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		UVs:      m.UVs,
		Indices:  m.Indices,
		Shape:    m.Name,
	}, nil
}

// Evaluate runs a material script and returns the graph it builds. The
// result is not registered in the project.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{Errors: []EvalErrorData{}}

	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.logger.Error("script evaluation failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{
			Line:    e.Line,
			Col:     e.Col,
			Message: e.Message,
		})
	}
	if len(evalErrs) > 0 {
		return result
	}

	gv := graphView(blueprint.FromSystem("", "", res.System))
	result.Graph = &gv
	return result
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func graphView(bp *blueprint.Blueprint) GraphView {
	gv := GraphView{
		Path:  bp.Path,
		Name:  bp.Name,
		UUID:  bp.UUID,
		Nodes: []NodeView{},
		Links: []LinkView{},
	}
	for _, n := range bp.System.Nodes() {
		gv.Nodes = append(gv.Nodes, nodeView(bp.System, n))
	}
	for _, l := range bp.System.Links() {
		gv.Links = append(gv.Links, linkView(l))
	}
	return gv
}

func nodeView(s *graph.System, n *graph.Node) NodeView {
	pins := func(ids []graph.PinID) []PinView {
		out := make([]PinView, 0, len(ids))
		for _, id := range ids {
			p := s.FindPin(id)
			if p == nil {
				continue
			}
			out = append(out, PinView{
				ID:     int(p.ID),
				Name:   p.Name,
				Types:  p.Types.String(),
				Linked: s.IsPinLinked(p.ID),
			})
		}
		return out
	}
	return NodeView{
		ID:      int(n.ID),
		UUID:    n.UUID,
		Kind:    n.Kind.String(),
		Name:    n.Name,
		X:       n.Position.X,
		Y:       n.Position.Y,
		Color:   n.Color,
		IsRoot:  n.IsRoot,
		Inputs:  pins(n.Inputs),
		Outputs: pins(n.Outputs),
	}
}

func linkView(l *graph.Link) LinkView {
	return LinkView{ID: int(l.ID), Start: int(l.Start), End: int(l.End)}
}

func childView(c *material.Child) ChildView {
	cv := ChildView{
		Path:      c.Path,
		Name:      c.Name,
		Blueprint: c.BlueprintPath,
		Values:    []ValueView{},
	}
	for _, uuid := range c.UUIDs() {
		v, _ := c.Value(uuid)
		cv.Values = append(cv.Values, ValueView{UUID: uuid, Kind: v.Kind().String(), Data: v})
	}
	return cv
}
