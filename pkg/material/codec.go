package material

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/graph"
)

// File layout:
//
//	{"name": "Oak", "Blueprint": "materials/wood.bp", "nodeData": {"<uuid>": {"type": "Slider", "data": [0.5]}}}
//
// data is positional per kind: Color [r,g,b,a], Texture [path],
// Slider [value], Vector2 [x,y].
type fileChild struct {
	Name      string               `json:"name"`
	Blueprint string               `json:"Blueprint"`
	NodeData  map[string]fileEntry `json:"nodeData"`
}

type fileEntry struct {
	Type string `json:"type"`
	Data []any  `json:"data"`
}

// Encode renders the child in its file format. One entry is written per
// value node of bp; a node without a stored value gets empty data.
func (c *Child) Encode(bp *blueprint.Blueprint) ([]byte, error) {
	out := fileChild{
		Name:      c.Name,
		Blueprint: c.BlueprintPath,
		NodeData:  make(map[string]fileEntry),
	}
	for _, n := range bp.System.Nodes() {
		if !n.Kind.HasInstanceValue() {
			continue
		}
		out.NodeData[n.UUID] = fileEntry{Type: n.Kind.String(), Data: encodeValue(c.values[n.UUID])}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode child material %s: %w", c.Path, err)
	}
	return data, nil
}

func encodeValue(v graph.NodeData) []any {
	switch d := v.(type) {
	case graph.ColorData:
		return []any{d.Color.R, d.Color.G, d.Color.B, d.Color.A}
	case graph.TextureData:
		return []any{d.Path}
	case graph.SliderData:
		return []any{d.Value}
	case graph.Vector2Data:
		return []any{d.X, d.Y}
	}
	return []any{}
}

// PeekBlueprint returns the blueprint path a child file refers to, so the
// caller can load the blueprint before decoding the child.
func PeekBlueprint(data []byte) (string, error) {
	var head struct {
		Blueprint json.RawMessage `json:"Blueprint"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("decode child material: %w", err)
	}
	var path string
	if len(head.Blueprint) == 0 || json.Unmarshal(head.Blueprint, &path) != nil || path == "" {
		return "", ErrNoBlueprint
	}
	return path, nil
}

type rawChild struct {
	Name      *string                    `json:"name"`
	Blueprint json.RawMessage            `json:"Blueprint"`
	NodeData  map[string]json.RawMessage `json:"nodeData"`
}

type rawEntry struct {
	Type *string            `json:"type"`
	Data *[]json.RawMessage `json:"data"`
}

// Decode parses a child material file stored at path against its already
// loaded blueprint bp. Entries for UUIDs bp does not know, entries of the
// wrong kind and textures without a path are skipped with a Warning.
// Missing components fall back to defaults: 1.0 for colours, 0.0 for
// sliders and vectors. A nil logger uses slog.Default().
func Decode(path string, data []byte, bp *blueprint.Blueprint, logger *slog.Logger) (*Child, []blueprint.Warning, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bpPath, err := PeekBlueprint(data)
	if err != nil {
		return nil, nil, err
	}
	var raw rawChild
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode child material %s: %w", path, err)
	}

	c := &Child{
		Name:          "Unnamed Child Material",
		Path:          path,
		BlueprintPath: bpPath,
		BlueprintUUID: bp.UUID,
		values:        make(map[string]graph.NodeData),
	}
	if raw.Name != nil {
		c.Name = *raw.Name
	}

	var warnings []blueprint.Warning
	warn := func(uuid, format string, args ...any) {
		w := blueprint.Warning{Subject: uuid, Message: fmt.Sprintf(format, args...)}
		warnings = append(warnings, w)
		logger.Warn("child material entry skipped", "path", path, "uuid", uuid, "reason", w.Message)
	}

	// Walk in blueprint order so warnings come out deterministically.
	known := make(map[string]bool)
	for _, n := range bp.System.Nodes() {
		known[n.UUID] = true
		entry, ok := raw.NodeData[n.UUID]
		if !ok {
			continue
		}
		v, err := decodeEntry(n.Kind, entry)
		if err != nil {
			warn(n.UUID, "%v", err)
			continue
		}
		c.values[n.UUID] = v
	}
	for _, id := range sortedKeys(raw.NodeData) {
		if !known[id] {
			warn(id, "node not found in blueprint %s", bpPath)
		}
	}
	return c, warnings, nil
}

func decodeEntry(kind graph.NodeKind, data json.RawMessage) (graph.NodeData, error) {
	var e rawEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("malformed entry: %w", err)
	}
	if e.Type == nil || e.Data == nil {
		return nil, errors.New("entry needs type and data")
	}
	if *e.Type != kind.String() {
		return nil, fmt.Errorf("%w: entry is %s, blueprint node is %s", ErrKindMismatch, *e.Type, kind)
	}
	items := *e.Data

	switch kind {
	case graph.NodeColor:
		c := graph.White
		if len(items) >= 4 {
			c = graph.RGBA{
				R: floatOr(items[0], 1),
				G: floatOr(items[1], 1),
				B: floatOr(items[2], 1),
				A: floatOr(items[3], 1),
			}
		}
		return graph.ColorData{Color: c}, nil
	case graph.NodeTexture:
		var p string
		if len(items) > 0 {
			_ = json.Unmarshal(items[0], &p)
		}
		if p == "" {
			return nil, errors.New("texture path is empty")
		}
		return graph.TextureData{Path: p}, nil
	case graph.NodeSlider:
		var v float32
		if len(items) > 0 {
			v = floatOr(items[0], 0)
		}
		return graph.SliderData{Value: v}, nil
	case graph.NodeVector2:
		var d graph.Vector2Data
		if len(items) >= 2 {
			d.X = floatOr(items[0], 0)
			d.Y = floatOr(items[1], 0)
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoInstanceValue, kind)
}

// floatOr decodes a JSON number, returning def for null or non-numbers.
func floatOr(raw json.RawMessage, def float32) float32 {
	var f *float32
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return def
	}
	return *f
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
