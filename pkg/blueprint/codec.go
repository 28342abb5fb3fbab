package blueprint

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chazu/matgraph/pkg/graph"
)

type fileBlueprint struct {
	Name  string    `json:"name"`
	UUID  string    `json:"UUID"`
	Graph fileGraph `json:"graph"`
}

type fileGraph struct {
	Nodes       []fileNode       `json:"nodes"`
	Connections []fileConnection `json:"connections"`
}

type fileNode struct {
	Type     string     `json:"type"`
	Position [2]float32 `json:"position"`
	UUID     string     `json:"UUID"`
	Name     string     `json:"name,omitempty"`
}

type fileConnection struct {
	From     int `json:"from"`
	FromSlot int `json:"fromSlot"`
	To       int `json:"to"`
	ToSlot   int `json:"toSlot"`
}

// Encode renders the blueprint in its file format. Nodes are written in
// creation order; links whose pins cannot be resolved are dropped.
func (b *Blueprint) Encode() ([]byte, error) {
	s := b.System
	out := fileBlueprint{
		Name: b.Name,
		UUID: b.UUID,
		Graph: fileGraph{
			Nodes:       []fileNode{},
			Connections: []fileConnection{},
		},
	}

	for _, n := range s.Nodes() {
		out.Graph.Nodes = append(out.Graph.Nodes, fileNode{
			Type:     n.Kind.String(),
			Position: [2]float32{n.Position.X, n.Position.Y},
			UUID:     n.UUID,
			Name:     n.Name,
		})
	}

	for _, l := range s.Links() {
		start, end := s.FindPin(l.Start), s.FindPin(l.End)
		if start == nil || end == nil {
			continue
		}
		out.Graph.Connections = append(out.Graph.Connections, fileConnection{
			From:     s.NodeIndex(start.Node),
			FromSlot: s.PinSlot(l.Start),
			To:       s.NodeIndex(end.Node),
			ToSlot:   s.PinSlot(l.End),
		})
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode blueprint %s: %w", b.Path, err)
	}
	return data, nil
}

// Decoding mirrors the file types with raw fields so a malformed entry only
// costs that entry.
type rawBlueprint struct {
	Name  *string         `json:"name"`
	UUID  json.RawMessage `json:"UUID"`
	Graph json.RawMessage `json:"graph"`
}

type rawGraph struct {
	Nodes       json.RawMessage `json:"nodes"`
	Connections json.RawMessage `json:"connections"`
}

type rawNode struct {
	Type     string          `json:"type"`
	Position json.RawMessage `json:"position"`
	UUID     string          `json:"UUID"`
	Name     string          `json:"name"`
}

type rawConnection struct {
	From     *int `json:"from"`
	FromSlot *int `json:"fromSlot"`
	To       *int `json:"to"`
	ToSlot   *int `json:"toSlot"`
}

type decoder struct {
	path     string
	logger   *slog.Logger
	warnings []Warning
}

func (d *decoder) warn(subject, format string, args ...any) {
	w := Warning{Subject: subject, Message: fmt.Sprintf(format, args...)}
	d.warnings = append(d.warnings, w)
	d.logger.Warn("blueprint entry skipped", "path", d.path, "entry", subject, "reason", w.Message)
}

// Decode parses a blueprint file read from path. Only input that is not a
// JSON object is an error; every other problem skips or defaults the
// affected entry and is reported as a Warning. A nil logger uses
// slog.Default().
func Decode(path string, data []byte, logger *slog.Logger) (*Blueprint, []Warning, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var raw rawBlueprint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode blueprint %s: %w", path, err)
	}

	d := &decoder{path: path, logger: logger}
	b := &Blueprint{Name: "Unnamed", Path: path, System: graph.NewSystem()}
	if raw.Name != nil {
		b.Name = *raw.Name
	}

	var id string
	if err := json.Unmarshal(raw.UUID, &id); err != nil || id == "" {
		d.warn("", "missing or invalid UUID, minted a new one")
		id = graph.NewUUID()
	}
	b.UUID = id

	var g rawGraph
	if len(raw.Graph) == 0 || json.Unmarshal(raw.Graph, &g) != nil {
		d.warn("", "missing or invalid graph section")
		return b, d.warnings, nil
	}

	spawned := d.decodeNodes(b.System, g.Nodes)
	d.decodeConnections(b.System, g.Connections, spawned)
	return b, d.warnings, nil
}

// decodeNodes spawns one node per entry and returns them by file index.
// Skipped entries leave a nil hole so connection indices keep their meaning.
func (d *decoder) decodeNodes(s *graph.System, data json.RawMessage) []*graph.Node {
	var entries []json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &entries) != nil {
		d.warn("", "no valid nodes array")
		return nil
	}

	spawned := make([]*graph.Node, len(entries))
	for i, entry := range entries {
		subject := fmt.Sprintf("nodes[%d]", i)

		var rn rawNode
		if err := json.Unmarshal(entry, &rn); err != nil {
			d.warn(subject, "malformed node: %v", err)
			continue
		}
		if rn.Type == "" {
			d.warn(subject, "missing type")
			continue
		}
		kind, ok := graph.ParseNodeKind(rn.Type)
		if !ok {
			d.warn(subject, "unknown node type %q", rn.Type)
			continue
		}
		n, err := s.Spawn(kind)
		if err != nil {
			d.warn(subject, "cannot spawn %s: %v", rn.Type, err)
			continue
		}

		var pos []float32
		if len(rn.Position) > 0 {
			if err := json.Unmarshal(rn.Position, &pos); err != nil || len(pos) != 2 {
				d.warn(subject, "invalid position, using origin")
				pos = nil
			}
		}
		if pos != nil {
			n.Position = graph.Vec2{X: pos[0], Y: pos[1]}
		}
		if rn.UUID != "" {
			n.UUID = rn.UUID
		}
		if rn.Name != "" {
			n.Name = rn.Name
		}
		spawned[i] = n
	}
	return spawned
}

func (d *decoder) decodeConnections(s *graph.System, data json.RawMessage, spawned []*graph.Node) {
	var entries []json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &entries) != nil {
		d.warn("", "no valid connections array")
		return
	}

	for i, entry := range entries {
		subject := fmt.Sprintf("connections[%d]", i)

		var rc rawConnection
		if err := json.Unmarshal(entry, &rc); err != nil {
			d.warn(subject, "malformed connection: %v", err)
			continue
		}
		if rc.From == nil || rc.To == nil || rc.FromSlot == nil || rc.ToSlot == nil {
			d.warn(subject, "missing required fields")
			continue
		}
		from, to := *rc.From, *rc.To
		if from < 0 || from >= len(spawned) || to < 0 || to >= len(spawned) {
			d.warn(subject, "node index out of range (from=%d to=%d, %d nodes)", from, to, len(spawned))
			continue
		}
		src, dst := spawned[from], spawned[to]
		if src == nil || dst == nil {
			d.warn(subject, "references a node that failed to load")
			continue
		}
		if *rc.FromSlot < 0 || *rc.FromSlot >= len(src.Outputs) || *rc.ToSlot < 0 || *rc.ToSlot >= len(dst.Inputs) {
			d.warn(subject, "pin slot out of range")
			continue
		}
		if _, err := s.Link(src.Outputs[*rc.FromSlot], dst.Inputs[*rc.ToSlot]); err != nil {
			d.warn(subject, "link rejected: %v", err)
		}
	}
}
