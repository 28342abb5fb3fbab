// Package blueprint holds material blueprints, the shared template graphs
// child materials overlay, and their JSON file format.
//
// A blueprint file stores nodes as an array and connections as
// (node index, pin slot) pairs, because runtime pin ids are minted afresh
// on every load:
//
//	{
//	  "name": "Wood",
//	  "UUID": "…",
//	  "graph": {
//	    "nodes": [{"type": "Material", "position": [0, 0], "UUID": "…", "name": "Material"}],
//	    "connections": [{"from": 1, "fromSlot": 0, "to": 0, "toSlot": 2}]
//	  }
//	}
package blueprint

import (
	"fmt"

	"github.com/chazu/matgraph/pkg/graph"
	"github.com/chazu/matgraph/pkg/tree"
)

// Blueprint is a named material graph stored at Path.
type Blueprint struct {
	UUID   string
	Name   string
	Path   string
	System *graph.System
}

// New creates a blueprint holding only a Material root.
func New(name, path string) *Blueprint {
	b := &Blueprint{
		UUID:   graph.NewUUID(),
		Name:   name,
		Path:   path,
		System: graph.NewSystem(),
	}
	// An empty system always accepts a root.
	_, _ = b.System.SpawnMaterialNode()
	return b
}

// FromSystem wraps an existing graph, such as one built by a script, as a
// new blueprint.
func FromSystem(name, path string, sys *graph.System) *Blueprint {
	return &Blueprint{UUID: graph.NewUUID(), Name: name, Path: path, System: sys}
}

// Tree builds the traversal view of the blueprint's current graph.
func (b *Blueprint) Tree() (*tree.Tree, error) {
	return tree.Build(b.System.Nodes(), b.System.Links())
}

// UUIDs returns the UUIDs of every node in creation order.
func (b *Blueprint) UUIDs() []string {
	nodes := b.System.Nodes()
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.UUID
	}
	return out
}

// Warning describes an entry that was skipped or defaulted while decoding.
// Decoding continues past warnings.
type Warning struct {
	Subject string // e.g. "nodes[3]", a node UUID, or empty for the file itself
	Message string
}

func (w Warning) String() string {
	if w.Subject == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Subject, w.Message)
}
