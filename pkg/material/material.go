// Package material implements child materials: per-instance values laid
// over a blueprint, keyed by blueprint node UUID. A child stores no graph
// structure of its own and is brought back in line with its blueprint by
// Sync.
package material

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/graph"
)

var (
	ErrUnknownNode     = errors.New("material: node not in blueprint")
	ErrKindMismatch    = errors.New("material: value kind does not match node")
	ErrNoInstanceValue = errors.New("material: node kind has no instance value")
	ErrNoBlueprint     = errors.New("material: missing or invalid Blueprint reference")
)

// Child is a concrete material referencing one blueprint by path.
type Child struct {
	Name          string
	Path          string
	BlueprintPath string
	BlueprintUUID string

	values map[string]graph.NodeData
}

// New creates a child of bp, already synced so every value node has a
// default entry.
func New(name, path string, bp *blueprint.Blueprint) *Child {
	c := &Child{
		Name:          name,
		Path:          path,
		BlueprintPath: bp.Path,
		BlueprintUUID: bp.UUID,
		values:        make(map[string]graph.NodeData),
	}
	c.Sync(bp)
	return c
}

// Get returns the value stored for uuid narrowed to T. ok is false when the
// entry is absent or holds a different kind.
func Get[T graph.NodeData](c *Child, uuid string) (T, bool) {
	return graph.DataAs[T](c.values[uuid])
}

// Value returns the raw payload stored for uuid.
func (c *Child) Value(uuid string) (graph.NodeData, bool) {
	v, ok := c.values[uuid]
	return v, ok
}

// Set stores v for the blueprint node uuid. The node must exist in bp, carry
// instance values, and be of v's kind.
func (c *Child) Set(bp *blueprint.Blueprint, uuid string, v graph.NodeData) error {
	n := bp.System.FindNodeByUUID(uuid)
	switch {
	case n == nil:
		return fmt.Errorf("%w: %s", ErrUnknownNode, uuid)
	case !n.Kind.HasInstanceValue():
		return fmt.Errorf("%w: %s is a %s", ErrNoInstanceValue, uuid, n.Kind)
	case v == nil || v.Kind() != n.Kind:
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, uuid, n.Kind)
	}
	c.values[uuid] = v
	return nil
}

// UUIDs returns the keys of every stored value, sorted.
func (c *Child) UUIDs() []string {
	keys := lo.Keys(c.values)
	slices.Sort(keys)
	return keys
}

// Len returns the number of stored values.
func (c *Child) Len() int { return len(c.values) }

// Sync drops values whose UUID left the blueprint and inserts a default for
// every value node that has none. Calling it twice in a row changes nothing
// the second time.
func (c *Child) Sync(bp *blueprint.Blueprint) (removed, added int) {
	nodes := bp.System.Nodes()
	live := lo.Map(nodes, func(n *graph.Node, _ int) string { return n.UUID })

	stale, _ := lo.Difference(lo.Keys(c.values), live)
	for _, id := range stale {
		delete(c.values, id)
	}
	removed = len(stale)

	for _, n := range nodes {
		if !n.Kind.HasInstanceValue() {
			continue
		}
		if v, ok := c.values[n.UUID]; ok && v.Kind() == n.Kind {
			continue
		}
		c.values[n.UUID] = graph.DefaultData(n.Kind)
		added++
	}
	c.BlueprintUUID = bp.UUID
	return removed, added
}
