// Package tree builds a traversal view of a material graph rooted at the
// Material node. The view is rebuilt from the node and link lists whenever
// a consumer needs it and never mutates the graph.
package tree

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/matgraph/pkg/graph"
)

var (
	ErrNoRoot        = errors.New("tree: graph has no material root")
	ErrMultipleRoots = errors.New("tree: graph has more than one material root")
	ErrDanglingPin   = errors.New("tree: link references an unknown pin")
)

// Connection is one end of a link as seen from a tree node: the node on the
// other side and the pin on that node.
type Connection struct {
	Node graph.NodeID
	Pin  graph.PinID
}

// TreeNode records, per local pin, the connections that pin takes part in.
type TreeNode struct {
	ID    graph.NodeID
	Depth int // distance from the root along links, -1 if unreachable

	inputs  map[graph.PinID][]Connection
	outputs map[graph.PinID][]Connection
}

// Inputs returns the connections arriving at local input pin p.
func (n *TreeNode) Inputs(p graph.PinID) []Connection { return n.inputs[p] }

// Outputs returns the connections leaving local output pin p.
func (n *TreeNode) Outputs(p graph.PinID) []Connection { return n.outputs[p] }

// InputPins returns the local input pins that carry a link, sorted.
func (n *TreeNode) InputPins() []graph.PinID { return sortedKeys(n.inputs) }

// OutputPins returns the local output pins that carry a link, sorted.
func (n *TreeNode) OutputPins() []graph.PinID { return sortedKeys(n.outputs) }

// Tree is the adjacency view of one graph.
type Tree struct {
	root  graph.NodeID
	nodes map[graph.NodeID]*TreeNode
	order []graph.NodeID
}

// Build indexes nodes and links. It fails when the graph does not have
// exactly one root or a link names a pin the nodes do not own.
func Build(nodes []*graph.Node, links []*graph.Link) (*Tree, error) {
	t := &Tree{nodes: make(map[graph.NodeID]*TreeNode, len(nodes))}
	owner := make(map[graph.PinID]graph.NodeID)
	roots := 0

	for _, n := range nodes {
		t.nodes[n.ID] = &TreeNode{
			ID:      n.ID,
			Depth:   -1,
			inputs:  make(map[graph.PinID][]Connection),
			outputs: make(map[graph.PinID][]Connection),
		}
		t.order = append(t.order, n.ID)
		for _, p := range n.Inputs {
			owner[p] = n.ID
		}
		for _, p := range n.Outputs {
			owner[p] = n.ID
		}
		if n.IsRoot {
			t.root = n.ID
			roots++
		}
	}
	switch {
	case roots == 0:
		return nil, ErrNoRoot
	case roots > 1:
		return nil, fmt.Errorf("%w (%d)", ErrMultipleRoots, roots)
	}

	for _, l := range links {
		from, okFrom := owner[l.Start]
		to, okTo := owner[l.End]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%w: link %d", ErrDanglingPin, l.ID)
		}
		src, dst := t.nodes[from], t.nodes[to]
		src.outputs[l.Start] = append(src.outputs[l.Start], Connection{Node: to, Pin: l.End})
		dst.inputs[l.End] = append(dst.inputs[l.End], Connection{Node: from, Pin: l.Start})
	}

	t.assignDepths()
	return t, nil
}

// MustBuild is Build for callers that have already validated the graph.
// It panics on error.
func MustBuild(nodes []*graph.Node, links []*graph.Link) *Tree {
	t, err := Build(nodes, links)
	if err != nil {
		panic(err)
	}
	return t
}

// assignDepths walks upstream from the root breadth first.
func (t *Tree) assignDepths() {
	t.nodes[t.root].Depth = 0
	queue := []graph.NodeID{t.root}
	for len(queue) > 0 {
		cur := t.nodes[queue[0]]
		queue = queue[1:]
		for _, p := range cur.InputPins() {
			for _, c := range cur.inputs[p] {
				up := t.nodes[c.Node]
				if up.Depth == -1 {
					up.Depth = cur.Depth + 1
					queue = append(queue, c.Node)
				}
			}
		}
	}
}

// Root returns the root tree node.
func (t *Tree) Root() *TreeNode { return t.nodes[t.root] }

// Node returns the tree node for id, or nil.
func (t *Tree) Node(id graph.NodeID) *TreeNode { return t.nodes[id] }

// ForwardTraversal visits start and then everything upstream of it, depth
// first in pin order. Each node is visited once; depth is the hop count
// from start.
func (t *Tree) ForwardTraversal(start graph.NodeID, visit func(n *TreeNode, depth int)) {
	t.walk(start, visit, func(n *TreeNode) map[graph.PinID][]Connection { return n.inputs })
}

// BackwardTraversal visits start and then everything downstream of it.
func (t *Tree) BackwardTraversal(start graph.NodeID, visit func(n *TreeNode, depth int)) {
	t.walk(start, visit, func(n *TreeNode) map[graph.PinID][]Connection { return n.outputs })
}

func (t *Tree) walk(start graph.NodeID, visit func(*TreeNode, int), edges func(*TreeNode) map[graph.PinID][]Connection) {
	visited := make(map[graph.NodeID]bool)
	var rec func(id graph.NodeID, depth int)
	rec = func(id graph.NodeID, depth int) {
		n := t.nodes[id]
		if n == nil || visited[id] {
			return
		}
		visited[id] = true
		visit(n, depth)
		adj := edges(n)
		for _, p := range sortedKeys(adj) {
			for _, c := range adj[p] {
				rec(c.Node, depth+1)
			}
		}
	}
	rec(start, 0)
}

// FindUpstream returns the first node upstream of start, in forward
// traversal order, for which pred holds. start itself is not considered.
func (t *Tree) FindUpstream(start graph.NodeID, pred func(*TreeNode) bool) (*TreeNode, bool) {
	var found *TreeNode
	t.ForwardTraversal(start, func(n *TreeNode, depth int) {
		if found == nil && depth > 0 && pred(n) {
			found = n
		}
	})
	return found, found != nil
}

// String renders the tree indented by depth from the root, one node per
// line. Unreachable nodes are listed after the root's subtree.
func (t *Tree) String() string {
	var b strings.Builder
	seen := make(map[graph.NodeID]bool)
	t.ForwardTraversal(t.root, func(n *TreeNode, depth int) {
		seen[n.ID] = true
		fmt.Fprintf(&b, "%s- node %d\n", strings.Repeat("  ", depth), n.ID)
	})
	for _, id := range t.order {
		if !seen[id] {
			fmt.Fprintf(&b, "? node %d (detached)\n", id)
		}
	}
	return b.String()
}

func sortedKeys(m map[graph.PinID][]Connection) []graph.PinID {
	keys := make([]graph.PinID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
