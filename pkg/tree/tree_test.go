package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/matgraph/pkg/graph"
)

type fixture struct {
	sys                  *graph.System
	root, a, b, omx, mul *graph.Node
	loose                *graph.Node
}

// newFixture wires Roughness = a * (1 - b) and leaves one slider detached.
func newFixture(t *testing.T) fixture {
	t.Helper()
	s := graph.NewSystem()
	root, err := s.SpawnMaterialNode()
	require.NoError(t, err)
	f := fixture{
		sys:   s,
		root:  root,
		a:     s.SpawnSliderNode(),
		b:     s.SpawnSliderNode(),
		omx:   s.SpawnOneMinusXNode(),
		mul:   s.SpawnMultiplyNode(),
		loose: s.SpawnSliderNode(),
	}
	link := func(from, to graph.PinID) {
		_, err := s.Link(from, to)
		require.NoError(t, err)
	}
	link(f.b.Outputs[0], f.omx.Inputs[0])
	link(f.a.Outputs[0], f.mul.Inputs[0])
	link(f.omx.Outputs[0], f.mul.Inputs[1])
	link(f.mul.Outputs[0], f.root.Inputs[graph.ChannelRoughness])
	return f
}

func TestBuildIndexesBothEnds(t *testing.T) {
	f := newFixture(t)
	tr, err := Build(f.sys.Nodes(), f.sys.Links())
	require.NoError(t, err)

	assert.Equal(t, f.root.ID, tr.Root().ID)

	in := tr.Root().Inputs(f.root.Inputs[graph.ChannelRoughness])
	require.Len(t, in, 1)
	assert.Equal(t, Connection{Node: f.mul.ID, Pin: f.mul.Outputs[0]}, in[0])

	out := tr.Node(f.mul.ID).Outputs(f.mul.Outputs[0])
	require.Len(t, out, 1)
	assert.Equal(t, Connection{Node: f.root.ID, Pin: f.root.Inputs[graph.ChannelRoughness]}, out[0])

	assert.Equal(t, []graph.PinID{f.mul.Inputs[0], f.mul.Inputs[1]}, tr.Node(f.mul.ID).InputPins())
}

func TestDepths(t *testing.T) {
	f := newFixture(t)
	tr := MustBuild(f.sys.Nodes(), f.sys.Links())

	assert.Equal(t, 0, tr.Node(f.root.ID).Depth)
	assert.Equal(t, 1, tr.Node(f.mul.ID).Depth)
	assert.Equal(t, 2, tr.Node(f.a.ID).Depth)
	assert.Equal(t, 2, tr.Node(f.omx.ID).Depth)
	assert.Equal(t, 3, tr.Node(f.b.ID).Depth)
	assert.Equal(t, -1, tr.Node(f.loose.ID).Depth)
}

func TestBuildErrors(t *testing.T) {
	s := graph.NewSystem()
	s.SpawnSliderNode()
	_, err := Build(s.Nodes(), s.Links())
	assert.ErrorIs(t, err, ErrNoRoot)

	f := newFixture(t)
	nodes := f.sys.Nodes()
	extra := &graph.Node{ID: 999, IsRoot: true}
	_, err = Build(append(nodes, extra), f.sys.Links())
	assert.ErrorIs(t, err, ErrMultipleRoots)

	// Drop the multiply node but keep its links.
	var without []*graph.Node
	for _, n := range nodes {
		if n.ID != f.mul.ID {
			without = append(without, n)
		}
	}
	_, err = Build(without, f.sys.Links())
	assert.ErrorIs(t, err, ErrDanglingPin)

	assert.Panics(t, func() { MustBuild(without, f.sys.Links()) })
}

func TestForwardTraversal(t *testing.T) {
	f := newFixture(t)
	tr := MustBuild(f.sys.Nodes(), f.sys.Links())

	var order []graph.NodeID
	var depths []int
	tr.ForwardTraversal(f.root.ID, func(n *TreeNode, depth int) {
		order = append(order, n.ID)
		depths = append(depths, depth)
	})

	// Multiply input A (slider a) has the lower pin id, so it is walked
	// before input B.
	assert.Equal(t, []graph.NodeID{f.root.ID, f.mul.ID, f.a.ID, f.omx.ID, f.b.ID}, order)
	assert.Equal(t, []int{0, 1, 2, 2, 3}, depths)
}

func TestForwardTraversalVisitsSharedNodeOnce(t *testing.T) {
	s := graph.NewSystem()
	root, err := s.SpawnMaterialNode()
	require.NoError(t, err)
	slider := s.SpawnSliderNode()
	mul := s.SpawnMultiplyNode()
	_, err = s.Link(slider.Outputs[0], mul.Inputs[0])
	require.NoError(t, err)
	_, err = s.Link(slider.Outputs[0], mul.Inputs[1])
	require.NoError(t, err)
	_, err = s.Link(mul.Outputs[0], root.Inputs[graph.ChannelMetallic])
	require.NoError(t, err)

	tr := MustBuild(s.Nodes(), s.Links())
	count := 0
	tr.ForwardTraversal(root.ID, func(n *TreeNode, _ int) {
		if n.ID == slider.ID {
			count++
		}
	})
	assert.Equal(t, 1, count)
}

func TestBackwardTraversal(t *testing.T) {
	f := newFixture(t)
	tr := MustBuild(f.sys.Nodes(), f.sys.Links())

	var order []graph.NodeID
	tr.BackwardTraversal(f.b.ID, func(n *TreeNode, _ int) {
		order = append(order, n.ID)
	})
	assert.Equal(t, []graph.NodeID{f.b.ID, f.omx.ID, f.mul.ID, f.root.ID}, order)
}

func TestFindUpstream(t *testing.T) {
	f := newFixture(t)
	tr := MustBuild(f.sys.Nodes(), f.sys.Links())
	kind := func(k graph.NodeKind) func(*TreeNode) bool {
		return func(n *TreeNode) bool { return f.sys.FindNode(n.ID).Kind == k }
	}

	n, ok := tr.FindUpstream(f.root.ID, kind(graph.NodeOneMinusX))
	require.True(t, ok)
	assert.Equal(t, f.omx.ID, n.ID)

	n, ok = tr.FindUpstream(f.root.ID, kind(graph.NodeSlider))
	require.True(t, ok)
	assert.Equal(t, f.a.ID, n.ID)

	_, ok = tr.FindUpstream(f.root.ID, kind(graph.NodeTexture))
	assert.False(t, ok)

	_, ok = tr.FindUpstream(f.mul.ID, kind(graph.NodeMultiply))
	assert.False(t, ok, "start node is not a candidate")
}

func TestString(t *testing.T) {
	f := newFixture(t)
	out := MustBuild(f.sys.Nodes(), f.sys.Links()).String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "- node"))
	assert.True(t, strings.HasPrefix(lines[1], "  - node"))
	assert.True(t, strings.HasPrefix(lines[4], "      - node"))
	assert.Contains(t, lines[5], "detached")
}
