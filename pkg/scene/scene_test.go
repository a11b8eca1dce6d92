package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
)

func entity(index int, kv ...string) *bsp.Entity {
	e := &bsp.Entity{Index: index, Data: make(map[string]string)}
	for n := 0; n+1 < len(kv); n += 2 {
		e.Keys = append(e.Keys, kv[n])
		e.Data[kv[n]] = kv[n+1]
	}
	return e
}

func build(t *testing.T, ents ...*bsp.Entity) (*Scene, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	s := New("e1m1", logger)
	for _, e := range ents {
		s.AddNode(e)
	}
	s.Index()
	s.Attach()
	return s, hook
}

func TestAmbiguousParent(t *testing.T) {
	s, hook := build(t,
		entity(0, "classname", "func_door", "parentname", "B"),
		entity(1, "classname", "info_null", "targetname", "B"),
		entity(2, "classname", "info_null", "targetname", "B"),
	)
	a, b1, b2 := s.Nodes[0], s.Nodes[1], s.Nodes[2]
	assert.Same(t, b1, a.Parent)
	assert.Equal(t, []*Node{a}, b1.Children)
	assert.Empty(t, b2.Children)
	assert.Equal(t, []*Node{b1, b2}, s.Root.Children)

	require.Len(t, s.Warnings, 1)
	assert.Equal(t, HierarchyWarning, s.Warnings[0].Kind)
	assert.Equal(t, 0, s.Warnings[0].Entity)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "B", hook.LastEntry().Data["parent"])
}

func TestMissingParent(t *testing.T) {
	s, _ := build(t, entity(0, "classname", "light", "parentname", "nope"))
	assert.Same(t, s.Root, s.Nodes[0].Parent)
	require.Len(t, s.WarningsOf(HierarchyWarning), 1)
	assert.Contains(t, s.Warnings[0].String(), "nope")
}

func TestParentOrderIndependent(t *testing.T) {
	// Child before parent in the lump.
	s, _ := build(t,
		entity(0, "classname", "worldspawn"),
		entity(1, "classname", "light", "parentname", "lift"),
		entity(2, "classname", "func_plat", "targetname", "lift"),
	)
	assert.Same(t, s.Nodes[2], s.Nodes[1].Parent)
	assert.Empty(t, s.Warnings)
	assert.Equal(t, []*Node{s.Nodes[0], s.Nodes[2]}, s.Root.Children)
}

func TestParentCycle(t *testing.T) {
	s, _ := build(t,
		entity(0, "targetname", "a", "parentname", "b"),
		entity(1, "targetname", "b", "parentname", "a"),
		entity(2, "targetname", "c", "parentname", "c"),
	)
	assert.Same(t, s.Nodes[1], s.Nodes[0].Parent)
	assert.Same(t, s.Root, s.Nodes[1].Parent)
	assert.Same(t, s.Root, s.Nodes[2].Parent)
	assert.Len(t, s.WarningsOf(HierarchyWarning), 2)

	var seen int
	s.Root.Walk(func(*Node) { seen++ })
	assert.Equal(t, 4, seen)
}

func TestFireTargets(t *testing.T) {
	s, _ := build(t,
		entity(0, "classname", "trigger_once", "targetname", "A", "target", "C"),
		entity(1, "classname", "func_door", "targetname", "C"),
		entity(2, "classname", "trigger_once", "target", "missing"),
	)
	type call struct {
		node    *Node
		targets []*Node
	}
	var calls []call
	s.FireTargets(func(n *Node, targets []*Node) {
		calls = append(calls, call{n, targets})
	}, false)
	require.Len(t, calls, 2)
	assert.Same(t, s.Nodes[0], calls[0].node)
	assert.Equal(t, []*Node{s.Nodes[1]}, calls[0].targets)
	assert.Same(t, s.Nodes[2], calls[1].node)
	assert.NotNil(t, calls[1].targets)
	assert.Empty(t, calls[1].targets)

	calls = nil
	s.FireTargets(func(n *Node, targets []*Node) {
		calls = append(calls, call{n, targets})
	}, true)
	assert.Len(t, calls, 3)

	s.FireTargets(nil, true)
}

func TestNodeIDs(t *testing.T) {
	s1, _ := build(t, entity(0, "classname", "worldspawn"), entity(1, "classname", "light"))
	s2, _ := build(t, entity(0, "classname", "worldspawn"), entity(1, "classname", "light"))
	assert.Equal(t, s1.Nodes[1].ID, s2.Nodes[1].ID)
	assert.NotEqual(t, s1.Nodes[0].ID, s1.Nodes[1].ID)
	assert.NotEqual(t, s1.Root.ID, s1.Nodes[0].ID)
	assert.Equal(t, "light_1", s1.Nodes[1].Name)
}

func TestWorldMatrix(t *testing.T) {
	s, _ := build(t,
		entity(0, "targetname", "parent"),
		entity(1, "targetname", "child", "parentname", "parent"),
	)
	p, c := s.Nodes[0], s.Nodes[1]
	p.Position = mgl32.Vec3{1, 0, 0}
	p.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	c.Position = mgl32.Vec3{0, 0, 1}
	got := mgl32.TransformCoordinate(mgl32.Vec3{}, c.WorldMatrix())
	assert.True(t, got.ApproxEqualThreshold(mgl32.Vec3{2, 0, 0}, 1e-5), "%v", got)
}

func TestAttachKeepsWorldPose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := New("e1m1", logger)
	c := s.AddNode(entity(0, "targetname", "C", "parentname", "B"))
	b := s.AddNode(entity(1, "targetname", "B", "parentname", "A"))
	a := s.AddNode(entity(2, "targetname", "A"))
	a.Position = mgl32.Vec3{0, 10, 0}
	a.Rotation = mgl32.QuatRotate(mgl32.DegToRad(-45), mgl32.Vec3{0, 1, 0})
	b.Position = mgl32.Vec3{50, 0, 0}
	b.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	c.Position = mgl32.Vec3{100, 0, 0}

	want := map[*Node]mgl32.Mat4{a: a.WorldMatrix(), b: b.WorldMatrix(), c: c.WorldMatrix()}
	s.Index()
	s.Attach()

	require.Equal(t, b, c.Parent)
	require.Equal(t, a, b.Parent)
	for n, w := range want {
		got := n.WorldMatrix()
		assert.True(t, got.ApproxEqualThreshold(w, 1e-4), "%s: got %v, want %v", n.Name, got, w)
	}
	pos := mgl32.TransformCoordinate(mgl32.Vec3{}, c.WorldMatrix())
	assert.True(t, pos.ApproxEqualThreshold(mgl32.Vec3{100, 0, 0}, 1e-4), "%v", pos)
	// The child's local offset is now relative to B, rotated into its frame.
	assert.InDelta(t, 50, c.Position.Len(), 1e-3)
}

func TestBounds(t *testing.T) {
	s, _ := build(t,
		entity(0, "targetname", "parent"),
		entity(1, "targetname", "child", "parentname", "parent"),
	)
	_, _, ok := s.Bounds()
	assert.False(t, ok)

	p, c := s.Nodes[0], s.Nodes[1]
	p.Position = mgl32.Vec3{10, 0, 0}
	p.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	c.Position = mgl32.Vec3{0, 0, 1}
	m := mesh.New("box", "wall")
	m.Vertices = []mesh.Vertex{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{1, 2, 3}},
	}
	c.Meshes = []*mesh.Mesh{m, mesh.New("empty", "wall")}

	lo, hi, ok := s.Bounds()
	require.True(t, ok)
	// Rotating 90 degrees about Y maps (x, y, z) to (z, y, -x).
	assert.True(t, lo.ApproxEqualThreshold(mgl32.Vec3{11, 0, -1}, 1e-5), "%v", lo)
	assert.True(t, hi.ApproxEqualThreshold(mgl32.Vec3{14, 2, 0}, 1e-5), "%v", hi)
}
