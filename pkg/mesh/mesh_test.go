package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad returns a unit square in the y=0 plane, counter clockwise seen from +Y.
func quad(material string, x float32) *Mesh {
	m := New("face", material)
	m.Vertices = []Vertex{
		{Position: mgl32.Vec3{x, 0, 0}},
		{Position: mgl32.Vec3{x, 0, 1}},
		{Position: mgl32.Vec3{x + 1, 0, 1}},
		{Position: mgl32.Vec3{x + 1, 0, 0}},
	}
	m.AddTriangle(0, 1, 2)
	m.AddTriangle(0, 2, 3)
	return m
}

func vecNear(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-5), "want %v, got %v", want, got)
}

func TestRecalculateNormals(t *testing.T) {
	m := quad("a", 0)
	m.RecalculateNormals()
	for _, v := range m.Vertices {
		vecNear(t, mgl32.Vec3{0, 1, 0}, v.Normal)
	}
}

func TestRecalculateNormalsAreaWeighted(t *testing.T) {
	// A big triangle facing +Y and a tiny one facing +X sharing vertex 0.
	m := New("m", "a")
	m.Vertices = []Vertex{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{0, 0, 10}},
		{Position: mgl32.Vec3{10, 0, 0}},
		{Position: mgl32.Vec3{0, 0.1, 0}},
		{Position: mgl32.Vec3{0, 0, 0.1}},
	}
	m.AddTriangle(0, 1, 2)
	m.AddTriangle(0, 3, 4)
	m.RecalculateNormals()
	n := m.Vertices[0].Normal
	assert.Greater(t, n.Y(), float32(0.99))
	assert.Greater(t, n.X(), float32(0))
}

func TestSwizzle(t *testing.T) {
	m := New("m", "a")
	m.Vertices = []Vertex{{Position: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 0, 1}}}
	m.Transform(SwizzleYZ)
	vecNear(t, mgl32.Vec3{1, 3, 2}, m.Vertices[0].Position)
	vecNear(t, mgl32.Vec3{0, 1, 0}, m.Vertices[0].Normal)
}

func TestScale(t *testing.T) {
	m := quad("a", 2)
	m.Scale(0.5)
	vecNear(t, mgl32.Vec3{1.5, 0, 0.5}, m.Vertices[2].Position)
	lo, hi := m.Bounds()
	vecNear(t, mgl32.Vec3{1, 0, 0}, lo)
	vecNear(t, mgl32.Vec3{1.5, 0, 0.5}, hi)
}

func TestAppend(t *testing.T) {
	m := quad("a", 0)
	m.Append(quad("b", 1))
	m.Append(quad("a", 2))
	assert.Equal(t, 12, m.VertexCount())
	assert.Equal(t, 6, m.TriangleCount())
	assert.Equal(t, []string{"a", "b"}, m.Materials())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 8, 9, 10, 8, 10, 11}, m.SubMeshes[0].Indices)
	assert.Equal(t, []uint32{4, 5, 6, 4, 6, 7}, m.SubMeshes[1].Indices)
}

func groups() []Group {
	return []Group{
		{Material: "wall", Faces: []*Mesh{quad("wall", 0), New("empty", "wall"), quad("wall", 1)}},
		{Material: "floor", Faces: []*Mesh{quad("floor", 2)}},
		{Material: "nothing", Faces: []*Mesh{New("empty", "nothing")}},
	}
}

func TestCombineNone(t *testing.T) {
	got := Combine("worldspawn", groups(), None, 1)
	require.Len(t, got, 3, "one per non-empty face")
	assert.Equal(t, "wall", got[0].Group)
	assert.Equal(t, "wall", got[1].Group)
	assert.Equal(t, "floor", got[2].Group)
	assert.Equal(t, "worldspawn_wall_face1", got[1].Name)
	for _, m := range got {
		assert.Equal(t, 4, m.VertexCount())
		vecNear(t, mgl32.Vec3{0, 1, 0}, m.Vertices[0].Normal)
	}
}

func TestCombinePerMaterial(t *testing.T) {
	got := Combine("door", groups(), PerMaterial, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "door_mesh_wall", got[0].Name)
	assert.Equal(t, 8, got[0].VertexCount())
	assert.Equal(t, []string{"wall"}, got[0].Materials())
	assert.Equal(t, "door_mesh_floor", got[1].Name)
}

func TestCombinePerEntity(t *testing.T) {
	got := Combine("door", groups(), PerEntity, 2)
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, "door_mesh", m.Name)
	assert.Equal(t, 12, m.VertexCount())
	assert.Equal(t, []string{"wall", "floor"}, m.Materials())
	assert.False(t, m.Oversized())
	_, hi := m.Bounds()
	vecNear(t, mgl32.Vec3{6, 0, 2}, hi)

	assert.Empty(t, Combine("empty", []Group{{Material: "x", Faces: []*Mesh{New("e", "x")}}}, PerEntity, 1))
}

func TestCombineDoesNotModifyInput(t *testing.T) {
	g := groups()
	Combine("e", g, PerEntity, 10)
	vecNear(t, mgl32.Vec3{1, 0, 1}, g[0].Faces[0].Vertices[2].Position)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"none":         None,
		"per_material": PerMaterial,
		"PerMaterial":  PerMaterial,
		"per-entity":   PerEntity,
		" PER_ENTITY ": PerEntity,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("per_face")
	assert.Error(t, err)

	var p Policy
	require.NoError(t, p.Set("per_material"))
	assert.Equal(t, PerMaterial, p)
	b, err := PerEntity.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "per_entity", string(b))
}
