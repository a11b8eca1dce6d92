package surface

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/bsp/bsptest"
	"github.com/ThomasHabets/bspimport/pkg/lightmap"
)

func load(t *testing.T, m *bsptest.Map) *bsp.BSP {
	t.Helper()
	b, err := bsp.LoadBytes(m.Encode())
	require.NoError(t, err)
	return b
}

func TestQuad(t *testing.T) {
	for _, d := range []bsp.Dialect{bsp.Quake, bsp.QuakeBSP2, bsp.HalfLife, bsp.Quake2, bsp.Source} {
		t.Run(d.String(), func(t *testing.T) {
			b := load(t, bsptest.Quad(d, 64, "dev/placeholder", 64, 64))
			m, err := BuildFaceMesh(b, 0, Params{Material: "dev/placeholder", TextureWidth: 64, TextureHeight: 64})
			require.NoError(t, err)
			assert.Equal(t, 4, m.VertexCount())
			assert.Equal(t, 2, m.TriangleCount())
			assert.Equal(t, []string{"dev/placeholder"}, m.Materials())
			assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.SubMeshes[0].Indices)
			for _, v := range m.Vertices {
				assert.True(t, v.UV.X() >= 0 && v.UV.X() <= 1, "u %v", v.UV)
				assert.True(t, v.UV.Y() >= 0 && v.UV.Y() <= 1, "v %v", v.UV)
			}
			assert.Equal(t, mgl32.Vec2{0, 1}, m.Vertices[1].UV)
			assert.Equal(t, mgl32.Vec2{1, 1}, m.Vertices[2].UV)

			// Z up became Y up.
			assert.Equal(t, mgl32.Vec3{0, 0, 64}, m.Vertices[1].Position)
			assert.Equal(t, mgl32.Vec3{0, 1, 0}, m.Vertices[0].Normal)

			// Triangles face the same way as the face after the swizzle.
			m.RecalculateNormals()
			for _, v := range m.Vertices {
				assert.True(t, v.Normal.ApproxEqual(mgl32.Vec3{0, 1, 0}), "normal %v", v.Normal)
			}
		})
	}
}

func TestReversedEdgesSameMesh(t *testing.T) {
	build := func(reversed bool) []mgl32.Vec3 {
		m := bsptest.New(bsp.Quake)
		ti := m.AddTexture("wall", 16, 16)
		m.AddQuad(0, 0, 0, 32, ti, reversed)
		m.AddModel(0, 1)
		got, err := BuildFaceMesh(load(t, m), 0, Params{TextureWidth: 16, TextureHeight: 16})
		require.NoError(t, err)
		var ret []mgl32.Vec3
		for _, v := range got.Vertices {
			ret = append(ret, v.Position)
		}
		return ret
	}
	assert.Equal(t, build(false), build(true))
}

func TestEmptyFace(t *testing.T) {
	m := bsptest.Quad(bsp.Quake, 64, "wall", 16, 16)
	m.Faces = append(m.Faces, bsp.Face{TexInfo: 0, Lightmap: -1})
	m.Models[0].NumFaces = 2
	b := load(t, m)
	got, err := BuildFaceMesh(b, 1, Params{Tessellation: 3})
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, 0, got.TriangleCount())

	_, err = BuildFaceMesh(b, 2, Params{})
	assert.Error(t, err)
}

func TestLightmapUV(t *testing.T) {
	b := load(t, bsptest.Quad(bsp.Quake, 32, "wall", 16, 16))
	p := lightmap.Placement{
		Region:  lightmap.Region{X: 1, Y: 1, Width: 3, Height: 3},
		Extents: bsp.Extents{Width: 3, Height: 3},
		OK:      true,
	}
	m, err := BuildFaceMesh(b, 0, Params{TextureWidth: 16, TextureHeight: 16, Lightmap: p, AtlasSize: 64})
	require.NoError(t, err)
	// Vertex 2 is at s=t=32: luxel 2, centred, plus the region offset.
	assert.InDelta(t, (2.5+1)/64, m.Vertices[2].UV2.X(), 1e-6)
	assert.InDelta(t, (2.5+1)/64, m.Vertices[2].UV2.Y(), 1e-6)
	assert.InDelta(t, 1.5/64, m.Vertices[0].UV2.X(), 1e-6)

	m, err = BuildFaceMesh(b, 0, Params{TextureWidth: 16, TextureHeight: 16})
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec2{}, m.Vertices[2].UV2)
}

func quake3(faces []bsp.Face, verts []bsp.DrawVertex, meshVerts []int32) *bsptest.Map {
	return &bsptest.Map{
		Dialect:   bsp.Quake3,
		Entities:  bsptest.Entity("classname", "worldspawn"),
		Textures:  []bsp.Texture{{Name: "textures/base/wall"}},
		DrawVerts: verts,
		MeshVerts: meshVerts,
		Faces:     faces,
		Models:    []bsp.Model{{NumFaces: len(faces)}},
	}
}

func TestQuake3Polygon(t *testing.T) {
	up := bsp.Vertex{Z: 1}
	b := load(t, quake3(
		[]bsp.Face{
			{Type: bsp.FacePolygon, NumVertices: 3, NumMeshVerts: 3, Lightmap: -1, Normal: up},
			{Type: bsp.FaceBillboard, FirstVertex: 0, NumVertices: 1, Lightmap: -1},
		},
		[]bsp.DrawVertex{
			{Position: bsp.Vertex{}, TexCoord: [2]float32{0, 0}, Normal: up},
			{Position: bsp.Vertex{Y: 8}, TexCoord: [2]float32{0, 1}, Normal: up},
			{Position: bsp.Vertex{X: 8}, TexCoord: [2]float32{1, 0}, Normal: up},
		},
		[]int32{0, 1, 2},
	))
	m, err := BuildFaceMesh(b, 0, Params{})
	require.NoError(t, err)
	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, 1, m.TriangleCount())
	assert.Equal(t, mgl32.Vec2{0, 1}, m.Vertices[1].UV)
	assert.Equal(t, mgl32.Vec3{0, 0, 8}, m.Vertices[1].Position)

	m, err = BuildFaceMesh(b, 1, Params{})
	require.NoError(t, err)
	assert.True(t, m.Empty())
}

// flatPatch returns a w×h control grid in the z=0 plane with 8 unit spacing.
func flatPatch(w, h int) []bsp.DrawVertex {
	var ret []bsp.DrawVertex
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ret = append(ret, bsp.DrawVertex{
				Position: bsp.Vertex{X: float32(x * 8), Y: float32(y * 8)},
				TexCoord: [2]float32{float32(x) / float32(w-1), float32(y) / float32(h-1)},
				Normal:   bsp.Vertex{Z: 1},
			})
		}
	}
	return ret
}

func TestPatch(t *testing.T) {
	for _, test := range []struct {
		w, h, level int
		subPatches  int
	}{
		{3, 3, 1, 1},
		{3, 3, 3, 1},
		{5, 3, 4, 2},
		{5, 5, 2, 4},
	} {
		b := load(t, quake3(
			[]bsp.Face{{Type: bsp.FacePatch, NumVertices: test.w * test.h, PatchWidth: test.w, PatchHeight: test.h, Lightmap: -1, Normal: bsp.Vertex{Z: 1}}},
			flatPatch(test.w, test.h),
			nil,
		))
		m, err := BuildFaceMesh(b, 0, Params{Tessellation: test.level})
		require.NoError(t, err)
		per := (test.level + 1) * (test.level + 1)
		assert.Equal(t, test.subPatches*per, m.VertexCount(), "%+v", test)
		assert.Equal(t, test.subPatches*2*test.level*test.level, m.TriangleCount(), "%+v", test)

		// Corners are interpolated exactly.
		assert.True(t, m.Vertices[0].Position.ApproxEqual(mgl32.Vec3{0, 0, 0}))
		assert.True(t, m.Vertices[per-1].Position.ApproxEqual(mgl32.Vec3{16, 0, 16}), "%v", m.Vertices[per-1].Position)
		assert.True(t, m.Vertices[per-1].UV.ApproxEqual(mgl32.Vec2{2 / float32(test.w-1), 2 / float32(test.h-1)}))

		// Same winding as planar faces: up after the swizzle.
		m.RecalculateNormals()
		for _, v := range m.Vertices {
			assert.True(t, v.Normal.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-4), "normal %v", v.Normal)
		}
	}
}

func TestPatchBadGrid(t *testing.T) {
	m := quake3(
		[]bsp.Face{{Type: bsp.FacePatch, NumVertices: 6, PatchWidth: 2, PatchHeight: 3, Lightmap: -1}},
		flatPatch(2, 3),
		nil,
	)
	_, err := bsp.LoadBytes(m.Encode())
	assert.True(t, bsp.IsFormatError(err))
}

func TestDisplacement(t *testing.T) {
	for _, power := range []int{2, 3, 4} {
		m := bsptest.Quad(bsp.Source, 64, "nature/grass", 64, 64)
		// Row i, running along map Y, is raised by i units.
		m.AddDisplacement(0, power, func(i, j int) float32 { return float32(i) })
		b := load(t, m)
		got, err := BuildFaceMesh(b, 0, Params{Material: "nature/grass", TextureWidth: 64, TextureHeight: 64})
		require.NoError(t, err, power)

		size := 1<<power + 1
		assert.Equal(t, size*size, got.VertexCount(), power)
		assert.Equal(t, 2*(size-1)*(size-1), got.TriangleCount(), power)

		// Last row, middle column: map (32, 64, size-1), Y up.
		v := got.Vertices[(size-1)*size+size/2]
		assert.True(t, v.Position.ApproxEqual(mgl32.Vec3{32, float32(size - 1), 64}), "power %d: %v", power, v.Position)
		assert.True(t, v.UV.ApproxEqual(mgl32.Vec2{0.5, 1}), "power %d: %v", power, v.UV)

		// The ramp rises towards +Z, so normals lean back towards -Z.
		for _, v := range got.Vertices {
			assert.Greater(t, v.Normal.Y(), float32(0.9), "power %d", power)
			assert.Less(t, v.Normal.Z(), float32(0), "power %d", power)
		}
	}
}

func TestDisplacementStartCorner(t *testing.T) {
	m := bsptest.Quad(bsp.Source, 64, "nature/grass", 64, 64)
	m.AddDisplacement(0, 2, func(i, j int) float32 {
		if i == 0 && j == 0 {
			return 10
		}
		return 0
	})
	// Start the grid at the face's third corner instead of its first.
	m.Displacements[0].Start = bsp.Vertex{X: 64, Y: 64}
	got, err := BuildFaceMesh(load(t, m), 0, Params{TextureWidth: 64, TextureHeight: 64})
	require.NoError(t, err)
	assert.True(t, got.Vertices[0].Position.ApproxEqual(mgl32.Vec3{64, 10, 64}), "%v", got.Vertices[0].Position)
}
