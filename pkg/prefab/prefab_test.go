package prefab

import (
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/bsp/bsptest"
	"github.com/ThomasHabets/bspimport/pkg/importer"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
	"github.com/ThomasHabets/bspimport/pkg/scene"
)

func importMap(t *testing.T, m *bsptest.Map, policy mesh.Policy) *scene.Scene {
	t.Helper()
	dir := t.TempDir()
	fn := filepath.Join(dir, "start.bsp")
	require.NoError(t, os.WriteFile(fn, m.Encode(), 0644))
	cfg := importer.DefaultConfig(fn)
	cfg.PalettePath = ""
	cfg.AtlasSize = 64
	cfg.MeshCombine = policy
	logger, _ := test.NewNullLogger()
	cfg.Log = logger
	s, err := importer.Import(cfg)
	require.NoError(t, err)
	return s
}

// litQuad is a 96 unit quad with a 7×7 lightmap.
func litQuad() *bsptest.Map {
	m := bsptest.Quad(bsp.Quake, 96, "wall", 16, 16)
	m.SetLightmap(0, make([]byte, 7*7))
	m.AddEntity("classname", "light", "origin", "0 0 64", "targetname", "lamp")
	return m
}

// extras decodes extras whatever type the decoder gave them.
func extras(t *testing.T, in, out interface{}) {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestSave(t *testing.T) {
	s := importMap(t, litQuad(), mesh.PerEntity)
	dir := t.TempDir()
	fn := filepath.Join(dir, "start.glb")
	require.NoError(t, Save(s, fn))

	doc, err := gltf.Open(fn)
	require.NoError(t, err)
	require.Len(t, doc.Scenes, 1)
	require.Len(t, doc.Scenes[0].Nodes, 1)
	root := doc.Nodes[doc.Scenes[0].Nodes[0]]
	assert.Equal(t, "start", root.Name)
	require.Len(t, root.Children, 2)

	world := doc.Nodes[root.Children[0]]
	assert.Equal(t, "worldspawn_0", world.Name)
	require.NotNil(t, world.Mesh)
	lamp := doc.Nodes[root.Children[1]]
	assert.Equal(t, "lamp", lamp.Name)
	assert.Nil(t, lamp.Mesh)
	assert.InDelta(t, 64*importer.DefaultScaleFactor, lamp.Translation[1], 1e-6)

	var ni NodeInfo
	extras(t, lamp.Extras, &ni)
	assert.Equal(t, 1, ni.Entity)
	assert.Equal(t, "light", ni.ClassName)
	assert.Equal(t, "0 0 64", ni.Properties["origin"])
	assert.Equal(t, s.Nodes[1].ID.String(), ni.ID)

	m := doc.Meshes[*world.Mesh]
	require.Len(t, m.Primitives, 1)
	p := m.Primitives[0]
	assert.Equal(t, 4, doc.Accessors[p.Attributes[gltf.POSITION]].Count)
	assert.Contains(t, p.Attributes, gltf.NORMAL)
	assert.Contains(t, p.Attributes, gltf.TEXCOORD_0)
	assert.Contains(t, p.Attributes, gltf.TEXCOORD_1)
	require.NotNil(t, p.Indices)
	assert.Equal(t, 6, doc.Accessors[*p.Indices].Count)
	assert.Equal(t, gltf.ComponentUshort, doc.Accessors[*p.Indices].ComponentType)

	require.Len(t, doc.Materials, 1)
	assert.Equal(t, "wall", doc.Materials[0].Name)
	require.NotNil(t, doc.Materials[0].PBRMetallicRoughness.BaseColorTexture)
	var mi MaterialInfo
	extras(t, doc.Materials[0].Extras, &mi)
	assert.Equal(t, 1, mi.LightmapTexCoord)
	assert.Len(t, doc.Images, 2)
	assert.Len(t, doc.Textures, 2)

	var ri RootInfo
	extras(t, root.Extras, &ri)
	assert.Equal(t, "start", ri.Map)
	assert.Equal(t, "start_lightmap.png", ri.Lightmap)
	require.NotNil(t, ri.Bounds)
	assert.InDelta(t, 96*importer.DefaultScaleFactor, ri.Bounds.Max[0], 1e-5)
	assert.InDelta(t, 96*importer.DefaultScaleFactor, ri.Bounds.Max[2], 1e-5)
	assert.InDelta(t, 0, ri.Bounds.Max[1], 1e-5)
	for _, v := range ri.Bounds.Min {
		assert.InDelta(t, 0, v, 1e-5)
	}
	assert.Len(t, ri.Probes, 1)
	assert.Len(t, ri.Warnings, 1, "missing palette")

	f, err := os.Open(filepath.Join(dir, "start_lightmap.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

// twoMaterials has a wall face, a floor face and another wall face.
func twoMaterials() *bsptest.Map {
	m := bsptest.New(bsp.Quake)
	wall := m.AddTexture("wall", 16, 16)
	floor := m.AddTexture("floor", 16, 16)
	m.AddQuad(0, 0, 0, 32, wall, false)
	m.AddQuad(64, 0, 0, 32, floor, false)
	m.AddQuad(128, 0, 0, 32, wall, false)
	m.AddModel(0, 3)
	m.AddEntity("classname", "worldspawn")
	return m
}

// children returns the names of the child nodes, and the children.
func children(doc *gltf.Document, n *gltf.Node) ([]string, []*gltf.Node) {
	var names []string
	var nodes []*gltf.Node
	for _, c := range n.Children {
		names = append(names, doc.Nodes[c].Name)
		nodes = append(nodes, doc.Nodes[c])
	}
	return names, nodes
}

func TestBuildSubMeshNodes(t *testing.T) {
	s := importMap(t, twoMaterials(), mesh.PerMaterial)
	doc, err := Build(s)
	require.NoError(t, err)
	root := doc.Nodes[doc.Scenes[0].Nodes[0]]
	world := doc.Nodes[root.Children[0]]
	assert.Nil(t, world.Mesh)

	names, groups := children(doc, world)
	require.Equal(t, []string{"wall", "floor"}, names)
	for n, want := range []string{"worldspawn_0_mesh_wall", "worldspawn_0_mesh_floor"} {
		assert.Nil(t, groups[n].Mesh)
		got, meshes := children(doc, groups[n])
		assert.Equal(t, []string{want}, got)
		require.Len(t, meshes, 1)
		require.NotNil(t, meshes[0].Mesh)
		assert.Equal(t, want, doc.Meshes[*meshes[0].Mesh].Name)
	}
	assert.Len(t, doc.Meshes, 2)
	assert.Len(t, doc.Materials, 2)

	// No lightmaps: no lightmap texture, no second UV set.
	assert.Len(t, doc.Textures, 2)
	assert.NotContains(t, doc.Meshes[0].Primitives[0].Attributes, gltf.TEXCOORD_1)
}

func TestBuildFaceNodes(t *testing.T) {
	s := importMap(t, twoMaterials(), mesh.None)
	doc, err := Build(s)
	require.NoError(t, err)
	root := doc.Nodes[doc.Scenes[0].Nodes[0]]
	world := doc.Nodes[root.Children[0]]
	assert.Nil(t, world.Mesh)

	names, groups := children(doc, world)
	require.Equal(t, []string{"wall", "floor"}, names)
	wall, _ := children(doc, groups[0])
	assert.Equal(t, []string{"worldspawn_0_wall_face0", "worldspawn_0_wall_face1"}, wall)
	floor, _ := children(doc, groups[1])
	assert.Equal(t, []string{"worldspawn_0_floor_face0"}, floor)
	assert.Len(t, doc.Meshes, 3)
	assert.Len(t, doc.Materials, 2)
}

func TestLightmapName(t *testing.T) {
	assert.Equal(t, "e1m1_lightmap.png", LightmapName("e1m1"))
}
