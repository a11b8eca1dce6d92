// Package prefab writes an imported scene as a binary glTF file.
//
// QPov
//
// Copyright (C) Thomas Habets <thomas@habets.se> 2015
// https://github.com/ThomasHabets/qpov
//
//   This program is free software; you can redistribute it and/or modify
//   it under the terms of the GNU General Public License as published by
//   the Free Software Foundation; either version 2 of the License, or
//   (at your option) any later version.
//
//   This program is distributed in the hope that it will be useful,
//   but WITHOUT ANY WARRANTY; without even the implied warranty of
//   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//   GNU General Public License for more details.
//
//   You should have received a copy of the GNU General Public License along
//   with this program; if not, write to the Free Software Foundation, Inc.,
//   51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
//
package prefab

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/ThomasHabets/bspimport/pkg/mesh"
	"github.com/ThomasHabets/bspimport/pkg/scene"
)

const (
	mimePNG = "image/png"

	// Suffix of the lightmap image written next to the prefab.
	LightmapSuffix = "_lightmap.png"
)

// ProbeInfo is a light probe as stored in the root node extras.
type ProbeInfo struct {
	Face     int        `json:"face"`
	Position [3]float32 `json:"position"`
	Color    [3]uint8   `json:"color"`
}

// RootInfo is stored in the extras of the root node.
type RootInfo struct {
	Map      string      `json:"map"`
	Lightmap string      `json:"lightmap,omitempty"`
	Bounds   *BoundsInfo `json:"bounds,omitempty"`
	Probes   []ProbeInfo `json:"probes,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// BoundsInfo is the box around all meshes, in scene space.
type BoundsInfo struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

// NodeInfo is stored in the extras of entity nodes.
type NodeInfo struct {
	ID         string            `json:"id"`
	Entity     int               `json:"entity"`
	ClassName  string            `json:"classname,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// MaterialInfo is stored in material extras when there's a lightmap.
type MaterialInfo struct {
	Lightmap         int `json:"lightmap"` // Texture index.
	LightmapTexCoord int `json:"lightmapTexCoord"`
}

type builder struct {
	doc       *gltf.Document
	sampler   int
	materials map[string]int
	lightmap  *int
}

// Build converts a scene to a glTF document with all buffers and images
// embedded.
func Build(s *scene.Scene) (*gltf.Document, error) {
	b := &builder{
		doc:       gltf.NewDocument(),
		materials: make(map[string]int),
	}
	b.doc.Asset.Generator = "bspimport"
	b.doc.Samplers = append(b.doc.Samplers, &gltf.Sampler{
		MagFilter: gltf.MagNearest,
		MinFilter: gltf.MinNearest,
	})
	b.sampler = len(b.doc.Samplers) - 1

	if s.Atlas != nil && s.Atlas.Used() > 0 {
		tex, err := b.texture(s.Name+"_lightmap", s.Atlas.Image)
		if err != nil {
			return nil, errors.Wrapf(err, "lightmap")
		}
		b.lightmap = gltf.Index(tex)
	}
	for _, a := range s.Materials {
		if _, err := b.material(a.Name, a.Image); err != nil {
			return nil, errors.Wrapf(err, "material %q", a.Name)
		}
	}

	root, err := b.node(s.Root)
	if err != nil {
		return nil, err
	}
	info := RootInfo{Map: s.Name}
	if b.lightmap != nil {
		info.Lightmap = LightmapName(s.Name)
	}
	if lo, hi, ok := s.Bounds(); ok {
		info.Bounds = &BoundsInfo{Min: lo, Max: hi}
	}
	for _, p := range s.Probes {
		info.Probes = append(info.Probes, ProbeInfo{
			Face:     p.Face,
			Position: [3]float32{p.Position.X, p.Position.Y, p.Position.Z},
			Color:    [3]uint8{p.Color.R, p.Color.G, p.Color.B},
		})
	}
	for _, w := range s.Warnings {
		info.Warnings = append(info.Warnings, w.String())
	}
	b.doc.Nodes[root].Extras = info
	b.doc.Scenes[0].Name = s.Name
	b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, root)
	return b.doc, nil
}

// texture embeds an image as PNG and returns its texture index.
func (b *builder) texture(name string, img image.Image) (int, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, err
	}
	src, err := modeler.WriteImage(b.doc, name, mimePNG, &buf)
	if err != nil {
		return 0, err
	}
	b.doc.Textures = append(b.doc.Textures, &gltf.Texture{
		Name:    name,
		Sampler: gltf.Index(b.sampler),
		Source:  gltf.Index(src),
	})
	return len(b.doc.Textures) - 1, nil
}

// material returns the material index of a texture name, creating it
// the first time. img may be nil for an untextured material.
func (b *builder) material(name string, img image.Image) (int, error) {
	if n, found := b.materials[name]; found {
		return n, nil
	}
	m := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}
	if img != nil {
		tex, err := b.texture(name, img)
		if err != nil {
			return 0, err
		}
		m.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: tex}
	}
	if b.lightmap != nil {
		m.Extras = MaterialInfo{Lightmap: *b.lightmap, LightmapTexCoord: 1}
	}
	b.doc.Materials = append(b.doc.Materials, m)
	b.materials[name] = len(b.doc.Materials) - 1
	return len(b.doc.Materials) - 1, nil
}

// node adds n and its subtree and returns its index.
func (b *builder) node(n *scene.Node) (int, error) {
	gn := &gltf.Node{
		Name:        n.Name,
		Translation: [3]float64{float64(n.Position.X()), float64(n.Position.Y()), float64(n.Position.Z())},
		Rotation:    [4]float64{float64(n.Rotation.V.X()), float64(n.Rotation.V.Y()), float64(n.Rotation.V.Z()), float64(n.Rotation.W)},
		Scale:       [3]float64{1, 1, 1},
	}
	if n.Entity != nil {
		gn.Extras = NodeInfo{
			ID:         n.ID.String(),
			Entity:     n.Entity.Index,
			ClassName:  n.Entity.ClassName(),
			Properties: n.Entity.Data,
		}
	}
	b.doc.Nodes = append(b.doc.Nodes, gn)
	idx := len(b.doc.Nodes) - 1

	if len(n.Meshes) == 1 && n.Meshes[0].Group == "" {
		m, err := b.mesh(n.Meshes[0])
		if err != nil {
			return 0, err
		}
		gn.Mesh = gltf.Index(m)
	} else if err := b.meshNodes(gn, n.Meshes); err != nil {
		return 0, err
	}
	for _, c := range n.Children {
		ci, err := b.node(c)
		if err != nil {
			return 0, err
		}
		gn.Children = append(gn.Children, ci)
	}
	return idx, nil
}

// meshNodes adds a child node per mesh. Meshes of a material group go
// under one container node named by the material, in first seen order.
func (b *builder) meshNodes(parent *gltf.Node, meshes []*mesh.Mesh) error {
	groups := make(map[string]*gltf.Node)
	for _, sm := range meshes {
		m, err := b.mesh(sm)
		if err != nil {
			return err
		}
		into := parent
		if sm.Group != "" {
			if into = groups[sm.Group]; into == nil {
				into = b.emptyNode(sm.Group)
				groups[sm.Group] = into
				parent.Children = append(parent.Children, len(b.doc.Nodes)-1)
			}
		}
		child := b.emptyNode(sm.Name)
		child.Mesh = gltf.Index(m)
		into.Children = append(into.Children, len(b.doc.Nodes)-1)
	}
	return nil
}

// emptyNode appends a node with the identity transform.
func (b *builder) emptyNode(name string) *gltf.Node {
	gn := &gltf.Node{
		Name:     name,
		Rotation: [4]float64{0, 0, 0, 1},
		Scale:    [3]float64{1, 1, 1},
	}
	b.doc.Nodes = append(b.doc.Nodes, gn)
	return gn
}

// mesh adds a mesh with one primitive per sub mesh. All primitives share
// the vertex attributes.
func (b *builder) mesh(m *mesh.Mesh) (int, error) {
	pos := make([][3]float32, len(m.Vertices))
	nrm := make([][3]float32, len(m.Vertices))
	uv := make([][2]float32, len(m.Vertices))
	uv2 := make([][2]float32, len(m.Vertices))
	for n, v := range m.Vertices {
		pos[n] = v.Position
		nrm[n] = v.Normal
		uv[n] = v.UV
		uv2[n] = v.UV2
	}
	attrs := map[string]int{
		gltf.POSITION:   modeler.WritePosition(b.doc, pos),
		gltf.NORMAL:     modeler.WriteNormal(b.doc, nrm),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(b.doc, uv),
	}
	if b.lightmap != nil {
		attrs[gltf.TEXCOORD_1] = modeler.WriteTextureCoord(b.doc, uv2)
	}
	gm := &gltf.Mesh{Name: m.Name}
	for _, s := range m.SubMeshes {
		mat, err := b.material(s.Material, nil)
		if err != nil {
			return 0, err
		}
		gm.Primitives = append(gm.Primitives, &gltf.Primitive{
			Attributes: attrs,
			Indices:    gltf.Index(b.indices(m, s.Indices)),
			Material:   gltf.Index(mat),
		})
	}
	b.doc.Meshes = append(b.doc.Meshes, gm)
	return len(b.doc.Meshes) - 1, nil
}

// indices writes 16 bit indices when the mesh is small enough.
func (b *builder) indices(m *mesh.Mesh, idx []uint32) int {
	if m.Oversized() {
		return modeler.WriteIndices(b.doc, idx)
	}
	short := make([]uint16, len(idx))
	for n, i := range idx {
		short[n] = uint16(i)
	}
	return modeler.WriteIndices(b.doc, short)
}

// Save writes the scene to fn as binary glTF, and the lightmap atlas to
// <map name>_lightmap.png in the same directory.
func Save(s *scene.Scene, fn string) error {
	doc, err := Build(s)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, fn); err != nil {
		return errors.Wrapf(err, "writing %q", fn)
	}
	if s.Atlas == nil || s.Atlas.Used() == 0 {
		return nil
	}
	lm := filepath.Join(filepath.Dir(fn), LightmapName(s.Name))
	f, err := os.Create(lm)
	if err != nil {
		return errors.Wrapf(err, "creating lightmap")
	}
	if err := png.Encode(f, s.Atlas.Image); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %q", lm)
	}
	return errors.Wrapf(f.Close(), "closing %q", lm)
}

// LightmapName returns the lightmap file name of a map.
func LightmapName(mapName string) string {
	return strings.ReplaceAll(mapName, string(filepath.Separator), "_") + LightmapSuffix
}
