package bsptest

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

import (
	"github.com/ThomasHabets/bspimport/pkg/bsp"
)

// New returns an empty map of a Quake family dialect. Edge 0 is the
// unused edge the compilers emit.
func New(d bsp.Dialect) *Map {
	return &Map{
		Dialect: d,
		Edges:   []bsp.Edge{{}},
	}
}

// AddTexture adds a w×h texture mapped along the world X and Y axes and
// returns its texinfo index. Quake and Half-Life embed the pixels, Quake 2
// names the texture in the texinfo and Source only stores name and size.
func (m *Map) AddTexture(name string, w, h int) int {
	ti := TexInfo{
		S:       bsp.Vertex{X: 1},
		T:       bsp.Vertex{Y: 1},
		Texture: len(m.Textures),
		Name:    name,
	}
	switch m.Dialect {
	case bsp.Quake2:
	case bsp.Source:
		m.Textures = append(m.Textures, bsp.Texture{Name: name, Width: w, Height: h, External: true})
	default:
		t := bsp.Texture{Name: name, Width: w, Height: h, Pixels: make([]byte, w*h)}
		for n := range t.Pixels {
			t.Pixels[n] = byte(n)
		}
		if m.Dialect == bsp.HalfLife {
			t.Palette = make([]byte, 768)
			for n := 0; n < 256; n++ {
				t.Palette[n*3] = byte(n)
				t.Palette[n*3+2] = byte(255 - n)
			}
		}
		m.Textures = append(m.Textures, t)
	}
	m.TexInfo = append(m.TexInfo, ti)
	return len(m.TexInfo) - 1
}

// AddQuad adds a size×size face in the plane z, facing up, with its
// corner at (x,y). The loop is clockwise seen from above. With reversed
// set the edges are stored backwards and referenced by negative surfedges.
// Returns the face index.
func (m *Map) AddQuad(x, y, z, size float32, texInfo int, reversed bool) int {
	first := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices,
		bsp.Vertex{X: x, Y: y, Z: z},
		bsp.Vertex{X: x, Y: y + size, Z: z},
		bsp.Vertex{X: x + size, Y: y + size, Z: z},
		bsp.Vertex{X: x + size, Y: y, Z: z},
	)
	m.Planes = append(m.Planes, bsp.Plane{Normal: bsp.Vertex{Z: 1}, Dist: z, Type: 2})
	firstEdge := len(m.SurfEdges)
	for n := uint32(0); n < 4; n++ {
		from, to := first+n, first+(n+1)%4
		e := int32(len(m.Edges))
		if reversed {
			m.Edges = append(m.Edges, bsp.Edge{From: to, To: from})
			e = -e
		} else {
			m.Edges = append(m.Edges, bsp.Edge{From: from, To: to})
		}
		m.SurfEdges = append(m.SurfEdges, e)
	}
	m.Faces = append(m.Faces, bsp.Face{
		Plane:     len(m.Planes) - 1,
		FirstEdge: firstEdge,
		NumEdges:  4,
		TexInfo:   texInfo,
		Styles:       [4]uint8{0, 255, 255, 255},
		Lightmap:     -1,
		Displacement: -1,
	})
	return len(m.Faces) - 1
}

// AddDisplacement turns a Source quad into a displacement of the given
// power, starting at the face's first vertex. Grid point (i, j), row i and
// column j, is raised height(i, j) units along +Z. Returns the
// displacement index.
func (m *Map) AddDisplacement(face, power int, height func(i, j int) float32) int {
	f := &m.Faces[face]
	e := m.SurfEdges[f.FirstEdge]
	var start bsp.Vertex
	if e < 0 {
		start = m.Vertices[m.Edges[-e].To]
	} else {
		start = m.Vertices[m.Edges[e].From]
	}
	d := bsp.Displacement{Start: start, FirstVert: len(m.DispVerts), Power: power, Face: face}
	size := d.Size()
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			m.DispVerts = append(m.DispVerts, bsp.DispVert{Vector: bsp.Vertex{Z: 1}, Dist: height(i, j)})
		}
	}
	m.Displacements = append(m.Displacements, d)
	f.Displacement = len(m.Displacements) - 1
	return f.Displacement
}

// AddModel adds a model made of a face range and returns its index.
func (m *Map) AddModel(first, num int) int {
	m.Models = append(m.Models, bsp.Model{FirstFace: first, NumFaces: num})
	return len(m.Models) - 1
}

// AddEntity appends an entity block.
func (m *Map) AddEntity(kv ...string) {
	m.Entities += Entity(kv...)
}

// SetLightmap stores samples as the lightmap of a face.
func (m *Map) SetLightmap(face int, samples []byte) {
	m.Faces[face].Lightmap = len(m.Lighting)
	m.Lighting = append(m.Lighting, samples...)
}

// Quad returns a map with one worldspawn whose model 0 is a single
// size×size face without lightmap, textured with a w×h texture.
func Quad(d bsp.Dialect, size float32, texture string, w, h int) *Map {
	m := New(d)
	ti := m.AddTexture(texture, w, h)
	m.AddQuad(0, 0, 0, size, ti, false)
	m.AddModel(0, 1)
	m.AddEntity("classname", "worldspawn")
	return m
}
