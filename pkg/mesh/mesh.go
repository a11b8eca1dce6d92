// Package mesh holds triangle meshes built from map faces, and combines
// them into fewer, bigger meshes.
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
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxVertices is the most vertices a mesh with 16 bit indices can have.
	MaxVertices = 65535
)

// SwizzleYZ maps Z-up map coordinates to Y-up. It's a reflection, so it
// also turns clockwise triangles counter clockwise.
var SwizzleYZ = mgl32.Mat4{
	1, 0, 0, 0,
	0, 0, 1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// Vertex holds all vertex attributes.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2 // Texture.
	UV2      mgl32.Vec2 // Lightmap atlas.
}

// SubMesh is the triangles of one material.
type SubMesh struct {
	Material string
	Indices  []uint32 // Three per triangle, into Mesh.Vertices.
}

// Mesh is a triangle mesh with one or more materials.
type Mesh struct {
	Name      string
	Group     string // Material container the mesh belongs to, if any.
	Vertices  []Vertex
	SubMeshes []SubMesh
}

// New creates an empty single material mesh.
func New(name, material string) *Mesh {
	return &Mesh{
		Name:      name,
		SubMeshes: []SubMesh{{Material: material}},
	}
}

// Empty returns true if the mesh contributes no geometry.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Vertices) == 0
}

func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

func (m *Mesh) TriangleCount() int {
	n := 0
	for _, s := range m.SubMeshes {
		n += len(s.Indices) / 3
	}
	return n
}

// Oversized returns true if the mesh has too many vertices for 16 bit indices.
func (m *Mesh) Oversized() bool {
	return len(m.Vertices) > MaxVertices
}

// Materials returns the material of each sub mesh.
func (m *Mesh) Materials() []string {
	ret := make([]string, len(m.SubMeshes))
	for n, s := range m.SubMeshes {
		ret[n] = s.Material
	}
	return ret
}

// AddTriangle adds a triangle to the last sub mesh.
func (m *Mesh) AddTriangle(a, b, c uint32) {
	if len(m.SubMeshes) == 0 {
		m.SubMeshes = append(m.SubMeshes, SubMesh{})
	}
	s := &m.SubMeshes[len(m.SubMeshes)-1]
	s.Indices = append(s.Indices, a, b, c)
}

// Append adds the geometry of o. Triangles go into the sub mesh of the
// same material, which is created if needed.
func (m *Mesh) Append(o *Mesh) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, o.Vertices...)
	for _, sub := range o.SubMeshes {
		idx := -1
		for n := range m.SubMeshes {
			if m.SubMeshes[n].Material == sub.Material {
				idx = n
				break
			}
		}
		if idx < 0 {
			m.SubMeshes = append(m.SubMeshes, SubMesh{Material: sub.Material})
			idx = len(m.SubMeshes) - 1
		}
		s := &m.SubMeshes[idx]
		for _, i := range sub.Indices {
			s.Indices = append(s.Indices, base+i)
		}
	}
}

// RecalculateNormals sets every vertex normal to the area weighted average
// of the triangles using it. Triangles are counter clockwise seen from the front.
func (m *Mesh) RecalculateNormals() {
	for n := range m.Vertices {
		m.Vertices[n].Normal = mgl32.Vec3{}
	}
	for _, s := range m.SubMeshes {
		for n := 0; n+2 < len(s.Indices); n += 3 {
			a, b, c := s.Indices[n], s.Indices[n+1], s.Indices[n+2]
			v0 := m.Vertices[a].Position
			normal := m.Vertices[b].Position.Sub(v0).Cross(m.Vertices[c].Position.Sub(v0))
			m.Vertices[a].Normal = m.Vertices[a].Normal.Add(normal)
			m.Vertices[b].Normal = m.Vertices[b].Normal.Add(normal)
			m.Vertices[c].Normal = m.Vertices[c].Normal.Add(normal)
		}
	}
	for n := range m.Vertices {
		if m.Vertices[n].Normal.Len() > 0 {
			m.Vertices[n].Normal = m.Vertices[n].Normal.Normalize()
		}
	}
}

// Transform applies a matrix to positions and normals.
func (m *Mesh) Transform(mat mgl32.Mat4) {
	normalMat := mat.Mat3().Inv().Transpose()
	for n := range m.Vertices {
		v := &m.Vertices[n]
		v.Position = mgl32.TransformCoordinate(v.Position, mat)
		if nn := normalMat.Mul3x1(v.Normal); nn.Len() > 0 {
			v.Normal = nn.Normalize()
		}
	}
}

// Scale scales all positions.
func (m *Mesh) Scale(f float32) {
	m.Transform(mgl32.Scale3D(f, f, f))
}

// Bounds returns the axis aligned bounding box.
func (m *Mesh) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	lo, hi := m.Vertices[0].Position, m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], v.Position[i])
			hi[i] = max(hi[i], v.Position[i])
		}
	}
	return lo, hi
}
