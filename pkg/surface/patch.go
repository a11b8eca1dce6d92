package surface

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
	"github.com/go-gl/mathgl/mgl32"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
)

// bernstein returns the quadratic Bernstein weights at t.
func bernstein(t float32) [3]float32 {
	s := 1 - t
	return [3]float32{s * s, 2 * t * s, t * t}
}

// patch tessellates a Quake 3 Bezier patch. The control grid is split into
// 3×3 biquadratic patches overlapping at their edges, each sampled at
// (level+1)² points.
func patch(b *bsp.BSP, f bsp.Face, level int, m *mesh.Mesh) {
	level = min(max(level, 1), MaxTessellation)
	ctrl := b.DrawVerts[f.FirstVertex : f.FirstVertex+f.NumVertices]
	w, h := f.PatchWidth, f.PatchHeight

	var facing mgl32.Vec3
	for _, c := range ctrl {
		facing = facing.Add(c.Normal.Vec3())
	}

	for py := 0; py < (h-1)/2; py++ {
		for px := 0; px < (w-1)/2; px++ {
			var c [3][3]mesh.Vertex
			for j := 0; j < 3; j++ {
				for i := 0; i < 3; i++ {
					c[j][i] = drawVertex(ctrl[(py*2+j)*w+px*2+i])
				}
			}
			base := uint32(len(m.Vertices))
			for y := 0; y <= level; y++ {
				bv := bernstein(float32(y) / float32(level))
				for x := 0; x <= level; x++ {
					bu := bernstein(float32(x) / float32(level))
					var v mesh.Vertex
					for j := 0; j < 3; j++ {
						for i := 0; i < 3; i++ {
							k := bu[i] * bv[j]
							v.Position = v.Position.Add(c[j][i].Position.Mul(k))
							v.Normal = v.Normal.Add(c[j][i].Normal.Mul(k))
							v.UV = v.UV.Add(c[j][i].UV.Mul(k))
						}
					}
					m.Vertices = append(m.Vertices, v)
				}
			}
			row := uint32(level + 1)
			for y := uint32(0); y < uint32(level); y++ {
				for x := uint32(0); x < uint32(level); x++ {
					a := base + y*row + x
					m.AddTriangle(a, a+row, a+1)
					m.AddTriangle(a+1, a+row, a+row+1)
				}
			}
		}
	}
	orient(m, facing)
}

// orient flips the triangles of a mesh if they are counter clockwise seen
// from the side facing points to, to match the winding of planar faces.
func orient(m *mesh.Mesh, facing mgl32.Vec3) {
	var sum float32
	for _, s := range m.SubMeshes {
		for n := 0; n+2 < len(s.Indices); n += 3 {
			v0 := m.Vertices[s.Indices[n]].Position
			e1 := m.Vertices[s.Indices[n+1]].Position.Sub(v0)
			e2 := m.Vertices[s.Indices[n+2]].Position.Sub(v0)
			sum += e1.Cross(e2).Dot(facing)
		}
	}
	if sum <= 0 {
		return
	}
	for _, s := range m.SubMeshes {
		for n := 0; n+2 < len(s.Indices); n += 3 {
			s.Indices[n+1], s.Indices[n+2] = s.Indices[n+2], s.Indices[n+1]
		}
	}
}
