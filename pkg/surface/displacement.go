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
package surface

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
)

// displacement builds the grid of a Source displacement. Rows run from the
// face corner nearest d.Start towards the next corner, columns towards the
// opposite edge. Texture coordinates come from the undisplaced grid.
// Normals are left for the caller to calculate.
func displacement(b *bsp.BSP, f bsp.Face, d bsp.Displacement, p Params, m *mesh.Mesh) {
	loop := b.FaceVertices(f)
	if len(loop) != 4 {
		return
	}
	first, best := 0, float32(math32.MaxFloat32)
	for n, v := range loop {
		if dist := v.Vec3().Sub(d.Start.Vec3()).Len(); dist < best {
			first, best = n, dist
		}
	}
	var c [4]mgl32.Vec3
	for n := range c {
		c[n] = loop[(first+n)%4].Vec3()
	}

	var ti *bsp.TexInfo
	if f.TexInfo >= 0 {
		ti = &b.TexInfo[f.TexInfo]
	}
	w, h := float32(max(p.TextureWidth, 1)), float32(max(p.TextureHeight, 1))
	size := d.Size()
	step := 1 / float32(size-1)
	verts := b.DisplacementVertices(d)
	for i := 0; i < size; i++ {
		left := c[0].Add(c[1].Sub(c[0]).Mul(float32(i) * step))
		right := c[3].Add(c[2].Sub(c[3]).Mul(float32(i) * step))
		for j := 0; j < size; j++ {
			base := left.Add(right.Sub(left).Mul(float32(j) * step))
			dv := verts[i*size+j]
			mv := mesh.Vertex{Position: base.Add(dv.Vector.Vec3().Mul(dv.Dist))}
			if ti != nil {
				s := base.Dot(ti.S.Vec3()) + ti.DistS
				t := base.Dot(ti.T.Vec3()) + ti.DistT
				mv.UV = mgl32.Vec2{s / w, t / h}
			}
			m.Vertices = append(m.Vertices, mv)
		}
	}
	// Diagonals alternate between neighbouring cells.
	for i := 0; i+1 < size; i++ {
		for j := 0; j+1 < size; j++ {
			v00 := uint32(i*size + j)
			v01, v10 := v00+1, v00+uint32(size)
			v11 := v10 + 1
			if (i+j)%2 == 0 {
				m.AddTriangle(v00, v10, v11)
				m.AddTriangle(v00, v11, v01)
			} else {
				m.AddTriangle(v00, v10, v01)
				m.AddTriangle(v01, v10, v11)
			}
		}
	}
	orient(m, b.FaceNormal(f).Vec3())
}
