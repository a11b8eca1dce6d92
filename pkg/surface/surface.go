// Package surface builds triangle meshes from map faces.
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
package surface

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/lightmap"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
)

const (
	DefaultTessellation = 3
	MaxTessellation     = 50
)

// Params is what a face needs from the rest of the import.
type Params struct {
	Material      string
	TextureWidth  int // Texture coordinates are divided by these.
	TextureHeight int
	Lightmap      lightmap.Placement
	AtlasSize     int
	Tessellation  int // Bezier patch subdivisions per 3×3 control patch.
}

// BuildFaceMesh builds the mesh of face n in Y-up coordinates, unscaled.
// Faces without geometry give an empty mesh.
func BuildFaceMesh(b *bsp.BSP, n int, p Params) (*mesh.Mesh, error) {
	if n < 0 || n >= len(b.Faces) {
		return nil, errors.Errorf("face %d out of range [0,%d)", n, len(b.Faces))
	}
	f := b.Faces[n]
	m := mesh.New(fmt.Sprintf("face%d", n), p.Material)
	if f.NumEdges <= 0 && f.NumVertices <= 0 {
		return m, nil
	}
	switch f.Type {
	case bsp.FacePlanar:
		if d, ok := b.FaceDisplacement(f); ok {
			displacement(b, f, d, p, m)
			m.Transform(mesh.SwizzleYZ)
			m.RecalculateNormals()
			return m, nil
		}
		planar(b, f, p, m)
	case bsp.FacePolygon, bsp.FaceMesh:
		triangleSoup(b, f, m)
	case bsp.FacePatch:
		patch(b, f, p.Tessellation, m)
	}
	m.Transform(mesh.SwizzleYZ)
	return m, nil
}

// planar fans a face loop: (v0, vi, vi+1).
func planar(b *bsp.BSP, f bsp.Face, p Params, m *mesh.Mesh) {
	loop := b.FaceVertices(f)
	if len(loop) < 3 {
		return
	}
	normal := b.FaceNormal(f).Vec3()
	var ti *bsp.TexInfo
	if f.TexInfo >= 0 {
		ti = &b.TexInfo[f.TexInfo]
	}
	w, h := float32(max(p.TextureWidth, 1)), float32(max(p.TextureHeight, 1))
	for _, v := range loop {
		mv := mesh.Vertex{Position: v.Vec3(), Normal: normal}
		if ti != nil {
			s := v.Dot(ti.S) + ti.DistS
			t := v.Dot(ti.T) + ti.DistT
			mv.UV = mgl32.Vec2{s / w, t / h}
			if p.Lightmap.OK {
				u2, v2 := p.Lightmap.UV(s, t, p.AtlasSize)
				mv.UV2 = mgl32.Vec2{u2, v2}
			}
		}
		m.Vertices = append(m.Vertices, mv)
	}
	for i := 1; i+1 < len(loop); i++ {
		m.AddTriangle(0, uint32(i), uint32(i+1))
	}
}

// triangleSoup copies Quake 3 vertices and meshvert triangles.
func triangleSoup(b *bsp.BSP, f bsp.Face, m *mesh.Mesh) {
	for _, dv := range b.DrawVerts[f.FirstVertex : f.FirstVertex+f.NumVertices] {
		m.Vertices = append(m.Vertices, drawVertex(dv))
	}
	mv := b.MeshVerts[f.FirstMeshVert : f.FirstMeshVert+f.NumMeshVerts]
	for i := 0; i+2 < len(mv); i += 3 {
		m.AddTriangle(uint32(mv[i]), uint32(mv[i+1]), uint32(mv[i+2]))
	}
	if m.TriangleCount() == 0 {
		m.Vertices = nil
	}
}

func drawVertex(dv bsp.DrawVertex) mesh.Vertex {
	return mesh.Vertex{
		Position: dv.Position.Vec3(),
		Normal:   dv.Normal.Vec3(),
		UV:       mgl32.Vec2{dv.TexCoord[0], dv.TexCoord[1]},
	}
}
