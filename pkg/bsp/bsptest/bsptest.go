// Package bsptest builds BSP files in memory, for tests.
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
package bsptest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
)

// TexInfo is a texture mapping. Name is only written for Quake 2. Source
// maps Texture to a texdata entry.
type TexInfo struct {
	S, T         bsp.Vertex
	DistS, DistT float32
	Texture      int
	Flags        uint32
	Name         string
}

// Map is the content of a BSP file. Fields that a dialect doesn't have are
// ignored when encoding.
type Map struct {
	Dialect   bsp.Dialect
	Entities  string
	Planes    []bsp.Plane
	Vertices  []bsp.Vertex
	Edges     []bsp.Edge
	SurfEdges []int32
	Faces     []bsp.Face
	TexInfo   []TexInfo
	Textures  []bsp.Texture // Quake family: miptex. Quake 3: shaders. Source: texdata.
	Models    []bsp.Model
	Lighting  []byte
	DrawVerts []bsp.DrawVertex
	MeshVerts []int32

	Displacements []bsp.Displacement
	DispVerts     []bsp.DispVert
}

// Entity formats one entity block from key/value pairs.
func Entity(kv ...string) string {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("odd number of entity strings: %q", kv))
	}
	var b strings.Builder
	b.WriteString("{\n")
	for n := 0; n < len(kv); n += 2 {
		fmt.Fprintf(&b, "%q %q\n", kv[n], kv[n+1])
	}
	b.WriteString("}\n")
	return b.String()
}

// Directory slots, per dialect.
const (
	entities = iota
	planes
	textures
	vertices
	texinfo
	faces
	lighting
	edges
	surfedges
	models
	drawverts
	meshverts
	dispinfo
	dispverts
	texstrings
	textable
	numLumps
)

func directory(d bsp.Dialect) (header []byte, slots map[int]int, count int) {
	if d == bsp.Source {
		return append([]byte("VBSP"), le32(20)...), map[int]int{
			entities: 0, planes: 1, textures: 2, vertices: 3, texinfo: 6, faces: 7, lighting: 8,
			edges: 12, surfedges: 13, models: 14, dispinfo: 26, dispverts: 33, texstrings: 43, textable: 44,
		}, 64
	}
	le := le32
	switch d {
	case bsp.Quake:
		return le(29), map[int]int{entities: 0, planes: 1, textures: 2, vertices: 3, texinfo: 6, faces: 7, lighting: 8, edges: 12, surfedges: 13, models: 14}, 15
	case bsp.HalfLife:
		return le(30), map[int]int{entities: 0, planes: 1, textures: 2, vertices: 3, texinfo: 6, faces: 7, lighting: 8, edges: 12, surfedges: 13, models: 14}, 15
	case bsp.QuakeBSP2:
		return []byte("BSP2"), map[int]int{entities: 0, planes: 1, textures: 2, vertices: 3, texinfo: 6, faces: 7, lighting: 8, edges: 12, surfedges: 13, models: 14}, 15
	case bsp.Quake2:
		return append([]byte("IBSP"), le(38)...), map[int]int{entities: 0, planes: 1, vertices: 2, texinfo: 5, faces: 6, lighting: 7, edges: 11, surfedges: 12, models: 13}, 19
	case bsp.Quake3:
		return append([]byte("IBSP"), le(46)...), map[int]int{entities: 0, textures: 1, planes: 2, models: 7, drawverts: 10, meshverts: 11, faces: 13, lighting: 14}, 17
	}
	panic(fmt.Sprintf("unknown dialect %v", d))
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

type writer struct {
	bytes.Buffer
}

func (w *writer) put(vs ...interface{}) {
	for _, v := range vs {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
}

func (w *writer) name(s string, size int) {
	b := make([]byte, size)
	copy(b, s)
	w.Write(b)
}

// Encode returns the map as a BSP file.
func (m *Map) Encode() []byte {
	header, slots, count := directory(m.Dialect)
	lumps := make([][]byte, count)
	for lump, data := range m.lumps() {
		slot, found := slots[lump]
		if !found {
			continue
		}
		lumps[slot] = data
	}

	entry := 8
	if m.Dialect == bsp.Source {
		entry = 16
	}
	var out writer
	out.Write(header)
	ofs := len(header) + count*entry
	for _, l := range lumps {
		out.put(int32(ofs), int32(len(l)))
		if entry > 8 {
			out.put(int32(0), [4]byte{})
		}
		ofs += (len(l) + 3) &^ 3
	}
	for _, l := range lumps {
		out.Write(l)
		if pad := ((len(l) + 3) &^ 3) - len(l); pad > 0 {
			out.Write(make([]byte, pad))
		}
	}
	return out.Bytes()
}

func (m *Map) lumps() map[int][]byte {
	ret := make(map[int][]byte)
	wide := m.Dialect == bsp.QuakeBSP2
	q3 := m.Dialect == bsp.Quake3

	ret[entities] = append([]byte(m.Entities), 0)
	ret[lighting] = m.Lighting

	var w writer
	for _, p := range m.Planes {
		w.put(p.Normal, p.Dist, p.Type)
	}
	ret[planes] = bytes.Clone(w.Bytes())

	w.Reset()
	for _, v := range m.Vertices {
		w.put(v)
	}
	ret[vertices] = bytes.Clone(w.Bytes())

	w.Reset()
	for _, e := range m.Edges {
		if wide {
			w.put(e.From, e.To)
		} else {
			w.put(uint16(e.From), uint16(e.To))
		}
	}
	ret[edges] = bytes.Clone(w.Bytes())

	w.Reset()
	w.put(m.SurfEdges)
	ret[surfedges] = bytes.Clone(w.Bytes())

	w.Reset()
	w.put(m.MeshVerts)
	ret[meshverts] = bytes.Clone(w.Bytes())

	w.Reset()
	for _, v := range m.DrawVerts {
		w.put(v.Position, v.TexCoord, v.LightmapCoord, v.Normal, v.Color)
	}
	ret[drawverts] = bytes.Clone(w.Bytes())

	w.Reset()
	for _, f := range m.Faces {
		switch {
		case q3:
			w.put(int32(f.Texture), int32(-1), int32(f.Type),
				int32(f.FirstVertex), int32(f.NumVertices),
				int32(f.FirstMeshVert), int32(f.NumMeshVerts),
				int32(f.Lightmap), [2]int32{}, [2]int32{},
				bsp.Vertex{}, [2]bsp.Vertex{}, f.Normal,
				[2]int32{int32(f.PatchWidth), int32(f.PatchHeight)})
		case m.Dialect == bsp.Source:
			w.put(uint16(f.Plane), uint8(f.Side), uint8(0), int32(f.FirstEdge), int16(f.NumEdges), int16(f.TexInfo),
				int16(f.Displacement), int16(-1), f.Styles, int32(f.Lightmap), float32(0),
				[2]int32{}, [2]int32{}, int32(-1), uint16(0), uint16(0), uint32(0))
		case wide:
			w.put(int32(f.Plane), int32(f.Side), int32(f.FirstEdge), int32(f.NumEdges), int32(f.TexInfo), f.Styles, int32(f.Lightmap))
		default:
			w.put(uint16(f.Plane), uint16(f.Side), int32(f.FirstEdge), uint16(f.NumEdges), int16(f.TexInfo), f.Styles, int32(f.Lightmap))
		}
	}
	ret[faces] = bytes.Clone(w.Bytes())

	w.Reset()
	for _, t := range m.TexInfo {
		if m.Dialect == bsp.Source {
			w.put([4]float32{t.S.X, t.S.Y, t.S.Z, t.DistS}, [4]float32{t.T.X, t.T.Y, t.T.Z, t.DistT},
				[2][4]float32{}, int32(t.Flags), int32(t.Texture))
			continue
		}
		w.put(t.S, t.DistS, t.T, t.DistT)
		if m.Dialect == bsp.Quake2 {
			w.put(t.Flags, int32(0))
			w.name(t.Name, 32)
			w.put(int32(-1))
		} else {
			w.put(uint32(t.Texture), t.Flags)
		}
	}
	ret[texinfo] = bytes.Clone(w.Bytes())

	w.Reset()
	for _, mdl := range m.Models {
		switch m.Dialect {
		case bsp.Quake3:
			w.put(mdl.Mins, mdl.Maxs, int32(mdl.FirstFace), int32(mdl.NumFaces), int32(0), int32(0))
		case bsp.Quake2, bsp.Source:
			w.put(mdl.Mins, mdl.Maxs, mdl.Origin, int32(0), int32(mdl.FirstFace), int32(mdl.NumFaces))
		default:
			w.put(mdl.Mins, mdl.Maxs, mdl.Origin, [4]int32{}, int32(0), int32(mdl.FirstFace), int32(mdl.NumFaces))
		}
	}
	ret[models] = bytes.Clone(w.Bytes())

	switch {
	case m.Dialect == bsp.Source:
		m.texData(ret)
	case q3:
		w.Reset()
		for _, t := range m.Textures {
			w.name(t.Name, 64)
			w.put(int32(t.Flags), int32(0))
		}
		ret[textures] = bytes.Clone(w.Bytes())
	default:
		ret[textures] = m.mipTex()
	}
	return ret
}

// texData encodes the Source texdata lump and the string table and data
// naming its entries, and the displacement lumps.
func (m *Map) texData(ret map[int][]byte) {
	var td, table, strs writer
	for n, t := range m.Textures {
		td.put(bsp.Vertex{}, int32(n), int32(t.Width), int32(t.Height), int32(t.Width), int32(t.Height))
		table.put(int32(strs.Len()))
		strs.WriteString(t.Name)
		strs.WriteByte(0)
	}
	ret[textures] = td.Bytes()
	ret[textable] = table.Bytes()
	ret[texstrings] = strs.Bytes()

	var di, dv writer
	for _, d := range m.Displacements {
		di.put(d.Start, int32(d.FirstVert), int32(0), int32(d.Power), int32(0), float32(0), int32(0),
			uint16(d.Face), [2]byte{}, int32(0), int32(0), [128]byte{})
	}
	for _, v := range m.DispVerts {
		dv.put(v.Vector, v.Dist, v.Alpha)
	}
	ret[dispinfo] = di.Bytes()
	ret[dispverts] = dv.Bytes()
}

// mipTex encodes the miptex lump: count, offsets, then each texture with
// all four mip levels.
func (m *Map) mipTex() []byte {
	if len(m.Textures) == 0 {
		return nil
	}
	var body writer
	ofs := make([]int32, len(m.Textures))
	base := 4 + 4*len(m.Textures)
	for n, t := range m.Textures {
		ofs[n] = int32(base + body.Len())
		body.name(t.Name, 16)
		body.put(uint32(t.Width), uint32(t.Height))
		if t.External || t.Pixels == nil {
			body.put([4]uint32{})
			continue
		}
		size := t.Width * t.Height
		const hdr = 40
		body.put(uint32(hdr), uint32(hdr+size), uint32(hdr+size+size/4), uint32(hdr+size+size/4+size/16))
		body.Write(t.Pixels)
		body.Write(make([]byte, size/4+size/16+size/64))
		if m.Dialect == bsp.HalfLife {
			body.put(uint16(256))
			pal := make([]byte, 768)
			copy(pal, t.Palette)
			body.Write(pal)
			body.put(uint16(0))
		}
	}
	var out writer
	out.put(int32(len(m.Textures)), ofs)
	out.Write(body.Bytes())
	return out.Bytes()
}
