// Package bsp loads BSP map files of the Quake family: Quake, BSP2,
// Half-Life, Quake 2 and Quake 3.
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
// References:
// * http://www.gamers.org/dEngine/quake/spec/quake-spec34/qkspec_4.htm
// * http://www.gamers.org/dEngine/quake/QDP/qmapspec.html
// * https://www.flipcode.com/archives/Quake_2_BSP_File_Format.shtml
// * http://www.mralligator.com/q3/
// * https://developer.valvesoftware.com/wiki/BSP_(Source)
package bsp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const (
	// Luxel size in texture space units for Quake, Half-Life and Quake 2.
	LightmapScale = 16
)

type Vertex struct {
	X, Y, Z float32
}

func (v Vertex) String() string {
	return fmt.Sprintf("%g,%g,%g", v.X, v.Y, v.Z)
}

func (v Vertex) Dot(w Vertex) float32 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

func (v Vertex) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}

type Plane struct {
	Normal Vertex
	Dist   float32
	Type   int32
}

// An Edge connects two vertices. Faces use them through signed surfedges.
type Edge struct {
	From, To uint32
}

// FaceType is the Quake 3 surface type. Quake family faces are FacePlanar.
type FaceType int

const (
	FacePlanar    FaceType = 0
	FacePolygon   FaceType = 1
	FacePatch     FaceType = 2
	FaceMesh      FaceType = 3
	FaceBillboard FaceType = 4
)

// A Face is a surface. Planar faces (Quake, BSP2, Half-Life, Quake 2) are
// described by a range of surfedges. Quake 3 faces carry explicit vertices.
type Face struct {
	Plane     int
	Side      int // Non-zero if the face normal is the inverse of the plane normal.
	FirstEdge int // Index into SurfEdges.
	NumEdges  int
	TexInfo   int // -1 if none.
	Texture   int // Quake 3 only, -1 otherwise. Others go through TexInfo.
	Styles    [4]uint8
	Lightmap  int // Byte offset into Lighting, or Quake 3 page. -1 if none.
	Type      FaceType

	// Quake 3.
	FirstVertex   int
	NumVertices   int
	FirstMeshVert int
	NumMeshVerts  int
	PatchWidth    int
	PatchHeight   int
	Normal        Vertex

	// Source. Index into Displacements, -1 if none. The face is then the
	// four corners of the displacement grid.
	Displacement int
}

// TexInfo maps world space onto a texture:
//
//	s = (v dot S) + DistS
//	t = (v dot T) + DistT
type TexInfo struct {
	S       Vertex
	DistS   float32
	T       Vertex
	DistT   float32
	Texture int    // Index into Textures.
	Flags   uint32 // Quake 1 "animated" flag, Quake 2 surface flags.

	textureName string // Quake 2 names the texture here.
}

// Texture is a texture reference. Pixels are only set for embedded
// textures, as 8 bit palette indices of the full size mip level.
type Texture struct {
	Name     string
	Width    int
	Height   int
	Pixels   []byte
	Palette  []byte // 768 bytes of RGB if the texture carries its own.
	External bool   // Pixels have to be found elsewhere.
	Flags    uint32

	nameID int // Source names textures through the string table.
}

// Model is a group of faces. Model 0 is the world, the rest are brush entities.
type Model struct {
	Mins, Maxs Vertex
	Origin     Vertex
	FirstFace  int
	NumFaces   int
}

// DrawVertex is a Quake 3 vertex.
type DrawVertex struct {
	Position      Vertex
	TexCoord      [2]float32
	LightmapCoord [2]float32
	Normal        Vertex
	Color         [4]uint8
}

// Displacement is a Source terrain patch: a (2^Power+1)² grid of DispVerts
// spanning the corners of Face, row by row from the corner at Start.
type Displacement struct {
	Start     Vertex
	FirstVert int
	Power     int
	Face      int
}

// Size returns the number of vertices along one side of the grid.
func (d Displacement) Size() int {
	return 1<<d.Power + 1
}

// DispVert moves one grid point Dist units along Vector.
type DispVert struct {
	Vector Vertex
	Dist   float32
	Alpha  float32 // Blend between the two materials of a blended face.
}

// BSP is a decoded and validated map. All cross references are in range.
type BSP struct {
	Dialect       Dialect
	Name          string
	Entities      []Entity
	Planes        []Plane
	Vertices      []Vertex
	Edges         []Edge
	SurfEdges     []int32
	Faces         []Face
	TexInfo       []TexInfo
	Textures      []Texture
	Models        []Model
	Lighting      []byte
	DrawVerts     []DrawVertex
	MeshVerts     []int32
	LightmapPages int
	Displacements []Displacement
	DispVerts     []DispVert
}

// Load loads a BSP map from something that reads and seeks.
func Load(r io.ReadSeeker) (*BSP, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking to start of bsp")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading bsp")
	}
	return LoadBytes(data)
}

// LoadBytes decodes a BSP map held in memory.
func LoadBytes(data []byte) (*BSP, error) {
	ret, err := loadRaw(data)
	if err != nil {
		return nil, err
	}
	if err := ret.validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadFile loads a BSP map from disk, naming it after the file.
func LoadFile(fn string) (*BSP, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, &FormatError{Err: errors.Wrapf(err, "reading %q", fn)}
	}
	ret, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	ret.Name = MapName(fn)
	return ret, nil
}

// MapName returns the map name of a file name, e.g. "maps/e1m1.bsp" is "e1m1".
func MapName(fn string) string {
	base := filepath.Base(strings.ReplaceAll(fn, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// validate checks every cross reference once, so that users of a loaded
// BSP can index without checking.
func (bsp *BSP) validate() error {
	for n, e := range bsp.Edges {
		if int(e.From) >= len(bsp.Vertices) || int(e.To) >= len(bsp.Vertices) {
			return formatErrorf(lumpEdges.String(), "edge %d (%d,%d) references past %d vertices", n, e.From, e.To, len(bsp.Vertices))
		}
	}
	for n, se := range bsp.SurfEdges {
		if se == -se && se != 0 {
			return formatErrorf(lumpSurfEdges.String(), "surfedge %d has unrepresentable value %d", n, se)
		}
		if abs(int(se)) >= len(bsp.Edges) {
			return formatErrorf(lumpSurfEdges.String(), "surfedge %d (%d) references past %d edges", n, se, len(bsp.Edges))
		}
	}
	for n, ti := range bsp.TexInfo {
		if ti.Texture < 0 || ti.Texture >= len(bsp.Textures) {
			return formatErrorf(lumpTexInfo.String(), "texinfo %d references texture %d of %d", n, ti.Texture, len(bsp.Textures))
		}
	}
	for n, f := range bsp.Faces {
		if err := bsp.validateFace(n, f); err != nil {
			return err
		}
	}
	for n, d := range bsp.Displacements {
		if d.Power < 2 || d.Power > 4 {
			return formatErrorf(lumpDispInfo.String(), "displacement %d has power %d", n, d.Power)
		}
		if d.FirstVert < 0 || d.FirstVert+d.Size()*d.Size() > len(bsp.DispVerts) {
			return formatErrorf(lumpDispInfo.String(), "displacement %d vertices %d+%d outside %d", n, d.FirstVert, d.Size()*d.Size(), len(bsp.DispVerts))
		}
	}
	for n, m := range bsp.Models {
		if m.FirstFace < 0 || m.NumFaces < 0 || m.FirstFace+m.NumFaces > len(bsp.Faces) {
			return formatErrorf(lumpModels.String(), "model %d faces %d+%d outside %d faces", n, m.FirstFace, m.NumFaces, len(bsp.Faces))
		}
	}
	return nil
}

func (bsp *BSP) validateFace(n int, f Face) error {
	lump := lumpFaces.String()
	if bsp.Dialect == Quake3 {
		if f.Texture < -1 || f.Texture >= len(bsp.Textures) {
			return formatErrorf(lump, "face %d references texture %d of %d", n, f.Texture, len(bsp.Textures))
		}
		if f.FirstVertex < 0 || f.NumVertices < 0 || f.FirstVertex+f.NumVertices > len(bsp.DrawVerts) {
			return formatErrorf(lump, "face %d vertices %d+%d outside %d", n, f.FirstVertex, f.NumVertices, len(bsp.DrawVerts))
		}
		if f.FirstMeshVert < 0 || f.NumMeshVerts < 0 || f.FirstMeshVert+f.NumMeshVerts > len(bsp.MeshVerts) {
			return formatErrorf(lump, "face %d meshverts %d+%d outside %d", n, f.FirstMeshVert, f.NumMeshVerts, len(bsp.MeshVerts))
		}
		for _, mv := range bsp.MeshVerts[f.FirstMeshVert : f.FirstMeshVert+f.NumMeshVerts] {
			if mv < 0 || int(mv) >= f.NumVertices {
				return formatErrorf(lump, "face %d meshvert %d outside its %d vertices", n, mv, f.NumVertices)
			}
		}
		if f.Type == FacePatch {
			w, h := f.PatchWidth, f.PatchHeight
			if w < 3 || h < 3 || w%2 == 0 || h%2 == 0 || w*h != f.NumVertices {
				return formatErrorf(lump, "face %d patch %dx%d doesn't match %d control points", n, w, h, f.NumVertices)
			}
		}
		return nil
	}
	if f.Plane < 0 || f.Plane >= len(bsp.Planes) {
		return formatErrorf(lump, "face %d references plane %d of %d", n, f.Plane, len(bsp.Planes))
	}
	if f.TexInfo < -1 || f.TexInfo >= len(bsp.TexInfo) {
		return formatErrorf(lump, "face %d references texinfo %d of %d", n, f.TexInfo, len(bsp.TexInfo))
	}
	if f.FirstEdge < 0 || f.NumEdges < 0 || f.FirstEdge+f.NumEdges > len(bsp.SurfEdges) {
		return formatErrorf(lump, "face %d surfedges %d+%d outside %d", n, f.FirstEdge, f.NumEdges, len(bsp.SurfEdges))
	}
	if bsp.Dialect == Source && f.Displacement >= 0 {
		if f.Displacement >= len(bsp.Displacements) {
			return formatErrorf(lump, "face %d references displacement %d of %d", n, f.Displacement, len(bsp.Displacements))
		}
		if f.NumEdges != 4 {
			return formatErrorf(lump, "displacement face %d has %d edges, want 4", n, f.NumEdges)
		}
	}
	return nil
}

// FaceDisplacement returns the displacement of a face, if it has one.
func (bsp *BSP) FaceDisplacement(f Face) (Displacement, bool) {
	if bsp.Dialect != Source || f.Displacement < 0 {
		return Displacement{}, false
	}
	return bsp.Displacements[f.Displacement], true
}

// DisplacementVertices returns the grid of a displacement, row by row.
func (bsp *BSP) DisplacementVertices(d Displacement) []DispVert {
	return bsp.DispVerts[d.FirstVert : d.FirstVert+d.Size()*d.Size()]
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// FaceLoop returns the vertex indices of a planar face, in file order.
// The loop is implicitly closed: the last vertex connects to the first.
// A positive surfedge walks its edge From->To, a negative one To->From.
func (bsp *BSP) FaceLoop(f Face) []uint32 {
	if f.NumEdges == 0 {
		return nil
	}
	ret := make([]uint32, 0, f.NumEdges)
	for _, e := range bsp.SurfEdges[f.FirstEdge : f.FirstEdge+f.NumEdges] {
		if e < 0 {
			ret = append(ret, bsp.Edges[-e].To)
		} else {
			ret = append(ret, bsp.Edges[e].From)
		}
	}
	return ret
}

// FaceVertices returns the positions of FaceLoop.
func (bsp *BSP) FaceVertices(f Face) []Vertex {
	loop := bsp.FaceLoop(f)
	ret := make([]Vertex, len(loop))
	for n, i := range loop {
		ret[n] = bsp.Vertices[i]
	}
	return ret
}

// FaceNormal returns the normal of the front of the face.
func (bsp *BSP) FaceNormal(f Face) Vertex {
	if bsp.Dialect == Quake3 {
		return f.Normal
	}
	n := bsp.Planes[f.Plane].Normal
	if f.Side != 0 {
		n = Vertex{-n.X, -n.Y, -n.Z}
	}
	return n
}

// TextureIndex returns the index into Textures used by a face, or -1.
func (bsp *BSP) TextureIndex(f Face) int {
	if bsp.Dialect == Quake3 {
		return f.Texture
	}
	if f.TexInfo < 0 {
		return -1
	}
	return bsp.TexInfo[f.TexInfo].Texture
}

// TextureFlags returns the surface flags of the face's texture mapping.
func (bsp *BSP) TextureFlags(f Face) uint32 {
	if bsp.Dialect == Quake3 {
		if f.Texture < 0 {
			return 0
		}
		return bsp.Textures[f.Texture].Flags
	}
	if f.TexInfo < 0 {
		return 0
	}
	return bsp.TexInfo[f.TexInfo].Flags
}

// FacesInModel returns the face indices of a model.
func (bsp *BSP) FacesInModel(model int) []int {
	if model < 0 || model >= len(bsp.Models) {
		return nil
	}
	m := bsp.Models[model]
	ret := make([]int, m.NumFaces)
	for n := range ret {
		ret[n] = m.FirstFace + n
	}
	return ret
}

// Extents is the lightmap rectangle of a face, in luxels and texture space.
type Extents struct {
	MinS, MinT    int // Texture space, multiple of LightmapScale.
	Width, Height int // Luxels.
}

// LightmapExtents calculates the lightmap size of a planar face the way the
// compilers do. Returns false for faces without texture mapping or edges.
func (bsp *BSP) LightmapExtents(f Face) (Extents, bool) {
	if !bsp.Dialect.PlanarLightmaps() || f.TexInfo < 0 || f.NumEdges == 0 {
		return Extents{}, false
	}
	ti := bsp.TexInfo[f.TexInfo]
	minS, minT := math32.Inf(1), math32.Inf(1)
	maxS, maxT := math32.Inf(-1), math32.Inf(-1)
	for _, v := range bsp.FaceVertices(f) {
		s := v.Dot(ti.S) + ti.DistS
		t := v.Dot(ti.T) + ti.DistT
		minS, maxS = math32.Min(minS, s), math32.Max(maxS, s)
		minT, maxT = math32.Min(minT, t), math32.Max(maxT, t)
	}
	floorS := int(math32.Floor(minS / LightmapScale))
	floorT := int(math32.Floor(minT / LightmapScale))
	ceilS := int(math32.Ceil(maxS / LightmapScale))
	ceilT := int(math32.Ceil(maxT / LightmapScale))
	return Extents{
		MinS:   floorS * LightmapScale,
		MinT:   floorT * LightmapScale,
		Width:  ceilS - floorS + 1,
		Height: ceilT - floorT + 1,
	}, true
}

// LightmapSamples returns the first light style of a face, w*h luxels of
// BytesPerLuxel each. Returns false if the face has no lightmap or the
// lighting lump is too short.
func (bsp *BSP) LightmapSamples(f Face, w, h int) ([]byte, bool) {
	if !bsp.Dialect.PlanarLightmaps() || f.Lightmap < 0 || w <= 0 || h <= 0 {
		return nil, false
	}
	size := w * h * bsp.Dialect.BytesPerLuxel()
	if f.Lightmap+size > len(bsp.Lighting) {
		return nil, false
	}
	return bsp.Lighting[f.Lightmap : f.Lightmap+size], true
}

// WorldSpawn returns the worldspawn entity, or nil.
func (bsp *BSP) WorldSpawn() *Entity {
	for n := range bsp.Entities {
		if bsp.Entities[n].ClassName() == "worldspawn" {
			return &bsp.Entities[n]
		}
	}
	return nil
}
