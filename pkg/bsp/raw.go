package bsp

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

// The file contains the raw file loading code.

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

const (
	// Sizes of various structs that are part of the file format.
	// This is to prevent accidentally adding fields to those structs.
	filePlaneSize      = 3*4 + 4 + 4
	fileVertexSize     = 4 * 3
	fileEdgeV0Size     = 2 + 2
	fileEdgeV1Size     = 4 + 4
	fileFaceV0Size     = 2 + 2 + 4 + 2 + 2 + 4 + 4
	fileFaceV1Size     = 4 + 4 + 4 + 4 + 4 + 4 + 4
	fileTexInfoSize    = 3*4 + 4 + 3*4 + 4 + 4 + 4
	fileTexInfoQ2Size  = 2*4*4 + 4 + 4 + 32 + 4
	fileModelSize      = 2*3*4 + 3*4 + 4*4 + 3*4
	fileModelQ2Size    = 3*3*4 + 3*4
	fileModelQ3Size    = 2*3*4 + 4*4
	fileMiptexSize     = 16 + 4 + 4 + 4*4
	fileShaderSize     = 64 + 4 + 4
	fileDrawVertexSize = 3*4 + 2*2*4 + 3*4 + 4
	fileFaceQ3Size     = 8*4 + 4*4 + 3*4 + 2*3*4 + 3*4 + 2*4

	fileFaceSourceSize    = 2 + 1 + 1 + 4 + 2 + 2 + 2 + 2 + 4 + 4 + 4 + 2*4 + 2*4 + 4 + 2 + 2 + 4
	fileTexInfoSourceSize = 2*4*4 + 2*4*4 + 4 + 4
	fileTexDataSize       = 3*4 + 5*4
	fileDispInfoSize      = 3*4 + 6*4 + 2 + 2 + 2*4 + 128
	fileDispVertSize      = 3*4 + 4 + 4

	// Quake 3 lightmaps are fixed size RGB pages.
	LightmapPageSize = 128

	unusedMipTexOffset = -1
)

// record is a raw, dialect specific struct that can be turned into a
// dialect independent one.
type record[T any] interface {
	convert() T
}

// decode reads fixed size records of type R and converts them.
func decode[R record[T], T any](data []byte, lump string) ([]T, error) {
	var zero R
	size := binary.Size(zero)
	if size <= 0 {
		return nil, &FormatError{Lump: lump, Err: errors.Errorf("record type %T has no fixed size", zero)}
	}
	if len(data)%size != 0 {
		return nil, &FormatError{Lump: lump, Err: errors.Errorf("size %v not divisible by %v", len(data), size)}
	}
	raw := make([]R, len(data)/size)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, raw); err != nil {
		return nil, &FormatError{Lump: lump, Err: errors.Wrap(err, "reading records")}
	}
	ret := make([]T, len(raw))
	for n := range raw {
		ret[n] = raw[n].convert()
	}
	return ret, nil
}

type rawIndex int32

func (i rawIndex) convert() int32 { return int32(i) }

func (v Vertex) convert() Vertex { return v }

type rawPlane struct {
	Normal Vertex
	Dist   float32
	Type   int32 // 0-2 axial, 3-5 nearest axis.
}

func (p rawPlane) convert() Plane {
	return Plane{Normal: p.Normal, Dist: p.Dist, Type: p.Type}
}

// A rawEdgeV0 is the edge of one or more polygons in the file.
// From and To are indices in the vertex table.
// Edges are not referenced directly from polygons, only via surfedges.
type rawEdgeV0 struct {
	From uint16
	To   uint16
}

func (e rawEdgeV0) convert() Edge { return Edge{From: uint32(e.From), To: uint32(e.To)} }

// rawEdgeV1 is the BSP2 edge with expanded vertex indices.
type rawEdgeV1 struct {
	From uint32
	To   uint32
}

func (e rawEdgeV1) convert() Edge { return Edge{From: e.From, To: e.To} }

// A rawFaceV0 is a polygon as it appears in Quake, Half-Life and Quake 2 files.
type rawFaceV0 struct {
	PlaneID   uint16
	Side      uint16 // 0 if in front of the plane.
	LEdge     int32  // First surfedge.
	LEdgeNum  uint16 // Number of surfedges.
	TexinfoID int16  // Texture information.

	// Styles[0]:
	// 0 = normal light map.
	// 1 = fast pulse.
	// 2 = slow pulse.
	// 3-10 = other light effects.
	// 0xff = no light map
	Styles   [4]uint8
	Lightmap int32 // Offset into the lighting lump, -1 if none.
}

func (f rawFaceV0) convert() Face {
	return Face{
		Plane:        int(f.PlaneID),
		Side:         int(f.Side),
		FirstEdge:    int(f.LEdge),
		NumEdges:     int(f.LEdgeNum),
		TexInfo:      int(f.TexinfoID),
		Texture:      -1,
		Styles:       f.Styles,
		Lightmap:     int(f.Lightmap),
		Type:         FacePlanar,
		Displacement: -1,
	}
}

// rawFaceV1 is the BSP2 face.
type rawFaceV1 struct {
	PlaneID   int32
	Side      int32
	LEdge     int32
	LEdgeNum  int32
	TexinfoID int32
	Styles    [4]uint8
	Lightmap  int32
}

func (f rawFaceV1) convert() Face {
	return Face{
		Plane:        int(f.PlaneID),
		Side:         int(f.Side),
		FirstEdge:    int(f.LEdge),
		NumEdges:     int(f.LEdgeNum),
		TexInfo:      int(f.TexinfoID),
		Texture:      -1,
		Styles:       f.Styles,
		Lightmap:     int(f.Lightmap),
		Type:         FacePlanar,
		Displacement: -1,
	}
}

// rawFaceSource adds displacements and lightmap sizes, which are ignored.
type rawFaceSource struct {
	PlaneID        uint16
	Side           uint8
	OnNode         uint8
	LEdge          int32
	LEdgeNum       int16
	TexinfoID      int16
	DispInfo       int16 // -1 if not a displacement.
	FogVolume      int16
	Styles         [4]uint8
	Lightmap       int32
	Area           float32
	LightmapMins   [2]int32
	LightmapSize   [2]int32
	OrigFace       int32
	NumPrims       uint16
	FirstPrim      uint16
	SmoothingGroup uint32
}

func (f rawFaceSource) convert() Face {
	return Face{
		Plane:        int(f.PlaneID),
		Side:         int(f.Side),
		FirstEdge:    int(f.LEdge),
		NumEdges:     int(f.LEdgeNum),
		TexInfo:      int(f.TexinfoID),
		Texture:      -1,
		Styles:       f.Styles,
		Lightmap:     int(f.Lightmap),
		Type:         FacePlanar,
		Displacement: int(f.DispInfo),
	}
}

// A rawTexInfo is information about how to apply a texture (MipTex) onto a polygon.
// Texture coordinates are not attached to vertices directly and interpolated in 2D space,
// but are instead calculated by mapping world 3D coordinates onto the polygon plane.
//
// A vertex's texture coordinates can be obtained with:
//
//	s = (v dot VectorS) + distS
//	t = (v dot VectorT) + distT
type rawTexInfo struct {
	VectorS   Vertex  // S vector, horizontal in texture space.
	DistS     float32 // Horizontal offset in texture space
	VectorT   Vertex  // T vector, vertical in texture space.
	DistT     float32 // Vertical offset in texture space
	TextureID uint32  // Index of Mip Texture must be in [0,numtex[
	Animated  uint32  // 0 for ordinary textures, 1 for water, etc.
}

func (t rawTexInfo) convert() TexInfo {
	return TexInfo{
		S:       t.VectorS,
		DistS:   t.DistS,
		T:       t.VectorT,
		DistT:   t.DistT,
		Texture: int(t.TextureID),
		Flags:   t.Animated,
	}
}

// rawTexInfoQ2 names its texture instead of indexing a texture lump.
type rawTexInfoQ2 struct {
	VectorS     Vertex
	DistS       float32
	VectorT     Vertex
	DistT       float32
	Flags       uint32
	Value       int32
	TextureName [32]byte
	NextTexInfo int32 // Animation chain.
}

func (t rawTexInfoQ2) convert() TexInfo {
	return TexInfo{
		S:           t.VectorS,
		DistS:       t.DistS,
		T:           t.VectorT,
		DistT:       t.DistT,
		Texture:     -1,
		Flags:       t.Flags,
		textureName: cString(t.TextureName[:]),
	}
}

// rawTexInfoSource holds the offset as a fourth vector component, and
// indexes texdata instead of a texture lump.
type rawTexInfoSource struct {
	TextureVecs  [2][4]float32
	LightmapVecs [2][4]float32
	Flags        int32
	TexData      int32
}

func (t rawTexInfoSource) convert() TexInfo {
	s, tv := t.TextureVecs[0], t.TextureVecs[1]
	return TexInfo{
		S:       Vertex{s[0], s[1], s[2]},
		DistS:   s[3],
		T:       Vertex{tv[0], tv[1], tv[2]},
		DistT:   tv[3],
		Texture: int(t.TexData),
		Flags:   uint32(t.Flags),
	}
}

// rawTexData is a Source material reference. The name is an index into
// the string table.
type rawTexData struct {
	Reflectivity Vertex
	NameID       int32
	Width        int32
	Height       int32
	ViewWidth    int32
	ViewHeight   int32
}

func (t rawTexData) convert() Texture {
	return Texture{Width: int(t.Width), Height: int(t.Height), External: true, nameID: int(t.NameID)}
}

type rawDispInfo struct {
	StartPosition        Vertex
	DispVertStart        int32
	DispTriStart         int32
	Power                int32
	MinTess              int32
	SmoothingAngle       float32
	Contents             int32
	MapFace              uint16
	_                    [2]byte
	LightmapAlphaStart   int32
	LightmapSamplesStart int32
	Neighbors            [128]byte // Edge and corner neighbours, allowed verts.
}

func (d rawDispInfo) convert() Displacement {
	return Displacement{Start: d.StartPosition, FirstVert: int(d.DispVertStart), Power: int(d.Power), Face: int(d.MapFace)}
}

type rawDispVert struct {
	Vector Vertex
	Dist   float32
	Alpha  float32
}

func (v rawDispVert) convert() DispVert {
	return DispVert{Vector: v.Vector, Dist: v.Dist, Alpha: v.Alpha}
}

// A rawModel is the model definition of a some polygons.
// Most of level is in model 0. Others are doors and other movables.
//
// Models from BSP files show up in game as entities with model name "*N", where
// N is the index into this .bsp table.
type rawModel struct {
	BoundBoxMin, BoundBoxMax Vertex // The bounding box of the Model.
	Origin                   Vertex // Origin of model, usually (0,0,0).
	NodeID0                  int32  // Index of first BSP node.
	NodeID1                  int32  // Index of the first Clip node.
	NodeID2                  int32  // Index of the second Clip node.
	NodeID3                  int32  // Usually zero.
	NumLeafs                 int32  // Number of BSP leaves.
	FaceID                   int32  // Index of Faces
	FaceNum                  int32  // Number of faces.
}

func (m rawModel) convert() Model {
	return Model{Mins: m.BoundBoxMin, Maxs: m.BoundBoxMax, Origin: m.Origin, FirstFace: int(m.FaceID), NumFaces: int(m.FaceNum)}
}

type rawModelQ2 struct {
	BoundBoxMin, BoundBoxMax Vertex
	Origin                   Vertex
	HeadNode                 int32
	FaceID                   int32
	FaceNum                  int32
}

func (m rawModelQ2) convert() Model {
	return Model{Mins: m.BoundBoxMin, Maxs: m.BoundBoxMax, Origin: m.Origin, FirstFace: int(m.FaceID), NumFaces: int(m.FaceNum)}
}

type rawModelQ3 struct {
	BoundBoxMin, BoundBoxMax Vertex
	FaceID                   int32
	FaceNum                  int32
	BrushID                  int32
	BrushNum                 int32
}

func (m rawModelQ3) convert() Model {
	return Model{Mins: m.BoundBoxMin, Maxs: m.BoundBoxMax, FirstFace: int(m.FaceID), NumFaces: int(m.FaceNum)}
}

// A RawMipTex is the metadata about a texture.
// Textures are stored four times. One in original size, and three precalculated
// downsamples.
// Offsets are relative to where the current MipTex structure, not to beginning of
// file, beginning of texture area, or anything else sane. The textures are probably
// right after the miptex metadata (meaning Offset1 is 40), but it's not guaranteed.
//
// Half-Life leaves the offsets at zero when the pixels are in a WAD.
type rawMipTex struct {
	NameBytes [16]byte // Name of the texture.
	Width     uint32   // Width of picture, must be a multiple of 8
	Height    uint32   // Height of picture, must be a multiple of 8
	Offset1   uint32   // Offset to full scale texture.
	Offset2   uint32   // Offset to 1/2 scale texture.
	Offset4   uint32   // Offset to 1/4 scale texture.
	Offset8   uint32   // Offset to 1/8 scale texture.
}

// rawShader is a Quake 3 texture reference.
type rawShader struct {
	NameBytes    [64]byte
	SurfaceFlags int32
	Contents     int32
}

func (s rawShader) convert() Texture {
	return Texture{Name: cString(s.NameBytes[:]), External: true, Flags: uint32(s.SurfaceFlags)}
}

type rawDrawVertex struct {
	Position Vertex
	TexCoord [2]float32
	LMCoord  [2]float32
	Normal   Vertex
	Color    [4]uint8
}

func (v rawDrawVertex) convert() DrawVertex {
	return DrawVertex{Position: v.Position, TexCoord: v.TexCoord, LightmapCoord: v.LMCoord, Normal: v.Normal, Color: v.Color}
}

type rawFaceQ3 struct {
	Texture       int32
	Effect        int32
	Type          int32 // 1 polygon, 2 patch, 3 mesh, 4 billboard.
	Vertex        int32
	NumVertices   int32
	MeshVert      int32
	NumMeshVerts  int32
	LightmapIndex int32
	LightmapStart [2]int32
	LightmapSize  [2]int32
	LightmapOrig  Vertex
	LightmapVecs  [2]Vertex
	Normal        Vertex
	PatchSize     [2]int32
}

func (f rawFaceQ3) convert() Face {
	return Face{
		Plane:         -1,
		TexInfo:       -1,
		Texture:       int(f.Texture),
		Lightmap:      int(f.LightmapIndex),
		Type:          FaceType(f.Type),
		FirstVertex:   int(f.Vertex),
		NumVertices:   int(f.NumVertices),
		FirstMeshVert: int(f.MeshVert),
		NumMeshVerts:  int(f.NumMeshVerts),
		PatchWidth:    int(f.PatchSize[0]),
		PatchHeight:   int(f.PatchSize[1]),
		Normal:        f.Normal,
		Displacement:  -1,
	}
}

// cString returns the string representation of an ASCIIZ name.
func cString(b []byte) string {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b)
}

// decodeMipTex returns a decoder for the miptex lump of Quake and Half-Life.
// The lump is a count, a table of offsets relative to the lump and then the
// textures. With withPalette set, textures carry their own palette after the
// last mip level.
func decodeMipTex(withPalette bool) decoder[Texture] {
	return func(data []byte, lump string) ([]Texture, error) {
		if len(data) == 0 {
			return nil, nil
		}
		r := bytes.NewReader(data)
		var numMipTex int32
		if err := binary.Read(r, binary.LittleEndian, &numMipTex); err != nil {
			return nil, &FormatError{Lump: lump, Err: errors.Wrap(err, "reading miptex count")}
		}
		if numMipTex < 0 || int64(numMipTex)*4 > int64(r.Len()) {
			return nil, &FormatError{Lump: lump, Err: errors.Errorf("bad miptex count %d", numMipTex)}
		}
		mipTexOfs := make([]int32, numMipTex)
		if err := binary.Read(r, binary.LittleEndian, &mipTexOfs); err != nil {
			return nil, &FormatError{Lump: lump, Err: errors.Wrapf(err, "reading %v miptex offsets", numMipTex)}
		}
		ret := make([]Texture, numMipTex)
		for n, ofs := range mipTexOfs {
			if ofs == unusedMipTexOffset {
				// Unused slot. Faces won't reference it.
				continue
			}
			if ofs < 0 || int(ofs)+fileMiptexSize > len(data) {
				return nil, &FormatError{Lump: lump, Err: errors.Errorf("miptex %d header at %d outside lump of %d bytes", n, ofs, len(data))}
			}
			var mt rawMipTex
			if err := binary.Read(bytes.NewReader(data[ofs:]), binary.LittleEndian, &mt); err != nil {
				return nil, &FormatError{Lump: lump, Err: errors.Wrapf(err, "reading miptex %d header", n)}
			}
			t := Texture{
				Name:   cString(mt.NameBytes[:]),
				Width:  int(mt.Width),
				Height: int(mt.Height),
			}
			if mt.Offset1 == 0 {
				// Pixels live elsewhere (Half-Life WAD).
				t.External = true
				ret[n] = t
				continue
			}
			size := int(mt.Width) * int(mt.Height)
			pos := int(ofs) + int(mt.Offset1)
			if size < 0 || pos+size > len(data) {
				return nil, &FormatError{Lump: lump, Err: errors.Errorf("miptex %d (%q) data %d+%d outside lump of %d bytes", n, t.Name, pos, size, len(data))}
			}
			t.Pixels = data[pos : pos+size]
			if withPalette {
				t.Palette = embeddedPalette(data, int(ofs), mt)
			}
			ret[n] = t
		}
		return ret, nil
	}
}

// embeddedPalette finds the Half-Life per texture palette: a uint16 count
// and count RGB triplets following the 1/8 mip level.
func embeddedPalette(data []byte, ofs int, mt rawMipTex) []byte {
	if mt.Offset8 == 0 {
		return nil
	}
	pos := ofs + int(mt.Offset8) + int(mt.Width/8)*int(mt.Height/8)
	if pos+2 > len(data) {
		return nil
	}
	count := int(binary.LittleEndian.Uint16(data[pos:]))
	pos += 2
	if count != 256 || pos+count*3 > len(data) {
		return nil
	}
	return data[pos : pos+count*3]
}

type dentry struct {
	Offset int32
	Size   int32
}

// sourceDentry is a Source directory entry. A non-zero FourCC is the
// uncompressed size of an LZMA compressed lump.
type sourceDentry struct {
	Offset  int32
	Size    int32
	Version int32
	FourCC  [4]byte
}

// readHeader identifies the dialect and returns the lump directory.
func readHeader(data []byte) (*layout, []dentry, error) {
	if len(data) < 8 {
		return nil, nil, &FormatError{Err: errors.Errorf("file too small: %d bytes", len(data))}
	}
	var magic [4]byte
	copy(magic[:], data)
	var l *layout
	switch magic {
	case magicIBSP:
		version := int32(binary.LittleEndian.Uint32(data[4:]))
		switch version {
		case VersionQuake2:
			l = layouts[Quake2]
		case VersionQuake3:
			l = layouts[Quake3]
		default:
			return nil, nil, &FormatError{Err: errors.Errorf("unsupported IBSP version %d", version)}
		}
	case magicBSP2, magic2PSB:
		l = layouts[QuakeBSP2]
	case magicVBSP:
		version := int32(binary.LittleEndian.Uint32(data[4:]))
		if version < VersionSourceMin || version > VersionSourceMax {
			return nil, nil, &FormatError{Err: errors.Errorf("unsupported VBSP version %d", version)}
		}
		l = layouts[Source]
	default:
		version := int32(binary.LittleEndian.Uint32(data))
		switch version {
		case VersionQuake:
			l = layouts[Quake]
		case VersionHalfLife:
			l = layouts[HalfLife]
		default:
			return nil, nil, &FormatError{Err: errors.Errorf("unrecognized header %q / version %d", magic[:], version)}
		}
	}
	dir, err := readDirectory(data, l)
	if err != nil {
		return nil, nil, err
	}
	for n, d := range dir {
		if d.Offset < 0 || d.Size < 0 || int64(d.Offset)+int64(d.Size) > int64(len(data)) {
			return nil, nil, &FormatError{
				Lump: lumpName(l, n),
				Err:  errors.Errorf("lump %d at %d+%d outside file of %d bytes", n, d.Offset, d.Size, len(data)),
			}
		}
	}
	return l, dir, nil
}

// readDirectory reads the lump directory following the header.
func readDirectory(data []byte, l *layout) ([]dentry, error) {
	entry := binary.Size(dentry{})
	if l.wideDir {
		entry = binary.Size(sourceDentry{})
	}
	if len(data) < l.headerLen+l.numLumps*entry {
		return nil, &FormatError{Err: errors.Errorf("truncated %v header: %d bytes", l.dialect, len(data))}
	}
	r := bytes.NewReader(data[l.headerLen:])
	dir := make([]dentry, l.numLumps)
	if !l.wideDir {
		if err := binary.Read(r, binary.LittleEndian, dir); err != nil {
			return nil, &FormatError{Err: errors.Wrap(err, "reading lump directory")}
		}
		return dir, nil
	}
	wide := make([]sourceDentry, l.numLumps)
	if err := binary.Read(r, binary.LittleEndian, wide); err != nil {
		return nil, &FormatError{Err: errors.Wrap(err, "reading lump directory")}
	}
	for n, d := range wide {
		if d.FourCC != [4]byte{} && d.Size > 0 {
			return nil, &FormatError{Lump: lumpName(l, n), Err: errors.New("compressed lumps not supported")}
		}
		dir[n] = dentry{Offset: d.Offset, Size: d.Size}
	}
	return dir, nil
}

// lumpName names directory slot n, using the slot number for lumps this
// package doesn't read.
func lumpName(l *layout, n int) string {
	for id, slot := range l.slots {
		if slot == n {
			return lumpID(id).String()
		}
	}
	return fmt.Sprintf("lump%d", n)
}

// lump returns the bytes of one lump, nil if the dialect doesn't have it.
func lump(data []byte, l *layout, dir []dentry, id lumpID) []byte {
	slot := l.slots[id]
	if slot < 0 {
		return nil
	}
	d := dir[slot]
	return data[d.Offset : d.Offset+d.Size]
}

// loadRaw decodes all lumps of a BSP file held in memory, doing minimal parsing.
// Indirections such as Face->SurfEdge->Edge->Vertex are not removed.
func loadRaw(data []byte) (*BSP, error) {
	l, dir, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	ret := &BSP{Dialect: l.dialect}

	if ret.Planes, err = run(l.planes, data, l, dir, lumpPlanes); err != nil {
		return nil, err
	}
	if ret.Vertices, err = run(l.vertices, data, l, dir, lumpVertices); err != nil {
		return nil, err
	}
	if ret.DrawVerts, err = run(l.drawVerts, data, l, dir, lumpVertices); err != nil {
		return nil, err
	}
	if ret.Edges, err = run(l.edges, data, l, dir, lumpEdges); err != nil {
		return nil, err
	}
	if ret.SurfEdges, err = run(l.surfEdges, data, l, dir, lumpSurfEdges); err != nil {
		return nil, err
	}
	if ret.MeshVerts, err = run(l.meshVerts, data, l, dir, lumpMeshVerts); err != nil {
		return nil, err
	}
	if ret.Faces, err = run(l.faces, data, l, dir, lumpFaces); err != nil {
		return nil, err
	}
	if ret.TexInfo, err = run(l.texInfo, data, l, dir, lumpTexInfo); err != nil {
		return nil, err
	}
	if ret.Models, err = run(l.models, data, l, dir, lumpModels); err != nil {
		return nil, err
	}
	if ret.Textures, err = run(l.textures, data, l, dir, lumpTextures); err != nil {
		return nil, err
	}
	if l.textures == nil {
		ret.Textures = texturesFromTexInfo(ret.TexInfo)
	}
	if l.slots[lumpTexDataTable] >= 0 {
		err := nameTextures(ret.Textures, lump(data, l, dir, lumpTexDataTable), lump(data, l, dir, lumpTexDataStrings))
		if err != nil {
			return nil, err
		}
	}
	if ret.Displacements, err = run(l.dispInfo, data, l, dir, lumpDispInfo); err != nil {
		return nil, err
	}
	if ret.DispVerts, err = run(l.dispVerts, data, l, dir, lumpDispVerts); err != nil {
		return nil, err
	}
	ret.Lighting = lump(data, l, dir, lumpLighting)
	if l.dialect == Quake3 {
		ret.LightmapPages = len(ret.Lighting) / (LightmapPageSize * LightmapPageSize * 3)
	}

	ret.Entities, err = parseEntities(lump(data, l, dir, lumpEntities))
	if err != nil {
		return nil, &FormatError{Lump: lumpEntities.String(), Err: err}
	}
	return ret, nil
}

// run applies a decoder to a lump, if the dialect has both.
func run[T any](dec decoder[T], data []byte, l *layout, dir []dentry, id lumpID) ([]T, error) {
	if dec == nil {
		return nil, nil
	}
	return dec(lump(data, l, dir, id), id.String())
}

// texturesFromTexInfo builds the texture table of dialects that name
// textures in the texinfo, and points each texinfo at its texture.
func texturesFromTexInfo(ti []TexInfo) []Texture {
	var ret []Texture
	byName := make(map[string]int)
	for n := range ti {
		name := ti[n].textureName
		idx, found := byName[name]
		if !found {
			idx = len(ret)
			byName[name] = idx
			ret = append(ret, Texture{Name: name, External: true, Flags: ti[n].Flags})
		}
		ti[n].Texture = idx
	}
	return ret
}

// nameTextures looks up Source texdata names: the table holds offsets of
// NUL terminated names in the string data.
func nameTextures(textures []Texture, table, strs []byte) error {
	offsets, err := decode[rawIndex, int32](table, lumpTexDataTable.String())
	if err != nil {
		return err
	}
	for n := range textures {
		id := textures[n].nameID
		if id < 0 || id >= len(offsets) {
			return formatErrorf(lumpTextures.String(), "texdata %d names string %d of %d", n, id, len(offsets))
		}
		ofs := offsets[id]
		if ofs < 0 || int(ofs) >= len(strs) {
			return formatErrorf(lumpTexDataTable.String(), "string %d at %d outside %d bytes", id, ofs, len(strs))
		}
		textures[n].Name = cString(strs[ofs:])
	}
	return nil
}
