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

// The file contains the per-dialect lump tables.

import (
	"fmt"
)

// Dialect is one of the BSP format variants.
type Dialect int

const (
	Quake     Dialect = iota // Version 29.
	QuakeBSP2                // "BSP2" and "2PSB", Quake with 32bit indices.
	HalfLife                 // Version 30. RGB lighting, textures may live in WADs.
	Quake2                   // "IBSP" version 38.
	Quake3                   // "IBSP" version 46.
	Source                   // "VBSP" versions 19 to 21. Displacements, external materials.
)

const (
	// Header versions.
	VersionQuake    = 29
	VersionHalfLife = 30
	VersionQuake2   = 38
	VersionQuake3   = 46

	VersionSourceMin = 19
	VersionSourceMax = 21
)

var (
	magicIBSP = [4]byte{'I', 'B', 'S', 'P'}
	magicBSP2 = [4]byte{'B', 'S', 'P', '2'}
	magic2PSB = [4]byte{'2', 'P', 'S', 'B'}
	magicVBSP = [4]byte{'V', 'B', 'S', 'P'}
)

func (d Dialect) String() string {
	switch d {
	case Quake:
		return "quake"
	case QuakeBSP2:
		return "quake-bsp2"
	case HalfLife:
		return "halflife"
	case Quake2:
		return "quake2"
	case Quake3:
		return "quake3"
	case Source:
		return "source"
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// BytesPerLuxel returns the size of one lightmap sample.
func (d Dialect) BytesPerLuxel() int {
	switch d {
	case Quake, QuakeBSP2:
		return 1
	case Source:
		return 4 // RGB and a shared exponent.
	}
	return 3
}

// PlanarLightmaps returns true if face lightmaps are sized from the
// texture mapping at LightmapScale units per luxel, and stored as 8 bit
// grey or RGB.
func (d Dialect) PlanarLightmaps() bool {
	switch d {
	case Quake, QuakeBSP2, HalfLife, Quake2:
		return true
	}
	return false
}

// EmbedsTextures returns true if the dialect can carry texture pixels in the file.
func (d Dialect) EmbedsTextures() bool {
	switch d {
	case Quake, QuakeBSP2, HalfLife:
		return true
	}
	return false
}

// lumpID names the lumps this package reads. The directory slot they live in
// is dialect specific.
type lumpID int

const (
	lumpEntities lumpID = iota
	lumpPlanes
	lumpTextures
	lumpVertices
	lumpTexInfo
	lumpFaces
	lumpLighting
	lumpEdges
	lumpSurfEdges
	lumpModels
	lumpMeshVerts
	lumpDispInfo
	lumpDispVerts
	lumpTexDataStrings
	lumpTexDataTable
	numLumpIDs
)

var lumpNames = [numLumpIDs]string{
	lumpEntities:  "entities",
	lumpPlanes:    "planes",
	lumpTextures:  "textures",
	lumpVertices:  "vertices",
	lumpTexInfo:   "texinfo",
	lumpFaces:     "faces",
	lumpLighting:  "lighting",
	lumpEdges:     "edges",
	lumpSurfEdges: "surfedges",
	lumpModels:    "models",
	lumpMeshVerts: "meshverts",

	lumpDispInfo:       "dispinfo",
	lumpDispVerts:      "dispverts",
	lumpTexDataStrings: "texdata_string_data",
	lumpTexDataTable:   "texdata_string_table",
}

func (l lumpID) String() string {
	return lumpNames[l]
}

// A decoder turns the bytes of one lump into records.
type decoder[T any] func(data []byte, lump string) ([]T, error)

// layout describes one dialect. It is only data: the reader in raw.go
// consumes any layout the same way.
type layout struct {
	dialect   Dialect
	headerLen int // Bytes before the lump directory.
	numLumps  int
	wideDir   bool // Directory entries carry a version and a FourCC.
	slots     [numLumpIDs]int // Directory index per lump, -1 if absent.

	planes    decoder[Plane]
	vertices  decoder[Vertex]
	drawVerts decoder[DrawVertex]
	edges     decoder[Edge]
	surfEdges decoder[int32]
	meshVerts decoder[int32]
	faces     decoder[Face]
	texInfo   decoder[TexInfo]
	models    decoder[Model]
	textures  decoder[Texture] // nil if textures are named by texinfo.

	dispInfo  decoder[Displacement]
	dispVerts decoder[DispVert]
}

func slots(m map[lumpID]int) [numLumpIDs]int {
	var ret [numLumpIDs]int
	for n := range ret {
		ret[n] = -1
	}
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

// quakeSlots is the directory of Quake, BSP2 and Half-Life. They share it.
var quakeSlots = slots(map[lumpID]int{
	lumpEntities:  0,
	lumpPlanes:    1,
	lumpTextures:  2,
	lumpVertices:  3,
	lumpTexInfo:   6,
	lumpFaces:     7,
	lumpLighting:  8,
	lumpEdges:     12,
	lumpSurfEdges: 13,
	lumpModels:    14,
})

var layouts = map[Dialect]*layout{
	Quake: {
		dialect:   Quake,
		headerLen: 4,
		numLumps:  15,
		slots:     quakeSlots,
		planes:    decode[rawPlane, Plane],
		vertices:  decode[Vertex, Vertex],
		edges:     decode[rawEdgeV0, Edge],
		surfEdges: decode[rawIndex, int32],
		faces:     decode[rawFaceV0, Face],
		texInfo:   decode[rawTexInfo, TexInfo],
		models:    decode[rawModel, Model],
		textures:  decodeMipTex(false),
	},
	QuakeBSP2: {
		dialect:   QuakeBSP2,
		headerLen: 4,
		numLumps:  15,
		slots:     quakeSlots,
		planes:    decode[rawPlane, Plane],
		vertices:  decode[Vertex, Vertex],
		edges:     decode[rawEdgeV1, Edge],
		surfEdges: decode[rawIndex, int32],
		faces:     decode[rawFaceV1, Face],
		texInfo:   decode[rawTexInfo, TexInfo],
		models:    decode[rawModel, Model],
		textures:  decodeMipTex(false),
	},
	HalfLife: {
		dialect:   HalfLife,
		headerLen: 4,
		numLumps:  15,
		slots:     quakeSlots,
		planes:    decode[rawPlane, Plane],
		vertices:  decode[Vertex, Vertex],
		edges:     decode[rawEdgeV0, Edge],
		surfEdges: decode[rawIndex, int32],
		faces:     decode[rawFaceV0, Face],
		texInfo:   decode[rawTexInfo, TexInfo],
		models:    decode[rawModel, Model],
		textures:  decodeMipTex(true),
	},
	Quake2: {
		dialect:   Quake2,
		headerLen: 8,
		numLumps:  19,
		slots: slots(map[lumpID]int{
			lumpEntities:  0,
			lumpPlanes:    1,
			lumpVertices:  2,
			lumpTexInfo:   5,
			lumpFaces:     6,
			lumpLighting:  7,
			lumpEdges:     11,
			lumpSurfEdges: 12,
			lumpModels:    13,
		}),
		planes:    decode[rawPlane, Plane],
		vertices:  decode[Vertex, Vertex],
		edges:     decode[rawEdgeV0, Edge],
		surfEdges: decode[rawIndex, int32],
		faces:     decode[rawFaceV0, Face],
		texInfo:   decode[rawTexInfoQ2, TexInfo],
		models:    decode[rawModelQ2, Model],
	},
	Quake3: {
		dialect:   Quake3,
		headerLen: 8,
		numLumps:  17,
		slots: slots(map[lumpID]int{
			lumpEntities:  0,
			lumpTextures:  1,
			lumpPlanes:    2,
			lumpModels:    7,
			lumpVertices:  10,
			lumpMeshVerts: 11,
			lumpFaces:     13,
			lumpLighting:  14,
		}),
		planes:    decode[rawPlane, Plane],
		drawVerts: decode[rawDrawVertex, DrawVertex],
		meshVerts: decode[rawIndex, int32],
		faces:     decode[rawFaceQ3, Face],
		models:    decode[rawModelQ3, Model],
		textures:  decode[rawShader, Texture],
	},
	Source: {
		dialect:   Source,
		headerLen: 8,
		numLumps:  64,
		wideDir:   true,
		slots: slots(map[lumpID]int{
			lumpEntities:       0,
			lumpPlanes:         1,
			lumpTextures:       2,
			lumpVertices:       3,
			lumpTexInfo:        6,
			lumpFaces:          7,
			lumpLighting:       8,
			lumpEdges:          12,
			lumpSurfEdges:      13,
			lumpModels:         14,
			lumpDispInfo:       26,
			lumpDispVerts:      33,
			lumpTexDataStrings: 43,
			lumpTexDataTable:   44,
		}),
		planes:    decode[rawPlane, Plane],
		vertices:  decode[Vertex, Vertex],
		edges:     decode[rawEdgeV0, Edge],
		surfEdges: decode[rawIndex, int32],
		faces:     decode[rawFaceSource, Face],
		texInfo:   decode[rawTexInfoSource, TexInfo],
		models:    decode[rawModelQ2, Model],
		textures:  decode[rawTexData, Texture],
		dispInfo:  decode[rawDispInfo, Displacement],
		dispVerts: decode[rawDispVert, DispVert],
	},
}
