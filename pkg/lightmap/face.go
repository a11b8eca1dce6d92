package lightmap

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
	"image/color"

	"github.com/pkg/errors"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
)

// Probe is an ambient light sample, at a face's first vertex.
type Probe struct {
	Face     int
	Position bsp.Vertex // Map coordinates.
	Color    color.RGBA
}

// Placement is the result of packing one face. OK is false if the face has
// no lightmap. Degraded is set if it should have had one but the data was bad.
type Placement struct {
	Region
	Extents  bsp.Extents
	OK       bool
	Degraded string
}

// UV returns the atlas coordinates of texture space position (s,t),
// sampling luxel centres.
func (p Placement) UV(s, t float32, atlasSize int) (float32, float32) {
	u := ((s-float32(p.Extents.MinS)+bsp.LightmapScale/2)/bsp.LightmapScale + float32(p.X)) / float32(atlasSize)
	v := ((t-float32(p.Extents.MinT)+bsp.LightmapScale/2)/bsp.LightmapScale + float32(p.Y)) / float32(atlasSize)
	return u, v
}

// PackFace packs the lightmap of face n of a map. Faces without a lightmap,
// texture mapping or edges get a Placement with OK false, as do faces of
// dialects without planar lightmaps (Quake 3 pages, Source RGBE).
func (a *Atlas) PackFace(b *bsp.BSP, n int) (Placement, error) {
	if n < 0 || n >= len(b.Faces) {
		return Placement{}, errors.Errorf("face %d out of range [0,%d)", n, len(b.Faces))
	}
	f := b.Faces[n]
	if !b.Dialect.PlanarLightmaps() || f.Lightmap < 0 || f.TexInfo < 0 || f.NumEdges <= 0 {
		return Placement{}, nil
	}
	ext, ok := b.LightmapExtents(f)
	if !ok {
		return Placement{}, nil
	}
	samples, ok := b.LightmapSamples(f, ext.Width, ext.Height)
	if !ok {
		return Placement{Extents: ext, Degraded: "lighting lump too short"}, nil
	}
	r, err := a.Pack(samples, ext.Width, ext.Height, b.Dialect.BytesPerLuxel())
	if err != nil {
		var ce *CapacityError
		if errors.As(err, &ce) {
			ce.Face = n
		}
		return Placement{}, err
	}
	if ext.Width > probeThreshold && ext.Height > probeThreshold {
		a.probes = append(a.probes, Probe{
			Face:     n,
			Position: b.FaceVertices(f)[0],
			Color:    a.Center(r),
		})
	}
	return Placement{Region: r, Extents: ext, OK: true}, nil
}
