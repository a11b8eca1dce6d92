// Package lightmap packs face lightmaps into one atlas image.
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
// The atlas is a grid of fixed size cells, filled left to right, top to
// bottom. Each cell has a one pixel border copied from the edge of the
// lightmap, so that bilinear filtering doesn't bleed neighbours in.
package lightmap

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	DefaultSize     = 2048
	DefaultCellSize = 18

	// Lightmaps at least this big in both directions get a light probe.
	probeThreshold = 5

	border = 1
)

// ErrCapacityExceeded is matched by errors.Is for all *CapacityError.
var ErrCapacityExceeded = errors.New("lightmap atlas capacity exceeded")

// CapacityError is returned when a lightmap doesn't fit in a cell, or when
// the atlas has no free cells left.
type CapacityError struct {
	Face          int // -1 if not known.
	Width, Height int
	CellSize      int
	AtlasSize     int
	Used          int
}

func (e *CapacityError) Error() string {
	if e.Width > e.CellSize || e.Height > e.CellSize {
		return fmt.Sprintf("%v: face %d lightmap %dx%d larger than %dx%d cell", ErrCapacityExceeded, e.Face, e.Width, e.Height, e.CellSize, e.CellSize)
	}
	return fmt.Sprintf("%v: all %d cells of %dx%d atlas used, face %d doesn't fit", ErrCapacityExceeded, e.Used, e.AtlasSize, e.AtlasSize, e.Face)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// Region is where a lightmap ended up, border excluded.
type Region struct {
	X, Y          int
	Width, Height int
}

// Atlas is the shared lightmap image of one import. Not safe for
// concurrent use: cell order decides placement.
type Atlas struct {
	Size     int
	CellSize int
	Image    *image.RGBA

	cursor int
	probes []Probe
}

// NewAtlas creates an all black atlas.
func NewAtlas(size, cellSize int) *Atlas {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	return &Atlas{
		Size:     size,
		CellSize: cellSize,
		Image:    img,
	}
}

func (a *Atlas) step() int {
	return a.CellSize + 2*border
}

// Capacity returns the number of cells.
func (a *Atlas) Capacity() int {
	perRow := a.Size / a.step()
	return perRow * perRow
}

// Used returns the number of cells used.
func (a *Atlas) Used() int {
	return a.cursor
}

// Probes returns the light probes collected so far.
func (a *Atlas) Probes() []Probe {
	return a.probes
}

// Pack writes w×h luxels of bytesPerLuxel (1 grey, 3 RGB) into the next cell.
// Samples are doubled to the overbright range and clamped.
func (a *Atlas) Pack(samples []byte, w, h, bytesPerLuxel int) (Region, error) {
	if w > a.CellSize || h > a.CellSize || a.cursor >= a.Capacity() {
		return Region{}, &CapacityError{
			Face:      -1,
			Width:     w,
			Height:    h,
			CellSize:  a.CellSize,
			AtlasSize: a.Size,
			Used:      a.cursor,
		}
	}
	if len(samples) < w*h*bytesPerLuxel {
		return Region{}, errors.Errorf("got %d lightmap bytes, want %dx%dx%d", len(samples), w, h, bytesPerLuxel)
	}
	perRow := a.Size / a.step()
	x0 := (a.cursor % perRow) * a.step()
	y0 := (a.cursor / perRow) * a.step()
	a.cursor++

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * bytesPerLuxel
			var c color.RGBA
			if bytesPerLuxel >= 3 {
				c = color.RGBA{R: overbright(samples[i]), G: overbright(samples[i+1]), B: overbright(samples[i+2]), A: 255}
			} else {
				v := overbright(samples[i])
				c = color.RGBA{R: v, G: v, B: v, A: 255}
			}
			a.Image.SetRGBA(x0+border+x, y0+border+y, c)
		}
	}

	// Top and bottom rows, then left and right columns including corners.
	for x := x0 + border; x < x0+border+w; x++ {
		a.Image.SetRGBA(x, y0, a.Image.RGBAAt(x, y0+border))
		a.Image.SetRGBA(x, y0+border+h, a.Image.RGBAAt(x, y0+h))
	}
	for y := y0; y < y0+h+2*border; y++ {
		a.Image.SetRGBA(x0, y, a.Image.RGBAAt(x0+border, y))
		a.Image.SetRGBA(x0+border+w, y, a.Image.RGBAAt(x0+w, y))
	}
	return Region{X: x0 + border, Y: y0 + border, Width: w, Height: h}, nil
}

// Center returns the colour in the middle of a region.
func (a *Atlas) Center(r Region) color.RGBA {
	return a.Image.RGBAAt(r.X+r.Width/2, r.Y+r.Height/2)
}

func overbright(b byte) byte {
	v := int(b) * 2
	if v > 255 {
		return 255
	}
	return byte(v)
}
