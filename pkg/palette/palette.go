// Package palette loads the 256 colour palettes used by indexed textures.
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
package palette

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	// Size is the number of entries.
	Size = 256

	// The palette image is a grid of Grid×Grid swatches.
	Grid = 16
)

// Palette maps 8 bit texture indices to colours.
type Palette struct {
	colors  color.Palette
	missing []int
}

// Missing returns the entries whose swatch was fully transparent in the
// palette image. They are opaque black in the palette.
func (p *Palette) Missing() []int {
	return p.missing
}

// Colors returns the palette for use with image.Paletted.
func (p *Palette) Colors() color.Palette {
	return p.colors
}

// RGBA returns entry i.
func (p *Palette) RGBA(i uint8) color.RGBA {
	return p.colors[i].(color.RGBA)
}

// Load reads a palette image from disk.
func Load(fn string) (*Palette, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "opening palette")
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "palette %q", fn)
	}
	return p, nil
}

// Decode reads a palette image: Grid×Grid square swatches, where entry
// i*Grid+j is the swatch in row i from the top and column j. Each swatch
// is sampled at its centre. A transparent centre is a missing swatch.
func Decode(r io.Reader) (*Palette, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding palette image")
	}
	b := img.Bounds()
	if b.Dx() < Grid || b.Dy() < Grid || b.Dx()%Grid != 0 || b.Dy()%Grid != 0 {
		return nil, errors.Errorf("palette image is %dx%d, want a multiple of %d", b.Dx(), b.Dy(), Grid)
	}
	sw, sh := b.Dx()/Grid, b.Dy()/Grid
	p := &Palette{colors: make(color.Palette, Size)}
	for i := 0; i < Grid; i++ {
		for j := 0; j < Grid; j++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+j*sw+sw/2, b.Min.Y+i*sh+sh/2)).(color.RGBA)
			if c.A == 0 {
				p.missing = append(p.missing, i*Grid+j)
				c = color.RGBA{A: 255}
			}
			p.colors[i*Grid+j] = c
		}
	}
	return p, nil
}

// FromRGB makes a palette from 768 bytes of RGB triplets.
func FromRGB(rgb []byte) (*Palette, error) {
	if len(rgb) != Size*3 {
		return nil, errors.Errorf("RGB palette is %d bytes, want %d", len(rgb), Size*3)
	}
	p := &Palette{colors: make(color.Palette, Size)}
	for n := range p.colors {
		p.colors[n] = color.RGBA{R: rgb[n*3], G: rgb[n*3+1], B: rgb[n*3+2], A: 255}
	}
	return p, nil
}

// Gray returns a grey ramp, used when no palette is available.
func Gray() *Palette {
	p := &Palette{colors: make(color.Palette, Size)}
	for n := range p.colors {
		p.colors[n] = color.RGBA{R: uint8(n), G: uint8(n), B: uint8(n), A: 255}
	}
	return p
}
