// Package texture turns BSP texture references into images.
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
package texture

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/palette"
)

const (
	// Texture size used for UVs when nothing better is known.
	DefaultSize = 128
)

// Asset is a resolved texture.
type Asset struct {
	Name   string // Sanitized.
	Image  image.Image
	Width  int // Dimensions used to normalize texture coordinates.
	Height int

	// Where the pixels came from: "embedded", a file name, or "" for placeholders.
	Origin string

	// Placeholder is set when no pixels could be found. Degraded says why.
	Placeholder bool
	Degraded    string
}

// Resolver resolves textures of one map. Not safe for concurrent use.
type Resolver struct {
	bsp     *bsp.BSP
	palette *palette.Palette
	source  Source
	log     log.FieldLogger

	cache map[string]*Asset
	order []*Asset
}

// NewResolver creates a resolver. pal is used for embedded textures that
// don't carry their own palette. src may be nil.
func NewResolver(b *bsp.BSP, pal *palette.Palette, src Source, logger log.FieldLogger) *Resolver {
	if pal == nil {
		pal = palette.Gray()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Resolver{
		bsp:     b,
		palette: pal,
		source:  src,
		log:     logger,
		cache:   make(map[string]*Asset),
	}
}

// Name returns the sanitized name of a texture.
func (r *Resolver) Name(textureIndex int) string {
	if textureIndex < 0 || textureIndex >= len(r.bsp.Textures) {
		return ""
	}
	return Sanitize(r.bsp.Textures[textureIndex].Name, r.bsp.Dialect)
}

// Resolve returns the texture with the given index. Textures are cached by
// sanitized name, so the first index with a name decides the pixels.
func (r *Resolver) Resolve(textureIndex int) (*Asset, error) {
	if textureIndex < 0 || textureIndex >= len(r.bsp.Textures) {
		return nil, errors.Errorf("texture index %d out of range [0,%d)", textureIndex, len(r.bsp.Textures))
	}
	t := &r.bsp.Textures[textureIndex]
	name := Sanitize(t.Name, r.bsp.Dialect)
	if a, found := r.cache[name]; found {
		return a, nil
	}
	a := r.load(name, t)
	if a.Placeholder {
		r.log.WithFields(log.Fields{
			"texture": name,
			"reason":  a.Degraded,
		}).Warn("Using placeholder texture")
	}
	r.cache[name] = a
	r.order = append(r.order, a)
	return a, nil
}

// Assets returns all resolved textures in the order they were first resolved.
func (r *Resolver) Assets() []*Asset {
	return r.order
}

func (r *Resolver) load(name string, t *bsp.Texture) *Asset {
	a := &Asset{
		Name:   name,
		Width:  t.Width,
		Height: t.Height,
	}
	switch {
	case r.bsp.Dialect.EmbedsTextures() && !t.External && len(t.Pixels) > 0 && len(t.Pixels) == t.Width*t.Height:
		a.Image = r.embedded(t)
		a.Origin = "embedded"
	case r.source != nil:
		img, fn, err := r.source.Find(name)
		switch {
		case err == nil:
			a.Image = img
			a.Origin = fn
		case errors.Is(err, ErrNotFound):
			a.Degraded = "not embedded and not found"
		default:
			a.Degraded = err.Error()
		}
	default:
		a.Degraded = "not embedded"
	}
	if a.Image == nil {
		a.Image = Placeholder()
		a.Placeholder = true
	}
	if a.Width <= 0 || a.Height <= 0 {
		a.Width, a.Height = DefaultSize, DefaultSize
		if !a.Placeholder {
			b := a.Image.Bounds()
			a.Width, a.Height = b.Dx(), b.Dy()
		}
	}
	return a
}

// embedded decodes the full size mip level of a texture stored in the map.
func (r *Resolver) embedded(t *bsp.Texture) image.Image {
	pal := r.palette
	if t.Palette != nil {
		if p, err := palette.FromRGB(t.Palette); err == nil {
			pal = p
		}
	}
	img := image.NewPaletted(image.Rect(0, 0, t.Width, t.Height), pal.Colors())
	copy(img.Pix, t.Pixels)
	return img
}

// Placeholder returns the 1×1 image used for textures that can't be found.
func Placeholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}
