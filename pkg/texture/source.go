package texture

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
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// ErrNotFound is returned by a Source that doesn't have a texture.
var ErrNotFound = errors.New("texture not found")

// Source finds textures that are not embedded in the map.
type Source interface {
	// Find returns the image for a sanitized texture name, and where it was
	// found. Returns ErrNotFound if there is no such texture.
	Find(name string) (image.Image, string, error)
}

// Extensions in search order.
var Extensions = []string{".tga", ".png", ".jpg", ".jpeg", ".bmp"}

// DirSource looks for textures in a list of directories, with and without
// a "textures/" subdirectory.
type DirSource struct {
	Dirs []string
}

func (s DirSource) Find(name string) (image.Image, string, error) {
	if name == "" {
		return nil, "", ErrNotFound
	}
	rel := filepath.FromSlash(name)
	for _, dir := range s.Dirs {
		for _, base := range []string{filepath.Join(dir, rel), filepath.Join(dir, "textures", rel)} {
			for _, ext := range Extensions {
				fn := base + ext
				img, err := decodeFile(fn)
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				if err != nil {
					return nil, fn, err
				}
				return img, fn, nil
			}
		}
	}
	return nil, "", ErrNotFound
}

func decodeFile(fn string) (image.Image, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := decode(f, strings.ToLower(filepath.Ext(fn)))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %q", fn)
	}
	return img, nil
}

func decode(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case ".tga":
		return tga.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}
