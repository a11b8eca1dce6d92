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
	"strings"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
)

const (
	toolsPrefix = "tools/"

	// Quake 2, Quake 3 and Source surface flags.
	SurfNoDraw = 0x80
	SurfHint   = 0x100
	SurfSkip   = 0x200
)

// toolNames are textures compilers use for brushes that are never drawn.
var toolNames = map[bsp.Dialect]map[string]bool{
	bsp.Quake:     {"trigger": true, "clip": true, "hint": true, "skip": true},
	bsp.QuakeBSP2: {"trigger": true, "clip": true, "hint": true, "skip": true},
	bsp.HalfLife:  {"aaatrigger": true, "clip": true, "origin": true, "null": true, "hint": true, "skip": true},
	bsp.Quake2:    {"e1u1/trigger": true, "e1u1/clip": true},
	bsp.Quake3: {
		"common/areaportal": true,
		"common/caulk":      true,
		"common/clip":       true,
		"common/hint":       true,
		"common/nodraw":     true,
		"common/origin":     true,
		"common/skip":       true,
		"common/trigger":    true,
	},
}

// Sanitize normalizes a texture name for use as a key: lower case, forward
// slashes, no empty path segments at the ends. Quake 3 names lose their
// "textures/" directory. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string, d bsp.Dialect) string {
	for {
		next := sanitizeStep(name, d)
		if next == name {
			return name
		}
		name = next
	}
}

func sanitizeStep(s string, d bsp.Dialect) string {
	s = strings.Trim(s, "\x00 \t\r\n")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, `\`, "/")
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	s = strings.Trim(s, "/")
	if d == bsp.Quake3 {
		s = strings.TrimPrefix(s, "textures/")
	}
	return s
}

// IsTool returns true for textures that mark surfaces with no visual
// representation. Faces using them are left out of the geometry.
func IsTool(name string, flags uint32, d bsp.Dialect) bool {
	name = Sanitize(name, d)
	if strings.HasPrefix(name, toolsPrefix) {
		return true
	}
	if toolNames[d][name] {
		return true
	}
	switch d {
	case bsp.Quake2, bsp.Quake3, bsp.Source:
		return flags&(SurfNoDraw|SurfHint|SurfSkip) != 0
	}
	return false
}
