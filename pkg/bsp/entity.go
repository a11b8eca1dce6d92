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

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Entity is one { "key" "value" ... } block of the entity lump.
type Entity struct {
	Index int               // Position in the entity lump.
	Keys  []string          // Keys in file order.
	Data  map[string]string // Later duplicates win.
}

func (e *Entity) Get(key string) string {
	return e.Data[key]
}

func (e *Entity) Has(key string) bool {
	_, found := e.Data[key]
	return found
}

func (e *Entity) ClassName() string {
	return e.Data["classname"]
}

// Name returns the targetname, or failing that the name. Never missing,
// but may be empty.
func (e *Entity) Name() string {
	if n := e.Data["targetname"]; n != "" {
		return n
	}
	return e.Data["name"]
}

// Origin returns the "origin" key, zero if missing or malformed.
func (e *Entity) Origin() Vertex {
	v, err := parseVertex(e.Data["origin"])
	if err != nil {
		return Vertex{}
	}
	return v
}

// Angles returns pitch, yaw and roll in degrees from "angles", or the yaw
// only "angle".
func (e *Entity) Angles() mgl32.Vec3 {
	if s, found := e.Data["angles"]; found {
		if v, err := parseVertex(s); err == nil {
			return mgl32.Vec3{v.X, v.Y, v.Z}
		}
	}
	if s, found := e.Data["angle"]; found {
		if a, err := strconv.ParseFloat(strings.TrimSpace(s), 32); err == nil {
			return mgl32.Vec3{0, float32(a), 0}
		}
	}
	return mgl32.Vec3{}
}

// ModelNumber returns the BSP model of the entity. worldspawn is model 0,
// brush entities say "*N". -1 if the entity has no BSP geometry.
func (e *Entity) ModelNumber() int {
	if e.ClassName() == "worldspawn" {
		return 0
	}
	m := e.Data["model"]
	if !strings.HasPrefix(m, "*") {
		return -1
	}
	n, err := strconv.Atoi(m[1:])
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func parseVertex(s string) (Vertex, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Vertex{}, errors.Errorf("vertex %q doesn't have 3 parts", s)
	}
	var f [3]float32
	for n := range parts {
		t, err := strconv.ParseFloat(parts[n], 32)
		if err != nil {
			return Vertex{}, errors.Wrapf(err, "parsing vertex %q", s)
		}
		f[n] = float32(t)
	}
	return Vertex{f[0], f[1], f[2]}, nil
}

// entityTokens splits the entity lump into braces and quoted strings.
type entityTokens struct {
	in  string
	pos int
}

// next returns the next token. Quoted strings are returned without quotes
// and with quoted set.
func (t *entityTokens) next() (tok string, quoted bool, ok bool, err error) {
	for t.pos < len(t.in) {
		c := t.in[t.pos]
		if c == 0 || c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			t.pos++
			continue
		}
		if strings.HasPrefix(t.in[t.pos:], "//") {
			if nl := strings.IndexByte(t.in[t.pos:], '\n'); nl >= 0 {
				t.pos += nl
			} else {
				t.pos = len(t.in)
			}
			continue
		}
		break
	}
	if t.pos >= len(t.in) {
		return "", false, false, nil
	}
	switch c := t.in[t.pos]; c {
	case '{', '}':
		t.pos++
		return string(c), false, true, nil
	case '"':
		end := strings.IndexByte(t.in[t.pos+1:], '"')
		if end < 0 {
			return "", false, false, errors.Errorf("unterminated string at offset %d", t.pos)
		}
		tok = t.in[t.pos+1 : t.pos+1+end]
		t.pos += end + 2
		return tok, true, true, nil
	default:
		return "", false, false, errors.Errorf("unexpected %q at offset %d", c, t.pos)
	}
}

func parseEntities(data []byte) ([]Entity, error) {
	toks := &entityTokens{in: string(data)}
	var ents []Entity
	for {
		tok, _, ok, err := toks.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return ents, nil
		}
		if tok != "{" {
			return nil, errors.Errorf("parse error, expected '{', got %q", tok)
		}
		ent := Entity{
			Index: len(ents),
			Data:  make(map[string]string),
		}
		for {
			key, quoted, ok, err := toks.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.Errorf("unexpected end of entity %d", ent.Index)
			}
			if !quoted && key == "}" {
				break
			}
			if !quoted {
				return nil, errors.Errorf("entity %d: expected key, got %q", ent.Index, key)
			}
			val, quoted, ok, err := toks.next()
			if err != nil {
				return nil, err
			}
			if !ok || !quoted {
				return nil, errors.Errorf("entity %d: key %q has no value", ent.Index, key)
			}
			if _, found := ent.Data[key]; !found {
				ent.Keys = append(ent.Keys, key)
			}
			ent.Data[key] = val
		}
		ents = append(ents, ent)
	}
}
