package mesh

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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Policy decides how face meshes are merged.
type Policy int

const (
	// None keeps one mesh per face, grouped by material.
	None Policy = iota
	// PerMaterial makes one mesh per material per entity.
	PerMaterial
	// PerEntity makes one mesh per entity, with a sub mesh per material.
	PerEntity
)

var policyNames = map[Policy]string{
	None:        "none",
	PerMaterial: "per_material",
	PerEntity:   "per_entity",
}

func (p Policy) String() string {
	if s, found := policyNames[p]; found {
		return s
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy parses "none", "per_material" or "per_entity". Case and
// dashes are ignored.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for p, name := range policyNames {
		if norm == name || norm == strings.ReplaceAll(name, "_", "") {
			return p, nil
		}
	}
	return None, errors.Errorf("unknown mesh combine policy %q", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Set and Type make Policy a command line flag value.
func (p *Policy) Set(s string) error {
	return p.UnmarshalText([]byte(s))
}

func (p *Policy) Type() string {
	return "policy"
}

// Group is the face meshes of one material, in face order.
type Group struct {
	Material string
	Faces    []*Mesh
}

// Combine merges the face meshes of one entity. Groups are kept in the
// order given. Empty meshes are dropped, the rest are scaled and get fresh
// normals.
func Combine(name string, groups []Group, policy Policy, scale float32) []*Mesh {
	var ret []*Mesh
	emit := func(m *Mesh) {
		if m.Empty() {
			return
		}
		m.Scale(scale)
		m.RecalculateNormals()
		ret = append(ret, m)
	}
	switch policy {
	case None:
		for _, g := range groups {
			n := 0
			for _, f := range g.Faces {
				if f.Empty() {
					continue
				}
				m := &Mesh{Name: fmt.Sprintf("%s_%s_face%d", name, g.Material, n), Group: g.Material}
				m.Append(f)
				emit(m)
				n++
			}
		}
	case PerMaterial:
		for _, g := range groups {
			m := &Mesh{Name: name + "_mesh_" + g.Material, Group: g.Material}
			for _, f := range g.Faces {
				if !f.Empty() {
					m.Append(f)
				}
			}
			emit(m)
		}
	case PerEntity:
		m := &Mesh{Name: name + "_mesh"}
		for _, g := range groups {
			for _, f := range g.Faces {
				if !f.Empty() {
					m.Append(f)
				}
			}
		}
		emit(m)
	}
	return ret
}
