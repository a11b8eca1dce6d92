// Package scene holds the imported object graph: one node per entity,
// linked by parentname and target keys.
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
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/lightmap"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
	"github.com/ThomasHabets/bspimport/pkg/texture"
)

const (
	KeyParent = "parentname"
	KeyTarget = "target"
)

// WarningKind classifies problems that don't stop an import.
type WarningKind int

const (
	DegradedAsset WarningKind = iota
	HierarchyWarning
)

func (k WarningKind) String() string {
	switch k {
	case DegradedAsset:
		return "DegradedAsset"
	case HierarchyWarning:
		return "HierarchyWarning"
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// Warning is a non-fatal import problem.
type Warning struct {
	Kind    WarningKind
	Entity  int // -1 if not about an entity.
	Message string
}

func (w Warning) String() string {
	if w.Entity < 0 {
		return fmt.Sprintf("%v: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%v: entity %d: %s", w.Kind, w.Entity, w.Message)
}

// Node is one object of the scene. The root has no entity.
type Node struct {
	ID       uuid.UUID
	Name     string
	Entity   *bsp.Entity
	Parent   *Node
	Children []*Node

	// Local transform, in the Y-up output space.
	Position mgl32.Vec3
	Rotation mgl32.Quat

	Meshes []*mesh.Mesh
}

// Matrix returns the local transform.
func (n *Node) Matrix() mgl32.Mat4 {
	p := n.Position
	return mgl32.Translate3D(p.X(), p.Y(), p.Z()).Mul4(n.Rotation.Normalize().Mat4())
}

// WorldMatrix returns the transform from node to scene space.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.Matrix()
	for p := n.Parent; p != nil; p = p.Parent {
		m = p.Matrix().Mul4(m)
	}
	return m
}

// Walk calls fn for n and all its descendants, parents first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) isAncestor(of *Node) bool {
	for p := of; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

func (n *Node) detach() {
	if n.Parent == nil {
		return
	}
	kids := n.Parent.Children
	for i, c := range kids {
		if c == n {
			n.Parent.Children = append(kids[:i:i], kids[i+1:]...)
			break
		}
	}
	n.Parent = nil
}

func (n *Node) attach(parent *Node) {
	n.detach()
	n.Parent = parent
	parent.Children = append(parent.Children, n)
}

// reparent attaches n to parent without moving it in the scene: the local
// transform is rewritten relative to the new parent.
func (n *Node) reparent(parent *Node) {
	local := parent.WorldMatrix().Inv().Mul4(n.WorldMatrix())
	n.Position = local.Col(3).Vec3()
	n.Rotation = mgl32.Mat4ToQuat(local).Normalize()
	n.attach(parent)
}

// Hook is called after the hierarchy is complete with an entity node and
// the nodes named by its target. targets is empty, not nil, when nothing
// matches.
type Hook func(n *Node, targets []*Node)

// Scene is the result of an import.
type Scene struct {
	Name      string
	Root      *Node
	Nodes     []*Node // One per entity, in entity lump order.
	Materials []*texture.Asset
	Atlas     *lightmap.Atlas
	Probes    []lightmap.Probe // Positions in scene space.
	Warnings  []Warning

	log    log.FieldLogger
	byName map[string][]*Node
}

// New creates a scene with only a root node.
func New(name string, logger log.FieldLogger) *Scene {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Scene{
		Name: name,
		Root: &Node{
			ID:       nodeID(name, -1),
			Name:     name,
			Rotation: mgl32.QuatIdent(),
		},
		log: logger,
	}
}

// nodeID is stable for the same map and entity index.
func nodeID(mapName string, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("bsp:%s#%d", mapName, index)))
}

// AddNode creates the node of an entity, attached to the root.
func (s *Scene) AddNode(e *bsp.Entity) *Node {
	name := e.Name()
	if name == "" {
		name = fmt.Sprintf("%s_%d", e.ClassName(), e.Index)
	}
	n := &Node{
		ID:       nodeID(s.Name, e.Index),
		Name:     name,
		Entity:   e,
		Rotation: mgl32.QuatIdent(),
	}
	n.attach(s.Root)
	s.Nodes = append(s.Nodes, n)
	return n
}

// Warn records and logs a warning.
func (s *Scene) Warn(kind WarningKind, entity int, fields log.Fields, format string, args ...interface{}) {
	w := Warning{
		Kind:    kind,
		Entity:  entity,
		Message: fmt.Sprintf(format, args...),
	}
	s.Warnings = append(s.Warnings, w)
	l := s.log.WithField("kind", kind.String())
	if entity >= 0 {
		l = l.WithField("entity", entity)
	}
	l.WithFields(fields).Warn(w.Message)
}

// WarningsOf returns the warnings of one kind.
func (s *Scene) WarningsOf(kind WarningKind) []Warning {
	var ret []Warning
	for _, w := range s.Warnings {
		if w.Kind == kind {
			ret = append(ret, w)
		}
	}
	return ret
}

// Index builds the name lookup. Must run after all nodes are added and
// before Attach and FireTargets.
func (s *Scene) Index() {
	s.byName = make(map[string][]*Node)
	for _, n := range s.Nodes {
		name := n.Entity.Name()
		s.byName[name] = append(s.byName[name], n)
	}
}

// Lookup returns the nodes whose entity has the given name, in entity
// order. The empty name never matches.
func (s *Scene) Lookup(name string) []*Node {
	if name == "" {
		return nil
	}
	return s.byName[name]
}

// Attach moves every node with a parentname under the first entity of
// that name, keeping its position and rotation in the scene. Missing,
// ambiguous and cyclic parents are warned about; missing and cyclic ones
// leave the node on the root.
func (s *Scene) Attach() {
	for _, n := range s.Nodes {
		pname := n.Entity.Get(KeyParent)
		if pname == "" {
			continue
		}
		fields := log.Fields{"parent": pname, "name": n.Name}
		parents := s.Lookup(pname)
		switch {
		case len(parents) == 0:
			s.Warn(HierarchyWarning, n.Entity.Index, fields, "parent %q not found, attaching to root", pname)
			continue
		case len(parents) > 1:
			s.Warn(HierarchyWarning, n.Entity.Index, fields, "parent %q is ambiguous (%d entities), using entity %d", pname, len(parents), parents[0].Entity.Index)
		}
		p := parents[0]
		if n.isAncestor(p) {
			s.Warn(HierarchyWarning, n.Entity.Index, fields, "parent %q would make a cycle, attaching to root", pname)
			continue
		}
		n.reparent(p)
	}
}

// FireTargets calls hook once per entity with a target, in entity order.
// With all set it's called for every entity.
func (s *Scene) FireTargets(hook Hook, all bool) {
	if hook == nil {
		return
	}
	for _, n := range s.Nodes {
		target := n.Entity.Get(KeyTarget)
		if target == "" && !all {
			continue
		}
		targets := append([]*Node{}, s.Lookup(target)...)
		hook(n, targets)
	}
}

// Bounds returns the box around all meshes in scene space. ok is false
// if the scene has no vertices.
func (s *Scene) Bounds() (lo, hi mgl32.Vec3, ok bool) {
	s.Root.Walk(func(n *Node) {
		w := n.WorldMatrix()
		for _, m := range n.Meshes {
			if m.VertexCount() == 0 {
				continue
			}
			mlo, mhi := m.Bounds()
			for c := 0; c < 8; c++ {
				corner := mlo
				for i := 0; i < 3; i++ {
					if c&(1<<i) != 0 {
						corner[i] = mhi[i]
					}
				}
				p := mgl32.TransformCoordinate(corner, w)
				if !ok {
					lo, hi, ok = p, p, true
					continue
				}
				for i := 0; i < 3; i++ {
					lo[i] = min(lo[i], p[i])
					hi[i] = max(hi[i], p[i])
				}
			}
		}
	})
	return lo, hi, ok
}
