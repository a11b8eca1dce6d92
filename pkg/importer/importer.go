// Package importer turns a BSP map into a scene.
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
package importer

import (
	"os"
	"path"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/lightmap"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
	"github.com/ThomasHabets/bspimport/pkg/pak"
	"github.com/ThomasHabets/bspimport/pkg/palette"
	"github.com/ThomasHabets/bspimport/pkg/scene"
	"github.com/ThomasHabets/bspimport/pkg/surface"
	"github.com/ThomasHabets/bspimport/pkg/texture"
)

const pakPalette = "gfx/palette.lmp"

// ErrSessionUsed is returned when running a session twice.
var ErrSessionUsed = errors.New("import session already run")

// Session is one import. Everything runs on the calling goroutine, in
// entity order.
type Session struct {
	cfg Config
	log log.FieldLogger

	used  bool
	paks  pak.MultiPak
	bsp   *bsp.BSP
	scene *scene.Scene

	resolver   *texture.Resolver
	atlas      *lightmap.Atlas
	placements map[int]lightmap.Placement
	owners     map[int]*scene.Node // Face to the node that first drew it.
	warned     map[string]bool
}

// NewSession creates a session. The config is checked by Run.
func NewSession(cfg Config) *Session {
	l := cfg.Log
	if l == nil {
		l = log.StandardLogger()
	}
	return &Session{
		cfg:        cfg,
		log:        l,
		placements: make(map[int]lightmap.Placement),
		owners:     make(map[int]*scene.Node),
		warned:     make(map[string]bool),
	}
}

// Import runs a new session.
func Import(cfg Config) (*scene.Scene, error) {
	return NewSession(cfg).Run()
}

// Run imports the map. Format errors and a full lightmap atlas abort the
// import and no scene is returned. Other problems are recorded as scene
// warnings.
func (s *Session) Run() (*scene.Scene, error) {
	if s.used {
		return nil, ErrSessionUsed
	}
	s.used = true
	if err := s.cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "bad import config")
	}
	if len(s.cfg.Paks) > 0 {
		p, err := pak.MultiOpen(s.cfg.Paks...)
		if err != nil {
			return nil, err
		}
		s.paks = p
		defer p.Close()
	}

	b, err := LoadMap(s.cfg.Path, s.paks)
	if err != nil {
		return nil, err
	}
	s.bsp = b
	s.scene = scene.New(b.Name, s.log)
	s.log.WithFields(log.Fields{
		"map":      b.Name,
		"dialect":  b.Dialect,
		"entities": len(b.Entities),
		"faces":    len(b.Faces),
	}).Debug("Loaded map")

	var src texture.Source
	if len(s.cfg.TextureDirs) > 0 {
		src = texture.DirSource{Dirs: s.cfg.TextureDirs}
	}
	s.resolver = texture.NewResolver(b, s.palette(), src, s.log)
	s.atlas = lightmap.NewAtlas(s.cfg.AtlasSize, s.cfg.AtlasCellSize)
	if b.LightmapPages > 0 {
		s.scene.Warn(scene.DegradedAsset, -1, nil, "%d Quake 3 lightmap pages not imported", b.LightmapPages)
	}
	if b.Dialect == bsp.Source && len(b.Lighting) > 0 {
		s.scene.Warn(scene.DegradedAsset, -1, log.Fields{"bytes": len(b.Lighting)}, "Source lightmaps not imported")
	}

	for n := range b.Entities {
		if err := s.entity(&b.Entities[n]); err != nil {
			return nil, err
		}
	}

	s.scene.Index()
	s.scene.Attach()
	s.scene.FireTargets(s.cfg.EntityCreated, s.cfg.TargetlessCallbacks)

	s.scene.Materials = s.resolver.Assets()
	s.scene.Atlas = s.atlas
	for _, p := range s.atlas.Probes() {
		v := s.point(p.Position)
		if n := s.owners[p.Face]; n != nil {
			v = mgl32.TransformCoordinate(v, n.WorldMatrix())
		}
		p.Position = bsp.Vertex{X: v.X(), Y: v.Y(), Z: v.Z()}
		s.scene.Probes = append(s.scene.Probes, p)
	}
	s.log.WithFields(log.Fields{
		"map":       b.Name,
		"nodes":     len(s.scene.Nodes),
		"materials": len(s.scene.Materials),
		"lightmaps": s.atlas.Used(),
		"warnings":  len(s.scene.Warnings),
	}).Info("Imported map")
	return s.scene, nil
}

// LoadMap reads a map from disk, or failing that from paks as given, under
// maps/, or under maps/ with a .bsp suffix. paks may be nil.
func LoadMap(fn string, paks pak.MultiPak) (*bsp.BSP, error) {
	if _, err := os.Stat(fn); err == nil || len(paks) == 0 {
		return bsp.LoadFile(fn)
	}
	var lastErr error
	for _, name := range []string{fn, path.Join("maps", fn), path.Join("maps", fn+".bsp")} {
		data, err := paks.ReadFile(name)
		if err != nil {
			lastErr = err
			continue
		}
		b, err := bsp.LoadBytes(data)
		if err != nil {
			return nil, err
		}
		b.Name = bsp.MapName(name)
		return b, nil
	}
	return nil, &bsp.FormatError{Err: errors.Wrapf(lastErr, "map %q not on disk or in paks", fn)}
}

// palette returns the palette for embedded textures without their own.
func (s *Session) palette() *palette.Palette {
	if s.bsp.Dialect != bsp.Quake && s.bsp.Dialect != bsp.QuakeBSP2 {
		return palette.Gray()
	}
	var problems []string
	if fn := s.cfg.PalettePath; fn != "" {
		p, err := palette.Load(fn)
		if err == nil {
			if m := p.Missing(); len(m) > 0 {
				s.scene.Warn(scene.DegradedAsset, -1, log.Fields{"palette": fn}, "palette has %d missing swatches, using black: %v", len(m), m)
			}
			return p
		}
		problems = append(problems, err.Error())
	}
	if s.paks != nil {
		data, err := s.paks.ReadFile(pakPalette)
		if err == nil {
			var p *palette.Palette
			if p, err = palette.FromRGB(data); err == nil {
				return p
			}
		}
		problems = append(problems, err.Error())
	}
	s.scene.Warn(scene.DegradedAsset, -1, log.Fields{"palette": s.cfg.PalettePath}, "no palette, using greyscale: %v", problems)
	return palette.Gray()
}

// point converts a map position to output space.
func (s *Session) point(v bsp.Vertex) mgl32.Vec3 {
	return mgl32.TransformCoordinate(v.Vec3(), mesh.SwizzleYZ).Mul(s.cfg.ScaleFactor)
}

// rotation converts Quake pitch (nose down), yaw and roll in degrees to a
// rotation in output space.
func rotation(angles mgl32.Vec3) mgl32.Quat {
	r := mgl32.HomogRotate3DZ(mgl32.DegToRad(angles[1])).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(angles[0]))).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(angles[2])))
	return mgl32.Mat4ToQuat(mesh.SwizzleYZ.Mul4(r).Mul4(mesh.SwizzleYZ)).Normalize()
}

func (s *Session) entity(e *bsp.Entity) error {
	n := s.scene.AddNode(e)
	n.Position = s.point(e.Origin())
	model := e.ModelNumber()
	switch {
	case model < 0:
		n.Rotation = rotation(e.Angles())
	case model >= len(s.bsp.Models):
		s.scene.Warn(scene.DegradedAsset, e.Index, log.Fields{"model": model}, "model %d not in map (%d models)", model, len(s.bsp.Models))
	default:
		meshes, err := s.model(n, model)
		if err != nil {
			return errors.Wrapf(err, "entity %d (%s)", e.Index, e.ClassName())
		}
		n.Meshes = meshes
	}
	return nil
}

// model builds the meshes of one BSP model.
func (s *Session) model(n *scene.Node, model int) ([]*mesh.Mesh, error) {
	b := s.bsp
	name, entity := n.Name, n.Entity.Index
	var groups []mesh.Group
	groupIndex := make(map[string]int)
	for _, fn := range b.FacesInModel(model) {
		f := b.Faces[fn]
		ti := b.TextureIndex(f)
		if ti < 0 {
			continue
		}
		if texture.IsTool(s.resolver.Name(ti), b.TextureFlags(f), b.Dialect) {
			continue
		}
		asset, err := s.resolver.Resolve(ti)
		if err != nil {
			return nil, err
		}
		if asset.Placeholder && !s.warned[asset.Name] {
			s.warned[asset.Name] = true
			s.scene.Warn(scene.DegradedAsset, entity, log.Fields{"texture": asset.Name}, "placeholder texture: %s", asset.Degraded)
		}
		pl, err := s.placement(n, fn)
		if err != nil {
			return nil, err
		}
		m, err := surface.BuildFaceMesh(b, fn, surface.Params{
			Material:      asset.Name,
			TextureWidth:  asset.Width,
			TextureHeight: asset.Height,
			Lightmap:      pl,
			AtlasSize:     s.atlas.Size,
			Tessellation:  s.cfg.CurveTessellationLevel,
		})
		if err != nil {
			return nil, err
		}
		g, found := groupIndex[asset.Name]
		if !found {
			g = len(groups)
			groupIndex[asset.Name] = g
			groups = append(groups, mesh.Group{Material: asset.Name})
		}
		groups[g].Faces = append(groups[g].Faces, m)
	}
	meshes := mesh.Combine(name, groups, s.cfg.MeshCombine, s.cfg.ScaleFactor)
	for _, m := range meshes {
		if m.Oversized() {
			s.scene.Warn(scene.DegradedAsset, entity, log.Fields{"mesh": m.Name}, "mesh has %d vertices, more than 16 bit indices allow", m.VertexCount())
		}
	}
	return meshes, nil
}

// placement packs the lightmap of a face once, however many entities use it.
func (s *Session) placement(n *scene.Node, face int) (lightmap.Placement, error) {
	if p, found := s.placements[face]; found {
		return p, nil
	}
	entity := n.Entity.Index
	s.owners[face] = n
	p, err := s.atlas.PackFace(s.bsp, face)
	if err != nil {
		return p, err
	}
	if p.Degraded != "" {
		s.scene.Warn(scene.DegradedAsset, entity, log.Fields{"face": face}, "no lightmap: %s", p.Degraded)
	}
	s.placements[face] = p
	return p, nil
}
