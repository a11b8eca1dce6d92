package importer

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
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ThomasHabets/bspimport/pkg/lightmap"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
	"github.com/ThomasHabets/bspimport/pkg/scene"
	"github.com/ThomasHabets/bspimport/pkg/surface"
)

const (
	DefaultScaleFactor = 0.0254
	DefaultPalettePath = "assets/qpalette.png"
)

// Config is everything an import needs from the caller.
type Config struct {
	// Path is a BSP file, or a file inside Paks.
	Path string   `yaml:"path"`
	Paks []string `yaml:"paks"`

	MeshCombine            mesh.Policy `yaml:"mesh_combine"`
	CurveTessellationLevel int         `yaml:"curve_tessellation_level"`
	ScaleFactor            float32     `yaml:"scale_factor"`

	PalettePath string   `yaml:"palette"`
	TextureDirs []string `yaml:"texture_dirs"`

	AtlasSize     int `yaml:"atlas_size"`
	AtlasCellSize int `yaml:"atlas_cell_size"`

	// EntityCreated is called once per entity with a target after the
	// hierarchy is built. With TargetlessCallbacks it's called for every
	// entity.
	EntityCreated       scene.Hook `yaml:"-"`
	TargetlessCallbacks bool       `yaml:"targetless_callbacks"`

	// Log defaults to the logrus standard logger.
	Log log.FieldLogger `yaml:"-"`
}

// DefaultConfig returns the defaults for importing path.
func DefaultConfig(path string) Config {
	return Config{
		Path:                   path,
		MeshCombine:            mesh.PerEntity,
		CurveTessellationLevel: surface.DefaultTessellation,
		ScaleFactor:            DefaultScaleFactor,
		PalettePath:            DefaultPalettePath,
		AtlasSize:              lightmap.DefaultSize,
		AtlasCellSize:          lightmap.DefaultCellSize,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(fn string) (Config, error) {
	cfg := DefaultConfig("")
	f, err := os.Open(fn)
	if err != nil {
		return cfg, errors.Wrapf(err, "opening config")
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %q", fn)
	}
	return cfg, nil
}

// Validate checks that the config can be imported with.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("no map path")
	}
	if c.CurveTessellationLevel < 1 || c.CurveTessellationLevel > surface.MaxTessellation {
		return errors.Errorf("curve tessellation level %d outside [1,%d]", c.CurveTessellationLevel, surface.MaxTessellation)
	}
	if c.ScaleFactor <= 0 {
		return errors.Errorf("scale factor %v not positive", c.ScaleFactor)
	}
	// An atlas too small for any cell is valid, and fails on the first lightmap.
	if c.AtlasCellSize < 1 || c.AtlasSize < 1 {
		return errors.Errorf("atlas size %d and cell size %d must be positive", c.AtlasSize, c.AtlasCellSize)
	}
	switch c.MeshCombine {
	case mesh.None, mesh.PerMaterial, mesh.PerEntity:
	default:
		return errors.Errorf("bad mesh combine policy %d", int(c.MeshCombine))
	}
	return nil
}
