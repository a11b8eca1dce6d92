// bspimport converts Quake family BSP maps to glTF prefabs.
package main

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

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/importer"
	"github.com/ThomasHabets/bspimport/pkg/mesh"
	"github.com/ThomasHabets/bspimport/pkg/pak"
	"github.com/ThomasHabets/bspimport/pkg/prefab"
	"github.com/ThomasHabets/bspimport/pkg/scene"
)

var (
	pakFiles   string
	configFile string
	verbose    bool
)

// options are the import flags. They override the config file only when
// given.
type options struct {
	out          string
	combine      mesh.Policy
	tessellation int
	scale        float32
	palette      string
	textures     []string
	atlasSize    int
	cellSize     int
	targetless   bool
}

func (o *options) register(fs *pflag.FlagSet) {
	d := importer.DefaultConfig("")
	fs.StringVar(&o.out, "out", ".", "Output directory.")
	o.combine = d.MeshCombine
	fs.Var(&o.combine, "combine", "Mesh combining: none, per_material or per_entity.")
	fs.IntVar(&o.tessellation, "tessellation", d.CurveTessellationLevel, "Curve tessellation level, 1-50.")
	fs.Float32Var(&o.scale, "scale", d.ScaleFactor, "Scale factor from map units.")
	fs.StringVar(&o.palette, "palette", d.PalettePath, "Palette image, 16x16 swatches.")
	fs.StringSliceVar(&o.textures, "textures", nil, "Comma-separated directories to search for external textures.")
	fs.IntVar(&o.atlasSize, "atlas-size", d.AtlasSize, "Lightmap atlas size in pixels.")
	fs.IntVar(&o.cellSize, "cell-size", d.AtlasCellSize, "Lightmap atlas cell size in luxels.")
	fs.BoolVar(&o.targetless, "all-entities", false, "Report every entity to the entity hook, not just those with targets.")
}

// config builds the import config: defaults, then config file, then flags.
func (o *options) config(fs *pflag.FlagSet, path string) (importer.Config, error) {
	cfg := importer.DefaultConfig("")
	if configFile != "" {
		var err error
		if cfg, err = importer.LoadConfig(configFile); err != nil {
			return cfg, err
		}
	}
	if path != "" {
		cfg.Path = path
	}
	if pakFiles != "" {
		cfg.Paks = strings.Split(pakFiles, ",")
	}
	if fs.Changed("combine") {
		cfg.MeshCombine = o.combine
	}
	if fs.Changed("tessellation") {
		cfg.CurveTessellationLevel = o.tessellation
	}
	if fs.Changed("scale") {
		cfg.ScaleFactor = o.scale
	}
	if fs.Changed("palette") {
		cfg.PalettePath = o.palette
	}
	if fs.Changed("textures") {
		cfg.TextureDirs = o.textures
	}
	if fs.Changed("atlas-size") {
		cfg.AtlasSize = o.atlasSize
	}
	if fs.Changed("cell-size") {
		cfg.AtlasCellSize = o.cellSize
	}
	if fs.Changed("all-entities") {
		cfg.TargetlessCallbacks = o.targetless
	}
	return cfg, nil
}

// logTargets is the entity hook of the command line tool.
func logTargets(n *scene.Node, targets []*scene.Node) {
	var names []string
	for _, t := range targets {
		names = append(names, t.Name)
	}
	log.WithFields(log.Fields{
		"entity":  n.Entity.Index,
		"name":    n.Name,
		"target":  n.Entity.Get(scene.KeyTarget),
		"targets": names,
	}).Debug("Entity")
}

// importOne imports a map and writes <out>/<map>.glb.
func importOne(cfg importer.Config, out string) error {
	cfg.EntityCreated = logTargets
	s, err := importer.Import(cfg)
	if err != nil {
		return errors.Wrapf(err, "importing %q", cfg.Path)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	fn := filepath.Join(out, s.Name+".glb")
	if err := prefab.Save(s, fn); err != nil {
		return err
	}
	l := log.WithFields(log.Fields{
		"map":      s.Name,
		"out":      fn,
		"warnings": len(s.Warnings),
	})
	if lo, hi, ok := s.Bounds(); ok {
		l = l.WithField("bounds", fmt.Sprintf("%v-%v", lo, hi))
	}
	l.Info("Wrote prefab")
	return nil
}

func openPaks() (pak.MultiPak, error) {
	if pakFiles == "" {
		return nil, nil
	}
	return pak.MultiOpen(strings.Split(pakFiles, ",")...)
}

func info(w io.Writer, mapName string) error {
	p, err := openPaks()
	if err != nil {
		return err
	}
	defer p.Close()
	m, err := importer.LoadMap(mapName, p)
	if err != nil {
		return errors.Wrapf(err, "loading map")
	}
	fmt.Fprintf(w, "Map: %v\n", m.Name)
	fmt.Fprintf(w, "Dialect: %v\n", m.Dialect)
	fmt.Fprintf(w, "Entities: %v\n", len(m.Entities))
	fmt.Fprintf(w, "Planes: %v\n", len(m.Planes))
	fmt.Fprintf(w, "Vertices: %v\n", len(m.Vertices))
	fmt.Fprintf(w, "Edges: %v\n", len(m.Edges))
	fmt.Fprintf(w, "SurfEdges: %v\n", len(m.SurfEdges))
	fmt.Fprintf(w, "Faces: %v\n", len(m.Faces))
	fmt.Fprintf(w, "TexInfos: %v\n", len(m.TexInfo))
	fmt.Fprintf(w, "Textures: %v\n", len(m.Textures))
	fmt.Fprintf(w, "Lighting: %v bytes\n", len(m.Lighting))
	if m.Dialect == bsp.Quake3 {
		fmt.Fprintf(w, "DrawVerts: %v\n", len(m.DrawVerts))
		fmt.Fprintf(w, "MeshVerts: %v\n", len(m.MeshVerts))
		fmt.Fprintf(w, "LightmapPages: %v\n", m.LightmapPages)
	}
	if m.Dialect == bsp.Source {
		fmt.Fprintf(w, "Displacements: %v\n", len(m.Displacements))
		fmt.Fprintf(w, "DispVerts: %v\n", len(m.DispVerts))
	}
	if ws := m.WorldSpawn(); ws != nil {
		fmt.Fprintf(w, "Message: %q\n", ws.Get("message"))
	}
	if len(m.Models) > 0 {
		w0 := m.Models[0]
		fmt.Fprintf(w, "World: %v %v %v - %v %v %v\n", w0.Mins.X, w0.Mins.Y, w0.Mins.Z, w0.Maxs.X, w0.Maxs.Y, w0.Maxs.Z)
	}
	fmt.Fprintf(w, "Model  Faces\n")
	for n, mod := range m.Models {
		fmt.Fprintf(w, "%5d %6v\n", n, mod.NumFaces)
	}
	return nil
}

func list(w io.Writer) error {
	p, err := openPaks()
	if err != nil {
		return err
	}
	if p == nil {
		return errors.New("need --pak to list maps")
	}
	defer p.Close()
	for _, fn := range p.Maps() {
		fmt.Fprintln(w, fn)
	}
	return nil
}

// convert imports every map in the paks matching re.
func convert(fs *pflag.FlagSet, o *options, re *regexp.Regexp) error {
	p, err := openPaks()
	if err != nil {
		return err
	}
	if p == nil {
		return errors.New("need --pak to convert maps")
	}
	maps := p.Maps()
	p.Close()
	for _, mf := range maps {
		if !re.MatchString(mf) {
			continue
		}
		cfg, err := o.config(fs, mf)
		if err != nil {
			return err
		}
		if err := importOne(cfg, filepath.Join(o.out, filepath.Dir(mf))); err != nil {
			return err
		}
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bspimport",
		Short:         "Import Quake family and Source BSP maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&pakFiles, "pak", "", "Comma-separated list of pakfiles to search for maps and the palette.")
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML import config.")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging.")

	var o options
	importCmd := &cobra.Command{
		Use:   "import <map.bsp>",
		Short: "Import a map and write a glTF prefab",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := o.config(cmd.Flags(), path)
			if err != nil {
				return err
			}
			return importOne(cfg, o.out)
		},
	}
	o.register(importCmd.Flags())

	var co options
	var maps string
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Import all maps in the paks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			re, err := regexp.Compile(maps)
			if err != nil {
				return errors.Wrapf(err, "maps regex %q", maps)
			}
			return convert(cmd.Flags(), &co, re)
		},
	}
	co.register(convertCmd.Flags())
	convertCmd.Flags().StringVar(&maps, "maps", ".*", "Maps regex.")

	infoCmd := &cobra.Command{
		Use:   "info <map.bsp>",
		Short: "Show map lump record counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return info(cmd.OutOrStdout(), args[0])
		},
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List maps in the paks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd.OutOrStdout())
		},
	}
	root.AddCommand(importCmd, convertCmd, infoCmd, listCmd)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
