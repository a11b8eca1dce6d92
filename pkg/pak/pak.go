// Package pak reads maps out of Quake PAK files.
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
package pak

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	magic          = "PACK"
	entryNameBytes = 56
)

var ErrNotFound = errors.New("not found in pak")

type fileHeader struct {
	ID            [4]byte
	Directory     uint32
	DirectorySize uint32
}

type fileEntry struct {
	NameBytes [entryNameBytes]byte
	Offset    uint32
	Size      uint32
}

func (e *fileEntry) Name() string {
	n := bytes.IndexByte(e.NameBytes[:], 0)
	if n < 0 {
		n = len(e.NameBytes)
	}
	return string(e.NameBytes[:n])
}

type Entry struct {
	Pos  uint32
	Size uint32
}

// File is the part of the OS file a pak needs.
type File interface {
	io.ReaderAt
	io.Closer
}

type Pak struct {
	Name    string
	File    File
	Entries map[string]Entry
}

// Get returns a reader for one file in the pak.
func (p *Pak) Get(fn string) (*io.SectionReader, error) {
	entry, found := p.Entries[fn]
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "%s: %q", p.Name, fn)
	}
	return io.NewSectionReader(p.File, int64(entry.Pos), int64(entry.Size)), nil
}

// List returns the file names, sorted.
func (p *Pak) List() []string {
	var ret []string
	for fn := range p.Entries {
		ret = append(ret, fn)
	}
	sort.Strings(ret)
	return ret
}

// MultiPak is a search path. Later paks override earlier ones.
type MultiPak []*Pak

func (m MultiPak) List() []string {
	seen := make(map[string]bool)
	var ret []string
	for _, p := range m {
		for fn := range p.Entries {
			if !seen[fn] {
				seen[fn] = true
				ret = append(ret, fn)
			}
		}
	}
	sort.Strings(ret)
	return ret
}

// Maps returns the names of all BSP files.
func (m MultiPak) Maps() []string {
	var ret []string
	for _, fn := range m.List() {
		if strings.HasSuffix(strings.ToLower(fn), ".bsp") {
			ret = append(ret, fn)
		}
	}
	return ret
}

// MultiOpen opens all named paks. Empty names are skipped.
func MultiOpen(fns ...string) (MultiPak, error) {
	var ret MultiPak
	for _, fn := range fns {
		if fn == "" {
			continue
		}
		f, err := os.Open(fn)
		if err != nil {
			ret.Close()
			return nil, errors.Wrapf(err, "opening pak")
		}
		p, err := Open(f)
		if err != nil {
			f.Close()
			ret.Close()
			return nil, errors.Wrapf(err, "%s", fn)
		}
		p.Name = fn
		ret = append(ret, p)
	}
	return ret, nil
}

func (m MultiPak) Get(s string) (*io.SectionReader, error) {
	for i := len(m); i > 0; i-- {
		r, err := m[i-1].Get(s)
		if err == nil {
			return r, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "%q", s)
}

// ReadFile returns the contents of one file.
func (m MultiPak) ReadFile(s string) ([]byte, error) {
	r, err := m.Get(s)
	if err != nil {
		return nil, err
	}
	data := make([]byte, r.Size())
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrapf(err, "reading %q", s)
	}
	return data, nil
}

func (m MultiPak) Close() {
	for _, p := range m {
		p.File.Close()
	}
}

// Open reads the directory of a pak. The file is kept open until Close.
func Open(f File) (*Pak, error) {
	ret := &Pak{
		File:    f,
		Entries: make(map[string]Entry),
	}
	var h fileHeader
	if err := binary.Read(io.NewSectionReader(f, 0, int64(binary.Size(h))), binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrapf(err, "reading pak header")
	}
	if string(h.ID[:]) != magic {
		return nil, errors.Errorf("bad pak magic %q", h.ID[:])
	}
	entrySize := uint32(binary.Size(fileEntry{}))
	if h.DirectorySize%entrySize != 0 {
		return nil, errors.Errorf("pak directory size %d not a multiple of %d", h.DirectorySize, entrySize)
	}
	r := io.NewSectionReader(f, int64(h.Directory), int64(h.DirectorySize))
	for n := uint32(0); n < h.DirectorySize/entrySize; n++ {
		var e fileEntry
		if err := binary.Read(r, binary.LittleEndian, &e); err != nil {
			return nil, errors.Wrapf(err, "reading pak entry %d", n)
		}
		ret.Entries[e.Name()] = Entry{
			Pos:  e.Offset,
			Size: e.Size,
		}
	}
	return ret, nil
}

// Write writes a pak holding files. Used to build test data.
func Write(w io.Writer, files map[string][]byte) error {
	var names []string
	for fn := range files {
		if len(fn) >= entryNameBytes {
			return errors.Errorf("file name %q too long", fn)
		}
		names = append(names, fn)
	}
	sort.Strings(names)

	hdrSize := uint32(binary.Size(fileHeader{}))
	var data bytes.Buffer
	var dir []fileEntry
	for _, fn := range names {
		var e fileEntry
		copy(e.NameBytes[:], fn)
		e.Offset = hdrSize + uint32(data.Len())
		e.Size = uint32(len(files[fn]))
		data.Write(files[fn])
		dir = append(dir, e)
	}
	h := fileHeader{
		Directory:     hdrSize + uint32(data.Len()),
		DirectorySize: uint32(len(dir) * binary.Size(fileEntry{})),
	}
	copy(h.ID[:], magic)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, dir)
}
