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
	"fmt"

	"github.com/pkg/errors"
)

// FormatError is returned for any file that can't be decoded: bad header,
// lumps out of bounds or cross references that don't resolve.
// No partial result accompanies it.
type FormatError struct {
	Lump string // Empty for header errors.
	Err  error
}

func (e *FormatError) Error() string {
	if e.Lump == "" {
		return fmt.Sprintf("bsp format error: %v", e.Err)
	}
	return fmt.Sprintf("bsp format error in %s lump: %v", e.Lump, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(lump string, format string, args ...interface{}) error {
	return &FormatError{Lump: lump, Err: errors.Errorf(format, args...)}
}

// IsFormatError returns true if err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
