// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mlnoga/fuselight/internal/fits"
)

// Saves given promise under a given filename, with pattern expansion for %d based on the image id.
// The format is chosen by suffix. Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
	Quality     int    `json:"quality"` // JPEG only
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filePattern string) *OpSave {
	op := &OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filePattern != ""}},
		FilePattern: filePattern,
		Quality:     95,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply

	// active by default whenever a file pattern is given
	var probe struct {
		Active *bool `json:"active"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Active == nil {
		op.Active = op.FilePattern != ""
	}
	return nil
}

// Expands %d in the file pattern with the given image ID
func ExpandPattern(pattern string, id int) string {
	if strings.Contains(pattern, "%d") {
		return fmt.Sprintf(pattern, id)
	}
	return pattern
}

func (op *OpSave) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	if !op.Active || op.FilePattern == "" {
		return f, nil
	}
	fileName := ExpandPattern(op.FilePattern, f.ID)
	if err = Save(f, fileName, op.Quality, c); err != nil {
		return nil, err
	}
	return f, nil
}

// Saves an image to the given file, choosing the format by suffix
func Save(f *fits.Image, fileName string, quality int, c *Context) (err error) {
	fnLower := strings.ToLower(fileName)
	switch {
	case fits.IsFITSFileName(fileName):
		fmt.Fprintf(c.Log, "%d: Writing %s pixel FITS to %s\n", f.ID, f.DimensionsToString(), fileName)
		err = f.WriteFile(fileName)
	case strings.HasSuffix(fnLower, ".jpeg") || strings.HasSuffix(fnLower, ".jpg"):
		fmt.Fprintf(c.Log, "%d: Writing %s pixel JPEG to %s\n", f.ID, f.DimensionsToString(), fileName)
		err = f.WriteJPGToFile(fileName, quality)
	case strings.HasSuffix(fnLower, ".png"):
		fmt.Fprintf(c.Log, "%d: Writing %s pixel 16-bit PNG to %s\n", f.ID, f.DimensionsToString(), fileName)
		err = f.WritePNGToFile(fileName)
	case strings.HasSuffix(fnLower, ".tif") || strings.HasSuffix(fnLower, ".tiff"):
		fmt.Fprintf(c.Log, "%d: Writing %s pixel 16-bit TIFF to %s\n", f.ID, f.DimensionsToString(), fileName)
		err = f.WriteTIFF16ToFile(fileName)
	case strings.HasSuffix(fnLower, ".hdr"):
		fmt.Fprintf(c.Log, "%d: Writing %s pixel Radiance HDR to %s\n", f.ID, f.DimensionsToString(), fileName)
		err = f.WriteHDRToFile(fileName)
	default:
		err = errors.New("unknown suffix")
	}
	if err != nil {
		return errors.New(fmt.Sprintf("%d: Error writing to file %s: %s", f.ID, fileName, err.Error()))
	}
	return nil
}
