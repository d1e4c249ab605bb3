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

// Package fuse provides the exposure fusion operators.
package fuse

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mlnoga/fuselight/internal/fits"
	"github.com/mlnoga/fuselight/internal/fusion"
	"github.com/mlnoga/fuselight/internal/ops"
	"github.com/mlnoga/fuselight/internal/plane"
	"github.com/mlnoga/fuselight/internal/stats"
	"github.com/mlnoga/fuselight/internal/weights"
)

// Fuses a stack of differently exposed images into one. Takes n inputs, produces one output
type OpFuse struct {
	ops.OpBase
	Weights weights.Config `json:"weights"`
	Levels  int            `json:"levels"` // maximum number of pyramid levels, 0 for automatic
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpFuseDefault() }) } // register the operator for JSON decoding

func NewOpFuseDefault() *OpFuse { return NewOpFuse(weights.DefaultConfig(), 0) }

func NewOpFuse(config weights.Config, levels int) *OpFuse {
	return &OpFuse{
		OpBase:  ops.OpBase{Type: "fuse", Active: true},
		Weights: config,
		Levels:  levels,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpFuse) UnmarshalJSON(data []byte) error {
	type defaults OpFuse
	def := defaults(*NewOpFuseDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFuse(def)
	return nil
}

func (op *OpFuse) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins) == 0 {
		return nil, errors.New(fmt.Sprintf("%s operator needs inputs", op.Type))
	}
	if err := op.Weights.Validate(); err != nil {
		return nil, err
	}
	if op.Levels < 0 {
		return nil, errors.New(fmt.Sprintf("%s operator with negative level count %d", op.Type, op.Levels))
	}

	out := func() (f *fits.Image, err error) {
		fs, err := ops.MaterializeAll(ins, c.MaxThreads, false) // materialize all input promises
		if err != nil {
			return nil, err
		}
		return op.Apply(fs, c)
	}
	return []ops.Promise{out}, nil
}

// Fuses the given images. Inputs are not modified. The result has ID -1
func (op *OpFuse) Apply(fs []*fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if len(fs) == 0 {
		return nil, fusion.ErrEmptyStack
	}
	images := make([]plane.Image, len(fs))
	for i, f := range fs {
		images[i] = f
	}
	w, h, ch := fs[0].Width(), fs[0].Height(), fs[0].Channels()
	for _, f := range fs {
		if !f.SameDimensions(fs[0]) {
			return nil, errors.New(fmt.Sprintf("%d: Image %s has dimensions %s, expected %s like image %d",
				f.ID, f.FileName, f.DimensionsToString(), fs[0].DimensionsToString(), fs[0].ID))
		}
	}

	neededMB := fusion.EstimateMemoryMB(len(fs), w, h, ch)
	if c.FuseMemoryMB > 0 && neededMB > c.FuseMemoryMB {
		return nil, errors.New(fmt.Sprintf("Fusing %d images of %s pixels needs about %d MB, exceeding the budget of %d MB",
			len(fs), fs[0].DimensionsToString(), neededMB, c.FuseMemoryMB))
	}
	levels, err := fusion.Levels(w, h, fusion.Options{Levels: op.Levels})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.Log, "Fusing %d images of %s pixels with %d pyramid levels, weights %+v, about %d MB\n",
		len(fs), fs[0].DimensionsToString(), levels, op.Weights, neededMB)
	logByExposure(fs, c)

	maps := make([]*plane.Plane, len(fs))
	for i, f := range fs {
		if maps[i], err = weights.Estimate(f, op.Weights); err != nil {
			return nil, errors.New(fmt.Sprintf("%d: Error estimating weights: %s", f.ID, err.Error()))
		}
		fmt.Fprintf(c.Log, "%d: Weight map with %v\n", f.ID, stats.NewStats(maps[i].Data))
	}

	fused, err := fusion.Fuse(images, maps, fusion.Options{Levels: op.Levels})
	if err != nil {
		return nil, err
	}
	result = fits.NewImageFromChannels(fused)
	result.ID = -1
	result.Header.History = append(result.Header.History,
		fmt.Sprintf("Exposure fusion of %d images with %d levels", len(fs), levels))
	result.UpdateStats()
	fmt.Fprintf(c.Log, "%d: Fused image with %v\n", result.ID, result.Stats)
	return result, nil
}

// Logs the exposure times of the stack from shortest to longest, if known
func logByExposure(fs []*fits.Image, c *ops.Context) {
	sorted := append([]*fits.Image(nil), fs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Exposure < sorted[j].Exposure })
	if sorted[len(sorted)-1].Exposure <= 0 {
		return
	}
	for _, f := range sorted {
		if f.Exposure > 0 {
			fmt.Fprintf(c.Log, "%d: Exposure %gs (%s)\n", f.ID, f.Exposure, f.FileName)
		}
	}
}
