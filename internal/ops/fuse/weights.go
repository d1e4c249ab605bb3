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

package fuse

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mlnoga/fuselight/internal/fits"
	"github.com/mlnoga/fuselight/internal/ops"
	"github.com/mlnoga/fuselight/internal/weights"
)

// Replaces each image with an intermediate of its quality weight estimation, e.g. its contrast
// or its final weight map. Optionally also writes a false-color heat map of the intermediate
type OpWeights struct {
	ops.OpUnaryBase
	Weights weights.Config `json:"weights"`
	Stage   weights.Stage  `json:"stage"`
	Heatmap string         `json:"heatmap"` // heat map PNG file pattern, %d is replaced by the image ID. Empty to skip
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpWeightsDefault() }) } // register the operator for JSON decoding

func NewOpWeightsDefault() *OpWeights {
	return NewOpWeights(weights.DefaultConfig(), weights.StageWeight, "")
}

func NewOpWeights(config weights.Config, stage weights.Stage, heatmap string) *OpWeights {
	op := &OpWeights{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "weights", Active: true}},
		Weights:     config,
		Stage:       stage,
		Heatmap:     heatmap,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpWeights) UnmarshalJSON(data []byte) error {
	type defaults OpWeights
	def := defaults(*NewOpWeightsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpWeights(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpWeights) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	p, err := weights.EstimateStage(f, op.Weights, op.Stage)
	if err != nil {
		return nil, errors.New(fmt.Sprintf("%d: Error estimating %s: %s", f.ID, op.Stage, err.Error()))
	}
	result = fits.NewImageFromPlane(p)
	result.ID, result.FileName = f.ID, f.FileName
	result.Header.History = append(result.Header.History, fmt.Sprintf("%s of %s", op.Stage, f.FileName))
	result.UpdateStats()
	fmt.Fprintf(c.Log, "%d: Estimated %s with %v\n", f.ID, op.Stage, result.Stats)

	if op.Heatmap != "" {
		fileName := ops.ExpandPattern(op.Heatmap, f.ID)
		fmt.Fprintf(c.Log, "%d: Writing %s heat map to %s\n", f.ID, op.Stage, fileName)
		title := fmt.Sprintf("%d: %s [%.3g, %.3g]", f.ID, op.Stage, result.Stats.Min, result.Stats.Max)
		if err := result.WriteHeatmapToFile(fileName, title); err != nil {
			return nil, errors.New(fmt.Sprintf("%d: Error writing heat map to %s: %s", f.ID, fileName, err.Error()))
		}
	}
	return result, nil
}
