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

package weights

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/fuselight/internal/plane"
)

// Normalizes the weight maps so they sum to one at every pixel, returning new maps.
// Where all weights of a pixel are zero, each map receives 1/N. Negative, NaN and
// infinite weights count as zero. All maps must have identical dimensions.
func Normalize(maps []*plane.Plane) ([]*plane.Plane, error) {
	if len(maps) == 0 {
		return nil, errors.New("no weight maps to normalize")
	}
	for i, m := range maps {
		if !m.SameSize(maps[0]) {
			return nil, fmt.Errorf("weight map %d has size %v; want %v", i, m, maps[0])
		}
	}

	width, height := maps[0].Width, maps[0].Height
	outs := make([]*plane.Plane, len(maps))
	for i := range outs {
		outs[i] = plane.New(width, height)
	}
	equal := 1 / float32(len(maps))

	plane.Rows(height, width, func(y0, y1 int) {
		for p := y0 * width; p < y1*width; p++ {
			sum := float64(0) // cannot overflow for finite float32 inputs
			for i, m := range maps {
				w := sanitize(m.Data[p])
				outs[i].Data[p] = w
				sum += float64(w)
			}
			if sum > 0 {
				for _, o := range outs {
					o.Data[p] = float32(float64(o.Data[p]) / sum)
				}
			} else {
				for _, o := range outs {
					o.Data[p] = equal
				}
			}
		}
	})
	return outs, nil
}

func sanitize(w float32) float32 {
	if !(w > 0) || math.IsInf(float64(w), 1) {
		return 0
	}
	return w
}
