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

package fusion

import (
	"github.com/mlnoga/fuselight/internal/plane"
	"github.com/mlnoga/fuselight/internal/pyramid"
)

// Blends the images into a combined pyramid of the given number of levels, finest first.
// For all but the coarsest level k, combined[k] = sum_i (IG_i[k] - up(IG_i[k+1])) * WG_i[k],
// where IG_i and WG_i are the Gaussian pyramids of image i and its normalized weight map.
// The coarsest level is sum_i IG_i[L-1] * WG_i[L-1]. All channels share the weight pyramids.
//
// Pyramids are built one level at a time: only the current and next Gaussian level of
// each image and the current weight level are held at any point, plus the combined output.
// Inputs are not modified.
func Blend(images []plane.Channels, normalized []*plane.Plane, levels int) []plane.Channels {
	n := len(images)
	numChannels := images[0].Channels()
	ig := make([]plane.Channels, n)
	wg := make([]*plane.Plane, n)
	copy(ig, images)
	copy(wg, normalized)

	combined := make([]plane.Channels, levels)
	for k := 0; k < levels; k++ {
		width, height := ig[0].Width(), ig[0].Height()
		acc := plane.NewChannels(width, height, numChannels)
		coarsest := k == levels-1

		for i := 0; i < n; i++ {
			if coarsest {
				for c := 0; c < numChannels; c++ {
					accumulateProduct(acc[c], ig[i][c], wg[i])
				}
				continue
			}

			next := make(plane.Channels, numChannels)
			for c := 0; c < numChannels; c++ {
				next[c] = pyramid.Downsample(ig[i][c])
				up := pyramid.Upsample(next[c], width, height)
				accumulateBand(acc[c], ig[i][c], up, wg[i])
			}
			ig[i] = next // release the finer level
			wg[i] = pyramid.Downsample(wg[i])
		}
		combined[k] = acc
	}
	return combined
}

// acc += g * w
func accumulateProduct(acc, g, w *plane.Plane) {
	width := acc.Width
	plane.Rows(acc.Height, width, func(y0, y1 int) {
		for p := y0 * width; p < y1*width; p++ {
			acc.Data[p] += g.Data[p] * w.Data[p]
		}
	})
}

// acc += (g - up) * w
func accumulateBand(acc, g, up, w *plane.Plane) {
	width := acc.Width
	plane.Rows(acc.Height, width, func(y0, y1 int) {
		for p := y0 * width; p < y1*width; p++ {
			acc.Data[p] += (g.Data[p] - up.Data[p]) * w.Data[p]
		}
	})
}
