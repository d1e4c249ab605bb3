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

// Reconstructs the full resolution image from a combined pyramid, coarsest level last:
// final[L-1] = combined[L-1], final[k] = combined[k] + up(final[k+1]).
// Consumes the pyramid: levels are updated in place and released once used.
func Collapse(combined []plane.Channels) plane.Channels {
	levels := len(combined)
	final := combined[levels-1]
	combined[levels-1] = nil
	for k := levels - 2; k >= 0; k-- {
		level := combined[k]
		for c := range level {
			up := pyramid.Upsample(final[c], level[c].Width, level[c].Height)
			addInto(level[c], up)
		}
		final = level
		combined[k] = nil
	}
	return final
}

// dst += src
func addInto(dst, src *plane.Plane) {
	width := dst.Width
	plane.Rows(dst.Height, width, func(y0, y1 int) {
		for p := y0 * width; p < y1*width; p++ {
			dst.Data[p] += src.Data[p]
		}
	})
}
