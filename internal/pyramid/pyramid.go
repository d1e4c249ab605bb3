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

// Package pyramid provides the resampling primitives for Gaussian and Laplacian
// image pyramids: a [1,3,3,1]/8 decimating low-pass filter, its bilinear
// counterpart for 2x expansion, and the level count for a given image size.
package pyramid

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/mlnoga/fuselight/internal/plane"
)

// Upper bound on the number of pyramid levels, enforced by NumLevels
const MaxLevels = 20

var ErrTooSmall = errors.New("image too small for a pyramid")

// Returns the number of pyramid levels for an image of the given size: floor(log2(min(w,h)))-1,
// at least 1 and at most MaxLevels. If requested is positive and smaller, it is used instead.
// Fails for images without pixels.
func NumLevels(width, height, requested int) (int, error) {
	min := width
	if height < min {
		min = height
	}
	if min < 1 {
		return 0, fmt.Errorf("%w: %dx%d pixels", ErrTooSmall, width, height)
	}
	levels := bits.Len(uint(min)) - 2 // floor(log2(min))-1
	if levels < 1 {
		levels = 1
	}
	if levels > MaxLevels {
		levels = MaxLevels
	}
	if requested > 0 && requested < levels {
		levels = requested
	}
	return levels, nil
}

// Size of the next coarser level for a level of the given size
func HalfSize(n int) int {
	return (n + 1) / 2
}

// Returns the low-pass filtered and decimated version of src, of size
// HalfSize(width) x HalfSize(height). Each output value is
// (a[2x-1] + 3a[2x] + 3a[2x+1] + a[2x+2])/8 along x, followed by the same along y,
// with clamp-to-edge for out of range coordinates.
func Downsample(src *plane.Plane) *plane.Plane {
	w, h := src.Width, src.Height
	dw, dh := HalfSize(w), HalfSize(h)

	// along x
	tmp := plane.NewTemp(dw, h)
	defer plane.PutBuffer(tmp.Data)
	plane.Rows(h, dw, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			in := src.Data[y*w : (y+1)*w]
			out := tmp.Data[y*dw : (y+1)*dw]
			for x := range out {
				x0, x1, x2, x3 := clamp(2*x-1, w), clamp(2*x, w), clamp(2*x+1, w), clamp(2*x+2, w)
				out[x] = (in[x0] + 3*in[x1] + 3*in[x2] + in[x3]) * (1.0 / 8)
			}
		}
	})

	// along y
	dst := plane.New(dw, dh)
	plane.Rows(dh, dw, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			r0 := tmp.Data[clamp(2*y-1, h)*dw:]
			r1 := tmp.Data[clamp(2*y, h)*dw:]
			r2 := tmp.Data[clamp(2*y+1, h)*dw:]
			r3 := tmp.Data[clamp(2*y+2, h)*dw:]
			out := dst.Data[y*dw : (y+1)*dw]
			for x := range out {
				out[x] = (r0[x] + 3*r1[x] + 3*r2[x] + r3[x]) * (1.0 / 8)
			}
		}
	})
	return dst
}

// Returns the 2x expansion of src to the given size, which is normally the size of the next
// finer level. Output position x interpolates between src[(x+1)/2] and src[(x-1)/2] with
// weight 1/4 on the second for even x and 3/4 for odd x, along x and then along y.
// Source coordinates are clamped to the edge.
func Upsample(src *plane.Plane, width, height int) *plane.Plane {
	sw, sh := src.Width, src.Height

	// along x
	tmp := plane.NewTemp(width, sh)
	defer plane.PutBuffer(tmp.Data)
	plane.Rows(sh, width, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			in := src.Data[y*sw : (y+1)*sw]
			out := tmp.Data[y*width : (y+1)*width]
			for x := range out {
				a, b, t := in[clamp((x+1)/2, sw)], in[clamp((x-1)/2, sw)], phase(x)
				out[x] = a*(1-t) + b*t
			}
		}
	})

	// along y
	dst := plane.New(width, height)
	plane.Rows(height, width, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			ra := tmp.Data[clamp((y+1)/2, sh)*width:]
			rb := tmp.Data[clamp((y-1)/2, sh)*width:]
			t := phase(y)
			out := dst.Data[y*width : (y+1)*width]
			for x := range out {
				out[x] = ra[x]*(1-t) + rb[x]*t
			}
		}
	})
	return dst
}

// Interpolation weight of the second tap for output position x>=0: 1/4 or 3/4
func phase(x int) float32 {
	return float32((x%2)*2+1) / 4
}

// Clamps index i to [0, n)
func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
