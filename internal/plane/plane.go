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

package plane

import (
	"fmt"
	"math"
)

// A read-only multi-channel image with floating point pixel values
type Image interface {
	Width() int
	Height() int
	Channels() int
	Pixel(x, y, c int) float32
}

// Images which store each channel as a contiguous row-major slice can expose it
// directly, which avoids a per-pixel copy when wrapping them into planes
type Planar interface {
	Image
	ChannelData(c int) []float32
}

// A two-dimensional array of scalar float32 values, stored row-major
type Plane struct {
	Width  int
	Height int
	Data   []float32
}

// Creates a new zero-filled plane of the given dimensions
func New(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Data: make([]float32, width*height)}
}

// Creates a new plane of the given dimensions with all values set to v
func NewConstant(width, height int, v float32) *Plane {
	p := New(width, height)
	for i := range p.Data {
		p.Data[i] = v
	}
	return p
}

// Wraps existing row-major data into a plane. Data is not copied
func FromData(width, height int, data []float32) *Plane {
	return &Plane{Width: width, Height: height, Data: data}
}

// Value at the given coordinates, which must be in range
func (p *Plane) At(x, y int) float32 {
	return p.Data[y*p.Width+x]
}

// Value at the given coordinates. Out-of-range coordinates are clamped to the nearest edge
func (p *Plane) AtClamped(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}
	return p.Data[y*p.Width+x]
}

func (p *Plane) Set(x, y int, v float32) {
	p.Data[y*p.Width+x] = v
}

// Returns true if both planes have the same width and height
func (p *Plane) SameSize(q *Plane) bool {
	return p.Width == q.Width && p.Height == q.Height
}

// Returns a deep copy of the plane
func (p *Plane) Clone() *Plane {
	return &Plane{Width: p.Width, Height: p.Height, Data: append([]float32(nil), p.Data...)}
}

// Returns minimum and maximum value of the plane, ignoring NaNs. Both are NaN
// if the plane holds no other values
func (p *Plane) MinMax() (min, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	n := 0
	for _, v := range p.Data {
		if v != v {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		n++
	}
	if n == 0 {
		nan := float32(math.NaN())
		return nan, nan
	}
	return min, max
}

func (p *Plane) String() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// A multi-channel image made of one plane per channel, all of identical size.
// Implements Image and Planar
type Channels []*Plane

// Creates zero-filled channels of the given dimensions
func NewChannels(width, height, channels int) Channels {
	cs := make(Channels, channels)
	for c := range cs {
		cs[c] = New(width, height)
	}
	return cs
}

func (cs Channels) Width() int                { return cs[0].Width }
func (cs Channels) Height() int               { return cs[0].Height }
func (cs Channels) Channels() int             { return len(cs) }
func (cs Channels) Pixel(x, y, c int) float32 { return cs[c].At(x, y) }
func (cs Channels) ChannelData(c int) []float32 { return cs[c].Data }

// Returns the channels of the given image as planes. Planar images are wrapped
// without copying, all others are copied pixel by pixel
func ChannelsOf(img Image) Channels {
	if cs, ok := img.(Channels); ok {
		return cs
	}
	width, height := img.Width(), img.Height()
	cs := make(Channels, img.Channels())
	if pl, ok := img.(Planar); ok {
		for c := range cs {
			cs[c] = FromData(width, height, pl.ChannelData(c))
		}
		return cs
	}
	for c := range cs {
		p := New(width, height)
		Rows(height, width, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := 0; x < width; x++ {
					p.Data[y*width+x] = img.Pixel(x, y, c)
				}
			}
		})
		cs[c] = p
	}
	return cs
}
