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

package fits

import (
	"fmt"
	"strings"

	"github.com/mlnoga/fuselight/internal/plane"
	"github.com/mlnoga/fuselight/internal/stats"
)

// An image with float32 pixel values, modeled after a FITS primary HDU.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
//
// Color images are stored planar, i.e. channel c occupies Data[c*w*h:(c+1)*w*h].
// Pixel values are nominally in [0,1].
type Image struct {
	ID       int    // Sequential ID number, for log output. Counted upwards from 0 for input frames. By convention, fused results are -1
	FileName string // Original file name, if any, for log output.

	Header Header  // The header with all keys, values, comments, history entries etc.
	Bitpix int32   // Bits per pixel value from the header. Positive values are integral, negative floating.
	Bzero  float32 // Zero offset. True pixel value is Bzero + Bscale * Data[i].
	Bscale float32 // Value scaler. True pixel value is Bzero + Bscale * Data[i].
	Naxisn []int32 // Axis dimensions. Most quickly varying dimension first (i.e. X,Y,C)
	Pixels int32   // Number of values in the image. Product of Naxisn[]

	Data []float32 // The image data

	Exposure float32 // Image exposure in seconds, 0 if unknown

	Stats *stats.Stats // Basic image statistics
}

// Creates an image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bscale: 1,
	}
}

// Creates an image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := int32(1)
	for _, naxis := range naxisn {
		numPixels *= naxis
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	return &Image{
		Header: NewHeader(),
		Bitpix: -32,
		Bscale: 1,
		Naxisn: append([]int32(nil), naxisn...), // clone slice
		Pixels: numPixels,
		Data:   data,
	}
}

// Creates an image from the given channel planes, copying their data.
// A single channel yields a two-dimensional mono image
func NewImageFromChannels(cs plane.Channels) *Image {
	w, h := cs.Width(), cs.Height()
	naxisn := []int32{int32(w), int32(h)}
	if len(cs) > 1 {
		naxisn = append(naxisn, int32(len(cs)))
	}
	img := NewImageFromNaxisn(naxisn, nil)
	for c, p := range cs {
		copy(img.Data[c*w*h:(c+1)*w*h], p.Data)
	}
	return img
}

// Creates a mono image from a plane, wrapping its data without copying
func NewImageFromPlane(p *plane.Plane) *Image {
	return NewImageFromNaxisn([]int32{int32(p.Width), int32(p.Height)}, p.Data)
}

func (f *Image) Width() int  { return int(f.Naxisn[0]) }
func (f *Image) Height() int { return int(f.Naxisn[1]) }

// Number of color channels; 1 for two-dimensional images
func (f *Image) Channels() int {
	if len(f.Naxisn) < 3 {
		return 1
	}
	return int(f.Naxisn[2])
}

func (f *Image) Pixel(x, y, c int) float32 {
	w, h := f.Width(), f.Height()
	return f.Data[c*w*h+y*w+x]
}

// Returns the row-major data of channel c without copying
func (f *Image) ChannelData(c int) []float32 {
	size := f.Width() * f.Height()
	return f.Data[c*size : (c+1)*size]
}

// Returns true if both images have the same axis dimensions
func (f *Image) SameDimensions(g *Image) bool {
	if len(f.Naxisn) != len(g.Naxisn) {
		return false
	}
	for i, n := range f.Naxisn {
		if n != g.Naxisn[i] {
			return false
		}
	}
	return true
}

// Recalculates the statistics of the image data
func (f *Image) UpdateStats() {
	f.Stats = stats.NewStats(f.Data)
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float32
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int32),
		Floats:   make(map[string]float32),
		Strings:  make(map[string]string),
		Dates:    make(map[string]string),
		Comments: make([]string, 0),
		History:  make([]string, 0),
		End:      false,
	}
}

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80  // Line size of a FITS header
