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
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

// Reads a Radiance RGBE (.hdr) file into a three channel image. Values are kept unclamped
func (f *Image) ReadHDRFile(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()
	return f.ReadHDR(bufio.NewReader(file))
}

// Reads a Radiance RGBE stream into a three channel image
func (f *Image) ReadHDR(r io.Reader) error {
	img, err := rgbe.Decode(r)
	if err != nil {
		return err
	}
	h, ok := img.(hdr.Image)
	if !ok {
		return errors.New(fmt.Sprintf("%d: decoded RGBE image has no HDR color access", f.ID))
	}

	bounds := h.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := NewImageFromNaxisn([]int32{int32(width), int32(height), 3}, nil)
	f.Bitpix, f.Bzero, f.Bscale = -32, 0, 1
	f.Naxisn, f.Pixels, f.Data = data.Naxisn, data.Pixels, data.Data

	size := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := h.HDRAt(bounds.Min.X+x, bounds.Min.Y+y).HDRRGBA()
			offset := y*width + x
			f.Data[offset] = float32(r)
			f.Data[offset+size] = float32(g)
			f.Data[offset+2*size] = float32(b)
		}
	}
	return nil
}

// Writes the image as Radiance RGBE (.hdr) file. Mono images are written as gray RGB
func (f *Image) WriteHDRToFile(fileName string) error {
	return writeToFile(fileName, f.WriteHDR)
}

// Writes the image as Radiance RGBE stream
func (f *Image) WriteHDR(w io.Writer) error {
	return rgbe.Encode(w, hdrView{f})
}

// Presents an image as hdr.Image without copying
type hdrView struct {
	f *Image
}

func (v hdrView) ColorModel() color.Model { return hdrcolor.RGBModel }
func (v hdrView) Bounds() image.Rectangle { return image.Rect(0, 0, v.f.Width(), v.f.Height()) }
func (v hdrView) At(x, y int) color.Color { return v.HDRAt(x, y) }
func (v hdrView) Size() int               { return v.f.Width() * v.f.Height() }

func (v hdrView) HDRAt(x, y int) hdrcolor.Color {
	r := nonNegative(v.f.Pixel(x, y, 0))
	if v.f.Channels() < 3 {
		return hdrcolor.RGB{R: r, G: r, B: r}
	}
	return hdrcolor.RGB{R: r, G: nonNegative(v.f.Pixel(x, y, 1)), B: nonNegative(v.f.Pixel(x, y, 2))}
}

// RGBE cannot represent negative values or NaNs
func nonNegative(v float32) float64 {
	if v != v || v < 0 {
		return 0
	}
	return float64(v)
}
