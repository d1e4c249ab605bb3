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
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// End points of the heat map color ramp, blended in HCL space
var (
	heatCold = colorful.Hcl(260, 0.6, 0.15)
	heatHot  = colorful.Hcl(90, 0.9, 0.95)
)

// Renders the first channel of the image as false color heat map, scaled from its minimum to its
// maximum. A non-empty title is drawn into the upper left corner
func (f *Image) Heatmap(title string) image.Image {
	width, height := f.Width(), f.Height()
	values := f.Data[:width*height]

	min, max := float32(0), float32(0)
	first := true
	for _, v := range values {
		if v != v {
			continue
		}
		if first || v < min {
			min = v
		}
		if first || v > max {
			max = v
		}
		first = false
	}
	scale := float32(0)
	if max > min {
		scale = 1 / (max - min)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := values[y*width+x]
			t := float64(0)
			if v == v {
				t = float64((v - min) * scale)
			}
			r, g, b := heatCold.BlendHcl(heatHot, t).Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}
	if title == "" {
		return img
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(title, 8, 16)
	return dc.Image()
}

// Writes the heat map of the first channel as PNG file
func (f *Image) WriteHeatmapToFile(fileName, title string) error {
	return writeToFile(fileName, func(w io.Writer) error { return f.WriteHeatmap(w, title) })
}

func (f *Image) WriteHeatmap(w io.Writer, title string) error {
	dc := gg.NewContextForImage(f.Heatmap(title))
	return dc.EncodePNG(w)
}
