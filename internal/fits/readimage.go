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
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/tiff"
)

// Reads a PNG, JPEG or TIFF file into the image, scaling values to [0,1].
// If readExif is set, the exposure time is taken from the EXIF data where present
func (f *Image) readDecodedFile(fileName string, readExif bool, logWriter io.Writer) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	img, format, err := image.Decode(bufio.NewReader(file))
	if err != nil {
		return err
	}
	f.FromGoImage(img)
	f.Header.History = append(f.Header.History, fmt.Sprintf("Converted from %s file %s", format, fileName))

	if readExif {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		exposure, err := ReadExposure(file)
		if err != nil {
			fmt.Fprintf(logWriter, "%d: No exposure time found: %s\n", f.ID, err.Error())
		} else {
			f.Exposure = exposure
		}
	}
	return nil
}

// Reads the exposure time in seconds from the EXIF data of a JPEG or TIFF stream
func ReadExposure(r io.Reader) (float32, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return 0, err
	}
	tag, err := x.Get(exif.ExposureTime)
	if err != nil {
		return 0, err
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		return 0, err
	}
	if den == 0 || num < 0 {
		return 0, errors.New(fmt.Sprintf("invalid exposure time %d/%d", num, den))
	}
	return float32(num) / float32(den), nil
}

// Replaces the image contents with the pixels of a Go image. Grayscale images yield a single
// channel, all others three. Values are scaled from [0,65535] to [0,1]
func (f *Image) FromGoImage(img image.Image) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	bitpix, channels := colorModelToBitpixAndChannels(img.ColorModel())

	naxisn := []int32{int32(width), int32(height), int32(channels)}
	if channels == 1 {
		naxisn = naxisn[:2]
	}
	data := NewImageFromNaxisn(naxisn, nil)
	f.Bitpix, f.Bzero, f.Bscale = bitpix, 0, 1
	f.Naxisn, f.Pixels, f.Data = data.Naxisn, data.Pixels, data.Data

	size := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			offset := y*width + x
			if channels == 1 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				f.Data[offset] = float32(g.Y) / 65535
				continue
			}
			r, g, b, _ := c.RGBA()
			f.Data[offset] = float32(r) / 65535
			f.Data[offset+size] = float32(g) / 65535
			f.Data[offset+2*size] = float32(b) / 65535
		}
	}
}

func colorModelToBitpixAndChannels(m color.Model) (bitpix, channels int32) {
	switch m {
	case color.GrayModel:
		return 8, 1
	case color.Gray16Model:
		return 16, 1
	case color.RGBA64Model, color.NRGBA64Model:
		return 16, 3
	default:
		return 8, 3
	}
}
