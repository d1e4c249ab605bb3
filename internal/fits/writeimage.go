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
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/tiff"
)

// Converts the image to a Go image with 8 or 16 bits per channel. Values are clamped to [0,1],
// NaNs map to 0. Images with fewer than three channels become grayscale
func (f *Image) ToGoImage(bits int) image.Image {
	width, height := f.Width(), f.Height()
	rect := image.Rect(0, 0, width, height)
	size := width * height
	mono := f.Channels() < 3

	switch {
	case mono && bits == 8:
		img := image.NewGray(rect)
		for i, v := range f.Data[:size] {
			img.Pix[i] = uint8(clamp01(v)*255 + 0.5)
		}
		return img
	case mono:
		img := image.NewGray16(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: to16(f.Data[y*width+x])})
			}
		}
		return img
	case bits == 8:
		img := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				img.SetRGBA(x, y, color.RGBA{to8(f.Data[i]), to8(f.Data[i+size]), to8(f.Data[i+2*size]), 255})
			}
		}
		return img
	default:
		img := image.NewRGBA64(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				img.SetRGBA64(x, y, color.RGBA64{to16(f.Data[i]), to16(f.Data[i+size]), to16(f.Data[i+2*size]), 65535})
			}
		}
		return img
	}
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float32) uint8   { return uint8(clamp01(v)*255 + 0.5) }
func to16(v float32) uint16 { return uint16(clamp01(v)*65535 + 0.5) }

// Write the image to an 8-bit JPEG file with given quality
func (f *Image) WriteJPGToFile(fileName string, quality int) error {
	return writeToFile(fileName, func(w io.Writer) error { return f.WriteJPG(w, quality) })
}

// Write the image as 8-bit JPEG with given quality
func (f *Image) WriteJPG(w io.Writer, quality int) error {
	return jpeg.Encode(w, f.ToGoImage(8), &jpeg.Options{Quality: quality})
}

// Write the image to a 16-bit PNG file
func (f *Image) WritePNGToFile(fileName string) error {
	return writeToFile(fileName, f.WritePNG)
}

func (f *Image) WritePNG(w io.Writer) error {
	return png.Encode(w, f.ToGoImage(16))
}

// Write the image to a deflate-compressed 16-bit TIFF file
func (f *Image) WriteTIFF16ToFile(fileName string) error {
	return writeToFile(fileName, f.WriteTIFF16)
}

func (f *Image) WriteTIFF16(w io.Writer) error {
	return tiff.Encode(w, f.ToGoImage(16), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Creates or overwrites the named file and writes it through a buffer with the given function
func writeToFile(fileName string, write func(w io.Writer) error) (err error) {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	writer := bufio.NewWriter(file)
	if err = write(writer); err != nil {
		return err
	}
	return writer.Flush()
}
