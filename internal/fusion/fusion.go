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

// Package fusion blends a stack of aligned images into one, weighting every
// frequency band of every image with a Gaussian pyramid of its normalized
// quality weights, and collapsing the blended Laplacian pyramid into the result.
package fusion

import (
	"errors"
	"fmt"

	"github.com/mlnoga/fuselight/internal/plane"
	"github.com/mlnoga/fuselight/internal/pyramid"
	"github.com/mlnoga/fuselight/internal/weights"
)

var (
	ErrEmptyStack        = errors.New("empty image stack")
	ErrDimensionMismatch = errors.New("stack dimensions do not match")
)

// Options for a fusion call
type Options struct {
	Levels int // maximum number of pyramid levels; 0 selects the number automatically from the image size
}

// Checks the preconditions of Fuse: a non-empty stack with one weight map per image, and
// identical width, height and channel count throughout
func Validate(images []plane.Image, weightMaps []*plane.Plane) error {
	if err := validateImages(images); err != nil {
		return err
	}
	if len(weightMaps) != len(images) {
		return fmt.Errorf("%w: %d images but %d weight maps", ErrDimensionMismatch, len(images), len(weightMaps))
	}
	w, h := images[0].Width(), images[0].Height()
	for i, m := range weightMaps {
		if m == nil || m.Width != w || m.Height != h || len(m.Data) != w*h {
			return fmt.Errorf("%w: weight map %d does not match image size %dx%d", ErrDimensionMismatch, i, w, h)
		}
	}
	return nil
}

func validateImages(images []plane.Image) error {
	if len(images) == 0 {
		return ErrEmptyStack
	}
	w, h, c := images[0].Width(), images[0].Height(), images[0].Channels()
	if c < 1 {
		return fmt.Errorf("%w: image 0 has no channels", ErrDimensionMismatch)
	}
	for i, img := range images {
		if img.Width() != w || img.Height() != h || img.Channels() != c {
			return fmt.Errorf("%w: image %d is %dx%dx%d, image 0 is %dx%dx%d", ErrDimensionMismatch,
				i, img.Width(), img.Height(), img.Channels(), w, h, c)
		}
	}
	return nil
}

// Returns the number of pyramid levels Fuse uses for images of the given size
func Levels(width, height int, o Options) (int, error) {
	return pyramid.NumLevels(width, height, o.Levels)
}

// Fuses the images into one, using the given raw (unnormalized) weight maps.
// Inputs are not modified. The result has the width, height and channels of the inputs.
func Fuse(images []plane.Image, weightMaps []*plane.Plane, o Options) (plane.Channels, error) {
	if err := Validate(images, weightMaps); err != nil {
		return nil, err
	}
	levels, err := Levels(images[0].Width(), images[0].Height(), o)
	if err != nil {
		return nil, err
	}
	normalized, err := weights.Normalize(weightMaps)
	if err != nil {
		return nil, err
	}
	stacks := make([]plane.Channels, len(images))
	for i, img := range images {
		stacks[i] = plane.ChannelsOf(img)
	}
	combined := Blend(stacks, normalized, levels)
	return Collapse(combined), nil
}

// Estimates quality weights for all images with the given configuration, then fuses them
func FuseWithConfig(images []plane.Image, c weights.Config, o Options) (plane.Channels, error) {
	if err := validateImages(images); err != nil {
		return nil, err
	}
	if _, err := Levels(images[0].Width(), images[0].Height(), o); err != nil {
		return nil, err
	}
	maps := make([]*plane.Plane, len(images))
	for i, img := range images {
		m, err := weights.Estimate(img, c)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		maps[i] = m
	}
	return Fuse(images, maps, o)
}
