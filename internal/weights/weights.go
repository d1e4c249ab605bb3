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

// Package weights estimates per-pixel quality weights for exposure fusion from
// local contrast, color saturation and well-exposedness, and normalizes them
// across a stack of images.
//
// All functions are pure. Neighborhood accesses clamp to the image edge.
package weights

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/fuselight/internal/plane"
)

var ErrChannels = errors.New("unsupported number of channels")

// Exponents for the three quality measures, and the spread of the exposedness Gaussian.
// An exponent of zero disables the respective measure
type Config struct {
	Contrast    float32 `json:"contrast"    yaml:"contrast"`
	Saturation  float32 `json:"saturation"  yaml:"saturation"`
	Exposedness float32 `json:"exposedness" yaml:"exposedness"`
	Sigma       float32 `json:"sigma"       yaml:"sigma"`
}

func DefaultConfig() Config {
	return Config{Contrast: 1, Saturation: 1, Exposedness: 1, Sigma: 0.2}
}

// Unmarshal with defaults for all fields not present in the JSON
func (c *Config) UnmarshalJSON(data []byte) error {
	type defaults Config
	def := defaults(DefaultConfig())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*c = Config(def)
	return nil
}

func (c Config) Validate() error {
	if c.Contrast < 0 || c.Saturation < 0 || c.Exposedness < 0 {
		return fmt.Errorf("negative weight exponent in %+v", c)
	}
	if !(c.Sigma > 0) {
		return fmt.Errorf("exposedness sigma %f must be positive", c.Sigma)
	}
	return nil
}

// Returns the quality weight map of the image: contrast^c * saturation^s * exposedness^e per pixel
func Estimate(img plane.Image, c Config) (*plane.Plane, error) {
	return EstimateStage(img, c, StageWeight)
}

// Returns the named intermediate of the weight estimation for the image
func EstimateStage(img plane.Image, c Config, stage Stage) (*plane.Plane, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cs, err := colorChannels(img)
	if err != nil {
		return nil, err
	}
	switch stage {
	case StageGrayscale:
		return Grayscale(cs), nil
	case StageLaplacian:
		return Laplacian(Grayscale(cs)), nil
	case StageContrast:
		return Contrast(Grayscale(cs)), nil
	case StageSaturation:
		return Saturation(cs), nil
	case StageExposedness:
		return Exposedness(cs, c.Sigma), nil
	case StageWeight:
		return Weight(cs, c), nil
	default:
		return nil, fmt.Errorf("unknown weight stage %d", int(stage))
	}
}

// Returns the channels which drive the quality measures: R, G and B for color images, or the
// single channel of a mono image. Further channels such as alpha are ignored.
func colorChannels(img plane.Image) (plane.Channels, error) {
	if img.Width() < 1 || img.Height() < 1 {
		return nil, fmt.Errorf("%w: image has %dx%d pixels", ErrChannels, img.Width(), img.Height())
	}
	cs := plane.ChannelsOf(img)
	switch {
	case len(cs) == 1:
		return cs, nil
	case len(cs) >= 3:
		return cs[:3], nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrChannels, len(cs))
	}
}

// Luminance 0.299R + 0.587G + 0.114B, or the channel itself for mono images
func Grayscale(cs plane.Channels) *plane.Plane {
	if len(cs) == 1 {
		return cs[0].Clone()
	}
	r, g, b := cs[0].Data, cs[1].Data, cs[2].Data
	gray := plane.New(cs.Width(), cs.Height())
	width := gray.Width
	plane.Rows(gray.Height, width, func(y0, y1 int) {
		for i := y0 * width; i < y1*width; i++ {
			gray.Data[i] = 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
		}
	})
	return gray
}

// Discrete Laplacian with kernel [[0,1,0],[1,-4,1],[0,1,0]] and clamped borders.
// Evaluated as a sum of differences to the center, which is exactly zero on flat regions
func Laplacian(gray *plane.Plane) *plane.Plane {
	lap := plane.New(gray.Width, gray.Height)
	plane.Eval(lap, func(x, y int) float32 {
		c := gray.At(x, y)
		return (gray.AtClamped(x-1, y) - c) + (gray.AtClamped(x+1, y) - c) +
			(gray.AtClamped(x, y-1) - c) + (gray.AtClamped(x, y+1) - c)
	})
	return lap
}

// Absolute value of the Laplacian of the luminance
func Contrast(gray *plane.Plane) *plane.Plane {
	con := Laplacian(gray)
	width := con.Width
	plane.Rows(con.Height, width, func(y0, y1 int) {
		for i := y0 * width; i < y1*width; i++ {
			if con.Data[i] < 0 {
				con.Data[i] = -con.Data[i]
			}
		}
	})
	return con
}

// Standard deviation of R, G and B around their mean. Zero for mono images
func Saturation(cs plane.Channels) *plane.Plane {
	sat := plane.New(cs.Width(), cs.Height())
	if len(cs) == 1 {
		return sat
	}
	r, g, b := cs[0].Data, cs[1].Data, cs[2].Data
	width := sat.Width
	plane.Rows(sat.Height, width, func(y0, y1 int) {
		for i := y0 * width; i < y1*width; i++ {
			mu := (r[i] + g[i] + b[i]) / 3
			dr, dg, db := r[i]-mu, g[i]-mu, b[i]-mu
			sat.Data[i] = float32(math.Sqrt(float64(dr*dr+dg*dg+db*db) / 3))
		}
	})
	return sat
}

// Product over channels of exp(-0.5*(v-0.5)^2/sigma^2)
func Exposedness(cs plane.Channels, sigma float32) *plane.Plane {
	exp := plane.New(cs.Width(), cs.Height())
	width := exp.Width
	scale := -0.5 / (float64(sigma) * float64(sigma))
	plane.Rows(exp.Height, width, func(y0, y1 int) {
		for i := y0 * width; i < y1*width; i++ {
			sumSq := float64(0)
			for _, ch := range cs {
				d := float64(ch.Data[i]) - 0.5
				sumSq += d * d
			}
			exp.Data[i] = float32(math.Exp(scale * sumSq)) // product of exponentials
		}
	})
	return exp
}

// Combined quality weight contrast^c * saturation^s * exposedness^e.
// Mono images have no saturation, so the factor is left out for them
func Weight(cs plane.Channels, c Config) *plane.Plane {
	con := Contrast(Grayscale(cs))
	sat := Saturation(cs)
	exp := Exposedness(cs, c.Sigma)
	if len(cs) == 1 {
		c.Saturation = 0
	}

	w := con // reuse buffer
	width := w.Width
	plane.Rows(w.Height, width, func(y0, y1 int) {
		for i := y0 * width; i < y1*width; i++ {
			w.Data[i] = pow(con.Data[i], c.Contrast) * pow(sat.Data[i], c.Saturation) * pow(exp.Data[i], c.Exposedness)
		}
	})
	return w
}

// Power function with shortcuts for the common exponents. pow(0,0)=1
func pow(v, e float32) float32 {
	switch e {
	case 0:
		return 1
	case 1:
		return v
	case 2:
		return v * v
	}
	return float32(math.Pow(float64(v), float64(e)))
}
