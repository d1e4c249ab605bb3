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

package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Maximum number of values sampled for the location and scale estimates
const MaxSamples = 16384

// Scale factor which makes the median absolute deviation consistent with the standard deviation for Gaussian data
const madToSigma = 1.4826

// Basic statistics for an array of float32 values. Min, max and mean are exact; the others
// are estimated from a random sample of at most MaxSamples values.
type Stats struct {
	Min      float32 `json:"min"`
	Max      float32 `json:"max"`
	Mean     float32 `json:"mean"`
	StdDev   float32 `json:"stdDev"`
	Location float32 `json:"location"` // sampled median
	Scale    float32 `json:"scale"`    // sampled MAD, scaled to match the standard deviation
	NaNs     int     `json:"naNs"`
}

// Calculates statistics for the given data. NaN values are counted and otherwise ignored
func NewStats(data []float32) *Stats {
	s := &Stats{}
	if len(data) == 0 {
		return s
	}
	min, max, sum, n := float32(math.MaxFloat32), float32(-math.MaxFloat32), float64(0), 0
	for _, v := range data {
		if v != v {
			s.NaNs++
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		s.Min, s.Max, s.Mean = float32(math.NaN()), float32(math.NaN()), float32(math.NaN())
		return s
	}
	s.Min, s.Max, s.Mean = min, max, float32(sum/float64(n))

	sample := Sample(data, MaxSamples)
	if len(sample) == 0 {
		return s
	}
	_, std := stat.MeanStdDev(sample, nil)
	if len(sample) < 2 {
		std = 0
	}
	sort.Float64s(sample)
	median := stat.Quantile(0.5, stat.Empirical, sample, nil)
	floats.AddConst(-median, sample)
	for i, v := range sample {
		sample[i] = math.Abs(v)
	}
	sort.Float64s(sample)
	mad := stat.Quantile(0.5, stat.Empirical, sample, nil)

	s.StdDev, s.Location, s.Scale = float32(std), float32(median), float32(mad*madToSigma)
	return s
}

// Returns up to max non-NaN values from data as float64. Uses all values if there are
// at most max, else draws a random sample with replacement.
func Sample(data []float32, max int) []float64 {
	if len(data) <= max {
		res := make([]float64, 0, len(data))
		for _, v := range data {
			if v == v {
				res = append(res, float64(v))
			}
		}
		return res
	}
	rng := fastrand.RNG{}
	res := make([]float64, 0, max)
	for i := 0; i < max; i++ {
		v := data[rng.Uint32n(uint32(len(data)))]
		if v == v {
			res = append(res, float64(v))
		}
	}
	return res
}

func (s *Stats) String() string {
	return fmt.Sprintf("min %.4g max %.4g mean %.4g stddev %.4g location %.4g scale %.4g",
		s.Min, s.Max, s.Mean, s.StdDev, s.Location, s.Scale)
}
