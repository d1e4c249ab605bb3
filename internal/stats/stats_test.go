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
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestStatsSmall(t *testing.T) {
	epsilon := 1e-5
	data := []float32{1, 2, 3, 4, 100, float32(math.NaN())}
	s := NewStats(data)
	if s.Min != 1 || s.Max != 100 || s.NaNs != 1 {
		t.Errorf("min=%f max=%f nans=%d; want 1, 100, 1", s.Min, s.Max, s.NaNs)
	}
	if math.Abs(float64(s.Mean)-22) > epsilon {
		t.Errorf("mean=%f; want 22", s.Mean)
	}
	if s.Location != 3 {
		t.Errorf("location=%f; want 3", s.Location)
	}
	// absolute deviations from 3 are 2,1,0,1,97 with median 1
	if math.Abs(float64(s.Scale)-madToSigma) > epsilon {
		t.Errorf("scale=%f; want %f", s.Scale, madToSigma)
	}
}

func TestStatsConstant(t *testing.T) {
	data := make([]float32, 100000)
	for i := range data {
		data[i] = 0.25
	}
	s := NewStats(data)
	if s.Min != 0.25 || s.Max != 0.25 || s.Mean != 0.25 || s.Location != 0.25 || s.Scale != 0 || s.StdDev != 0 {
		t.Errorf("got %v; want all 0.25 and zero spread", s)
	}
}

func TestStatsSampledMedian(t *testing.T) {
	// uniform values in [0,1): sampled median close to 0.5
	rng := fastrand.RNG{}
	data := make([]float32, 1000000)
	for i := range data {
		data[i] = float32(rng.Uint32n(1<<20)) / (1 << 20)
	}
	s := NewStats(data)
	if math.Abs(float64(s.Location)-0.5) > 0.05 {
		t.Errorf("location=%f; want about 0.5", s.Location)
	}
	if math.Abs(float64(s.StdDev)-math.Sqrt(1.0/12)) > 0.05 {
		t.Errorf("stddev=%f; want about %f", s.StdDev, math.Sqrt(1.0/12))
	}
}

func TestSampleSize(t *testing.T) {
	data := make([]float32, 100)
	if got := len(Sample(data, 1000)); got != 100 {
		t.Errorf("len=%d; want 100", got)
	}
	big := make([]float32, 100000)
	if got := len(Sample(big, 1000)); got != 1000 {
		t.Errorf("len=%d; want 1000", got)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := NewStats(nil)
	if s.Min != 0 || s.Max != 0 {
		t.Errorf("empty stats %v", s)
	}
}
