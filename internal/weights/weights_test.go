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

package weights

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/valyala/fastrand"

	"github.com/mlnoga/fuselight/internal/plane"
)

func constantRGB(width, height int, r, g, b float32) plane.Channels {
	return plane.Channels{
		plane.NewConstant(width, height, r),
		plane.NewConstant(width, height, g),
		plane.NewConstant(width, height, b),
	}
}

func randomRGB(rng *fastrand.RNG, width, height int) plane.Channels {
	cs := plane.NewChannels(width, height, 3)
	for _, c := range cs {
		for i := range c.Data {
			c.Data[i] = float32(rng.Uint32n(1<<16)) / (1 << 16)
		}
	}
	return cs
}

func TestGrayMidtoneTwoByTwo(t *testing.T) {
	epsilon := 1e-6
	img := constantRGB(2, 2, 0.5, 0.5, 0.5)
	c := DefaultConfig()

	type stageWant struct {
		Stage Stage
		Want  float32
	}
	for _, tc := range []stageWant{
		{StageGrayscale, 0.5},
		{StageLaplacian, 0},
		{StageContrast, 0},
		{StageSaturation, 0},
		{StageExposedness, 1},
		{StageWeight, 0},
	} {
		p, err := EstimateStage(img, c, tc.Stage)
		if err != nil {
			t.Fatalf("stage=%v error %s", tc.Stage, err.Error())
		}
		if p.Width != 2 || p.Height != 2 {
			t.Errorf("stage=%v size %v; want 2x2", tc.Stage, p)
		}
		for i, v := range p.Data {
			if math.Abs(float64(v-tc.Want)) > epsilon {
				t.Errorf("stage=%v data[%d]=%f; want %f", tc.Stage, i, v, tc.Want)
			}
		}
	}
}

func TestUniformColorHasZeroWeight(t *testing.T) {
	colors := [][3]float32{{0.2, 0.6, 0.9}, {0.1, 0.1, 0.7}, {1, 0, 0.33}, {0.123, 0.456, 0.789}}
	for _, col := range colors {
		img := constantRGB(13, 7, col[0], col[1], col[2])
		con, err := EstimateStage(img, DefaultConfig(), StageContrast)
		if err != nil {
			t.Fatal(err)
		}
		w, err := Estimate(img, DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		for i := range w.Data {
			if con.Data[i] != 0 {
				t.Errorf("color=%v contrast[%d]=%g; want 0", col, i, con.Data[i])
			}
			if w.Data[i] != 0 {
				t.Errorf("color=%v weight[%d]=%g; want 0", col, i, w.Data[i])
			}
		}
	}
}

func TestLaplacianKernel(t *testing.T) {
	// single bright pixel in the middle of a 5x5 zero image
	gray := plane.New(5, 5)
	gray.Set(2, 2, 1)
	lap := Laplacian(gray)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := float32(0)
			switch {
			case x == 2 && y == 2:
				want = -4
			case (x == 1 || x == 3) && y == 2, (y == 1 || y == 3) && x == 2:
				want = 1
			}
			if lap.At(x, y) != want {
				t.Errorf("lap(%d,%d)=%f; want %f", x, y, lap.At(x, y), want)
			}
		}
	}

	// clamped border: corner pixel sees itself twice outside the image
	gray = plane.New(3, 3)
	gray.Set(0, 0, 1)
	lap = Laplacian(gray)
	if lap.At(0, 0) != -2 {
		t.Errorf("corner lap=%f; want -2", lap.At(0, 0))
	}
}

func TestSaturationAndExposedness(t *testing.T) {
	epsilon := 1e-5
	img := constantRGB(1, 1, 0.2, 0.5, 0.8)
	sat := Saturation(img)
	mu := (0.2 + 0.5 + 0.8) / 3.0
	wantSat := math.Sqrt(((0.2-mu)*(0.2-mu) + (0.5-mu)*(0.5-mu) + (0.8-mu)*(0.8-mu)) / 3)
	if math.Abs(float64(sat.Data[0])-wantSat) > epsilon {
		t.Errorf("saturation=%f; want %f", sat.Data[0], wantSat)
	}

	sigma := 0.2
	exp := Exposedness(img, float32(sigma))
	wantExp := 1.0
	for _, v := range []float64{0.2, 0.5, 0.8} {
		wantExp *= math.Exp(-0.5 * (v - 0.5) * (v - 0.5) / (sigma * sigma))
	}
	if math.Abs(float64(exp.Data[0])-wantExp) > epsilon {
		t.Errorf("exposedness=%f; want %f", exp.Data[0], wantExp)
	}
}

func TestWeightIsProductOfMeasures(t *testing.T) {
	epsilon := 1e-5
	rng := fastrand.RNG{}
	img := randomRGB(&rng, 31, 17)
	configs := []Config{
		DefaultConfig(),
		{Contrast: 2, Saturation: 0.5, Exposedness: 1.5, Sigma: 0.3},
		{Contrast: 0, Saturation: 1, Exposedness: 0, Sigma: 0.2},
	}
	for _, c := range configs {
		w, err := Estimate(img, c)
		if err != nil {
			t.Fatal(err)
		}
		con, _ := EstimateStage(img, c, StageContrast)
		sat, _ := EstimateStage(img, c, StageSaturation)
		exp, _ := EstimateStage(img, c, StageExposedness)
		for i := range w.Data {
			want := math.Pow(float64(con.Data[i]), float64(c.Contrast)) *
				math.Pow(float64(sat.Data[i]), float64(c.Saturation)) *
				math.Pow(float64(exp.Data[i]), float64(c.Exposedness))
			if w.Data[i] < 0 || math.Abs(float64(w.Data[i])-want) > epsilon*math.Max(1, want) {
				t.Errorf("config=%+v weight[%d]=%f; want %f", c, i, w.Data[i], want)
				break
			}
		}
	}
}

func TestMonoImage(t *testing.T) {
	img := plane.Channels{plane.NewConstant(4, 4, 0.5)}
	img[0].Set(1, 1, 0.9)
	w, err := Estimate(img, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !(w.At(1, 1) > 0) {
		t.Errorf("weight at detail=%f; want >0", w.At(1, 1))
	}
	if w.At(3, 3) != 0 {
		t.Errorf("weight in flat region=%f; want 0", w.At(3, 3))
	}
}

func TestEstimateErrors(t *testing.T) {
	twoChannels := plane.NewChannels(4, 4, 2)
	if _, err := Estimate(twoChannels, DefaultConfig()); !errors.Is(err, ErrChannels) {
		t.Errorf("two channels err=%v; want ErrChannels", err)
	}
	img := constantRGB(4, 4, 0.5, 0.5, 0.5)
	if _, err := Estimate(img, Config{Contrast: 1, Saturation: 1, Exposedness: 1, Sigma: 0}); err == nil {
		t.Errorf("sigma=0 accepted")
	}
	if _, err := Estimate(img, Config{Contrast: -1, Saturation: 1, Exposedness: 1, Sigma: 0.2}); err == nil {
		t.Errorf("negative exponent accepted")
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	rng := fastrand.RNG{}
	img := randomRGB(&rng, 300, 290)
	a, _ := Estimate(img, DefaultConfig())
	b, _ := Estimate(img, DefaultConfig())
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("weight[%d] %f != %f", i, a.Data[i], b.Data[i])
		}
	}
}

func TestStageNames(t *testing.T) {
	for s := StageGrayscale; s <= StageWeight; s++ {
		parsed, err := ParseStage(s.String())
		if err != nil || parsed != s {
			t.Errorf("ParseStage(%s)=%v,%v; want %v", s.String(), parsed, err, s)
		}
	}
	if _, err := ParseStage("luminance"); err == nil {
		t.Errorf("ParseStage(luminance) accepted")
	}
	if s, err := ParseStage(" Exposedness "); err != nil || s != StageExposedness {
		t.Errorf("ParseStage is not case insensitive")
	}
}

func TestConfigJSONDefaults(t *testing.T) {
	var c Config
	if err := json.Unmarshal([]byte(`{"saturation":0.5}`), &c); err != nil {
		t.Fatal(err)
	}
	want := Config{Contrast: 1, Saturation: 0.5, Exposedness: 1, Sigma: 0.2}
	if c != want {
		t.Errorf("got %+v; want %+v", c, want)
	}
}
