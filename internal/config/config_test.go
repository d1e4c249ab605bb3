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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mlnoga/fuselight/internal/weights"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Weights != weights.DefaultConfig() || cfg.Output.Quality != 95 || cfg.Debug.Stage != weights.StageWeight {
		t.Errorf("got %+v; want defaults", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Saturation = 0
	cfg.Weights.Sigma = 0.3
	cfg.Levels = 4
	cfg.Output.Out = "fused.tiff"
	cfg.Debug.Stage = weights.StageExposedness
	cfg.Debug.Heatmap = true

	fileName := filepath.Join(t.TempDir(), "sub", "fuse.yaml")
	if err := SaveConfig(cfg, fileName); err != nil {
		t.Fatal(err)
	}
	res, err := LoadConfig(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if *res != *cfg {
		t.Errorf("got %+v; want %+v", res, cfg)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "fuse.yaml")
	data := "weights:\n  contrast: 2\ndebug:\n  stage: Laplacian\n"
	if err := os.WriteFile(fileName, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Weights.Contrast != 2 || cfg.Weights.Saturation != 1 || cfg.Weights.Sigma != 0.2 {
		t.Errorf("weights %+v", cfg.Weights)
	}
	if cfg.Debug.Stage != weights.StageLaplacian || cfg.Output.Out != "out.fits" {
		t.Errorf("stage %v out %s", cfg.Debug.Stage, cfg.Output.Out)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tcs := []string{
		"weights:\n  sigma: 0\n",
		"weights:\n  contrast: -1\n",
		"levels: -2\n",
		"output:\n  quality: 0\n",
		"debug:\n  stage: sharpness\n",
	}
	for i, data := range tcs {
		fileName := filepath.Join(t.TempDir(), "fuse.yaml")
		if err := os.WriteFile(fileName, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(fileName); err == nil {
			t.Errorf("case %d: expected error for %q", i, data)
		}
	}
}
