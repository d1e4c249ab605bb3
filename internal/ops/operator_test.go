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

package ops

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/mlnoga/fuselight/internal/fits"
)

func testContext() *Context {
	return &Context{Log: io.Discard, MaxThreads: 4, MemoryMB: 1024, FuseMemoryMB: 700}
}

// Changes into a fresh temporary directory for the duration of the test
func chdirTemp(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func writeTestPNG(t *testing.T, fileName string, value float32) {
	img := fits.NewImageFromNaxisn([]int32{4, 3, 3}, nil)
	for i := range img.Data {
		img.Data[i] = value
	}
	if err := img.WritePNGToFile(fileName); err != nil {
		t.Fatal(err)
	}
}

func TestMaterializeAll(t *testing.T) {
	ins := make([]Promise, 10)
	for i := range ins {
		id := i
		ins[i] = func() (*fits.Image, error) {
			f := fits.NewImage()
			f.ID = id
			return f, nil
		}
	}
	outs, err := MaterializeAll(ins, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 10 {
		t.Fatalf("got %d outputs; want 10", len(outs))
	}
	for i, f := range outs {
		if f.ID != i {
			t.Errorf("outs[%d].ID=%d", i, f.ID)
		}
	}

	outs, err = MaterializeAll(ins, 3, true)
	if err != nil || outs != nil {
		t.Errorf("forget: got %v, %v; want nil, nil", outs, err)
	}
}

func TestMaterializeAllJoinsErrors(t *testing.T) {
	ok := func() (*fits.Image, error) { return fits.NewImage(), nil }
	bad := func() (*fits.Image, error) { return nil, errors.New("boom") }
	outs, err := MaterializeAll([]Promise{ok, bad, ok, bad}, 2, false)
	if err == nil || strings.Count(err.Error(), "boom") != 2 {
		t.Errorf("err=%v; want two joined errors", err)
	}
	if len(outs) != 2 {
		t.Errorf("got %d outputs; want 2", len(outs))
	}
}

func TestRemoveNils(t *testing.T) {
	a, b := fits.NewImage(), fits.NewImage()
	res := RemoveNils([]*fits.Image{nil, a, nil, b, nil})
	if len(res) != 2 || res[0] != a || res[1] != b {
		t.Errorf("got %v", res)
	}
}

func TestIsPathAllowed(t *testing.T) {
	for p, want := range map[string]bool{
		"a.png": true, "sub/a.png": true, "/etc/passwd": false, "../a.png": false, "sub/../../a": false,
	} {
		if got := IsPathAllowed(p); got != want {
			t.Errorf("%s: %v; want %v", p, got, want)
		}
	}
}

func TestLoadManyAndSave(t *testing.T) {
	chdirTemp(t)
	writeTestPNG(t, "a.png", 0.25)
	writeTestPNG(t, "b.png", 0.75)

	c := testContext()
	seq := NewOpSequence(NewOpLoadMany([]string{"*.png"}), NewOpForEach(NewOpSave("out%d.fits")))
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := MaterializeAll(promises, c.MaxThreads, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(fs) != 2 {
		t.Fatalf("loaded %d images; want 2", len(fs))
	}
	for _, name := range []string{"out0.fits", "out1.fits"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	// glob results are sorted, so a.png has ID 0
	if fs[0].ID != 0 || fs[0].Stats.Mean > 0.5 {
		t.Errorf("first image id %d stats %v", fs[0].ID, fs[0].Stats)
	}
}

func TestLoadManyNoMatch(t *testing.T) {
	chdirTemp(t)
	if _, err := NewOpLoadMany([]string{"*.fits"}).MakePromises(nil, testContext()); err == nil {
		t.Errorf("expected error for empty match")
	}
}

func TestLoadRejectsAbsolutePath(t *testing.T) {
	if _, err := NewOpLoad(0, "/tmp/x.fits").MakePromises(nil, testContext()); err == nil {
		t.Errorf("expected error for absolute path")
	}
}

func TestSaveUnknownSuffix(t *testing.T) {
	chdirTemp(t)
	f := fits.NewImageFromNaxisn([]int32{2, 2}, nil)
	if err := Save(f, "out.bmp", 95, testContext()); err == nil {
		t.Errorf("expected error for unknown suffix")
	}
}

func TestSequenceJSONRoundTrip(t *testing.T) {
	seq := NewOpSequence(NewOpLoadMany([]string{"*.png"}), NewOpForEach(NewOpSave("out%d.tiff")))
	data, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}

	op, err := UnmarshalOperator(data)
	if err != nil {
		t.Fatal(err)
	}
	res, ok := op.(*OpSequence)
	if !ok || len(res.Steps) != 2 {
		t.Fatalf("got %#v", op)
	}
	lm, ok := res.Steps[0].(*OpLoadMany)
	if !ok || len(lm.FilePatterns) != 1 || lm.FilePatterns[0] != "*.png" {
		t.Errorf("step 0: %#v", res.Steps[0])
	}
	fe, ok := res.Steps[1].(*OpForEach)
	if !ok {
		t.Fatalf("step 1: %#v", res.Steps[1])
	}
	save, ok := fe.Operation.(*OpSave)
	if !ok || save.FilePattern != "out%d.tiff" || save.Quality != 95 || save.OpUnaryBase.Apply == nil {
		t.Errorf("operation: %#v", fe.Operation)
	}
}

func TestUnmarshalUnknownOperator(t *testing.T) {
	if _, err := UnmarshalOperator([]byte(`{"type":"sharpen"}`)); err == nil {
		t.Errorf("expected error for unknown type")
	}
}

func TestExpandPattern(t *testing.T) {
	if got := ExpandPattern("w%d.png", 3); got != "w3.png" {
		t.Errorf("got %s", got)
	}
	if got := ExpandPattern("fused.png", 3); got != "fused.png" {
		t.Errorf("got %s", got)
	}
}
