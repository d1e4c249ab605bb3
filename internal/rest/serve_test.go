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

package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/fuselight/internal/fits"
)

func init() { gin.SetMode(gin.TestMode) }

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
	img := fits.NewImageFromNaxisn([]int32{32, 24, 3}, nil)
	for i := range img.Data {
		img.Data[i] = value * float32(1+i%5) / 5
	}
	if err := img.WritePNGToFile(fileName); err != nil {
		t.Fatal(err)
	}
}

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("code %d body %s", w.Code, w.Body.String())
	}
}

func TestInfo(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))
	var info map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info["maxThreads"].(float64) < 1 {
		t.Errorf("info %v", info)
	}
}

func TestIndex(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/") {
		t.Errorf("code %d", w.Code)
	}
}

func TestBadRequests(t *testing.T) {
	r := NewRouter()
	tcs := []struct {
		path, body string
	}{
		{"/api/v1/fuse", "{not json"},
		{"/api/v1/fuse", `{}`},
		{"/api/v1/fuse", `{"filePatterns":["/etc/*.png"]}`},
		{"/api/v1/fuse", `{"filePatterns":["*.png"],"save":{"filePattern":"../out.fits"}}`},
		{"/api/v1/fuse", `{"filePatterns":["*.png"],"fuse":null}`},
		{"/api/v1/weights", `{"filePatterns":["*.png"],"weights":{"weights":{"sigma":-1}}}`},
		{"/api/v1/stats", `{"filePatterns":["../*.png"]}`},
	}
	for _, tc := range tcs {
		if w := post(t, r, tc.path, tc.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s %s: code %d; want 400", tc.path, tc.body, w.Code)
		}
	}
}

func TestFuseJob(t *testing.T) {
	chdirTemp(t)
	writeTestPNG(t, "dark.png", 0.2)
	writeTestPNG(t, "bright.png", 1)

	body := `{"filePatterns":["*.png"],"fuse":{"levels":2},"save":{"filePattern":"fused.tiff"}}`
	w := post(t, NewRouter(), "/api/v1/fuse", body)
	if w.Code != http.StatusOK {
		t.Fatalf("code %d body %s", w.Code, w.Body.String())
	}
	log := w.Body.String()
	if !strings.HasPrefix(log, "Job ") || !strings.Contains(log, "with 2 pyramid levels") || !strings.HasSuffix(log, "Done\n") {
		t.Errorf("unexpected log:\n%s", log)
	}
	if _, err := os.Stat("fused.tiff"); err != nil {
		t.Errorf("missing output: %v", err)
	}
}

func TestWeightsJob(t *testing.T) {
	chdirTemp(t)
	writeTestPNG(t, "a.png", 0.5)

	body := `{"filePatterns":["a.png"],"weights":{"stage":"contrast","heatmap":"heat%d.png"},"save":{"filePattern":"contrast%d.fits"}}`
	w := post(t, NewRouter(), "/api/v1/weights", body)
	if w.Code != http.StatusOK || !bytes.HasSuffix(w.Body.Bytes(), []byte("Done\n")) {
		t.Fatalf("code %d body %s", w.Code, w.Body.String())
	}
	for _, name := range []string{"heat0.png", "contrast0.fits"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestStatsJobReportsErrors(t *testing.T) {
	chdirTemp(t)
	w := post(t, NewRouter(), "/api/v1/stats", `{"filePatterns":["*.fits"]}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Error: ") {
		t.Errorf("code %d body %s", w.Code, w.Body.String())
	}
}
