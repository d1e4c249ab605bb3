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

package main

import "testing"

func TestAutoName(t *testing.T) {
	tcs := []struct {
		name, out, suffix, want string
	}{
		{"%auto", "fused.tiff", ".jpg", "fused.jpg"},
		{"%auto", "dir/fused.fits.gz", ".log", "dir/fused.log"},
		{"%auto", "", ".log", ""},
		{"preview.jpg", "fused.tiff", ".jpg", "preview.jpg"},
		{"%auto", "weights%d.fits", "_heat.png", "weights%d_heat.png"},
	}
	for _, tc := range tcs {
		if got := autoName(tc.name, tc.out, tc.suffix); got != tc.want {
			t.Errorf("autoName(%q, %q, %q)=%q; want %q", tc.name, tc.out, tc.suffix, got, tc.want)
		}
	}
}
