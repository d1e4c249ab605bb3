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

package plane

import (
	"runtime"

	"github.com/klauspost/cpuid"
)

// Planes with fewer pixels than this are processed on the calling goroutine
const minParallelPixels = 64 * 1024

// Assumed L2 cache size if the CPU does not report one
const defaultL2Bytes = 256 * 1024

// Number of float32 row buffers an elementwise kernel typically touches per row:
// a few inputs and one output
const buffersPerRow = 4

// Calls fn on disjoint row ranges [y0,y1) covering [0,height). Ranges are sized so
// the rows of one batch fit into the L2 cache, and are processed by up to
// GOMAXPROCS goroutines. Returns after all batches have completed.
func Rows(height, width int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	if width*height < minParallelPixels {
		fn(0, height)
		return
	}

	batch := RowsPerBatch(width)
	threads := runtime.GOMAXPROCS(0)
	if batches := (height + batch - 1) / batch; batches < threads {
		// spread small workloads evenly instead of leaving cores idle
		batch = (height + threads - 1) / threads
	}

	sem := make(chan bool, threads)
	for y0 := 0; y0 < height; y0 += batch {
		y1 := y0 + batch
		if y1 > height {
			y1 = height
		}
		sem <- true
		go func(y0, y1 int) {
			defer func() { <-sem }()
			fn(y0, y1)
		}(y0, y1)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// Number of rows of the given width which fit into the L2 cache of the current CPU, at least one
func RowsPerBatch(width int) int {
	l2 := cpuid.CPU.Cache.L2
	if l2 <= 0 {
		l2 = defaultL2Bytes
	}
	if width <= 0 {
		return 1
	}
	rows := l2 / (width * 4 * buffersPerRow)
	if rows < 1 {
		rows = 1
	}
	return rows
}

// Sets every value of dst to fn(x,y), evaluated in parallel over rows
func Eval(dst *Plane, fn func(x, y int) float32) {
	width := dst.Width
	Rows(dst.Height, width, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := dst.Data[y*width : (y+1)*width]
			for x := range row {
				row[x] = fn(x, y)
			}
		}
	})
}
