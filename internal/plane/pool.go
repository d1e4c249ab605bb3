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
	"sync"
)

// Pools of float32 buffers by size, to reduce allocation overhead for temporaries
var pools = struct {
	sync.RWMutex
	m map[int]*sync.Pool
}{m: make(map[int]*sync.Pool)}

func getSizedPool(size int) *sync.Pool {
	pools.RLock()
	pool := pools.m[size]
	pools.RUnlock()
	if pool != nil {
		return pool
	}

	pools.Lock()
	defer pools.Unlock()
	if pool = pools.m[size]; pool == nil {
		pool = &sync.Pool{
			New: func() interface{} { return make([]float32, size) },
		}
		pools.m[size] = pool
	}
	return pool
}

// Retrieves a buffer of given size from the pool. Its contents are undefined
func GetBuffer(size int) []float32 {
	return getSizedPool(size).Get().([]float32)
}

// Returns a buffer to the pool. The caller must not use it afterwards
func PutBuffer(buf []float32) {
	getSizedPool(len(buf)).Put(buf) //nolint:staticcheck
}

// Drops all pooled buffers
func ClearPools() {
	pools.Lock()
	pools.m = make(map[int]*sync.Pool)
	pools.Unlock()
}

// Returns a temporary plane backed by a pooled buffer with undefined contents.
// Release it with PutBuffer(p.Data) when done
func NewTemp(width, height int) *Plane {
	return FromData(width, height, GetBuffer(width*height))
}
