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

package fusion

// Estimates peak memory in MiB for fusing n images of the given size, including the
// input images themselves. Per image: the channels, raw and normalized weights, and the
// next coarser Gaussian level. Shared: the combined pyramid and resampling buffers.
func EstimateMemoryMB(n, width, height, channels int) int {
	pixels := int64(width) * int64(height)
	perImage := int64(channels) + 2 + (int64(channels)+3)/4
	shared := (int64(channels)*4+2)/3 + 2
	bytes := 4 * pixels * (int64(n)*perImage + shared)
	return int((bytes + (1<<20 - 1)) >> 20)
}
