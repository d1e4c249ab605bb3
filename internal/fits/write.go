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

package fits

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Writes an image to a FITS file with given filename, gzip compressed if the name ends in .gz or .gzip.
// Creates/overwrites the file if necessary
func (f *Image) WriteFile(fileName string) (err error) {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(file)

	lower := strings.ToLower(fileName)
	if strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".gzip") {
		gw := gzip.NewWriter(bw)
		if err = f.Write(gw); err != nil {
			return err
		}
		if err = gw.Close(); err != nil {
			return err
		}
	} else if err = f.Write(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// Writes an image as 32-bit floating point FITS to an io.Writer
func (f *Image) Write(w io.Writer) error {
	sb := strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	writeInt(&sb, "BITPIX", -32, "32-bit floating point")
	writeInt(&sb, "NAXIS", len(f.Naxisn), "[1] Number of axes")
	for i, n := range f.Naxisn {
		writeInt(&sb, fmt.Sprintf("NAXIS%d", i+1), int(n), "[1] Axis size")
	}
	writeFloat(&sb, "BZERO", 0, "[1] Zero offset")
	writeFloat(&sb, "BSCALE", 1, "[1] Value scale")
	if f.Exposure > 0 {
		writeFloat(&sb, "EXPTIME", f.Exposure, "[s] Exposure time")
	}
	for _, h := range f.Header.History {
		writeHistory(&sb, h)
	}
	writeEnd(&sb)

	// Pad current header block with spaces if necessary
	if rem := sb.Len() % fitsBlockSize; rem > 0 {
		sb.WriteString(strings.Repeat(" ", fitsBlockSize-rem))
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	if err := writeFloat32Array(w, f.Data); err != nil {
		return err
	}

	// Pad data block with zeros
	if rem := (len(f.Data) * 4) % fitsBlockSize; rem > 0 {
		if _, err := w.Write(make([]byte, fitsBlockSize-rem)); err != nil {
			return err
		}
	}
	return nil
}

func writeBool(w io.Writer, key string, value bool, comment string) {
	v := "F"
	if value {
		v = "T"
	}
	writeRecord(w, key, fmt.Sprintf("%20s", v), comment)
}

func writeInt(w io.Writer, key string, value int, comment string) {
	writeRecord(w, key, fmt.Sprintf("%20d", value), comment)
}

func writeFloat(w io.Writer, key string, value float32, comment string) {
	s := strings.ToUpper(fmt.Sprintf("%.9g", value))
	if !strings.Contains(s, ".") { // keep floats parseable as floats
		if e := strings.Index(s, "E"); e >= 0 {
			s = s[:e] + "." + s[e:]
		} else {
			s += "."
		}
	}
	writeRecord(w, key, fmt.Sprintf("%20s", s), comment)
}

// Writes one 80 character header record with key, fixed-format value and comment
func writeRecord(w io.Writer, key, value, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	rec := fmt.Sprintf("%-8s= %s / %s", key, value, comment)
	if len(rec) > HeaderLineSize {
		rec = rec[:HeaderLineSize]
	}
	fmt.Fprintf(w, "%-80s", rec)
}

func writeHistory(w io.Writer, text string) {
	for len(text) > 72 {
		fmt.Fprintf(w, "HISTORY %-72s", text[:72])
		text = text[72:]
	}
	fmt.Fprintf(w, "HISTORY %-72s", text)
}

func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "%-80s", "END")
}

// Writes FITS binary body data in network byte order, replacing NaNs with zeros
// for compatibility with other software
func writeFloat32Array(w io.Writer, data []float32) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += bufLen >> 2 {
		size := len(data) - block
		if size > bufLen>>2 {
			size = bufLen >> 2
		}

		for offset := 0; offset < size; offset++ {
			d := data[block+offset]
			if math.IsNaN(float64(d)) {
				d = 0
			}
			val := math.Float32bits(d)
			buf[(offset<<2)+0] = byte(val >> 24)
			buf[(offset<<2)+1] = byte(val >> 16)
			buf[(offset<<2)+2] = byte(val >> 8)
			buf[(offset<<2)+3] = byte(val)
		}
		if _, err := w.Write(buf[:size<<2]); err != nil {
			return err
		}
	}
	return nil
}
