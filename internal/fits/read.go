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
	"regexp"
	"strconv"
	"strings"
)

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

// Reads an image from the file with the given name. The format is chosen by suffix:
// FITS (optionally gzipped), TIFF, PNG, JPEG or Radiance HDR.
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (i *Image, err error) {
	i = NewImage()
	i.ID = id
	if err = i.ReadFile(fileName, logWriter); err != nil {
		return nil, err
	}
	i.UpdateStats()
	return i, nil
}

// Returns true if the file name has a FITS suffix, optionally followed by .gz or .gzip
func IsFITSFileName(fileName string) bool {
	lower := strings.ToLower(fileName)
	lower = strings.TrimSuffix(strings.TrimSuffix(lower, ".gz"), ".gzip")
	return strings.HasSuffix(lower, ".fits") || strings.HasSuffix(lower, ".fit") || strings.HasSuffix(lower, ".fts")
}

// Read image data from the file with the given name. Decompresses gzip if .gz or gzip suffix is present.
func (fits *Image) ReadFile(fileName string, logWriter io.Writer) error {
	fits.FileName = fileName
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".tif") || strings.HasSuffix(lower, ".tiff"):
		return fits.readDecodedFile(fileName, true, logWriter)
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return fits.readDecodedFile(fileName, true, logWriter)
	case strings.HasSuffix(lower, ".png"):
		return fits.readDecodedFile(fileName, false, logWriter)
	case strings.HasSuffix(lower, ".hdr"):
		return fits.ReadHDRFile(fileName)
	case IsFITSFileName(fileName):
	default:
		return fmt.Errorf("%d: unknown file type for %s", fits.ID, fileName)
	}

	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".gzip") {
		if r, err = gzip.NewReader(r); err != nil {
			return err
		}
	}
	return fits.Read(r, logWriter)
}

func (fits *Image) PopHeaderInt32(key string) (res int32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

func (fits *Image) PopHeaderInt32OrFloat(key string) (res float32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return float32(val), nil
	} else if val, ok := fits.Header.Floats[key]; ok {
		delete(fits.Header.Floats, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

// Reads a FITS primary HDU with two or three axes
func (fits *Image) Read(f io.Reader, logWriter io.Writer) (err error) {
	err = fits.Header.read(f, fits.ID, logWriter)
	if err != nil {
		return err
	}

	// check mandatory fields as per standard
	if !fits.Header.Bools["SIMPLE"] {
		return fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", fits.ID)
	}
	delete(fits.Header.Bools, "SIMPLE")

	if fits.Bitpix, err = fits.PopHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = fits.PopHeaderInt32("NAXIS"); err != nil {
		return err
	}
	if naxis < 2 || naxis > 3 {
		return fmt.Errorf("%d: Unsupported number of axes %d", fits.ID, naxis)
	}
	fits.Naxisn = make([]int32, naxis)
	fits.Pixels = int32(1)
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = fits.PopHeaderInt32(name); err != nil {
			return err
		}
		fits.Naxisn[i-1] = nai
		fits.Pixels *= int32(nai)
	}

	// optional fields
	if fits.Bzero, err = fits.PopHeaderInt32OrFloat("BZERO"); err != nil {
		fits.Bzero = 0
	}
	if fits.Bscale, err = fits.PopHeaderInt32OrFloat("BSCALE"); err != nil {
		fits.Bscale = 1
	}
	if fits.Exposure, err = fits.PopHeaderInt32OrFloat("EXPOSURE"); err != nil {
		if fits.Exposure, err = fits.PopHeaderInt32OrFloat("EXPTIME"); err != nil {
			fits.Exposure = 0
		}
	}

	return fits.readData(f, logWriter)
}

// Read image data from file, convert to float32 data type and apply BZero and BScale.
// Integer data is then scaled to [0,1] by the maximum value of its data type.
func (fits *Image) readData(r io.Reader, logWriter io.Writer) (err error) {
	var bytesPerValue int
	var decode func(b []byte) float32
	switch fits.Bitpix {
	case 8:
		bytesPerValue = 1
		decode = func(b []byte) float32 { return float32(b[0]) }
	case 16:
		bytesPerValue = 2
		decode = func(b []byte) float32 { return float32(int16(uint16(b[0])<<8 | uint16(b[1]))) }
	case 32:
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting int%d to float32 values\n", fits.ID, fits.Bitpix)
		bytesPerValue = 4
		decode = func(b []byte) float32 { return float32(int32(beUint32(b))) }
	case -32:
		bytesPerValue = 4
		decode = func(b []byte) float32 { return math.Float32frombits(beUint32(b)) }
	case -64:
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting float%d to float32 values\n", fits.ID, -fits.Bitpix)
		bytesPerValue = 8
		decode = func(b []byte) float32 {
			return float32(math.Float64frombits(uint64(beUint32(b))<<32 | uint64(beUint32(b[4:]))))
		}
	default:
		return fmt.Errorf("%d: Unsupported BITPIX value %d", fits.ID, fits.Bitpix)
	}

	scale, offset := fits.Bscale, fits.Bzero
	if fits.Bitpix > 0 {
		max := integerMax(fits.Bitpix, fits.Bzero)
		scale, offset = scale/max, offset/max
	}

	fits.Data = make([]float32, int(fits.Pixels))
	buf := make([]byte, bufLen-bufLen%bytesPerValue)
	for dataIndex := 0; dataIndex < len(fits.Data); {
		bytesToRead := (len(fits.Data) - dataIndex) * bytesPerValue
		if bytesToRead > len(buf) {
			bytesToRead = len(buf)
		}
		if _, err := io.ReadFull(r, buf[:bytesToRead]); err != nil {
			return fmt.Errorf("%d: %s", fits.ID, err.Error())
		}
		for i := 0; i < bytesToRead; i += bytesPerValue {
			fits.Data[dataIndex] = decode(buf[i:])*scale + offset
			dataIndex++
		}
	}
	fits.Bzero, fits.Bscale = 0, 1 // reflect that data values incorporate these now
	return nil
}

const bufLen int = 16 * 1024 // input buffer length for reading from file

// Largest physical value of an integer FITS data type. A BZERO of 2^(bitpix-1) marks unsigned data
func integerMax(bitpix int32, bzero float32) float32 {
	if bitpix == 8 {
		return 255
	}
	signedMax := float32(math.Pow(2, float64(bitpix-1)) - 1)
	if bzero == signedMax+1 {
		return 2*signedMax + 1
	}
	return signedMax
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (h *Header) read(r io.Reader, id int, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)

	for h.Length = 0; !h.End; {
		// read next header unit
		bytesRead, err := io.ReadFull(r, buf)
		if err != nil || bytesRead != fitsBlockSize {
			return fmt.Errorf("%d: reading FITS header: %v", id, err)
		}
		h.Length += int32(bytesRead)

		// parse all lines in this header unit
		for lineNo := 0; lineNo < fitsBlockSize/HeaderLineSize && !h.End; lineNo++ {
			line := buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				fmt.Fprintf(logWriter, "%d: Warning: Cannot parse '%s', ignoring\n", id, string(line))
			} else {
				h.readLine(reParser.SubexpNames(), subValues, id, lineNo, logWriter)
			}
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte, id, lineNo int, logWriter io.Writer) {
	key := ""
	// ignore index 0 which is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] == nil || len(subNames[i]) != 1 {
			continue
		}
		switch c := subNames[i][0]; c {
		case 'E': // end line
			h.End = true
		case 'H': // history line
			h.History = append(h.History, string(subValues[i]))
		case 'C': // comment line
			h.Comments = append(h.Comments, string(subValues[i]))
		case 'k': // key
			key = string(subValues[i])
		case 'b': // boolean
			if len(subValues[i]) > 0 {
				v := subValues[i][0]
				h.Bools[key] = v == 't' || v == 'T'
			}
		case 'i': // int
			if val, err := strconv.ParseInt(string(subValues[i]), 10, 64); err == nil {
				h.Ints[key] = int32(val)
			}
		case 'f': // float
			if val, err := strconv.ParseFloat(strings.Replace(string(subValues[i]), "D", "E", 1), 64); err == nil {
				h.Floats[key] = float32(val)
			}
		case 's': // string
			h.Strings[key] = strings.TrimRight(string(subValues[i]), " ")
		case 'd': // date
			h.Dates[key] = string(subValues[i])
		case 'c': // comment
			// ignore value comments
		default:
			fmt.Fprintf(logWriter, "%d:%d: Warning: Unknown token '%s'\n", id, lineNo, string(c))
		}
	}
}

// Build regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := "\\s+"
	whiteOpt := "\\s*"

	histLine := "HISTORY" + white + "(?P<H>.*)"
	commLine := "COMMENT" + white + "(?P<C>.*)"
	endLine := "(?P<E>END)" + whiteOpt

	key := "(?P<k>[A-Z0-9_-]+)"
	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := "(?P<f>[+-]?[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?)"
	stri := "'(?P<s>[^']*)'"
	date := "(?P<d>[0-9]{1,4}-?[012][0-9]-?[0123][0-9]T[012][0-9]:?[0-5][0-9]:?[0-5][0-9].?[0-9]*)"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + "|" + date + ")"

	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + "=" + whiteOpt + val + whiteOpt + commOpt

	return regexp.MustCompile("^(?:" + white + "|" + histLine + "|" + commLine + "|" + keyLine + "|" + endLine + ")$")
}
